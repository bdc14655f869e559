// Package bs2b implements Bauer stereophonic-to-binaural crossfeed, which
// bleeds a low-passed copy of each channel into the other so stereo mixes
// sound less wide on headphones.
package bs2b

import (
	"errors"
	"fmt"
	"math"
)

// Level selects the crossfeed cut frequency and amount.
type Level int

// Crossfeed levels. The "easy" variants feed less of the opposite channel.
const (
	Off Level = iota
	Low
	Middle
	High
	LowEasy
	MiddleEasy
	HighEasy
)

// ErrInvalidRate is returned for a non-positive sample rate.
var ErrInvalidRate = errors.New("bs2b: invalid sample rate")

// cut frequencies (Hz) and gains of the low and high shelf of each level.
var levelParams = [...][4]float32{
	Low:        {360, 501, 0.398107170553497, 0.205671765275719},
	Middle:     {500, 711, 0.459726988530872, 0.228208484414988},
	High:       {700, 1021, 0.530884444230988, 0.250105790667544},
	LowEasy:    {360, 494, 0.316227766016838, 0.168236228897329},
	MiddleEasy: {500, 689, 0.354813389233575, 0.187169483835901},
	HighEasy:   {700, 975, 0.398107170553497, 0.205671765275719},
}

// Valid reports whether l is Off or a crossfeed level.
func (l Level) Valid() bool {
	return l >= Off && l <= HighEasy
}

type history struct {
	lo, hi float32
}

// Processor applies crossfeed to a left/right pair. It keeps one sample of
// filter state per channel between calls.
type Processor struct {
	level Level
	rate  int

	a0Lo, b1Lo       float32
	a0Hi, a1Hi, b1Hi float32

	hist [2]history
}

// New returns a processor for level at rate. Level Off is promoted to
// HighEasy; use a nil processor to disable crossfeed.
func New(level Level, rate int) (*Processor, error) {
	p := &Processor{}
	if err := p.SetParams(level, rate); err != nil {
		return nil, err
	}
	return p, nil
}

// SetParams changes the level and rate without clearing history.
func (p *Processor) SetParams(level Level, rate int) error {
	if rate < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	if level <= Off || level > HighEasy {
		level = HighEasy
	}
	p.level = level
	p.rate = rate

	prm := levelParams[level]
	fcLo, fcHi, gLo, gHi := prm[0], prm[1], prm[2], prm[3]
	g := 1 / (1 - gHi + gLo)

	x := float32(math.Exp(-2 * math.Pi * float64(fcLo) / float64(rate)))
	p.b1Lo = x
	p.a0Lo = gLo * (1 - x) * g

	x = float32(math.Exp(-2 * math.Pi * float64(fcHi) / float64(rate)))
	p.b1Hi = x
	p.a0Hi = (1 - gHi*(1-x)) * g
	p.a1Hi = -x * g
	return nil
}

// Level returns the active level.
func (p *Processor) Level() Level {
	return p.level
}

// Clear resets the filter history.
func (p *Processor) Clear() {
	p.hist = [2]history{}
}

// CrossFeed processes left and right in place.
func (p *Processor) CrossFeed(left, right []float32) {
	n := min(len(left), len(right))
	left, right = left[:n], right[:n]

	zl := p.hist[0]
	zr := p.hist[1]
	for i := range n {
		xl, xr := left[i], right[i]

		// Left input: high shelf to the left, low pass to the right.
		l0 := p.a0Hi*xl + zl.hi
		zl.hi = p.a1Hi*xl + p.b1Hi*l0
		l1 := p.a0Lo*xl + zl.lo
		zl.lo = p.b1Lo * l1

		// Right input: low pass to the left, high shelf to the right.
		r0 := p.a0Lo*xr + zr.lo
		zr.lo = p.b1Lo * r0
		r1 := p.a0Hi*xr + zr.hi
		zr.hi = p.a1Hi*xr + p.b1Hi*r1

		left[i] = l0 + r0
		right[i] = l1 + r1
	}
	p.hist[0] = zl
	p.hist[1] = zr
}
