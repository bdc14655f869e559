package hrtf

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
)

// Crossover between the amplitude- and energy-matched decoder bands.
const directXOverFreq = 700

// Virtual speakers on the corners of a cube and their first-order decoder.
var (
	ambiPoints1O = [8][2]float32{ // elevation, azimuth in degrees
		{35.264390, -45}, {35.264390, -135}, {35.264390, 45}, {35.264390, 135},
		{-35.264390, -45}, {-35.264390, -135}, {-35.264390, 45}, {-35.264390, 135},
	}
	ambiMatrix1O = [8][4]float32{
		{0.125, 0.125, 0.125, 0.125},
		{0.125, 0.125, 0.125, -0.125},
		{0.125, -0.125, 0.125, 0.125},
		{0.125, -0.125, 0.125, -0.125},
		{0.125, 0.125, -0.125, 0.125},
		{0.125, 0.125, -0.125, -0.125},
		{0.125, -0.125, -0.125, 0.125},
		{0.125, -0.125, -0.125, -0.125},
	}
	ambiOrderHFGain1O = [2]float32{2, 1.154700538}
)

type directChannel struct {
	splitter filter.BandSplitter
	hfScale  float32
	rev      [2][IRLength]float32
}

// DirectState decodes a first-order ambisonic bus to two ears by folding
// the virtual speakers' responses into one response per ambisonic channel.
type DirectState struct {
	IRSize   int
	channels [4]directChannel
	temp     []float32
}

// NewDirectState builds the decoder for s.
func NewDirectState(s *Store, lineSize int) *DirectState {
	d := &DirectState{temp: make([]float32, lineSize)}

	xover := float32(directXOverFreq / float64(s.SampleRate))
	for ch := range d.channels {
		d.channels[ch].splitter.Init(xover)
		order := 0
		if ch > 0 {
			order = 1
		}
		d.channels[ch].hfScale = ambiOrderHFGain1O[order]
	}

	type impulse struct {
		ir     *IR
		delays [2]uint32
	}
	var impulses [len(ambiPoints1O)]impulse
	minDelay := uint32(HistoryLength * DelayFracOne)
	for i, pt := range ambiPoints1O {
		el := float32(float64(pt[0]) * math.Pi / 180)
		az := float32(float64(pt[1]) * math.Pi / 180)
		n := s.nearest(el, az)
		impulses[i] = impulse{&s.Coeffs[n], [2]uint32{uint32(s.Delays[n][0]), uint32(s.Delays[n][1])}}
		minDelay = min(minDelay, impulses[i].delays[0], impulses[i].delays[1])
	}

	var tmp [4][IRLength][2]float64
	var maxDelay uint32
	for i, imp := range impulses {
		for ear := range 2 {
			rel := imp.delays[ear] - minDelay
			maxDelay = max(maxDelay, rel)
			off := int((rel + DelayFracHalf) >> DelayFracBits)
			for ch, mult := range ambiMatrix1O[i] {
				for k := 0; k < s.IRSize && off+k < IRLength; k++ {
					tmp[ch][off+k][ear] += float64(imp.ir[k][ear]) * float64(mult)
				}
			}
		}
	}

	d.IRSize = min(int((maxDelay+DelayFracHalf)>>DelayFracBits)+s.IRSize, IRLength)
	for ch := range d.channels {
		for k := range d.IRSize {
			for ear := range 2 {
				d.channels[ch].rev[ear][d.IRSize-1-k] = float32(tmp[ch][k][ear])
			}
		}
	}
	return d
}

// Mix convolves the first n samples of each ambisonic line into m's
// accumulator. The lines are not modified.
func (d *DirectState) Mix(m *Mixer, in [][]float32, n int) {
	x := d.temp[:n]
	for ch := range d.channels {
		if ch >= len(in) {
			break
		}
		c := &d.channels[ch]
		copy(x, in[ch][:n])
		c.splitter.ApplyHFScale(x, c.hfScale)
		m.addConvolved(0, x, c.rev[0][:d.IRSize], 0)
		m.addConvolved(1, x, c.rev[1][:d.IRSize], 0)
	}
}
