// Package mastering implements the device output limiter: a look-ahead
// feed-forward compressor with automatic knee, attack, release and make-up
// gain, applied to every output channel with one linked gain.
package mastering

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

const (
	lineSize = resample.BufferLineSize
	holdMask = lineSize - 1

	// minLevel clamps the side chain before taking its log.
	minLevel = 0.000001
)

// Params describes a compressor. Times are in seconds and levels in dB.
type Params struct {
	AutoKnee     bool
	AutoAttack   bool
	AutoRelease  bool
	AutoPostGain bool
	AutoDeclip   bool

	LookAhead   float32
	Hold        float32
	PreGainDB   float32
	PostGainDB  float32
	ThresholdDB float32
	Ratio       float32
	KneeDB      float32
	Attack      float32
	Release     float32
}

// LimiterParams returns the settings of the device output limiter for the
// given threshold.
func LimiterParams(thresholdDB float32) Params {
	return Params{
		AutoKnee:     true,
		AutoAttack:   true,
		AutoRelease:  true,
		AutoPostGain: true,
		AutoDeclip:   true,
		LookAhead:    0.001,
		Hold:         0.002,
		ThresholdDB:  thresholdDB,
		Ratio:        float32(math.Inf(1)),
		Attack:       0.02,
		Release:      0.2,
	}
}

// slidingHold tracks the running maximum over a fixed window.
type slidingHold struct {
	values   [lineSize]float32
	expiries [lineSize]uint32
	lower    uint32
	upper    uint32
	length   uint32
}

func (h *slidingHold) update(i uint32, in float32) float32 {
	if i >= h.expiries[h.upper] {
		h.upper = (h.upper + 1) & holdMask
	}

	if in >= h.values[h.upper] {
		h.values[h.upper] = in
		h.expiries[h.upper] = i + h.length
		h.lower = h.upper
		return in
	}

	lower := h.lower
	for {
		found := false
		for {
			if in < h.values[lower] {
				found = true
				break
			}
			if lower == 0 {
				break
			}
			lower--
		}
		if found {
			break
		}
		lower = holdMask
	}
	lower = (lower + 1) & holdMask
	h.values[lower] = in
	h.expiries[lower] = i + h.length
	h.lower = lower
	return h.values[h.upper]
}

func (h *slidingHold) shift(n uint32) {
	i := h.upper
	if h.lower < h.upper {
		for ; i < lineSize; i++ {
			h.expiries[i] -= n
		}
		i = 0
	}
	for ; i <= h.lower; i++ {
		h.expiries[i] -= n
	}
}

// Compressor is a multichannel look-ahead compressor. It is owned by the
// mixer and not safe for concurrent use.
type Compressor struct {
	numChans int

	autoKnee, autoAttack, autoRelease, autoPostGain, autoDeclip bool

	lookAhead uint32
	preGain   float32
	postGain  float32
	threshold float32
	slope     float32
	knee      float32
	attack    float32
	release   float32

	sideChain   [2 * lineSize]float32
	crestFactor [lineSize]float32

	hold  *slidingHold
	delay [][]float32

	crestCoeff   float32
	gainEstimate float32
	adaptCoeff   float32

	lastPeakSq  float32
	lastRmsSq   float32
	lastRelease float32
	lastAttack  float32
	lastGainDev float32
}

const ln10Over20 = math.Ln10 / 20

// New creates a compressor for numChans channels at rate.
func New(numChans int, rate float32, p Params) *Compressor {
	lookAhead := uint32(mathutil.Clamp(float32(math.Round(float64(p.LookAhead*rate))), 0, lineSize-1))
	hold := uint32(mathutil.Clamp(float32(math.Round(float64(p.Hold*rate))), 0, lineSize-1))

	c := &Compressor{
		numChans:     numChans,
		autoKnee:     p.AutoKnee,
		autoAttack:   p.AutoAttack,
		autoRelease:  p.AutoRelease,
		autoPostGain: p.AutoPostGain,
		autoDeclip:   p.AutoPostGain && p.AutoDeclip,
		lookAhead:    lookAhead,
		preGain:      float32(math.Pow(10, float64(p.PreGainDB)/20)),
		postGain:     float32(ln10Over20 * float64(p.PostGainDB)),
		threshold:    float32(ln10Over20 * float64(p.ThresholdDB)),
		slope:        1/max(1, p.Ratio) - 1,
		knee:         max(0, float32(ln10Over20*float64(p.KneeDB))),
		attack:       max(1, p.Attack*rate),
		release:      max(1, p.Release*rate),
	}
	// An automatic knee turns the compressor into a limiter.
	if p.AutoKnee {
		c.slope = -1
	}

	if lookAhead > 0 {
		// A one-sample hold would only return its input.
		if hold > 1 {
			c.hold = &slidingHold{length: hold}
			c.hold.values[0] = float32(math.Inf(-1))
			c.hold.expiries[0] = hold
		}
		c.delay = make([][]float32, numChans)
		for i := range c.delay {
			c.delay[i] = make([]float32, lookAhead)
		}
	}

	c.crestCoeff = float32(math.Exp(-1 / (0.2 * float64(rate))))
	c.gainEstimate = c.threshold * -0.5 * c.slope
	c.adaptCoeff = float32(math.Exp(-1 / (2 * float64(rate))))
	return c
}

// LookAhead returns the latency the compressor adds, in samples.
func (c *Compressor) LookAhead() int {
	return int(c.lookAhead)
}

// Process compresses the first n samples of each line in place.
func (c *Compressor) Process(lines [][]float32, n int) {
	n = min(n, lineSize)
	if n == 0 {
		return
	}
	lines = lines[:min(len(lines), c.numChans)]

	if c.preGain != 1 {
		for _, line := range lines {
			for i := range line[:n] {
				line[i] *= c.preGain
			}
		}
	}

	c.linkChannels(lines, n)
	if c.autoAttack || c.autoRelease {
		c.crestDetector(n)
	}
	if c.hold != nil {
		c.peakHoldDetector(n)
	} else {
		c.peakDetector(n)
	}
	c.gainCompressor(n)
	if c.delay != nil {
		c.signalDelay(lines, n)
	}

	gains := c.sideChain[:n]
	for _, line := range lines {
		for i, g := range gains {
			line[i] *= g
		}
	}
	copy(c.sideChain[:c.lookAhead], c.sideChain[n:n+int(c.lookAhead)])
}

func (c *Compressor) linkChannels(lines [][]float32, n int) {
	side := c.sideChain[c.lookAhead : int(c.lookAhead)+n]
	clear(side)
	for _, line := range lines {
		for i, s := range line[:n] {
			side[i] = max(side[i], abs32(s))
		}
	}
}

func (c *Compressor) crestDetector(n int) {
	a := c.crestCoeff
	peak, rms := c.lastPeakSq, c.lastRmsSq
	side := c.sideChain[c.lookAhead : int(c.lookAhead)+n]
	for i, x := range side {
		x2 := mathutil.Clamp(x*x, 0.000001, 1000000)
		peak = max(x2, mathutil.Lerp(x2, peak, a))
		rms = mathutil.Lerp(x2, rms, a)
		c.crestFactor[i] = peak / rms
	}
	c.lastPeakSq, c.lastRmsSq = peak, rms
}

func (c *Compressor) peakDetector(n int) {
	side := c.sideChain[c.lookAhead : int(c.lookAhead)+n]
	for i, x := range side {
		side[i] = float32(math.Log(float64(max(minLevel, x))))
	}
}

func (c *Compressor) peakHoldDetector(n int) {
	side := c.sideChain[c.lookAhead : int(c.lookAhead)+n]
	for i, x := range side {
		xg := float32(math.Log(float64(max(minLevel, x))))
		side[i] = c.hold.update(uint32(i), xg)
	}
	c.hold.shift(uint32(n))
}

func (c *Compressor) gainCompressor(n int) {
	threshold := c.threshold
	slope := c.slope
	cEst := c.gainEstimate
	aAdp := c.adaptCoeff
	postGain := c.postGain
	knee := c.knee
	tAtt := c.attack
	tRel := c.release - c.attack
	aAtt := float32(math.Exp(-1 / float64(tAtt)))
	aRel := float32(math.Exp(-1 / float64(tRel)))
	y1 := c.lastRelease
	yL := c.lastAttack
	cDev := c.lastGainDev

	look := c.sideChain[c.lookAhead : int(c.lookAhead)+n]
	for i := range n {
		if c.autoKnee {
			knee = max(0, 2.5*(cDev+cEst))
		}
		kneeH := 0.5 * knee

		// Static compression curve.
		xOver := look[i] - threshold
		var yG float32
		switch {
		case xOver <= -kneeH:
			yG = 0
		case abs32(xOver) < kneeH:
			yG = (xOver + kneeH) * (xOver + kneeH) / (2 * knee)
		default:
			yG = xOver
		}

		crest := c.crestFactor[i]
		if c.autoAttack {
			tAtt = 2 * c.attack / crest
			aAtt = float32(math.Exp(-1 / float64(tAtt)))
		}
		if c.autoRelease {
			tRel = 2*c.release/crest - tAtt
			aRel = float32(math.Exp(-1 / float64(tRel)))
		}

		// Decoupled peak detector ballistics; release already excludes the
		// attack time.
		xL := -slope * yG
		y1 = max(xL, mathutil.Lerp(xL, y1, aRel))
		yL = mathutil.Lerp(y1, yL, aAtt)

		cDev = mathutil.Lerp(-(yL + cEst), cDev, aAdp)
		if c.autoPostGain {
			if c.autoDeclip {
				cDev = max(cDev, look[i]-yL-threshold-cEst)
			}
			postGain = -(cDev + cEst)
		}

		c.sideChain[i] = float32(math.Exp(float64(postGain - yL)))
	}

	c.lastRelease = y1
	c.lastAttack = yL
	c.lastGainDev = cDev
}

// signalDelay delays each line by the look-ahead so gains computed from
// future samples line up with the audio they apply to.
func (c *Compressor) signalDelay(lines [][]float32, n int) {
	la := int(c.lookAhead)
	for ch, line := range lines {
		buf := c.delay[ch]
		io := line[:n]
		if n >= la {
			// Output the held samples, then hold the tail of this block.
			var tail [lineSize]float32
			copy(tail[:la], io[n-la:])
			copy(io[la:], io[:n-la])
			copy(io[:la], buf)
			copy(buf, tail[:la])
			continue
		}
		var tmp [lineSize]float32
		copy(tmp[:n], io)
		copy(io, buf[:n])
		copy(buf, buf[n:])
		copy(buf[la-n:], tmp[:n])
	}
}

func abs32(v float32) float32 {
	return math.Float32frombits(math.Float32bits(v) &^ (1 << 31))
}
