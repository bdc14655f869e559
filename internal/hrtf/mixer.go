package hrtf

import (
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// Filter is a response applied at a gain.
type Filter struct {
	Coeffs IR
	Delay  [2]uint32
	Gain   float32
}

// Params is the HRTF state of one voice channel. Old is what was last
// applied; Target is what the next mix moves to.
type Params struct {
	Old     Filter
	Target  Filter
	History [HistoryLength]float32
}

// Mixer accumulates binaural output for one device. Responses ring past
// the end of a block, so the accumulator carries IRLength samples of tail
// into the next one.
type Mixer struct {
	IRSize int

	accum [2][]float32
	ext   []float32 // history followed by the block's samples
	gated []float32
	sig   []float32 // gated input with convolution padding
	conv  []float32
	rev   [IRLength]float32
	ops   *simdops.Kernels
}

// NewMixer returns a mixer for blocks of up to lineSize samples.
func NewMixer(irSize, lineSize int) *Mixer {
	return &Mixer{
		IRSize: irSize,
		accum: [2][]float32{
			make([]float32, lineSize+IRLength),
			make([]float32, lineSize+IRLength),
		},
		ext:   make([]float32, HistoryLength+lineSize),
		gated: make([]float32, lineSize),
		sig:   make([]float32, lineSize+2*IRLength),
		conv:  make([]float32, lineSize+IRLength),
		ops:   simdops.Default(),
	}
}

// MixVoice convolves one block of a voice channel into the accumulator at
// outPos. On the first pass of a fade (counter > 0, outPos 0) the old
// response fades out while the target fades in; afterwards the target is
// applied with the gain moving towards targetGain over counter samples.
// History is only advanced while playing, so a stopping voice flushes the
// same tail it would have continued from.
func (m *Mixer) MixVoice(samples []float32, p *Params, targetGain float32, counter, outPos int, playing bool) {
	n := len(samples)
	copy(m.ext, p.History[:])
	copy(m.ext[HistoryLength:], samples)
	if playing {
		copy(p.History[:], m.ext[n:n+HistoryLength])
	}

	fademix := 0
	if counter > 0 && outPos == 0 {
		fademix = min(n, counter)
		gain := targetGain
		if counter > fademix {
			a := float32(fademix) / float32(counter)
			gain = mathutil.Lerp(p.Old.Gain, targetGain, a)
		}
		if p.Old.Gain > simdops.GainSilenceThreshold {
			m.apply(0, &p.Old, p.Old.Gain, -p.Old.Gain/float32(fademix), outPos, fademix)
		}
		m.apply(0, &p.Target, 0, gain/float32(fademix), outPos, fademix)

		p.Old = p.Target
		p.Old.Gain = gain
		outPos += fademix
	}

	if fademix < n {
		todo := n - fademix
		gain := targetGain
		if counter > n {
			a := float32(todo) / float32(counter-fademix)
			gain = mathutil.Lerp(p.Old.Gain, targetGain, a)
		}
		m.apply(fademix, &p.Target, p.Old.Gain, (gain-p.Old.Gain)/float32(todo), outPos, todo)
		p.Old.Gain = gain
	}
}

// apply mixes n samples starting at ext offset base through f, with the
// gain ramping from gain by step per sample.
func (m *Mixer) apply(base int, f *Filter, gain, step float32, outPos, n int) {
	if gain <= simdops.GainSilenceThreshold && gain+step*float32(n) <= simdops.GainSilenceThreshold {
		return
	}
	for ear := range 2 {
		start := base + HistoryLength - int(f.Delay[ear])
		in := m.ext[start : start+n]
		x := m.gated[:n]
		for i, s := range in {
			x[i] = s * (gain + step*float32(i))
		}
		for k := range m.IRSize {
			m.rev[m.IRSize-1-k] = f.Coeffs[k][ear]
		}
		m.addConvolved(ear, x, m.rev[:m.IRSize], outPos)
	}
}

// addConvolved adds the full convolution of x with a time-reversed kernel
// to one ear of the accumulator.
func (m *Mixer) addConvolved(ear int, x, rev []float32, outPos int) {
	pad := len(rev) - 1
	n := len(x)
	sig := m.sig[:n+2*pad]
	clear(sig[:pad])
	copy(sig[pad:], x)
	clear(sig[pad+n:])

	out := m.conv[:n+pad]
	m.ops.ConvolveValid(out, sig, rev)
	acc := m.accum[ear][outPos : outPos+len(out)]
	for i, v := range out {
		acc[i] += v
	}
}

// Flush adds the first n accumulated samples to left and right and shifts
// the remaining tail to the front for the next block.
func (m *Mixer) Flush(left, right []float32, n int) {
	for i, v := range m.accum[0][:n] {
		left[i] += v
	}
	for i, v := range m.accum[1][:n] {
		right[i] += v
	}
	for ear := range 2 {
		acc := m.accum[ear]
		copy(acc, acc[n:n+IRLength])
		clear(acc[IRLength : IRLength+n])
	}
}

// Reset drops any accumulated tail.
func (m *Mixer) Reset() {
	clear(m.accum[0])
	clear(m.accum[1])
}
