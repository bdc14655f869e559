package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// Chorus and flanger delay limits, in seconds.
const (
	ChorusMaxDelay  = 0.016
	FlangerMaxDelay = 0.004
)

// chorusMinDelay keeps enough history behind the write position for the
// cubic taps, as a fixed-point sample count.
const chorusMinDelay = resample.MaxEdge << resample.FracBits

var (
	chorusLeft  = panning.CalcDirectionCoeffs(-math.Sqrt2/2, 0, math.Sqrt2/2, 0)
	chorusRight = panning.CalcDirectionCoeffs(math.Sqrt2/2, 0, math.Sqrt2/2, 0)
)

// chorusState runs both the chorus and the flanger: two taps on a single
// delay line, modulated by the same LFO with a phase offset and panned to
// either side. The flanger only differs in its shorter delay.
type chorusState struct {
	outTarget

	line   []float32
	offset uint32

	lfoOffset uint32
	lfoRange  uint32
	lfoScale  float32
	lfoDisp   uint32

	waveform Waveform
	delay    int32 // fixed point
	depth    float32
	feedback float32

	modDelays [2][resample.BufferLineSize]uint32
	buffer    [2][resample.BufferLineSize]float32
	gains     [2]chanGains
}

func (s *chorusState) DeviceUpdate(dev Device, _ *IRBuffer) {
	const maxDelay = max(ChorusMaxDelay, FlangerMaxDelay)
	size := int(mathutil.NextPowerOf2(uint32(maxDelay*2*float64(dev.Frequency)) + 1))
	if len(s.line) != size {
		s.line = make([]float32, size)
	} else {
		clear(s.line)
	}
	s.gains = [2]chanGains{}
	if s.lfoRange == 0 {
		s.lfoRange = 1
	}
}

func (s *chorusState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(ChorusProps)
	rate := float32(dev.Frequency)

	// Depth is relative to the delay and limited so the taps keep their
	// interpolation history.
	s.waveform = p.Waveform
	s.delay = max(int32(p.Delay*rate*resample.FracOne+0.5), chorusMinDelay)
	s.depth = min(p.Depth*float32(s.delay), float32(s.delay-chorusMinDelay))
	s.feedback = p.Feedback

	s.out = target.Main.Buffer
	target.Main.PanGains(chorusLeft, gain, s.gains[0].target[:])
	target.Main.PanGains(chorusRight, gain, s.gains[1].target[:])

	if s.lfoRange == 0 {
		s.lfoRange = 1
	}
	if !(p.Rate > 0) {
		s.lfoOffset = 0
		s.lfoRange = 1
		s.lfoScale = 0
		s.lfoDisp = 0
		return
	}

	// Samples per LFO cycle, bounded so the phase math cannot overflow.
	lfoRange := uint32(min(rate/p.Rate+0.5, float32(math.MaxInt32/360-180)))
	s.lfoOffset = uint32(uint64(s.lfoOffset) * uint64(lfoRange) / uint64(s.lfoRange))
	s.lfoRange = lfoRange
	if s.waveform == Triangle {
		s.lfoScale = 4 / float32(s.lfoRange)
	} else {
		s.lfoScale = 2 * math.Pi / float32(s.lfoRange)
	}

	phase := p.Phase
	if phase < 0 {
		phase += 360
	}
	s.lfoDisp = (s.lfoRange*uint32(phase) + 180) / 360
}

func (s *chorusState) lfo(offset uint32) uint32 {
	x := float32(offset) * s.lfoScale
	var v float32
	if s.waveform == Triangle {
		v = 1 - float32(math.Abs(float64(2-x)))
	} else {
		v = float32(math.Sin(float64(x)))
	}
	return uint32(int32(v*s.depth) + s.delay)
}

func (s *chorusState) calcDelays(n int) {
	start := [2]uint32{s.lfoOffset, (s.lfoOffset + s.lfoDisp) % s.lfoRange}
	for side, offset := range start {
		dst := s.modDelays[side][:n]
		for i := range dst {
			dst[i] = s.lfo(offset)
			if offset++; offset == s.lfoRange {
				offset = 0
			}
		}
	}
	s.lfoOffset = uint32((uint64(s.lfoOffset) + uint64(n)) % uint64(s.lfoRange))
}

func (s *chorusState) Process(n int, in, out [][]float32) {
	mask := uint32(len(s.line) - 1)
	avgDelay := (uint32(s.delay) + resample.FracOne/2) >> resample.FracBits
	line := s.line
	offset := s.offset

	s.calcDelays(n)

	for i, x := range in[0][:n] {
		// Write first so delays under one sample still read the input.
		line[offset&mask] = x

		for side := range s.buffer {
			d := s.modDelays[side][i]
			pos := offset - d>>resample.FracBits
			mu := float32(d&resample.FracMask) * (1.0 / resample.FracOne)
			s.buffer[side][i] = mathutil.Cubic(line[(pos+1)&mask], line[pos&mask],
				line[(pos-1)&mask], line[(pos-2)&mask], mu)
		}

		line[offset&mask] += line[(offset-avgDelay)&mask] * s.feedback
		offset++
	}
	s.offset = offset

	for side := range s.gains {
		s.gains[side].mix(s.buffer[side][:n], out, n, 0)
	}
}
