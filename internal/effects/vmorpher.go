package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
)

// Vocal morpher layout.
const (
	vmorphUpdateSamples = 128
	vmorphFormants      = 4
	vmorphQ             = 5.0

	waveFracBits = 24
	waveFracOne  = 1 << waveFracBits
	waveFracMask = waveFracOne - 1
)

// formant is a topology-preserving state variable band-pass.
type formant struct {
	g, gain float32
	s1, s2  float32
}

func newFormant(f0norm, gain float32) formant {
	return formant{g: float32(math.Tan(math.Pi * float64(f0norm))), gain: gain}
}

// process adds the band-passed src, scaled by the formant gain, to dst.
func (f *formant) process(src, dst []float32) {
	g := f.g
	h := 1 / (1 + g/vmorphQ + g*g)
	s1, s2 := f.s1, f.s2
	for i, x := range src {
		hp := (x - (1/vmorphQ+g)*s1 - s2) * h
		bp := g*hp + s1
		lp := g*bp + s2
		s1 = g*hp + bp
		s2 = g*bp + lp
		dst[i] += bp * f.gain
	}
	f.s1, f.s2 = s1, s2
}

type formantSpec struct{ freq, gain float32 }

// Soprano formants. Phonemes without a table produce silence.
var phonemeFormants = map[Phoneme][vmorphFormants]formantSpec{
	PhonemeA: {{800, 1}, {1150, 0.501187}, {2900, 0.025118}, {3900, 0.1}},
	PhonemeE: {{350, 1}, {2000, 0.1}, {2800, 0.177827}, {3600, 0.009999}},
	PhonemeI: {{270, 1}, {2140, 0.251188}, {2950, 0.050118}, {3900, 0.050118}},
	PhonemeO: {{450, 1}, {800, 0.281838}, {2830, 0.079432}, {3800, 0.079432}},
	PhonemeU: {{325, 1}, {700, 0.158489}, {2700, 0.017782}, {3800, 0.009999}},
}

func phonemeFilters(ph Phoneme, pitch, rate float32) [vmorphFormants]formant {
	var out [vmorphFormants]formant
	spec, ok := phonemeFormants[ph]
	if !ok {
		return out
	}
	for i, f := range spec {
		out[i] = newFormant(f.freq*pitch/rate, f.gain)
	}
	return out
}

// vmorpherState blends two four-band formant filters with an LFO.
type vmorpherState struct {
	outTarget

	filters [panning.AmbiChannels][2][vmorphFormants]formant
	gains   [panning.AmbiChannels]chanGains

	waveform Waveform
	index    uint32
	step     uint32

	lfo     [vmorphUpdateSamples]float32
	bufA    [vmorphUpdateSamples]float32
	bufB    [vmorphUpdateSamples]float32
	blended [vmorphUpdateSamples]float32
}

func (s *vmorpherState) DeviceUpdate(Device, *IRBuffer) {
	s.filters = [panning.AmbiChannels][2][vmorphFormants]formant{}
	s.gains = [panning.AmbiChannels]chanGains{}
	s.index = 0
	s.step = 1
}

func (s *vmorpherState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(VmorpherProps)
	rate := float32(dev.Frequency)

	step := p.Rate / rate * waveFracOne
	s.step = uint32(mathutil.Clamp(step, 0, waveFracOne-1))
	s.waveform = p.Waveform

	pitchA := float32(math.Pow(2, float64(p.PhonemeACoarseTuning)/12))
	pitchB := float32(math.Pow(2, float64(p.PhonemeBCoarseTuning)/12))
	a := phonemeFilters(p.PhonemeA, pitchA, rate)
	b := phonemeFilters(p.PhonemeB, pitchB, rate)
	for c := range s.filters {
		// Coefficients change, filter history carries over.
		for i := range vmorphFormants {
			s.filters[c][0][i].g, s.filters[c][0][i].gain = a[i].g, a[i].gain
			s.filters[c][1][i].g, s.filters[c][1][i].gain = b[i].g, b[i].gain
		}
	}

	s.out = target.Main.Buffer
	identityGains(target.Main, gain, s.gains[:])
}

func (s *vmorpherState) wave(idx uint32) float32 {
	if s.step == 0 {
		return 0.5
	}
	switch s.waveform {
	case Sawtooth:
		return float32(idx) / waveFracOne
	case Triangle:
		return float32(math.Abs(float64(idx)*2/waveFracOne - 1))
	default:
		return float32(math.Sin(float64(idx)*(2*math.Pi/waveFracOne)))*0.5 + 0.5
	}
}

func (s *vmorpherState) Process(n int, in, out [][]float32) {
	for base := 0; base < n; {
		todo := min(vmorphUpdateSamples, n-base)

		idx := s.index
		for i := range todo {
			idx = (idx + s.step) & waveFracMask
			s.lfo[i] = s.wave(idx)
		}
		s.index = (s.index + s.step*uint32(todo)) & waveFracMask

		for c := range min(len(in), len(s.filters)) {
			src := in[c][base : base+todo]
			a, b := s.bufA[:todo], s.bufB[:todo]
			clear(a)
			clear(b)
			for i := range vmorphFormants {
				s.filters[c][0][i].process(src, a)
				s.filters[c][1][i].process(src, b)
			}
			blended := s.blended[:todo]
			for i := range blended {
				blended[i] = mathutil.Lerp(a[i], b[i], s.lfo[i])
			}
			s.gains[c].mix(blended, out, n-base, base)
		}
		base += todo
	}
}
