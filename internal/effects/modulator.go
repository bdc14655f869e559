package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// modulatorState is a ring modulator: each wet line is high-passed and
// multiplied by a carrier with a whole number of samples per cycle.
type modulatorState struct {
	outTarget

	waveform Waveform
	index    uint32
	period   uint32 // samples per cycle; 1 gives a constant carrier
	scale    float32

	carrier [resample.BufferLineSize]float32
	buffer  [resample.BufferLineSize]float32

	filters [panning.AmbiChannels]filter.Biquad
	gains   [panning.AmbiChannels]chanGains
}

func (s *modulatorState) DeviceUpdate(Device, *IRBuffer) {
	s.index = 0
	s.period = 1
	for i := range s.filters {
		s.filters[i].Clear()
	}
	s.gains = [panning.AmbiChannels]chanGains{}
}

func (s *modulatorState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(ModulatorProps)
	rate := float32(dev.Frequency)

	perCycle := float32(1)
	if p.Frequency > 0 {
		perCycle = rate/p.Frequency + 0.5
	}
	period := uint32(mathutil.Clamp(perCycle, 1, rate))
	if s.period == 0 {
		s.period = 1
	}
	// Keep the phase when the frequency changes.
	s.index = uint32(uint64(s.index) * uint64(period) / uint64(s.period))
	s.period = period
	s.waveform = p.Waveform

	switch {
	case s.period == 1:
		s.scale = 0
	case p.Waveform == Sawtooth:
		s.scale = 2 / float32(s.period-1)
	case p.Waveform == Square:
		// An even period splits evenly between high and low.
		s.period = (s.period + 1) &^ 1
		s.scale = 1 / float32(s.period-1)
	default:
		s.scale = 2 * math.Pi / float32(s.period)
	}
	if s.index >= s.period {
		s.index = 0
	}

	f0norm := mathutil.Clamp(p.HighPassCutoff/rate, 1.0/512, 0.49)
	s.filters[0].SetParamsFromBandwidth(filter.HighPass, f0norm, 1, 0.75)
	for i := 1; i < len(s.filters); i++ {
		s.filters[i].CopyParamsFrom(&s.filters[0])
	}

	s.out = target.Main.Buffer
	identityGains(target.Main, gain, s.gains[:])
}

func (s *modulatorState) carrierAt(idx uint32) float32 {
	if s.period == 1 {
		return 1
	}
	x := float32(idx) * s.scale
	switch s.waveform {
	case Sawtooth:
		return x - 1
	case Square:
		if x < 0.5 {
			return 1
		}
		return -1
	default:
		return float32(math.Sin(float64(x)))
	}
}

func (s *modulatorState) Process(n int, in, out [][]float32) {
	idx := s.index
	for i := range s.carrier[:n] {
		s.carrier[i] = s.carrierAt(idx)
		if idx++; idx >= s.period {
			idx = 0
		}
	}
	s.index = idx

	buf := s.buffer[:n]
	for c := range min(len(in), len(s.filters)) {
		s.filters[c].Process(buf, in[c][:n])
		for i := range buf {
			buf[i] *= s.carrier[i]
		}
		s.gains[c].mix(buf, out, min(n, fadeSamples), 0)
	}
}
