package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// equalizerState is a four band equalizer: a low shelf, two peaking mid
// bands and a high shelf on every wet line.
//
// The shelf and peak filters take the gain at the middle of their
// transition band while the band gains are for the shelf or peak itself,
// so each filter is set to the square root of its band gain.
type equalizerState struct {
	outTarget

	filters [panning.AmbiChannels][4]filter.Biquad
	gains   [panning.AmbiChannels]chanGains
	buffer  [resample.BufferLineSize]float32
}

func (s *equalizerState) DeviceUpdate(Device, *IRBuffer) {
	for c := range s.filters {
		for i := range s.filters[c] {
			s.filters[c][i].Clear()
		}
	}
	s.gains = [panning.AmbiChannels]chanGains{}
}

func (s *equalizerState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(EqualizerProps)
	rate := float32(dev.Frequency)
	sqrt := func(v float32) float32 { return float32(math.Sqrt(float64(v))) }

	bands := &s.filters[0]
	bands[0].SetParamsFromSlope(filter.LowShelf, p.LowCutoff/rate, sqrt(p.LowGain), 0.75)
	bands[1].SetParamsFromBandwidth(filter.Peaking, p.Mid1Center/rate, sqrt(p.Mid1Gain), p.Mid1Width)
	bands[2].SetParamsFromBandwidth(filter.Peaking, p.Mid2Center/rate, sqrt(p.Mid2Gain), p.Mid2Width)
	bands[3].SetParamsFromSlope(filter.HighShelf, p.HighCutoff/rate, sqrt(p.HighGain), 0.75)
	for c := 1; c < len(s.filters); c++ {
		for i := range s.filters[c] {
			s.filters[c][i].CopyParamsFrom(&bands[i])
		}
	}

	s.out = target.Main.Buffer
	identityGains(target.Main, gain, s.gains[:])
}

func (s *equalizerState) Process(n int, in, out [][]float32) {
	buf := s.buffer[:n]
	for c := range min(len(in), len(s.filters)) {
		f := &s.filters[c]
		f[0].DualProcess(&f[1], buf, in[c][:n])
		f[2].DualProcess(&f[3], buf, buf)
		s.gains[c].mix(buf, out, n, 0)
	}
}
