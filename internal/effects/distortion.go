package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// distortionOversample is the oversampling factor of the waveshaper.
const distortionOversample = 4

// distortionState is a tube-style waveshaper run at 4x the device rate,
// between a low-pass and a band-pass (EQ) filter.
type distortionState struct {
	outTarget
	gain [panning.AmbiChannels]float32

	lowpass   filter.Biquad
	bandpass  filter.Biquad
	edgeCoeff float32

	buffer [2][maxUpdateSamples]float32
}

func (s *distortionState) DeviceUpdate(Device, *IRBuffer) {
	s.lowpass.Clear()
	s.bandpass.Clear()
}

func (s *distortionState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(DistortionProps)
	freq := float32(dev.Frequency)

	// A maximum edge of 0.99 keeps the coefficient finite.
	edge := min(float32(math.Sin(float64(p.Edge)*math.Pi/2)), 0.99)
	s.edgeCoeff = 2 * edge / (1 - edge)

	// Filters run at the oversampled rate.
	cutoff := p.LowpassCutoff
	bandwidth := (cutoff / 2) / (cutoff * 0.67)
	s.lowpass.SetParamsFromBandwidth(filter.LowPass, cutoff/freq/distortionOversample, 1, bandwidth)

	cutoff = p.EQCenter
	bandwidth = p.EQBandwidth / (cutoff * 0.67)
	s.bandpass.SetParamsFromBandwidth(filter.BandPass, cutoff/freq/distortionOversample, 1, bandwidth)

	s.out = target.Main.Buffer
	target.Main.PanGains(frontCoeffs, gain*p.Gain, s.gain[:])
}

func (s *distortionState) Process(n int, in, out [][]float32) {
	fc := s.edgeCoeff
	for base := 0; base < n; {
		todo := min(maxUpdateSamples, (n-base)*distortionOversample)

		// Zero stuffing, scaled to keep the signal's power.
		over := s.buffer[0][:todo]
		for i := range over {
			if i%distortionOversample == 0 {
				over[i] = in[0][base+i/distortionOversample] * distortionOversample
			} else {
				over[i] = 0
			}
		}

		// The low-pass doubles as the interpolation filter.
		s.lowpass.Process(s.buffer[1][:todo], over)

		// Three waveshaper passes, the middle one inverted.
		for i, smp := range s.buffer[1][:todo] {
			smp = (1 + fc) * smp / (1 + fc*abs32(smp))
			smp = (1 + fc) * smp / (1 + fc*abs32(smp)) * -1
			smp = (1 + fc) * smp / (1 + fc*abs32(smp))
			s.buffer[0][i] = smp
		}

		s.bandpass.Process(s.buffer[1][:todo], s.buffer[0][:todo])

		todo /= distortionOversample
		for c, line := range out {
			if c >= len(s.gain) {
				break
			}
			g := s.gain[c]
			if !(abs32(g) > simdops.GainSilenceThreshold) {
				continue
			}
			dst := line[base : base+todo]
			for i := range dst {
				dst[i] += g * s.buffer[1][i*distortionOversample]
			}
		}
		base += todo
	}
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
