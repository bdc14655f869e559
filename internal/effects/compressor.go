package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// Compressor envelope limits and timing.
const (
	compressorEnvMin = 0.5
	compressorEnvMax = 2.0

	compressorAttack  = 0.1 // seconds from min to max
	compressorRelease = 0.2 // seconds from max to min
)

// compressorState normalizes the wet signal by an envelope of the first
// (omni) line. When switched off the envelope glides back to unity so
// toggling does not click.
type compressorState struct {
	outTarget

	enabled     bool
	attackMult  float32
	releaseMult float32
	env         float32

	gains [panning.AmbiChannels][panning.AmbiChannels]float32
	ratio [maxUpdateSamples]float32
}

func (s *compressorState) DeviceUpdate(dev Device, _ *IRBuffer) {
	rate := float64(dev.Frequency)
	s.attackMult = float32(math.Pow(compressorEnvMax/compressorEnvMin, 1/(rate*compressorAttack)))
	s.releaseMult = float32(math.Pow(compressorEnvMin/compressorEnvMax, 1/(rate*compressorRelease)))
	s.env = 1
}

func (s *compressorState) Update(_ Device, gain float32, props Props, target Target) {
	s.enabled = props.(CompressorProps).OnOff
	s.out = target.Main.Buffer
	for i := range s.gains {
		target.Main.PanGains(panning.Unit(i), gain, s.gains[i][:])
	}
}

func (s *compressorState) Process(n int, in, out [][]float32) {
	for base := 0; base < n; {
		todo := min(maxUpdateSamples, n-base)

		env := s.env
		for i := range todo {
			amp := float32(1)
			if s.enabled {
				amp = mathutil.Clamp(float32(math.Abs(float64(in[0][base+i]))), compressorEnvMin, compressorEnvMax)
			}
			if amp > env {
				env = min(env*s.attackMult, amp)
			} else if amp < env {
				env = max(env*s.releaseMult, amp)
			}
			s.ratio[i] = 1 / env
		}
		s.env = env

		for c, src := range in[:min(len(in), len(s.gains))] {
			for o, dst := range out[:min(len(out), panning.AmbiChannels)] {
				g := s.gains[c][o]
				if !(float32(math.Abs(float64(g))) > simdops.GainSilenceThreshold) {
					continue
				}
				for i := range todo {
					dst[base+i] += src[base+i] * s.ratio[i] * g
				}
			}
		}
		base += todo
	}
}
