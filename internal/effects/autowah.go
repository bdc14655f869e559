package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

const (
	autowahGainScale = 31621.0
	autowahMinFreq   = 20.0
	autowahMaxFreq   = 2500.0
	autowahQ         = 5.0
)

type wahParam struct {
	cosW0 float32
	alpha float32
}

// autowahState sweeps a resonant peaking filter with an envelope follower
// on the omni line. The filter changes every sample, so its coefficients
// are computed inline rather than through a Biquad.
type autowahState struct {
	outTarget

	attackRate  float32
	releaseRate float32
	resonance   float32
	peakGain    float32
	freqMin     float32
	bandwidth   float32
	envDelay    float32

	env    [resample.BufferLineSize]wahParam
	z      [panning.AmbiChannels][2]float32
	gains  [panning.AmbiChannels]chanGains
	buffer [resample.BufferLineSize]float32
}

func (s *autowahState) DeviceUpdate(Device, *IRBuffer) {
	s.attackRate = 1
	s.releaseRate = 1
	s.resonance = 10
	s.peakGain = 4.5
	s.freqMin = 4.5e-4
	s.bandwidth = 0.05
	s.envDelay = 0
	s.z = [panning.AmbiChannels][2]float32{}
	s.gains = [panning.AmbiChannels]chanGains{}
}

func (s *autowahState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(AutowahProps)
	rate := float64(dev.Frequency)
	release := mathutil.Clamp(float64(p.ReleaseTime), 0.001, 1)

	s.attackRate = float32(math.Exp(-1 / (float64(p.AttackTime) * rate)))
	s.releaseRate = float32(math.Exp(-1 / (release * rate)))
	// 0 to 20dB resonance peak.
	s.resonance = float32(math.Sqrt(math.Log10(float64(p.Resonance)) * 10 / 3))
	s.peakGain = float32(1 - math.Log10(float64(p.PeakGain)/autowahGainScale))
	s.freqMin = float32(autowahMinFreq / rate)
	s.bandwidth = float32((autowahMaxFreq - autowahMinFreq) / rate)

	s.out = target.Main.Buffer
	identityGains(target.Main, gain, s.gains[:])
}

func (s *autowahState) Process(n int, in, out [][]float32) {
	envDelay := s.envDelay
	for i, x := range in[0][:n] {
		smp := s.peakGain * float32(math.Abs(float64(x)))
		a := s.releaseRate
		if smp > envDelay {
			a = s.attackRate
		}
		envDelay = mathutil.Lerp(smp, envDelay, a)

		w0 := float64(min(s.bandwidth*envDelay+s.freqMin, 0.46)) * 2 * math.Pi
		s.env[i] = wahParam{
			cosW0: float32(math.Cos(w0)),
			alpha: float32(math.Sin(w0)) * (0.5 / autowahQ),
		}
	}
	s.envDelay = envDelay

	res := s.resonance
	buf := s.buffer[:n]
	for c := range min(len(in), len(s.z)) {
		z1, z2 := s.z[c][0], s.z[c][1]
		for i, x := range in[c][:n] {
			e := s.env[i]
			b0 := 1 + e.alpha*res
			b1 := -2 * e.cosW0
			b2 := 1 - e.alpha*res
			a0 := 1 / (1 + e.alpha/res)
			a1 := -2 * e.cosW0
			a2 := 1 - e.alpha/res

			y := x*(b0*a0) + z1
			z1 = x*(b1*a0) - y*(a1*a0) + z2
			z2 = x*(b2*a0) - y*(a2*a0)
			buf[i] = y
		}
		s.z[c] = [2]float32{z1, z2}
		s.gains[c].mix(buf, out, n, 0)
	}
}
