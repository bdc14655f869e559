package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// Echo limits, in seconds.
const (
	EchoMaxDelay   = 0.207
	EchoMaxLRDelay = 0.404

	echoLowpassRef = 5000.0
)

// echoState is a two-tap delay. The second tap feeds back into the line
// through a damping shelf.
type echoState struct {
	outTarget

	line   []float32
	taps   [2]int
	offset int

	gains    [2]chanGains
	filter   filter.Biquad
	feedGain float32

	temp [2][]float32
}

func (s *echoState) DeviceUpdate(dev Device, _ *IRBuffer) {
	freq := float64(dev.Frequency)
	size := int(mathutil.NextPowerOf2(uint32(EchoMaxDelay*freq+0.5) + uint32(EchoMaxLRDelay*freq+0.5)))
	if len(s.line) != size {
		s.line = make([]float32, size)
	} else {
		clear(s.line)
	}
	s.offset = 0
	s.gains = [2]chanGains{}
	s.filter.Clear()
	for i := range s.temp {
		if s.temp[i] == nil {
			s.temp[i] = make([]float32, resample.BufferLineSize)
		}
	}
}

func (s *echoState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(EchoProps)
	freq := float64(dev.Frequency)

	s.taps[0] = max(int(math.Round(float64(p.Delay)*freq)), 1)
	s.taps[1] = int(math.Round(float64(p.LRDelay)*freq)) + s.taps[0]

	// Damping is limited to -24dB.
	gainHF := max(1-p.Damping, 0.0625)
	s.filter.SetParamsFromSlope(filter.HighShelf, float32(echoLowpassRef/freq), gainHF, 1)
	s.feedGain = p.Feedback

	// Spread -1 puts the first tap on the right, +1 on the left.
	x := p.Spread
	z := float32(math.Sqrt(float64(1 - x*x)))
	s.out = target.Main.Buffer
	target.Main.PanGains(panning.CalcDirectionCoeffs(-x, 0, -z, 0), gain, s.gains[0].target[:])
	target.Main.PanGains(panning.CalcDirectionCoeffs(x, 0, -z, 0), gain, s.gains[1].target[:])
}

func (s *echoState) Process(n int, in, out [][]float32) {
	mask := len(s.line) - 1
	offset := s.offset
	tap1 := offset - s.taps[0]
	tap2 := offset - s.taps[1]
	for i := range n {
		s.line[offset&mask] = in[0][i]
		s.temp[0][i] = s.line[tap1&mask]
		feedback := s.line[tap2&mask]
		s.temp[1][i] = feedback
		s.line[offset&mask] += s.filter.ProcessOne(feedback) * s.feedGain
		offset++
		tap1++
		tap2++
	}
	s.offset = offset & mask

	for c := range s.gains {
		s.gains[c].mix(s.temp[c][:n], out, n, 0)
	}
}
