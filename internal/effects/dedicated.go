package effects

import (
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

const maxRealOut = 8

// dedicatedState routes the slot's W input straight to one speaker: the
// center channel for dialog, the LFE channel for low-frequency effects.
type dedicatedState struct {
	outTarget
	current [maxRealOut]float32
	target  [maxRealOut]float32
}

func (s *dedicatedState) DeviceUpdate(Device, *IRBuffer) {
	clear(s.current[:])
}

func (s *dedicatedState) Update(_ Device, gain float32, props Props, target Target) {
	p := props.(DedicatedProps)
	clear(s.target[:])
	gain *= p.Gain

	if p.LFE {
		s.out = target.Main.Buffer
		if target.RealOut != nil {
			if idx := target.RealOut.ChannelIndex(panning.LFE); idx >= 0 && idx < maxRealOut {
				s.out = target.RealOut.Buffer
				s.target[idx] = gain
			}
		}
		return
	}

	// Dialog prefers a real center speaker and pans to the front otherwise.
	if target.RealOut != nil {
		if idx := target.RealOut.ChannelIndex(panning.FrontCenter); idx >= 0 && idx < maxRealOut {
			s.out = target.RealOut.Buffer
			s.target[idx] = gain
			return
		}
	}
	s.out = target.Main.Buffer
	target.Main.PanGains(frontCoeffs, gain, s.target[:])
}

func (s *dedicatedState) Process(n int, in, out [][]float32) {
	k := min(len(out), maxRealOut)
	simdops.Mix(in[0][:n], out[:k], s.current[:k], s.target[:k], n, 0)
}
