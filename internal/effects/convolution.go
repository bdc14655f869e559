package effects

import (
	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/engine"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// convolutionState convolves the omni wet line with an impulse response
// loaded from a buffer. Each response channel is panned like the buffer's
// channel would be, or straight onto its ambisonic component for
// B-Format responses.
type convolutionState struct {
	outTarget

	conv     *engine.Convolver
	channels convert.Channels
	gains    []chanGains
	lines    [][]float32
	view     [][]float32
}

// Speaker responses sit further out than regular playback positions.
var convolutionAzimuths = map[convert.Channels][]float32{
	convert.Stereo: {-45, 45},
	convert.Rear:   {-135, 135},
}

func (s *convolutionState) DeviceUpdate(dev Device, buf *IRBuffer) {
	s.conv = nil
	s.gains = nil
	s.lines = nil
	s.view = nil
	if buf == nil || len(buf.Samples) == 0 || buf.Frequency <= 0 {
		return
	}

	var pp *engine.Polyphase
	if buf.Frequency != dev.Frequency {
		var err error
		if pp, err = engine.NewPolyphase(buf.Frequency, dev.Frequency); err != nil {
			return
		}
	}

	responses := make([][]float64, len(buf.Samples))
	for c, line := range buf.Samples {
		src := make([]float64, len(line))
		for i, v := range line {
			src[i] = float64(v)
		}
		if pp != nil {
			dst := make([]float64, pp.OutputLen(len(src)))
			pp.Process(dst, src)
			src = dst
		}
		responses[c] = src
	}

	s.conv = engine.NewConvolver(responses)
	if s.conv == nil {
		return
	}
	s.channels = buf.Channels
	s.gains = make([]chanGains, len(responses))
	s.lines = make([][]float32, len(responses))
	s.view = make([][]float32, len(responses))
	for i := range s.lines {
		s.lines[i] = make([]float32, resample.BufferLineSize)
	}
}

func (s *convolutionState) Update(_ Device, gain float32, props Props, target Target) {
	s.out = target.Main.Buffer
	if s.conv == nil {
		return
	}
	p := props.(ConvolutionProps)
	for i := range s.gains {
		clear(s.gains[i].target[:])
	}

	if s.channels.IsAmbisonic() {
		rot := orientMatrix(p.OrientAt, p.OrientUp)
		for c := range s.gains {
			acn, scale := panning.FuMaChannel(c)
			var coeffs panning.Coeffs
			coeffs[acn] = scale
			coeffs = panning.RotateFOA(coeffs, &rot)
			target.Main.PanGains(coeffs, gain, s.gains[c].target[:])
		}
		return
	}

	inputs := panning.InputMap(s.channels)
	override := convolutionAzimuths[s.channels]
	for c := range s.gains {
		if c >= len(inputs) || inputs[c].Channel == panning.LFE {
			continue
		}
		az := inputs[c].Azimuth
		if override != nil {
			az = override[c]
		}
		coeffs := panning.CalcAngleCoeffs(mathutil.Deg2Rad(az), mathutil.Deg2Rad(inputs[c].Elevation), 0)
		target.Main.PanGains(coeffs, gain, s.gains[c].target[:])
	}
}

// orientMatrix maps the response's front and up onto at and up.
func orientMatrix(at, up [3]float32) mathutil.Matrix {
	fwd := mathutil.Vector{at[0], at[1], at[2], 0}
	u := mathutil.Vector{up[0], up[1], up[2], 0}
	if fwd.Normalize() == 0 || u.Normalize() == 0 {
		return mathutil.IdentityMatrix()
	}
	right := fwd.Cross(u)
	if right.Normalize() == 0 {
		return mathutil.IdentityMatrix()
	}
	// Re-derive up so the basis stays orthonormal.
	u = right.Cross(fwd)

	m := mathutil.IdentityMatrix()
	m.SetRow(0, right[0], right[1], right[2], 0)
	m.SetRow(1, u[0], u[1], u[2], 0)
	m.SetRow(2, -fwd[0], -fwd[1], -fwd[2], 0)
	return m
}

func (s *convolutionState) Process(n int, in, out [][]float32) {
	if s.conv == nil {
		return
	}
	for i, l := range s.lines {
		s.view[i] = l[:n]
	}
	s.conv.Process(in[0][:n], s.view)
	for c := range s.gains {
		s.gains[c].mix(s.view[c], out, n, 0)
	}
}
