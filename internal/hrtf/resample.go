package hrtf

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// Resample returns a copy of s converted to rate. Responses are filtered
// with the bsinc24 kernel and scaled so their frequency response keeps its
// level; delays are scaled and clamped. s is returned unchanged when the
// rates already match.
//
// The kernel rings ahead of the onset at sample 0. That lead-in is rendered
// too and folded into the first coefficient, so the response keeps its DC
// level without moving its onset.
func (s *Store) Resample(rate uint32) *Store {
	if rate == s.SampleRate || rate == 0 {
		return s
	}
	ratio := float64(rate) / float64(s.SampleRate)
	inc := uint32(min(float64(s.SampleRate)/float64(rate)*resample.FracOne, math.MaxUint32))
	irSize := min(int(math.Ceil(float64(s.IRSize)*ratio)), IRLength)
	irSize = max(irSize, MinIRLength)
	gain := float32(1 / ratio)

	// Start lead output samples before source position 0.
	lead := int(math.Ceil(resample.MaxEdge * max(ratio, 1)))
	back := uint64(lead) * uint64(inc)
	pad := int((back + resample.FracMask) >> resample.FracBits)
	frac := uint32(uint64(pad)<<resample.FracBits - back)

	r := resample.New(resample.BSinc24, inc)
	srcLen := resample.MaxEdge + resample.LastPosition(lead+irSize, frac, inc) + resample.MaxEdge + 1
	srcLen = max(srcLen, resample.MaxEdge+pad+s.IRSize)
	src := make([]float32, srcLen)
	dst := make([]float32, lead+irSize)

	out := &Store{
		Name:       s.Name,
		SampleRate: rate,
		IRSize:     irSize,
		Fields:     append([]Field(nil), s.Fields...),
		Elevs:      append([]Elevation(nil), s.Elevs...),
		Coeffs:     make([]IR, len(s.Coeffs)),
		Delays:     make([][2]uint8, len(s.Delays)),
	}
	for i := range s.Coeffs {
		for ear := range 2 {
			clear(src)
			for k := range s.IRSize {
				src[resample.MaxEdge+pad+k] = s.Coeffs[i][k][ear]
			}
			r.Resample(src, frac, inc, dst)
			ir := dst[lead:]
			for _, v := range dst[:lead] {
				ir[0] += v
			}
			for k, v := range ir {
				out.Coeffs[i][k][ear] = v * gain
			}
			d := math.Round(float64(s.Delays[i][ear]) * ratio)
			out.Delays[i][ear] = uint8(min(d, MaxDelay*DelayFracOne))
		}
	}
	return out
}
