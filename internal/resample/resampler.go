// Package resample implements the fixed-point interpolating resamplers used
// by voices: point, linear, cubic, and band-limited sinc.
//
// All kernels read from a source window whose element MaxEdge is the sample
// at the current integer position. Up to MaxEdge-1 samples before it and
// MaxEdge samples after it may be read, so callers keep that much history
// and right padding around the data they load. CheckPadding validates a
// window before use.
package resample

import (
	"fmt"
	"strings"

	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// Kind selects an interpolation kernel.
type Kind uint8

// Available kernels, from cheapest to best.
const (
	Point Kind = iota
	Linear
	Cubic
	FastBSinc12
	BSinc12
	FastBSinc24
	BSinc24
)

// DefaultKind is used when no resampler is configured.
const DefaultKind = Cubic

var kindNames = [...]string{
	Point:       "point",
	Linear:      "linear",
	Cubic:       "cubic",
	FastBSinc12: "fast_bsinc12",
	BSinc12:     "bsinc12",
	FastBSinc24: "fast_bsinc24",
	BSinc24:     "bsinc24",
}

var kindDescriptions = [...]string{
	Point:       "Nearest",
	Linear:      "Linear",
	Cubic:       "Cubic",
	FastBSinc12: "11th order Sinc (fast)",
	BSinc12:     "11th order Sinc",
	FastBSinc24: "23rd order Sinc (fast)",
	BSinc24:     "23rd order Sinc",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Description returns a human readable name for the kernel.
func (k Kind) Description() string {
	if int(k) < len(kindDescriptions) {
		return kindDescriptions[k]
	}
	return k.String()
}

// Valid reports whether k names a known kernel.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// Kinds returns every kernel in quality order.
func Kinds() []Kind {
	return []Kind{Point, Linear, Cubic, FastBSinc12, BSinc12, FastBSinc24, BSinc24}
}

// ParseKind parses a configuration name such as "bsinc24".
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	// Older configuration names.
	switch name {
	case "sinc4", "sinc8", "bsinc":
		return BSinc12, nil
	case "fast_bsinc":
		return FastBSinc12, nil
	case "spline", "gaussian":
		return Cubic, nil
	}
	return Point, fmt.Errorf("unknown resampler %q", s)
}

// Resampler is a prepared kernel. The zero value is a point resampler.
type Resampler struct {
	kind  Kind
	full  bool // bsinc with scale interpolation
	bsinc bsincState
	dot   func(a, b []float32) float32
}

// New returns a resampler of the given kind prepared for increment.
func New(kind Kind, increment uint32) Resampler {
	var r Resampler
	r.Prepare(kind, increment)
	return r
}

// Kind returns the kernel this resampler was prepared with.
func (r *Resampler) Kind() Kind {
	return r.kind
}

// Prepare selects the filter for a playback increment. It must be called
// again whenever the increment changes.
func (r *Resampler) Prepare(kind Kind, increment uint32) {
	r.kind = kind
	r.full = false
	r.dot = simdops.Default().Dot

	switch kind {
	case FastBSinc12, BSinc12:
		r.bsinc.prepare(increment, bsinc12())
	case FastBSinc24, BSinc24:
		r.bsinc.prepare(increment, bsinc24())
	default:
		return
	}
	// The fast variants skip scale interpolation, which only matters when
	// downsampling.
	r.full = kind == BSinc12 || kind == BSinc24 || increment > FracOne
}

// Resample fills dst from src starting frac/FracOne past src[MaxEdge] and
// stepping increment/FracOne source samples per output sample. A unity
// increment with no phase offset copies samples directly.
func (r *Resampler) Resample(src []float32, frac, increment uint32, dst []float32) {
	if increment == FracOne && frac == 0 {
		copy(dst, src[MaxEdge:MaxEdge+len(dst)])
		return
	}

	switch r.kind {
	case Linear:
		resampleLinear(src[MaxEdge:], frac, increment, dst)
	case Cubic:
		resampleCubic(src[MaxEdge-1:], frac, increment, dst)
	case FastBSinc12, FastBSinc24, BSinc12, BSinc24:
		if r.bsinc.filter == nil {
			panic("resample: bsinc resampler used before Prepare")
		}
		r.resampleBSinc(src[MaxEdge-r.bsinc.l:], frac, increment, dst)
	default:
		resamplePoint(src[MaxEdge:], frac, increment, dst)
	}
}

func resamplePoint(src []float32, frac, increment uint32, dst []float32) {
	pos := 0
	for i := range dst {
		dst[i] = src[pos]
		frac += increment
		pos += int(frac >> FracBits)
		frac &= FracMask
	}
}

func resampleLinear(src []float32, frac, increment uint32, dst []float32) {
	pos := 0
	for i := range dst {
		mu := float32(frac) * fracScale
		dst[i] = src[pos] + (src[pos+1]-src[pos])*mu
		frac += increment
		pos += int(frac >> FracBits)
		frac &= FracMask
	}
}

// resampleCubic uses 4-point Catmull-Rom interpolation; src[0] is the
// sample before the current one.
func resampleCubic(src []float32, frac, increment uint32, dst []float32) {
	pos := 0
	for i := range dst {
		y0, y1, y2, y3 := src[pos], src[pos+1], src[pos+2], src[pos+3]
		x := float32(frac) * fracScale

		coefA := -hermiteCoeff0_5*y0 + hermiteCoeff1_5*y1 - hermiteCoeff1_5*y2 + hermiteCoeff0_5*y3
		coefB := y0 - hermiteCoeff2_5*y1 + 2*y2 - hermiteCoeff0_5*y3
		coefC := -hermiteCoeff0_5*y0 + hermiteCoeff0_5*y2
		dst[i] = ((coefA*x+coefB)*x+coefC)*x + y1

		frac += increment
		pos += int(frac >> FracBits)
		frac &= FracMask
	}
}

// resampleBSinc applies the phase (and, for the full variants, scale)
// interpolated sinc filter. src[0] is l samples before the current one.
func (r *Resampler) resampleBSinc(src []float32, frac, increment uint32, dst []float32) {
	m := r.bsinc.m
	sf := r.bsinc.sf
	filter := r.bsinc.filter
	scaleOffset := bsincPhaseCount * 2 * m
	dot := r.dot

	pos := 0
	for i := range dst {
		pi := int(frac >> bsincPhaseDiffBits)
		pf := float32(frac&bsincPhaseDiffMask) * (1.0 / bsincPhaseDiffOne)

		vals := src[pos : pos+m]
		fil := filter[2*pi*m : 2*pi*m+m]
		phd := filter[2*pi*m+m : 2*pi*m+2*m]

		out := dot(fil, vals) + pf*dot(phd, vals)
		if r.full {
			scd := filter[scaleOffset+2*pi*m : scaleOffset+2*pi*m+m]
			spd := filter[scaleOffset+2*pi*m+m : scaleOffset+2*pi*m+2*m]
			out += sf*dot(scd, vals) + pf*sf*dot(spd, vals)
		}
		dst[i] = out

		frac += increment
		pos += int(frac >> FracBits)
		frac &= FracMask
	}
}
