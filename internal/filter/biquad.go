// Package filter provides the IIR and FIR filters used on voice, effect and
// output paths: biquads, near-field compensation, band splitting and window
// design.
package filter

import (
	"math"
)

// BiquadType selects the response computed by SetParams.
type BiquadType int

const (
	// HighShelf boosts or cuts frequencies above the reference frequency.
	HighShelf BiquadType = iota
	// LowShelf boosts or cuts frequencies below the reference frequency.
	LowShelf
	// Peaking boosts or cuts a band around the reference frequency.
	Peaking
	// LowPass attenuates frequencies above the cutoff.
	LowPass
	// HighPass attenuates frequencies below the cutoff.
	HighPass
	// BandPass passes a band around the center frequency.
	BandPass
)

// String returns the filter type name.
func (t BiquadType) String() string {
	switch t {
	case HighShelf:
		return "HighShelf"
	case LowShelf:
		return "LowShelf"
	case Peaking:
		return "Peaking"
	case LowPass:
		return "LowPass"
	case HighPass:
		return "HighPass"
	case BandPass:
		return "BandPass"
	default:
		return "Unknown"
	}
}

// Biquad is a second-order IIR filter in Transposed Direct Form II.
//
// The two state registers z1 and z2 persist across Process calls and are only
// cleared by Clear; changing coefficients with SetParams keeps them so a
// filter can be retuned mid-stream without clicking.
type Biquad struct {
	z1, z2 float32
	b0     float32
	b1, b2 float32
	a1, a2 float32
}

// NewBiquad returns a pass-through filter.
func NewBiquad() Biquad {
	return Biquad{b0: 1}
}

// RcpQFromSlope calculates the reciprocal Q for a shelf filter from its gain
// and shelf slope. A slope of 1 is the steepest slope that does not overshoot.
func RcpQFromSlope(gain, slope float32) float32 {
	g := float64(gain)
	return float32(math.Sqrt((g+1/g)*(1/float64(slope)-1) + 2))
}

// RcpQFromBandwidth calculates the reciprocal Q from a normalized reference
// frequency and a bandwidth in octaves.
func RcpQFromBandwidth(f0norm, bandwidth float32) float32 {
	w0 := 2 * math.Pi * float64(f0norm)
	return float32(2 * math.Sinh(math.Ln2/2*float64(bandwidth)*w0/math.Sin(w0)))
}

// SetParams computes the filter coefficients.
//
// f0norm is the reference frequency divided by the sample rate and must be in
// (0, 0.5). gain is the linear gain at the reference frequency for shelf and
// peaking types and is ignored otherwise. rcpQ is the reciprocal of the
// filter's Q.
func (f *Biquad) SetParams(typ BiquadType, f0norm, gain, rcpQ float32) {
	g := math.Max(float64(gain), minBiquadGain)
	w0 := 2 * math.Pi * float64(f0norm)
	sinW0, cosW0 := math.Sincos(w0)
	alpha := sinW0 / 2 * float64(rcpQ)

	a := [3]float64{1, 0, 0}
	b := [3]float64{1, 0, 0}

	switch typ {
	case HighShelf:
		sqrtGainAlpha2 := 2 * math.Sqrt(g) * alpha
		b[0] = g * ((g + 1) + (g-1)*cosW0 + sqrtGainAlpha2)
		b[1] = -2 * g * ((g - 1) + (g+1)*cosW0)
		b[2] = g * ((g + 1) + (g-1)*cosW0 - sqrtGainAlpha2)
		a[0] = (g + 1) - (g-1)*cosW0 + sqrtGainAlpha2
		a[1] = 2 * ((g - 1) - (g+1)*cosW0)
		a[2] = (g + 1) - (g-1)*cosW0 - sqrtGainAlpha2
	case LowShelf:
		sqrtGainAlpha2 := 2 * math.Sqrt(g) * alpha
		b[0] = g * ((g + 1) - (g-1)*cosW0 + sqrtGainAlpha2)
		b[1] = 2 * g * ((g - 1) - (g+1)*cosW0)
		b[2] = g * ((g + 1) - (g-1)*cosW0 - sqrtGainAlpha2)
		a[0] = (g + 1) + (g-1)*cosW0 + sqrtGainAlpha2
		a[1] = -2 * ((g - 1) + (g+1)*cosW0)
		a[2] = (g + 1) + (g-1)*cosW0 - sqrtGainAlpha2
	case Peaking:
		g = math.Sqrt(g)
		b[0] = 1 + alpha*g
		b[1] = -2 * cosW0
		b[2] = 1 - alpha*g
		a[0] = 1 + alpha/g
		a[1] = -2 * cosW0
		a[2] = 1 - alpha/g
	case LowPass:
		b[0] = (1 - cosW0) / 2
		b[1] = 1 - cosW0
		b[2] = (1 - cosW0) / 2
		a[0] = 1 + alpha
		a[1] = -2 * cosW0
		a[2] = 1 - alpha
	case HighPass:
		b[0] = (1 + cosW0) / 2
		b[1] = -(1 + cosW0)
		b[2] = (1 + cosW0) / 2
		a[0] = 1 + alpha
		a[1] = -2 * cosW0
		a[2] = 1 - alpha
	case BandPass:
		b[0] = alpha
		b[1] = 0
		b[2] = -alpha
		a[0] = 1 + alpha
		a[1] = -2 * cosW0
		a[2] = 1 - alpha
	}

	f.a1 = float32(a[1] / a[0])
	f.a2 = float32(a[2] / a[0])
	f.b0 = float32(b[0] / a[0])
	f.b1 = float32(b[1] / a[0])
	f.b2 = float32(b[2] / a[0])
}

// SetParamsFromSlope sets shelf coefficients from a gain and shelf slope.
func (f *Biquad) SetParamsFromSlope(typ BiquadType, f0norm, gain, slope float32) {
	gain = max(gain, minBiquadGain)
	f.SetParams(typ, f0norm, gain, RcpQFromSlope(gain, slope))
}

// SetParamsFromBandwidth sets coefficients from a bandwidth in octaves.
func (f *Biquad) SetParamsFromBandwidth(typ BiquadType, f0norm, gain, bandwidth float32) {
	f.SetParams(typ, f0norm, gain, RcpQFromBandwidth(f0norm, bandwidth))
}

// CopyParamsFrom copies the coefficients of other without touching the
// state registers.
func (f *Biquad) CopyParamsFrom(other *Biquad) {
	f.b0, f.b1, f.b2 = other.b0, other.b1, other.b2
	f.a1, f.a2 = other.a1, other.a2
}

// Clear resets the state registers.
func (f *Biquad) Clear() {
	f.z1, f.z2 = 0, 0
}

// State returns the two state registers.
func (f *Biquad) State() (z1, z2 float32) {
	return f.z1, f.z2
}

// Process filters src into dst. dst and src may be the same slice; dst must
// be at least as long as src.
func (f *Biquad) Process(dst, src []float32) {
	b0, b1, b2 := f.b0, f.b1, f.b2
	a1, a2 := f.a1, f.a2
	z1, z2 := f.z1, f.z2

	dst = dst[:len(src)]
	for i, in := range src {
		out := in*b0 + z1
		z1 = in*b1 - out*a1 + z2
		z2 = in*b2 - out*a2
		dst[i] = out
	}

	f.z1, f.z2 = z1, z2
}

// ProcessOne filters a single sample.
func (f *Biquad) ProcessOne(in float32) float32 {
	out := in*f.b0 + f.z1
	f.z1 = in*f.b1 - out*f.a1 + f.z2
	f.z2 = in*f.b2 - out*f.a2
	return out
}

// DualProcess runs src through f and then through second, writing the result
// to dst. This is the band-pass composition of a low-pass and a high-pass
// stage: two chained biquads with independent state.
func (f *Biquad) DualProcess(second *Biquad, dst, src []float32) {
	var temp [bandPassChunk]float32
	for base := 0; base < len(src); {
		todo := min(bandPassChunk, len(src)-base)
		f.Process(temp[:todo], src[base:base+todo])
		second.Process(dst[base:base+todo], temp[:todo])
		base += todo
	}
}
