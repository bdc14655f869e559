package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

// ErrInvalidFilter is returned for FIR design parameters out of range.
var ErrInvalidFilter = errors.New("invalid filter parameters")

// KaiserWindow generates a Kaiser window of the specified length and β parameter.
//
// The window is symmetric (w[i] = w[length-1-i]) and peaks at 1 in the center.
// Lengths below 1 return an empty window.
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}

	window := make([]float64, length)
	if length == 1 {
		window[0] = sincCenterTap
		return window
	}

	alpha := float64(length-1) / windowNormalizationFactor
	i0Beta := mathutil.BesselI0(beta)
	for n := range length {
		window[n] = mathutil.Kaiser(beta, (float64(n)-alpha)/alpha, i0Beta)
	}
	return window
}

// HannWindow generates a symmetric Hann window sin²(πi/(N-1)).
func HannWindow(length int) []float64 {
	window := make([]float64, length)
	if length == 1 {
		window[0] = 1
		return window
	}
	scale := math.Pi / float64(length-1)
	for i := range window {
		s := math.Sin(float64(i) * scale)
		window[i] = s * s
	}
	return window
}

// FIRParams holds parameters for windowed-sinc low-pass design.
type FIRParams struct {
	// NumTaps is the filter length; odd lengths give an integer group delay.
	NumTaps int

	// CutoffFreq is the normalized cutoff frequency (0 to 0.5).
	CutoffFreq float64

	// Attenuation is the desired stopband attenuation in dB.
	Attenuation float64

	// Gain is the DC gain of the designed filter.
	Gain float64
}

// Validate checks if filter parameters are valid.
func (fp *FIRParams) Validate() error {
	if fp.NumTaps < minFilterTaps || fp.NumTaps > maxFilterTaps {
		return fmt.Errorf("%w: %d taps (must be in [%d, %d])",
			ErrInvalidFilter, fp.NumTaps, minFilterTaps, maxFilterTaps)
	}
	if fp.CutoffFreq <= 0 || fp.CutoffFreq >= 0.5 {
		return fmt.Errorf("%w: cutoff %f (must be in (0, 0.5))", ErrInvalidFilter, fp.CutoffFreq)
	}
	if fp.Attenuation < 0 {
		return fmt.Errorf("%w: attenuation %f dB", ErrInvalidFilter, fp.Attenuation)
	}
	if fp.Gain <= 0 {
		return fmt.Errorf("%w: gain %f", ErrInvalidFilter, fp.Gain)
	}
	return nil
}

// DesignLowPass designs a Kaiser-windowed sinc low-pass FIR filter normalized
// to the requested DC gain.
func DesignLowPass(params FIRParams) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	beta := mathutil.KaiserBeta(params.Attenuation)
	window := KaiserWindow(params.NumTaps, beta)

	taps := make([]float64, params.NumTaps)
	center := float64(params.NumTaps-1) / windowNormalizationFactor
	cutoff2 := windowNormalizationFactor * params.CutoffFreq
	for n := range taps {
		x := float64(n) - center
		taps[n] = cutoff2 * mathutil.Sinc(cutoff2*x) * window[n]
	}

	if sum := f64.Sum(taps); math.Abs(sum) > sincZeroThreshold {
		f64.Scale(taps, taps, params.Gain/sum)
	}
	return taps, nil
}
