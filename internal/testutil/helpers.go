// Package testutil provides reusable test helpers and signal generators for
// the mixer's DSP tests.
package testutil

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance   = 1e-10
	Float32Tolerance   = 1e-6
	MagnitudeTolerance = 1e-2
)

// noiseSeed keeps generated noise reproducible across runs.
const noiseSeed = 0x5eed

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		f := float64(v)
		if math.IsNaN(f) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(f, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [min, max].
func AssertAllInRange(t *testing.T, s []float32, minVal, maxVal float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertAllZero verifies that every element is exactly zero.
func AssertAllZero(t *testing.T, s []float32, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v != 0 {
			return assert.Fail(t, "non-zero sample", "s[%d]=%g", i, v)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// Sine returns n samples of a sine wave at freq Hz sampled at rate Hz.
func Sine(n int, freq, rate, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

// WhiteNoise returns n uniformly distributed samples in [-amplitude, amplitude).
func WhiteNoise(n int, amplitude float64) []float32 {
	rng := rand.New(rand.NewPCG(noiseSeed, noiseSeed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * (rng.Float64()*2 - 1))
	}
	return out
}

// Impulse returns n samples holding a unit impulse at index at.
func Impulse(n, at int) []float32 {
	out := make([]float32, n)
	if at >= 0 && at < n {
		out[at] = 1
	}
	return out
}

// ToFloat64 widens a float32 slice.
func ToFloat64(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

// RMS returns the root-mean-square level of s.
func RMS(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}
	d := ToFloat64(s)
	return math.Sqrt(floats.Dot(d, d) / float64(len(d)))
}

// Peak returns the largest absolute sample value.
func Peak(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}
	d := ToFloat64(s)
	return math.Max(floats.Max(d), -floats.Min(d))
}

// SpectralPeak returns the frequency in Hz of the strongest FFT bin of s,
// along with the bin spacing in Hz.
func SpectralPeak(s []float32, rate float64) (freq, binWidth float64) {
	n := len(s)
	if n == 0 {
		return 0, 0
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, ToFloat64(s))

	best, bestMag := 0, 0.0
	for i := 1; i < len(coeffs); i++ {
		re, im := real(coeffs[i]), imag(coeffs[i])
		if mag := re*re + im*im; mag > bestMag {
			best, bestMag = i, mag
		}
	}
	binWidth = rate / float64(n)
	return float64(best) * binWidth, binWidth
}

// MaxStep returns the largest absolute difference between adjacent samples.
func MaxStep(s []float32) float64 {
	var worst float64
	for i := 1; i < len(s); i++ {
		worst = math.Max(worst, math.Abs(float64(s[i]-s[i-1])))
	}
	return worst
}
