// Package mathutil provides the scalar and vector math shared by the mixer's
// DSP packages.
package mathutil

import (
	"math"
)

// BesselI0 computes the modified Bessel function of the first kind, order zero: I₀(x).
// It is used for Kaiser window calculation in resampler filter design.
//
// The value is evaluated with the power series
//
//	I₀(x) = Σ ((x/2)^k / k!)²
//
// which converges quickly for the window arguments the mixer needs (|x| < 40)
// and is accurate to double precision there.
func BesselI0(x float64) float64 {
	halfX := x / halfDivisor
	sum := 1.0
	term := 1.0
	for k := 1; k < besselMaxTerms; k++ {
		y := halfX / float64(k)
		term *= y * y
		sum += term
		if term < sum*besselEpsilon {
			break
		}
	}
	return sum
}

// KaiserBeta computes the Kaiser window β parameter from the desired
// stopband attenuation (rejection) in decibels.
//
// Formula from Kaiser & Schafer:
//   - For att > 50 dB: β = 0.1102 * (att - 8.7)
//   - For 21 dB ≤ att ≤ 50 dB: β = 0.5842 * (att - 21)^0.4 + 0.07886 * (att - 21)
//   - For att < 21 dB: β = 0
func KaiserBeta(attenuation float64) float64 {
	if attenuation > kaiserAttHigh {
		return kaiserBetaHighCoeff1 * (attenuation - kaiserBetaHighOffset)
	} else if attenuation >= kaiserAttMedium {
		delta := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(delta, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*delta
	}
	return 0.0
}

// KaiserTransitionWidth returns the normalized transition width achieved by
// a Kaiser-windowed filter of the given order at the given rejection.
func KaiserTransitionWidth(attenuation float64, order int) float64 {
	return (attenuation - kaiserWidthOffset) / (kaiserWidthMultiplier * 2 * math.Pi * float64(order))
}

// Kaiser evaluates the Kaiser window at position k in [-1, 1]. besselBeta
// must be BesselI0(beta); it is passed in so table generation can compute it
// once. Positions outside [-1, 1] return 0.
func Kaiser(beta, k, besselBeta float64) float64 {
	if k < -1 || k > 1 {
		return 0
	}
	return BesselI0(beta*math.Sqrt(1-k*k)) / besselBeta
}

// Sinc is the normalized sinc function sin(πx)/(πx).
func Sinc(x float64) float64 {
	if math.Abs(x) < sincZeroThreshold {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
