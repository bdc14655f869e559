package mathutil

import "math/bits"

// Float is the type constraint for supported floating-point types.
type Float interface {
	float32 | float64
}

// Lerp interpolates linearly between a and b by mu.
func Lerp[F Float](a, b, mu F) F {
	return a + (b-a)*mu
}

// Clamp limits v to [lo, hi].
func Clamp[T Float | ~int | ~int32 | ~uint32](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// NextPowerOf2 returns the smallest power of two that is >= v. Zero maps to 1.
func NextPowerOf2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float32) float32 {
	return deg * (piF32 / 180)
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float32) float32 {
	return rad * (180 / piF32)
}

const piF32 = float32(3.14159265358979323846)

// Cubic interpolates between y1 and y2 by mu with a Catmull-Rom spline over
// the four points y0..y3.
func Cubic(y0, y1, y2, y3, mu float32) float32 {
	mu2 := mu * mu
	mu3 := mu2 * mu
	a0 := -0.5*mu3 + mu2 - 0.5*mu
	a1 := 1.5*mu3 - 2.5*mu2 + 1
	a2 := -1.5*mu3 + 2*mu2 + 0.5*mu
	a3 := 0.5*mu3 - 0.5*mu2
	return y0*a0 + y1*a1 + y2*a2 + y3*a3
}

// Gcd returns the greatest common divisor of a and b.
func Gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
