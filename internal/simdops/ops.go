// Package simdops routes the mixer's inner loops to SIMD kernels and
// provides the gain-fading mix primitives voices and effects write through.
package simdops

import "github.com/tphakala/simd/f32"

// Kernels holds the SIMD routines the hot paths call. Resamplers and the
// HRTF mixer keep a pointer so the indirection is resolved once per voice.
type Kernels struct {
	// Dot returns sum(a[i]*b[i]). a and b must have equal length.
	Dot func(a, b []float32) float32

	// ConvolveValid writes dst[i] = sum(signal[i+k] * kernel[k]) for every
	// position where the kernel fits inside signal.
	ConvolveValid func(dst, signal, kernel []float32)

	// Interleave2 writes a[0], b[0], a[1], b[1], ... into dst.
	Interleave2 func(dst, a, b []float32)
}

var kernels = Kernels{
	Dot:           f32.DotProductUnsafe,
	ConvolveValid: f32.ConvolveValid,
	Interleave2:   f32.Interleave2,
}

// Default returns the kernels for the running CPU. The simd package picks
// the implementation at init.
func Default() *Kernels {
	return &kernels
}
