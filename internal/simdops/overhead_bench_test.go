package simdops

import (
	"testing"

	"github.com/tphakala/simd/f32"
)

// BenchmarkDirectDot is the baseline without the table.
func BenchmarkDirectDot(b *testing.B) {
	a := make([]float32, 48) // bsinc24 filter length
	c := make([]float32, 48)
	for i := range a {
		a[i] = float32(i) * 0.01
		c[i] = float32(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = f32.DotProductUnsafe(a, c)
	}
}

// BenchmarkKernelDot measures the call through the kernel table, which is
// how the bsinc resampler reaches it.
func BenchmarkKernelDot(b *testing.B) {
	k := Default()
	a := make([]float32, 48)
	c := make([]float32, 48)
	for i := range a {
		a[i] = float32(i) * 0.01
		c[i] = float32(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = k.Dot(a, c)
	}
}

func BenchmarkMixStereo(b *testing.B) {
	in := make([]float32, 1024)
	for i := range in {
		in[i] = float32(i%64) / 64
	}
	out := [][]float32{make([]float32, 1024), make([]float32, 1024)}
	cur := []float32{0, 0}
	target := []float32{0.7, 0.3}

	b.ReportAllocs()
	for b.Loop() {
		cur[0], cur[1] = 0, 0
		Mix(in, out, cur, target, 64, 0)
	}
}
