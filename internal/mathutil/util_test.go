package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPowerOf2(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {255, 256}, {256, 256}, {257, 512},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPowerOf2(tt.in), "NextPowerOf2(%d)", tt.in)
	}
}

func TestLerpClamp(t *testing.T) {
	assert.InDelta(t, 2.5, Lerp(2.0, 3.0, 0.5), 1e-12)
	assert.Equal(t, float32(1), Lerp[float32](1, 5, 0))
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(-1), Clamp[float32](-4, -1, 1))
}

func TestVectorOps(t *testing.T) {
	x := Vector{1, 0, 0, 0}
	y := Vector{0, 1, 0, 0}
	assert.Equal(t, Vector{0, 0, 1, 0}, x.Cross(y))
	assert.Zero(t, x.Dot(y))

	v := Vector{3, 0, 4, 0}
	length := v.Normalize()
	assert.InDelta(t, 5, length, 1e-6)
	assert.InDelta(t, 1, v.Length(), 1e-6)

	var zero Vector
	assert.Zero(t, zero.Normalize())
}

func TestMatrixMulVector(t *testing.T) {
	m := IdentityMatrix()
	m.SetRow(3, -1, -2, -3, 1)

	p := m.MulVector(Vector{1, 2, 3, 1})
	assert.Equal(t, Vector{0, 0, 0, 1}, p, "translation applies to points")

	d := m.MulVector(Vector{1, 2, 3, 0})
	assert.Equal(t, Vector{1, 2, 3, 0}, d, "translation ignores directions")
}

func TestCubic(t *testing.T) {
	assert.InDelta(t, 2, Cubic(1, 2, 3, 4, 0), 1e-6, "mu 0 returns y1")
	assert.InDelta(t, 3, Cubic(1, 2, 3, 4, 1), 1e-6, "mu 1 returns y2")
	assert.InDelta(t, 2.5, Cubic(1, 2, 3, 4, 0.5), 1e-6, "linear data stays linear")
	assert.InDelta(t, 1, Cubic(1, 1, 1, 1, 0.3), 1e-6, "constant data stays constant")
}

func TestGcd(t *testing.T) {
	assert.Equal(t, 300, Gcd(44100, 48000))
	assert.Equal(t, 48000, Gcd(48000, 48000))
	assert.Equal(t, 1, Gcd(7, 5))
}
