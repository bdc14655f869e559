package mathutil

import "math"

// Vector is a homogeneous 3D vector; W is 1 for points and 0 for directions.
type Vector [4]float32

// Dot returns the 3-component dot product.
func (v Vector) Dot(o Vector) float32 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Cross returns the 3-component cross product with W = 0.
func (v Vector) Cross(o Vector) Vector {
	return Vector{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
		0,
	}
}

// Length returns the 3-component magnitude.
func (v Vector) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize scales v to unit length in place and returns its former length.
// Vectors with no length are left untouched and report 0.
func (v *Vector) Normalize() float32 {
	length := v.Length()
	if length > 0 {
		inv := 1 / length
		v[0] *= inv
		v[1] *= inv
		v[2] *= inv
	}
	return length
}

// Add returns v + o over the first three components.
func (v Vector) Add(o Vector) Vector {
	return Vector{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3]}
}

// Matrix is a row-major 4x4 transform applied to row vectors.
type Matrix [4][4]float32

// IdentityMatrix returns the identity transform.
func IdentityMatrix() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// SetRow replaces row r.
func (m *Matrix) SetRow(r int, a, b, c, d float32) {
	m[r] = [4]float32{a, b, c, d}
}

// MulVector transforms v by m (v treated as a row vector).
func (m *Matrix) MulVector(v Vector) Vector {
	return Vector{
		v[0]*m[0][0] + v[1]*m[1][0] + v[2]*m[2][0] + v[3]*m[3][0],
		v[0]*m[0][1] + v[1]*m[1][1] + v[2]*m[2][1] + v[3]*m[3][1],
		v[0]*m[0][2] + v[1]*m[1][2] + v[2]*m[2][2] + v[3]*m[3][2],
		v[0]*m[0][3] + v[1]*m[1][3] + v[2]*m[2][3] + v[3]*m[3][3],
	}
}
