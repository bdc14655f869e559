package panning

import "math"

// Basic first-order projection weights for a horizontal and a full-sphere
// array.
const (
	order1Weight2D = 2 / sqrt3
	order1Weight3D = sqrt3
)

// stereoRows is the two-channel first-order decoder: mostly W and Y with a
// little X so frontal sources are favoured.
var stereoRows = []Coeffs{
	{0.5, 0.288675135, 0, 0.0552305643},
	{0.5, -0.288675135, 0, 0.0552305643},
}

// ProjectionRows builds a decoder for speakers at the given unit directions
// in listener space. Each row, dotted with the coefficients of a direction,
// yields that speaker's gain.
func ProjectionRows(dirs [][3]float32, fullSphere bool) []Coeffs {
	w := float32(order1Weight2D)
	if fullSphere {
		w = order1Weight3D
	}
	n := float32(len(dirs))
	rows := make([]Coeffs, len(dirs))
	for i, d := range dirs {
		ax, ay, az := -d[2], -d[0], d[1]
		rows[i] = Coeffs{1 / n, w * ay / n, w * az / n, w * ax / n}
	}
	return rows
}

// DecoderRows returns the first-order decoding matrix for l, one row per
// output channel. The LFE row is zero. For Ambi1 the matrix is identity.
func DecoderRows(l Layout) []Coeffs {
	switch l {
	case Mono:
		return []Coeffs{{1, 0, 0, 0}}
	case Stereo:
		return append([]Coeffs(nil), stereoRows...)
	case Ambi1:
		return []Coeffs{Unit(0), Unit(1), Unit(2), Unit(3)}
	}
	speakers := l.Speakers()
	var dirs [][3]float32
	for _, s := range speakers {
		if s.Channel == LFE {
			continue
		}
		az := float64(s.Azimuth) * math.Pi / 180
		dirs = append(dirs, [3]float32{float32(math.Sin(az)), 0, float32(-math.Cos(az))})
	}
	proj := ProjectionRows(dirs, false)
	rows := make([]Coeffs, len(speakers))
	j := 0
	for i, s := range speakers {
		if s.Channel == LFE {
			continue
		}
		rows[i] = proj[j]
		j++
	}
	return rows
}

// Dot returns the gain a decoder row applies to a direction's coefficients.
func (c Coeffs) Dot(o Coeffs) float32 {
	return c[0]*o[0] + c[1]*o[1] + c[2]*o[2] + c[3]*o[3]
}
