package panning

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

// AmbiChannels is the number of first-order ambisonic components.
const AmbiChannels = 4

// Coeffs holds first-order ambisonic gains in ACN order (W, Y, Z, X) with
// N3D normalization.
type Coeffs [AmbiChannels]float32

const sqrt3 = 1.732050808

// CalcDirectionCoeffs returns the coefficients for a unit direction in
// listener space (+X right, +Y up, -Z front). spread is the angle in
// radians the source subtends; the gain is compensated so loudness does not
// depend on it.
func CalcDirectionCoeffs(x, y, z, spread float32) Coeffs {
	// Listener space to ambisonic axes.
	ax, ay, az := -z, -x, y

	c := Coeffs{1, sqrt3 * ay, sqrt3 * az, sqrt3 * ax}
	if spread > 0 {
		ca := float32(math.Cos(float64(spread) * 0.5))
		// Up to +3dB for a full spread.
		scale := float32(math.Sqrt(1 + float64(spread)/(2*math.Pi)))
		zh0 := scale
		zh1 := 0.5 * (ca + 1) * scale
		c[0] *= zh0
		c[1] *= zh1
		c[2] *= zh1
		c[3] *= zh1
	}
	return c
}

// CalcAngleCoeffs returns the coefficients for an azimuth (negative left)
// and elevation, both in radians.
func CalcAngleCoeffs(azimuth, elevation, spread float32) Coeffs {
	az, el := float64(azimuth), float64(elevation)
	x := float32(math.Sin(az) * math.Cos(el))
	y := float32(math.Sin(el))
	z := float32(-math.Cos(az) * math.Cos(el))
	return CalcDirectionCoeffs(x, y, z, spread)
}

// Unit returns coefficients selecting a single ambisonic component.
func Unit(acn int) Coeffs {
	var c Coeffs
	c[acn] = 1
	return c
}

// FuMa to N3D conversion for first-order B-Format input, indexed by FuMa
// channel (W, X, Y, Z).
var (
	fumaToACN  = [AmbiChannels]int{0, 3, 1, 2}
	fumaToN3D  = [AmbiChannels]float32{math.Sqrt2, sqrt3, sqrt3, sqrt3}
	maxREOrder = [2]float32{0.707106781, 0.577350269} // 2D, 3D
)

// FuMaChannel returns the ACN index and N3D scale for FuMa channel i.
func FuMaChannel(i int) (acn int, scale float32) {
	return fumaToACN[i], fumaToN3D[i]
}

// RotateFOA rotates first-order coefficients by a matrix given in listener
// space (rows are the transformed x, y and z axes).
func RotateFOA(c Coeffs, m *mathutil.Matrix) Coeffs {
	// Ambisonic (x, y, z) = listener (-z, -x, y).
	lx, ly, lz := -c[1], c[2], -c[3]
	v := m.MulVector(mathutil.Vector{lx, ly, lz, 0})
	return Coeffs{c[0], -v[0], v[1], -v[2]}
}

// HFOrderScale returns the high-frequency gain applied to first-order
// components of a horizontal-only input mixed onto a full-sphere output.
func HFOrderScale(input3D, output3D bool) float32 {
	if input3D == output3D {
		return 1
	}
	if output3D {
		return maxREOrder[1] / maxREOrder[0]
	}
	return maxREOrder[0] / maxREOrder[1]
}
