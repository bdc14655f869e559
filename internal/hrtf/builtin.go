package hrtf

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Spherical head model parameters.
const (
	headRadius   = 0.0875 // meters
	speedOfSound = 343.3  // meters per second

	builtinEvCount = 19 // 10 degree rings, pole to pole
	builtinAzSteps = 36 // responses on the horizontal ring
	builtinIRSize  = 32

	// Keeps responses inside the 16-bit range MHR files store.
	builtinGain = 0.5

	// BuiltinName identifies the synthesized dataset.
	BuiltinName = "Built-In Spherical Head"
)

// Builtin synthesizes a dataset for the given sample rate from a rigid
// spherical head: interaural delays from the Woodworth formula and a
// first-order head-shadow shelf per ear. Rings are built concurrently.
func Builtin(rate uint32) (*Store, error) {
	if rate == 0 {
		return nil, fmt.Errorf("%w: sample rate 0", ErrInvalidData)
	}
	elevs := make([]Elevation, builtinEvCount)
	offset := 0
	for i := range elevs {
		el := elevationOf(i)
		az := int(math.Round(builtinAzSteps * math.Cos(el)))
		elevs[i] = Elevation{AzCount: max(az, 1), IROffset: offset}
		offset += elevs[i].AzCount
	}

	coeffs := make([]IR, offset)
	delays := make([][2]uint8, offset)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range elevs {
		g.Go(func() error {
			el := elevationOf(i)
			for j := range e.AzCount {
				az := 2 * math.Pi * float64(j) / float64(e.AzCount)
				n := e.IROffset + j
				d, err := sphericalHeadLeft(float64(rate), el, az, &coeffs[n])
				if err != nil {
					return fmt.Errorf("ring %d response %d: %w", i, j, err)
				}
				delays[n][0] = d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mirrorLeft(elevs, coeffs, delays)
	fields := []Field{{Distance: 1, EvCount: builtinEvCount}}
	return newStore(BuiltinName, rate, builtinIRSize, fields, elevs, coeffs, delays)
}

func elevationOf(ring int) float64 {
	return (float64(ring)/(builtinEvCount-1) - 0.5) * math.Pi
}

// sphericalHeadLeft writes the left-ear response for a source at the given
// elevation and azimuth (radians, azimuth positive to the right) and
// returns its delay in 1/DelayFracOne samples.
func sphericalHeadLeft(rate, el, az float64, ir *IR) (uint8, error) {
	x := math.Sin(az) * math.Cos(el)
	// Angle between the source and the left ear axis.
	theta := math.Acos(max(-1, min(1, -x)))

	const headTime = headRadius / speedOfSound
	var tau float64
	if theta < math.Pi/2 {
		tau = -headTime * math.Cos(theta)
	} else {
		tau = headTime * (theta - math.Pi/2)
	}
	delay := math.Round((tau + headTime) * rate * DelayFracOne)
	delay = min(delay, MaxDelay*DelayFracOne)

	// Head shadow: a shelf from unity at DC to alpha at high frequencies.
	alpha := 1.05 + 0.95*math.Cos(theta*180/150)
	w0 := speedOfSound / headRadius
	tk := 2 * rate / (2 * w0)
	b0 := (1 + alpha*tk) / (1 + tk)
	b1 := (1 - alpha*tk) / (1 + tk)
	a1 := (1 - tk) / (1 + tk)

	var prevIn, prevOut float64
	for k := range builtinIRSize {
		in := 0.0
		if k == 0 {
			in = 1
		}
		out := b0*in + b1*prevIn - a1*prevOut
		prevIn, prevOut = in, out

		// Fade the last quarter to avoid a truncation step.
		const fadeStart = builtinIRSize * 3 / 4
		if k >= fadeStart {
			p := float64(k-fadeStart+1) / float64(builtinIRSize-fadeStart+1)
			out *= 0.5 + 0.5*math.Cos(p*math.Pi)
		}
		if math.IsNaN(out) || math.IsInf(out, 0) {
			return 0, fmt.Errorf("%w: unstable head-shadow filter", ErrInvalidData)
		}
		ir[k][0] = float32(out * builtinGain)
	}
	return uint8(delay), nil
}
