// Package hrtf holds head-related impulse response datasets and renders
// signals binaurally with them: direction lookup with bilinear blending,
// per-voice convolution with crossfades between responses, and a fixed
// decoder that turns a first-order ambisonic bus into two ears through a
// set of virtual speakers.
package hrtf

import (
	"errors"
	"fmt"
	"math"
)

// Dataset limits.
const (
	IRLength      = 128 // longest response kept
	MinIRLength   = 8
	HistoryLength = 64 // input samples kept for the delay taps
	MaxDelay      = HistoryLength - 1

	DelayFracBits = 2
	DelayFracOne  = 1 << DelayFracBits
	DelayFracHalf = DelayFracOne >> 1

	minEvCount = 5
	maxEvCount = 181
	minAzCount = 1
	maxAzCount = 255

	// Omnidirectional pass-through gain for fully spread sources.
	passthruCoeff = 0.707106781
)

// ErrInvalidData reports a malformed or unsupported dataset.
var ErrInvalidData = errors.New("invalid HRTF data")

// IR is one stereo impulse response, left then right per tap.
type IR [IRLength][2]float32

// Field is a set of elevations measured at one distance (meters).
type Field struct {
	Distance float32
	EvCount  int
}

// Elevation locates the responses of one elevation ring.
type Elevation struct {
	AzCount  int
	IROffset int
}

// Store is an immutable dataset. Fields are ordered farthest first.
type Store struct {
	Name       string
	SampleRate uint32
	IRSize     int
	Fields     []Field
	Elevs      []Elevation
	Coeffs     []IR
	Delays     [][2]uint8 // per ear, in 1/DelayFracOne samples
}

func newStore(name string, rate uint32, irSize int, fields []Field, elevs []Elevation, coeffs []IR, delays [][2]uint8) (*Store, error) {
	if irSize < MinIRLength || irSize > IRLength {
		return nil, fmt.Errorf("%w: response length %d (%d to %d)", ErrInvalidData, irSize, MinIRLength, IRLength)
	}
	if len(elevs) < minEvCount || len(elevs) > maxEvCount*len(fields) {
		return nil, fmt.Errorf("%w: elevation count %d", ErrInvalidData, len(elevs))
	}
	total := 0
	for i, e := range elevs {
		if e.AzCount < minAzCount || e.AzCount > maxAzCount {
			return nil, fmt.Errorf("%w: azimuth count %d at elevation %d", ErrInvalidData, e.AzCount, i)
		}
		if e.IROffset != total {
			return nil, fmt.Errorf("%w: elevation %d offset %d, want %d", ErrInvalidData, i, e.IROffset, total)
		}
		total += e.AzCount
	}
	if len(coeffs) != total || len(delays) != total {
		return nil, fmt.Errorf("%w: %d responses for %d positions", ErrInvalidData, len(coeffs), total)
	}
	for i, d := range delays {
		if d[0] > MaxDelay*DelayFracOne || d[1] > MaxDelay*DelayFracOne {
			return nil, fmt.Errorf("%w: delay %v at response %d", ErrInvalidData, d, i)
		}
	}
	return &Store{
		Name:       name,
		SampleRate: rate,
		IRSize:     irSize,
		Fields:     fields,
		Elevs:      elevs,
		Coeffs:     coeffs,
		Delays:     delays,
	}, nil
}

// mirrorLeft fills each right-ear response from the left-ear response at
// the mirrored azimuth.
func mirrorLeft(elevs []Elevation, coeffs []IR, delays [][2]uint8) {
	for _, e := range elevs {
		for j := range e.AzCount {
			l := e.IROffset + j
			r := e.IROffset + (e.AzCount-j)%e.AzCount
			for k := range coeffs[r] {
				coeffs[r][k][1] = coeffs[l][k][0]
			}
			delays[r][1] = delays[l][0]
		}
	}
}

type idxBlend struct {
	idx   int
	blend float32
}

// calcEvIndex maps an elevation in radians to a ring index and the blend
// towards the next ring up.
func calcEvIndex(evCount int, ev float32) idxBlend {
	ev = (ev/math.Pi + 0.5) * float32(evCount-1)
	idx := int(ev)
	return idxBlend{min(idx, evCount-1), ev - float32(idx)}
}

// calcAzIndex maps an azimuth in radians (negative left) to a response index
// in a ring and the blend towards the next one.
func calcAzIndex(azCount int, az float32) idxBlend {
	az = (az/(2*math.Pi) + 1) * float32(azCount)
	idx := int(az)
	return idxBlend{idx % azCount, az - float32(idx)}
}

// Lookup writes the blended response for a direction into coeffs and
// returns the per-ear delays in whole samples. Angles are in radians;
// spread (0..2π) mixes in an omnidirectional pass-through. The nearest
// field not closer than distance is used.
func (s *Store) Lookup(elevation, azimuth, distance, spread float32, coeffs *IR) [2]uint32 {
	dirfact := 1 - spread/(2*math.Pi)

	ebase := 0
	field := s.Fields[len(s.Fields)-1]
	for _, fd := range s.Fields[:len(s.Fields)-1] {
		if distance >= fd.Distance {
			field = fd
			break
		}
		ebase += fd.EvCount
	}

	elev0 := calcEvIndex(field.EvCount, elevation)
	elev1 := min(elev0.idx+1, field.EvCount-1)
	e0 := s.Elevs[ebase+elev0.idx]
	e1 := s.Elevs[ebase+elev1]

	az0 := calcAzIndex(e0.AzCount, azimuth)
	az1 := calcAzIndex(e1.AzCount, azimuth)

	idx := [4]int{
		e0.IROffset + az0.idx,
		e0.IROffset + (az0.idx+1)%e0.AzCount,
		e1.IROffset + az1.idx,
		e1.IROffset + (az1.idx+1)%e1.AzCount,
	}
	blend := [4]float32{
		(1 - elev0.blend) * (1 - az0.blend) * dirfact,
		(1 - elev0.blend) * az0.blend * dirfact,
		elev0.blend * (1 - az1.blend) * dirfact,
		elev0.blend * az1.blend * dirfact,
	}

	var delays [2]uint32
	for ear := range 2 {
		var d float32
		for c := range 4 {
			d += float32(s.Delays[idx[c]][ear]) * blend[c]
		}
		delays[ear] = uint32(d*(1.0/DelayFracOne) + 0.5)
	}

	*coeffs = IR{}
	coeffs[0][0] = passthruCoeff * (1 - dirfact)
	coeffs[0][1] = passthruCoeff * (1 - dirfact)
	for c := range 4 {
		src := &s.Coeffs[idx[c]]
		mult := blend[c]
		for k := range s.IRSize {
			coeffs[k][0] += src[k][0] * mult
			coeffs[k][1] += src[k][1] * mult
		}
	}
	return delays
}

// nearest returns the index of the response closest to a direction.
// Rounding is symmetric so mirrored directions pick mirrored responses.
func (s *Store) nearest(elevation, azimuth float32) int {
	field := s.Fields[0]
	ev := int(math.Round(float64((elevation/math.Pi + 0.5) * float32(field.EvCount-1))))
	e := s.Elevs[min(max(ev, 0), field.EvCount-1)]
	az := int(math.Round(float64(azimuth / (2 * math.Pi) * float32(e.AzCount))))
	return e.IROffset + (az%e.AzCount+e.AzCount)%e.AzCount
}
