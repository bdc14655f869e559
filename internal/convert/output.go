package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// DeviceType is the sample type of device output.
type DeviceType uint8

// Device output sample types.
const (
	DevByte DeviceType = iota
	DevUByte
	DevShort
	DevUShort
	DevInt
	DevUInt
	DevFloat
)

var deviceTypeNames = [...]string{
	DevByte:   "int8",
	DevUByte:  "uint8",
	DevShort:  "int16",
	DevUShort: "uint16",
	DevInt:    "int32",
	DevUInt:   "uint32",
	DevFloat:  "float32",
}

func (t DeviceType) String() string {
	if int(t) < len(deviceTypeNames) {
		return deviceTypeNames[t]
	}
	return fmt.Sprintf("DeviceType(%d)", t)
}

// ParseDeviceType parses a configuration name such as "int16".
func ParseDeviceType(s string) (DeviceType, error) {
	for i, n := range deviceTypeNames {
		if n == s {
			return DeviceType(i), nil
		}
	}
	return DevFloat, fmt.Errorf("unknown sample type %q", s)
}

// Valid reports whether t is a known type.
func (t DeviceType) Valid() bool {
	return int(t) < len(deviceTypeNames)
}

// Size returns bytes per sample.
func (t DeviceType) Size() int {
	switch t {
	case DevByte, DevUByte:
		return 1
	case DevShort, DevUShort:
		return 2
	default:
		return 4
	}
}

// DitherBits returns the default dither depth for t, or 0 when the type
// has enough precision that dithering is pointless.
func (t DeviceType) DitherBits() int {
	switch t {
	case DevByte, DevUByte:
		return 8
	case DevShort, DevUShort:
		return 16
	default:
		return 0
	}
}

// Clamping limits. A float32 holds at most 25 bits of signed precision, so
// the 32-bit ceiling is the largest float below 2^31.
const (
	int32Scale = 2147483648.0
	int32Max   = 2147483520.0
)

func toInt8(v float32) int8 {
	return int8(math.Round(float64(mathutil.Clamp(v*128, -128, 127))))
}

func toInt16(v float32) int16 {
	return int16(math.Round(float64(mathutil.Clamp(v*32768, -32768, 32767))))
}

func toInt32(v float32) int32 {
	return int32(math.Round(float64(mathutil.Clamp(v*int32Scale, -int32Scale, int32Max))))
}

// Write interleaves frames samples from each line of in into out, converted
// to typ. out must hold frames*len(in)*typ.Size() bytes.
func Write(out []byte, in [][]float32, frames int, typ DeviceType) {
	size := typ.Size()
	stride := len(in) * size

	for c, line := range in {
		p := c * size
		for _, v := range line[:frames] {
			switch typ {
			case DevByte:
				out[p] = byte(toInt8(v))
			case DevUByte:
				out[p] = byte(int(toInt8(v)) + 128)
			case DevShort:
				binary.LittleEndian.PutUint16(out[p:], uint16(toInt16(v)))
			case DevUShort:
				binary.LittleEndian.PutUint16(out[p:], uint16(int32(toInt16(v))+32768))
			case DevInt:
				binary.LittleEndian.PutUint32(out[p:], uint32(toInt32(v)))
			case DevUInt:
				binary.LittleEndian.PutUint32(out[p:], uint32(toInt32(v))+2147483648)
			default:
				binary.LittleEndian.PutUint32(out[p:], math.Float32bits(v))
			}
			p += stride
		}
	}
}

// WriteFloat interleaves frames samples from each line of in into out.
func WriteFloat(out []float32, in [][]float32, frames int) {
	chans := len(in)
	if chans == 2 {
		simdops.Default().Interleave2(out[:2*frames], in[0][:frames], in[1][:frames])
		return
	}
	for c, line := range in {
		for i, v := range line[:frames] {
			out[i*chans+c] = v
		}
	}
}
