package convert

import (
	"encoding/binary"
	"math"
)

// Full-scale divisors for integer PCM.
const (
	scale8  = 1.0 / 128.0
	scale16 = 1.0 / 32768.0
	scale32 = 1.0 / 2147483648.0
)

// LoadSamples decodes len(dst) samples of channel ch from interleaved data
// with step channels per frame, starting at frame offset. Only stored
// (uncompressed) types are accepted; ADPCM is expanded to Short at upload.
func LoadSamples(dst []float32, src []byte, typ SampleType, ch, step, offset int) {
	size := typ.Size()
	stride := step * size
	p := offset*stride + ch*size

	switch typ {
	case UByte:
		for i := range dst {
			dst[i] = float32(int(src[p])-128) * scale8
			p += stride
		}
	case Byte:
		for i := range dst {
			dst[i] = float32(int8(src[p])) * scale8
			p += stride
		}
	case Short:
		for i := range dst {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[p:]))) * scale16
			p += stride
		}
	case UShort:
		for i := range dst {
			dst[i] = float32(int(binary.LittleEndian.Uint16(src[p:]))-32768) * scale16
			p += stride
		}
	case Int:
		for i := range dst {
			dst[i] = float32(float64(int32(binary.LittleEndian.Uint32(src[p:]))) * scale32)
			p += stride
		}
	case UInt:
		for i := range dst {
			v := int64(binary.LittleEndian.Uint32(src[p:])) - 2147483648
			dst[i] = float32(float64(v) * scale32)
			p += stride
		}
	case Float:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[p:]))
			p += stride
		}
	case Double:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(src[p:])))
			p += stride
		}
	case Mulaw:
		for i := range dst {
			dst[i] = float32(mulawTable[src[p]]) * scale16
			p += stride
		}
	case Alaw:
		for i := range dst {
			dst[i] = float32(alawTable[src[p]]) * scale16
			p += stride
		}
	default:
		clear(dst)
	}
}

// ShortsToBytes stores 16-bit samples little-endian.
func ShortsToBytes(src []int16) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// BytesToShorts reads little-endian 16-bit samples.
func BytesToShorts(src []byte) []int16 {
	out := make([]int16, len(src)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return out
}
