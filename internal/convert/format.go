// Package convert handles stored sample formats: runtime decoding of PCM
// and companded samples to float32, IMA4 and MSADPCM block codecs, and
// conversion of mixed float32 output to device sample types.
package convert

import "fmt"

// SampleType is the storage type of buffer samples.
type SampleType uint8

// Stored sample types.
const (
	UByte SampleType = iota
	Byte
	Short
	UShort
	Int
	UInt
	Float
	Double
	Mulaw
	Alaw
	IMA4
	MSADPCM
)

var sampleTypeNames = [...]string{
	UByte:   "Unsigned Byte",
	Byte:    "Signed Byte",
	Short:   "Signed Short",
	UShort:  "Unsigned Short",
	Int:     "Signed Int",
	UInt:    "Unsigned Int",
	Float:   "32-bit Float",
	Double:  "64-bit Float",
	Mulaw:   "muLaw",
	Alaw:    "aLaw",
	IMA4:    "IMA4 ADPCM",
	MSADPCM: "MS ADPCM",
}

func (t SampleType) String() string {
	if int(t) < len(sampleTypeNames) {
		return sampleTypeNames[t]
	}
	return fmt.Sprintf("SampleType(%d)", t)
}

// Valid reports whether t is a known type.
func (t SampleType) Valid() bool {
	return int(t) < len(sampleTypeNames)
}

// Size returns the bytes per sample. Block-compressed types return 0.
func (t SampleType) Size() int {
	switch t {
	case UByte, Byte, Mulaw, Alaw:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Double:
		return 8
	default:
		return 0
	}
}

// Bits returns the nominal bit depth of one decoded sample.
func (t SampleType) Bits() int {
	switch t {
	case IMA4, MSADPCM:
		return 4
	default:
		return t.Size() * 8
	}
}

// IsCompressed reports whether t is stored in ADPCM blocks.
func (t SampleType) IsCompressed() bool {
	return t == IMA4 || t == MSADPCM
}

// Channels is the channel configuration of stored samples.
type Channels uint8

// Stored channel configurations.
const (
	Mono Channels = iota
	Stereo
	Rear
	Quad
	X51
	X61
	X71
	BFormat2D
	BFormat3D
)

var channelNames = [...]string{
	Mono:      "Mono",
	Stereo:    "Stereo",
	Rear:      "Rear",
	Quad:      "Quadraphonic",
	X51:       "5.1 Surround",
	X61:       "6.1 Surround",
	X71:       "7.1 Surround",
	BFormat2D: "B-Format 2D",
	BFormat3D: "B-Format 3D",
}

var channelCounts = [...]int{
	Mono: 1, Stereo: 2, Rear: 2, Quad: 4, X51: 6, X61: 7, X71: 8,
	BFormat2D: 3, BFormat3D: 4,
}

func (c Channels) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channels(%d)", c)
}

// Valid reports whether c is a known configuration.
func (c Channels) Valid() bool {
	return int(c) < len(channelNames)
}

// Count returns the number of interleaved channels.
func (c Channels) Count() int {
	if int(c) < len(channelCounts) {
		return channelCounts[c]
	}
	return 0
}

// IsAmbisonic reports whether c holds B-Format data.
func (c Channels) IsAmbisonic() bool {
	return c == BFormat2D || c == BFormat3D
}

// Format pairs a channel configuration with a sample type.
type Format struct {
	Channels Channels
	Type     SampleType
}

func (f Format) String() string {
	return f.Channels.String() + ", " + f.Type.String()
}

// FrameSize returns bytes per uncompressed frame, or 0 for ADPCM types.
func (f Format) FrameSize() int {
	return f.Channels.Count() * f.Type.Size()
}
