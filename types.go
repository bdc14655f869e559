package mixer

import (
	"fmt"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/effects"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// Layout is the output channel configuration of a device.
type Layout = panning.Layout

// Output layouts.
const (
	LayoutMono   = panning.Mono
	LayoutStereo = panning.Stereo
	LayoutQuad   = panning.Quad
	Layout51     = panning.X51
	Layout51Rear = panning.X51Rear
	Layout61     = panning.X61
	Layout71     = panning.X71
	LayoutAmbi1  = panning.Ambi1
)

// SampleType is the storage type of buffer samples.
type SampleType = convert.SampleType

// Buffer sample types.
const (
	SampleUint8   = convert.UByte
	SampleInt8    = convert.Byte
	SampleInt16   = convert.Short
	SampleUint16  = convert.UShort
	SampleInt32   = convert.Int
	SampleUint32  = convert.UInt
	SampleFloat32 = convert.Float
	SampleFloat64 = convert.Double
	SampleMulaw   = convert.Mulaw
	SampleAlaw    = convert.Alaw
	SampleIMA4    = convert.IMA4
	SampleMSADPCM = convert.MSADPCM
)

// Channels is the channel configuration of buffer samples.
type Channels = convert.Channels

// Buffer channel configurations.
const (
	ChannelsMono      = convert.Mono
	ChannelsStereo    = convert.Stereo
	ChannelsRear      = convert.Rear
	ChannelsQuad      = convert.Quad
	Channels51        = convert.X51
	Channels61        = convert.X61
	Channels71        = convert.X71
	ChannelsBFormat2D = convert.BFormat2D
	ChannelsBFormat3D = convert.BFormat3D
)

// Format pairs a channel configuration with a sample type.
type Format = convert.Format

// Common buffer formats.
var (
	FormatMono8         = Format{Channels: ChannelsMono, Type: SampleUint8}
	FormatMono16        = Format{Channels: ChannelsMono, Type: SampleInt16}
	FormatMonoFloat32   = Format{Channels: ChannelsMono, Type: SampleFloat32}
	FormatStereo8       = Format{Channels: ChannelsStereo, Type: SampleUint8}
	FormatStereo16      = Format{Channels: ChannelsStereo, Type: SampleInt16}
	FormatStereoFloat32 = Format{Channels: ChannelsStereo, Type: SampleFloat32}
)

// Resampler selects the interpolation kernel of a source.
type Resampler = resample.Kind

// Resamplers, from cheapest to best.
const (
	ResamplerPoint       = resample.Point
	ResamplerLinear      = resample.Linear
	ResamplerCubic       = resample.Cubic
	ResamplerFastBSinc12 = resample.FastBSinc12
	ResamplerBSinc12     = resample.BSinc12
	ResamplerFastBSinc24 = resample.FastBSinc24
	ResamplerBSinc24     = resample.BSinc24
)

// OutputType is the sample encoding a device writes.
type OutputType = convert.DeviceType

// Device output sample types.
const (
	OutputInt8    = convert.DevByte
	OutputUint8   = convert.DevUByte
	OutputInt16   = convert.DevShort
	OutputUint16  = convert.DevUShort
	OutputInt32   = convert.DevInt
	OutputUint32  = convert.DevUInt
	OutputFloat32 = convert.DevFloat
)

// EffectType identifies an effect.
type EffectType = effects.Type

// Effect types.
const (
	EffectNull             = effects.Null
	EffectReverb           = effects.Reverb
	EffectEAXReverb        = effects.EAXReverb
	EffectChorus           = effects.Chorus
	EffectFlanger          = effects.Flanger
	EffectCompressor       = effects.Compressor
	EffectDistortion       = effects.Distortion
	EffectEcho             = effects.Echo
	EffectEqualizer        = effects.Equalizer
	EffectFrequencyShifter = effects.FrequencyShifter
	EffectRingModulator    = effects.RingModulator
	EffectAutowah          = effects.Autowah
	EffectPitchShifter     = effects.PitchShifter
	EffectVocalMorpher     = effects.VocalMorpher
	EffectDedicatedDialog  = effects.DedicatedDialog
	EffectDedicatedLFE     = effects.DedicatedLFE
	EffectConvolution      = effects.Convolution
)

// DistanceModel selects how distance attenuates a source.
type DistanceModel int

const (
	DistanceNone DistanceModel = iota
	DistanceInverse
	DistanceInverseClamped
	DistanceLinear
	DistanceLinearClamped
	DistanceExponent
	DistanceExponentClamped
)

var distanceModelNames = [...]string{
	DistanceNone:            "none",
	DistanceInverse:         "inverse",
	DistanceInverseClamped:  "inverse-clamped",
	DistanceLinear:          "linear",
	DistanceLinearClamped:   "linear-clamped",
	DistanceExponent:        "exponent",
	DistanceExponentClamped: "exponent-clamped",
}

func (m DistanceModel) String() string {
	if m.Valid() {
		return distanceModelNames[m]
	}
	return fmt.Sprintf("DistanceModel(%d)", int(m))
}

// Valid reports whether m is a known model.
func (m DistanceModel) Valid() bool {
	return m >= DistanceNone && m <= DistanceExponentClamped
}

// SourceState is the application-visible playback state of a source.
type SourceState int

const (
	Initial SourceState = iota
	Playing
	Paused
	Stopped
)

func (s SourceState) String() string {
	switch s {
	case Initial:
		return "initial"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("SourceState(%d)", int(s))
	}
}

// SourceType tells whether a source plays one buffer or a queue.
type SourceType int

const (
	Undetermined SourceType = iota
	Static
	Streaming
)

func (t SourceType) String() string {
	switch t {
	case Static:
		return "static"
	case Streaming:
		return "streaming"
	default:
		return "undetermined"
	}
}

// SpatializeMode controls whether a source is positioned in 3D.
type SpatializeMode int

const (
	SpatializeOff SpatializeMode = iota
	SpatializeOn
	// SpatializeAuto positions mono sources only.
	SpatializeAuto
)

// HRTFMode selects binaural rendering for stereo devices.
type HRTFMode int

const (
	// HRTFAuto leaves HRTF off; no headphone detection is done.
	HRTFAuto HRTFMode = iota
	HRTFEnabled
	HRTFDisabled
)

func (m HRTFMode) String() string {
	switch m {
	case HRTFAuto:
		return "auto"
	case HRTFEnabled:
		return "enabled"
	case HRTFDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("HRTFMode(%d)", int(m))
	}
}
