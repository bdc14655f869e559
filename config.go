package mixer

import (
	"fmt"
	"io"
	"log"

	"github.com/tphakala/go-audio-mixer/internal/bs2b"
	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// DeviceConfig describes the output a device renders and how its mixer is
// set up. Start from DefaultDeviceConfig and change what you need.
type DeviceConfig struct {
	// Frequency is the output sample rate in Hz.
	Frequency int
	// Layout is the output channel configuration.
	Layout Layout
	// OutputType is the sample encoding handed to the backend.
	OutputType OutputType
	// UpdateSize is the number of frames per backend period.
	UpdateSize int
	// Periods is the number of periods the backend buffers.
	Periods int

	// Sends is the number of auxiliary sends each source has (0 to 6).
	Sends int

	// Resampler is the default interpolation kernel for new sources.
	Resampler Resampler

	// HRTF selects binaural rendering. It only applies to stereo output.
	HRTF HRTFMode
	// HRTFFile names an MHR dataset; empty uses the built-in one.
	HRTFFile string

	// Dither adds TPDF dither before integer conversion. DitherDepth
	// overrides the bit depth; 0 uses the output type's depth.
	Dither      bool
	DitherDepth int

	// OutputLimiter runs a look-ahead limiter on the final mix.
	OutputLimiter bool

	// Crossfeed is the bs2b level (0 off, 1 to 6) for stereo output
	// without HRTF.
	Crossfeed int

	// ReverbBoost is a gain in dB applied to every reverb's output.
	ReverbBoost float32

	// NFCDistance enables near-field compensation on ambisonic output for
	// speakers at this distance in meters. 0 disables it.
	NFCDistance float32

	// IMA4BlockAlign and MSADPCMBlockAlign are the frames per block assumed
	// for ADPCM buffers that do not set their own. 0 uses 65 and 64.
	IMA4BlockAlign    int
	MSADPCMBlockAlign int

	// RealtimePriority asks for real-time scheduling of the mixer thread
	// at this level. 0 leaves the thread's priority alone.
	RealtimePriority int

	// Logger receives device messages; nil uses log.Default.
	Logger *log.Logger
	// Quiet discards all device messages.
	Quiet bool
}

// Device configuration limits.
const (
	MinFrequency  = 8000
	MaxFrequency  = 192000
	MinUpdateSize = 64
	MaxUpdateSize = 8192
	MinPeriods    = 2
	MaxPeriods    = 16
	MaxSends      = voice.MaxSends

	maxReverbBoost = 20
)

// DefaultDeviceConfig returns 48 kHz float stereo with two sends.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Frequency:  48000,
		Layout:     LayoutStereo,
		OutputType: OutputFloat32,
		UpdateSize: 512,
		Periods:    3,
		Sends:      2,
		Resampler:  resample.DefaultKind,
		HRTF:       HRTFAuto,
		Dither:     true,
	}
}

// Validate checks that every field is in range.
func (c *DeviceConfig) Validate() error {
	switch {
	case c.Frequency < MinFrequency || c.Frequency > MaxFrequency:
		return fmt.Errorf("%w: frequency %d outside %d to %d", ErrInvalidConfig, c.Frequency, MinFrequency, MaxFrequency)
	case c.UpdateSize < MinUpdateSize || c.UpdateSize > MaxUpdateSize:
		return fmt.Errorf("%w: update size %d outside %d to %d", ErrInvalidConfig, c.UpdateSize, MinUpdateSize, MaxUpdateSize)
	case c.Periods < MinPeriods || c.Periods > MaxPeriods:
		return fmt.Errorf("%w: %d periods outside %d to %d", ErrInvalidConfig, c.Periods, MinPeriods, MaxPeriods)
	case c.Sends < 0 || c.Sends > MaxSends:
		return fmt.Errorf("%w: %d sends outside 0 to %d", ErrInvalidConfig, c.Sends, MaxSends)
	case !c.Layout.Valid():
		return fmt.Errorf("%w: layout %v", ErrInvalidConfig, c.Layout)
	case !c.OutputType.Valid():
		return fmt.Errorf("%w: output type %v", ErrInvalidConfig, c.OutputType)
	case !c.Resampler.Valid():
		return fmt.Errorf("%w: resampler %v", ErrInvalidConfig, c.Resampler)
	case c.HRTF < HRTFAuto || c.HRTF > HRTFDisabled:
		return fmt.Errorf("%w: HRTF mode %v", ErrInvalidConfig, c.HRTF)
	case !bs2b.Level(c.Crossfeed).Valid():
		return fmt.Errorf("%w: crossfeed level %d outside 0 to %d", ErrInvalidConfig, c.Crossfeed, bs2b.HighEasy)
	case c.DitherDepth < 0 || c.DitherDepth > 24:
		return fmt.Errorf("%w: dither depth %d outside 0 to 24", ErrInvalidConfig, c.DitherDepth)
	case c.ReverbBoost < -maxReverbBoost || c.ReverbBoost > maxReverbBoost:
		return fmt.Errorf("%w: reverb boost %g dB outside -%d to %d", ErrInvalidConfig, c.ReverbBoost, maxReverbBoost, maxReverbBoost)
	case c.NFCDistance < 0:
		return fmt.Errorf("%w: NFC distance %g", ErrInvalidConfig, c.NFCDistance)
	case c.IMA4BlockAlign != 0 && !convert.ValidIMA4Align(c.IMA4BlockAlign):
		return fmt.Errorf("%w: IMA4 block alignment %d", ErrInvalidConfig, c.IMA4BlockAlign)
	case c.MSADPCMBlockAlign != 0 && !convert.ValidMSADPCMAlign(c.MSADPCMBlockAlign):
		return fmt.Errorf("%w: MSADPCM block alignment %d", ErrInvalidConfig, c.MSADPCMBlockAlign)
	case c.RealtimePriority < 0:
		return fmt.Errorf("%w: realtime priority %d", ErrInvalidConfig, c.RealtimePriority)
	}
	return nil
}

func (c *DeviceConfig) logger() *log.Logger {
	switch {
	case c.Quiet:
		return log.New(io.Discard, "", 0)
	case c.Logger != nil:
		return c.Logger
	default:
		return log.Default()
	}
}

// ContextConfig sizes a context. Zero fields take their defaults.
type ContextConfig struct {
	// MaxSources bounds the sources (and voices) of the context.
	MaxSources int
	// MaxEffectSlots bounds the effect slots of the context.
	MaxEffectSlots int
	// EventQueueSize is the number of events buffered between the mixer
	// and the event callback. Events beyond it are dropped.
	EventQueueSize int
	// DefaultSlot creates an effect slot that feeds send 0 of sources
	// which have no slot on it.
	DefaultSlot bool
	// KeepVoicesOnDisconnect leaves sources playing (silently) when the
	// device is lost instead of stopping them.
	KeepVoicesOnDisconnect bool
}

// Context limits and defaults.
const (
	DefaultMaxSources     = 256
	DefaultMaxEffectSlots = 64
	DefaultEventQueueSize = 512
)

// DefaultContextConfig returns the default sizing with a default slot.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxSources:     DefaultMaxSources,
		MaxEffectSlots: DefaultMaxEffectSlots,
		EventQueueSize: DefaultEventQueueSize,
		DefaultSlot:    true,
	}
}

// Validate checks the sizes against the object ID space.
func (c *ContextConfig) Validate() error {
	switch {
	case c.MaxSources < 0 || c.MaxSources > maxObjectIDs:
		return fmt.Errorf("%w: max sources %d", ErrInvalidConfig, c.MaxSources)
	case c.MaxEffectSlots < 0 || c.MaxEffectSlots > maxObjectIDs:
		return fmt.Errorf("%w: max effect slots %d", ErrInvalidConfig, c.MaxEffectSlots)
	case c.EventQueueSize < 0 || c.EventQueueSize > 1<<20:
		return fmt.Errorf("%w: event queue size %d", ErrInvalidConfig, c.EventQueueSize)
	}
	return nil
}

func (c ContextConfig) withDefaults() ContextConfig {
	if c.MaxSources == 0 {
		c.MaxSources = DefaultMaxSources
	}
	if c.MaxEffectSlots == 0 {
		c.MaxEffectSlots = DefaultMaxEffectSlots
	}
	if c.EventQueueSize == 0 {
		c.EventQueueSize = DefaultEventQueueSize
	}
	return c
}
