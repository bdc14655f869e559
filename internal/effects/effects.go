// Package effects implements the auxiliary effect states run by effect
// slots: reverb, pitch shifting, compression and the other EFX effects.
//
// A State is created for one slot and is only touched by the mixer
// goroutine afterwards. DeviceUpdate sizes it for the device, Update
// consumes a parameter snapshot, and Process renders one block from the
// slot's wet bus into the bus returned by OutTarget.
package effects

import (
	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// Type identifies an effect.
type Type int

const (
	Null Type = iota
	Reverb
	EAXReverb
	Chorus
	Flanger
	Compressor
	Distortion
	Echo
	Equalizer
	FrequencyShifter
	RingModulator
	Autowah
	PitchShifter
	VocalMorpher
	DedicatedDialog
	DedicatedLFE
	Convolution
)

var typeNames = [...]string{
	Null:             "null",
	Reverb:           "reverb",
	EAXReverb:        "eaxreverb",
	Chorus:           "chorus",
	Flanger:          "flanger",
	Compressor:       "compressor",
	Distortion:       "distortion",
	Echo:             "echo",
	Equalizer:        "equalizer",
	FrequencyShifter: "fshifter",
	RingModulator:    "modulator",
	Autowah:          "autowah",
	PitchShifter:     "pshifter",
	VocalMorpher:     "vmorpher",
	DedicatedDialog:  "dedicated-dialog",
	DedicatedLFE:     "dedicated-lfe",
	Convolution:      "convolution",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Valid reports whether t names a known effect.
func (t Type) Valid() bool {
	return t >= Null && t <= Convolution
}

// Types returns every effect type.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := Null; t <= Convolution; t++ {
		out = append(out, t)
	}
	return out
}

// maxUpdateSamples is the block size effects with per-block state split
// their processing into.
const maxUpdateSamples = 256

// fadeSamples is the gain ramp used when an effect's panning changes.
const fadeSamples = 64

// Device describes the output an effect renders for.
type Device struct {
	Frequency int
	// ReverbBoost scales reverb output; zero means unity.
	ReverbBoost float32
}

// Target is where an effect slot's output goes. Main is the ambisonic bus
// the slot feeds (the dry bus or another slot's wet bus); RealOut is the
// device's speaker bus and is nil when the slot feeds another slot.
type Target struct {
	Main    *panning.Bus
	RealOut *panning.Bus
}

// IRBuffer is a decoded impulse response for the convolution effect.
type IRBuffer struct {
	// Samples holds one line per channel, in the order of Channels. B-Format
	// responses use FuMa channel order and scaling.
	Samples   [][]float32
	Frequency int
	Channels  convert.Channels
}

// State is a running effect.
type State interface {
	// DeviceUpdate resets the state for dev. buf is only used by the
	// convolution effect and may be nil.
	DeviceUpdate(dev Device, buf *IRBuffer)
	// Update applies new parameters. gain is the slot gain.
	Update(dev Device, gain float32, props Props, target Target)
	// Process reads n samples from each line of in and adds its result to
	// out, which is normally the bus returned by OutTarget.
	Process(n int, in, out [][]float32)
	// OutTarget returns the lines Process should write to, as chosen by the
	// last Update.
	OutTarget() [][]float32
}

// New returns a fresh state for t. Unknown types get the null effect.
func New(t Type) State {
	switch t {
	case Reverb, EAXReverb:
		return newReverb()
	case Chorus, Flanger:
		return &chorusState{}
	case Compressor:
		return &compressorState{}
	case Distortion:
		return &distortionState{}
	case Echo:
		return &echoState{}
	case Equalizer:
		return &equalizerState{}
	case FrequencyShifter:
		return newFshifter()
	case RingModulator:
		return &modulatorState{}
	case Autowah:
		return &autowahState{}
	case PitchShifter:
		return newPshifter()
	case VocalMorpher:
		return &vmorpherState{}
	case DedicatedDialog, DedicatedLFE:
		return &dedicatedState{}
	case Convolution:
		return &convolutionState{}
	default:
		return &nullState{}
	}
}

// outTarget carries the output lines chosen by Update.
type outTarget struct {
	out [][]float32
}

func (o *outTarget) OutTarget() [][]float32 {
	return o.out
}

// chanGains is the current and target gain of one processed line on each
// output line.
type chanGains struct {
	current [panning.AmbiChannels]float32
	target  [panning.AmbiChannels]float32
}

func (g *chanGains) mix(in []float32, out [][]float32, counter, outPos int) {
	n := min(len(out), panning.AmbiChannels)
	simdops.Mix(in, out[:n], g.current[:n], g.target[:n], counter, outPos)
}

// identityGains points each input line straight at the same ambisonic
// component of target, scaled by gain.
func identityGains(target *panning.Bus, gain float32, gains []chanGains) {
	for i := range gains {
		clear(gains[i].target[:])
		if i < panning.AmbiChannels {
			target.PanGains(panning.Unit(i), gain, gains[i].target[:])
		}
	}
}

// frontCoeffs is a source straight ahead of the listener.
var frontCoeffs = panning.CalcDirectionCoeffs(0, 0, -1, 0)
