package effects

// Props is a parameter snapshot for one effect type.
type Props interface {
	EffectType() Type
}

// NullProps carries no parameters.
type NullProps struct{}

// ReverbProps serves both the standard and the EAX reverb. The standard
// reverb leaves the EAX-only fields at their defaults.
type ReverbProps struct {
	Density             float32
	Diffusion           float32
	Gain                float32
	GainHF              float32
	GainLF              float32
	DecayTime           float32
	DecayHFRatio        float32
	DecayLFRatio        float32
	ReflectionsGain     float32
	ReflectionsDelay    float32
	ReflectionsPan      [3]float32
	LateReverbGain      float32
	LateReverbDelay     float32
	LateReverbPan       [3]float32
	EchoTime            float32
	EchoDepth           float32
	ModulationTime      float32
	ModulationDepth     float32
	AirAbsorptionGainHF float32
	HFReference         float32
	LFReference         float32
	RoomRolloffFactor   float32
	DecayHFLimit        bool

	// Standard is set for the non-EAX reverb.
	Standard bool
}

// Waveform selects an LFO shape.
type Waveform int

const (
	Sinusoid Waveform = iota
	Triangle
	Sawtooth
	Square
)

// ChorusProps also describes the flanger.
type ChorusProps struct {
	Waveform Waveform // Sinusoid or Triangle
	Phase    int      // degrees, -180..180
	Rate     float32
	Depth    float32
	Feedback float32
	Delay    float32

	// Flanger selects the flanger's delay range.
	Flanger bool
}

type CompressorProps struct {
	OnOff bool
}

type DistortionProps struct {
	Edge          float32
	Gain          float32
	LowpassCutoff float32
	EQCenter      float32
	EQBandwidth   float32
}

type EchoProps struct {
	Delay    float32
	LRDelay  float32
	Damping  float32
	Feedback float32
	Spread   float32
}

type EqualizerProps struct {
	LowCutoff  float32
	LowGain    float32
	Mid1Center float32
	Mid1Gain   float32
	Mid1Width  float32
	Mid2Center float32
	Mid2Gain   float32
	Mid2Width  float32
	HighCutoff float32
	HighGain   float32
}

// ShiftDirection is the frequency shifter's direction for one side.
type ShiftDirection int

const (
	ShiftDown ShiftDirection = iota
	ShiftUp
	ShiftOff
)

type FshifterProps struct {
	Frequency      float32
	LeftDirection  ShiftDirection
	RightDirection ShiftDirection
}

type ModulatorProps struct {
	Frequency      float32
	HighPassCutoff float32
	Waveform       Waveform // Sinusoid, Sawtooth or Square
}

type AutowahProps struct {
	AttackTime  float32
	ReleaseTime float32
	Resonance   float32
	PeakGain    float32
}

type PshifterProps struct {
	CoarseTune int // semitones
	FineTune   int // cents
}

// Phoneme is a vocal morpher target sound.
type Phoneme int

const (
	PhonemeA Phoneme = iota
	PhonemeE
	PhonemeI
	PhonemeO
	PhonemeU
	PhonemeAA
	PhonemeAE
	PhonemeAH
	PhonemeAO
	PhonemeEH
	PhonemeER
	PhonemeIH
	PhonemeIY
	PhonemeUH
	PhonemeUW
	PhonemeB
	PhonemeD
	PhonemeF
	PhonemeG
	PhonemeJ
	PhonemeK
	PhonemeL
	PhonemeM
	PhonemeN
	PhonemeP
	PhonemeR
	PhonemeS
	PhonemeT
	PhonemeV
	PhonemeZ
)

type VmorpherProps struct {
	Rate                 float32
	PhonemeA             Phoneme
	PhonemeB             Phoneme
	PhonemeACoarseTuning int
	PhonemeBCoarseTuning int
	Waveform             Waveform // Sinusoid, Triangle or Sawtooth
}

// DedicatedProps drives both dedicated effects.
type DedicatedProps struct {
	Gain float32
	LFE  bool
}

// ConvolutionProps orients a B-Format impulse response.
type ConvolutionProps struct {
	OrientAt [3]float32
	OrientUp [3]float32
}

func (NullProps) EffectType() Type { return Null }

func (p ReverbProps) EffectType() Type {
	if p.Standard {
		return Reverb
	}
	return EAXReverb
}

func (p ChorusProps) EffectType() Type {
	if p.Flanger {
		return Flanger
	}
	return Chorus
}

func (CompressorProps) EffectType() Type  { return Compressor }
func (DistortionProps) EffectType() Type  { return Distortion }
func (EchoProps) EffectType() Type        { return Echo }
func (EqualizerProps) EffectType() Type   { return Equalizer }
func (FshifterProps) EffectType() Type    { return FrequencyShifter }
func (ModulatorProps) EffectType() Type   { return RingModulator }
func (AutowahProps) EffectType() Type     { return Autowah }
func (PshifterProps) EffectType() Type    { return PitchShifter }
func (VmorpherProps) EffectType() Type    { return VocalMorpher }
func (ConvolutionProps) EffectType() Type { return Convolution }

func (p DedicatedProps) EffectType() Type {
	if p.LFE {
		return DedicatedLFE
	}
	return DedicatedDialog
}

// DefaultReverb returns the EAX reverb defaults (the generic preset).
func DefaultReverb() ReverbProps {
	return ReverbProps{
		Density:             1,
		Diffusion:           1,
		Gain:                0.32,
		GainHF:              0.89,
		GainLF:              1,
		DecayTime:           1.49,
		DecayHFRatio:        0.83,
		DecayLFRatio:        1,
		ReflectionsGain:     0.05,
		ReflectionsDelay:    0.007,
		LateReverbGain:      1.26,
		LateReverbDelay:     0.011,
		EchoTime:            0.25,
		EchoDepth:           0,
		ModulationTime:      0.25,
		ModulationDepth:     0,
		AirAbsorptionGainHF: 0.994,
		HFReference:         5000,
		LFReference:         250,
		RoomRolloffFactor:   0,
		DecayHFLimit:        true,
	}
}

// DefaultProps returns the default parameters of t.
func DefaultProps(t Type) Props {
	switch t {
	case Reverb:
		p := DefaultReverb()
		p.Standard = true
		return p
	case EAXReverb:
		return DefaultReverb()
	case Chorus:
		return ChorusProps{Waveform: Triangle, Phase: 90, Rate: 1.1, Depth: 0.1, Feedback: 0.25, Delay: 0.016}
	case Flanger:
		return ChorusProps{Waveform: Triangle, Phase: 0, Rate: 0.27, Depth: 1, Feedback: -0.5, Delay: 0.002, Flanger: true}
	case Compressor:
		return CompressorProps{OnOff: true}
	case Distortion:
		return DistortionProps{Edge: 0.2, Gain: 0.05, LowpassCutoff: 8000, EQCenter: 3600, EQBandwidth: 3600}
	case Echo:
		return EchoProps{Delay: 0.1, LRDelay: 0.1, Damping: 0.5, Feedback: 0.5, Spread: -1}
	case Equalizer:
		return EqualizerProps{
			LowCutoff: 200, LowGain: 1,
			Mid1Center: 500, Mid1Gain: 1, Mid1Width: 1,
			Mid2Center: 3000, Mid2Gain: 1, Mid2Width: 1,
			HighCutoff: 6000, HighGain: 1,
		}
	case FrequencyShifter:
		return FshifterProps{Frequency: 0, LeftDirection: ShiftDown, RightDirection: ShiftDown}
	case RingModulator:
		return ModulatorProps{Frequency: 440, HighPassCutoff: 800, Waveform: Sinusoid}
	case Autowah:
		return AutowahProps{AttackTime: 0.06, ReleaseTime: 0.06, Resonance: 1000, PeakGain: 11.22}
	case PitchShifter:
		return PshifterProps{CoarseTune: 12, FineTune: 0}
	case VocalMorpher:
		return VmorpherProps{Rate: 1.41, PhonemeA: PhonemeA, PhonemeB: PhonemeER, Waveform: Sinusoid}
	case DedicatedDialog:
		return DedicatedProps{Gain: 1}
	case DedicatedLFE:
		return DedicatedProps{Gain: 1, LFE: true}
	case Convolution:
		return ConvolutionProps{OrientAt: [3]float32{0, 0, -1}, OrientUp: [3]float32{0, 1, 0}}
	default:
		return NullProps{}
	}
}
