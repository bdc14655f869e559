package mixer

import (
	"math"
	"sync"

	"github.com/tphakala/go-audio-mixer/internal/effects"
)

// EffectParam names one parameter of an effect type.
type EffectParam int

// Effect parameters. Each applies to the effect types noted; using one on
// another type fails with InvalidEnum.
const (
	// Reverb and EAX reverb.
	ReverbDensity EffectParam = iota + 1
	ReverbDiffusion
	ReverbGain
	ReverbGainHF
	ReverbDecayTime
	ReverbDecayHFRatio
	ReverbReflectionsGain
	ReverbReflectionsDelay
	ReverbLateReverbGain
	ReverbLateReverbDelay
	ReverbAirAbsorptionGainHF
	ReverbRoomRolloffFactor
	ReverbDecayHFLimit // int, 0 or 1

	// EAX reverb only.
	ReverbGainLF
	ReverbDecayLFRatio
	ReverbReflectionsPan // vector
	ReverbLateReverbPan  // vector
	ReverbEchoTime
	ReverbEchoDepth
	ReverbModulationTime
	ReverbModulationDepth
	ReverbHFReference
	ReverbLFReference

	// Chorus and flanger.
	ChorusWaveform // int: 0 sinusoid, 1 triangle
	ChorusPhase    // int, degrees
	ChorusRate
	ChorusDepth
	ChorusFeedback
	ChorusDelay

	CompressorOnOff // int, 0 or 1

	DistortionEdge
	DistortionGain
	DistortionLowpassCutoff
	DistortionEQCenter
	DistortionEQBandwidth

	EchoDelay
	EchoLRDelay
	EchoDamping
	EchoFeedback
	EchoSpread

	EqualizerLowGain
	EqualizerLowCutoff
	EqualizerMid1Gain
	EqualizerMid1Center
	EqualizerMid1Width
	EqualizerMid2Gain
	EqualizerMid2Center
	EqualizerMid2Width
	EqualizerHighGain
	EqualizerHighCutoff

	FrequencyShifterFrequency
	FrequencyShifterLeftDirection  // int: 0 down, 1 up, 2 off
	FrequencyShifterRightDirection // int: 0 down, 1 up, 2 off

	RingModulatorFrequency
	RingModulatorHighPassCutoff
	RingModulatorWaveform // int: 0 sinusoid, 1 sawtooth, 2 square

	AutowahAttackTime
	AutowahReleaseTime
	AutowahResonance
	AutowahPeakGain

	PitchShifterCoarseTune // int, semitones
	PitchShifterFineTune   // int, cents

	VocalMorpherPhonemeA             // int, 0 to 29
	VocalMorpherPhonemeACoarseTuning // int, semitones
	VocalMorpherPhonemeB             // int, 0 to 29
	VocalMorpherPhonemeBCoarseTuning // int, semitones
	VocalMorpherWaveform             // int: 0 sinusoid, 1 triangle, 2 sawtooth
	VocalMorpherRate

	DedicatedGain

	ConvolutionOrientation // vector: at x, y, z then up x, y, z
)

type paramKind int

const (
	kindFloat paramKind = iota
	kindInt
	kindVector
)

// paramSpec describes one parameter: the effect types it applies to, its
// range and where it lives in an Effect.
type paramSpec struct {
	name     string
	kind     paramKind
	types    []EffectType
	min, max float32

	f    func(e *Effect) *float32
	geti func(e *Effect) int
	seti func(e *Effect, v int)
	v    func(e *Effect) []float32
}

var (
	reverbTypes    = []EffectType{EffectReverb, EffectEAXReverb}
	eaxReverbTypes = []EffectType{EffectEAXReverb}
	chorusTypes    = []EffectType{EffectChorus, EffectFlanger}
	dedicatedTypes = []EffectType{EffectDedicatedDialog, EffectDedicatedLFE}
)

func fparam(name string, types []EffectType, lo, hi float32, f func(e *Effect) *float32) paramSpec {
	return paramSpec{name: name, kind: kindFloat, types: types, min: lo, max: hi, f: f}
}

func iparam(name string, types []EffectType, lo, hi int, get func(e *Effect) int, set func(e *Effect, v int)) paramSpec {
	return paramSpec{name: name, kind: kindInt, types: types, min: float32(lo), max: float32(hi), geti: get, seti: set}
}

func one(t EffectType) []EffectType { return []EffectType{t} }

var boolToInt = map[bool]int{false: 0, true: 1}

// Modulator waveforms are numbered differently from the LFO enum.
var modulatorWaveforms = [...]effects.Waveform{effects.Sinusoid, effects.Sawtooth, effects.Square}

func modulatorWaveformIndex(w effects.Waveform) int {
	for i, m := range modulatorWaveforms {
		if m == w {
			return i
		}
	}
	return 0
}

var paramSpecs = map[EffectParam]paramSpec{
	ReverbDensity:             fparam("density", reverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.Density }),
	ReverbDiffusion:           fparam("diffusion", reverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.Diffusion }),
	ReverbGain:                fparam("gain", reverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.Gain }),
	ReverbGainHF:              fparam("gain HF", reverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.GainHF }),
	ReverbDecayTime:           fparam("decay time", reverbTypes, 0.1, 20, func(e *Effect) *float32 { return &e.reverb.DecayTime }),
	ReverbDecayHFRatio:        fparam("decay HF ratio", reverbTypes, 0.1, 2, func(e *Effect) *float32 { return &e.reverb.DecayHFRatio }),
	ReverbReflectionsGain:     fparam("reflections gain", reverbTypes, 0, 3.16, func(e *Effect) *float32 { return &e.reverb.ReflectionsGain }),
	ReverbReflectionsDelay:    fparam("reflections delay", reverbTypes, 0, 0.3, func(e *Effect) *float32 { return &e.reverb.ReflectionsDelay }),
	ReverbLateReverbGain:      fparam("late reverb gain", reverbTypes, 0, 10, func(e *Effect) *float32 { return &e.reverb.LateReverbGain }),
	ReverbLateReverbDelay:     fparam("late reverb delay", reverbTypes, 0, 0.1, func(e *Effect) *float32 { return &e.reverb.LateReverbDelay }),
	ReverbAirAbsorptionGainHF: fparam("air absorption gain HF", reverbTypes, 0.892, 1, func(e *Effect) *float32 { return &e.reverb.AirAbsorptionGainHF }),
	ReverbRoomRolloffFactor:   fparam("room rolloff factor", reverbTypes, 0, 10, func(e *Effect) *float32 { return &e.reverb.RoomRolloffFactor }),
	ReverbDecayHFLimit: iparam("decay HF limit", reverbTypes, 0, 1,
		func(e *Effect) int { return boolToInt[e.reverb.DecayHFLimit] },
		func(e *Effect, v int) { e.reverb.DecayHFLimit = v != 0 }),

	ReverbGainLF:          fparam("gain LF", eaxReverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.GainLF }),
	ReverbDecayLFRatio:    fparam("decay LF ratio", eaxReverbTypes, 0.1, 2, func(e *Effect) *float32 { return &e.reverb.DecayLFRatio }),
	ReverbEchoTime:        fparam("echo time", eaxReverbTypes, 0.075, 0.25, func(e *Effect) *float32 { return &e.reverb.EchoTime }),
	ReverbEchoDepth:       fparam("echo depth", eaxReverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.EchoDepth }),
	ReverbModulationTime:  fparam("modulation time", eaxReverbTypes, 0.004, 4, func(e *Effect) *float32 { return &e.reverb.ModulationTime }),
	ReverbModulationDepth: fparam("modulation depth", eaxReverbTypes, 0, 1, func(e *Effect) *float32 { return &e.reverb.ModulationDepth }),
	ReverbHFReference:     fparam("HF reference", eaxReverbTypes, 1000, 20000, func(e *Effect) *float32 { return &e.reverb.HFReference }),
	ReverbLFReference:     fparam("LF reference", eaxReverbTypes, 20, 1000, func(e *Effect) *float32 { return &e.reverb.LFReference }),
	ReverbReflectionsPan: {name: "reflections pan", kind: kindVector, types: eaxReverbTypes,
		v: func(e *Effect) []float32 { return e.reverb.ReflectionsPan[:] }},
	ReverbLateReverbPan: {name: "late reverb pan", kind: kindVector, types: eaxReverbTypes,
		v: func(e *Effect) []float32 { return e.reverb.LateReverbPan[:] }},

	ChorusWaveform: iparam("waveform", chorusTypes, 0, 1,
		func(e *Effect) int { return int(e.chorus.Waveform) },
		func(e *Effect, v int) { e.chorus.Waveform = effects.Waveform(v) }),
	ChorusPhase: iparam("phase", chorusTypes, -180, 180,
		func(e *Effect) int { return e.chorus.Phase },
		func(e *Effect, v int) { e.chorus.Phase = v }),
	ChorusRate:     fparam("rate", chorusTypes, 0, 10, func(e *Effect) *float32 { return &e.chorus.Rate }),
	ChorusDepth:    fparam("depth", chorusTypes, 0, 1, func(e *Effect) *float32 { return &e.chorus.Depth }),
	ChorusFeedback: fparam("feedback", chorusTypes, -1, 1, func(e *Effect) *float32 { return &e.chorus.Feedback }),
	// The flanger's narrower delay range is checked in set.
	ChorusDelay: fparam("delay", chorusTypes, 0, 0.016, func(e *Effect) *float32 { return &e.chorus.Delay }),

	CompressorOnOff: iparam("on/off", one(EffectCompressor), 0, 1,
		func(e *Effect) int { return boolToInt[e.compressor.OnOff] },
		func(e *Effect, v int) { e.compressor.OnOff = v != 0 }),

	DistortionEdge:          fparam("edge", one(EffectDistortion), 0, 1, func(e *Effect) *float32 { return &e.distortion.Edge }),
	DistortionGain:          fparam("gain", one(EffectDistortion), 0.01, 1, func(e *Effect) *float32 { return &e.distortion.Gain }),
	DistortionLowpassCutoff: fparam("lowpass cutoff", one(EffectDistortion), 80, 24000, func(e *Effect) *float32 { return &e.distortion.LowpassCutoff }),
	DistortionEQCenter:      fparam("EQ center", one(EffectDistortion), 80, 24000, func(e *Effect) *float32 { return &e.distortion.EQCenter }),
	DistortionEQBandwidth:   fparam("EQ bandwidth", one(EffectDistortion), 80, 24000, func(e *Effect) *float32 { return &e.distortion.EQBandwidth }),

	EchoDelay:    fparam("delay", one(EffectEcho), 0, 0.207, func(e *Effect) *float32 { return &e.echo.Delay }),
	EchoLRDelay:  fparam("LR delay", one(EffectEcho), 0, 0.404, func(e *Effect) *float32 { return &e.echo.LRDelay }),
	EchoDamping:  fparam("damping", one(EffectEcho), 0, 0.99, func(e *Effect) *float32 { return &e.echo.Damping }),
	EchoFeedback: fparam("feedback", one(EffectEcho), 0, 1, func(e *Effect) *float32 { return &e.echo.Feedback }),
	EchoSpread:   fparam("spread", one(EffectEcho), -1, 1, func(e *Effect) *float32 { return &e.echo.Spread }),

	EqualizerLowGain:    fparam("low gain", one(EffectEqualizer), 0.126, 7.943, func(e *Effect) *float32 { return &e.equalizer.LowGain }),
	EqualizerLowCutoff:  fparam("low cutoff", one(EffectEqualizer), 50, 800, func(e *Effect) *float32 { return &e.equalizer.LowCutoff }),
	EqualizerMid1Gain:   fparam("mid1 gain", one(EffectEqualizer), 0.126, 7.943, func(e *Effect) *float32 { return &e.equalizer.Mid1Gain }),
	EqualizerMid1Center: fparam("mid1 center", one(EffectEqualizer), 200, 3000, func(e *Effect) *float32 { return &e.equalizer.Mid1Center }),
	EqualizerMid1Width:  fparam("mid1 width", one(EffectEqualizer), 0.01, 1, func(e *Effect) *float32 { return &e.equalizer.Mid1Width }),
	EqualizerMid2Gain:   fparam("mid2 gain", one(EffectEqualizer), 0.126, 7.943, func(e *Effect) *float32 { return &e.equalizer.Mid2Gain }),
	EqualizerMid2Center: fparam("mid2 center", one(EffectEqualizer), 1000, 8000, func(e *Effect) *float32 { return &e.equalizer.Mid2Center }),
	EqualizerMid2Width:  fparam("mid2 width", one(EffectEqualizer), 0.01, 1, func(e *Effect) *float32 { return &e.equalizer.Mid2Width }),
	EqualizerHighGain:   fparam("high gain", one(EffectEqualizer), 0.126, 7.943, func(e *Effect) *float32 { return &e.equalizer.HighGain }),
	EqualizerHighCutoff: fparam("high cutoff", one(EffectEqualizer), 4000, 16000, func(e *Effect) *float32 { return &e.equalizer.HighCutoff }),

	FrequencyShifterFrequency: fparam("frequency", one(EffectFrequencyShifter), 0, 24000, func(e *Effect) *float32 { return &e.fshifter.Frequency }),
	FrequencyShifterLeftDirection: iparam("left direction", one(EffectFrequencyShifter), 0, 2,
		func(e *Effect) int { return int(e.fshifter.LeftDirection) },
		func(e *Effect, v int) { e.fshifter.LeftDirection = effects.ShiftDirection(v) }),
	FrequencyShifterRightDirection: iparam("right direction", one(EffectFrequencyShifter), 0, 2,
		func(e *Effect) int { return int(e.fshifter.RightDirection) },
		func(e *Effect, v int) { e.fshifter.RightDirection = effects.ShiftDirection(v) }),

	RingModulatorFrequency:      fparam("frequency", one(EffectRingModulator), 0, 8000, func(e *Effect) *float32 { return &e.modulator.Frequency }),
	RingModulatorHighPassCutoff: fparam("high-pass cutoff", one(EffectRingModulator), 0, 24000, func(e *Effect) *float32 { return &e.modulator.HighPassCutoff }),
	RingModulatorWaveform: iparam("waveform", one(EffectRingModulator), 0, 2,
		func(e *Effect) int { return modulatorWaveformIndex(e.modulator.Waveform) },
		func(e *Effect, v int) { e.modulator.Waveform = modulatorWaveforms[v] }),

	AutowahAttackTime:  fparam("attack time", one(EffectAutowah), 0.0001, 1, func(e *Effect) *float32 { return &e.autowah.AttackTime }),
	AutowahReleaseTime: fparam("release time", one(EffectAutowah), 0.0001, 1, func(e *Effect) *float32 { return &e.autowah.ReleaseTime }),
	AutowahResonance:   fparam("resonance", one(EffectAutowah), 2, 1000, func(e *Effect) *float32 { return &e.autowah.Resonance }),
	AutowahPeakGain:    fparam("peak gain", one(EffectAutowah), 0.00003, 31621, func(e *Effect) *float32 { return &e.autowah.PeakGain }),

	PitchShifterCoarseTune: iparam("coarse tune", one(EffectPitchShifter), -12, 12,
		func(e *Effect) int { return e.pshifter.CoarseTune },
		func(e *Effect, v int) { e.pshifter.CoarseTune = v }),
	PitchShifterFineTune: iparam("fine tune", one(EffectPitchShifter), -50, 50,
		func(e *Effect) int { return e.pshifter.FineTune },
		func(e *Effect, v int) { e.pshifter.FineTune = v }),

	VocalMorpherPhonemeA: iparam("phoneme A", one(EffectVocalMorpher), 0, int(effects.PhonemeZ),
		func(e *Effect) int { return int(e.vmorpher.PhonemeA) },
		func(e *Effect, v int) { e.vmorpher.PhonemeA = effects.Phoneme(v) }),
	VocalMorpherPhonemeACoarseTuning: iparam("phoneme A coarse tuning", one(EffectVocalMorpher), -24, 24,
		func(e *Effect) int { return e.vmorpher.PhonemeACoarseTuning },
		func(e *Effect, v int) { e.vmorpher.PhonemeACoarseTuning = v }),
	VocalMorpherPhonemeB: iparam("phoneme B", one(EffectVocalMorpher), 0, int(effects.PhonemeZ),
		func(e *Effect) int { return int(e.vmorpher.PhonemeB) },
		func(e *Effect, v int) { e.vmorpher.PhonemeB = effects.Phoneme(v) }),
	VocalMorpherPhonemeBCoarseTuning: iparam("phoneme B coarse tuning", one(EffectVocalMorpher), -24, 24,
		func(e *Effect) int { return e.vmorpher.PhonemeBCoarseTuning },
		func(e *Effect, v int) { e.vmorpher.PhonemeBCoarseTuning = v }),
	VocalMorpherWaveform: iparam("waveform", one(EffectVocalMorpher), 0, 2,
		func(e *Effect) int { return int(e.vmorpher.Waveform) },
		func(e *Effect, v int) { e.vmorpher.Waveform = effects.Waveform(v) }),
	VocalMorpherRate: fparam("rate", one(EffectVocalMorpher), 0, 10, func(e *Effect) *float32 { return &e.vmorpher.Rate }),

	DedicatedGain: fparam("gain", dedicatedTypes, 0, float32(math.Inf(1)), func(e *Effect) *float32 { return &e.dedicated.Gain }),

	// Stored as two arrays; SetParamfv and Paramfv handle it directly.
	ConvolutionOrientation: {name: "orientation", kind: kindVector, types: one(EffectConvolution)},
}

// flangerMaxDelay is the flanger's upper delay bound.
const flangerMaxDelay = 0.004

// Effect is a set of effect parameters. It is a template: assigning it to
// an effect slot copies the current values, and later changes only reach
// the slot when the effect is assigned again. Effects are safe for
// concurrent use.
type Effect struct {
	mu  sync.Mutex
	typ EffectType

	reverb     effects.ReverbProps
	chorus     effects.ChorusProps
	compressor effects.CompressorProps
	distortion effects.DistortionProps
	echo       effects.EchoProps
	equalizer  effects.EqualizerProps
	fshifter   effects.FshifterProps
	modulator  effects.ModulatorProps
	autowah    effects.AutowahProps
	pshifter   effects.PshifterProps
	vmorpher   effects.VmorpherProps
	dedicated  effects.DedicatedProps
	convolver  effects.ConvolutionProps
}

// NewEffect returns an effect of type t with default parameters.
func NewEffect(t EffectType) (*Effect, error) {
	e := &Effect{}
	if err := e.SetType(t); err != nil {
		return nil, err
	}
	return e, nil
}

// Type returns the effect type.
func (e *Effect) Type() EffectType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typ
}

// SetType changes the type and resets its parameters to their defaults.
func (e *Effect) SetType(t EffectType) error {
	if !t.Valid() {
		return newError(InvalidEnum, "unknown effect type %d", int(t))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typ = t
	switch p := effects.DefaultProps(t).(type) {
	case effects.ReverbProps:
		e.reverb = p
	case effects.ChorusProps:
		e.chorus = p
	case effects.CompressorProps:
		e.compressor = p
	case effects.DistortionProps:
		e.distortion = p
	case effects.EchoProps:
		e.echo = p
	case effects.EqualizerProps:
		e.equalizer = p
	case effects.FshifterProps:
		e.fshifter = p
	case effects.ModulatorProps:
		e.modulator = p
	case effects.AutowahProps:
		e.autowah = p
	case effects.PshifterProps:
		e.pshifter = p
	case effects.VmorpherProps:
		e.vmorpher = p
	case effects.DedicatedProps:
		e.dedicated = p
	case effects.ConvolutionProps:
		e.convolver = p
	}
	return nil
}

// props returns the parameter snapshot for the current type. e.mu must be
// held.
func (e *Effect) props() effects.Props {
	switch e.typ {
	case EffectReverb:
		p := e.reverb
		p.Standard = true
		return p
	case EffectEAXReverb:
		p := e.reverb
		p.Standard = false
		return p
	case EffectChorus, EffectFlanger:
		p := e.chorus
		p.Flanger = e.typ == EffectFlanger
		return p
	case EffectCompressor:
		return e.compressor
	case EffectDistortion:
		return e.distortion
	case EffectEcho:
		return e.echo
	case EffectEqualizer:
		return e.equalizer
	case EffectFrequencyShifter:
		return e.fshifter
	case EffectRingModulator:
		return e.modulator
	case EffectAutowah:
		return e.autowah
	case EffectPitchShifter:
		return e.pshifter
	case EffectVocalMorpher:
		return e.vmorpher
	case EffectDedicatedDialog, EffectDedicatedLFE:
		p := e.dedicated
		p.LFE = e.typ == EffectDedicatedLFE
		return p
	case EffectConvolution:
		return e.convolver
	default:
		return effects.NullProps{}
	}
}

// snapshot returns the type and parameters under the lock.
func (e *Effect) snapshot() (EffectType, effects.Props) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typ, e.props()
}

// spec looks up p for the current type. e.mu must be held.
func (e *Effect) spec(p EffectParam, kind paramKind) (paramSpec, error) {
	s, ok := paramSpecs[p]
	if !ok {
		return s, newError(InvalidEnum, "unknown effect parameter %d", int(p))
	}
	applies := false
	for _, t := range s.types {
		if t == e.typ {
			applies = true
			break
		}
	}
	if !applies {
		return s, newError(InvalidEnum, "%s effect has no %s parameter", e.typ, s.name)
	}
	if s.kind != kind {
		return s, newError(InvalidEnum, "%s parameter %s has a different type", e.typ, s.name)
	}
	return s, nil
}

func (s paramSpec) check(typ EffectType, v float32) error {
	hi := s.max
	if typ == EffectFlanger && s.name == "delay" {
		hi = flangerMaxDelay
	}
	if !(v >= s.min && v <= hi) {
		return newError(InvalidValue, "%s %s %g outside %g to %g", typ, s.name, v, s.min, hi)
	}
	return nil
}

// SetParamf sets a float parameter.
func (e *Effect) SetParamf(p EffectParam, v float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindFloat)
	if err != nil {
		return err
	}
	if err := s.check(e.typ, v); err != nil {
		return err
	}
	*s.f(e) = v
	return nil
}

// Paramf returns a float parameter.
func (e *Effect) Paramf(p EffectParam) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindFloat)
	if err != nil {
		return 0, err
	}
	return *s.f(e), nil
}

// SetParami sets an integer or boolean parameter.
func (e *Effect) SetParami(p EffectParam, v int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindInt)
	if err != nil {
		return err
	}
	if v < int(s.min) || v > int(s.max) {
		return newError(InvalidValue, "%s %s %d outside %d to %d", e.typ, s.name, v, int(s.min), int(s.max))
	}
	s.seti(e, v)
	return nil
}

// Parami returns an integer or boolean parameter.
func (e *Effect) Parami(p EffectParam) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindInt)
	if err != nil {
		return 0, err
	}
	return s.geti(e), nil
}

// SetParamfv sets a vector parameter. Pan vectors take three values with a
// length of at most 1; the convolution orientation takes six (at, then up).
func (e *Effect) SetParamfv(p EffectParam, v []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindVector)
	if err != nil {
		return err
	}
	if p == ConvolutionOrientation {
		if len(v) != 6 {
			return newError(InvalidValue, "orientation needs 6 values, got %d", len(v))
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return newError(InvalidValue, "orientation value %g", x)
			}
		}
		copy(e.convolver.OrientAt[:], v[:3])
		copy(e.convolver.OrientUp[:], v[3:])
		return nil
	}
	if len(v) != 3 {
		return newError(InvalidValue, "%s needs 3 values, got %d", s.name, len(v))
	}
	var sq float64
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return newError(InvalidValue, "%s value %g", s.name, x)
		}
		sq += float64(x) * float64(x)
	}
	if sq > 1+1e-6 {
		return newError(InvalidValue, "%s length %g exceeds 1", s.name, math.Sqrt(sq))
	}
	copy(s.v(e), v)
	return nil
}

// Paramfv returns a vector parameter.
func (e *Effect) Paramfv(p EffectParam) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(p, kindVector)
	if err != nil {
		return nil, err
	}
	if p == ConvolutionOrientation {
		out := make([]float32, 0, 6)
		out = append(out, e.convolver.OrientAt[:]...)
		return append(out, e.convolver.OrientUp[:]...), nil
	}
	return append([]float32(nil), s.v(e)...), nil
}

// LoadReverbPreset sets every reverb parameter from p. The effect must be a
// reverb; the standard reverb ignores the EAX-only values when mixing.
func (e *Effect) LoadReverbPreset(p ReverbProperties) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.typ != EffectReverb && e.typ != EffectEAXReverb {
		return newError(InvalidOperation, "%s effect cannot take a reverb preset", e.typ)
	}
	checks := []struct {
		p EffectParam
		v float32
	}{
		{ReverbDensity, p.Density}, {ReverbDiffusion, p.Diffusion}, {ReverbGain, p.Gain},
		{ReverbGainHF, p.GainHF}, {ReverbGainLF, p.GainLF}, {ReverbDecayTime, p.DecayTime},
		{ReverbDecayHFRatio, p.DecayHFRatio}, {ReverbDecayLFRatio, p.DecayLFRatio},
		{ReverbReflectionsGain, p.ReflectionsGain}, {ReverbReflectionsDelay, p.ReflectionsDelay},
		{ReverbLateReverbGain, p.LateReverbGain}, {ReverbLateReverbDelay, p.LateReverbDelay},
		{ReverbEchoTime, p.EchoTime}, {ReverbEchoDepth, p.EchoDepth},
		{ReverbModulationTime, p.ModulationTime}, {ReverbModulationDepth, p.ModulationDepth},
		{ReverbAirAbsorptionGainHF, p.AirAbsorptionGainHF}, {ReverbHFReference, p.HFReference},
		{ReverbLFReference, p.LFReference}, {ReverbRoomRolloffFactor, p.RoomRolloffFactor},
	}
	for _, c := range checks {
		if err := paramSpecs[c.p].check(EffectEAXReverb, c.v); err != nil {
			return err
		}
	}
	e.reverb = p
	return nil
}
