package mixer

import "fmt"

// FilterType selects the shape of a Filter.
type FilterType int

const (
	FilterNull FilterType = iota
	FilterLowPass
	FilterHighPass
	FilterBandPass
)

func (t FilterType) String() string {
	switch t {
	case FilterNull:
		return "null"
	case FilterLowPass:
		return "low-pass"
	case FilterHighPass:
		return "high-pass"
	case FilterBandPass:
		return "band-pass"
	default:
		return fmt.Sprintf("FilterType(%d)", int(t))
	}
}

// Filter attenuates a source's direct path or one of its sends. It is a
// value: sources keep their own copy. The low-pass uses GainHF, the
// high-pass GainLF and the band-pass both; Gain scales everything.
type Filter struct {
	Type   FilterType
	Gain   float32
	GainHF float32
	GainLF float32
}

// NewFilter returns a filter of type t that passes everything.
func NewFilter(t FilterType) (Filter, error) {
	if t < FilterNull || t > FilterBandPass {
		return Filter{}, newError(InvalidEnum, "unknown filter type %d", int(t))
	}
	return Filter{Type: t, Gain: 1, GainHF: 1, GainLF: 1}, nil
}

func checkFilterGain(name string, v float32) error {
	if !(v >= 0 && v <= 1) {
		return newError(InvalidValue, "filter %s %g outside 0 to 1", name, v)
	}
	return nil
}

// SetGain sets the overall gain, 0 to 1.
func (f *Filter) SetGain(v float32) error {
	if err := checkFilterGain("gain", v); err != nil {
		return err
	}
	f.Gain = v
	return nil
}

// SetGainHF sets the gain at high frequencies, 0 to 1.
func (f *Filter) SetGainHF(v float32) error {
	if err := checkFilterGain("gain HF", v); err != nil {
		return err
	}
	f.GainHF = v
	return nil
}

// SetGainLF sets the gain at low frequencies, 0 to 1.
func (f *Filter) SetGainLF(v float32) error {
	if err := checkFilterGain("gain LF", v); err != nil {
		return err
	}
	f.GainLF = v
	return nil
}

func (f Filter) validate() error {
	if f.Type < FilterNull || f.Type > FilterBandPass {
		return newError(InvalidEnum, "unknown filter type %d", int(f.Type))
	}
	for _, g := range [...]struct {
		name string
		v    float32
	}{{"gain", f.Gain}, {"gain HF", f.GainHF}, {"gain LF", f.GainLF}} {
		if err := checkFilterGain(g.name, g.v); err != nil {
			return err
		}
	}
	return nil
}

// Filter reference frequencies.
const (
	filterHFReference = 5000
	filterLFReference = 250
)

// pathFilter is the resolved filter of one path in a parameter snapshot.
type pathFilter struct {
	gain   float32
	gainHF float32
	hfRef  float32
	gainLF float32
	lfRef  float32
}

// passFilter lets everything through.
var passFilter = pathFilter{gain: 1, gainHF: 1, hfRef: filterHFReference, gainLF: 1, lfRef: filterLFReference}

func (f Filter) resolve() pathFilter {
	out := passFilter
	switch f.Type {
	case FilterLowPass:
		out.gain = f.Gain
		out.gainHF = f.GainHF
	case FilterHighPass:
		out.gain = f.Gain
		out.gainLF = f.GainLF
	case FilterBandPass:
		out.gain = f.Gain
		out.gainHF = f.GainHF
		out.gainLF = f.GainLF
	}
	return out
}
