package scene

import (
	"flag"
	"fmt"
	"log"
	"os"

	mixer "github.com/tphakala/go-audio-mixer"
)

// Flags are the command line options shared by the scene tools.
type Flags struct {
	Config    string
	Rate      int
	Layout    string
	Type      string
	Resampler string
	HRTF      string
	Reverb    string
	Loop      bool
	Orbit     float64
	Pitch     float64
	Verbose   bool

	fs *flag.FlagSet
}

// RegisterFlags defines the shared options on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.Config, "config", "", "YAML device configuration file")
	fs.IntVar(&f.Rate, "rate", 48000, "Output sample rate in Hz")
	fs.StringVar(&f.Layout, "layout", "stereo", "Output layout: mono, stereo, quad, surround51, surround61, surround71, ambi1")
	fs.StringVar(&f.Type, "type", "", "Output sample type (int16, float32, ...)")
	fs.StringVar(&f.Resampler, "resampler", "", "Resampler: point, linear, cubic, bsinc12, bsinc24, ...")
	fs.StringVar(&f.HRTF, "hrtf", "", "HRTF mode: auto, enabled, disabled")
	fs.StringVar(&f.Reverb, "reverb", "", "Environment reverb preset (e.g. concert-hall)")
	fs.BoolVar(&f.Loop, "loop", false, "Loop every clip")
	fs.Float64Var(&f.Orbit, "orbit", 0, "Orbit speed around the listener in radians per second")
	fs.Float64Var(&f.Pitch, "pitch", 1, "Playback pitch of every clip")
	fs.BoolVar(&f.Verbose, "v", false, "Verbose output")
	return f
}

// DeviceConfig builds the device configuration: defaults, then the config
// file, then the flags given on the command line.
func (f *Flags) DeviceConfig() (mixer.DeviceConfig, error) {
	cfg := mixer.DefaultDeviceConfig()
	if f.Config != "" {
		fc, err := mixer.LoadConfigFile(f.Config)
		if err != nil {
			return cfg, err
		}
		if err := fc.Apply(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", f.Config, err)
		}
	}

	var fc mixer.FileConfig
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "rate":
			fc.Frequency = &f.Rate
		case "layout":
			fc.Channels = &f.Layout
		case "type":
			fc.SampleType = &f.Type
		case "resampler":
			fc.Resampler = &f.Resampler
		case "hrtf":
			fc.HRTF = &f.HRTF
		}
	})
	if err := fc.Apply(&cfg); err != nil {
		return cfg, err
	}

	if f.Verbose {
		cfg.Logger = log.New(os.Stderr, "mixer: ", log.LstdFlags)
	} else {
		cfg.Quiet = true
	}
	return cfg, nil
}

// Options returns the scene options selected by the flags.
func (f *Flags) Options() Options {
	return Options{
		Reverb: f.Reverb,
		Loop:   f.Loop,
		Orbit:  float32(f.Orbit),
		Pitch:  float32(f.Pitch),
	}
}

// Placements parses the positional arguments.
func Placements(args []string) ([]Placement, error) {
	places := make([]Placement, 0, len(args))
	for _, a := range args {
		p, err := ParsePlacement(a)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

// Paths returns the clip paths of places.
func Paths(places []Placement) []string {
	paths := make([]string, len(places))
	for i, p := range places {
		paths[i] = p.Path
	}
	return paths
}
