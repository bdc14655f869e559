package mixer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// FileConfig is a device configuration file. Keys follow alsoft.conf; a
// key that is absent leaves the matching DeviceConfig field alone.
//
//	frequency: 48000
//	channels: surround51
//	sample-type: int16
//	period-size: 1024
//	periods: 3
//	resampler: bsinc24
//	hrtf: auto
//	cf_level: 0
//	reverb:
//	  boost: -3
type FileConfig struct {
	Frequency        *int     `yaml:"frequency"`
	Channels         *string  `yaml:"channels"`
	SampleType       *string  `yaml:"sample-type"`
	PeriodSize       *int     `yaml:"period-size"`
	Periods          *int     `yaml:"periods"`
	Resampler        *string  `yaml:"resampler"`
	HRTF             *string  `yaml:"hrtf"`
	HRTFFile         *string  `yaml:"hrtf-file"`
	Sends            *int     `yaml:"sends"`
	Dither           *bool    `yaml:"dither"`
	DitherDepth      *int     `yaml:"dither-depth"`
	OutputLimiter    *bool    `yaml:"output-limiter"`
	CrossfeedLevel   *int     `yaml:"cf_level"`
	IMA4BlockSize    *int     `yaml:"ima4-block-size"`
	MSADPCMBlockSize *int     `yaml:"msadpcm-block-size"`
	RealtimePriority *int     `yaml:"rt-prio"`
	NFCDistance      *float32 `yaml:"nfc-distance"`

	Reverb struct {
		Boost *float32 `yaml:"boost"`
	} `yaml:"reverb"`
}

// ParseConfig decodes a YAML configuration. Unknown keys are errors.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &fc, nil
}

// LoadConfigFile reads and parses a configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

func parseHRTFMode(s string) (HRTFMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HRTFAuto, nil
	case "true", "on", "yes", "enabled":
		return HRTFEnabled, nil
	case "false", "off", "no", "disabled":
		return HRTFDisabled, nil
	}
	return HRTFAuto, fmt.Errorf("unknown hrtf mode %q", s)
}

// Apply overlays the keys present in fc onto cfg and validates the result.
// cfg is left unchanged on error.
func (fc *FileConfig) Apply(cfg *DeviceConfig) error {
	out := *cfg
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&out.Frequency, fc.Frequency)
	setInt(&out.UpdateSize, fc.PeriodSize)
	setInt(&out.Periods, fc.Periods)
	setInt(&out.Sends, fc.Sends)
	setInt(&out.DitherDepth, fc.DitherDepth)
	setInt(&out.Crossfeed, fc.CrossfeedLevel)
	setInt(&out.IMA4BlockAlign, fc.IMA4BlockSize)
	setInt(&out.MSADPCMBlockAlign, fc.MSADPCMBlockSize)
	setInt(&out.RealtimePriority, fc.RealtimePriority)

	if fc.Channels != nil {
		l, err := panning.ParseLayout(*fc.Channels)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.Layout = l
	}
	if fc.SampleType != nil {
		t, err := convert.ParseDeviceType(*fc.SampleType)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.OutputType = t
	}
	if fc.Resampler != nil {
		k, err := resample.ParseKind(*fc.Resampler)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.Resampler = k
	}
	if fc.HRTF != nil {
		m, err := parseHRTFMode(*fc.HRTF)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		out.HRTF = m
	}
	if fc.HRTFFile != nil {
		out.HRTFFile = *fc.HRTFFile
	}
	if fc.Dither != nil {
		out.Dither = *fc.Dither
	}
	if fc.OutputLimiter != nil {
		out.OutputLimiter = *fc.OutputLimiter
	}
	if fc.NFCDistance != nil {
		out.NFCDistance = *fc.NFCDistance
	}
	if fc.Reverb.Boost != nil {
		out.ReverbBoost = *fc.Reverb.Boost
	}

	if err := out.Validate(); err != nil {
		return err
	}
	*cfg = out
	return nil
}

// WatchConfigFile calls fn with the re-parsed file each time path is
// written or replaced, until ctx is done. Parse failures are passed to fn
// with a nil config. The containing directory is watched so editors that
// save by renaming are seen.
func WatchConfigFile(ctx context.Context, path string, fn func(*FileConfig, error)) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fc, err := LoadConfigFile(path)
			if err != nil {
				// A rename away leaves nothing to read until the new file
				// is created.
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				fn(nil, err)
				continue
			}
			fn(fc, nil)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, err)
		}
	}
}
