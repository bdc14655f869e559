package mixer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
frequency: 44100
channels: surround51
sample-type: int16
period-size: 1024
periods: 4
resampler: bsinc24
hrtf: "off"
sends: 4
dither: false
output-limiter: true
cf_level: 0
ima4-block-size: 129
nfc-distance: 1.5
reverb:
  boost: -3
`

func TestParseConfigAndApply(t *testing.T) {
	fc, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	require.NotNil(t, fc.Frequency)
	assert.Equal(t, 44100, *fc.Frequency)
	assert.Nil(t, fc.MSADPCMBlockSize, "absent keys stay nil")

	cfg := DefaultDeviceConfig()
	require.NoError(t, fc.Apply(&cfg))
	assert.Equal(t, 44100, cfg.Frequency)
	assert.Equal(t, Layout51, cfg.Layout)
	assert.Equal(t, OutputInt16, cfg.OutputType)
	assert.Equal(t, 1024, cfg.UpdateSize)
	assert.Equal(t, 4, cfg.Periods)
	assert.Equal(t, ResamplerBSinc24, cfg.Resampler)
	assert.Equal(t, HRTFDisabled, cfg.HRTF)
	assert.Equal(t, 4, cfg.Sends)
	assert.False(t, cfg.Dither)
	assert.True(t, cfg.OutputLimiter)
	assert.Equal(t, 129, cfg.IMA4BlockAlign)
	assert.Equal(t, float32(1.5), cfg.NFCDistance)
	assert.Equal(t, float32(-3), cfg.ReverbBoost)
	// Not in the file.
	assert.Equal(t, 0, cfg.MSADPCMBlockAlign)
}

func TestParseConfigEmpty(t *testing.T) {
	fc, err := ParseConfig(nil)
	require.NoError(t, err)
	cfg := DefaultDeviceConfig()
	require.NoError(t, fc.Apply(&cfg))
	assert.Equal(t, DefaultDeviceConfig(), cfg)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("frequency: 48000\nvolume: 11\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("frequency: [1, 2]\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"layout", "channels: hexagon"},
		{"sample type", "sample-type: int24"},
		{"resampler", "resampler: sinc64"},
		{"hrtf mode", "hrtf: sometimes"},
		{"frequency", "frequency: 1000"},
		{"ima4 block", "ima4-block-size: 64"},
		{"reverb boost", "reverb:\n  boost: 50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := ParseConfig([]byte(tt.yaml))
			require.NoError(t, err)

			cfg := DefaultDeviceConfig()
			err = fc.Apply(&cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, DefaultDeviceConfig(), cfg, "config unchanged on error")
		})
	}
}

func TestHRTFModeNames(t *testing.T) {
	for in, want := range map[string]HRTFMode{
		"auto": HRTFAuto, "": HRTFAuto, "on": HRTFEnabled, "true": HRTFEnabled,
		"Disabled": HRTFDisabled, "no": HRTFDisabled,
	} {
		got, err := parseHRTFMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	fc, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NotNil(t, fc.Periods)
	assert.Equal(t, 4, *fc.Periods)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("bogus: 1\n"), 0o600))
	_, err = LoadConfigFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), path)
}

func TestWatchConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cf_level: 1\n"), 0o600))

	type result struct {
		fc  *FileConfig
		err error
	}
	results := make(chan result, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchConfigFile(ctx, path, func(fc *FileConfig, err error) {
			select {
			case results <- result{fc, err}:
			default:
			}
		})
	}()

	// The watcher may not be registered yet, so keep writing until an
	// update arrives.
	var got result
	require.Eventually(t, func() bool {
		if err := replaceFile(path, "cf_level: 4\n"); err != nil {
			return false
		}
		select {
		case got = <-results:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, got.err)
	require.NotNil(t, got.fc.CrossfeedLevel)
	assert.Equal(t, 4, *got.fc.CrossfeedLevel)

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	for len(results) > 0 {
		r := <-results
		require.NoError(t, r.err)
		require.NotNil(t, r.fc.CrossfeedLevel)
		assert.Equal(t, 4, *r.fc.CrossfeedLevel)
	}
}

// replaceFile writes data next to path and renames it into place, the way
// editors save.
func replaceFile(path, data string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func TestWatchConfigFileMissingDirectory(t *testing.T) {
	err := WatchConfigFile(context.Background(), filepath.Join(t.TempDir(), "nope", "mixer.yaml"), func(*FileConfig, error) {})
	assert.Error(t, err)
}
