package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/bs2b"
	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

type countStage struct {
	calls *[]string
	name  string
}

func (s countStage) Process(lines [][]float32, n int) { *s.calls = append(*s.calls, s.name) }
func (s countStage) Name() string                     { return s.name }

func TestBuildSelectsStages(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"empty", Config{Channels: 2, Frequency: 48000}, []string{}},
		{"all stereo", Config{Channels: 2, Frequency: 48000, Crossfeed: bs2b.Middle, Limiter: true, DitherBits: 16},
			[]string{"crossfeed", "limiter", "dither"}},
		{"crossfeed needs stereo", Config{Channels: 6, Frequency: 48000, Crossfeed: bs2b.High, Limiter: true},
			[]string{"limiter"}},
		{"dither only", Config{Channels: 1, Frequency: 44100, DitherBits: 8}, []string{"dither"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Names())
			assert.Equal(t, len(tt.want), p.Len())
		})
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	_, err := Build(Config{Channels: 0, Frequency: 48000})
	require.Error(t, err)
	_, err = Build(Config{Channels: 2, Frequency: 0})
	require.Error(t, err)
}

func TestStagesRunInOrder(t *testing.T) {
	var calls []string
	p := New(countStage{&calls, "a"}, nil, countStage{&calls, "b"})
	p.Process(nil, 0)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestNilPipelineIsNoop(t *testing.T) {
	var p *Pipeline
	line := []float32{0.25}
	p.Process([][]float32{line}, 1)
	assert.Equal(t, float32(0.25), line[0])
	assert.Zero(t, p.Len())
	assert.Zero(t, p.Latency())
}

func TestLatencyCountsLimiter(t *testing.T) {
	p, err := Build(Config{Channels: 2, Frequency: 48000, Limiter: true, DitherBits: 16})
	require.NoError(t, err)
	assert.Positive(t, p.Latency())
}

func TestLimiterBoundsOutput(t *testing.T) {
	const n = 512
	p, err := Build(Config{Channels: 1, Frequency: 48000, Limiter: true, ThresholdDB: LimiterThreshold(0)})
	require.NoError(t, err)

	src := testutil.Sine(48000, 440, 48000, 4)
	out := make([]float32, 0, len(src))
	for off := 0; off+n <= len(src); off += n {
		line := append([]float32(nil), src[off:off+n]...)
		p.Process([][]float32{line}, n)
		out = append(out, line...)
	}
	tail := out[len(out)/2:]
	testutil.AssertNoNaNOrInf(t, tail)
	assert.LessOrEqual(t, testutil.Peak(tail), 1.01)
}

func TestDitherQuantizes(t *testing.T) {
	const bits = 8
	p := New(NewDither(bits))
	line := testutil.Sine(256, 1000, 48000, 0.5)
	p.Process([][]float32{line}, len(line))

	scale := math.Ldexp(1, bits-1)
	for i, v := range line {
		q := float64(v) * scale
		assert.InDelta(t, math.Round(q), q, 1e-3, "sample %d", i)
	}
}

func TestLimiterThreshold(t *testing.T) {
	assert.Less(t, LimiterThreshold(0), float32(0))
	th16 := LimiterThreshold(16)
	assert.InDelta(t, -0.000265, th16, 1e-5)
	assert.Less(t, LimiterThreshold(8), th16)
}
