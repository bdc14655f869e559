package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

// directConvolve is the reference causal FIR.
func directConvolve(in []float32, h []float64) []float32 {
	out := make([]float32, len(in))
	for i := range in {
		var sum float64
		for k := 0; k < len(h) && k <= i; k++ {
			sum += float64(in[i-k]) * h[k]
		}
		out[i] = float32(sum)
	}
	return out
}

func TestConvolverMatchesDirect(t *testing.T) {
	tests := []struct {
		name   string
		irLen  int
		block  int
		inLen  int
		chunks bool
	}{
		{"single_segment", 100, 256, 2000, false},
		{"two_segments", 700, 256, 3000, false},
		{"many_segments", 2600, 128, 6000, false},
		{"odd_blocks", 1300, 97, 4000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ir := testutil.ToFloat64(testutil.WhiteNoise(tt.irLen, 0.5))
			in := testutil.WhiteNoise(tt.inLen, 0.5)
			want := directConvolve(in, ir)

			c := NewConvolver([][]float64{ir})
			require.NotNil(t, c)
			got := make([]float32, len(in))
			for base := 0; base < len(in); base += tt.block {
				end := min(base+tt.block, len(in))
				c.Process(in[base:end], [][]float32{got[base:end]})
			}
			for i := range want {
				require.InDelta(t, want[i], got[i], 1e-4, "sample %d", i)
			}
		})
	}
}

func TestConvolverImpulseHasNoLatency(t *testing.T) {
	ir := []float64{0.5, 0.25}
	c := NewConvolver([][]float64{ir, {1}})
	require.Equal(t, 2, c.Outputs())

	in := testutil.Impulse(64, 0)
	a := make([]float32, 64)
	b := make([]float32, 64)
	c.Process(in, [][]float32{a, b})
	assert.InDelta(t, 0.5, a[0], 1e-6)
	assert.InDelta(t, 0.25, a[1], 1e-6)
	assert.InDelta(t, 1, b[0], 1e-6)
	testutil.AssertAllZero(t, a[2:], "tail beyond the response")
}

func TestConvolverReset(t *testing.T) {
	ir := testutil.ToFloat64(testutil.WhiteNoise(1500, 0.5))
	c := NewConvolver([][]float64{ir})
	out := make([]float32, 1024)
	c.Process(testutil.WhiteNoise(1024, 1), [][]float32{out})

	c.Reset()
	c.Process(make([]float32, 1024), [][]float32{out})
	testutil.AssertAllZero(t, out, "silence after reset")
}

func TestConvolverEmpty(t *testing.T) {
	assert.Nil(t, NewConvolver(nil))
	assert.Nil(t, NewConvolver([][]float64{{}}))
}

func TestPolyphaseRates(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
	}{
		{"cd_to_dat", 44100, 48000},
		{"dat_to_cd", 48000, 44100},
		{"double", 24000, 48000},
		{"half", 96000, 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp, err := NewPolyphase(tt.src, tt.dst)
			require.NoError(t, err)

			const freq = 1000.0
			in := testutil.Sine(tt.src/2, freq, float64(tt.src), 0.5)
			src := testutil.ToFloat64(in)
			n := pp.OutputLen(len(src))
			assert.Equal(t, int(math.Ceil(float64(len(src))*float64(tt.dst)/float64(tt.src))), n)

			dst := make([]float64, n)
			pp.Process(dst, src)

			// Away from the edges the output is the same sine at the new rate.
			for j := n / 4; j < 3*n/4; j++ {
				want := 0.5 * math.Sin(2*math.Pi*freq*float64(j)/float64(tt.dst))
				require.InDelta(t, want, dst[j], 1e-3, "sample %d", j)
			}
		})
	}
}

func TestPolyphaseIdentity(t *testing.T) {
	pp, err := NewPolyphase(48000, 48000)
	require.NoError(t, err)
	src := []float64{1, 2, 3}
	dst := make([]float64, 3)
	pp.Process(dst, src)
	assert.Equal(t, src, dst)
}

func TestPolyphaseInvalid(t *testing.T) {
	_, err := NewPolyphase(0, 48000)
	require.ErrorIs(t, err, ErrInvalidRate)
	_, err = NewPolyphase(48000, -1)
	require.ErrorIs(t, err, ErrInvalidRate)
}

func BenchmarkConvolverOneSecond(b *testing.B) {
	ir := testutil.ToFloat64(testutil.WhiteNoise(48000, 0.1))
	c := NewConvolver([][]float64{ir, ir, ir, ir})
	in := testutil.WhiteNoise(512, 0.5)
	out := make([][]float32, 4)
	for i := range out {
		out[i] = make([]float32, 512)
	}
	for b.Loop() {
		c.Process(in, out)
	}
}
