package mastering

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

const testRate = 48000

func run(c *Compressor, lines [][]float32, block int) {
	total := len(lines[0])
	view := make([][]float32, len(lines))
	for base := 0; base < total; base += block {
		n := min(block, total-base)
		for i := range lines {
			view[i] = lines[i][base : base+n]
		}
		c.Process(view, n)
	}
}

func TestLimiterLookAhead(t *testing.T) {
	c := New(2, testRate, LimiterParams(0))
	assert.Equal(t, 48, c.LookAhead())

	c = New(1, testRate, Params{Ratio: 1, Attack: 0.01, Release: 0.1})
	assert.Equal(t, 0, c.LookAhead())
}

func TestLimiterBoundsLoudSignal(t *testing.T) {
	c := New(2, testRate, LimiterParams(0))
	left := testutil.Sine(testRate, 440, testRate, 4)
	right := testutil.Sine(testRate, 660, testRate, 3)
	run(c, [][]float32{left, right}, 512)

	// Once the detector settles, nothing escapes far past full scale.
	tail := testRate / 4
	testutil.AssertNoNaNOrInf(t, left)
	assert.LessOrEqual(t, testutil.Peak(left[tail:]), 1.05)
	assert.LessOrEqual(t, testutil.Peak(right[tail:]), 1.05)
	assert.Greater(t, testutil.Peak(left[tail:]), 0.5, "limiting should not silence the signal")
}

func TestLimiterDelaysQuietSignal(t *testing.T) {
	c := New(1, testRate, LimiterParams(0))
	la := c.LookAhead()

	in := testutil.Sine(4096, 1000, testRate, 0.1)
	out := append([]float32(nil), in...)
	run(c, [][]float32{out}, 300)

	testutil.AssertAllZero(t, out[:la], "look-ahead latency")
	// Gain on a signal far below threshold stays near unity.
	for i := 2048; i < len(out); i++ {
		require.InDelta(t, in[i-la], out[i], 0.02, "sample %d", i)
	}
}

func TestLimiterSmallBlocks(t *testing.T) {
	// Blocks shorter than the look-ahead go through the partial delay path.
	c := New(1, testRate, LimiterParams(0))
	in := testutil.Impulse(256, 0)
	in[0] = 0.01
	out := append([]float32(nil), in...)
	run(c, [][]float32{out}, 7)

	la := c.LookAhead()
	assert.InDelta(t, 0.01, out[la], 0.001)
	for i, v := range out {
		if i != la {
			assert.InDelta(t, 0, v, 1e-6, "sample %d", i)
		}
	}
}

func TestSlidingHoldTracksMaximum(t *testing.T) {
	h := &slidingHold{length: 4}
	h.values[0] = float32(math.Inf(-1))
	h.expiries[0] = 4

	in := []float32{1, 0.5, 0.25, 0.1, 0, 0, 2, 0}
	want := []float32{1, 1, 1, 1, 0.5, 0.25, 2, 2}
	for i, x := range in {
		assert.InDelta(t, want[i], h.update(uint32(i), x), 1e-6, "sample %d", i)
	}
}

func BenchmarkLimiterStereo(b *testing.B) {
	c := New(2, testRate, LimiterParams(0))
	left := testutil.Sine(1024, 440, testRate, 2)
	right := testutil.Sine(1024, 550, testRate, 2)
	lines := [][]float32{left, right}
	for b.Loop() {
		c.Process(lines, 1024)
	}
}
