package bs2b

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

func TestNewRejectsBadRate(t *testing.T) {
	_, err := New(High, 0)
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestOffPromotesToHighEasy(t *testing.T) {
	p, err := New(Off, 48000)
	require.NoError(t, err)
	assert.Equal(t, HighEasy, p.Level())
}

func TestMonoKeepsDCLevel(t *testing.T) {
	// A centered signal leaves both channels at unity for DC.
	for _, lvl := range []Level{Low, Middle, High, LowEasy, MiddleEasy, HighEasy} {
		p, err := New(lvl, 44100)
		require.NoError(t, err)

		left := make([]float32, 44100)
		right := make([]float32, 44100)
		for i := range left {
			left[i], right[i] = 0.5, 0.5
		}
		p.CrossFeed(left, right)
		assert.InDelta(t, 0.5, left[len(left)-1], 1e-3, "level %d", lvl)
		assert.InDelta(t, 0.5, right[len(right)-1], 1e-3, "level %d", lvl)
	}
}

func TestHardPannedLowsBleedAcross(t *testing.T) {
	p, err := New(Middle, 48000)
	require.NoError(t, err)

	left := testutil.Sine(48000, 100, 48000, 0.5)
	right := make([]float32, len(left))
	p.CrossFeed(left, right)

	testutil.AssertNoNaNOrInf(t, left)
	bleed := testutil.RMS(right[24000:]) / testutil.RMS(left[24000:])
	testutil.AssertInRange(t, bleed, 0.2, 0.9)
}

func TestClearDropsHistory(t *testing.T) {
	p, err := New(High, 48000)
	require.NoError(t, err)
	l := testutil.WhiteNoise(256, 1)
	r := testutil.WhiteNoise(256, 1)
	p.CrossFeed(l, r)
	p.Clear()

	zl := make([]float32, 64)
	zr := make([]float32, 64)
	p.CrossFeed(zl, zr)
	testutil.AssertAllZero(t, zl)
	testutil.AssertAllZero(t, zr)
}

func BenchmarkCrossFeed(b *testing.B) {
	p, _ := New(Middle, 48000)
	l := testutil.WhiteNoise(1024, 0.5)
	r := testutil.WhiteNoise(1024, 0.5)
	for b.Loop() {
		p.CrossFeed(l, r)
	}
}
