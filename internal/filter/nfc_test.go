package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

func TestNfcFilter_MatchedDistanceIsTransparent(t *testing.T) {
	const w = 0.05
	in := testutil.WhiteNoise(2048, 0.5)

	for order := 1; order <= 4; order++ {
		var f NfcFilter
		f.Init(w)
		f.Adjust(w)

		out := make([]float32, len(in))
		f.Process(order, out, in)
		for i := range in {
			assert.InDelta(t, in[i], out[i], 1e-4, "order %d sample %d", order, i)
		}
	}
}

func TestNfcFilter_CloseSourceBoostsBass(t *testing.T) {
	var f NfcFilter
	f.Init(0.01)
	f.Adjust(0.1)

	// A constant input exposes the low-frequency gain of the filter.
	in := make([]float32, 4096)
	for i := range in {
		in[i] = 0.01
	}
	out := make([]float32, len(in))
	f.Process1(out, in)
	assert.Greater(t, float64(out[len(out)-1]), 0.01, "closer source raises the bass level")
}

func TestNfcFilter_OrderZeroCopies(t *testing.T) {
	var f NfcFilter
	f.Init(0.02)
	in := testutil.WhiteNoise(64, 1)
	out := make([]float32, len(in))
	f.Process(0, out, in)
	assert.Equal(t, in, out)
}
