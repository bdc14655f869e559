package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/simd/f64"
)

func TestKaiserWindow(t *testing.T) {
	tests := []struct {
		name   string
		length int
		beta   float64
		want   int
	}{
		{"zero_length", 0, 5, 0},
		{"length_one", 1, 5, 1},
		{"length_21", 21, 8.65, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := KaiserWindow(tt.length, tt.beta)
			require.Len(t, w, tt.want)
			for i := range len(w) / 2 {
				assert.InDelta(t, w[i], w[len(w)-1-i], 1e-12, "window symmetric at %d", i)
			}
			if tt.want > 0 {
				assert.InDelta(t, 1.0, w[tt.want/2], 1e-12, "center tap is 1")
			}
		})
	}
}

func TestHannWindow(t *testing.T) {
	w := HannWindow(1024)
	assert.Zero(t, w[0])
	assert.InDelta(t, 0, w[1023], 1e-12)
	assert.InDelta(t, 1, w[511], 1e-5)
}

func TestDesignLowPass(t *testing.T) {
	taps, err := DesignLowPass(FIRParams{NumTaps: 63, CutoffFreq: 0.2, Attenuation: 80, Gain: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f64.Sum(taps), 1e-9, "DC gain normalized")

	_, err = DesignLowPass(FIRParams{NumTaps: 1, CutoffFreq: 0.2, Attenuation: 80, Gain: 1})
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = DesignLowPass(FIRParams{NumTaps: 63, CutoffFreq: 0.6, Attenuation: 80, Gain: 1})
	require.ErrorIs(t, err, ErrInvalidFilter)
}
