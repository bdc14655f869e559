package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

func TestReverbHelpers(t *testing.T) {
	assert.InDelta(t, 0.001, decayCoeff(1, 1), 1e-6)
	assert.InDelta(t, 1, decayLength(decayCoeff(0.5, 2), 2)/0.5, 1e-4)
	assert.InDelta(t, 50, densityMult(1), 1e-3)
	assert.InDelta(t, 5, densityMult(0), 1e-6)

	x, y := matrixCoeffs(0)
	assert.InDelta(t, 1, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
	for _, d := range []float32{0.25, 0.7, 1} {
		x, y = matrixCoeffs(d)
		assert.InDelta(t, 1, x*x+3*y*y, 1e-5, "diffusion %v", d)
	}
}

func TestScatterPreservesEnergy(t *testing.T) {
	x, y := matrixCoeffs(0.8)
	in := [reverbLines]float32{0.3, -0.7, 0.2, 0.9}
	out := partialScatter(in, x, y)
	var ein, eout float32
	for i := range in {
		ein += in[i] * in[i]
		eout += out[i] * out[i]
	}
	assert.InDelta(t, ein, eout, 1e-5)
}

func TestPanTransformIdentity(t *testing.T) {
	m := panTransform([3]float32{})
	coeffs := panCoeffs(&earlyA2B, &m)
	// With no panning, the combined matrix is the plain A-to-B conversion.
	for i := range reverbLines {
		for c := range reverbLines {
			assert.InDelta(t, earlyA2B[c][i], coeffs[i][c], 1e-6)
		}
	}
}

func TestReverbTailDecays(t *testing.T) {
	tests := []struct {
		name      string
		density   float32
		diffusion float32
		decay     float32
	}{
		{"generic", 1, 1, 1.49},
		{"dense_short", 0.1, 0.5, 0.5},
		{"sparse_long", 0, 0.2, 3},
		{"no_diffusion", 0.5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultReverb()
			p.Density = tt.density
			p.Diffusion = tt.diffusion
			p.DecayTime = tt.decay

			st := newState(EAXReverb, nil)
			out := render(st, p, testutil.Impulse(2*testRate, 0), 512)
			for c := range out {
				testutil.AssertNoNaNOrInf(t, out[c], "line %d", c)
			}

			w := out[0]
			head := testutil.RMS(w[:testRate/4])
			tail := testutil.RMS(w[testRate:])
			assert.Greater(t, head, 0.0)
			assert.Greater(t, head, tail, "energy must fall off")
		})
	}
}

func TestReverbReflectionsDelay(t *testing.T) {
	p := DefaultReverb()
	p.ReflectionsDelay = 0.05
	p.LateReverbDelay = 0.05

	st := newState(EAXReverb, nil)
	out := render(st, p, testutil.Impulse(testRate/2, 0), 256)
	// Nothing arrives before the reflections delay.
	for c := range out {
		testutil.AssertAllZero(t, out[c][:int(0.05*testRate)-1], "line %d", c)
	}
}

func TestReverbParameterChangeCrossfades(t *testing.T) {
	st := newState(EAXReverb, nil).(*reverbState)
	bus := panning.NewAmbiBus(resample.BufferLineSize)
	p := DefaultReverb()
	st.Update(testDevice, 1, p, Target{Main: bus})
	assert.Equal(t, pipelineNormal, st.state)

	noise := testutil.WhiteNoise(testRate/2, 0.5)
	renderTo(st, bus, noise, 512)
	first := st.current

	p.DecayTime = 3
	st.Update(testDevice, 1, p, Target{Main: bus})
	assert.Equal(t, pipelineStartFade, st.state)
	assert.NotEqual(t, first, st.current)

	// Gain-only changes keep the current pipeline.
	p.Gain = 0.5
	st.Update(testDevice, 1, p, Target{Main: bus})
	assert.Equal(t, pipelineStartFade, st.state)
	require.NotEqual(t, first, st.current)

	out := renderTo(st, bus, make([]float32, 2*testRate), 512)
	testutil.AssertNoNaNOrInf(t, out[0])
	assert.Equal(t, pipelineNormal, st.state)
}

func TestReverbDensityKeepsLevel(t *testing.T) {
	noise := testutil.WhiteNoise(2*testRate, 0.5)
	level := func(density float32) float64 {
		p := DefaultReverb()
		p.Density = density
		out := render(newState(EAXReverb, nil), p, noise, 512)
		testutil.AssertNoNaNOrInf(t, out[0], "density %v", density)
		return testutil.RMS(out[0][testRate:])
	}

	ref := level(1)
	require.Greater(t, ref, 0.0)
	for _, density := range []float32{0, 0.25, 0.5, 0.75} {
		assert.InDelta(t, ref, level(density), 0.1*ref, "density %v", density)
	}
}
