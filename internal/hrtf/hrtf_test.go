package hrtf

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

const deg = math.Pi / 180

func builtin(t testing.TB) *Store {
	t.Helper()
	s, err := Builtin(48000)
	require.NoError(t, err)
	return s
}

func energy(ir *IR, ear, n int) float64 {
	var e float64
	for k := range n {
		v := float64(ir[k][ear])
		e += v * v
	}
	return e
}

func TestBuiltinGeometry(t *testing.T) {
	s := builtin(t)
	assert.Equal(t, BuiltinName, s.Name)
	assert.Equal(t, builtinIRSize, s.IRSize)
	require.Len(t, s.Elevs, builtinEvCount)
	assert.Equal(t, 1, s.Elevs[0].AzCount, "pole")
	assert.Equal(t, builtinAzSteps, s.Elevs[builtinEvCount/2].AzCount, "horizon")
	assert.Len(t, s.Coeffs, len(s.Delays))

	_, err := Builtin(0)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestLookupLateralSource(t *testing.T) {
	s := builtin(t)
	var ir IR
	delays := s.Lookup(0, -90*deg, 1, 0, &ir)
	assert.Less(t, delays[0], delays[1], "near ear hears it first")
	assert.Greater(t, energy(&ir, 0, s.IRSize), energy(&ir, 1, s.IRSize), "far ear is shadowed")
}

func TestLookupMirrorSymmetry(t *testing.T) {
	s := builtin(t)
	var left, right IR
	dl := s.Lookup(0, -30*deg, 1, 0, &left)
	dr := s.Lookup(0, 30*deg, 1, 0, &right)
	assert.Equal(t, dl[0], dr[1])
	assert.Equal(t, dl[1], dr[0])
	for k := range s.IRSize {
		assert.InDelta(t, left[k][0], right[k][1], 1e-4, "tap %d", k)
	}
}

func TestLookupFrontIsCentered(t *testing.T) {
	s := builtin(t)
	var ir IR
	d := s.Lookup(0, 0, 1, 0, &ir)
	assert.Equal(t, d[0], d[1])
	assert.InDelta(t, energy(&ir, 0, s.IRSize), energy(&ir, 1, s.IRSize), 1e-9)
}

func TestLookupFullSpreadIsPassThrough(t *testing.T) {
	s := builtin(t)
	var ir IR
	s.Lookup(0.3, 1.1, 1, 2*math.Pi, &ir)
	assert.InDelta(t, passthruCoeff, ir[0][0], 1e-6)
	assert.InDelta(t, passthruCoeff, ir[0][1], 1e-6)
	for k := 1; k < IRLength; k++ {
		assert.InDelta(t, 0, ir[k][0], 1e-6)
	}
}

func TestMHRRoundTrip(t *testing.T) {
	s := builtin(t)
	var buf bytes.Buffer
	require.NoError(t, s.WriteMHR01(&buf))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.SampleRate, got.SampleRate)
	assert.Equal(t, s.IRSize, got.IRSize)
	assert.Equal(t, s.Elevs, got.Elevs)
	for i := range s.Coeffs {
		for k := range s.IRSize {
			assert.InDelta(t, s.Coeffs[i][k][0], got.Coeffs[i][k][0], 1.0/32768)
			assert.InDelta(t, s.Coeffs[i][k][1], got.Coeffs[i][k][1], 1.0/32768)
		}
		assert.Zero(t, got.Delays[i][0]%DelayFracOne)
		assert.InDelta(t, s.Delays[i][0], got.Delays[i][0], DelayFracHalf)
	}
}

func TestLoadRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown marker", []byte("MinPHR99xxxxxxxx")},
		{"truncated header", []byte("MinPHR01\x80\xbb")},
		{"short response", append([]byte("MinPHR01"), 0x80, 0xbb, 0, 0, 4, 5)},
		{"few elevations", append([]byte("MinPHR01"), 0x80, 0xbb, 0, 0, 16, 3, 1, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}

func TestResampleKeepsLevel(t *testing.T) {
	s := builtin(t)
	up := s.Resample(96000)
	assert.Equal(t, uint32(96000), up.SampleRate)
	assert.Equal(t, 2*s.IRSize, up.IRSize)
	assert.Same(t, s, s.Resample(48000))

	irSum := func(st *Store, i, ear int) float64 {
		var sum float64
		for k := range st.IRSize {
			sum += float64(st.Coeffs[i][k][ear])
		}
		return sum
	}

	down := s.Resample(44100)
	for _, i := range []int{s.nearest(0, 0), s.nearest(0, math.Pi/2), s.nearest(0, -math.Pi/2)} {
		for ear := range 2 {
			old := irSum(s, i, ear)
			assert.InDelta(t, old, irSum(up, i, ear), 0.02*math.Abs(old), "up %d/%d", i, ear)
			assert.InDelta(t, old, irSum(down, i, ear), 0.02*math.Abs(old), "down %d/%d", i, ear)
			want := min(2*float64(s.Delays[i][ear]), MaxDelay*DelayFracOne)
			assert.InDelta(t, want, float64(up.Delays[i][ear]), 1)
		}
	}
}

func unitParams(gain float32) *Params {
	p := &Params{}
	p.Target.Coeffs[0] = [2]float32{1, 1}
	p.Target.Gain = gain
	p.Old = p.Target
	return p
}

func TestMixVoicePassThrough(t *testing.T) {
	m := NewMixer(8, 64)
	p := unitParams(1)
	p.Target.Delay = [2]uint32{3, 0}
	p.Old = p.Target

	in := testutil.Sine(64, 1000, 48000, 0.5)
	m.MixVoice(in, p, 1, 0, 0, true)
	left, right := make([]float32, 64), make([]float32, 64)
	m.Flush(left, right, 64)

	assert.InDeltaSlice(t, in, right, 1e-6)
	assert.InDeltaSlice(t, in[:61], left[3:], 1e-6)
	assert.Equal(t, in, p.History[:])
}

func TestMixVoiceTailCarriesOver(t *testing.T) {
	m := NewMixer(8, 16)
	p := &Params{}
	p.Target.Coeffs[5] = [2]float32{1, 1}
	p.Target.Gain = 1
	p.Old = p.Target

	in := make([]float32, 16)
	in[15] = 1
	left, right := make([]float32, 16), make([]float32, 16)
	m.MixVoice(in, p, 1, 0, 0, true)
	m.Flush(left, right, 16)
	testutil.AssertAllZero(t, left)

	clear(left)
	m.MixVoice(make([]float32, 16), p, 1, 0, 0, true)
	m.Flush(left, right, 16)
	assert.InDelta(t, 1, left[4], 1e-6)
	assert.InDelta(t, 1, right[4], 1e-6)
}

func TestMixVoiceCrossfadeKeepsLevel(t *testing.T) {
	m := NewMixer(8, 32)
	p := unitParams(1)
	// Same response, so a crossfade must be seamless.
	in := make([]float32, 32)
	for i := range in {
		in[i] = 1
	}
	m.MixVoice(in, p, 1, 32, 0, true)
	left, right := make([]float32, 32), make([]float32, 32)
	m.Flush(left, right, 32)
	for i := range left {
		assert.InDelta(t, 1, left[i], 1e-5, "sample %d", i)
	}
	assert.Equal(t, float32(1), p.Old.Gain)
	assert.Equal(t, p.Target.Coeffs, p.Old.Coeffs)
}

func TestMixVoiceGainRamp(t *testing.T) {
	m := NewMixer(8, 16)
	p := unitParams(0)
	in := make([]float32, 16)
	for i := range in {
		in[i] = 1
	}
	// Fade longer than the block: the gain only gets part way.
	m.MixVoice(in, p, 1, 32, 0, true)
	assert.InDelta(t, 0.5, p.Old.Gain, 1e-6)
	left, right := make([]float32, 16), make([]float32, 16)
	m.Flush(left, right, 16)
	assert.Less(t, left[0], left[15])
}

func TestDirectStateSymmetry(t *testing.T) {
	s := builtin(t)
	d := NewDirectState(s, 256)
	assert.GreaterOrEqual(t, d.IRSize, s.IRSize)

	m := NewMixer(s.IRSize, 256)
	lines := [][]float32{make([]float32, 256), make([]float32, 256), make([]float32, 256), make([]float32, 256)}
	lines[0][0] = 1 // omni impulse
	d.Mix(m, lines, 256)
	left, right := make([]float32, 256), make([]float32, 256)
	m.Flush(left, right, 256)
	for i := range left {
		assert.InDelta(t, left[i], right[i], 1e-5, "sample %d", i)
	}
	assert.Greater(t, testutil.RMS(left), 0.0)

	// A source on the left (ACN 1 positive) favours the left ear.
	m.Reset()
	d = NewDirectState(s, 256)
	lines[1][0] = 1.732
	d.Mix(m, lines, 256)
	clear(left)
	clear(right)
	m.Flush(left, right, 256)
	assert.Greater(t, testutil.RMS(left), testutil.RMS(right))
}

func BenchmarkMixVoice(b *testing.B) {
	s := builtin(b)
	m := NewMixer(s.IRSize, 1024)
	p := &Params{}
	p.Target.Delay = s.Lookup(0, 0.5, 1, 0, &p.Target.Coeffs)
	p.Target.Gain = 1
	p.Old = p.Target
	in := testutil.Sine(1024, 440, 48000, 0.5)
	left, right := make([]float32, 1024), make([]float32, 1024)
	for b.Loop() {
		m.MixVoice(in, p, 1, 0, 0, true)
		m.Flush(left, right, 1024)
	}
}
