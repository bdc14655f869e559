package mixer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

func newTestSource(t *testing.T, c *Context) *Source {
	t.Helper()
	src, err := c.NewSource()
	require.NoError(t, err)
	return src
}

func TestSourceDefaults(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)

	assert.Equal(t, Initial, src.State())
	assert.Equal(t, Undetermined, src.Type())
	assert.Equal(t, float32(1), src.Gain())
	assert.Equal(t, float32(1), src.Pitch())
	assert.Equal(t, float32(0), src.MinGain())
	assert.Equal(t, float32(1), src.MaxGain())
	assert.Equal(t, float32(1), src.ReferenceDistance())
	assert.Equal(t, float32(1), src.RolloffFactor())
	assert.Equal(t, d.Engine().Resampler, src.Resampler())
	inner, outer, gain := src.Cone()
	assert.Equal(t, float32(360), inner)
	assert.Equal(t, float32(360), outer)
	assert.Equal(t, float32(0), gain)
	assert.False(t, src.Looping())
	assert.False(t, src.Relative())
	assert.Nil(t, src.Send(0))
}

func TestSourceSettersRejectBadValues(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name string
		set  func() error
		code ErrorCode
	}{
		{"negative gain", func() error { return src.SetGain(-1) }, InvalidValue},
		{"infinite gain", func() error { return src.SetGain(inf) }, InvalidValue},
		{"zero pitch", func() error { return src.SetPitch(0) }, InvalidValue},
		{"min gain above 1", func() error { return src.SetMinGain(2) }, InvalidValue},
		{"max gain below 0", func() error { return src.SetMaxGain(-0.5) }, InvalidValue},
		{"NaN position", func() error { return src.SetPosition(nan, 0, 0) }, InvalidValue},
		{"infinite velocity", func() error { return src.SetVelocity(0, inf, 0) }, InvalidValue},
		{"cone angle", func() error { return src.SetCone(400, 360, 0) }, InvalidValue},
		{"cone gain", func() error { return src.SetCone(90, 180, 1.5) }, InvalidValue},
		{"doppler factor", func() error { return src.SetDopplerFactor(2) }, InvalidValue},
		{"air absorption", func() error { return src.SetAirAbsorptionFactor(11) }, InvalidValue},
		{"room rolloff", func() error { return src.SetRoomRolloffFactor(-1) }, InvalidValue},
		{"negative radius", func() error { return src.SetRadius(-1) }, InvalidValue},
		{"max distance", func() error { return src.SetMaxDistance(-1) }, InvalidValue},
		{"spatialize mode", func() error { return src.SetSpatialize(SpatializeMode(9)) }, InvalidEnum},
		{"distance model", func() error { return src.SetDistanceModel(DistanceModel(42)) }, InvalidEnum},
		{"resampler", func() error { return src.SetResampler(Resampler(99)) }, InvalidEnum},
		{"send index", func() error { return src.SetSend(2, nil, Filter{}) }, InvalidValue},
		{"filter gain", func() error { return src.SetDirectFilter(Filter{Type: FilterLowPass, Gain: 2, GainHF: 1}) }, InvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set()
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.code, c.LastError())
		})
	}

	// Failed calls leave the old values.
	assert.Equal(t, float32(1), src.Gain())
	assert.Equal(t, [3]float32{}, src.Position())
}

func TestSourceSettersRoundTrip(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)

	require.NoError(t, src.SetGain(2))
	require.NoError(t, src.SetPitch(0.5))
	require.NoError(t, src.SetPosition(1, 2, 3))
	require.NoError(t, src.SetVelocity(4, 5, 6))
	require.NoError(t, src.SetDirection(0, 0, 1))
	require.NoError(t, src.SetRelative(true))
	require.NoError(t, src.SetCone(30, 90, 0.5))
	require.NoError(t, src.SetConeOuterGainHF(0.25))
	require.NoError(t, src.SetRadius(0.5))
	require.NoError(t, src.SetStereoAngles(1, -1))
	require.NoError(t, src.SetDirectChannels(true))
	require.NoError(t, src.SetSpatialize(SpatializeOn))
	require.NoError(t, src.SetResampler(ResamplerBSinc24))
	require.NoError(t, src.SetOrientation([3]float32{0, 0, -1}, [3]float32{0, 1, 0}))

	assert.Equal(t, float32(2), src.Gain())
	assert.Equal(t, float32(0.5), src.Pitch())
	assert.Equal(t, [3]float32{1, 2, 3}, src.Position())
	assert.Equal(t, [3]float32{4, 5, 6}, src.Velocity())
	assert.Equal(t, [3]float32{0, 0, 1}, src.Direction())
	assert.True(t, src.Relative())
	inner, outer, gain := src.Cone()
	assert.Equal(t, []float32{30, 90, 0.5}, []float32{inner, outer, gain})
	assert.Equal(t, float32(0.25), src.ConeOuterGainHF())
	assert.Equal(t, float32(0.5), src.Radius())
	l, r := src.StereoAngles()
	assert.Equal(t, []float32{1, -1}, []float32{l, r})
	assert.True(t, src.DirectChannels())
	assert.Equal(t, SpatializeOn, src.Spatialize())
	assert.Equal(t, ResamplerBSinc24, src.Resampler())
	at, up := src.Orientation()
	assert.Equal(t, [3]float32{0, 0, -1}, at)
	assert.Equal(t, [3]float32{0, 1, 0}, up)
}

func TestSourceStateTransitions(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})

	require.NoError(t, src.Pause())
	assert.Equal(t, Initial, src.State(), "pausing an initial source does nothing")

	require.NoError(t, src.Play())
	assert.Equal(t, Playing, src.State())
	renderStereo(d, 1024)

	require.NoError(t, src.Pause())
	assert.Equal(t, Paused, src.State())
	renderStereo(d, 512)
	off := src.SampleOffset()
	left, _ := renderStereo(d, 1024)
	testutil.AssertAllZero(t, left, "paused source is silent")
	assert.Equal(t, off, src.SampleOffset(), "paused source holds its place")

	require.NoError(t, src.Play())
	assert.Equal(t, Playing, src.State())
	left, _ = renderStereo(d, 1024)
	assert.Positive(t, testutil.RMS(left))
	assert.Greater(t, src.SampleOffset(), off)

	require.NoError(t, src.Stop())
	assert.Equal(t, Stopped, src.State())
	assert.Zero(t, src.SampleOffset())

	require.NoError(t, src.Rewind())
	assert.Equal(t, Initial, src.State())
}

func TestPlayWithoutBufferStops(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)
	require.NoError(t, src.Play())
	assert.Equal(t, Stopped, src.State())
}

func TestSetBufferWhilePlaying(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())

	err := src.SetBuffer(sineBuffer(t, d, 880, 100))
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestSourceOffsets(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, testRate)))

	require.NoError(t, src.Play())
	renderStereo(d, 4800)
	assert.InDelta(t, 4800, src.SampleOffset(), 1e-6)
	assert.InDelta(t, 0.1, src.SecOffset(), 1e-6)
	assert.Equal(t, 4800*4, src.ByteOffset())

	require.NoError(t, src.SetSampleOffset(24000))
	assert.InDelta(t, 24000, src.SampleOffset(), 1e-6)
	renderStereo(d, 480)
	assert.InDelta(t, 24480, src.SampleOffset(), 1e-6)

	assert.ErrorIs(t, src.SetSampleOffset(testRate), ErrInvalidValue, "past the end")
	assert.ErrorIs(t, src.SetSecOffset(-1), ErrInvalidValue)
	assert.InDelta(t, 24480, src.SampleOffset(), 1e-6)

	require.NoError(t, src.SetByteOffset(400))
	assert.InDelta(t, 100, src.SampleOffset(), 1e-6)
}

func TestPendingOffsetAppliesOnPlay(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, testRate)))

	require.NoError(t, src.SetSecOffset(0.5))
	assert.InDelta(t, 24000, src.SampleOffset(), 1e-6)
	assert.Equal(t, Initial, src.State())

	require.NoError(t, src.Play())
	renderStereo(d, 480)
	assert.InDelta(t, 24480, src.SampleOffset(), 1e-6)

	// Stopping clears a seek.
	require.NoError(t, src.Stop())
	require.NoError(t, src.SetSampleOffset(1000))
	require.NoError(t, src.Stop())
	require.NoError(t, src.Play())
	renderStereo(d, 480)
	assert.InDelta(t, 480, src.SampleOffset(), 1e-6)
}

func TestStreamingQueue(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	var rec eventRecorder
	c.SetEventCallback(MaskBufferCompleted|MaskSourceStateChanged, rec.add)

	bufs := []*Buffer{sineBuffer(t, d, 440, 1000), sineBuffer(t, d, 440, 1000), sineBuffer(t, d, 440, 1000)}
	src := newTestSource(t, c)
	require.NoError(t, src.QueueBuffers(bufs...))
	assert.Equal(t, Streaming, src.Type())
	assert.Equal(t, 3, src.BuffersQueued())
	assert.Zero(t, src.BuffersProcessed())

	require.NoError(t, src.SetBuffer(nil))
	assert.Zero(t, src.BuffersQueued())
	require.NoError(t, src.QueueBuffers(bufs...))

	require.NoError(t, src.Play())
	renderStereo(d, 1536)
	assert.Equal(t, 1, src.BuffersProcessed())
	assert.InDelta(t, 1536, src.SampleOffset(), 1e-6)

	got, err := src.UnqueueBuffers(1)
	require.NoError(t, err)
	assert.Equal(t, []*Buffer{bufs[0]}, got)
	assert.Equal(t, 2, src.BuffersQueued())
	_, err = src.UnqueueBuffers(1)
	assert.ErrorIs(t, err, ErrInvalidValue, "current buffer is not processed")

	for range 4 {
		renderStereo(d, 512)
	}
	assert.Equal(t, Stopped, src.State())
	assert.Equal(t, 2, src.BuffersProcessed())

	completed := func() int {
		n := 0
		for _, ev := range rec.matching(func(ev Event) bool { return ev.Type == EventBufferCompleted }) {
			n += ev.Count
		}
		return n
	}
	assert.Eventually(t, func() bool { return completed() == 3 }, 2*time.Second, 5*time.Millisecond)

	got, err = src.UnqueueBuffers(2)
	require.NoError(t, err)
	assert.Equal(t, []*Buffer{bufs[1], bufs[2]}, got)
	assert.Equal(t, Undetermined, src.Type())
	for _, b := range bufs {
		require.NoError(t, d.DeleteBuffer(b))
	}
}

func TestQueueRejectsMixedFormats(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)

	a := sineBuffer(t, d, 440, 100)
	b, err := d.NewBuffer()
	require.NoError(t, err)
	require.NoError(t, b.SetData(FormatMono16, make([]byte, 200), testRate))

	err = src.QueueBuffers(a, b)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Zero(t, src.BuffersQueued())
	require.NoError(t, d.DeleteBuffer(a), "failed queue releases its buffers")
}

func TestQueueOnStaticSource(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := newTestSource(t, c)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, 100)))
	assert.ErrorIs(t, src.QueueBuffers(sineBuffer(t, d, 440, 100)), ErrInvalidOperation)
	_, err := src.UnqueueBuffers(1)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDeleteSource(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())
	renderStereo(d, 512)

	id := src.ID()
	got, ok := c.Source(id)
	require.True(t, ok)
	assert.Same(t, src, got)

	require.NoError(t, c.DeleteSource(src))
	_, ok = c.Source(id)
	assert.False(t, ok)
	assert.ErrorIs(t, c.DeleteSource(src), ErrInvalidName)

	renderStereo(d, 512)
	left, _ := renderStereo(d, 512)
	testutil.AssertAllZero(t, left)
}

func TestSourceLimit(t *testing.T) {
	d := newTestDevice(t, nil)
	cfg := DefaultContextConfig()
	cfg.MaxSources = 2
	c, err := d.NewContext(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)

	newTestSource(t, c)
	newTestSource(t, c)
	_, err = c.NewSource()
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestContextSettings(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	assert.Equal(t, float32(1), c.DopplerFactor())
	assert.Equal(t, float32(DefaultSpeedOfSound), c.SpeedOfSound())
	assert.Equal(t, DistanceInverseClamped, c.DistanceModel())

	require.NoError(t, c.SetDopplerFactor(2))
	require.NoError(t, c.SetDopplerVelocity(0.5))
	require.NoError(t, c.SetSpeedOfSound(1000))
	require.NoError(t, c.SetDistanceModel(DistanceLinear))
	assert.Equal(t, float32(2), c.DopplerFactor())
	assert.Equal(t, float32(0.5), c.DopplerVelocity())
	assert.Equal(t, float32(1000), c.SpeedOfSound())
	assert.Equal(t, DistanceLinear, c.DistanceModel())

	assert.ErrorIs(t, c.SetDopplerFactor(-1), ErrInvalidValue)
	assert.ErrorIs(t, c.SetSpeedOfSound(0), ErrInvalidValue)
	assert.ErrorIs(t, c.SetDistanceModel(DistanceModel(99)), ErrInvalidEnum)
	assert.Same(t, d, c.Device())
}

func TestListenerSettings(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	l := c.Listener()

	at, up := l.Orientation()
	assert.Equal(t, [3]float32{0, 0, -1}, at)
	assert.Equal(t, [3]float32{0, 1, 0}, up)
	assert.Equal(t, float32(1), l.Gain())
	assert.Equal(t, float32(1), l.MetersPerUnit())

	require.NoError(t, l.SetPosition(1, 2, 3))
	require.NoError(t, l.SetVelocity(0, 0, 1))
	require.NoError(t, l.SetMetersPerUnit(0.5))
	assert.Equal(t, [3]float32{1, 2, 3}, l.Position())
	assert.Equal(t, [3]float32{0, 0, 1}, l.Velocity())
	assert.Equal(t, float32(0.5), l.MetersPerUnit())

	assert.ErrorIs(t, l.SetGain(-1), ErrInvalidValue)
	assert.ErrorIs(t, l.SetMetersPerUnit(0), ErrInvalidValue)
	assert.ErrorIs(t, l.SetPosition(float32(math.NaN()), 0, 0), ErrInvalidValue)
}

func TestListenerOrientationRotatesScene(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())

	// Facing +x puts the source on the left.
	require.NoError(t, c.Listener().SetOrientation([3]float32{1, 0, 0}, [3]float32{0, 1, 0}))
	left, right := settled(d, testRate/10)
	assert.InDelta(t, inputRMS, testutil.RMS(left), 0.01)
	assert.InDelta(t, 0, testutil.RMS(right), 0.01)
}
