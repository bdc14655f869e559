package mixer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

// inputRMS is the RMS of the 0.5 amplitude test sine.
var inputRMS = 0.5 / math.Sqrt2

// settled renders and drops a warm-up, then returns the next frames.
func settled(d *Device, frames int) (left, right []float32) {
	renderStereo(d, 2048)
	return renderStereo(d, frames)
}

func TestSourcePanning(t *testing.T) {
	tests := []struct {
		name        string
		pos         [3]float32
		left, right float64
	}{
		{"front", [3]float32{0, 0, -1}, math.Sqrt2 / 2, math.Sqrt2 / 2},
		{"hard left", [3]float32{-1, 0, 0}, 1, 0},
		{"hard right", [3]float32{1, 0, 0}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, nil)
			c := newTestContext(t, d)
			src := loopingSource(t, c, 440, tt.pos)
			require.NoError(t, src.Play())

			left, right := settled(d, testRate/10)
			testutil.AssertNoNaNOrInf(t, left)
			assert.InDelta(t, tt.left*inputRMS, testutil.RMS(left), 0.01)
			assert.InDelta(t, tt.right*inputRMS, testutil.RMS(right), 0.01)
		})
	}
}

func TestListenerGain(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	require.NoError(t, c.Listener().SetGain(0.5))
	src := loopingSource(t, c, 440, [3]float32{-1, 0, 0})
	require.NoError(t, src.Play())

	left, _ := settled(d, testRate/10)
	assert.InDelta(t, 0.5*inputRMS, testutil.RMS(left), 0.01)
}

func TestDistanceModels(t *testing.T) {
	tests := []struct {
		name  string
		model DistanceModel
		dist  float32
		want  float64
	}{
		{"inverse clamped", DistanceInverseClamped, 2, 0.5},
		{"inverse clamped inside reference", DistanceInverseClamped, 0.5, 1},
		{"linear clamped", DistanceLinearClamped, 5.5, 0.5},
		{"exponent", DistanceExponent, 4, 0.25},
		{"none", DistanceNone, 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, nil)
			c := newTestContext(t, d)
			require.NoError(t, c.SetDistanceModel(tt.model))
			src := loopingSource(t, c, 440, [3]float32{-tt.dist, 0, 0})
			require.NoError(t, src.SetMaxDistance(10))
			require.NoError(t, src.Play())

			left, _ := settled(d, testRate/10)
			assert.InDelta(t, tt.want*inputRMS, testutil.RMS(left), 0.01)
		})
	}
}

func TestPerSourceDistanceModel(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{-4, 0, 0})
	require.NoError(t, src.SetDistanceModel(DistanceNone))
	require.NoError(t, src.Play())

	left, _ := settled(d, testRate/10)
	assert.InDelta(t, 0.25*inputRMS, testutil.RMS(left), 0.01, "context model applies until enabled")

	require.NoError(t, c.SetSourceDistanceModel(true))
	assert.True(t, c.SourceDistanceModel())
	left, _ = settled(d, testRate/10)
	assert.InDelta(t, inputRMS, testutil.RMS(left), 0.01)
}

func TestSourceCone(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{-1, 0, 0})
	require.NoError(t, src.SetCone(90, 180, 0.25))
	// Pointing further left, away from the listener.
	require.NoError(t, src.SetDirection(-1, 0, 0))
	require.NoError(t, src.Play())

	left, _ := settled(d, testRate/10)
	assert.InDelta(t, 0.25*inputRMS, testutil.RMS(left), 0.01)

	// Facing the listener is inside the inner cone.
	require.NoError(t, src.SetDirection(1, 0, 0))
	left, _ = settled(d, testRate/10)
	assert.InDelta(t, inputRMS, testutil.RMS(left), 0.01)
}

func TestMinMaxGainClamp(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{-8, 0, 0})
	require.NoError(t, src.SetMaxDistance(100))
	require.NoError(t, src.SetMinGain(0.5))
	require.NoError(t, src.Play())

	left, _ := settled(d, testRate/10)
	assert.InDelta(t, 0.5*inputRMS, testutil.RMS(left), 0.01)
}

func TestPitchShiftsFrequency(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 1000, [3]float32{0, 0, -1})
	require.NoError(t, src.SetPitch(1.5))
	require.NoError(t, src.Play())

	left, _ := settled(d, 16384)
	freq, bin := testutil.SpectralPeak(left, testRate)
	assert.InDelta(t, 1500, freq, 2*bin)
}

func TestDopplerShift(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	// Approaching at a tenth of the speed of sound.
	src := loopingSource(t, c, 1000, [3]float32{0, 0, -10})
	require.NoError(t, src.SetVelocity(0, 0, DefaultSpeedOfSound/10))
	require.NoError(t, src.SetMaxDistance(100))
	require.NoError(t, src.Play())

	left, _ := settled(d, 16384)
	freq, bin := testutil.SpectralPeak(left, testRate)
	assert.InDelta(t, 1000/0.9, freq, 2*bin)

	require.NoError(t, c.SetDopplerFactor(0))
	left, _ = settled(d, 16384)
	freq, bin = testutil.SpectralPeak(left, testRate)
	assert.InDelta(t, 1000, freq, 2*bin)
}

func TestResamplesBufferRate(t *testing.T) {
	for _, r := range []Resampler{ResamplerPoint, ResamplerLinear, ResamplerCubic, ResamplerBSinc12, ResamplerFastBSinc24} {
		t.Run(r.String(), func(t *testing.T) {
			d := newTestDevice(t, nil)
			c := newTestContext(t, d)
			b, err := d.NewBuffer()
			require.NoError(t, err)
			const rate = 22050
			require.NoError(t, b.SetData(FormatMonoFloat32, floatBytes(testutil.Sine(rate, 1000, rate, 0.5)), rate))

			src, err := c.NewSource()
			require.NoError(t, err)
			require.NoError(t, src.SetBuffer(b))
			require.NoError(t, src.SetLooping(true))
			require.NoError(t, src.SetResampler(r))
			require.NoError(t, src.SetPosition(-1, 0, 0))
			require.NoError(t, src.Play())

			left, _ := settled(d, 16384)
			testutil.AssertNoNaNOrInf(t, left)
			freq, bin := testutil.SpectralPeak(left, testRate)
			assert.InDelta(t, 1000, freq, 2*bin)
			assert.InDelta(t, inputRMS, testutil.RMS(left), 0.03)
		})
	}
}

func TestStaticSourceStopsOnce(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	var rec eventRecorder
	c.SetEventCallback(MaskSourceStateChanged|MaskBufferCompleted, rec.add)

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, 1000)))
	require.NoError(t, src.Play())
	assert.Equal(t, Static, src.Type())

	for range 8 {
		renderStereo(d, 512)
	}
	assert.Equal(t, Stopped, src.State())

	stopped := func(ev Event) bool {
		return ev.Type == EventSourceStateChanged && ev.State == Stopped && ev.SourceID == src.ID()
	}
	assert.Eventually(t, func() bool { return len(rec.matching(stopped)) == 1 }, 2*time.Second, 5*time.Millisecond)
	// Nothing else arrives later.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.matching(stopped), 1)

	playing := rec.matching(func(ev Event) bool { return ev.Type == EventSourceStateChanged && ev.State == Playing })
	assert.Len(t, playing, 1)
	// The single static buffer completes once.
	done := rec.matching(func(ev Event) bool { return ev.Type == EventBufferCompleted })
	require.Len(t, done, 1)
	assert.Equal(t, 1, done[0].Count)
	assert.Equal(t, src.ID(), done[0].SourceID)
}

func TestStopFromAPIReportsOnce(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	var rec eventRecorder
	c.SetEventCallback(MaskSourceStateChanged, rec.add)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())
	renderStereo(d, 512)
	require.NoError(t, src.Stop())
	for range 4 {
		renderStereo(d, 512)
	}

	stopped := func(ev Event) bool { return ev.State == Stopped }
	assert.Eventually(t, func() bool { return len(rec.matching(stopped)) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.matching(stopped), 1)
}

func TestEventMaskFilters(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	var rec eventRecorder
	c.SetEventCallback(MaskBufferCompleted, rec.add)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())
	require.NoError(t, src.Stop())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.matching(func(Event) bool { return true }))
}

func TestDeferredUpdatesApplyTogether(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{-1, 0, 0})
	require.NoError(t, src.Play())
	settled(d, 512)

	c.DeferUpdates()
	require.NoError(t, src.SetPosition(1, 0, 0))
	left, right := settled(d, testRate/10)
	assert.InDelta(t, inputRMS, testutil.RMS(left), 0.01, "held back while deferred")
	assert.InDelta(t, 0, testutil.RMS(right), 0.01)

	c.ProcessUpdates()
	left, right = settled(d, testRate/10)
	assert.InDelta(t, 0, testutil.RMS(left), 0.01)
	assert.InDelta(t, inputRMS, testutil.RMS(right), 0.01)
}

func TestEffectSlotCycleRejected(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	a, err := c.NewEffectSlot()
	require.NoError(t, err)
	b, err := c.NewEffectSlot()
	require.NoError(t, err)

	require.NoError(t, a.SetTarget(b))
	err = b.SetTarget(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, InvalidOperation, c.LastError())
	assert.Equal(t, NoError, c.LastError(), "reading clears the error")

	assert.ErrorIs(t, a.SetTarget(a), ErrCycle)
	assert.Equal(t, b, a.Target())
	assert.Nil(t, b.Target())

	require.NoError(t, a.SetTarget(nil))
	require.NoError(t, b.SetTarget(a))
}

func TestReverbSendProducesTail(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	e, err := NewEffect(EffectReverb)
	require.NoError(t, err)
	slot := c.DefaultEffectSlot()
	require.NotNil(t, slot)
	require.NoError(t, slot.SetEffect(e))

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, 2400)))
	require.NoError(t, src.SetSend(0, slot, Filter{}))
	require.NoError(t, src.SetPosition(0, 0, -1))
	require.NoError(t, src.Play())
	assert.Equal(t, slot, src.Send(0))

	for range 10 {
		renderStereo(d, 512)
	}
	// The dry sound has ended; what remains is the reverb tail.
	left, right := renderStereo(d, 4096)
	testutil.AssertNoNaNOrInf(t, left)
	testutil.AssertNoNaNOrInf(t, right)
	assert.Greater(t, testutil.RMS(left)+testutil.RMS(right), 1e-4)
}

func TestDirectFilterCutsHighs(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 10000, [3]float32{-1, 0, 0})
	require.NoError(t, src.Play())
	left, _ := settled(d, 8192)
	open := testutil.RMS(left)

	f, err := NewFilter(FilterLowPass)
	require.NoError(t, err)
	require.NoError(t, f.SetGainHF(0.1))
	require.NoError(t, src.SetDirectFilter(f))
	left, _ = settled(d, 8192)
	assert.Less(t, testutil.RMS(left), open/2)
}

func TestOneSecondOfFrontSine(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())

	var left, right []float32
	for done := 0; done < testRate; done += 512 {
		l, r := renderStereo(d, min(512, testRate-done))
		left = append(left, l...)
		right = append(right, r...)
	}
	require.Len(t, left, testRate)
	require.Len(t, right, testRate)

	for _, ch := range [][]float32{left, right} {
		testutil.AssertNoNaNOrInf(t, ch)
		freq, bin := testutil.SpectralPeak(ch, testRate)
		assert.InDelta(t, 440, freq, bin)
		// A 0.5 sine panned to the front lands at 0.5/sqrt2 on each side.
		assert.InDelta(t, 0.25, testutil.RMS(ch), 0.005)
	}
}

func TestConcurrentUpdatesWhileRendering(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	src := loopingSource(t, c, 440, [3]float32{0, 0, -1})
	require.NoError(t, src.Play())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]float32, 2*256)
		for {
			select {
			case <-stop:
				return
			default:
				d.RenderSamples(buf, 256)
			}
		}
	}()

	const writers = 8
	var writes sync.WaitGroup
	writes.Add(writers)
	for w := range writers {
		go func() {
			defer writes.Done()
			for i := range 200 {
				a := float64(i+w) * 0.05
				assert.NoError(t, src.SetPosition(float32(math.Sin(a)), 0, -float32(math.Cos(a))))
				assert.NoError(t, src.SetGain(float32((i+w)%10)/10))
				assert.NoError(t, c.Listener().SetOrientation([3]float32{0, 0, -1}, [3]float32{0, 1, 0}))
				if w == 0 && i%100 == 50 {
					assert.NoError(t, src.Pause())
					assert.NoError(t, src.Play())
				}
				_ = src.SampleOffset()
			}
		}()
	}
	writes.Wait()

	// The last write wins once every writer is done.
	require.NoError(t, src.SetPosition(0, 0, -1))
	require.NoError(t, src.SetGain(0.75))
	close(stop)
	wg.Wait()

	assert.Equal(t, float32(0.75), src.Gain())
	assert.Equal(t, Playing, src.State())
	left, right := settled(d, testRate/10)
	testutil.AssertNoNaNOrInf(t, left)
	testutil.AssertNoNaNOrInf(t, right)
	assert.InDelta(t, 0.75*0.25, testutil.RMS(left), 0.005)
	assert.InDelta(t, 0.75*0.25, testutil.RMS(right), 0.005)
}
