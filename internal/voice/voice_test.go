package voice

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/hrtf"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

type recorder struct {
	completed []int
	stopped   int
	ids       []uint32
}

func (r *recorder) BufferCompleted(id uint32, count int) {
	r.completed = append(r.completed, count)
	r.ids = append(r.ids, id)
}

func (r *recorder) SourceStopped(id uint32) {
	r.stopped++
	r.ids = append(r.ids, id)
}

func floatBytes(s []float32) []byte {
	b := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i+1) / float32(n)
	}
	return s
}

func constant(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func item(samples []float32) *BufferItem {
	return &BufferItem{
		Samples:   floatBytes(samples),
		SampleLen: len(samples),
		LoopEnd:   len(samples),
	}
}

// monoVoice returns a playing mono float voice mixing at unity gain into a
// single-line bus.
func monoVoice(flags Flags, first *BufferItem) (*Voice, []float32) {
	out := make([]float32, resample.BufferLineSize)
	v := &Voice{
		Channels:  convert.Mono,
		Type:      convert.Float,
		FrameStep: 1,
		Frequency: 48000,
		Step:      resample.FracOne,
		Resampler: resample.New(resample.Point, resample.FracOne),
		Flags:     flags,
	}
	v.Prepare(1)
	v.Direct.Buffer = [][]float32{out}
	v.Chans[0].Dry.Gains.Target[0] = 1
	v.SetPosition(first, 0, 0)
	v.SetSourceID(7)
	v.SetState(Playing)
	return v, out
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		Stopped:  "Stopped",
		Playing:  "Playing",
		Stopping: "Stopping",
		Pending:  "Pending",
		State(9): "Unknown",
	} {
		assert.Equal(t, want, st.String())
	}
}

func TestMixUnityCopiesSamples(t *testing.T) {
	data := ramp(256)
	v, out := monoVoice(IsStatic, item(data))
	var s Scratch

	v.Mix(Playing, &s, 64, nil)
	assert.Equal(t, data[:64], out[:64])

	clear(out)
	v.Mix(Playing, &s, 64, nil)
	assert.Equal(t, data[64:128], out[:64], "second block continues where the first ended")

	it, pos, frac := v.Position()
	assert.NotNil(t, it)
	assert.Equal(t, 128, pos)
	assert.Zero(t, frac)
}

func TestStaticEndStopsAfterFadePass(t *testing.T) {
	data := constant(100, 0.5)
	v, out := monoVoice(IsStatic, item(data))
	var s Scratch
	var ev recorder

	v.Mix(Playing, &s, 64, &ev)
	assert.Equal(t, Playing, v.State())

	clear(out)
	v.Mix(Playing, &s, 64, &ev)
	require.Equal(t, Stopping, v.State(), "buffer end hands over to a fade pass")
	assert.Equal(t, 1, ev.stopped)
	assert.Equal(t, []int{1}, ev.completed, "the static buffer completes once")
	assert.Equal(t, []uint32{7, 7}, ev.ids)
	assert.Zero(t, v.SourceID())
	assert.Nil(t, v.LoopItem())
	// Past the end the last sample is held.
	assert.InDelta(t, 0.5, out[35], 1e-6)
	assert.InDelta(t, 0.5, out[36], 1e-6)
	assert.InDelta(t, 0.5, out[63], 1e-6)

	clear(out)
	v.Mix(Stopping, &s, 128, &ev)
	assert.Equal(t, Stopped, v.State())
	assert.Equal(t, 1, ev.stopped, "no second stop event")
	assert.Equal(t, []int{1}, ev.completed)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	testutil.AssertAllZero(t, out[fadeSamples:128], "fade reaches silence")
	for i := 1; i < fadeSamples; i++ {
		assert.LessOrEqual(t, out[i], out[i-1])
	}
}

func TestStaticLoopWraps(t *testing.T) {
	data := ramp(10)
	it := item(data)
	v, out := monoVoice(IsStatic, it)
	v.SetLoopItem(it)
	var s Scratch

	v.Mix(Playing, &s, 25, nil)
	for i := range 25 {
		assert.Equal(t, data[i%10], out[i], "sample %d", i)
	}
	_, pos, _ := v.Position()
	assert.Equal(t, 5, pos)
	assert.Equal(t, Playing, v.State())
}

func TestStaticLoopPoints(t *testing.T) {
	data := ramp(20)
	it := item(data)
	it.LoopStart, it.LoopEnd = 10, 15
	v, out := monoVoice(IsStatic, it)
	v.SetLoopItem(it)
	var s Scratch

	v.Mix(Playing, &s, 25, nil)
	assert.Equal(t, data[:15], out[:15])
	for i := 15; i < 25; i++ {
		assert.Equal(t, data[10+(i-15)%5], out[i], "sample %d", i)
	}
}

func TestQueueAdvances(t *testing.T) {
	a, b := ramp(40), constant(40, -0.25)
	first, second := item(a), item(b)
	first.SetNext(second)
	v, out := monoVoice(0, first)
	var s Scratch
	var ev recorder

	v.Mix(Playing, &s, 64, &ev)
	assert.Equal(t, a, out[:40])
	assert.Equal(t, b[:24], out[40:64])
	assert.Equal(t, []int{1}, ev.completed)

	it, pos, _ := v.Position()
	assert.Same(t, second, it)
	assert.Equal(t, 24, pos)

	v.Mix(Playing, &s, 64, &ev)
	assert.Equal(t, []int{1, 1}, ev.completed)
	assert.Equal(t, Stopping, v.State())
	assert.Equal(t, 1, ev.stopped)
}

func TestQueueLoopsToLoopItem(t *testing.T) {
	a, b := constant(16, 0.1), constant(16, 0.2)
	first, second := item(a), item(b)
	first.SetNext(second)
	v, out := monoVoice(0, first)
	v.SetLoopItem(first)
	var s Scratch
	var ev recorder

	v.Mix(Playing, &s, 48, &ev)
	assert.InDelta(t, 0.1, out[0], 1e-7)
	assert.InDelta(t, 0.2, out[16], 1e-7)
	assert.InDelta(t, 0.1, out[32], 1e-7)
	assert.Equal(t, []int{3}, ev.completed)
	assert.Equal(t, Playing, v.State())
}

func TestEmptyLoopingQueueStops(t *testing.T) {
	empty := &BufferItem{}
	v, _ := monoVoice(0, empty)
	v.SetLoopItem(empty)
	var s Scratch
	var ev recorder

	v.Mix(Playing, &s, 32, &ev)
	assert.Equal(t, Stopping, v.State())
}

func TestCallbackExhaustion(t *testing.T) {
	data := constant(30, 0.75)
	src := floatBytes(data)
	calls := 0
	it := &BufferItem{
		Callback: func(dst []byte) int {
			calls++
			n := copy(dst, src)
			src = src[n:]
			return n
		},
	}
	it.Samples = make([]byte, CallbackBytes(4))
	v, out := monoVoice(IsCallback, it)
	var s Scratch
	var ev recorder

	v.Mix(Playing, &s, 64, &ev)
	assert.Equal(t, 1, calls)
	assert.NotZero(t, v.Flags&CallbackStopped, "short read ends the stream")
	assert.InDelta(t, 0.75, out[29], 1e-7)
	assert.Equal(t, Stopping, v.State())
	assert.Equal(t, 1, ev.stopped)
}

func TestCallbackStreams(t *testing.T) {
	next := float32(0)
	it := &BufferItem{
		Callback: func(dst []byte) int {
			for i := 0; i+4 <= len(dst); i += 4 {
				next++
				binary.LittleEndian.PutUint32(dst[i:], math.Float32bits(next))
			}
			return len(dst)
		},
	}
	it.Samples = make([]byte, CallbackBytes(4))
	v, out := monoVoice(IsCallback, it)
	var s Scratch

	v.Mix(Playing, &s, 64, nil)
	clear(out)
	v.Mix(Playing, &s, 64, nil)
	for i := range 64 {
		assert.Equal(t, float32(65+i), out[i], "sample %d", i)
	}
	assert.Equal(t, Playing, v.State())
}

func TestZeroStep(t *testing.T) {
	v, out := monoVoice(IsStatic, item(ramp(64)))
	v.Step = 0
	var s Scratch

	v.Mix(Playing, &s, 32, nil)
	assert.Equal(t, Playing, v.State())
	testutil.AssertAllZero(t, out[:32], "inert voice")

	v.SetState(Stopping)
	v.Mix(Stopping, &s, 32, nil)
	assert.Equal(t, Stopped, v.State())
}

func TestNegativePositionDelays(t *testing.T) {
	data := ramp(64)
	v, out := monoVoice(IsStatic, item(data))
	v.SetPosition(v.current.Load(), -10, 0)
	var s Scratch

	v.Mix(Playing, &s, 32, nil)
	testutil.AssertAllZero(t, out[:10], "leading silence")
	assert.Equal(t, data[:22], out[10:32])
}

func TestPitchedPlayback(t *testing.T) {
	tests := []struct {
		name  string
		pitch int
		n     int
	}{
		{"double speed", 2, 64},
		{"max pitch spans several windows", resample.MaxPitch, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := ramp(tt.pitch*tt.n + 64)
			v, out := monoVoice(IsStatic, item(data))
			v.Step = uint32(tt.pitch) << resample.FracBits
			var s Scratch

			v.Mix(Playing, &s, tt.n, nil)
			for i := range tt.n {
				require.Equal(t, data[tt.pitch*i], out[i], "sample %d", i)
			}
			_, pos, _ := v.Position()
			assert.Equal(t, tt.pitch*tt.n, pos)
		})
	}
}

func TestHistoryCarriesAcrossBlocks(t *testing.T) {
	data := testutil.Sine(2048, 440, 48000, 0.5)
	whole, outWhole := monoVoice(IsStatic, item(data))
	whole.Step = resample.FracOne * 3 / 4
	whole.Resampler = resample.New(resample.Cubic, whole.Step)
	var s Scratch
	whole.Mix(Playing, &s, 256, nil)

	split, outSplit := monoVoice(IsStatic, item(data))
	split.Step = whole.Step
	split.Resampler = whole.Resampler
	split.Mix(Playing, &s, 128, nil)
	split.Direct.Buffer = [][]float32{outSplit[128:]}
	split.Mix(Playing, &s, 128, nil)

	for i := range 256 {
		require.InDelta(t, outWhole[i], outSplit[i], 1e-6, "sample %d", i)
	}
}

func TestGainFade(t *testing.T) {
	v, out := monoVoice(IsStatic, item(constant(256, 1)))
	// Prepare starts voices unfaded; a later block ramps from 0 to the target.
	require.Zero(t, v.Flags&IsFading)
	v.Flags |= IsFading
	var s Scratch

	v.Mix(Playing, &s, 128, nil)
	for i := range fadeSamples {
		require.InDelta(t, float32(i)/fadeSamples, out[i], 1e-6, "sample %d", i)
	}
	for i := fadeSamples; i < 128; i++ {
		require.InDelta(t, 1, out[i], 1e-6)
	}
	assert.Equal(t, float32(1), v.Chans[0].Dry.Gains.Current[0])
}

func TestSendsMixIndependently(t *testing.T) {
	v, dry := monoVoice(IsStatic, item(constant(64, 1)))
	wet := make([]float32, 64)
	v.Send[1].Buffer = [][]float32{wet}
	v.Chans[0].Wet[1].Gains.Target[0] = 0.5
	var s Scratch

	v.Mix(Playing, &s, 64, nil)
	testutil.AssertAllInRange(t, dry[:64], 0.999, 1.001)
	testutil.AssertAllInRange(t, wet, 0.499, 0.501)
}

func TestFilterTypes(t *testing.T) {
	in := testutil.Sine(512, 12000, 48000, 1)
	dst := make([]float32, len(in))

	v := Channel{}
	got := doFilters(&v.Dry.LowPass, &v.Dry.HighPass, dst, in, FilterNone)
	assert.Same(t, &in[0], &got[0], "no filter returns the input")

	v.Dry.LowPass.SetParams(filter.LowPass, 1000.0/48000, 1, math.Sqrt2)
	got = doFilters(&v.Dry.LowPass, &v.Dry.HighPass, dst, in, FilterLowPass)
	assert.Less(t, testutil.RMS(got[256:]), 0.1*testutil.RMS(in[256:]))
}

func TestHrtfPath(t *testing.T) {
	v, _ := monoVoice(IsStatic|HasHrtf, item(constant(128, 1)))
	v.Direct.Buffer = nil
	p := &v.Chans[0].Dry.Hrtf
	p.Target.Coeffs[0] = [2]float32{1, 0.5}
	p.Target.Gain = 1
	s := Scratch{Hrtf: hrtf.NewMixer(8, resample.BufferLineSize)}

	v.Mix(Playing, &s, 64, nil)
	left, right := make([]float32, 64), make([]float32, 64)
	s.Hrtf.Flush(left, right, 64)
	testutil.AssertAllInRange(t, left, 0.999, 1.001)
	testutil.AssertAllInRange(t, right, 0.499, 0.501)
}

func BenchmarkMixStereoLinear(b *testing.B) {
	data := testutil.Sine(48000*2, 440, 48000, 0.5)
	out := [][]float32{make([]float32, 512), make([]float32, 512)}
	v := &Voice{
		Channels:  convert.Stereo,
		Type:      convert.Float,
		FrameStep: 2,
		Step:      resample.FracOne * 11 / 10,
		Flags:     IsStatic,
	}
	v.Resampler = resample.New(resample.Linear, v.Step)
	v.Prepare(2)
	v.Direct.Buffer = out
	v.Chans[0].Dry.Gains.Target = [MaxOutputChannels]float32{1, 0}
	v.Chans[1].Dry.Gains.Target = [MaxOutputChannels]float32{0, 1}
	it := &BufferItem{Samples: floatBytes(data), SampleLen: len(data) / 2}
	it.LoopEnd = it.SampleLen
	var s Scratch

	for b.Loop() {
		v.SetPosition(it, 0, 0)
		v.SetLoopItem(it)
		v.Mix(Playing, &s, 512, nil)
	}
}
