package mixer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/testutil"
)

func sineShorts(frames, channels int, freq float64) []int16 {
	s := testutil.Sine(frames, freq, testRate, 0.5)
	out := make([]int16, 0, frames*channels)
	for _, v := range s {
		for range channels {
			out = append(out, int16(v*32767))
		}
	}
	return out
}

// shortsRMSError is the RMS difference between two sample streams, in
// full-scale units.
func shortsRMSError(a, b []int16) float64 {
	var sum float64
	for i := range a {
		d := (float64(a[i]) - float64(b[i])) / 32768
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

func TestBufferSetData(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		bytes    int
		frames   int
		channels int
		bits     int
	}{
		{"mono 8", FormatMono8, 100, 100, 1, 8},
		{"mono 16", FormatMono16, 200, 100, 1, 16},
		{"stereo 16", FormatStereo16, 400, 100, 2, 16},
		{"mono float", FormatMonoFloat32, 400, 100, 1, 32},
		{"stereo float", FormatStereoFloat32, 800, 100, 2, 32},
		{"5.1 16", Format{Channels: Channels51, Type: SampleInt16}, 1200, 100, 6, 16},
		{"B-Format 3D", Format{Channels: ChannelsBFormat3D, Type: SampleFloat32}, 1600, 100, 4, 32},
		{"mulaw", Format{Channels: ChannelsMono, Type: SampleMulaw}, 100, 100, 1, 8},
		{"double", Format{Channels: ChannelsMono, Type: SampleFloat64}, 800, 100, 1, 64},
	}
	d := newTestDevice(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := d.NewBuffer()
			require.NoError(t, err)
			require.NoError(t, b.SetData(tt.format, make([]byte, tt.bytes), 22050))

			assert.Equal(t, tt.frames, b.Length())
			assert.Equal(t, tt.channels, b.Channels())
			assert.Equal(t, tt.bits, b.Bits())
			assert.Equal(t, tt.bytes, b.Size())
			assert.Equal(t, 22050, b.Frequency())
			assert.Equal(t, tt.format, b.Format())

			start, end := b.LoopPoints()
			assert.Zero(t, start)
			assert.Equal(t, tt.frames, end)
		})
	}
}

func TestBufferSetDataErrors(t *testing.T) {
	d := newTestDevice(t, nil)
	b, err := d.NewBuffer()
	require.NoError(t, err)

	tests := []struct {
		name   string
		format Format
		data   []byte
		freq   int
		code   ErrorCode
	}{
		{"partial frame", FormatStereo16, make([]byte, 6), 44100, InvalidValue},
		{"zero frequency", FormatMono16, make([]byte, 4), 0, InvalidValue},
		{"unknown channels", Format{Channels: Channels(42), Type: SampleInt16}, make([]byte, 4), 44100, InvalidEnum},
		{"unknown type", Format{Channels: ChannelsMono, Type: SampleType(99)}, make([]byte, 4), 44100, InvalidEnum},
		{"surround ADPCM", Format{Channels: Channels51, Type: SampleIMA4}, make([]byte, 36*6), 44100, InvalidEnum},
		{"truncated IMA4 block", Format{Channels: ChannelsMono, Type: SampleIMA4}, make([]byte, 35), 44100, InvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.SetData(tt.format, tt.data, tt.freq)
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestBufferIMA4Upload(t *testing.T) {
	d := newTestDevice(t, nil)
	pcm := sineShorts(10*convert.DefaultIMA4Align, 1, 300)
	enc, err := convert.NewIMA4Encoder(1, convert.DefaultIMA4Align)
	require.NoError(t, err)
	data := enc.Encode(pcm)

	b, err := d.NewBuffer()
	require.NoError(t, err)
	require.NoError(t, b.SetData(Format{Channels: ChannelsMono, Type: SampleIMA4}, data, testRate))

	assert.Equal(t, len(pcm), b.Length())
	assert.Equal(t, 4, b.Bits())
	assert.Equal(t, len(data), b.Size())
	assert.Equal(t, FormatMono16, b.Format(), "stored as 16-bit PCM")
	assert.Less(t, shortsRMSError(pcm, convert.BytesToShorts(b.data)), 0.02)
}

func TestBufferMSADPCMUploadWithBlockAlignment(t *testing.T) {
	d := newTestDevice(t, nil)
	const align = 32
	pcm := sineShorts(8*align, 2, 200)
	enc, err := convert.NewMSADPCMEncoder(2, align)
	require.NoError(t, err)
	data := enc.Encode(pcm)

	b, err := d.NewBuffer()
	require.NoError(t, err)
	format := Format{Channels: ChannelsStereo, Type: SampleMSADPCM}

	// The device default of 64 frames does not match this data.
	require.Error(t, b.SetData(format, data, testRate))

	require.NoError(t, b.SetUnpackBlockAlignment(align))
	require.NoError(t, b.SetData(format, data, testRate))
	assert.Equal(t, 8*align, b.Length())
	assert.Equal(t, 2, b.Channels())
	assert.Less(t, shortsRMSError(pcm, convert.BytesToShorts(b.data)), 0.03)

	require.NoError(t, b.SetUnpackBlockAlignment(33))
	err = b.SetData(format, data, testRate)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Error(t, b.SetUnpackBlockAlignment(-1))
}

func TestBufferLoopPoints(t *testing.T) {
	d := newTestDevice(t, nil)
	b, err := d.NewBuffer()
	require.NoError(t, err)
	require.NoError(t, b.SetData(FormatMono16, make([]byte, 2000), testRate))

	require.NoError(t, b.SetLoopPoints(100, 200))
	start, end := b.LoopPoints()
	assert.Equal(t, 100, start)
	assert.Equal(t, 200, end)

	for _, p := range [][2]int{{200, 100}, {50, 50}, {-1, 10}, {0, 1001}} {
		assert.ErrorIs(t, b.SetLoopPoints(p[0], p[1]), ErrInvalidValue, "%v", p)
	}

	// New data resets the loop.
	require.NoError(t, b.SetData(FormatMono16, make([]byte, 400), testRate))
	start, end = b.LoopPoints()
	assert.Equal(t, 0, start)
	assert.Equal(t, 200, end)
}

func TestStaticSourceLoopsBetweenLoopPoints(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	b := sineBuffer(t, d, 440, 1000)
	require.NoError(t, b.SetLoopPoints(100, 200))

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(b))
	require.NoError(t, src.SetLooping(true))
	require.NoError(t, src.Play())

	for range 8 {
		renderStereo(d, 512)
		off := src.SampleOffset()
		assert.GreaterOrEqual(t, off, 100.0)
		assert.Less(t, off, 200.0)
	}
	assert.Equal(t, Playing, src.State())
}

func TestBufferInUse(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)
	b := sineBuffer(t, d, 440, 100)

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(b))

	assert.ErrorIs(t, d.DeleteBuffer(b), ErrBufferInUse)
	assert.ErrorIs(t, b.SetData(FormatMono16, make([]byte, 4), testRate), ErrBufferInUse)
	assert.ErrorIs(t, b.SetLoopPoints(0, 10), ErrBufferInUse)

	require.NoError(t, src.SetBuffer(nil))
	assert.Equal(t, Undetermined, src.Type())
	require.NoError(t, d.DeleteBuffer(b))

	err = d.DeleteBuffer(b)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, InvalidName, e.Code)
}

func TestBufferIDsAreReused(t *testing.T) {
	d := newTestDevice(t, nil)
	a, err := d.NewBuffer()
	require.NoError(t, err)
	b, err := d.NewBuffer()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	got, ok := d.Buffer(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	require.NoError(t, d.DeleteBuffer(a))
	_, ok = d.Buffer(a.ID())
	assert.False(t, ok)

	n, err := d.NewBuffer()
	require.NoError(t, err)
	assert.Equal(t, a.ID(), n.ID())
}

func TestCallbackBufferStreams(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	sine := floatBytes(testutil.Sine(testRate, 440, testRate, 0.5))
	var pos int
	b, err := d.NewBuffer()
	require.NoError(t, err)
	require.NoError(t, b.SetCallback(FormatMonoFloat32, testRate, func(dst []byte) int {
		n := 0
		for n < len(dst) {
			m := copy(dst[n:], sine[pos:])
			n += m
			pos = (pos + m) % len(sine)
		}
		return n
	}))
	assert.Zero(t, b.Length())

	assert.ErrorIs(t, b.SetCallback(FormatMonoFloat32, testRate, nil), ErrInvalidValue)
	assert.ErrorIs(t, b.SetCallback(Format{Channels: ChannelsMono, Type: SampleIMA4}, testRate, func([]byte) int { return 0 }), ErrInvalidValue)

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(b))
	require.NoError(t, src.SetPosition(-1, 0, 0))
	require.NoError(t, src.Play())

	left, _ := settled(d, testRate/10)
	assert.InDelta(t, inputRMS, testutil.RMS(left), 0.01)
	assert.Equal(t, Playing, src.State())
	assert.Error(t, src.SetSampleOffset(10), "callback sources cannot seek")
}

func TestCallbackBufferEndsStream(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	remaining := 1000 * 4
	b, err := d.NewBuffer()
	require.NoError(t, err)
	require.NoError(t, b.SetCallback(FormatMonoFloat32, testRate, func(dst []byte) int {
		n := min(len(dst), remaining)
		clear(dst[:n])
		remaining -= n
		return n
	}))

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(b))
	require.NoError(t, src.Play())
	for range 8 {
		renderStereo(d, 512)
	}
	assert.Equal(t, Stopped, src.State())
}
