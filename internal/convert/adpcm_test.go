package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinePCM(frames, channels int, freq, rate, amp float64) []int16 {
	out := make([]int16, frames*channels)
	for i := range frames {
		for c := range channels {
			phase := float64(c) * math.Pi / 3
			out[i*channels+c] = int16(amp * math.Sin(2*math.Pi*freq*float64(i)/rate+phase))
		}
	}
	return out
}

func snrDB(ref, got []int16) float64 {
	var sig, noise float64
	for i := range ref {
		s := float64(ref[i])
		d := s - float64(got[i])
		sig += s * s
		noise += d * d
	}
	if noise == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(sig/noise)
}

func TestAlignmentRules(t *testing.T) {
	tests := []struct {
		align       int
		ima4, msadp bool
	}{
		{1, false, false},
		{2, false, false},
		{9, true, false},
		{64, false, true},
		{65, true, false},
		{2041, true, false},
		{66, false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ima4, ValidIMA4Align(tt.align), "IMA4 %d", tt.align)
		assert.Equal(t, tt.msadp, ValidMSADPCMAlign(tt.align), "MSADPCM %d", tt.align)
	}
	assert.Equal(t, 36, IMA4BlockBytes(65, 1))
	assert.Equal(t, 72, IMA4BlockBytes(65, 2))
	assert.Equal(t, 38, MSADPCMBlockBytes(64, 1))
	assert.Equal(t, 76, MSADPCMBlockBytes(64, 2))
}

func TestDecodeIMA4Block_KnownValues(t *testing.T) {
	// Header: sample 100, index 0. Then one word of nibbles: 0x1 repeated.
	block := []byte{100, 0, 0, 0, 0x11, 0x11, 0x11, 0x11}
	dst := make([]int16, 9)
	DecodeIMA4Block(dst, block, 1, 9)

	// Nibble 1 adds 3*step/8 and lowers the index, which floors at 0.
	want := []int16{100, 102, 104, 106, 108, 110, 112, 114, 116}
	assert.Equal(t, want, dst)
}

func TestDecodeMSADPCMBlock_HeaderOrder(t *testing.T) {
	// Predictor 0, delta 16, sample1 = 200, sample2 = -300, nibbles 0.
	block := []byte{
		0,
		16, 0,
		200, 0,
		0xD4, 0xFE,
		0x00,
	}
	dst := make([]int16, 4)
	DecodeMSADPCMBlock(dst, block, 1, 4)
	assert.Equal(t, int16(-300), dst[0], "older history sample first")
	assert.Equal(t, int16(200), dst[1])
	// Predictor 0 repeats the last sample when the nibble is 0.
	assert.Equal(t, int16(200), dst[2])
	assert.Equal(t, int16(200), dst[3])
}

func TestMSADPCM_RoundTrip(t *testing.T) {
	for _, channels := range []int{1, 2} {
		const align = DefaultMSADPCMAlign
		pcm := sinePCM(align*20, channels, 440, 44100, 12000)

		enc, err := NewMSADPCMEncoder(channels, align)
		require.NoError(t, err)
		data := enc.Encode(pcm)
		require.Len(t, data, 20*MSADPCMBlockBytes(align, channels))

		got, err := DecodeMSADPCM(data, channels, align)
		require.NoError(t, err)
		require.Len(t, got, len(pcm))

		for b := range 20 {
			base := b * align * channels
			for i := range 2 * channels {
				assert.Equal(t, pcm[base+i], got[base+i], "block %d header sample %d stored verbatim", b, i)
			}
		}
		assert.Greater(t, snrDB(pcm, got), 20.0, "channels %d", channels)
	}
}

func TestIMA4_RoundTrip(t *testing.T) {
	for _, channels := range []int{1, 2} {
		const align = DefaultIMA4Align
		pcm := sinePCM(align*20, channels, 440, 44100, 12000)

		enc, err := NewIMA4Encoder(channels, align)
		require.NoError(t, err)
		data := enc.Encode(pcm)

		got, err := DecodeIMA4(data, channels, align)
		require.NoError(t, err)
		require.Len(t, got, len(pcm))

		for b := range 20 {
			base := b * align * channels
			for c := range channels {
				assert.Equal(t, pcm[base+c], got[base+c], "block %d first sample stored verbatim", b)
			}
		}
		assert.Greater(t, snrDB(pcm, got), 20.0, "channels %d", channels)
	}
}

func TestDecodeADPCM_Errors(t *testing.T) {
	_, err := DecodeIMA4(make([]byte, 36), 1, 64)
	require.ErrorIs(t, err, ErrInvalidAlignment)

	_, err = DecodeIMA4(make([]byte, 35), 1, 65)
	require.ErrorIs(t, err, ErrInvalidAlignment)

	_, err = DecodeMSADPCM(make([]byte, 38), 3, 64)
	require.ErrorIs(t, err, ErrInvalidAlignment)

	_, err = NewMSADPCMEncoder(1, 63)
	require.ErrorIs(t, err, ErrInvalidAlignment)
}

func BenchmarkDecodeIMA4(b *testing.B) {
	enc, err := NewIMA4Encoder(2, DefaultIMA4Align)
	require.NoError(b, err)
	data := enc.Encode(sinePCM(DefaultIMA4Align*64, 2, 440, 44100, 12000))
	for b.Loop() {
		_, _ = DecodeIMA4(data, 2, DefaultIMA4Align)
	}
}
