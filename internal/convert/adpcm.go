package convert

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

// ErrInvalidAlignment is returned for block sizes the ADPCM layouts cannot
// represent, or for data that is not a whole number of blocks.
var ErrInvalidAlignment = errors.New("invalid ADPCM block alignment")

// IMA ADPCM step sizes.
var imaStepSize = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19,
	21, 23, 25, 28, 31, 34, 37, 41, 45, 50, 55,
	60, 66, 73, 80, 88, 97, 107, 118, 130, 143, 157,
	173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449,
	494, 544, 598, 658, 724, 796, 876, 963, 1060, 1166, 1282,
	1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024, 3327, 3660,
	4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442,
	11487, 12635, 13899, 15289, 16818, 18500, 20350, 22358, 24633, 27086, 29794,
	32767,
}

// IMA4 nibble to step multiplier (in eighths).
var ima4Codeword = [16]int32{
	1, 3, 5, 7, 9, 11, 13, 15,
	-1, -3, -5, -7, -9, -11, -13, -15,
}

// IMA4 step index adjustment per nibble.
var ima4IndexAdjust = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

// MSADPCM delta adaptation per nibble.
var msadpcmAdaption = [16]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
	768, 614, 512, 409, 307, 230, 230, 230,
}

// MSADPCM predictor coefficient pairs.
var msadpcmAdaptionCoeff = [7][2]int32{
	{256, 0},
	{512, -256},
	{0, 0},
	{192, 64},
	{240, 0},
	{460, -208},
	{392, -232},
}

const (
	imaMaxIndex     = len(imaStepSize) - 1
	msadpcmMaxPred  = len(msadpcmAdaptionCoeff) - 1
	msadpcmMinDelta = 16
	maxADPCMChans   = 2
)

// Default block alignments, in sample frames per block.
const (
	DefaultIMA4Align    = 65
	DefaultMSADPCMAlign = 64
)

// ValidIMA4Align reports whether align frames per block is a valid IMA4
// layout: a header sample plus a whole number of 8-nibble words.
func ValidIMA4Align(align int) bool {
	return align > 1 && (align-1)%8 == 0
}

// ValidMSADPCMAlign reports whether align frames per block is a valid
// MSADPCM layout: two header samples plus whole bytes of nibbles.
func ValidMSADPCMAlign(align int) bool {
	return align > 2 && align%2 == 0
}

// IMA4BlockBytes returns the byte size of one IMA4 block.
func IMA4BlockBytes(align, channels int) int {
	return ((align-1)/2 + 4) * channels
}

// MSADPCMBlockBytes returns the byte size of one MSADPCM block.
func MSADPCMBlockBytes(align, channels int) int {
	return ((align-2)/2 + 7) * channels
}

func int16At(b []byte) int32 {
	return int32(int16(binary.LittleEndian.Uint16(b)))
}

// DecodeIMA4Block expands one block into align interleaved frames of dst.
func DecodeIMA4Block(dst []int16, src []byte, channels, align int) {
	var sample, index [maxADPCMChans]int32
	var code [maxADPCMChans]uint32

	for c := range channels {
		sample[c] = int16At(src)
		index[c] = mathutil.Clamp(int16At(src[2:]), 0, int32(imaMaxIndex))
		src = src[4:]
		dst[c] = int16(sample[c])
	}
	dst = dst[channels:]

	for i := 1; i < align; i++ {
		if i&7 == 1 {
			for c := range channels {
				code[c] = binary.LittleEndian.Uint32(src)
				src = src[4:]
			}
		}
		for c := range channels {
			nibble := code[c] & 0xf
			code[c] >>= 4

			sample[c] += ima4Codeword[nibble] * imaStepSize[index[c]] / 8
			sample[c] = mathutil.Clamp(sample[c], -32768, 32767)
			index[c] = mathutil.Clamp(index[c]+ima4IndexAdjust[nibble], 0, int32(imaMaxIndex))

			dst[c] = int16(sample[c])
		}
		dst = dst[channels:]
	}
}

// DecodeMSADPCMBlock expands one block into align interleaved frames of dst.
// The two history samples stored in the header are the first two frames.
func DecodeMSADPCMBlock(dst []int16, src []byte, channels, align int) {
	var pred [maxADPCMChans]int
	var delta [maxADPCMChans]int32
	var hist [maxADPCMChans][2]int32

	for c := range channels {
		pred[c] = min(int(src[c]), msadpcmMaxPred)
	}
	src = src[channels:]
	for c := range channels {
		delta[c] = int16At(src[2*c:])
	}
	src = src[2*channels:]
	for c := range channels {
		hist[c][0] = int16At(src[2*c:])
	}
	src = src[2*channels:]
	for c := range channels {
		hist[c][1] = int16At(src[2*c:])
	}
	src = src[2*channels:]

	// The older history sample is output first.
	for c := range channels {
		dst[c] = int16(hist[c][1])
		dst[channels+c] = int16(hist[c][0])
	}
	dst = dst[2*channels:]

	num := 0
	for i := 2; i < align; i++ {
		for c := range channels {
			// The first nibble of a byte is in the upper bits.
			var nibble int32
			if num&1 == 0 {
				nibble = int32(src[0] >> 4)
			} else {
				nibble = int32(src[0] & 0x0f)
				src = src[1:]
			}
			num++

			coeff := msadpcmAdaptionCoeff[pred[c]]
			p := (hist[c][0]*coeff[0] + hist[c][1]*coeff[1]) / 256
			p += ((nibble ^ 0x08) - 0x08) * delta[c]
			p = mathutil.Clamp(p, -32768, 32767)

			hist[c][1] = hist[c][0]
			hist[c][0] = p

			delta[c] = max(msadpcmMinDelta, msadpcmAdaption[nibble]*delta[c]/256)
			dst[c] = int16(p)
		}
		dst = dst[channels:]
	}
}

func checkADPCM(n, channels, align, blockBytes int, valid bool) (int, error) {
	if channels < 1 || channels > maxADPCMChans {
		return 0, fmt.Errorf("%w: %d channels", ErrInvalidAlignment, channels)
	}
	if !valid {
		return 0, fmt.Errorf("%w: %d frames per block", ErrInvalidAlignment, align)
	}
	if n%blockBytes != 0 {
		return 0, fmt.Errorf("%w: %d bytes is not a multiple of the %d byte block",
			ErrInvalidAlignment, n, blockBytes)
	}
	return n / blockBytes, nil
}

// DecodeIMA4 expands a whole IMA4 stream to interleaved 16-bit PCM.
func DecodeIMA4(src []byte, channels, align int) ([]int16, error) {
	blockBytes := IMA4BlockBytes(align, channels)
	blocks, err := checkADPCM(len(src), channels, align, blockBytes, ValidIMA4Align(align))
	if err != nil {
		return nil, err
	}
	dst := make([]int16, blocks*align*channels)
	for b := range blocks {
		DecodeIMA4Block(dst[b*align*channels:], src[b*blockBytes:], channels, align)
	}
	return dst, nil
}

// DecodeMSADPCM expands a whole MSADPCM stream to interleaved 16-bit PCM.
func DecodeMSADPCM(src []byte, channels, align int) ([]int16, error) {
	blockBytes := MSADPCMBlockBytes(align, channels)
	blocks, err := checkADPCM(len(src), channels, align, blockBytes, ValidMSADPCMAlign(align))
	if err != nil {
		return nil, err
	}
	dst := make([]int16, blocks*align*channels)
	for b := range blocks {
		DecodeMSADPCMBlock(dst[b*align*channels:], src[b*blockBytes:], channels, align)
	}
	return dst, nil
}
