package convert

import (
	"encoding/binary"
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

// IMA4Encoder compresses interleaved 16-bit PCM into IMA4 blocks. The step
// index carries over between blocks.
type IMA4Encoder struct {
	channels int
	align    int
	index    [maxADPCMChans]int32
}

// NewIMA4Encoder returns an encoder for the given layout.
func NewIMA4Encoder(channels, align int) (*IMA4Encoder, error) {
	if _, err := checkADPCM(0, channels, align, 1, ValidIMA4Align(align)); err != nil {
		return nil, err
	}
	return &IMA4Encoder{channels: channels, align: align}, nil
}

// imaNibble picks the code closest to diff for the given step.
func imaNibble(diff, step int32) uint32 {
	var sign uint32
	if diff < 0 {
		sign = 8
		diff = -diff
	}
	// Codes reconstruct (2m+1)*step/8.
	m := int32(math.Round((8*float64(diff)/float64(step) - 1) / 2))
	return sign | uint32(mathutil.Clamp(m, 0, 7))
}

// EncodeBlock compresses align frames of src into dst, which must hold
// IMA4BlockBytes(align, channels) bytes.
func (e *IMA4Encoder) EncodeBlock(dst []byte, src []int16) {
	chans := e.channels
	var sample [maxADPCMChans]int32

	for c := range chans {
		sample[c] = int32(src[c])
		binary.LittleEndian.PutUint16(dst, uint16(src[c]))
		binary.LittleEndian.PutUint16(dst[2:], uint16(e.index[c]))
		dst = dst[4:]
	}

	var code [maxADPCMChans]uint32
	for i := 1; i < e.align; i++ {
		for c := range chans {
			diff := int32(src[i*chans+c]) - sample[c]
			nibble := imaNibble(diff, imaStepSize[e.index[c]])

			sample[c] += ima4Codeword[nibble] * imaStepSize[e.index[c]] / 8
			sample[c] = mathutil.Clamp(sample[c], -32768, 32767)
			e.index[c] = mathutil.Clamp(e.index[c]+ima4IndexAdjust[nibble], 0, int32(imaMaxIndex))

			code[c] |= nibble << (4 * uint((i-1)&7))
		}
		if i&7 == 0 {
			for c := range chans {
				binary.LittleEndian.PutUint32(dst, code[c])
				dst = dst[4:]
				code[c] = 0
			}
		}
	}
}

// Encode compresses a whole interleaved stream, zero-padding the last block.
func (e *IMA4Encoder) Encode(src []int16) []byte {
	frames := len(src) / e.channels
	blocks := (frames + e.align - 1) / e.align
	blockBytes := IMA4BlockBytes(e.align, e.channels)
	out := make([]byte, blocks*blockBytes)

	block := make([]int16, e.align*e.channels)
	for b := range blocks {
		n := copy(block, src[b*e.align*e.channels:])
		clear(block[n:])
		e.EncodeBlock(out[b*blockBytes:], block)
	}
	return out
}

// MSADPCMEncoder compresses interleaved 16-bit PCM into MSADPCM blocks,
// choosing the predictor with the least error for each block and channel.
type MSADPCMEncoder struct {
	channels int
	align    int
}

// NewMSADPCMEncoder returns an encoder for the given layout.
func NewMSADPCMEncoder(channels, align int) (*MSADPCMEncoder, error) {
	if _, err := checkADPCM(0, channels, align, 1, ValidMSADPCMAlign(align)); err != nil {
		return nil, err
	}
	return &MSADPCMEncoder{channels: channels, align: align}, nil
}

type msadpcmChannel struct {
	pred    int
	delta   int32
	hist    [2]int32
	nibbles []byte
}

// encodeChannel runs the decoder model forward over one channel of a block.
// It returns the state at the start and the squared error.
func (e *MSADPCMEncoder) encodeChannel(src []int16, c, pred int) (msadpcmChannel, float64) {
	chans := e.channels
	at := func(i int) int32 { return int32(src[i*chans+c]) }

	coeff := msadpcmAdaptionCoeff[pred]
	h0, h1 := at(1), at(0)
	first := (h0*coeff[0] + h1*coeff[1]) / 256
	delta := int32(msadpcmMinDelta)
	if e.align > 2 {
		delta = max(msadpcmMinDelta, abs32(at(2)-first)/4)
	}

	ch := msadpcmChannel{pred: pred, delta: delta, hist: [2]int32{h0, h1}}
	ch.nibbles = make([]byte, 0, e.align-2)

	var sqErr float64
	for i := 2; i < e.align; i++ {
		p := (h0*coeff[0] + h1*coeff[1]) / 256
		q := int32(math.Round(float64(at(i)-p) / float64(delta)))
		q = mathutil.Clamp(q, -8, 7)
		nibble := q & 0x0f

		p = mathutil.Clamp(p+q*delta, -32768, 32767)
		h1, h0 = h0, p
		delta = max(msadpcmMinDelta, msadpcmAdaption[nibble]*delta/256)

		d := float64(at(i) - p)
		sqErr += d * d
		ch.nibbles = append(ch.nibbles, byte(nibble))
	}
	return ch, sqErr
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// EncodeBlock compresses align frames of src into dst, which must hold
// MSADPCMBlockBytes(align, channels) bytes.
func (e *MSADPCMEncoder) EncodeBlock(dst []byte, src []int16) {
	chans := e.channels
	var best [maxADPCMChans]msadpcmChannel

	for c := range chans {
		bestErr := math.Inf(1)
		for pred := range msadpcmAdaptionCoeff {
			ch, err := e.encodeChannel(src, c, pred)
			if err < bestErr {
				best[c], bestErr = ch, err
			}
		}
	}

	for c := range chans {
		dst[c] = byte(best[c].pred)
	}
	dst = dst[chans:]
	for c := range chans {
		binary.LittleEndian.PutUint16(dst[2*c:], uint16(best[c].delta))
	}
	dst = dst[2*chans:]
	for c := range chans {
		binary.LittleEndian.PutUint16(dst[2*c:], uint16(best[c].hist[0]))
	}
	dst = dst[2*chans:]
	for c := range chans {
		binary.LittleEndian.PutUint16(dst[2*c:], uint16(best[c].hist[1]))
	}
	dst = dst[2*chans:]

	num := 0
	for i := range e.align - 2 {
		for c := range chans {
			n := best[c].nibbles[i]
			if num&1 == 0 {
				dst[0] = n << 4
			} else {
				dst[0] |= n
				dst = dst[1:]
			}
			num++
		}
	}
}

// Encode compresses a whole interleaved stream, zero-padding the last block.
func (e *MSADPCMEncoder) Encode(src []int16) []byte {
	frames := len(src) / e.channels
	blocks := (frames + e.align - 1) / e.align
	blockBytes := MSADPCMBlockBytes(e.align, e.channels)
	out := make([]byte, blocks*blockBytes)

	block := make([]int16, e.align*e.channels)
	for b := range blocks {
		n := copy(block, src[b*e.align*e.channels:])
		clear(block[n:])
		e.EncodeBlock(out[b*blockBytes:], block)
	}
	return out
}
