package engine

import (
	"github.com/tphakala/go-audio-mixer/internal/simdops"
	"github.com/tphakala/simd/c128"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Convolver partitioning constants.
const (
	// SegmentSize is the partition length. The first partition of every
	// response runs as a direct FIR so the output has no added latency.
	SegmentSize = 512

	fftSize = 2 * SegmentSize

	// fftBins is the number of unique bins of a real FFT of fftSize.
	fftBins = fftSize/2 + 1
)

// Convolver applies one or more long impulse responses to a single input
// stream using uniformly partitioned overlap-add convolution.
//
// Input is gathered in SegmentSize blocks. Each completed block is
// transformed once and kept in a ring of spectra as long as the responses;
// each response partition is multiplied with the input block it lines up
// with, and one inverse FFT per output yields the next block of output plus
// an overflow tail carried into the one after.
type Convolver struct {
	fft *fourier.FFT

	numSegs int
	curSeg  int
	fifoPos int

	// input holds the previous block followed by the block being gathered.
	input [2 * SegmentSize]float32

	// history is a ring of input block spectra, numSegs entries of fftBins.
	history []complex128

	chans []convolverChannel

	seq   []float64
	coefs []complex128
	prod  []complex128
	acc   []complex128
}

type convolverChannel struct {
	// fir is the first partition, reversed for the dot product.
	fir [SegmentSize]float32
	// filters holds the spectra of the remaining partitions.
	filters []complex128
	// output carries the pending block and the overflow of the last one.
	output [2 * SegmentSize]float32
}

// NewConvolver prepares a convolver producing len(responses) outputs. An
// empty response set returns nil.
func NewConvolver(responses [][]float64) *Convolver {
	if len(responses) == 0 {
		return nil
	}
	length := 0
	for _, r := range responses {
		length = max(length, len(r))
	}
	if length == 0 {
		return nil
	}

	// One partition always runs in the time domain; keep at least one
	// frequency domain partition so the block path is uniform.
	numSegs := max((length+SegmentSize-1)/SegmentSize, 2) - 1

	c := &Convolver{
		fft:     fourier.NewFFT(fftSize),
		numSegs: numSegs,
		history: make([]complex128, numSegs*fftBins),
		chans:   make([]convolverChannel, len(responses)),
		seq:     make([]float64, fftSize),
		coefs:   make([]complex128, fftBins),
		prod:    make([]complex128, fftBins),
		acc:     make([]complex128, fftBins),
	}

	for i, r := range responses {
		ch := &c.chans[i]
		first := min(len(r), SegmentSize)
		for k := range first {
			ch.fir[SegmentSize-1-k] = float32(r[k])
		}

		ch.filters = make([]complex128, numSegs*fftBins)
		done := first
		for s := range numSegs {
			clear(c.seq)
			if done < len(r) {
				todo := min(len(r)-done, SegmentSize)
				copy(c.seq, r[done:done+todo])
				done += todo
			}
			c.fft.Coefficients(ch.filters[s*fftBins:(s+1)*fftBins], c.seq)
		}
	}
	return c
}

// Outputs returns the number of responses applied.
func (c *Convolver) Outputs() int {
	return len(c.chans)
}

// Reset clears all input and output history.
func (c *Convolver) Reset() {
	c.fifoPos = 0
	c.curSeg = 0
	clear(c.input[:])
	clear(c.history)
	for i := range c.chans {
		clear(c.chans[i].output[:])
	}
}

// Process convolves in with every response, writing len(in) samples to
// each out line.
func (c *Convolver) Process(in []float32, out [][]float32) {
	dot := simdops.Default().Dot
	n := len(in)
	for base := 0; base < n; {
		todo := min(SegmentSize-c.fifoPos, n-base)
		copy(c.input[SegmentSize+c.fifoPos:], in[base:base+todo])

		for i := range c.chans {
			ch := &c.chans[i]
			dst := out[i][base : base+todo]
			for k := range dst {
				src := c.input[1+c.fifoPos+k : 1+c.fifoPos+k+SegmentSize]
				dst[k] = dot(src, ch.fir[:]) + ch.output[c.fifoPos+k]
			}
		}

		c.fifoPos += todo
		base += todo
		if c.fifoPos < SegmentSize {
			break
		}
		c.fifoPos = 0
		c.processBlock()
	}
}

// processBlock runs the frequency domain partitions once a full input block
// has been gathered.
func (c *Convolver) processBlock() {
	copy(c.input[:SegmentSize], c.input[SegmentSize:])

	for i := range SegmentSize {
		c.seq[i] = float64(c.input[i])
	}
	clear(c.seq[SegmentSize:])
	cur := c.history[c.curSeg*fftBins : (c.curSeg+1)*fftBins]
	c.fft.Coefficients(cur, c.seq)

	scale := 1.0 / fftSize
	for i := range c.chans {
		ch := &c.chans[i]
		clear(c.acc)
		// Partition k pairs with the input block k blocks old.
		for k := range c.numSegs {
			s := (c.curSeg + k) % c.numSegs
			c128.Mul(c.prod, c.history[s*fftBins:(s+1)*fftBins], ch.filters[k*fftBins:(k+1)*fftBins])
			for j, v := range c.prod {
				c.acc[j] += v
			}
		}
		c.fft.Sequence(c.seq, c.acc)

		for j := range SegmentSize {
			ch.output[j] = float32(c.seq[j]*scale) + ch.output[SegmentSize+j]
		}
		for j := range SegmentSize {
			ch.output[SegmentSize+j] = float32(c.seq[SegmentSize+j] * scale)
		}
	}

	if c.curSeg == 0 {
		c.curSeg = c.numSegs
	}
	c.curSeg--
}
