package voice

import (
	"sync/atomic"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// CallbackFunc fills dst with stored samples and returns the number of
// bytes written. Returning fewer bytes than requested ends the stream.
type CallbackFunc func(dst []byte) int

// BufferItem is one entry of a voice's buffer queue as the mixer sees it.
// Items are linked by the API side and only read by the mixer; the data of
// a queued item never changes while it is queued.
type BufferItem struct {
	next atomic.Pointer[BufferItem]

	// Callback, when set, makes this a streaming callback buffer. Samples
	// then holds the blocks fetched from it.
	Callback CallbackFunc

	Samples   []byte
	SampleLen int
	LoopStart int
	LoopEnd   int
}

// Next returns the following queue entry.
func (b *BufferItem) Next() *BufferItem {
	return b.next.Load()
}

// SetNext links n after b.
func (b *BufferItem) SetNext(n *BufferItem) {
	b.next.Store(n)
}

// CallbackBytes returns the storage a callback buffer needs so one mix at
// the highest pitch can read a full line of frames plus resampler lookahead.
func CallbackBytes(frameSize int) int {
	return (resample.BufferLineSize*resample.MaxPitch + resample.MaxEdge) * frameSize
}

func loadStatic(dst []float32, item, loop *BufferItem, pos int, typ convert.SampleType, ch, step int) {
	if loop == nil || item.LoopEnd <= item.LoopStart {
		var last float32
		if item.SampleLen > pos {
			n := min(len(dst), item.SampleLen-pos)
			convert.LoadSamples(dst[:n], item.Samples, typ, ch, step, pos)
			last = dst[n-1]
			dst = dst[n:]
		}
		fill(dst, last)
		return
	}

	start, end := item.LoopStart, item.LoopEnd
	if pos >= end {
		pos = (pos-start)%(end-start) + start
	}
	n := min(len(dst), end-pos)
	convert.LoadSamples(dst[:n], item.Samples, typ, ch, step, pos)
	dst = dst[n:]

	size := end - start
	for len(dst) > 0 {
		n = min(len(dst), size)
		convert.LoadSamples(dst[:n], item.Samples, typ, ch, step, start)
		dst = dst[n:]
	}
}

func loadCallback(dst []float32, item *BufferItem, pos, avail int, typ convert.SampleType, ch, step int) {
	var last float32
	if avail > pos {
		n := min(len(dst), avail-pos)
		convert.LoadSamples(dst[:n], item.Samples, typ, ch, step, pos)
		last = dst[n-1]
		dst = dst[n:]
	}
	fill(dst, last)
}

func loadQueue(dst []float32, item, loop *BufferItem, pos int, typ convert.SampleType, ch, step int) {
	var last float32
	// Stop when a whole pass over the loop produced nothing, which only
	// happens with a queue of empty buffers.
	loaded := true
	for item != nil && len(dst) > 0 {
		if item == loop {
			if !loaded {
				break
			}
			loaded = false
		}
		if pos >= item.SampleLen {
			pos -= item.SampleLen
			item = nextOrLoop(item, loop)
			continue
		}

		n := min(len(dst), item.SampleLen-pos)
		convert.LoadSamples(dst[:n], item.Samples, typ, ch, step, pos)
		loaded = true
		last = dst[n-1]
		dst = dst[n:]
		pos = 0
		item = nextOrLoop(item, loop)
	}
	fill(dst, last)
}

func nextOrLoop(item, loop *BufferItem) *BufferItem {
	if n := item.Next(); n != nil {
		return n
	}
	return loop
}

func fill(dst []float32, v float32) {
	for i := range dst {
		dst[i] = v
	}
}
