package backend

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Wave writes the rendered stream to a WAV file in real time. Float output
// is written as 32-bit PCM and 8-bit output as unsigned, as the format
// requires.
type Wave struct {
	mu     sync.Mutex
	w      io.WriteSeeker
	enc    *wav.Encoder
	format Format
	buf    *audio.IntBuffer
	frames int
	err    error

	stop chan struct{}
	done chan struct{}
}

// NewWave returns a backend writing to w. Close finalizes the header.
func NewWave(w io.WriteSeeker) *Wave {
	return &Wave{w: w}
}

func (wv *Wave) Name() string { return "wave" }

// waveType maps a requested sample type to one WAV can store.
func waveType(t SampleType) SampleType {
	switch t {
	case Int8, Uint8:
		return Uint8
	case Int16, Uint16:
		return Int16
	default:
		return Int32
	}
}

// Open creates the encoder. The returned format may differ from want in its
// sample type.
func (wv *Wave) Open(want Format) (Format, error) {
	if err := want.Validate(); err != nil {
		return Format{}, err
	}
	f := want
	f.Type = waveType(want.Type)

	wv.mu.Lock()
	defer wv.mu.Unlock()
	if wv.enc != nil {
		return Format{}, fmt.Errorf("%w: wave writer already open", ErrRunning)
	}
	const pcmFormat = 1
	wv.enc = wav.NewEncoder(wv.w, f.Frequency, f.Type.Size()*8, f.Channels, pcmFormat)
	wv.format = f
	wv.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.Frequency},
		Data:           make([]int, f.UpdateSize*f.Channels),
		SourceBitDepth: f.Type.Size() * 8,
	}
	return f, nil
}

// Start writes one period per period length until Stop.
func (wv *Wave) Start(r Renderer) error {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if wv.enc == nil {
		return ErrNotOpen
	}
	if wv.stop != nil {
		return ErrRunning
	}
	wv.stop = make(chan struct{})
	wv.done = make(chan struct{})
	sink := func(p []byte) {
		if err := wv.write(p); err != nil {
			r.HandleDisconnect(fmt.Sprintf("wave write failed: %v", err))
		}
	}
	go pace(wv.format, r, wv.stop, wv.done, sink)
	return nil
}

// Write encodes rendered frames in the opened format. It is for offline
// rendering, where the application pulls from a loopback device instead of
// starting the writer.
func (wv *Wave) Write(p []byte) error {
	wv.mu.Lock()
	open, running := wv.enc != nil, wv.stop != nil
	wv.mu.Unlock()
	switch {
	case !open:
		return ErrNotOpen
	case running:
		return ErrRunning
	}
	for len(p) > 0 {
		n := min(len(p), cap(wv.buf.Data)*wv.format.Type.Size())
		if err := wv.write(p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return wv.err
}

// write appends one rendered period. Periods after a failed write are
// dropped; Close reports the failure.
func (wv *Wave) write(p []byte) error {
	if wv.err != nil {
		return nil
	}
	n := len(p) / wv.format.Type.Size()
	data := wv.buf.Data[:n]
	decodeInts(data, p, wv.format.Type)
	wv.buf.Data = data
	if err := wv.enc.Write(wv.buf); err != nil {
		wv.err = err
		return err
	}
	wv.mu.Lock()
	wv.frames += n / wv.format.Channels
	wv.mu.Unlock()
	return nil
}

// decodeInts converts little-endian device samples to the signed integers
// the encoder expects.
func decodeInts(dst []int, p []byte, t SampleType) {
	switch t {
	case Uint8:
		for i := range dst {
			dst[i] = int(p[i])
		}
	case Int16:
		for i := range dst {
			dst[i] = int(int16(binary.LittleEndian.Uint16(p[2*i:])))
		}
	default:
		for i := range dst {
			dst[i] = int(int32(binary.LittleEndian.Uint32(p[4*i:])))
		}
	}
}

func (wv *Wave) Stop() error {
	wv.mu.Lock()
	stop, done := wv.stop, wv.done
	wv.stop, wv.done = nil, nil
	wv.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Close stops writing and finalizes the file. It returns the first write
// error, if any.
func (wv *Wave) Close() error {
	if err := wv.Stop(); err != nil {
		return err
	}
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if wv.enc == nil {
		return wv.err
	}
	err := wv.enc.Close()
	wv.enc = nil
	if wv.err != nil {
		return wv.err
	}
	return err
}

// Frames returns how many frames the file holds so far.
func (wv *Wave) Frames() int {
	wv.mu.Lock()
	defer wv.mu.Unlock()
	return wv.frames
}
