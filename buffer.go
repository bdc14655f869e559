package mixer

import (
	"sync"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// BufferCallback fills dst with samples in the buffer's format and returns
// the number of bytes written. Returning less than len(dst) ends the stream.
// It is called on the mixer goroutine and must not block.
type BufferCallback func(dst []byte) int

// Buffer holds sample data that sources play. ADPCM data is expanded to
// 16-bit PCM when it is uploaded, so the mixer only ever reads plain
// samples. A buffer that is queued on any source cannot be changed.
type Buffer struct {
	dev *Device
	id  uint32

	mu          sync.Mutex
	format      Format // storage format after decoding
	origType    SampleType
	origSize    int
	blockAlign  int // frames per ADPCM block of the uploaded data
	unpackAlign int
	frequency   int
	data        []byte
	frames      int
	loopStart   int
	loopEnd     int
	callback    BufferCallback
	refs        int
}

// ID returns the buffer's identifier.
func (b *Buffer) ID() uint32 {
	return b.id
}

// SetUnpackBlockAlignment sets the frames per block assumed for the next
// ADPCM upload. 0 restores the device default.
func (b *Buffer) SetUnpackBlockAlignment(align int) error {
	if align < 0 {
		return newError(InvalidValue, "block alignment %d", align)
	}
	b.mu.Lock()
	b.unpackAlign = align
	b.mu.Unlock()
	return nil
}

func (b *Buffer) adpcmAlign(t SampleType) (int, error) {
	align := b.unpackAlign
	switch t {
	case SampleIMA4:
		if align == 0 {
			align = b.dev.engine.IMA4BlockAlign
		}
		if !convert.ValidIMA4Align(align) {
			return 0, newError(InvalidValue, "IMA4 block alignment %d", align)
		}
	case SampleMSADPCM:
		if align == 0 {
			align = b.dev.engine.MSADPCMBlockAlign
		}
		if !convert.ValidMSADPCMAlign(align) {
			return 0, newError(InvalidValue, "MSADPCM block alignment %d", align)
		}
	default:
		align = 1
	}
	return align, nil
}

func checkBufferFormat(format Format, freq int) error {
	switch {
	case !format.Channels.Valid():
		return newError(InvalidEnum, "channels %d", int(format.Channels))
	case !format.Type.Valid():
		return newError(InvalidEnum, "sample type %d", int(format.Type))
	case freq < 1:
		return newError(InvalidValue, "frequency %d", freq)
	case format.Type.IsCompressed() && format.Channels.Count() > 2:
		return newError(InvalidEnum, "%v requires mono or stereo, not %v", format.Type, format.Channels)
	}
	return nil
}

// SetData replaces the buffer's samples with a copy of data, interleaved in
// format at freq Hz. Loop points are reset to the whole buffer.
func (b *Buffer) SetData(format Format, data []byte, freq int) error {
	if err := checkBufferFormat(format, freq); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		return wrapError(InvalidOperation, ErrBufferInUse, "buffer %d is queued", b.id)
	}
	align, err := b.adpcmAlign(format.Type)
	if err != nil {
		return err
	}

	channels := format.Channels.Count()
	var stored []byte
	switch format.Type {
	case SampleIMA4, SampleMSADPCM:
		var pcm []int16
		if format.Type == SampleIMA4 {
			pcm, err = convert.DecodeIMA4(data, channels, align)
		} else {
			pcm, err = convert.DecodeMSADPCM(data, channels, align)
		}
		if err != nil {
			return wrapError(InvalidValue, err, "%d bytes of %v", len(data), format.Type)
		}
		stored = convert.ShortsToBytes(pcm)
	default:
		if len(data)%format.FrameSize() != 0 {
			return newError(InvalidValue, "%d bytes is not a whole number of %d byte frames", len(data), format.FrameSize())
		}
		stored = append([]byte(nil), data...)
	}

	b.origType = format.Type
	b.origSize = len(data)
	b.blockAlign = align
	b.format = format
	if format.Type.IsCompressed() {
		b.format.Type = SampleInt16
	}
	b.frequency = freq
	b.data = stored
	b.frames = len(stored) / b.format.FrameSize()
	b.loopStart = 0
	b.loopEnd = b.frames
	b.callback = nil
	return nil
}

// SetCallback turns the buffer into a stream that pulls samples from fn as
// the mixer needs them. ADPCM formats cannot be streamed.
func (b *Buffer) SetCallback(format Format, freq int, fn BufferCallback) error {
	if err := checkBufferFormat(format, freq); err != nil {
		return err
	}
	if format.Type.IsCompressed() {
		return newError(InvalidValue, "callback buffers cannot use %v", format.Type)
	}
	if fn == nil {
		return newError(InvalidValue, "nil callback")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		return wrapError(InvalidOperation, ErrBufferInUse, "buffer %d is queued", b.id)
	}
	b.format = format
	b.origType = format.Type
	b.origSize = 0
	b.blockAlign = 1
	b.frequency = freq
	b.data = nil
	b.frames = 0
	b.loopStart, b.loopEnd = 0, 0
	b.callback = fn
	return nil
}

// SetLoopPoints sets the [start, end) sample range a looping static source
// repeats.
func (b *Buffer) SetLoopPoints(start, end int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		return wrapError(InvalidOperation, ErrBufferInUse, "buffer %d is queued", b.id)
	}
	if start < 0 || start >= end || end > b.frames {
		return newError(InvalidValue, "loop points %d..%d outside 0..%d", start, end, b.frames)
	}
	b.loopStart, b.loopEnd = start, end
	return nil
}

// LoopPoints returns the loop range.
func (b *Buffer) LoopPoints() (start, end int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loopStart, b.loopEnd
}

// Frequency returns the sample rate in Hz.
func (b *Buffer) Frequency() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frequency
}

// Channels returns the number of interleaved channels.
func (b *Buffer) Channels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format.Channels.Count()
}

// Bits returns the bit depth of the uploaded samples (4 for ADPCM).
func (b *Buffer) Bits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.origType.Bits()
}

// Size returns the byte size of the uploaded data.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.origSize
}

// Length returns the number of sample frames.
func (b *Buffer) Length() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Format returns the storage format. ADPCM uploads report 16-bit samples.
func (b *Buffer) Format() Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format
}

// bufferView is what a queue entry captures of a buffer when it is queued.
// The buffer cannot change while referenced, so the view stays valid.
type bufferView struct {
	format     Format
	origType   SampleType
	blockAlign int
	frequency  int
	frames     int
	callback   BufferCallback
}

func (v bufferView) compatible(o bufferView) bool {
	return v.format == o.format && v.frequency == o.frequency
}

// acquire references b for a source queue and builds the mixer's item.
func (b *Buffer) acquire() (*voice.BufferItem, bufferView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs++
	item := &voice.BufferItem{
		Samples:   b.data,
		SampleLen: b.frames,
		LoopStart: b.loopStart,
		LoopEnd:   b.loopEnd,
	}
	if b.callback != nil {
		item.Callback = voice.CallbackFunc(b.callback)
		item.Samples = make([]byte, voice.CallbackBytes(b.format.FrameSize()))
	}
	return item, bufferView{
		format:     b.format,
		origType:   b.origType,
		blockAlign: b.blockAlign,
		frequency:  b.frequency,
		frames:     b.frames,
		callback:   b.callback,
	}
}

func (b *Buffer) release() {
	b.mu.Lock()
	b.refs--
	b.mu.Unlock()
}

func (b *Buffer) inUse() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs > 0
}
