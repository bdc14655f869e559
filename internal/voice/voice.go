// Package voice implements the per-source mixing state machine: walking a
// buffer queue, resampling, filtering and mixing into the device buses.
//
// A Voice is configured by the context before it starts playing and is
// afterwards owned by the mixer goroutine. API goroutines only read its
// state and position through the atomic accessors.
package voice

import (
	"sync/atomic"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/hrtf"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

const (
	// MaxSends is the most auxiliary sends a voice can feed.
	MaxSends = 6
	// MaxOutputChannels bounds the lines of any bus a voice mixes into.
	MaxOutputChannels = 8
	// MaxChannels is the most stored channels a voice decodes (7.1).
	MaxChannels = 8

	// fadeSamples is the gain ramp applied after a parameter change.
	fadeSamples = 64
)

// State is the playback state of a voice.
type State uint32

const (
	Stopped State = iota
	Playing
	Stopping
	// Pending voices wait for their first parameter update before mixing.
	Pending
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Stopping:
		return "Stopping"
	case Pending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// Flags describe how a voice is mixed.
type Flags uint32

const (
	IsStatic Flags = 1 << iota
	IsCallback
	IsAmbisonic
	CallbackStopped
	IsFading
	HasHrtf
	HasNfc
)

// FilterType selects which of a path's filters run.
type FilterType uint8

const (
	FilterNone FilterType = iota
	FilterLowPass
	FilterHighPass
	FilterBandPass
)

// Target is a bus a voice path mixes into. An empty Buffer disables the
// path.
type Target struct {
	FilterType FilterType
	Buffer     [][]float32
}

// Gains holds the gain applied to each line of a bus.
type Gains struct {
	Current [MaxOutputChannels]float32
	Target  [MaxOutputChannels]float32
}

// DirectParams is the dry path state of one channel.
type DirectParams struct {
	LowPass  filter.Biquad
	HighPass filter.Biquad
	NFC      filter.NfcFilter
	Hrtf     hrtf.Params
	Gains    Gains
}

// SendParams is the state of one auxiliary send of one channel.
type SendParams struct {
	LowPass  filter.Biquad
	HighPass filter.Biquad
	Gains    Gains
}

// Channel is the per-channel mixing state.
type Channel struct {
	prev [resample.MaxPadding]float32

	AmbiHFScale  float32
	AmbiSplitter filter.BandSplitter

	Dry DirectParams
	Wet [MaxSends]SendParams
}

// Events receives what the mixer reports about a voice. It is called on
// the mixer goroutine and must not block.
type Events interface {
	BufferCompleted(sourceID uint32, count int)
	SourceStopped(sourceID uint32)
}

// Voice is one playback slot.
type Voice struct {
	playState atomic.Uint32
	sourceID  atomic.Uint32

	position     atomic.Int32
	positionFrac atomic.Uint32
	current      atomic.Pointer[BufferItem]
	loop         atomic.Pointer[BufferItem]

	// Set before the voice is started; read only by the mixer afterwards.
	Channels  convert.Channels
	Type      convert.SampleType
	FrameStep int
	Frequency int

	Step      uint32
	Resampler resample.Resampler
	Flags     Flags

	Direct Target
	Send   [MaxSends]Target
	Chans  []Channel

	callbackBase   int // first callback frame held in the buffer
	callbackFrames int // frames fetched from the callback
}

// State returns the playback state.
func (v *Voice) State() State {
	return State(v.playState.Load())
}

// SetState stores the playback state.
func (v *Voice) SetState(s State) {
	v.playState.Store(uint32(s))
}

// CompareAndSwapState moves the voice from old to new unless another
// goroutine changed the state first.
func (v *Voice) CompareAndSwapState(old, new State) bool {
	return v.playState.CompareAndSwap(uint32(old), uint32(new))
}

// SourceID returns the ID of the source playing through the voice, or 0.
func (v *Voice) SourceID() uint32 {
	return v.sourceID.Load()
}

// SetSourceID binds the voice to a source.
func (v *Voice) SetSourceID(id uint32) {
	v.sourceID.Store(id)
}

// Position returns the playback position: the current queue item and the
// sample offset into it with its fractional phase.
func (v *Voice) Position() (item *BufferItem, pos int, frac uint32) {
	return v.current.Load(), int(v.position.Load()), v.positionFrac.Load()
}

// LoopItem returns the queue item playback returns to after the last one.
func (v *Voice) LoopItem() *BufferItem {
	return v.loop.Load()
}

// SetPosition places the voice at pos samples (and frac) into item.
func (v *Voice) SetPosition(item *BufferItem, pos int, frac uint32) {
	v.current.Store(item)
	v.position.Store(int32(pos))
	v.positionFrac.Store(frac)
}

// SetLoopItem sets where playback continues after the last queue item;
// nil disables looping.
func (v *Voice) SetLoopItem(item *BufferItem) {
	v.loop.Store(item)
}

// Prepare sizes the per-channel state for n channels and clears all
// history, ready for a new start.
func (v *Voice) Prepare(n int) {
	n = min(n, MaxChannels)
	if cap(v.Chans) < n {
		v.Chans = make([]Channel, n)
	} else {
		v.Chans = v.Chans[:n]
		clear(v.Chans)
	}
	v.callbackBase = 0
	v.callbackFrames = 0
	v.Flags &^= IsFading | CallbackStopped
}

// Reset releases the voice's buffers and unbinds it from its source.
func (v *Voice) Reset() {
	v.SetPosition(nil, 0, 0)
	v.SetLoopItem(nil)
	v.SetSourceID(0)
	v.SetState(Stopped)
	v.Direct = Target{}
	v.Send = [MaxSends]Target{}
}
