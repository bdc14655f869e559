package mixer

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// speedOfSoundMetersPerSec sets the near-field filter corners.
const speedOfSoundMetersPerSec = 343.3

// ambiSplitFreq is the crossover of the B-Format high-frequency scaling.
const ambiSplitFreq = 400

// setState changes the application state and reports it. Callers hold
// ctx.mu.
func (s *Source) setState(st SourceState) {
	if s.state == st {
		return
	}
	s.state = st
	s.ctx.stateEvent(s.id, st)
}

// voiceLive reports whether s still owns a voice.
func (s *Source) voiceLive() bool {
	return s.voice != nil && s.voice.SourceID() == s.id
}

// syncState folds a voice the mixer finished back into the source.
func (s *Source) syncState() {
	if s.voice != nil && !s.voiceLive() {
		s.voice = nil
		if s.state == Playing || s.state == Paused {
			// The mixer already reported the stop.
			s.state = Stopped
			s.offsetKind = offsetNone
		}
	}
}

// publish hands the current settings to the source's voice, if it has
// one. Callers hold ctx.mu.
func (s *Source) publish() {
	s.dirty = false
	if !s.voiceLive() {
		return
	}
	n := s.ctx.sourceFree.Get()
	n.Value = s.p
	s.voice.update.Publish(n, &s.ctx.sourceFree)
}

// stopVoice unbinds s from its voice and has the mixer fade it out.
func (s *Source) stopVoice() {
	mv := s.voice
	s.voice = nil
	if mv == nil || mv.SourceID() != s.id {
		return
	}
	mv.SetPosition(nil, 0, 0)
	mv.SetLoopItem(nil)
	mv.SetSourceID(0)
	if mv.State() != voice.Stopped {
		mv.SetState(voice.Stopping)
	}
	s.ctx.dev.waitForMix()
	// A mix that started before the state change may have left it
	// playing; nothing is queued, so the next pass ends it.
	mv.SetPosition(nil, 0, 0)
	mv.SetLoopItem(nil)
}

func (s *Source) clearQueue() {
	for _, e := range s.queue {
		e.buf.release()
	}
	clear(s.queue)
	s.queue = s.queue[:0]
}

// State returns the playback state.
func (s *Source) State() SourceState {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.syncState()
	return s.state
}

// SetLooping makes the source repeat its buffer (or whole queue).
func (s *Source) SetLooping(on bool) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.looping = on
	if s.voiceLive() {
		var loop *voice.BufferItem
		if on && len(s.queue) > 0 {
			loop = s.queue[0].item
		}
		s.voice.SetLoopItem(loop)
		// Make sure the mixer is not still using the old loop target.
		c.dev.waitForMix()
	}
	return nil
}

// SetBuffer makes s a static source playing b, or clears it when b is
// nil. The source must be initial or stopped.
func (s *Source) SetBuffer(b *Buffer) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.syncState()
	if s.state == Playing || s.state == Paused {
		return c.setError(newError(InvalidOperation, "source %d is %v", s.id, s.state))
	}
	if b != nil && b.dev != c.dev {
		return c.setError(newError(InvalidName, "buffer %d belongs to another device", b.id))
	}
	s.clearQueue()
	s.offsetKind = offsetNone
	if b == nil {
		s.typ = Undetermined
		return nil
	}
	item, view := b.acquire()
	s.queue = append(s.queue, queueEntry{buf: b, item: item, view: view})
	s.typ = Static
	return nil
}

// QueueBuffers appends bufs to the queue of a streaming source. Every
// buffer in a queue must share one format and frequency.
func (s *Source) QueueBuffers(bufs ...*Buffer) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.typ == Static {
		return c.setError(newError(InvalidOperation, "source %d is static", s.id))
	}

	entries := make([]queueEntry, 0, len(bufs))
	fail := func(err error) error {
		for _, e := range entries {
			e.buf.release()
		}
		return c.setError(err)
	}
	var ref *bufferView
	if len(s.queue) > 0 {
		ref = &s.queue[0].view
	}
	for _, b := range bufs {
		if b == nil || b.dev != c.dev {
			return fail(newError(InvalidName, "buffer not on this device"))
		}
		item, view := b.acquire()
		entries = append(entries, queueEntry{buf: b, item: item, view: view})
		if ref == nil {
			ref = &entries[0].view
		} else if !ref.compatible(view) {
			return fail(newError(InvalidOperation, "buffer %d is %v at %d Hz, queue is %v at %d Hz",
				b.id, view.format, view.frequency, ref.format, ref.frequency))
		}
	}
	if len(entries) == 0 {
		return nil
	}

	for i := 1; i < len(entries); i++ {
		entries[i-1].item.SetNext(entries[i].item)
	}
	if n := len(s.queue); n > 0 {
		s.queue[n-1].item.SetNext(entries[0].item)
	}
	s.queue = append(s.queue, entries...)
	s.typ = Streaming
	return nil
}

// processed returns how many queue entries playback has moved past.
func (s *Source) processed() int {
	if s.looping || s.typ != Streaming || s.state == Initial {
		return 0
	}
	if !s.voiceLive() {
		if s.state == Stopped {
			return len(s.queue)
		}
		return 0
	}
	cur, _, _ := s.voice.Position()
	for i, e := range s.queue {
		if e.item == cur {
			return i
		}
	}
	return len(s.queue)
}

// UnqueueBuffers removes n processed buffers from the front of the queue
// and returns them.
func (s *Source) UnqueueBuffers(n int) ([]*Buffer, error) {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == 0 {
		return nil, nil
	}
	if s.looping {
		return nil, c.setError(newError(InvalidValue, "cannot unqueue from looping source %d", s.id))
	}
	if s.typ != Streaming {
		return nil, c.setError(newError(InvalidValue, "source %d is not streaming", s.id))
	}
	s.syncState()
	if p := s.processed(); n < 0 || n > p {
		return nil, c.setError(newError(InvalidValue, "unqueueing %d buffers, %d processed", n, p))
	}

	out := make([]*Buffer, n)
	for i, e := range s.queue[:n] {
		e.buf.release()
		out[i] = e.buf
	}
	s.queue = append(s.queue[:0], s.queue[n:]...)
	clear(s.queue[len(s.queue):cap(s.queue)])
	if len(s.queue) == 0 {
		s.typ = Undetermined
	}
	return out, nil
}

// BuffersQueued returns the queue length.
func (s *Source) BuffersQueued() int {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return len(s.queue)
}

// BuffersProcessed returns how many queued buffers have finished playing
// and can be unqueued.
func (s *Source) BuffersProcessed() int {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.syncState()
	return s.processed()
}

// Play starts the source from its beginning (or pending offset), resumes
// it when paused and restarts it when already playing.
func (s *Source) Play() error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.syncState()

	start := -1
	for i, e := range s.queue {
		if e.view.frames > 0 || e.view.callback != nil {
			start = i
			break
		}
	}
	if start < 0 || !c.dev.Connected() {
		s.stopVoice()
		s.setState(Stopped)
		s.offsetKind = offsetNone
		return nil
	}

	if s.state == Paused && s.voiceLive() {
		mv := s.voice
		mv.SetState(voice.Playing)
		c.dev.waitForMix()
		if mv.SourceID() == s.id && mv.State() == voice.Stopped {
			mv.SetState(voice.Playing)
		}
		s.setState(Playing)
		return nil
	}
	s.stopVoice()

	mv, err := c.allocVoice()
	if err != nil {
		return c.setError(err)
	}
	s.startVoice(mv, start)
	s.setState(Playing)
	return nil
}

// allocVoice finds an idle voice or adds one. Callers hold mu.
func (c *Context) allocVoice() (*mixVoice, error) {
	vs := *c.voices.Load()
	for _, v := range vs {
		if v.State() == voice.Stopped && v.SourceID() == 0 && !v.update.Pending() {
			return v, nil
		}
	}
	if len(vs) >= c.cfg.MaxSources {
		return nil, newError(OutOfMemory, "all %d voices in use", len(vs))
	}
	v := &mixVoice{}
	v.events.q = c.events
	next := append(vs[:len(vs):len(vs)], v)
	c.voices.Store(&next)
	return v, nil
}

// startVoice sets up mv to play the queue from entry start and hands it to
// the mixer.
func (s *Source) startVoice(mv *mixVoice, start int) {
	c := s.ctx
	e := s.queue[start]
	ch := e.view.format.Channels
	n := ch.Count()

	mv.Prepare(n)
	mv.Channels = ch
	mv.Type = e.view.format.Type
	mv.FrameStep = n
	mv.Frequency = e.view.frequency
	mv.Step = 0
	mv.Direct = voice.Target{}
	mv.Send = [voice.MaxSends]voice.Target{}
	mv.hasProps = false

	var flags voice.Flags
	switch {
	case e.view.callback != nil:
		flags |= voice.IsCallback
	case s.typ == Static:
		flags |= voice.IsStatic
	}
	if ch.IsAmbisonic() {
		scale := panning.HFOrderScale(ch == ChannelsBFormat3D, true)
		for i := range mv.Chans {
			mv.Chans[i].AmbiHFScale = 1
			if i > 0 {
				mv.Chans[i].AmbiHFScale = scale
			}
			mv.Chans[i].AmbiSplitter.Init(float32(ambiSplitFreq) / float32(c.dev.format.Frequency))
		}
		if scale != 1 {
			flags |= voice.IsAmbisonic
		}
	}
	if d := c.dev.cfg.NFCDistance; d > 0 && c.dev.cfg.Layout == LayoutAmbi1 {
		w1 := speedOfSoundMetersPerSec / (d * float32(c.dev.format.Frequency))
		for i := range mv.Chans {
			mv.Chans[i].Dry.NFC.Init(w1)
		}
	}
	mv.Flags = flags

	item, pos, frac := e.item, 0, uint32(0)
	if s.offsetKind != offsetNone {
		if idx, p, f, ok := s.seekTarget(); ok {
			item, pos, frac = s.queue[idx].item, p, f
		}
		s.offsetKind = offsetNone
	}
	mv.SetPosition(item, pos, frac)
	var loop *voice.BufferItem
	if s.looping {
		loop = s.queue[0].item
	}
	mv.SetLoopItem(loop)
	mv.SetSourceID(s.id)
	s.voice = mv

	node := c.sourceFree.Get()
	node.Value = s.p
	mv.update.Publish(node, &c.sourceFree)
	mv.SetState(voice.Pending)
}

// Pause holds the source at its position.
func (s *Source) Pause() error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.syncState()
	if s.state != Playing {
		return nil
	}
	if s.voiceLive() {
		s.voice.SetState(voice.Stopping)
		c.dev.waitForMix()
	}
	s.setState(Paused)
	return nil
}

// Stop ends playback. The next Play starts from the beginning.
func (s *Source) Stop() error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.syncState()
	s.stopVoice()
	s.offsetKind = offsetNone
	if s.state != Initial {
		s.setState(Stopped)
	}
	return nil
}

// Rewind stops the source and returns it to the initial state.
func (s *Source) Rewind() error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.syncState()
	s.stopVoice()
	s.offsetKind = offsetNone
	s.setState(Initial)
	return nil
}

// position reads the voice position as one consistent triple. Callers
// hold ctx.mu.
func (s *Source) position() (item *voice.BufferItem, pos int, frac uint32, ok bool) {
	if !s.voiceLive() {
		return nil, 0, 0, false
	}
	d := s.ctx.dev
	for {
		ref := d.waitForMix()
		item, pos, frac = s.voice.Position()
		if d.mixCount.Load() == ref {
			break
		}
	}
	return item, pos, frac, item != nil
}

// playedFrames returns the frames played from the queue start, with the
// fractional phase.
func (s *Source) playedFrames() (frames int, frac uint32, view bufferView, ok bool) {
	item, pos, frac, ok := s.position()
	if !ok || len(s.queue) == 0 {
		return 0, 0, bufferView{}, false
	}
	view = s.queue[0].view
	for _, e := range s.queue {
		if e.item == item {
			return frames + max(pos, 0), frac, view, true
		}
		frames += e.view.frames
	}
	return 0, 0, view, false
}

// SampleOffset returns the playback position in sample frames.
func (s *Source) SampleOffset() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	frames, frac, _, ok := s.playedFrames()
	if !ok {
		return s.pendingOffset(offsetSamples)
	}
	return float64(frames) + float64(frac)/resample.FracOne
}

// SecOffset returns the playback position in seconds.
func (s *Source) SecOffset() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	frames, frac, view, ok := s.playedFrames()
	if !ok {
		return s.pendingOffset(offsetSeconds)
	}
	return (float64(frames) + float64(frac)/resample.FracOne) / float64(view.frequency)
}

// ByteOffset returns the playback position in bytes of the uploaded data.
// ADPCM positions are rounded down to a block.
func (s *Source) ByteOffset() int {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	frames, _, view, ok := s.playedFrames()
	if !ok {
		return int(s.pendingOffset(offsetBytes))
	}
	return framesToBytes(frames, view)
}

func framesToBytes(frames int, v bufferView) int {
	ch := v.format.Channels.Count()
	switch v.origType {
	case SampleIMA4:
		return frames / v.blockAlign * convert.IMA4BlockBytes(v.blockAlign, ch)
	case SampleMSADPCM:
		return frames / v.blockAlign * convert.MSADPCMBlockBytes(v.blockAlign, ch)
	}
	return frames * ch * v.origType.Size()
}

func bytesToFrames(n int, v bufferView) int {
	ch := v.format.Channels.Count()
	switch v.origType {
	case SampleIMA4:
		return n / convert.IMA4BlockBytes(v.blockAlign, ch) * v.blockAlign
	case SampleMSADPCM:
		return n / convert.MSADPCMBlockBytes(v.blockAlign, ch) * v.blockAlign
	}
	return n / (ch * v.origType.Size())
}

// pendingOffset converts a seek stored on a stopped source into unit k.
func (s *Source) pendingOffset(k offsetKind) float64 {
	if s.offsetKind == offsetNone || len(s.queue) == 0 {
		return 0
	}
	view := s.queue[0].view
	var frames float64
	switch s.offsetKind {
	case offsetSamples:
		frames = s.offset
	case offsetSeconds:
		frames = s.offset * float64(view.frequency)
	case offsetBytes:
		frames = float64(bytesToFrames(int(s.offset), view))
	}
	switch k {
	case offsetSeconds:
		return frames / float64(view.frequency)
	case offsetBytes:
		return float64(framesToBytes(int(frames), view))
	}
	return frames
}

// seekTarget resolves the pending offset to a queue entry and a position
// inside it. It fails when the offset is past the end of the queue.
func (s *Source) seekTarget() (idx, pos int, frac uint32, ok bool) {
	if len(s.queue) == 0 {
		return 0, 0, 0, false
	}
	view := s.queue[0].view
	var off float64
	switch s.offsetKind {
	case offsetSamples:
		off = s.offset
	case offsetSeconds:
		off = s.offset * float64(view.frequency)
	case offsetBytes:
		off = float64(bytesToFrames(int(s.offset), view))
	default:
		return 0, 0, 0, false
	}
	whole := math.Floor(off)
	frac = uint32((off - whole) * resample.FracOne)
	frames := int(whole)
	for i, e := range s.queue {
		if frames < e.view.frames {
			return i, frames, frac, true
		}
		frames -= e.view.frames
	}
	return 0, 0, 0, false
}

func (s *Source) seek(k offsetKind, v float64) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if !(v >= 0) || math.IsInf(v, 0) {
		return c.setError(newError(InvalidValue, "offset %g out of range", v))
	}
	s.syncState()

	prevKind, prev := s.offsetKind, s.offset
	s.offsetKind, s.offset = k, v
	if !s.voiceLive() {
		// Applied when the source next plays.
		return nil
	}

	idx, pos, frac, ok := s.seekTarget()
	s.offsetKind = offsetNone
	if !ok {
		s.offsetKind, s.offset = prevKind, prev
		return c.setError(newError(InvalidValue, "offset %g past the end of the queue", v))
	}
	if s.voice.Flags&voice.IsCallback != 0 {
		return c.setError(newError(InvalidOperation, "cannot seek callback source %d", s.id))
	}
	d := c.dev
	d.renderMu.Lock()
	s.voice.SetPosition(s.queue[idx].item, pos, frac)
	d.renderMu.Unlock()
	return nil
}

// SetSampleOffset moves playback to sample frame v of the queue.
func (s *Source) SetSampleOffset(v float64) error {
	return s.seek(offsetSamples, v)
}

// SetSecOffset moves playback to v seconds into the queue.
func (s *Source) SetSecOffset(v float64) error {
	return s.seek(offsetSeconds, v)
}

// SetByteOffset moves playback to byte v of the uploaded data. ADPCM
// offsets are rounded down to a block.
func (s *Source) SetByteOffset(v int) error {
	return s.seek(offsetBytes, float64(v))
}
