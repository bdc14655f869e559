package voice

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/hrtf"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/simdops"
)

// Scratch is the mixer-owned working memory shared by every voice of a
// device. It is reused on each call and never shared between goroutines.
type Scratch struct {
	window   [resample.WindowSize]float32
	samples  [MaxChannels][resample.BufferLineSize]float32
	filtered [resample.BufferLineSize]float32
	nfc      [resample.BufferLineSize]float32
	silent   [MaxOutputChannels]float32

	// Hrtf receives voices flagged HasHrtf.
	Hrtf *hrtf.Mixer
}

// Mix renders n samples of the voice into its buses. st is the state the
// caller observed for this pass; Stopping runs one last pass fading to
// silence and leaves the voice Stopped.
func (v *Voice) Mix(st State, s *Scratch, n int, ev Events) {
	pos := int(v.position.Load())
	frac := v.positionFrac.Load()
	item := v.current.Load()
	loop := v.loop.Load()
	inc := v.Step

	if inc < 1 {
		if st == Stopping {
			v.SetState(Stopped)
		}
		return
	}
	n = min(n, resample.BufferLineSize)

	// A static voice already past its loop end plays out instead of
	// wrapping back.
	if v.Flags&IsStatic != 0 && loop != nil && item != nil && pos >= 0 && pos >= item.LoopEnd {
		loop = nil
	}

	for ch := range v.Chans {
		v.loadChannel(st, s, ch, n, item, loop, pos, frac)
	}

	if v.Flags&IsAmbisonic != 0 {
		for ch := range v.Chans {
			c := &v.Chans[ch]
			c.AmbiSplitter.ApplyHFScale(s.samples[ch][:n], c.AmbiHFScale)
		}
	}

	counter := 0
	if v.Flags&IsFading != 0 {
		counter = min(n, fadeSamples)
	}
	if counter == 0 {
		for ch := range v.Chans {
			c := &v.Chans[ch]
			if v.Flags&HasHrtf != 0 {
				c.Dry.Hrtf.Old = c.Dry.Hrtf.Target
			} else {
				c.Dry.Gains.Current = c.Dry.Gains.Target
			}
			for i := range v.Send {
				if len(v.Send[i].Buffer) > 0 {
					c.Wet[i].Gains.Current = c.Wet[i].Gains.Target
				}
			}
		}
	}

	playing := st == Playing
	for ch := range v.Chans {
		c := &v.Chans[ch]
		in := s.samples[ch][:n]

		dry := &c.Dry
		samples := doFilters(&dry.LowPass, &dry.HighPass, s.filtered[:n], in, v.Direct.FilterType)
		switch {
		case v.Flags&HasHrtf != 0:
			var gain float32
			if playing {
				gain = dry.Hrtf.Target.Gain
			}
			if s.Hrtf != nil {
				s.Hrtf.MixVoice(samples, &dry.Hrtf, gain, counter, 0, playing)
			}
		case v.Flags&HasNfc != 0:
			v.mixNfc(s, samples, dry, v.targetGains(s, &dry.Gains, playing), counter)
		default:
			out := v.Direct.Buffer
			simdops.Mix(samples, out, dry.Gains.Current[:len(out)], v.targetGains(s, &dry.Gains, playing), counter, 0)
		}

		for i := range v.Send {
			send := &v.Send[i]
			if len(send.Buffer) == 0 {
				continue
			}
			wet := &c.Wet[i]
			samples := doFilters(&wet.LowPass, &wet.HighPass, s.filtered[:n], in, send.FilterType)
			simdops.Mix(samples, send.Buffer, wet.Gains.Current[:len(send.Buffer)], v.targetGains(s, &wet.Gains, playing), counter, 0)
		}
	}

	v.Flags |= IsFading

	if st == Stopping {
		v.SetState(Stopped)
		return
	}

	frac += inc * uint32(n)
	pos += int(frac >> resample.FracBits)
	frac &= resample.FracMask

	buffersDone := 0
	if item != nil && pos > 0 {
		switch {
		case v.Flags&IsStatic != 0:
			if loop != nil && item.LoopEnd > item.LoopStart {
				if pos >= item.LoopEnd {
					pos = (pos-item.LoopStart)%(item.LoopEnd-item.LoopStart) + item.LoopStart
				}
			} else if pos >= item.SampleLen {
				item = nil
				buffersDone = 1
			}
		case v.Flags&IsCallback != 0:
			done := pos - v.callbackBase
			if done < v.callbackFrames {
				frameSize := v.FrameStep * v.Type.Size()
				copy(item.Samples, item.Samples[done*frameSize:v.callbackFrames*frameSize])
				v.callbackFrames -= done
				v.callbackBase += done
			} else {
				item = nil
				v.callbackFrames = 0
				v.callbackBase += done
			}
		default:
			for item != nil && pos >= item.SampleLen {
				pos -= item.SampleLen
				buffersDone++
				item = nextOrLoop(item, loop)
				if item != nil && item == loop && loopIsEmpty(loop) {
					item = nil
				}
			}
		}
	}

	sourceID := v.sourceID.Load()

	v.position.Store(int32(pos))
	v.positionFrac.Store(frac)
	v.current.Store(item)
	if item == nil {
		v.loop.Store(nil)
		v.sourceID.Store(0)
	}

	if buffersDone > 0 && ev != nil {
		ev.BufferCompleted(sourceID, buffersDone)
	}
	if item == nil {
		// One more pass lets filters and HRTF history fade to silence.
		v.SetState(Stopping)
		if ev != nil {
			ev.SourceStopped(sourceID)
		}
	}
}

func (v *Voice) targetGains(s *Scratch, g *Gains, playing bool) []float32 {
	if playing {
		return g.Target[:]
	}
	return s.silent[:]
}

// loadChannel fills s.samples[ch] with n resampled samples of channel ch,
// loading the source window in as many passes as the window size needs.
func (v *Voice) loadChannel(st State, s *Scratch, ch, n int, item, loop *BufferItem, pos int, frac uint32) {
	c := &v.Chans[ch]
	inc := v.Step
	window := s.window[:]
	copy(window, c.prev[:])
	buf := window[resample.MaxEdge:]
	out := s.samples[ch][:n]

	for loaded := 0; loaded < n; {
		dstSize, srcSize := resample.SourceSize(n-loaded, frac, inc)

		delay := 0
		skip := false
		if pos < 0 {
			delay = -pos
			if delay >= srcSize {
				clear(out[loaded : loaded+dstSize])
				clear(buf[:srcSize])
				skip = true
			} else {
				clear(buf[:delay])
			}
		}

		if !skip {
			dst := buf[delay:srcSize]
			upos := max(pos, 0)
			switch {
			case item == nil:
				holdQuietest(buf[:max(srcSize, resample.MaxEdge)], min(srcSize, resample.MaxEdge))
			case v.Flags&IsStatic != 0:
				loadStatic(dst, item, loop, upos, v.Type, ch, v.FrameStep)
			case v.Flags&IsCallback != 0:
				v.fetchCallback(item, upos-v.callbackBase+len(dst))
				loadCallback(dst, item, upos-v.callbackBase, v.callbackFrames, v.Type, ch, v.FrameStep)
			default:
				loadQueue(dst, item, loop, upos, v.Type, ch, v.FrameStep)
			}

			v.Resampler.Resample(window, frac, inc, out[loaded:loaded+dstSize])

			// Keep the window around the end of the mix as history for
			// the next one.
			if st == Playing {
				end := loaded + dstSize
				if n > loaded && n <= end {
					off := int((uint64(n-loaded)*uint64(inc) + uint64(frac)) >> resample.FracBits)
					copy(c.prev[:], window[off:off+resample.MaxPadding])
				}
			}
		}

		loaded += dstSize
		if loaded < n {
			adv := uint64(frac) + uint64(dstSize)*uint64(inc)
			off := int(adv >> resample.FracBits)
			frac = uint32(adv) & resample.FracMask
			pos += off
			copy(window, window[off:off+resample.MaxPadding])
		}
	}
}

// fetchCallback asks the callback for enough whole frames to cover need
// frames past the buffer base.
func (v *Voice) fetchCallback(item *BufferItem, need int) {
	if v.Flags&CallbackStopped != 0 || need <= v.callbackFrames {
		return
	}
	frameSize := v.FrameStep * v.Type.Size()
	capFrames := len(item.Samples) / frameSize
	need = min(need, capFrames)
	if need <= v.callbackFrames {
		return
	}
	start := v.callbackFrames * frameSize
	want := (need - v.callbackFrames) * frameSize
	got := item.Callback(item.Samples[start : start+want])
	switch {
	case got < 0:
		v.Flags |= CallbackStopped
	case got < want:
		v.Flags |= CallbackStopped
		v.callbackFrames += got / frameSize
	default:
		v.callbackFrames = need
	}
}

// holdQuietest fills buf after the quietest of its first avail samples with
// that sample, so a voice whose queue ended early settles near zero.
func holdQuietest(buf []float32, avail int) {
	best := 0
	for i := 1; i < avail; i++ {
		if math.Abs(float64(buf[i])) < math.Abs(float64(buf[best])) {
			best = i
		}
	}
	fill(buf[best+1:], buf[best])
}

func loopIsEmpty(loop *BufferItem) bool {
	for p := loop; p != nil; p = p.Next() {
		if p.SampleLen > 0 {
			return false
		}
	}
	return true
}

func (v *Voice) mixNfc(s *Scratch, in []float32, p *DirectParams, target []float32, counter int) {
	out := v.Direct.Buffer
	simdops.Mix(in, out[:1], p.Gains.Current[:1], target[:1], counter, 0)
	if len(out) < 2 {
		return
	}
	nfc := s.nfc[:len(in)]
	p.NFC.Process1(nfc, in)
	simdops.Mix(nfc, out[1:], p.Gains.Current[1:len(out)], target[1:], counter, 0)
}

func doFilters(lp, hp *filter.Biquad, dst, src []float32, typ FilterType) []float32 {
	switch typ {
	case FilterLowPass:
		lp.Process(dst, src)
		hp.Clear()
		return dst
	case FilterHighPass:
		lp.Clear()
		hp.Process(dst, src)
		return dst
	case FilterBandPass:
		lp.DualProcess(hp, dst, src)
		return dst
	default:
		lp.Clear()
		hp.Clear()
		return src
	}
}
