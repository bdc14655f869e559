package mixer

import (
	"runtime"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/rtprio"
)

func runtimeYield() { runtime.Gosched() }

// Render mixes frames interleaved frames into out in the device's output
// type. Backends call it from their pull goroutine. On a loopback device
// the application calls it, and it writes silence while the device is
// stopped.
func (d *Device) Render(out []byte, frames int) {
	if d.loopback != nil {
		d.loopback.Render(out, frames)
		return
	}
	d.render(out, frames)
}

// RenderSamples mixes frames interleaved float frames into dst, whatever
// the output type. It is meant for loopback devices and writes silence
// while the device is stopped or disconnected.
func (d *Device) RenderSamples(dst []float32, frames int) {
	chans := len(d.realOut.Buffer)
	if !d.running.Load() || !d.connected.Load() {
		clear(dst[:frames*chans])
		return
	}

	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	d.raisePriority()
	for done := 0; done < frames; {
		n := min(frames-done, resample.BufferLineSize)
		d.mixBlock(n)
		convert.WriteFloat(dst[done*chans:], d.realOut.Buffer, n)
		done += n
	}
}

func (d *Device) render(out []byte, frames int) {
	frameSize := d.format.FrameSize()
	if !d.connected.Load() {
		clear(out[:frames*frameSize])
		return
	}

	d.renderMu.Lock()
	defer d.renderMu.Unlock()
	d.raisePriority()
	for done := 0; done < frames; {
		n := min(frames-done, resample.BufferLineSize)
		d.mixBlock(n)
		convert.Write(out[done*frameSize:], d.realOut.Buffer, n, d.format.Type)
		done += n
	}
}

// mixBlock renders n samples into realOut. Callers hold renderMu.
func (d *Device) mixBlock(n int) {
	d.mixCount.Add(1)

	d.dry.Clear(n)
	d.realOut.Clear(n)
	for _, c := range *d.contexts.Load() {
		d.processContext(c, n)
	}

	if d.hrtfDirect != nil {
		d.hrtfDirect.Mix(d.scratch.Hrtf, d.dry.Buffer, n)
		d.scratch.Hrtf.Flush(d.realOut.Buffer[0], d.realOut.Buffer[1], n)
	} else {
		d.realOut.Decode(d.dry, n)
	}
	d.post.Load().Process(d.realOut.Buffer, n)

	d.frames.Add(int64(n))
	d.mixCount.Add(1)
}

// raisePriority moves the rendering thread to real-time scheduling the
// first time it renders, when configured.
func (d *Device) raisePriority() {
	if d.cfg.RealtimePriority <= 0 {
		return
	}
	d.prioOnce.Do(func() {
		// The priority belongs to the thread, so keep the goroutine on it.
		runtime.LockOSThread()
		m, err := rtprio.Raise(d.cfg.RealtimePriority)
		if err != nil {
			d.log.Printf("mixer priority unchanged: %v", err)
			return
		}
		d.log.Printf("mixer priority raised (%v)", m)
	})
}
