// Package mixer is a real-time 3D audio mixer in pure Go, modelled on the
// OpenAL Soft software renderer.
//
// Applications upload sound into buffers, play them through sources placed
// around a listener, and route them through effect slots. A device mixes
// every playing source into its output layout and hands the samples to a
// backend: live audio, a WAV file, or the application itself in loopback
// mode.
//
// # Features
//
//   - Positional audio with seven distance models, sound cones, Doppler
//     shift, air absorption and source radius
//   - Output to mono, stereo, quad, 5.1, 6.1, 7.1 and first-order
//     ambisonics, with optional HRTF for headphones
//   - Resamplers from nearest-sample to 24-tap band-limited sinc
//   - Effect slots with reverb, EAX reverb, chorus, flanger, echo,
//     distortion, equalizer, compressor, ring modulator, autowah, frequency
//     and pitch shifters, vocal morpher, convolution and dedicated outputs;
//     slots may feed other slots
//   - Static and streaming (queued) sources, callback buffers, IMA4 and
//     MSADPCM decoding, loop points and sample-accurate offsets
//   - Post-mix crossfeed, output limiter and TPDF dither
//   - Optional SIMD acceleration (AVX2/SSE/NEON) via github.com/tphakala/simd
//
// # Quick Start
//
// Render without an audio API through a loopback device:
//
//	dev, err := mixer.OpenLoopbackDevice(mixer.DefaultDeviceConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	ctx, err := dev.NewContext(mixer.DefaultContextConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	buf, _ := dev.NewBuffer()
//	_ = buf.SetData(mixer.FormatMono16, pcm, 44100)
//
//	src, _ := ctx.NewSource()
//	_ = src.SetBuffer(buf)
//	_ = src.SetPosition(2, 0, -1)
//	_ = src.Play()
//
//	out := make([]float32, 1024*2)
//	dev.RenderSamples(out, 1024)
//
// For live output open a device on a backend instead, such as the one in
// package backend/oto, and call [Device.Start].
//
// # Threads
//
// All object methods are safe for concurrent use. Changes made through them
// are published to the mixer without blocking it; the mixer picks them up
// at the start of its next update. [Context.DeferUpdates] holds changes
// back so that a batch of them takes effect in the same update, and
// [Context.ProcessUpdates] releases them.
//
// Events (buffers completed, sources stopped, device lost) are delivered on
// a goroutine owned by the context, never on the mixer's.
//
// # Configuration
//
// [DeviceConfig] sets up a device. [LoadConfigFile] reads the same settings
// from YAML, and [WatchConfigFile] reports edits so that
// [Device.ApplyRuntimeConfig] can apply the ones a running device allows.
//
// # Errors
//
// Failed calls return an [*Error] carrying an [ErrorCode]; the context also
// records the first code until [Context.LastError] reads it. Use errors.Is
// with the sentinels such as [ErrInvalidValue] to test for a kind of
// failure.
package mixer
