// Command mixwav renders a 3D scene of audio clips to a WAV file, faster
// than real time, through a loopback device.
//
// Usage:
//
//	mixwav -o out.wav voice.wav@-2,0,-1 music.ogg@3,0,2
//	mixwav -o out.wav -reverb concert-hall -orbit 0.5 engine.mp3@0,0,-4
//	mixwav -o out.wav -layout surround51 -type int16 -config mixer.yaml a.aiff
//
// Each clip may be followed by @x,y,z to place it; the listener is at the
// origin facing -z. Rendering stops when every clip has finished and the
// reverb tail has played, or after -duration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	mixer "github.com/tphakala/go-audio-mixer"
	"github.com/tphakala/go-audio-mixer/backend"
	"github.com/tphakala/go-audio-mixer/internal/clip"
	"github.com/tphakala/go-audio-mixer/internal/scene"
)

const (
	// tailDuration keeps rendering after the last clip so reverb decays.
	tailDuration = 2 * time.Second

	// maxDuration bounds looping scenes rendered without -duration.
	maxDuration = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sf := scene.RegisterFlags(flag.CommandLine)
	output := flag.String("o", "", "Output WAV file")
	duration := flag.Duration("duration", 0, "Length to render; 0 renders until the clips end")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	flag.Parse()

	if *output == "" || flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s -o output.wav [options] clip[@x,y,z]...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nReverb presets: %v\n", mixer.ReverbPresetNames())
		return errors.New("missing output or clips")
	}
	if sf.Loop && *duration == 0 {
		*duration = maxDuration
		log.Printf("looping without -duration, stopping after %v", maxDuration)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	places, err := scene.Placements(flag.Args())
	if err != nil {
		return err
	}
	cfg, err := sf.DeviceConfig()
	if err != nil {
		return err
	}

	start := time.Now()
	clips, err := clip.LoadAll(context.Background(), scene.Paths(places))
	if err != nil {
		return err
	}
	if sf.Verbose {
		for _, c := range clips {
			log.Printf("Loaded %s: %d Hz, %d channels, %d frames", c.Name, c.Frequency, c.Channels, c.Frames())
		}
	}

	frames, err := render(*output, cfg, clips, places, sf.Options(), *duration, sf.Verbose)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	secs := float64(frames) / float64(cfg.Frequency)
	fmt.Printf("Rendered %d clip(s) -> %s\n", len(clips), filepath.Base(*output))
	fmt.Printf("  %d Hz, %v, %d frames (%.2fs)\n", cfg.Frequency, cfg.Layout, frames, secs)
	fmt.Printf("  Took %.2fs, %.1fx realtime\n", elapsed.Seconds(), secs/elapsed.Seconds())
	return nil
}

// render mixes the scene into path and returns the number of frames
// written.
func render(path string, cfg mixer.DeviceConfig, clips []*clip.Clip, places []scene.Placement,
	opts scene.Options, duration time.Duration, verbose bool,
) (frames int, err error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	wv := backend.NewWave(out)
	format, err := wv.Open(backend.Format{
		Frequency:  cfg.Frequency,
		Channels:   cfg.Layout.Count(),
		Type:       cfg.OutputType,
		UpdateSize: cfg.UpdateSize,
		Periods:    cfg.Periods,
	})
	if err != nil {
		return 0, err
	}
	// The WAV header is only complete once the writer is closed.
	defer func() {
		if closeErr := wv.Close(); err == nil {
			err = closeErr
		}
	}()
	if format.Type != cfg.OutputType && verbose {
		log.Printf("Writing %v samples instead of %v", format.Type, cfg.OutputType)
	}
	cfg.OutputType = format.Type

	dev, err := mixer.OpenLoopbackDevice(cfg)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := dev.Close(); err == nil {
			err = closeErr
		}
	}()

	sc, err := scene.Build(dev, clips, places, opts)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := sc.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := sc.Play(); err != nil {
		return 0, err
	}

	limit := -1
	if duration > 0 {
		limit = int(duration.Seconds() * float64(cfg.Frequency))
	}
	tail := int(tailDuration.Seconds() * float64(cfg.Frequency))
	buf := make([]byte, cfg.UpdateSize*format.FrameSize())
	finished := -1

	for limit < 0 || frames < limit {
		n := cfg.UpdateSize
		if limit >= 0 {
			n = min(n, limit-frames)
		}
		dev.Render(buf, n)
		if err := wv.Write(buf[:n*format.FrameSize()]); err != nil {
			return frames, fmt.Errorf("failed to write audio data: %w", err)
		}
		frames += n

		if err := sc.Update(dev.ClockTime()); err != nil {
			return frames, err
		}
		if finished < 0 {
			select {
			case <-sc.Done():
				finished = frames
				if verbose {
					log.Printf("Clips finished at %.2fs", float64(frames)/float64(cfg.Frequency))
				}
			default:
			}
		}
		if limit < 0 && finished >= 0 && frames-finished >= tail {
			break
		}
	}
	return frames, nil
}
