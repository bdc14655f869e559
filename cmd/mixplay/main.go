// Command mixplay plays a 3D scene of audio clips live through the
// platform audio output.
//
// Usage:
//
//	mixplay voice.wav@-2,0,-1 music.ogg@3,0,2
//	mixplay -reverb cave -orbit 1 -loop engine.mp3@0,0,-4
//	mixplay -config mixer.yaml -hrtf enabled steps.wav@1,0,0
//
// With -config, edits to the file are applied while playing where the
// device allows it (dither, limiter, crossfeed and reverb boost).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mixer "github.com/tphakala/go-audio-mixer"
	"github.com/tphakala/go-audio-mixer/backend/oto"
	"github.com/tphakala/go-audio-mixer/internal/clip"
	"github.com/tphakala/go-audio-mixer/internal/scene"
)

// updateInterval is how often orbiting sources are moved.
const updateInterval = 20 * time.Millisecond

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sf := scene.RegisterFlags(flag.CommandLine)
	duration := flag.Duration("duration", 0, "Stop after this long; 0 plays until the clips end")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] clip[@x,y,z]...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nReverb presets: %v\n", mixer.ReverbPresetNames())
		return errors.New("no clips given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	places, err := scene.Placements(flag.Args())
	if err != nil {
		return err
	}
	cfg, err := sf.DeviceConfig()
	if err != nil {
		return err
	}
	if cfg.Layout.Count() > 2 {
		log.Printf("%v output is not available live, playing stereo", cfg.Layout)
		cfg.Layout = mixer.LayoutStereo
	}

	clips, err := clip.LoadAll(ctx, scene.Paths(places))
	if err != nil {
		return err
	}

	dev, err := mixer.OpenDevice(cfg, oto.New())
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	sc, err := scene.Build(dev, clips, places, sf.Options())
	if err != nil {
		return err
	}
	defer func() { _ = sc.Close() }()

	if sf.Config != "" {
		go func() {
			err := mixer.WatchConfigFile(ctx, sf.Config, func(fc *mixer.FileConfig, err error) {
				if err != nil {
					log.Printf("config: %v", err)
					return
				}
				if err := dev.ApplyRuntimeConfig(*fc); err != nil {
					log.Printf("config: %v", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("config watch: %v", err)
			}
		}()
	}

	if err := dev.Start(); err != nil {
		return err
	}
	if err := sc.Play(); err != nil {
		return err
	}
	if sf.Verbose {
		log.Printf("Playing %d clip(s) at %d Hz %v", len(clips), dev.Frequency(), dev.Layout())
	}

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sc.Done():
			// Let the reverb ring out.
			time.Sleep(time.Second)
			return nil
		case <-ticker.C:
			if !dev.Connected() {
				return errors.New("audio device disconnected")
			}
			if err := sc.Update(dev.ClockTime()); err != nil {
				return err
			}
		}
	}
}
