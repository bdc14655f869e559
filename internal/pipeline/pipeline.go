// Package pipeline implements the post-mix processing chain of a device.
// After every voice and effect has been mixed and decoded to the output
// channels, the stages run in order over the speaker lines: crossfeed,
// then the limiter, then dither ahead of integer conversion.
package pipeline

import (
	"fmt"
	"math"

	"github.com/tphakala/go-audio-mixer/internal/bs2b"
	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/mastering"
)

// Stage transforms the output lines in place.
type Stage interface {
	// Process runs over the first n samples of every line.
	Process(lines [][]float32, n int)

	// Name identifies the stage in logs.
	Name() string
}

// latencyStage is implemented by stages that delay the signal.
type latencyStage interface {
	Latency() int
}

// Pipeline is an ordered list of stages. The zero value and a nil
// *Pipeline do nothing.
type Pipeline struct {
	stages []Stage
}

// Config selects the stages Build creates.
type Config struct {
	Channels  int
	Frequency int

	// Crossfeed is the bs2b level; it only applies to two channels.
	Crossfeed bs2b.Level

	// Limiter enables the output limiter with ThresholdDB as its ceiling.
	Limiter     bool
	ThresholdDB float32

	// DitherBits is the depth to dither to; 0 disables dither.
	DitherBits int
}

// Build creates the chain described by cfg.
func Build(cfg Config) (*Pipeline, error) {
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("pipeline: invalid channel count %d", cfg.Channels)
	}
	if cfg.Frequency <= 0 {
		return nil, fmt.Errorf("pipeline: invalid frequency %d", cfg.Frequency)
	}

	var stages []Stage
	if cfg.Crossfeed != bs2b.Off && cfg.Channels == 2 {
		cf, err := NewCrossfeed(cfg.Crossfeed, cfg.Frequency)
		if err != nil {
			return nil, err
		}
		stages = append(stages, cf)
	}
	if cfg.Limiter {
		stages = append(stages, NewLimiter(cfg.Channels, cfg.Frequency, cfg.ThresholdDB))
	}
	if cfg.DitherBits > 0 {
		stages = append(stages, NewDither(cfg.DitherBits))
	}
	return New(stages...), nil
}

// New returns a pipeline running stages in order. Nil stages are skipped.
func New(stages ...Stage) *Pipeline {
	p := &Pipeline{}
	for _, s := range stages {
		if s != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Process runs every stage over the first n samples of lines.
func (p *Pipeline) Process(lines [][]float32, n int) {
	if p == nil {
		return
	}
	for _, s := range p.stages {
		s.Process(lines, n)
	}
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.stages)
}

// Names lists the stages in processing order.
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Latency returns the total delay the stages add, in samples.
func (p *Pipeline) Latency() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, s := range p.stages {
		if l, ok := s.(latencyStage); ok {
			total += l.Latency()
		}
	}
	return total
}

// Crossfeed mixes a little of each stereo channel into the other for
// headphone listening.
type Crossfeed struct {
	p *bs2b.Processor
}

// NewCrossfeed returns a crossfeed stage.
func NewCrossfeed(level bs2b.Level, rate int) (*Crossfeed, error) {
	p, err := bs2b.New(level, rate)
	if err != nil {
		return nil, fmt.Errorf("pipeline: crossfeed: %w", err)
	}
	return &Crossfeed{p: p}, nil
}

func (c *Crossfeed) Process(lines [][]float32, n int) {
	if len(lines) < 2 {
		return
	}
	c.p.CrossFeed(lines[0][:n], lines[1][:n])
}

func (c *Crossfeed) Name() string { return "crossfeed" }

// Limiter keeps the output below a ceiling with one gain shared by all
// channels.
type Limiter struct {
	c *mastering.Compressor
}

// NewLimiter returns a limiter stage for chans channels.
func NewLimiter(chans, rate int, thresholdDB float32) *Limiter {
	return &Limiter{c: mastering.New(chans, float32(rate), mastering.LimiterParams(thresholdDB))}
}

func (l *Limiter) Process(lines [][]float32, n int) { l.c.Process(lines, n) }

func (l *Limiter) Name() string { return "limiter" }

// Latency is the limiter's look-ahead.
func (l *Limiter) Latency() int { return l.c.LookAhead() }

// Dither adds TPDF noise and rounds to a bit depth.
type Dither struct {
	d     *convert.Ditherer
	scale float32
}

// NewDither returns a dither stage for the given depth.
func NewDither(bits int) *Dither {
	return &Dither{d: convert.NewDitherer(), scale: convert.QuantScale(bits)}
}

func (d *Dither) Process(lines [][]float32, n int) { d.d.Apply(lines, d.scale, n) }

func (d *Dither) Name() string { return "dither" }

// LimiterThreshold returns the limiter ceiling for an output depth: one
// quantization step below full scale for integer output, just under 0 dBFS
// for float.
func LimiterThreshold(bits int) float32 {
	if bits <= 0 {
		return -0.0003
	}
	return float32(20 * math.Log10(1-1/math.Ldexp(1, bits-1)))
}
