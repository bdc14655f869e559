// Command analyze-filter prints the frequency response of the filters the
// mixer uses: the voice and effect biquads, the resampler kernels at a
// given pitch, and windowed-sinc FIR designs.
//
// Usage:
//
//	analyze-filter -mode biquad -type lowshelf -freq 250 -gain 0.5
//	analyze-filter -mode resampler -kind bsinc24 -pitch 1.5
//	analyze-filter -mode fir -taps 127 -cutoff 0.2 -atten 80
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/cmplx"
	"os"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

const (
	defaultRate = 48000
	fftSize     = 8192
	sineLength  = 4096
	floorDB     = -200.0
)

// probeFreqs are the points printed, in Hz at 48 kHz.
var probeFreqs = []float64{20, 50, 100, 200, 500, 1000, 2000, 5000, 8000, 12000, 16000, 20000, 23000}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	mode := flag.String("mode", "biquad", "What to analyze: biquad, resampler, fir")
	rate := flag.Int("rate", defaultRate, "Sample rate in Hz")
	typ := flag.String("type", "lowpass", "Biquad type: lowshelf, highshelf, peaking, lowpass, highpass, bandpass")
	freq := flag.Float64("freq", 5000, "Biquad reference frequency in Hz")
	gain := flag.Float64("gain", 1, "Biquad shelf or peak gain (linear)")
	slope := flag.Float64("slope", 1, "Biquad shelf slope")
	bandwidth := flag.Float64("bw", 0, "Biquad bandwidth in octaves; overrides -slope when set")
	kind := flag.String("kind", "bsinc24", "Resampler kind")
	pitch := flag.Float64("pitch", 1, "Resampler pitch (source samples per output sample)")
	taps := flag.Int("taps", 127, "FIR length")
	cutoff := flag.Float64("cutoff", 0.2, "FIR normalized cutoff (0 to 0.5)")
	atten := flag.Float64("atten", 80, "FIR stopband attenuation in dB")
	flag.Parse()

	if *rate <= 0 {
		return fmt.Errorf("invalid rate %d", *rate)
	}

	switch strings.ToLower(*mode) {
	case "biquad":
		bt, err := parseBiquadType(*typ)
		if err != nil {
			return err
		}
		f0 := float32(*freq / float64(*rate))
		var f filter.Biquad
		if *bandwidth > 0 {
			f.SetParamsFromBandwidth(bt, f0, float32(*gain), float32(*bandwidth))
		} else {
			f.SetParamsFromSlope(bt, f0, float32(*gain), float32(*slope))
		}
		fmt.Printf("=== %s biquad, f0 %.1f Hz, gain %.3f ===\n", bt, *freq, *gain)
		printResponse(biquadImpulse(&f), *rate)
	case "resampler":
		k, err := resample.ParseKind(*kind)
		if err != nil {
			return err
		}
		return analyzeResampler(os.Stdout, k, *pitch, *rate)
	case "fir":
		h, err := filter.DesignLowPass(filter.FIRParams{
			NumTaps:     *taps,
			CutoffFreq:  *cutoff,
			Attenuation: *atten,
			Gain:        1,
		})
		if err != nil {
			return err
		}
		fmt.Printf("=== Kaiser FIR, %d taps, cutoff %.3f, %.0f dB ===\n", *taps, *cutoff, *atten)
		fmt.Printf("  DC gain: %.6f\n", floats.Sum(h))
		printResponse(h, *rate)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	return nil
}

func parseBiquadType(s string) (filter.BiquadType, error) {
	switch strings.ToLower(s) {
	case "lowshelf":
		return filter.LowShelf, nil
	case "highshelf":
		return filter.HighShelf, nil
	case "peaking":
		return filter.Peaking, nil
	case "lowpass":
		return filter.LowPass, nil
	case "highpass":
		return filter.HighPass, nil
	case "bandpass":
		return filter.BandPass, nil
	}
	return 0, fmt.Errorf("unknown biquad type %q", s)
}

// biquadImpulse returns the first fftSize samples of the filter's impulse
// response.
func biquadImpulse(f *filter.Biquad) []float64 {
	in := make([]float32, fftSize)
	out := make([]float32, fftSize)
	in[0] = 1
	f.Process(out, in)
	h := make([]float64, fftSize)
	for i, v := range out {
		h[i] = float64(v)
	}
	return h
}

// printResponse prints the magnitude of h at the probe frequencies.
func printResponse(h []float64, rate int) {
	n := fftSize
	for n < len(h) {
		n *= 2
	}
	seq := make([]float64, n)
	copy(seq, h)
	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)

	for _, f := range probeFreqs {
		if f >= float64(rate)/2 {
			break
		}
		bin := int(math.Round(f / float64(rate) * float64(n)))
		fmt.Printf("  %7.0f Hz  %8.2f dB\n", f, toDB(cmplx.Abs(coeffs[bin])))
	}
}

// analyzeResampler plays sines through the kernel and reports the level
// that comes out. Above the output Nyquist frequency that level is the
// aliasing the kernel lets through.
func analyzeResampler(w io.Writer, k resample.Kind, pitch float64, rate int) error {
	if pitch <= 0 || pitch > resample.MaxPitch {
		return fmt.Errorf("pitch %.3f out of range (0, %d]", pitch, resample.MaxPitch)
	}
	inc := uint32(pitch * resample.FracOne)
	r := resample.New(k, inc)

	srcLen := resample.MaxEdge + resample.LastPosition(sineLength, 0, inc) + resample.MaxEdge + 1
	src := make([]float32, srcLen)
	dst := make([]float32, sineLength)
	ref := 1 / math.Sqrt2

	fmt.Fprintf(w, "=== %s at pitch %.3f ===\n", k.Description(), pitch)
	for _, f := range probeFreqs {
		if f >= float64(rate)/2 {
			break
		}
		step := 2 * math.Pi * f / float64(rate)
		for i := range src {
			src[i] = float32(math.Sin(float64(i-resample.MaxEdge) * step))
		}
		r.Resample(src, 0, inc, dst)

		// Skip the kernel's ramp at either end.
		body := make([]float64, 0, len(dst))
		for _, v := range dst[resample.MaxEdge : len(dst)-resample.MaxEdge] {
			body = append(body, float64(v))
		}
		rms := math.Sqrt(floats.Dot(body, body) / float64(len(body)))
		note := ""
		if f*pitch >= float64(rate)/2 {
			note = "  (aliased)"
		}
		fmt.Fprintf(w, "  %7.0f Hz  %8.2f dB%s\n", f, toDB(rms/ref), note)
	}
	return nil
}

func toDB(v float64) float64 {
	if v <= 0 {
		return floorDB
	}
	return math.Max(20*math.Log10(v), floorDB)
}
