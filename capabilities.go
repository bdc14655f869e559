package mixer

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// MixerCapabilities records the CPU features the mixer was set up for. It
// is detected once per device and carried in its EngineConfig.
type MixerCapabilities struct {
	CPU          string
	LogicalCores int
	CacheLine    int

	SSE2    bool
	SSE4    bool
	AVX2    bool
	FMA3    bool
	AVX512F bool
	NEON    bool
}

// DetectCapabilities probes the host CPU.
func DetectCapabilities() MixerCapabilities {
	c := cpuid.CPU
	return MixerCapabilities{
		CPU:          strings.TrimSpace(c.BrandName),
		LogicalCores: c.LogicalCores,
		CacheLine:    c.CacheLine,
		SSE2:         c.SSE2(),
		SSE4:         c.SSE4(),
		AVX2:         c.AVX2(),
		FMA3:         c.FMA3(),
		AVX512F:      c.AVX512F(),
		NEON:         runtime.GOARCH == "arm64" || c.ArmASIMD(),
	}
}

// Vector reports whether the SIMD kernels have a vector path on this CPU.
func (m MixerCapabilities) Vector() bool {
	return m.AVX2 || m.SSE4 || m.NEON
}

// Kernel names the widest vector instruction set the SIMD kernels use.
func (m MixerCapabilities) Kernel() string {
	switch {
	case m.AVX512F:
		return "avx512"
	case m.AVX2:
		return "avx2"
	case m.SSE4:
		return "sse4"
	case m.NEON:
		return "neon"
	default:
		return "scalar"
	}
}

// DefaultResampler is the kernel new sources get: cubic when vector dot
// products are available, linear otherwise.
func (m MixerCapabilities) DefaultResampler() Resampler {
	if m.Vector() {
		return resample.DefaultKind
	}
	return resample.Linear
}

func (m MixerCapabilities) String() string {
	var feats []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"sse2", m.SSE2}, {"sse4", m.SSE4}, {"avx2", m.AVX2}, {"fma3", m.FMA3},
		{"avx512f", m.AVX512F}, {"neon", m.NEON},
	} {
		if f.ok {
			feats = append(feats, f.name)
		}
	}
	cpu := m.CPU
	if cpu == "" {
		cpu = runtime.GOARCH
	}
	if len(feats) == 0 {
		return cpu + " (scalar)"
	}
	return fmt.Sprintf("%s (%s)", cpu, strings.Join(feats, " "))
}

// EngineConfig is the fixed setup of one device's mixer, derived from its
// DeviceConfig when the device opens.
type EngineConfig struct {
	Capabilities MixerCapabilities

	// SIMD names the dot-product implementation the kernels dispatch to.
	SIMD string

	Resampler   Resampler
	DitherDepth int // 0 disables dither
	Limiter     bool
	Crossfeed   int
	HRTF        bool
	HRTFName    string

	IMA4BlockAlign    int
	MSADPCMBlockAlign int
}

func newEngineConfig(cfg DeviceConfig, caps MixerCapabilities) EngineConfig {
	ec := EngineConfig{
		Capabilities:      caps,
		SIMD:              caps.Kernel(),
		Resampler:         cfg.Resampler,
		Limiter:           cfg.OutputLimiter,
		Crossfeed:         cfg.Crossfeed,
		IMA4BlockAlign:    cfg.IMA4BlockAlign,
		MSADPCMBlockAlign: cfg.MSADPCMBlockAlign,
	}
	if ec.IMA4BlockAlign == 0 {
		ec.IMA4BlockAlign = convert.DefaultIMA4Align
	}
	if ec.MSADPCMBlockAlign == 0 {
		ec.MSADPCMBlockAlign = convert.DefaultMSADPCMAlign
	}
	ec.DitherDepth = ditherDepth(cfg.Dither, cfg.DitherDepth, cfg.OutputType)
	return ec
}

// ditherDepth resolves the dither bit depth for an output type. Float and
// 32-bit outputs are never dithered.
func ditherDepth(enabled bool, depth int, typ OutputType) int {
	bits := typ.DitherBits()
	if !enabled || bits == 0 {
		return 0
	}
	if depth > 0 {
		return min(depth, bits)
	}
	return bits
}
