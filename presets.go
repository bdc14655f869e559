package mixer

import (
	"slices"
	"strings"

	"github.com/tphakala/go-audio-mixer/internal/effects"
)

// ReverbProperties is a complete set of reverb parameters, as used by the
// environment presets.
type ReverbProperties = effects.ReverbProps

// reverbPreset builds a preset from the values that differ between the
// environments; the rest take the generic defaults.
func reverbPreset(density, diffusion, gainHF, decay, decayHFRatio, reflGain, reflDelay, lateGain, lateDelay float32, hfLimit bool) ReverbProperties {
	p := effects.DefaultReverb()
	p.Density = density
	p.Diffusion = diffusion
	p.Gain = 0.3162
	p.GainHF = gainHF
	p.DecayTime = decay
	p.DecayHFRatio = decayHFRatio
	p.ReflectionsGain = reflGain
	p.ReflectionsDelay = reflDelay
	p.LateReverbGain = lateGain
	p.LateReverbDelay = lateDelay
	p.AirAbsorptionGainHF = 0.9943
	p.DecayHFLimit = hfLimit
	return p
}

func withEcho(p ReverbProperties, echoTime, echoDepth float32) ReverbProperties {
	p.EchoTime = echoTime
	p.EchoDepth = echoDepth
	return p
}

func withModulation(p ReverbProperties, modTime, modDepth float32) ReverbProperties {
	p.ModulationTime = modTime
	p.ModulationDepth = modDepth
	return p
}

// The 26 environment presets.
var reverbPresets = map[string]ReverbProperties{
	"generic":          reverbPreset(1, 1, 0.8913, 1.49, 0.83, 0.05, 0.007, 1.2589, 0.011, true),
	"padded-cell":      reverbPreset(0.1715, 1, 0.001, 0.17, 0.1, 0.25, 0.001, 1.2691, 0.002, true),
	"room":             reverbPreset(0.4287, 1, 0.5929, 0.4, 0.83, 0.1503, 0.002, 1.0629, 0.003, true),
	"bathroom":         reverbPreset(0.1715, 1, 0.2512, 1.49, 0.54, 0.6531, 0.007, 3.2734, 0.011, true),
	"living-room":      reverbPreset(0.9766, 1, 0.001, 0.5, 0.1, 0.2051, 0.003, 0.2805, 0.004, true),
	"stone-room":       reverbPreset(1, 1, 0.7079, 2.31, 0.64, 0.4411, 0.012, 1.1003, 0.017, true),
	"auditorium":       reverbPreset(1, 1, 0.5781, 4.32, 0.59, 0.4032, 0.02, 0.717, 0.03, true),
	"concert-hall":     reverbPreset(1, 1, 0.5623, 3.92, 0.7, 0.2427, 0.02, 0.9977, 0.029, true),
	"cave":             reverbPreset(1, 1, 1, 2.91, 1.3, 0.5, 0.015, 0.7063, 0.022, false),
	"arena":            reverbPreset(1, 1, 0.4477, 7.24, 0.33, 0.2612, 0.02, 1.0186, 0.03, true),
	"hangar":           reverbPreset(1, 1, 0.3162, 10.05, 0.23, 0.5, 0.02, 1.256, 0.03, true),
	"carpeted-hallway": reverbPreset(0.4287, 1, 0.01, 0.3, 0.1, 0.1215, 0.002, 0.1531, 0.03, true),
	"hallway":          reverbPreset(0.3645, 1, 0.7079, 1.49, 0.59, 0.2458, 0.007, 1.6615, 0.011, true),
	"stone-corridor":   reverbPreset(1, 1, 0.7612, 2.7, 0.79, 0.2472, 0.013, 1.5758, 0.02, true),
	"alley":            withEcho(reverbPreset(1, 0.3, 0.7328, 1.49, 0.86, 0.25, 0.007, 0.9954, 0.011, true), 0.125, 0.95),
	"forest":           withEcho(reverbPreset(1, 0.3, 0.0224, 1.49, 0.54, 0.0525, 0.162, 0.7682, 0.088, true), 0.125, 1),
	"city":             reverbPreset(1, 0.5, 0.3981, 1.49, 0.67, 0.073, 0.007, 0.1427, 0.011, true),
	"mountains":        withEcho(reverbPreset(1, 0.27, 0.0562, 1.49, 0.21, 0.0407, 0.3, 0.1919, 0.1, false), 0.25, 1),
	"quarry":           withEcho(reverbPreset(1, 1, 0.3162, 1.49, 0.83, 0, 0.061, 1.7783, 0.025, true), 0.125, 0.7),
	"plain":            withEcho(reverbPreset(1, 0.21, 0.1, 1.49, 0.5, 0.0585, 0.179, 0.1089, 0.1, true), 0.25, 1),
	"parking-lot":      reverbPreset(1, 1, 1, 1.65, 1.5, 0.2082, 0.008, 0.2652, 0.012, false),
	"sewer-pipe":       reverbPreset(0.3071, 0.8, 0.3162, 2.81, 0.14, 1.6387, 0.014, 3.2471, 0.021, true),
	"underwater":       withModulation(reverbPreset(0.3645, 1, 0.01, 1.49, 0.1, 0.5963, 0.007, 7.0795, 0.011, true), 1.18, 0.348),
	"drugged":          withModulation(reverbPreset(0.4287, 0.5, 1, 8.39, 1.39, 0.876, 0.002, 3.1081, 0.03, false), 0.25, 1),
	"dizzy":            withModulation(withEcho(reverbPreset(0.3645, 0.6, 0.631, 17.23, 0.56, 0.1392, 0.02, 0.4937, 0.03, false), 0.25, 1), 0.81, 0.31),
	"psychotic":        withModulation(reverbPreset(0.0625, 0.5, 0.8404, 7.56, 0.91, 0.4864, 0.02, 2.4378, 0.03, false), 4, 1),
}

// ReverbPreset returns the environment preset with the given name, such as
// "concert-hall". Names are case-insensitive and may use spaces or
// underscores instead of dashes.
func ReverbPreset(name string) (ReverbProperties, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "-", "_", "-").Replace(key)
	p, ok := reverbPresets[key]
	return p, ok
}

// ReverbPresetNames lists the preset names in sorted order.
func ReverbPresetNames() []string {
	names := make([]string, 0, len(reverbPresets))
	for n := range reverbPresets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
