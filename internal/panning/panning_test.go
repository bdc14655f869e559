package panning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

const deg = math.Pi / 180

func TestParseLayout(t *testing.T) {
	for _, l := range []Layout{Mono, Stereo, Quad, X51, X51Rear, X61, X71, Ambi1} {
		got, err := ParseLayout(" " + l.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLayout("hexagon")
	assert.Error(t, err)
}

func TestLayoutIndex(t *testing.T) {
	assert.Equal(t, 3, X51.Index(LFE))
	assert.Equal(t, -1, Stereo.Index(FrontCenter))
	assert.Equal(t, 8, X71.Count())
	assert.True(t, Ambi1.IsAmbisonic())
}

func TestInputMapCounts(t *testing.T) {
	for c := convert.Mono; c.Valid(); c++ {
		assert.Len(t, InputMap(c), c.Count(), c.String())
	}
}

func TestCalcDirectionCoeffs(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z float32
		want    Coeffs
	}{
		{"front", 0, 0, -1, Coeffs{1, 0, 0, sqrt3}},
		{"left", -1, 0, 0, Coeffs{1, sqrt3, 0, 0}},
		{"right", 1, 0, 0, Coeffs{1, -sqrt3, 0, 0}},
		{"up", 0, 1, 0, Coeffs{1, 0, sqrt3, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalcDirectionCoeffs(tt.x, tt.y, tt.z, 0)
			assert.InDeltaSlice(t, tt.want[:], got[:], 1e-6)
		})
	}
}

func TestCalcAngleCoeffsMatchesDirection(t *testing.T) {
	a := CalcAngleCoeffs(-90*deg, 0, 0)
	b := CalcDirectionCoeffs(-1, 0, 0, 0)
	assert.InDeltaSlice(t, b[:], a[:], 1e-6)
}

func TestSpreadFlattensDirectivity(t *testing.T) {
	narrow := CalcDirectionCoeffs(0, 0, -1, 0)
	full := CalcDirectionCoeffs(0, 0, -1, 2*math.Pi)
	// A full spread is omnidirectional with +3dB on W.
	assert.InDelta(t, math.Sqrt2, full[0], 1e-5)
	assert.InDelta(t, 0, full[3], 1e-5)
	assert.Greater(t, narrow[3], full[3])
}

func TestRotateFOA(t *testing.T) {
	front := CalcDirectionCoeffs(0, 0, -1, 0)

	id := mathutil.IdentityMatrix()
	got := RotateFOA(front, &id)
	assert.InDeltaSlice(t, front[:], got[:], 1e-6)

	turn := mathutil.IdentityMatrix()
	turn.SetRow(0, -1, 0, 0, 0)
	turn.SetRow(2, 0, 0, -1, 0)
	got = RotateFOA(front, &turn)
	back := CalcDirectionCoeffs(0, 0, 1, 0)
	assert.InDeltaSlice(t, back[:], got[:], 1e-6)
}

func TestComputeDirectGainsStereo(t *testing.T) {
	tests := []struct {
		name    string
		azimuth float32
		want    [2]float32
	}{
		{"center", 0, [2]float32{math.Sqrt2 / 2, math.Sqrt2 / 2}},
		{"left speaker", -30 * deg, [2]float32{1, 0}},
		{"hard right", 90 * deg, [2]float32{0, 1}},
		{"rear folds to front", 180 * deg, [2]float32{math.Sqrt2 / 2, math.Sqrt2 / 2}},
		{"rear left", -150 * deg, [2]float32{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, 2)
			ComputeDirectGains(Stereo, tt.azimuth, 0, 0, 1, out)
			assert.InDeltaSlice(t, tt.want[:], out, 1e-5)
		})
	}
}

func TestComputeDirectGainsPreservesPower(t *testing.T) {
	for _, l := range []Layout{Stereo, Quad, X51, X61, X71} {
		t.Run(l.String(), func(t *testing.T) {
			out := make([]float32, l.Count())
			for az := float32(-180); az < 180; az += 7 {
				for _, el := range []float32{0, 30, 90} {
					ComputeDirectGains(l, az*deg, el*deg, 0.5, 0.5, out)
					var p float32
					for _, g := range out {
						p += g * g
					}
					assert.InDelta(t, 0.25, p, 1e-4, "az %v el %v", az, el)
				}
			}
			if i := l.Index(LFE); i >= 0 {
				assert.Zero(t, out[i])
			}
		})
	}
}

func TestComputeDirectGainsOverhead(t *testing.T) {
	out := make([]float32, Quad.Count())
	ComputeDirectGains(Quad, 0, 90*deg, 0, 1, out)
	for _, g := range out {
		assert.InDelta(t, 0.5, g, 1e-5)
	}
}

func TestComputeDirectGainsMonoAndAmbi(t *testing.T) {
	out := make([]float32, 4)
	ComputeDirectGains(Mono, 1, 0, 0, 0.25, out)
	assert.Equal(t, float32(0.25), out[0])

	ComputeDirectGains(Ambi1, 0, 0, 0, 1, out)
	assert.InDeltaSlice(t, []float32{1, 0, 0, sqrt3}, out, 1e-5)
}

func TestDecoderRows(t *testing.T) {
	left := CalcDirectionCoeffs(-1, 0, 0, 0)
	rows := DecoderRows(Stereo)
	assert.InDelta(t, 1, rows[0].Dot(left), 1e-6)
	assert.InDelta(t, 0, rows[1].Dot(left), 1e-6)

	front := CalcDirectionCoeffs(0, 0, -1, 0)
	quad := DecoderRows(Quad)
	want := float32(0.25 * (1 + 2*math.Cos(45*deg)))
	assert.InDelta(t, want, quad[0].Dot(front), 1e-5)
	assert.InDelta(t, want, quad[1].Dot(front), 1e-5)
	assert.Less(t, quad[2].Dot(front), float32(0))

	x51 := DecoderRows(X51)
	assert.Equal(t, Coeffs{}, x51[X51.Index(LFE)])
}

func TestBusPanAndDecode(t *testing.T) {
	ambi := NewAmbiBus(16)
	spk := NewSpeakerBus(Stereo, 16)
	require.Equal(t, AmbiChannels, ambi.Channels())
	require.Equal(t, 2, spk.Channels())

	left := CalcDirectionCoeffs(-1, 0, 0, 0)
	gains := make([]float32, AmbiChannels)
	ambi.PanGains(left, 0.5, gains)
	assert.InDeltaSlice(t, []float32{0.5, 0.5 * sqrt3, 0, 0}, gains, 1e-6)

	for k := range ambi.Buffer {
		for i := range ambi.Buffer[k] {
			ambi.Buffer[k][i] = gains[k]
		}
	}
	spk.Decode(ambi, 16)
	assert.InDelta(t, 0.5, spk.Buffer[0][15], 1e-5)
	assert.InDelta(t, 0, spk.Buffer[1][15], 1e-5)

	spk.Clear(16)
	assert.Zero(t, spk.Buffer[0][0])
	assert.Equal(t, 1, spk.ChannelIndex(FrontRight))
}

func TestHFOrderScale(t *testing.T) {
	assert.Equal(t, float32(1), HFOrderScale(true, true))
	assert.Less(t, HFOrderScale(false, true), float32(1))
	assert.Greater(t, HFOrderScale(true, false), float32(1))
}
