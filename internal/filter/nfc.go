package filter

// Near-field compensation filters. Each order n models the proximity effect
// of a point source at distance r relative to the speaker distance used for
// playback: a bass boost controlled by w0 = c/(r*fs) and a bass cut
// controlled by w1 = c/(rSpeaker*fs). When the two match the filter is flat.

type nfcFilter1 struct {
	baseGain, gain float32
	b1, a1         float32
	z              [1]float32
}

type nfcFilter2 struct {
	baseGain, gain float32
	b1, b2, a1, a2 float32
	z              [2]float32
}

type nfcFilter3 struct {
	baseGain, gain float32
	b1, b2, b3     float32
	a1, a2, a3     float32
	z              [3]float32
}

type nfcFilter4 struct {
	baseGain, gain float32
	b1, b2, b3, b4 float32
	a1, a2, a3, a4 float32
	z              [4]float32
}

func newNfc1(w0, w1 float32) nfcFilter1 {
	nfc := nfcFilter1{baseGain: 1, gain: 1}

	r := 0.5 * w0
	b00 := nfcBessel[1][0] * r
	g0 := 1 + b00
	nfc.gain *= g0
	nfc.b1 = 2 * b00 / g0

	r = 0.5 * w1
	b00 = nfcBessel[1][0] * r
	g0 = 1 + b00
	nfc.baseGain /= g0
	nfc.gain /= g0
	nfc.a1 = 2 * b00 / g0
	return nfc
}

func (nfc *nfcFilter1) adjust(w0 float32) {
	r := 0.5 * w0
	b00 := nfcBessel[1][0] * r
	g0 := 1 + b00
	nfc.gain = nfc.baseGain * g0
	nfc.b1 = 2 * b00 / g0
}

func newNfc2(w0, w1 float32) nfcFilter2 {
	nfc := nfcFilter2{baseGain: 1, gain: 1}

	r := 0.5 * w0
	b10 := nfcBessel[2][0] * r
	b11 := nfcBessel[2][1] * r * r
	g1 := 1 + b10 + b11
	nfc.gain *= g1
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1

	r = 0.5 * w1
	b10 = nfcBessel[2][0] * r
	b11 = nfcBessel[2][1] * r * r
	g1 = 1 + b10 + b11
	nfc.baseGain /= g1
	nfc.gain /= g1
	nfc.a1 = (2*b10 + 4*b11) / g1
	nfc.a2 = 4 * b11 / g1
	return nfc
}

func (nfc *nfcFilter2) adjust(w0 float32) {
	r := 0.5 * w0
	b10 := nfcBessel[2][0] * r
	b11 := nfcBessel[2][1] * r * r
	g1 := 1 + b10 + b11
	nfc.gain = nfc.baseGain * g1
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1
}

func newNfc3(w0, w1 float32) nfcFilter3 {
	nfc := nfcFilter3{baseGain: 1, gain: 1}

	r := 0.5 * w0
	b10 := nfcBessel[3][0] * r
	b11 := nfcBessel[3][1] * r * r
	b00 := nfcBessel[3][2] * r
	g1 := 1 + b10 + b11
	g0 := 1 + b00
	nfc.gain *= g1 * g0
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1
	nfc.b3 = 2 * b00 / g0

	r = 0.5 * w1
	b10 = nfcBessel[3][0] * r
	b11 = nfcBessel[3][1] * r * r
	b00 = nfcBessel[3][2] * r
	g1 = 1 + b10 + b11
	g0 = 1 + b00
	nfc.baseGain /= g1 * g0
	nfc.gain /= g1 * g0
	nfc.a1 = (2*b10 + 4*b11) / g1
	nfc.a2 = 4 * b11 / g1
	nfc.a3 = 2 * b00 / g0
	return nfc
}

func (nfc *nfcFilter3) adjust(w0 float32) {
	r := 0.5 * w0
	b10 := nfcBessel[3][0] * r
	b11 := nfcBessel[3][1] * r * r
	b00 := nfcBessel[3][2] * r
	g1 := 1 + b10 + b11
	g0 := 1 + b00
	nfc.gain = nfc.baseGain * g1 * g0
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1
	nfc.b3 = 2 * b00 / g0
}

func newNfc4(w0, w1 float32) nfcFilter4 {
	nfc := nfcFilter4{baseGain: 1, gain: 1}

	r := 0.5 * w0
	b10 := nfcBessel[4][0] * r
	b11 := nfcBessel[4][1] * r * r
	b00 := nfcBessel[4][2] * r
	b01 := nfcBessel[4][3] * r * r
	g1 := 1 + b10 + b11
	g0 := 1 + b00 + b01
	nfc.gain *= g1 * g0
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1
	nfc.b3 = (2*b00 + 4*b01) / g0
	nfc.b4 = 4 * b01 / g0

	r = 0.5 * w1
	b10 = nfcBessel[4][0] * r
	b11 = nfcBessel[4][1] * r * r
	b00 = nfcBessel[4][2] * r
	b01 = nfcBessel[4][3] * r * r
	g1 = 1 + b10 + b11
	g0 = 1 + b00 + b01
	nfc.baseGain /= g1 * g0
	nfc.gain /= g1 * g0
	nfc.a1 = (2*b10 + 4*b11) / g1
	nfc.a2 = 4 * b11 / g1
	nfc.a3 = (2*b00 + 4*b01) / g0
	nfc.a4 = 4 * b01 / g0
	return nfc
}

func (nfc *nfcFilter4) adjust(w0 float32) {
	r := 0.5 * w0
	b10 := nfcBessel[4][0] * r
	b11 := nfcBessel[4][1] * r * r
	b00 := nfcBessel[4][2] * r
	b01 := nfcBessel[4][3] * r * r
	g1 := 1 + b10 + b11
	g0 := 1 + b00 + b01
	nfc.gain = nfc.baseGain * g1 * g0
	nfc.b1 = (2*b10 + 4*b11) / g1
	nfc.b2 = 4 * b11 / g1
	nfc.b3 = (2*b00 + 4*b01) / g0
	nfc.b4 = 4 * b01 / g0
}

// NfcFilter holds one near-field filter per ambisonic order above zero.
type NfcFilter struct {
	first  nfcFilter1
	second nfcFilter2
	third  nfcFilter3
	fourth nfcFilter4
}

// Init sets the bass-cut control from w1 = c/(rSpeaker*fs) and resets the
// bass boost to w0 = 0 (a source at infinite distance).
func (f *NfcFilter) Init(w1 float32) {
	f.first = newNfc1(0, w1)
	f.second = newNfc2(0, w1)
	f.third = newNfc3(0, w1)
	f.fourth = newNfc4(0, w1)
}

// Adjust retunes the bass boost for a source at w0 = c/(r*fs), keeping state.
func (f *NfcFilter) Adjust(w0 float32) {
	f.first.adjust(w0)
	f.second.adjust(w0)
	f.third.adjust(w0)
	f.fourth.adjust(w0)
}

// Process1 applies the first-order filter.
func (f *NfcFilter) Process1(dst, src []float32) {
	nfc := &f.first
	gain, b1, a1 := nfc.gain, nfc.b1, nfc.a1
	z1 := nfc.z[0]
	dst = dst[:len(src)]
	for i, in := range src {
		y := in*gain - a1*z1
		out := y + b1*z1
		z1 += y
		dst[i] = out
	}
	nfc.z[0] = z1
}

// Process2 applies the second-order filter.
func (f *NfcFilter) Process2(dst, src []float32) {
	nfc := &f.second
	gain := nfc.gain
	b1, b2, a1, a2 := nfc.b1, nfc.b2, nfc.a1, nfc.a2
	z1, z2 := nfc.z[0], nfc.z[1]
	dst = dst[:len(src)]
	for i, in := range src {
		y := in*gain - a1*z1 - a2*z2
		out := y + b1*z1 + b2*z2
		z2 += z1
		z1 += y
		dst[i] = out
	}
	nfc.z[0], nfc.z[1] = z1, z2
}

// Process3 applies the third-order filter.
func (f *NfcFilter) Process3(dst, src []float32) {
	nfc := &f.third
	gain := nfc.gain
	b1, b2, b3 := nfc.b1, nfc.b2, nfc.b3
	a1, a2, a3 := nfc.a1, nfc.a2, nfc.a3
	z1, z2, z3 := nfc.z[0], nfc.z[1], nfc.z[2]
	dst = dst[:len(src)]
	for i, in := range src {
		y := in*gain - a1*z1 - a2*z2
		out := y + b1*z1 + b2*z2
		z2 += z1
		z1 += y

		y = out - a3*z3
		out = y + b3*z3
		z3 += y
		dst[i] = out
	}
	nfc.z[0], nfc.z[1], nfc.z[2] = z1, z2, z3
}

// Process4 applies the fourth-order filter.
func (f *NfcFilter) Process4(dst, src []float32) {
	nfc := &f.fourth
	gain := nfc.gain
	b1, b2, b3, b4 := nfc.b1, nfc.b2, nfc.b3, nfc.b4
	a1, a2, a3, a4 := nfc.a1, nfc.a2, nfc.a3, nfc.a4
	z1, z2, z3, z4 := nfc.z[0], nfc.z[1], nfc.z[2], nfc.z[3]
	dst = dst[:len(src)]
	for i, in := range src {
		y := in*gain - a1*z1 - a2*z2
		out := y + b1*z1 + b2*z2
		z2 += z1
		z1 += y

		y = out - a3*z3 - a4*z4
		out = y + b3*z3 + b4*z4
		z4 += z3
		z3 += y
		dst[i] = out
	}
	nfc.z[0], nfc.z[1], nfc.z[2], nfc.z[3] = z1, z2, z3, z4
}

// Process applies the filter for the given ambisonic order (1-4). Order 0
// copies src unchanged.
func (f *NfcFilter) Process(order int, dst, src []float32) {
	switch order {
	case 1:
		f.Process1(dst, src)
	case 2:
		f.Process2(dst, src)
	case 3:
		f.Process3(dst, src)
	case 4:
		f.Process4(dst, src)
	default:
		copy(dst, src)
	}
}
