package convert

// G.711 expansion tables, filled at init from the standard decode rules.
var (
	mulawTable [256]int16
	alawTable  [256]int16
)

func init() {
	for i := range 256 {
		mulawTable[i] = decodeMulaw(byte(i))
		alawTable[i] = decodeAlaw(byte(i))
	}
}

const (
	mulawBias = 0x84
	mulawClip = 32635
	alawXor   = 0x55
)

func decodeMulaw(u byte) int16 {
	u = ^u
	exponent := (u >> 4) & 0x07
	mantissa := int32(u & 0x0f)
	sample := ((mantissa<<3)+mulawBias)<<exponent - mulawBias
	if u&0x80 != 0 {
		sample = -sample
	}
	return int16(sample)
}

func decodeAlaw(a byte) int16 {
	a ^= alawXor
	exponent := (a >> 4) & 0x07
	mantissa := int32(a & 0x0f)
	var sample int32
	if exponent == 0 {
		sample = mantissa<<4 + 8
	} else {
		sample = (mantissa<<4 + 0x108) << (exponent - 1)
	}
	if a&0x80 != 0 {
		return int16(sample)
	}
	return int16(-sample)
}

// MulawToLinear expands one mu-law byte to 16-bit PCM.
func MulawToLinear(u byte) int16 {
	return mulawTable[u]
}

// AlawToLinear expands one A-law byte to 16-bit PCM.
func AlawToLinear(a byte) int16 {
	return alawTable[a]
}

// LinearToMulaw compresses a 16-bit sample to mu-law.
func LinearToMulaw(s int16) byte {
	v := int32(s)
	sign := byte(0)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	v = min(v, mulawClip) + mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0f
	return ^(sign | exponent<<4 | mantissa)
}

// LinearToAlaw compresses a 16-bit sample to A-law.
func LinearToAlaw(s int16) byte {
	v := int32(s)
	sign := byte(0x80)
	if v < 0 {
		v = -v - 1
		sign = 0
	}
	v = min(v, 0x7fff)

	var out byte
	if v >= 256 {
		exponent := byte(7)
		for mask := int32(0x4000); v&mask == 0 && exponent > 1; mask >>= 1 {
			exponent--
		}
		mantissa := byte(v>>(exponent+3)) & 0x0f
		out = exponent<<4 | mantissa
	} else {
		out = byte(v >> 4)
	}
	return (out | sign) ^ alawXor
}
