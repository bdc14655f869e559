package panning

// Bus is a set of mixing lines sharing one channel interpretation. A bus is
// either ambisonic (one line per ACN component) or carries speaker feeds,
// in which case Rows decodes ambisonic coefficients onto its channels.
type Bus struct {
	Buffer    [][]float32
	Layout    Layout
	Rows      []Coeffs
	Ambisonic bool
}

func newLines(channels, lineSize int) [][]float32 {
	backing := make([]float32, channels*lineSize)
	lines := make([][]float32, channels)
	for i := range lines {
		lines[i] = backing[i*lineSize : (i+1)*lineSize : (i+1)*lineSize]
	}
	return lines
}

// NewAmbiBus returns a first-order ambisonic bus.
func NewAmbiBus(lineSize int) *Bus {
	return &Bus{
		Buffer:    newLines(AmbiChannels, lineSize),
		Layout:    Ambi1,
		Rows:      DecoderRows(Ambi1),
		Ambisonic: true,
	}
}

// NewSpeakerBus returns a bus feeding the channels of l.
func NewSpeakerBus(l Layout, lineSize int) *Bus {
	return &Bus{
		Buffer:    newLines(l.Count(), lineSize),
		Layout:    l,
		Rows:      DecoderRows(l),
		Ambisonic: l.IsAmbisonic(),
	}
}

// Channels returns the number of lines.
func (b *Bus) Channels() int {
	return len(b.Buffer)
}

// ChannelIndex returns the line carrying ch, or -1.
func (b *Bus) ChannelIndex(ch Channel) int {
	return b.Layout.Index(ch)
}

// PanGains writes into out the per-line gains for a signal with the given
// direction coefficients.
func (b *Bus) PanGains(c Coeffs, gain float32, out []float32) {
	for i, row := range b.Rows {
		out[i] = row.Dot(c) * gain
	}
}

// Clear zeroes the first n samples of every line.
func (b *Bus) Clear(n int) {
	for _, line := range b.Buffer {
		clear(line[:n])
	}
}

// Decode mixes the first n samples of an ambisonic source bus onto b's
// channels through b's decoder rows.
func (b *Bus) Decode(src *Bus, n int) {
	for i, row := range b.Rows {
		dst := b.Buffer[i][:n]
		for k, g := range row {
			if g == 0 || k >= len(src.Buffer) {
				continue
			}
			line := src.Buffer[k][:n]
			for j := range dst {
				dst[j] += line[j] * g
			}
		}
	}
}
