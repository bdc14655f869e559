// Package panning maps source directions onto output channels: speaker
// layouts, first-order ambisonic (ACN/N3D) direction coefficients, pairwise
// equal-power speaker panning, ambisonic decoder matrices, and the mix bus
// type voices and effects accumulate into.
package panning

import (
	"fmt"
	"strings"

	"github.com/tphakala/go-audio-mixer/internal/convert"
)

// Channel names one output or input channel.
type Channel uint8

// Channel names. Aux0..Aux3 carry ambisonic components W, Y, Z and X.
const (
	FrontLeft Channel = iota
	FrontRight
	FrontCenter
	LFE
	BackLeft
	BackRight
	BackCenter
	SideLeft
	SideRight
	Aux0
	Aux1
	Aux2
	Aux3
)

var channelNames = [...]string{
	FrontLeft: "FrontLeft", FrontRight: "FrontRight", FrontCenter: "FrontCenter",
	LFE: "LFE", BackLeft: "BackLeft", BackRight: "BackRight", BackCenter: "BackCenter",
	SideLeft: "SideLeft", SideRight: "SideRight",
	Aux0: "Aux0", Aux1: "Aux1", Aux2: "Aux2", Aux3: "Aux3",
}

func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", c)
}

// Layout is a device output channel configuration.
type Layout uint8

// Output layouts.
const (
	Mono Layout = iota
	Stereo
	Quad
	X51
	X51Rear
	X61
	X71
	Ambi1 // raw first-order ambisonics
)

var layoutNames = [...]string{
	Mono:    "mono",
	Stereo:  "stereo",
	Quad:    "quad",
	X51:     "surround51",
	X51Rear: "surround51rear",
	X61:     "surround61",
	X71:     "surround71",
	Ambi1:   "ambi1",
}

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Layout(%d)", l)
}

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return int(l) < len(layoutNames)
}

// ParseLayout parses a configuration name such as "surround51".
func ParseLayout(s string) (Layout, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range layoutNames {
		if n == name {
			return Layout(i), nil
		}
	}
	return Stereo, fmt.Errorf("unknown channel layout %q", s)
}

// Speaker is one output channel and its horizontal position in degrees,
// negative to the left.
type Speaker struct {
	Channel Channel
	Azimuth float32
}

var layoutSpeakers = [...][]Speaker{
	Mono:   {{FrontCenter, 0}},
	Stereo: {{FrontLeft, -30}, {FrontRight, 30}},
	Quad:   {{FrontLeft, -45}, {FrontRight, 45}, {BackLeft, -135}, {BackRight, 135}},
	X51: {{FrontLeft, -30}, {FrontRight, 30}, {FrontCenter, 0}, {LFE, 0},
		{SideLeft, -110}, {SideRight, 110}},
	X51Rear: {{FrontLeft, -30}, {FrontRight, 30}, {FrontCenter, 0}, {LFE, 0},
		{BackLeft, -110}, {BackRight, 110}},
	X61: {{FrontLeft, -30}, {FrontRight, 30}, {FrontCenter, 0}, {LFE, 0},
		{BackCenter, 180}, {SideLeft, -90}, {SideRight, 90}},
	X71: {{FrontLeft, -30}, {FrontRight, 30}, {FrontCenter, 0}, {LFE, 0},
		{BackLeft, -150}, {BackRight, 150}, {SideLeft, -90}, {SideRight, 90}},
	Ambi1: {{Aux0, 0}, {Aux1, 0}, {Aux2, 0}, {Aux3, 0}},
}

// Speakers returns the output channels of l in interleaving order.
func (l Layout) Speakers() []Speaker {
	return layoutSpeakers[l]
}

// Count returns the number of output channels.
func (l Layout) Count() int {
	return len(layoutSpeakers[l])
}

// Index returns the output index of ch, or -1.
func (l Layout) Index(ch Channel) int {
	for i, s := range layoutSpeakers[l] {
		if s.Channel == ch {
			return i
		}
	}
	return -1
}

// IsAmbisonic reports whether l carries ambisonic components.
func (l Layout) IsAmbisonic() bool {
	return l == Ambi1
}

// InputChannel is one channel of a source buffer and the direction it is
// played from.
type InputChannel struct {
	Channel   Channel
	Azimuth   float32 // degrees, negative to the left
	Elevation float32 // degrees
}

var inputMaps = [...][]InputChannel{
	convert.Mono:   {{FrontCenter, 0, 0}},
	convert.Stereo: {{FrontLeft, -30, 0}, {FrontRight, 30, 0}},
	convert.Rear:   {{BackLeft, -150, 0}, {BackRight, 150, 0}},
	convert.Quad:   {{FrontLeft, -45, 0}, {FrontRight, 45, 0}, {BackLeft, -135, 0}, {BackRight, 135, 0}},
	convert.X51: {{FrontLeft, -30, 0}, {FrontRight, 30, 0}, {FrontCenter, 0, 0}, {LFE, 0, 0},
		{SideLeft, -110, 0}, {SideRight, 110, 0}},
	convert.X61: {{FrontLeft, -30, 0}, {FrontRight, 30, 0}, {FrontCenter, 0, 0}, {LFE, 0, 0},
		{BackCenter, 180, 0}, {SideLeft, -90, 0}, {SideRight, 90, 0}},
	convert.X71: {{FrontLeft, -30, 0}, {FrontRight, 30, 0}, {FrontCenter, 0, 0}, {LFE, 0, 0},
		{BackLeft, -150, 0}, {BackRight, 150, 0}, {SideLeft, -90, 0}, {SideRight, 90, 0}},
	convert.BFormat2D: {{Aux0, 0, 0}, {Aux3, 0, 0}, {Aux1, 0, 0}},
	convert.BFormat3D: {{Aux0, 0, 0}, {Aux3, 0, 0}, {Aux1, 0, 0}, {Aux2, 0, 0}},
}

// InputMap returns the channel positions for a stored channel configuration.
// B-Format inputs are listed in FuMa order (W, X, Y, Z).
func InputMap(c convert.Channels) []InputChannel {
	return inputMaps[c]
}
