// Package av is the encoded packet model shared by encoders and the RTSP
// output streams.
package av

import (
	"fmt"
	"time"
)

const (
	Video = 1 + iota
	Audio
)

var PacketTypeString = map[int]string{
	Video: "Video",
	Audio: "Audio",
}

// Packet is one encoded access unit. PTS is in the codec's RTP clock; Time is
// the same instant as a duration since stream start.
type Packet struct {
	Type       int
	StreamID   int
	IsKeyFrame bool
	PTS        uint32
	Time       time.Duration
	Data       []byte
}

func (p Packet) String() string {
	ret := ""

	typeStr := PacketTypeString[p.Type]
	if typeStr == "" {
		typeStr = "UnknownPacketType"
	}
	ret += typeStr
	ret += fmt.Sprintf("#%d", p.StreamID)

	if p.IsKeyFrame {
		ret += " K"
	}

	ret += " " + fmt.Sprint(p.Time)
	ret += " " + fmt.Sprint(p.PTS)
	ret += " " + fmt.Sprint(len(p.Data))

	return ret
}

type PacketWriter interface {
	WritePacket(Packet) error
}
