// Package encoder turns frames drained from a pipeline into RTP batches for
// an output stream. The built-in codecs are passthrough payload formats; a
// compressing encoder only has to satisfy Encoder.
package encoder

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nareix/gastream/av"
	"github.com/nareix/gastream/vsource"
)

var (
	ErrUnknownCodec = errors.New("encoder: unknown codec")
	ErrInvalidFrame = errors.New("encoder: invalid frame")
)

// Codec describes an encoder's RTP payload format.
type Codec struct {
	Name        string
	PayloadType uint8
	ClockRate   uint32
	Channels    uint16
	Fmtp        string
	// RTP clock ticks per unit of Frame.PTS.
	TicksPerPTS uint32
	// Bytes of payload per clock tick when a frame spans several packets.
	// Zero means every fragment carries the frame timestamp.
	BytesPerTick int
	// Set the RTP marker bit on the last fragment of a frame.
	MarkLast bool
}

type Encoder interface {
	Codec() Codec
	Encode(f *vsource.Frame) (av.Packet, error)
	Close() error
}

type VideoFactory func(cfg vsource.Config, fps, bitrate int) (Encoder, error)

type AudioFactory func(sampleRate, channels int) (Encoder, error)

var (
	videoCodecs = map[string]VideoFactory{
		"raw": NewRawVideo,
	}
	audioCodecs = map[string]AudioFactory{
		"L16": NewL16,
	}
)

func NewVideo(name string, cfg vsource.Config, fps, bitrate int) (Encoder, error) {
	f, ok := videoCodecs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "video %q", name)
	}
	return f(cfg, fps, bitrate)
}

func NewAudio(name string, sampleRate, channels int) (Encoder, error) {
	f, ok := audioCodecs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "audio %q", name)
	}
	return f(sampleRate, channels)
}

func VideoCodecs() []string {
	return names(videoCodecs)
}

func AudioCodecs() []string {
	return names(audioCodecs)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
