package encoder

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nareix/gastream/av"
	"github.com/nareix/gastream/utils/bits/pio"
	"github.com/nareix/gastream/vsource"
)

// L16 sends 16-bit linear PCM. Frames hold little-endian samples; the wire
// format is network byte order.
type L16 struct {
	sampleRate int
	channels   int
	codec      Codec
}

func NewL16(sampleRate, channels int) (Encoder, error) {
	if sampleRate <= 0 || channels <= 0 || channels > 8 {
		return nil, errors.Errorf("encoder: L16: bad format %d Hz %d ch", sampleRate, channels)
	}

	pt := uint8(DynamicAudioType)
	if sampleRate == 44100 {
		switch channels {
		case 1:
			pt = 11
		case 2:
			pt = 10
		}
	}

	return &L16{
		sampleRate: sampleRate,
		channels:   channels,
		codec: Codec{
			Name:         "L16",
			PayloadType:  pt,
			ClockRate:    uint32(sampleRate),
			Channels:     uint16(channels),
			TicksPerPTS:  1,
			BytesPerTick: channels * 2,
		},
	}, nil
}

func (e *L16) Codec() Codec {
	return e.codec
}

// Encode expects Frame.PTS to count samples per channel.
func (e *L16) Encode(f *vsource.Frame) (pkt av.Packet, err error) {
	src := f.Bytes()
	if f.Format != vsource.FormatS16 || len(src)%(e.channels*2) != 0 {
		err = errors.Wrapf(ErrInvalidFrame, "L16 wants %s in %d-byte samples, got %s %d", vsource.FormatS16, e.channels*2, f.Format, len(src))
		return
	}

	data := make([]byte, len(src))
	for i := 0; i+1 < len(src); i += 2 {
		pio.PutU16BE(data[i:], pio.U16LE(src[i:]))
	}

	pkt = av.Packet{
		Type:       av.Audio,
		IsKeyFrame: true,
		PTS:        uint32(f.PTS),
		Time:       time.Duration(f.PTS) * time.Second / time.Duration(e.sampleRate),
		Data:       data,
	}
	return
}

func (e *L16) Close() error {
	return nil
}
