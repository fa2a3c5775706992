package encoder

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/av"
	"github.com/nareix/gastream/vsource"
)

const (
	VideoClockRate   = 90000
	DynamicVideoType = 96
	DynamicAudioType = 97
)

// RawVideo carries uncompressed YUV420p pictures as the RTP payload. It
// does no compression; bitrate is accepted for interface parity.
type RawVideo struct {
	width, height int
	fps           int
	codec         Codec
}

func NewRawVideo(cfg vsource.Config, fps, bitrate int) (Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("encoder: raw: bad size %dx%d", cfg.Width, cfg.Height)
	}
	if fps <= 0 || fps > VideoClockRate {
		return nil, errors.Errorf("encoder: raw: bad fps %d", fps)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewRawVideo",
		"channel":  cfg.ID,
		"width":    cfg.Width,
		"height":   cfg.Height,
		"fps":      fps,
		"bitrate":  bitrate,
	}).Debug("Raw video encoder created")

	return &RawVideo{
		width:  cfg.Width,
		height: cfg.Height,
		fps:    fps,
		codec: Codec{
			Name:        "raw",
			PayloadType: DynamicVideoType,
			ClockRate:   VideoClockRate,
			Fmtp:        fmt.Sprintf("sampling=YCbCr-4:2:0; width=%d; height=%d; depth=8", cfg.Width, cfg.Height),
			TicksPerPTS: uint32(VideoClockRate / fps),
			MarkLast:    true,
		},
	}, nil
}

func (e *RawVideo) Codec() Codec {
	return e.codec
}

func (e *RawVideo) Encode(f *vsource.Frame) (pkt av.Packet, err error) {
	size := vsource.YUV420PSize(e.width, e.height)
	if f.Format != vsource.FormatYUV420P || len(f.Buf) < size {
		err = errors.Wrapf(ErrInvalidFrame, "raw wants %s %d bytes, got %s %d", vsource.FormatYUV420P, size, f.Format, len(f.Buf))
		return
	}

	data := make([]byte, size)
	copy(data, f.Buf[:size])

	pkt = av.Packet{
		Type:       av.Video,
		IsKeyFrame: true,
		PTS:        uint32(f.PTS) * e.codec.TicksPerPTS,
		Time:       time.Duration(f.PTS) * time.Second / time.Duration(e.fps),
		Data:       data,
	}
	return
}

func (e *RawVideo) Close() error {
	return nil
}
