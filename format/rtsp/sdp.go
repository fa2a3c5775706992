package rtsp

import (
	"fmt"
	"time"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"

	"github.com/nareix/gastream/encoder"
)

func (s *Server) newVideoEncoder(ch int) (encoder.Encoder, error) {
	return encoder.NewVideo(s.VideoCodec, s.Video[ch].Config, s.FPS, s.Bitrate)
}

func (s *Server) newAudioEncoder() (encoder.Encoder, error) {
	cfg := s.Audio.Config
	return encoder.NewAudio(s.AudioCodec, cfg.SampleRate, cfg.Channels)
}

func codecOf(newEnc func() (encoder.Encoder, error)) (c encoder.Codec, err error) {
	var enc encoder.Encoder
	if enc, err = newEnc(); err != nil {
		return
	}
	c = enc.Codec()
	enc.Close()
	return
}

func mediaDescription(kind string, id int, c encoder.Codec, bitrate int) *sdp.MediaDescription {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  kind,
			Port:   sdp.RangedPort{Value: 0},
			Protos: []string{"RTP", "AVP"},
		},
	}
	if bitrate > 0 {
		md.Bandwidth = []sdp.Bandwidth{{Type: "AS", Bandwidth: uint64(bitrate / 1000)}}
	}
	md.WithCodec(c.PayloadType, c.Name, c.ClockRate, c.Channels, c.Fmtp)
	md.WithValueAttribute("control", fmt.Sprintf("streamid=%d", id))
	return md
}

// SDP describes every configured stream. addr is the server address put
// into the origin line.
func (s *Server) SDP(addr string) (b []byte, err error) {
	if addr == "" {
		addr = "0.0.0.0"
	}
	id := uint64(time.Now().Unix())

	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      id,
			SessionVersion: id,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: addr,
		},
		SessionName: sdp.SessionName(s.Title),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{}}},
	}
	sd.WithValueAttribute("tool", s.Title)
	sd.WithValueAttribute("range", "npt=0-")
	sd.WithValueAttribute("control", "*")

	for ch := range s.Video {
		ch := ch
		var c encoder.Codec
		if c, err = codecOf(func() (encoder.Encoder, error) { return s.newVideoEncoder(ch) }); err != nil {
			return nil, errors.Wrapf(err, "rtsp: sdp video %d", ch)
		}
		sd.WithMedia(mediaDescription("video", ch, c, s.Bitrate))
	}
	if s.Audio != nil {
		var c encoder.Codec
		if c, err = codecOf(s.newAudioEncoder); err != nil {
			return nil, errors.Wrap(err, "rtsp: sdp audio")
		}
		sd.WithMedia(mediaDescription("audio", s.AudioStreamID(), c, 0))
	}

	if b, err = sd.Marshal(); err != nil {
		err = errors.Wrap(err, "rtsp: sdp")
	}
	return
}
