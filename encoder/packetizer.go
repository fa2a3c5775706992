package encoder

import (
	"crypto/rand"

	"github.com/pion/rtp"
	"github.com/pkg/errors"

	"github.com/nareix/gastream/utils/bits/pio"
)

const (
	DefaultMTU    = 1400
	rtpHeaderSize = 12
)

// Packetizer splits encoded frames into RTP packets and lays them out as a
// batch: each packet prefixed by its big-endian 32-bit length.
type Packetizer struct {
	MTU int

	codec     Codec
	ssrc      uint32
	tsBase    uint32
	sequencer rtp.Sequencer

	Packets uint32
	Octets  uint32
}

func random32() uint32 {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return 0
	}
	return pio.U32BE(b)
}

func NewPacketizer(codec Codec) *Packetizer {
	return &Packetizer{
		MTU:       DefaultMTU,
		codec:     codec,
		ssrc:      random32(),
		tsBase:    random32(),
		sequencer: rtp.NewRandomSequencer(),
	}
}

func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}

// Timestamp maps a packet PTS onto this stream's RTP clock.
func (p *Packetizer) Timestamp(pts uint32) uint32 {
	return p.tsBase + pts
}

func (p *Packetizer) fragmentSize() int {
	n := p.MTU - rtpHeaderSize
	if bpt := p.codec.BytesPerTick; bpt > 0 && n >= bpt {
		n -= n % bpt
	}
	return n
}

// Packetize returns the batch for one frame.
func (p *Packetizer) Packetize(payload []byte, pts uint32) (batch []byte, err error) {
	if len(payload) == 0 {
		return
	}
	frag := p.fragmentSize()
	if frag <= 0 {
		err = errors.Errorf("encoder: mtu %d too small", p.MTU)
		return
	}

	count := (len(payload) + frag - 1) / frag
	batch = make([]byte, len(payload)+count*(4+rtpHeaderSize))

	n := 0
	for off := 0; off < len(payload); off += frag {
		end := off + frag
		if end > len(payload) {
			end = len(payload)
		}
		ts := p.Timestamp(pts)
		if p.codec.BytesPerTick > 0 {
			ts += uint32(off / p.codec.BytesPerTick)
		}

		pkt := rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         p.codec.MarkLast && end == len(payload),
				PayloadType:    p.codec.PayloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
				SSRC:           p.ssrc,
			},
			Payload: payload[off:end],
		}

		size := pkt.MarshalSize()
		pio.WriteU32BE(batch, &n, uint32(size))
		var m int
		if m, err = pkt.MarshalTo(batch[n:]); err != nil {
			err = errors.Wrap(err, "encoder: marshal rtp")
			return
		}
		n += m

		p.Packets++
		p.Octets += uint32(end - off)
	}
	batch = batch[:n]
	return
}
