package encoder

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/nareix/gastream/av"
)

// Sink takes a batch of length-prefixed RTP packets for one stream.
type Sink interface {
	WriteBatch(batch []byte) error
}

type SinkFunc func(batch []byte) error

func (f SinkFunc) WriteBatch(batch []byte) error {
	return f(batch)
}

type StreamStats struct {
	Frames  uint64
	Packets uint32
	Octets  uint32
}

// Stream is the packet writer of one negotiated RTP stream.
type Stream struct {
	ID   int
	Sink Sink

	mu     sync.Mutex
	pz     *Packetizer
	frames uint64
}

func NewStream(id int, codec Codec, sink Sink) *Stream {
	return &Stream{
		ID:   id,
		Sink: sink,
		pz:   NewPacketizer(codec),
	}
}

func (s *Stream) SSRC() uint32 {
	return s.pz.SSRC()
}

func (s *Stream) WritePacket(pkt av.Packet) (err error) {
	s.mu.Lock()
	batch, err := s.pz.Packetize(pkt.Data, pkt.PTS)
	if err == nil {
		s.frames++
	}
	s.mu.Unlock()
	if err != nil {
		return
	}
	if len(batch) == 0 {
		return
	}
	if err = s.Sink.WriteBatch(batch); err != nil {
		err = errors.Wrapf(err, "encoder: stream %d", s.ID)
	}
	return
}

func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamStats{
		Frames:  s.frames,
		Packets: s.pz.Packets,
		Octets:  s.pz.Octets,
	}
}
