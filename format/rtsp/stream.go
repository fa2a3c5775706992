package rtsp

import (
	"github.com/nareix/gastream/encoder"
)

// Stream is the negotiated state of one stream index on a connection. It
// is built whole by SETUP and dropped whole on failure.
type Stream struct {
	ID    int
	Pipe  string
	Lower LowerTransport

	Encoder encoder.Encoder
	Out     *encoder.Stream

	udp        *udpOutput
	clientPort [2]int
	worker     *encoder.Worker
}

func (st *Stream) transportHeader() string {
	if st.Lower == LowerUDP {
		return udpTransportHeader(st.clientPort, st.udp.serverPorts)
	}
	return tcpTransportHeader(st.ID)
}

func (st *Stream) close() {
	if st.Encoder != nil {
		st.Encoder.Close()
	}
	if st.udp != nil {
		st.udp.Close()
	}
}

func (st *Stream) info() StreamInfo {
	si := StreamInfo{
		ID:        st.ID,
		Transport: st.Lower.String(),
	}
	if st.Out != nil {
		stats := st.Out.Stats()
		si.Frames = stats.Frames
		si.Packets = stats.Packets
		si.Octets = stats.Octets
	}
	return si
}
