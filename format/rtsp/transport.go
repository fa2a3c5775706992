package rtsp

import (
	"fmt"
	"strconv"
	"strings"
)

type LowerTransport int

const (
	LowerNone LowerTransport = iota
	LowerUDP
	LowerTCP
)

var LowerTransportString = map[LowerTransport]string{
	LowerNone: "none",
	LowerUDP:  "udp",
	LowerTCP:  "tcp",
}

func (t LowerTransport) String() string {
	return LowerTransportString[t]
}

// TransportSpec is one comma-separated alternative of a Transport header.
type TransportSpec struct {
	Lower       LowerTransport
	Multicast   bool
	ClientPort  [2]int
	Interleaved [2]int
	HasPorts    bool
	HasChannels bool
}

// parseTransport returns every RTP/AVP alternative the client offered, in
// order. Unknown profiles are skipped.
func parseTransport(v string) (specs []TransportSpec) {
	for _, alt := range strings.Split(v, ",") {
		parts := strings.Split(strings.TrimSpace(alt), ";")
		profile := strings.ToUpper(strings.TrimSpace(parts[0]))

		var spec TransportSpec
		switch profile {
		case "RTP/AVP", "RTP/AVP/UDP":
			spec.Lower = LowerUDP
		case "RTP/AVP/TCP":
			spec.Lower = LowerTCP
		default:
			continue
		}

		for _, p := range parts[1:] {
			k, val, _ := strings.Cut(strings.TrimSpace(p), "=")
			switch strings.ToLower(k) {
			case "multicast":
				spec.Multicast = true
			case "unicast":
				spec.Multicast = false
			case "client_port":
				spec.ClientPort, spec.HasPorts = parseRange(val)
			case "interleaved":
				spec.Interleaved, spec.HasChannels = parseRange(val)
			}
		}
		specs = append(specs, spec)
	}
	return
}

// parseRange reads "a-b" or a lone "a", which implies b = a+1.
func parseRange(v string) (r [2]int, ok bool) {
	lo, hi, dash := strings.Cut(v, "-")
	var err error
	if r[0], err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return
	}
	r[1] = r[0] + 1
	if dash {
		if r[1], err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return
		}
	}
	ok = true
	return
}

// chooseTransport prefers a unicast UDP offer with client ports, then TCP.
func chooseTransport(specs []TransportSpec) (TransportSpec, bool) {
	for _, s := range specs {
		if s.Lower == LowerUDP && !s.Multicast && s.HasPorts {
			return s, true
		}
	}
	for _, s := range specs {
		if s.Lower == LowerTCP {
			return s, true
		}
	}
	return TransportSpec{}, false
}

func udpTransportHeader(client, server [2]int) string {
	return fmt.Sprintf("RTP/AVP/UDP;unicast;client_port=%d-%d;server_port=%d-%d",
		client[0], client[1], server[0], server[1])
}

func tcpTransportHeader(streamID int) string {
	return fmt.Sprintf("RTP/AVP/TCP;unicast;interleaved=%d-%d", streamID*2, streamID*2+1)
}
