package rtsp

import (
	"net"

	"github.com/pkg/errors"

	"github.com/nareix/gastream/utils/bits/pio"
)

const udpBindAttempts = 16

// udpOutput is the RTP/RTCP socket pair of one UDP stream. Local ports are
// consecutive with the RTP port even.
type udpOutput struct {
	rtp, rtcp   *net.UDPConn
	rtpAddr     *net.UDPAddr
	rtcpAddr    *net.UDPAddr
	serverPorts [2]int
}

func listenPair(local net.IP) (rtpConn, rtcpConn *net.UDPConn, err error) {
	for i := 0; i < udpBindAttempts; i++ {
		if rtpConn, err = net.ListenUDP("udp", &net.UDPAddr{IP: local}); err != nil {
			return
		}
		port := rtpConn.LocalAddr().(*net.UDPAddr).Port
		if port%2 == 0 {
			if rtcpConn, err = net.ListenUDP("udp", &net.UDPAddr{IP: local, Port: port + 1}); err == nil {
				return
			}
		}
		rtpConn.Close()
	}
	err = errors.Errorf("rtsp: no free udp port pair on %s", local)
	return
}

func openUDPOutput(local, remote net.IP, clientPorts [2]int) (o *udpOutput, err error) {
	if clientPorts[0] <= 0 || clientPorts[0] > 65535 || clientPorts[1] <= 0 || clientPorts[1] > 65535 {
		err = errors.Errorf("rtsp: bad client ports %d-%d", clientPorts[0], clientPorts[1])
		return
	}
	o = &udpOutput{
		rtpAddr:  &net.UDPAddr{IP: remote, Port: clientPorts[0]},
		rtcpAddr: &net.UDPAddr{IP: remote, Port: clientPorts[1]},
	}
	if o.rtp, o.rtcp, err = listenPair(local); err != nil {
		return nil, err
	}
	o.serverPorts[0] = o.rtp.LocalAddr().(*net.UDPAddr).Port
	o.serverPorts[1] = o.rtcp.LocalAddr().(*net.UDPAddr).Port
	return
}

// WriteBatch sends each length-prefixed packet of batch as one datagram.
func (o *udpOutput) WriteBatch(batch []byte) (err error) {
	n := 0
	for n < len(batch) {
		var size uint32
		if size, err = pio.ReadU32BE(batch, &n); err != nil {
			return errors.Wrap(ErrShortBatch, err.Error())
		}
		var pkt []byte
		if pkt, err = pio.ReadBytes(batch, &n, int(size)); err != nil {
			return errors.Wrap(ErrShortBatch, err.Error())
		}
		if size == 0 {
			continue
		}
		if _, err = o.rtp.WriteToUDP(pkt, o.rtpAddr); err != nil {
			return errors.Wrap(err, "rtsp: udp write")
		}
	}
	return
}

// readRTCP passes every datagram arriving on the RTCP socket to fn until
// the socket is closed.
func (o *udpOutput) readRTCP(fn func(b []byte)) {
	buf := make([]byte, 1500)
	for {
		n, _, err := o.rtcp.ReadFromUDP(buf)
		if err != nil {
			return
		}
		fn(buf[:n])
	}
}

func (o *udpOutput) Close() error {
	o.rtp.Close()
	return o.rtcp.Close()
}
