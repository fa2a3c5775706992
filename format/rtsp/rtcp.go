package rtsp

import (
	"fmt"

	"github.com/pion/rtcp"
	"github.com/sirupsen/logrus"
)

// handleRTCP logs receiver feedback. Nothing in the sender adapts to it.
func (c *Conn) handleRTCP(streamID int, b []byte) {
	pkts, err := rtcp.Unmarshal(b)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"function": "handleRTCP",
			"stream":   streamID,
			"error":    err,
		}).Debug("Unparsable RTCP")
		return
	}

	for _, pkt := range pkts {
		switch p := pkt.(type) {
		case *rtcp.ReceiverReport:
			for _, r := range p.Reports {
				c.log.WithFields(logrus.Fields{
					"function":    "handleRTCP",
					"stream":      streamID,
					"ssrc":        r.SSRC,
					"fraction":    r.FractionLost,
					"lost":        r.TotalLost,
					"jitter":      r.Jitter,
					"last_seq":    r.LastSequenceNumber,
					"sender_ssrc": p.SSRC,
				}).Debug("Receiver report")
			}
		case *rtcp.Goodbye:
			c.log.WithFields(logrus.Fields{
				"function": "handleRTCP",
				"stream":   streamID,
				"sources":  p.Sources,
			}).Debug("Receiver said goodbye")
		default:
			c.log.WithFields(logrus.Fields{
				"function": "handleRTCP",
				"stream":   streamID,
				"type":     fmt.Sprintf("%T", pkt),
			}).Debug("RTCP feedback ignored")
		}
	}
	c.rtcpPackets.Add(uint64(len(pkts)))
}
