package rtsp

import (
	"strconv"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pion/rtcp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nareix/gastream/utils/bits/pio"
	"github.com/nareix/gastream/vsource"
)

func (e *testEnv) conn(t *testing.T) ConnInfo {
	var infos []ConnInfo
	require.Eventually(t, func() bool {
		infos = e.srv.Conns()
		return len(infos) == 1
	}, 5*time.Second, time.Millisecond)
	return infos[0]
}

func TestSetupEncoderFailure(t *testing.T) {
	env := newTestEnv(t, func(s *Server) {
		s.Video = append(s.Video, Channel{Pipe: "filter-1"})
	})
	c := env.dial(t)

	resp := c.do("SETUP", env.url("/desktop/streamid=1"), tcpTransport)
	assert.Equal(t, StatusInternalServerError, resp.status)
	assert.Empty(t, resp.header.Get("Session"))

	info := env.conn(t)
	assert.Equal(t, "IDLE", info.State)
	assert.Empty(t, info.Session)
	assert.Empty(t, info.Streams)

	resp = c.do("SETUP", env.url("/desktop/streamid=0"), tcpTransport)
	require.Equal(t, StatusOK, resp.status)
	session := resp.header.Get("Session")

	resp = c.do("SETUP", env.url("/desktop/streamid=1"), "Transport: RTP/AVP/TCP;unicast;interleaved=2-3", "Session: "+session)
	assert.Equal(t, StatusInternalServerError, resp.status)

	info = env.conn(t)
	assert.Equal(t, "READY", info.State)
	assert.Equal(t, session, info.Session)
	require.Len(t, info.Streams, 1)
	assert.Equal(t, 0, info.Streams[0].ID)
}

func TestSetupUnknownCodec(t *testing.T) {
	env := newTestEnv(t, func(s *Server) {
		s.VideoCodec = "nope"
	})
	c := env.dial(t)

	resp := c.do("SETUP", env.url("/desktop/streamid=0"), tcpTransport)
	assert.Equal(t, StatusInternalServerError, resp.status)

	info := env.conn(t)
	assert.Equal(t, "IDLE", info.State)
	assert.Empty(t, info.Streams)
}

func TestSetupUDPFailure(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	resp := c.do("SETUP", env.url("/desktop/streamid=0"), "Transport: RTP/AVP;unicast;client_port=0-1")
	assert.Equal(t, StatusUnsupportedTransport, resp.status)
	assert.Empty(t, resp.header.Get("Session"))

	info := env.conn(t)
	assert.Equal(t, "IDLE", info.State)
	assert.Empty(t, info.Session)
	assert.Empty(t, info.Streams)

	resp = c.do("SETUP", env.url("/desktop/streamid=0"), tcpTransport)
	require.Equal(t, StatusOK, resp.status)
	assert.Regexp(t, sessionRe, resp.header.Get("Session"))

	info = env.conn(t)
	assert.Equal(t, "READY", info.State)
	require.Len(t, info.Streams, 1)
	assert.Equal(t, "tcp", info.Streams[0].Transport)
}

func TestSetupSessionEntropyFailure(t *testing.T) {
	env := newTestEnv(t, func(s *Server) {
		s.sessionRand = iotest.ErrReader(errors.New("no entropy"))
	})
	c := env.dial(t)

	resp := c.do("SETUP", env.url("/desktop/streamid=0"), tcpTransport)
	assert.Equal(t, StatusInternalServerError, resp.status)
	assert.Empty(t, resp.header.Get("Session"))

	info := env.conn(t)
	assert.Equal(t, "IDLE", info.State)
	assert.Empty(t, info.Streams)
}

func TestNewSessionID(t *testing.T) {
	id, err := newSessionID(nil)
	require.NoError(t, err)
	assert.Regexp(t, sessionRe, id)

	_, err = newSessionID(iotest.ErrReader(errors.New("no entropy")))
	assert.Error(t, err)
}

func withAudio(s *Server) {
	s.Audio = &Channel{
		Pipe:   "audio-0",
		Config: vsource.Config{RTPID: 1, SampleRate: 44100, Channels: 2, Samples: 441},
	}
}

func TestAudioStreamIndex(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.dial(t)
		resp := c.do("SETUP", env.url("/desktop/streamid=1"), "Transport: RTP/AVP/TCP;unicast;interleaved=2-3")
		assert.Equal(t, StatusServiceUnavailable, resp.status)
		assert.Equal(t, "IDLE", env.conn(t).State)
	})

	t.Run("Enabled", func(t *testing.T) {
		env := newTestEnv(t, withAudio)
		c := env.dial(t)

		resp := c.do("DESCRIBE", env.url("/desktop"))
		require.Equal(t, StatusOK, resp.status)
		sdp := string(resp.body)
		assert.Contains(t, sdp, "m=audio 0 RTP/AVP 10")
		assert.Contains(t, sdp, "a=control:streamid=1")

		resp = c.do("SETUP", env.url("/desktop/streamid=1"), "Transport: RTP/AVP/TCP;unicast;interleaved=2-3")
		require.Equal(t, StatusOK, resp.status)
		assert.Equal(t, "RTP/AVP/TCP;unicast;interleaved=2-3", resp.header.Get("Transport"))

		resp = c.do("SETUP", env.url("/desktop/streamid=2"), tcpTransport, "Session: "+resp.header.Get("Session"))
		assert.Equal(t, StatusServiceUnavailable, resp.status)

		info := env.conn(t)
		require.Len(t, info.Streams, 1)
		assert.Equal(t, 1, info.Streams[0].ID)
	})
}

func rtcpRecord(t *testing.T, channel byte, pkt rtcp.Packet) []byte {
	b, err := pkt.Marshal()
	require.NoError(t, err)
	rec := make([]byte, 4+len(b))
	rec[0], rec[1] = '$', channel
	pio.PutU16BE(rec[2:], uint16(len(b)))
	copy(rec[4:], b)
	return rec
}

func TestInboundInterleaved(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	resp := c.do("SETUP", env.url("/desktop/streamid=0"), tcpTransport)
	require.Equal(t, StatusOK, resp.status)

	rr := &rtcp.ReceiverReport{
		SSRC:    1,
		Reports: []rtcp.ReceptionReport{{SSRC: 2, FractionLost: 3, LastSequenceNumber: 100}},
	}

	// between requests, plus one on the RTP channel which is not feedback
	_, err := c.nc.Write(rtcpRecord(t, 1, rr))
	require.NoError(t, err)
	_, err = c.nc.Write(rtcpRecord(t, 0, rr))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, c.do("OPTIONS", env.url("/desktop")).status)

	// between the request line and the headers
	c.cseq++
	req := []byte("OPTIONS " + env.url("/desktop") + " RTSP/1.0\r\n")
	req = append(req, rtcpRecord(t, 1, &rtcp.Goodbye{Sources: []uint32{2}})...)
	req = append(req, []byte("CSeq: "+strconv.Itoa(c.cseq)+"\r\n\r\n")...)
	_, err = c.nc.Write(req)
	require.NoError(t, err)
	resp = c.read()
	assert.Equal(t, StatusOK, resp.status)

	require.Eventually(t, func() bool {
		infos := env.srv.Conns()
		return len(infos) == 1 && infos[0].RTCPPackets == 2
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "READY", env.conn(t).State)
}
