package rtsp

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestLine(t *testing.T) {
	req, err := parseRequestLine("SETUP rtsp://10.0.0.1:8554/desktop/streamid=1 RTSP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "SETUP", req.Method)
	assert.Equal(t, "/desktop/streamid=1", req.Path)

	req, err = parseRequestLine("OPTIONS * RTSP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "*", req.Path)

	req, err = parseRequestLine("DESCRIBE rtsp://host:8554 RTSP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)

	req, err = parseRequestLine("OPTIONS * HTTP/1.1\r\n")
	assert.Equal(t, ErrVersion, errors.Cause(err))
	require.NotNil(t, req)

	_, err = parseRequestLine("garbage\r\n")
	assert.Equal(t, ErrBadRequest, errors.Cause(err))
}

func TestHeaderFixups(t *testing.T) {
	req, err := parseRequestLine("PLAY rtsp://h/desktop RTSP/1.0\r\n")
	require.NoError(t, err)

	req.addHeaderLine("cseq:  42abc\r\n")
	req.addHeaderLine("Session: 1a2b3c4d;timeout=60\r\n")
	req.addHeaderLine("User-Agent: test\r\n")
	req.addHeaderLine("no colon here\r\n")

	assert.Equal(t, 42, req.CSeq)
	assert.Equal(t, "1a2b3c4d", req.Session)
	assert.Equal(t, "test", req.Header.Get("User-Agent"))
	assert.True(t, req.HasSession())

	assert.Equal(t, "abc", parseSession("abc\r"))
	assert.Equal(t, 0, parseCSeq("x1"))
}

func TestParseTransport(t *testing.T) {
	specs := parseTransport("RTP/AVP/TCP;unicast;interleaved=4-5, RTP/AVP;unicast;client_port=5000-5001, RTP/SAVP;unicast")
	require.Len(t, specs, 2)
	assert.Equal(t, LowerTCP, specs[0].Lower)
	assert.Equal(t, [2]int{4, 5}, specs[0].Interleaved)
	assert.Equal(t, LowerUDP, specs[1].Lower)
	assert.Equal(t, [2]int{5000, 5001}, specs[1].ClientPort)

	spec, ok := chooseTransport(specs)
	require.True(t, ok)
	assert.Equal(t, LowerUDP, spec.Lower)

	spec, ok = chooseTransport(parseTransport("RTP/AVP;multicast;client_port=5000, RTP/AVP/TCP;interleaved=0"))
	require.True(t, ok)
	assert.Equal(t, LowerTCP, spec.Lower)
	assert.Equal(t, [2]int{0, 1}, spec.Interleaved)

	_, ok = chooseTransport(parseTransport("RTP/AVP;unicast"))
	assert.False(t, ok)
	_, ok = chooseTransport(parseTransport(""))
	assert.False(t, ok)
}

func TestTransportHeaders(t *testing.T) {
	assert.Equal(t, "RTP/AVP/UDP;unicast;client_port=5000-5001;server_port=6000-6001",
		udpTransportHeader([2]int{5000, 5001}, [2]int{6000, 6001}))
	assert.Equal(t, "RTP/AVP/TCP;unicast;interleaved=2-3", tcpTransportHeader(1))
}
