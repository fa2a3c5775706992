package rtsp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/encoder"
)

const streamIDPrefix = "/streamid="

func (c *Conn) handle(req *Request) *Response {
	switch req.Method {
	case "OPTIONS":
		return c.handleOptions(req)
	case "DESCRIBE":
		return c.handleDescribe(req)
	case "SETUP":
		return c.handleSetup(req)
	case "PLAY":
		return c.handlePlay(req)
	case "PAUSE":
		return c.handlePause(req)
	case "TEARDOWN":
		return c.handleTeardown(req)
	}
	return NewResponse(StatusMethodNotAllowed, req.CSeq)
}

func (c *Conn) handleOptions(req *Request) *Response {
	return NewResponse(StatusOK, req.CSeq).
		Set("Public", strings.Join(PublicMethods, ", "))
}

func (c *Conn) handleDescribe(req *Request) *Response {
	if req.Path != c.server.Object {
		return NewResponse(StatusServiceUnavailable, req.CSeq)
	}

	host := ""
	if a, ok := c.nc.LocalAddr().(*net.TCPAddr); ok {
		host = a.IP.String()
	}
	body, err := c.server.SDP(host)
	if err != nil {
		c.log.WithError(err).Error("Cannot describe streams")
		return NewResponse(StatusInternalServerError, req.CSeq)
	}

	resp := NewResponse(StatusOK, req.CSeq).
		Set("Content-Base", req.URL+"/").
		Set("Content-Type", "application/sdp")
	resp.Body = body
	return resp
}

// withinObject reports whether path names the served object or something
// below it.
func (c *Conn) withinObject(path string) bool {
	return strings.HasPrefix(path, c.server.Object)
}

// streamIndex parses "<object>/streamid=N".
func (c *Conn) streamIndex(path string) (int, bool) {
	rest := strings.TrimPrefix(path, c.server.Object)
	if !strings.HasPrefix(rest, streamIDPrefix) {
		return 0, false
	}
	id, err := strconv.Atoi(rest[len(streamIDPrefix):])
	if err != nil || id < 0 || id > len(c.server.Video) {
		return 0, false
	}
	if id == c.server.AudioStreamID() && c.server.Audio == nil {
		return 0, false
	}
	return id, true
}

// newSessionID returns eight hex digits taken from a random uuid.
func newSessionID(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", errors.Wrap(err, "rtsp: session id")
	}
	return hex.EncodeToString(u[:4]), nil
}

func (c *Conn) handleSetup(req *Request) *Response {
	if !c.withinObject(req.Path) {
		return NewResponse(StatusAggregateNotAllowed, req.CSeq)
	}
	id, ok := c.streamIndex(req.Path)
	if !ok {
		return NewResponse(StatusServiceUnavailable, req.CSeq)
	}

	c.mu.Lock()
	state, session := c.state, c.session
	duplicate := c.streams[id] != nil
	c.mu.Unlock()

	if state != StateIdle && state != StateReady {
		return NewResponse(StatusMethodNotValidInThisState, req.CSeq)
	}

	created := false
	if session == "" && !req.HasSession() {
		var err error
		if session, err = newSessionID(c.server.sessionRand); err != nil {
			c.log.WithError(err).Error("Cannot create session")
			return NewResponse(StatusInternalServerError, req.CSeq)
		}
		created = true
	} else if req.Session != session {
		return NewResponse(StatusSessionNotFound, req.CSeq)
	}

	spec, ok := chooseTransport(parseTransport(req.Header.Get("Transport")))
	if !ok || duplicate {
		return NewResponse(StatusUnsupportedTransport, req.CSeq)
	}

	st, status := c.buildStream(id, spec)
	if status != StatusOK {
		return NewResponse(status, req.CSeq)
	}

	c.mu.Lock()
	c.streams[id] = st
	c.session = session
	c.state = StateReady
	c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{
		"function":  "handleSetup",
		"session":   session,
		"stream":    id,
		"transport": st.Lower.String(),
	})
	if created {
		c.server.logEvent(c, EventSessionCreated)
		log.Info("Session created")
	} else {
		log.Debug("Stream added to session")
	}

	return NewResponse(StatusOK, req.CSeq).
		Set("Session", session).
		Set("Transport", st.transportHeader())
}

// buildStream prepares stream id for the chosen transport. On failure
// everything built so far is released and the status to reply is returned.
func (c *Conn) buildStream(id int, spec TransportSpec) (*Stream, int) {
	st := &Stream{
		ID:    id,
		Lower: spec.Lower,
	}
	ok := false
	defer func() {
		if !ok {
			st.close()
		}
	}()

	var err error
	if id == c.server.AudioStreamID() {
		st.Pipe = c.server.Audio.Pipe
		st.Encoder, err = c.server.newAudioEncoder()
	} else {
		st.Pipe = c.server.Video[id].Pipe
		st.Encoder, err = c.server.newVideoEncoder(id)
	}
	if err != nil {
		c.log.WithError(err).WithField("stream", id).Error("Cannot create encoder")
		return nil, StatusInternalServerError
	}

	var sink encoder.Sink
	switch spec.Lower {
	case LowerUDP:
		local, lok := c.nc.LocalAddr().(*net.TCPAddr)
		remote, rok := c.nc.RemoteAddr().(*net.TCPAddr)
		if !lok || !rok {
			c.log.WithField("stream", id).Error("Control connection has no IP addresses")
			return nil, StatusInternalServerError
		}
		if st.udp, err = openUDPOutput(local.IP, remote.IP, spec.ClientPort); err != nil {
			c.log.WithError(err).WithField("stream", id).Warn("Cannot open UDP output")
			return nil, StatusUnsupportedTransport
		}
		st.clientPort = spec.ClientPort
		go st.udp.readRTCP(func(b []byte) {
			c.handleRTCP(id, b)
		})
		sink = st.udp
	default:
		sink = encoder.SinkFunc(func(batch []byte) error {
			_, err := c.WriteInterleaved(id, batch)
			return err
		})
	}
	st.Out = encoder.NewStream(id, st.Encoder.Codec(), sink)

	ok = true
	return st, StatusOK
}

// checkSession applies the path and session tests shared by PLAY, PAUSE
// and TEARDOWN.
func (c *Conn) checkSession(req *Request) bool {
	return c.withinObject(req.Path) && req.Session == c.Session()
}

func (c *Conn) handlePlay(req *Request) *Response {
	if !c.checkSession(req) {
		return NewResponse(StatusSessionNotFound, req.CSeq)
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateReady && state != StatePause {
		return NewResponse(StatusMethodNotValidInThisState, req.CSeq)
	}

	if state == StateReady {
		if err := c.startWorkers(); err != nil {
			c.log.WithError(err).Error("Cannot start encoders")
			return NewResponse(StatusInternalServerError, req.CSeq)
		}
	}
	c.setState(StatePlaying)

	c.log.WithFields(logrus.Fields{
		"function": "handlePlay",
		"session":  c.Session(),
	}).Info("Playing")

	return NewResponse(StatusOK, req.CSeq).
		Set("Session", c.Session()).
		Set("Range", "npt=0.000-")
}

// startWorkers starts one worker per configured stream. If any fails the
// ones already started are stopped.
func (c *Conn) startWorkers() (err error) {
	c.mu.Lock()
	streams := append([]*Stream(nil), c.streams...)
	c.mu.Unlock()

	var started []*Stream
	for _, st := range streams {
		if st == nil {
			continue
		}
		pipe, lerr := c.server.Registry.Get(st.Pipe)
		if lerr != nil {
			err = lerr
			break
		}
		w := &encoder.Worker{
			ID:       fmt.Sprintf("%s/%d", c.ID, st.ID),
			StreamID: st.ID,
			Pipe:     pipe,
			Encoder:  st.Encoder,
			Writer:   st.Out,
			Active:   c.playing,
			Logger:   c.log,
		}
		if err = w.Start(c.workerCtx); err != nil {
			break
		}
		st.worker = w
		started = append(started, st)
	}
	if err == nil {
		return
	}

	for _, st := range started {
		st.worker.Pipe.Unregister(st.worker.ID)
		st.worker.Wait()
		st.worker = nil
	}
	return
}

func (c *Conn) handlePause(req *Request) *Response {
	if !c.checkSession(req) {
		return NewResponse(StatusSessionNotFound, req.CSeq)
	}
	if c.State() != StatePlaying {
		return NewResponse(StatusMethodNotValidInThisState, req.CSeq)
	}
	c.setState(StatePause)
	return NewResponse(StatusOK, req.CSeq).
		Set("Session", c.Session())
}

func (c *Conn) handleTeardown(req *Request) *Response {
	if !c.checkSession(req) {
		return NewResponse(StatusSessionNotFound, req.CSeq)
	}
	c.setState(StateTeardown)
	c.server.logEvent(c, EventTeardown)

	resp := NewResponse(StatusOK, req.CSeq)
	if s := c.Session(); s != "" {
		resp.Set("Session", s)
	}
	return resp
}
