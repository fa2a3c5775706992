package rtsp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/utils"
)

// Conn is one RTSP control connection and the session it negotiates.
type Conn struct {
	ID string

	server *Server
	nc     net.Conn
	rb     *readBuffer
	log    logrus.FieldLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	state   State
	session string
	streams []*Stream

	workerCtx    context.Context
	workerCancel context.CancelFunc

	connected   time.Time
	lastActive  utils.AtomicTime
	rtcpPackets atomic.Uint64
}

func newConn(s *Server, nc net.Conn) *Conn {
	nstreams := len(s.Video)
	if s.Audio != nil {
		nstreams++
	}
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Conn{
		ID:        uuid.NewString(),
		server:    s,
		nc:        nc,
		rb:        newReadBuffer(nc, s.ReadBufferSize),
		streams:   make([]*Stream, nstreams),
		connected: time.Now(),
	}
	c.log = logger.WithFields(logrus.Fields{
		"conn":   c.ID,
		"remote": nc.RemoteAddr().String(),
	})
	c.lastActive.Store(c.connected)
	return c
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

func (c *Conn) playing() bool {
	return c.State() == StatePlaying
}

func (c *Conn) Info() ConnInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := ConnInfo{
		ID:          c.ID,
		Remote:      c.nc.RemoteAddr().String(),
		Session:     c.session,
		State:       c.state.String(),
		Connected:   c.connected,
		LastActive:  c.lastActive.Load(),
		RTCPPackets: c.rtcpPackets.Load(),
	}
	for _, st := range c.streams {
		if st != nil {
			info.Streams = append(info.Streams, st.info())
		}
	}
	return info
}

func (c *Conn) serve(ctx context.Context) {
	c.workerCtx, c.workerCancel = context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() {
		c.nc.Close()
	})
	defer stop()
	defer c.teardown()

	for {
		b, err := c.rb.next()
		if err != nil {
			if errors.Cause(err) == ErrBufferFull {
				c.server.logEvent(c, EventBufferFull)
				c.log.WithError(err).Warn("Dropping connection")
			}
			return
		}
		c.lastActive.Store(time.Now())

		if b[0] == '$' {
			c.handleInterleaved(b)
			continue
		}

		req, err := c.readRequest(b)
		if err != nil {
			switch errors.Cause(err) {
			case ErrVersion:
				c.server.logEvent(c, EventVersionMismatch)
				c.reply(NewResponse(StatusVersionNotSupported, req.CSeq))
				return
			case ErrBadRequest:
				c.log.WithError(err).Debug("Ignoring malformed line")
				continue
			}
			return
		}

		if fn := c.server.LogRequest; fn != nil {
			fn(c, req)
		}

		resp := c.handle(req)
		if err = c.reply(resp); err != nil {
			return
		}

		if c.State() == StateTeardown {
			return
		}
	}
}

// readRequest parses the request line in first and reads header lines up
// to the blank line. Interleaved records arriving in between are handled
// in place. On ErrVersion the headers are still read so CSeq can be echoed.
func (c *Conn) readRequest(first []byte) (req *Request, err error) {
	req, lineErr := parseRequestLine(string(first))
	if req == nil {
		return nil, lineErr
	}
	for {
		var b []byte
		if b, err = c.rb.next(); err != nil {
			return
		}
		if b[0] == '$' {
			c.handleInterleaved(b)
			continue
		}
		line := string(b)
		if line == "\n" || line == "\r\n" {
			break
		}
		req.addHeaderLine(line)
	}
	err = lineErr
	return
}

func (c *Conn) handleInterleaved(b []byte) {
	if fn := c.server.LogInterleaved; fn != nil {
		fn(c, true, b)
	}
	channel := int(b[1])
	if channel%2 == 1 {
		c.handleRTCP(channel/2, b[interleavedHeaderSize:])
	}
}

func (c *Conn) reply(resp *Response) error {
	if fn := c.server.LogResponse; fn != nil {
		fn(c, resp)
	}
	return c.write(resp.Bytes())
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// teardown stops the workers and releases everything the connection owns.
func (c *Conn) teardown() {
	c.setState(StateTeardown)
	c.nc.Close()

	c.workerCancel()
	c.mu.Lock()
	streams := c.streams
	c.mu.Unlock()
	for _, st := range streams {
		if st != nil && st.worker != nil {
			st.worker.Wait()
		}
	}
	for _, st := range streams {
		if st != nil {
			st.close()
		}
	}

	c.mu.Lock()
	c.streams = nil
	c.mu.Unlock()
	c.rb = nil

	c.log.WithFields(logrus.Fields{
		"function": "teardown",
		"session":  c.Session(),
	}).Info("Connection terminated")
}
