package rtsp

import (
	"context"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/vsource"
)

const (
	EventConnConnected    = 1
	EventConnDisconnected = 2
	EventBufferFull       = 3
	EventVersionMismatch  = 4
	EventSessionCreated   = 5
	EventTeardown         = 6
)

var EventString = map[int]string{
	EventConnConnected:    "Connected",
	EventConnDisconnected: "Disconnected",
	EventBufferFull:       "BufferFull",
	EventVersionMismatch:  "VersionMismatch",
	EventSessionCreated:   "SessionCreated",
	EventTeardown:         "Teardown",
}

// Channel is one stream offered by the server: the pipeline its workers
// drain and the geometry or PCM format of what flows through it.
type Channel struct {
	Pipe   string
	Config vsource.Config
}

type Server struct {
	Object   string
	Title    string
	Registry *vsource.Registry
	Video    []Channel
	// nil when audio is disabled
	Audio *Channel

	VideoCodec string
	AudioCodec string
	FPS        int
	Bitrate    int

	ReadBufferSize int

	OnNewConn      func(c *Conn)
	LogEvent       func(c *Conn, e int)
	LogRequest     func(c *Conn, req *Request)
	LogResponse    func(c *Conn, resp *Response)
	LogInterleaved func(c *Conn, isRead bool, b []byte)

	Logger logrus.FieldLogger

	// session id entropy; nil means crypto/rand
	sessionRand io.Reader

	l     sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

func NewServer() *Server {
	return &Server{
		Object:         "/desktop",
		Title:          "gastream",
		VideoCodec:     "raw",
		AudioCodec:     "L16",
		FPS:            30,
		ReadBufferSize: DefaultReadBufferSize,
		Logger:         logrus.StandardLogger(),
		conns:          map[string]*Conn{},
	}
}

// AudioStreamID is the stream index reserved for audio.
func (s *Server) AudioStreamID() int {
	return len(s.Video)
}

func (s *Server) logEvent(c *Conn, e int) {
	if fn := s.LogEvent; fn != nil {
		fn(c, e)
	}
}

// Serve accepts connections until ctx ends or lis fails, then waits for
// every connection to finish.
func (s *Server) Serve(ctx context.Context, lis net.Listener) (err error) {
	stop := context.AfterFunc(ctx, func() {
		lis.Close()
	})
	defer stop()
	defer s.wg.Wait()

	s.Logger.WithFields(logrus.Fields{
		"function": "Serve",
		"addr":     lis.Addr().String(),
		"object":   s.Object,
		"channels": len(s.Video),
		"audio":    s.Audio != nil,
	}).Info("RTSP server listening")

	for {
		var nc net.Conn
		if nc, err = lis.Accept(); err != nil {
			if ctx.Err() != nil {
				err = nil
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			err = errors.Wrap(err, "rtsp: accept")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HandleNetConn(ctx, nc)
		}()
	}
}

// HandleNetConn runs one connection to completion.
func (s *Server) HandleNetConn(ctx context.Context, nc net.Conn) {
	c := newConn(s, nc)

	s.l.Lock()
	if s.conns == nil {
		s.conns = map[string]*Conn{}
	}
	s.conns[c.ID] = c
	s.l.Unlock()

	defer func() {
		s.l.Lock()
		delete(s.conns, c.ID)
		s.l.Unlock()
		s.logEvent(c, EventConnDisconnected)
	}()

	if fn := s.OnNewConn; fn != nil {
		fn(c)
	}
	s.logEvent(c, EventConnConnected)

	c.serve(ctx)
}

type StreamInfo struct {
	ID        int    `json:"id"`
	Transport string `json:"transport"`
	Frames    uint64 `json:"frames"`
	Packets   uint32 `json:"packets"`
	Octets    uint32 `json:"octets"`
}

type ConnInfo struct {
	ID          string       `json:"id"`
	Remote      string       `json:"remote"`
	Session     string       `json:"session"`
	State       string       `json:"state"`
	Connected   time.Time    `json:"connected"`
	LastActive  time.Time    `json:"last_active"`
	RTCPPackets uint64       `json:"rtcp_packets"`
	Streams     []StreamInfo `json:"streams"`
}

// Conns snapshots every live connection, ordered by connect time.
func (s *Server) Conns() (infos []ConnInfo) {
	s.l.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.l.Unlock()

	for _, c := range conns {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Connected.Before(infos[j].Connected)
	})
	return
}
