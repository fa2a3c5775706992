// Package api serves a read-only HTTP view of the running pipelines and
// RTSP sessions, plus a websocket that pushes the same snapshot
// periodically.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/filter"
	"github.com/nareix/gastream/format/rtsp"
	"github.com/nareix/gastream/vsource"
)

const DefaultStatsInterval = time.Second

type Server struct {
	Registry *vsource.Registry
	RTSP     *rtsp.Server
	// nil when no filter stage runs
	Stage *filter.Stage

	StatsInterval time.Duration
	Logger        logrus.FieldLogger

	started time.Time
}

func NewServer(reg *vsource.Registry, rs *rtsp.Server, stage *filter.Stage) *Server {
	return &Server{
		Registry:      reg,
		RTSP:          rs,
		Stage:         stage,
		StatsInterval: DefaultStatsInterval,
		Logger:        logrus.StandardLogger(),
		started:       time.Now(),
	}
}

type PipelineInfo struct {
	Name      string `json:"name"`
	Buffers   int    `json:"buffers"`
	Filled    int    `json:"filled"`
	Free      int    `json:"free"`
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
	Taken     uint64 `json:"taken"`
	Evicted   uint64 `json:"evicted"`
	Released  uint64 `json:"released"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

type FilterInfo struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	State string `json:"state"`
}

type Snapshot struct {
	Time      time.Time       `json:"time"`
	Pipelines []PipelineInfo  `json:"pipelines"`
	Filters   []FilterInfo    `json:"filters"`
	Sessions  []rtsp.ConnInfo `json:"sessions"`
}

func pipelineInfo(p *vsource.Pipeline) PipelineInfo {
	st := p.Stats()
	info := PipelineInfo{
		Name:      p.Name(),
		Buffers:   p.BufCount(),
		Filled:    p.DataCount(),
		Free:      p.FreeCount(),
		Clients:   p.ClientCount(),
		Published: st.Published,
		Taken:     st.Taken,
		Evicted:   st.Evicted,
		Released:  st.Released,
	}
	if cfg, ok := p.Private(); ok {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}
	return info
}

func (s *Server) pipelines() []PipelineInfo {
	out := []PipelineInfo{}
	s.Registry.Each(func(p *vsource.Pipeline) {
		out = append(out, pipelineInfo(p))
	})
	return out
}

func (s *Server) filters() []FilterInfo {
	out := []FilterInfo{}
	if s.Stage == nil {
		return out
	}
	for _, inst := range s.Stage.Instances() {
		out = append(out, FilterInfo{Src: inst.Src, Dst: inst.Dst, State: inst.State.String()})
	}
	return out
}

func (s *Server) sessions() []rtsp.ConnInfo {
	out := []rtsp.ConnInfo{}
	if s.RTSP != nil {
		out = append(out, s.RTSP.Conns()...)
	}
	return out
}

func (s *Server) Snapshot() Snapshot {
	return Snapshot{
		Time:      time.Now(),
		Pipelines: s.pipelines(),
		Filters:   s.filters(),
		Sessions:  s.sessions(),
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.WithFields(logrus.Fields{
			"function": "api",
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start),
		}).Debug("HTTP request")
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/pipelines", s.handlePipelines)
		api.GET("/pipelines/:name", s.handlePipeline)
		api.GET("/filters", s.handleFilters)
		api.GET("/sessions", s.handleSessions)
		api.GET("/sessions/:id", s.handleSession)
		api.GET("/sdp", s.handleSDP)
	}

	r.GET("/ws/stats", s.handleStats)
	return r
}

// Serve runs the API on lis until ctx ends.
func (s *Server) Serve(ctx context.Context, lis net.Listener) (err error) {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	})
	defer stop()

	s.Logger.WithFields(logrus.Fields{
		"function": "Serve",
		"addr":     lis.Addr().String(),
	}).Info("Status API listening")

	if err = srv.Serve(lis); err == http.ErrServerClosed {
		err = nil
	}
	return errors.Wrap(err, "api: serve")
}
