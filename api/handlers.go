package api

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"pipelines": len(s.Registry.Names()),
		"sessions":  len(s.sessions()),
	})
}

func (s *Server) handlePipelines(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipelines())
}

func (s *Server) handlePipeline(c *gin.Context) {
	name := c.Param("name")
	p, ok := s.Registry.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found", "name": name})
		return
	}
	c.JSON(http.StatusOK, pipelineInfo(p))
}

func (s *Server) handleFilters(c *gin.Context) {
	c.JSON(http.StatusOK, s.filters())
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions())
}

func (s *Server) handleSession(c *gin.Context) {
	id := c.Param("id")
	for _, info := range s.sessions() {
		if info.ID == id || (info.Session != "" && info.Session == id) {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "id": id})
}

func (s *Server) handleSDP(c *gin.Context) {
	if s.RTSP == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rtsp server not running"})
		return
	}
	host, _, err := net.SplitHostPort(c.Request.Host)
	if err != nil {
		host = c.Request.Host
	}
	if net.ParseIP(host) == nil {
		host = ""
	}
	b, err := s.RTSP.SDP(host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/sdp", b)
}
