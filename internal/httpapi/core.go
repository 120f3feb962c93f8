package httpapi

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleHealth mirrors "/health": loopback-only, probes the KV
// store, and optionally surfaces X-KV-Status/X-Shuma-Fail-Mode when
// SHUMA_DEBUG_HEADERS is set — an operator diagnostic, never exposed by
// default.
func (s *Server) handleHealth(c *gin.Context) {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil || !ip.IsLoopback() {
		c.Data(404, "text/plain; charset=utf-8", []byte("not found"))
		return
	}

	kvErr := s.Store.Ping(c.Request.Context())
	status := "ok"
	if kvErr != nil {
		status = "unavailable"
	}
	if s.Config.DebugHeaders {
		c.Header("X-KV-Status", status)
		if kvErr != nil {
			failMode := "closed"
			if s.Config.KVFailOpen {
				failMode = "open"
			}
			c.Header("X-Shuma-Fail-Mode", failMode)
		}
	}
	if kvErr != nil && !s.Config.KVFailOpen {
		c.Data(503, "text/plain; charset=utf-8", []byte("unavailable"))
		return
	}
	c.Data(200, "text/plain; charset=utf-8", []byte("ok"))
}

// handleMetrics exposes the dedicated Prometheus registry, never the process-default registry's Go runtime metrics the
// operator didn't ask for.
func (s *Server) handleMetrics(c *gin.Context) {
	promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// handleRobots mirrors "/robots.txt": a generated robots
// document, with a Content-Signal header advertising AI-training opt-out
// posture when search engines are explicitly allowed through the tarpit.
func (s *Server) handleRobots(c *gin.Context) {
	if s.Config.RobotsAllowSearchEngines {
		c.Header("Content-Signal", "ai-train=no, search=yes")
	}
	body := "User-agent: *\nDisallow: /maze/\nDisallow: /trap/\nDisallow: /admin/\n"
	c.Data(200, "text/plain; charset=utf-8", []byte(body))
}

// handleCatchAll is the early-dispatch tail: every path
// not claimed by a named route above runs the full policy pipeline.
func (s *Server) handleCatchAll(c *gin.Context) {
	if c.Request.Method == "OPTIONS" {
		c.Data(405, "text/plain; charset=utf-8", nil)
		return
	}
	resp := s.Pipeline.Evaluate(c.Request.Context(), s.buildRequest(c))
	applyResponse(c, resp)
}
