package httpapi

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atomlessAK/shuma-gorath/internal/maze"
	"github.com/atomlessAK/shuma-gorath/internal/validate"
)

// handleMazeRoute serves everything under /maze/ and /trap/: the
// versioned static assets (cached forever) and, for everything
// else, a tarpit page via ServeRoot/Advance.
func (s *Server) handleMazeRoute(c *gin.Context) {
	fullPath := c.Request.URL.Path
	if strings.HasPrefix(fullPath, "/maze/assets/") {
		contentType, body, ok := maze.AssetBody(fullPath)
		if !ok {
			c.Data(404, "text/plain; charset=utf-8", nil)
			return
		}
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Data(200, contentType, []byte(body))
		return
	}

	req := s.buildRequest(c)
	var page maze.Page
	var err error
	if req.MazeToken != "" {
		page, err = maze.Advance(s.Config, s.Secrets.MazeKey(), req.MazeToken, fullPath, req.IP, req.UserAgent, req.Now)
		s.Metrics.IncMazeHit("chained")
	} else {
		page, err = maze.ServeRoot(s.Config, s.Secrets.MazeKey(), fullPath, req.IP, req.UserAgent, req.Now)
		s.Metrics.IncMazeHit("root")
	}
	if err != nil {
		c.Data(500, "text/plain; charset=utf-8", []byte("maze unavailable"))
		return
	}
	setSignedCookie(c, maze.TraversalCookieName, page.Token, time.Duration(s.Config.MazeTokenTTLSeconds)*time.Second)
	c.Data(200, "text/html; charset=utf-8", []byte(page.HTML))
}

// handleMazeCheckpoint accepts the dwell-time beacon the bootstrap script
// posts on page load.
func (s *Server) handleMazeCheckpoint(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(validate.MaxAdminJSONBytes)))
	if err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("bad request"))
		return
	}
	var req maze.CheckpointRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("bad request"))
		return
	}
	now := time.Now().Unix()
	if err := maze.RecordCheckpoint(c.Request.Context(), s.Store, s.Secrets.MazeKey(), req, now); err != nil {
		c.Data(200, "text/plain; charset=utf-8", []byte("ignored"))
		return
	}
	c.Data(204, "text/plain; charset=utf-8", nil)
}

// handleMazeIssueLinks expands client-generated candidate paths into signed
// hidden links, refusing any request
// whose expansion-seed signature doesn't match what the page itself issued.
func (s *Server) handleMazeIssueLinks(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(validate.MaxAdminJSONBytes)))
	if err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("bad request"))
		return
	}
	var req maze.IssueLinksRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("bad request"))
		return
	}
	reqCtx := s.buildRequest(c)
	links, ok := maze.IssueLinks(s.Config, s.Secrets.MazeKey(), req, reqCtx.IP, reqCtx.UserAgent, reqCtx.Now)
	if !ok {
		c.Data(403, "text/plain; charset=utf-8", []byte("rejected"))
		return
	}
	c.JSON(200, links)
}
