// Admin console surface: bearer-token gated, no CORS (OPTIONS rejected
// outright). Uses the same subtle.ConstantTimeCompare bearer-token check
// as the rest of the repo's constant-time comparisons, checked against the
// process's SHUMA_ADMIN_TOKEN secret.
package httpapi

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atomlessAK/shuma-gorath/internal/enforcement"
	"github.com/atomlessAK/shuma-gorath/internal/maze"
)

func (s *Server) adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Data(405, "text/plain; charset=utf-8", nil)
			c.Abort()
			return
		}
		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || s.Secrets.AdminToken == "" {
			c.Data(401, "text/plain; charset=utf-8", []byte("unauthorized"))
			c.Abort()
			return
		}
		presented := strings.TrimPrefix(auth, prefix)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.Secrets.AdminToken)) != 1 {
			c.Data(401, "text/plain; charset=utf-8", []byte("unauthorized"))
			c.Abort()
			return
		}
	}
}

// handleAdmin dispatches the admin console's narrow API surface.
func (s *Server) handleAdmin(c *gin.Context) {
	path := c.Param("path")
	switch {
	case path == "/bans" && c.Request.Method == "GET":
		c.JSON(200, enforcement.ListActiveBans(c.Request.Context(), s.Store, s.Config.SiteID))
	case path == "/bans/unban" && c.Request.Method == "POST":
		ipBucket := c.Query("ip_bucket")
		if ipBucket == "" {
			c.Data(400, "text/plain; charset=utf-8", []byte("missing ip_bucket"))
			return
		}
		enforcement.UnbanIP(c.Request.Context(), s.Store, s.Config.SiteID, ipBucket)
		c.Data(204, "text/plain; charset=utf-8", nil)
	case path == "/events" && c.Request.Method == "GET":
		c.JSON(200, s.Events.Recent(c.Request.Context(), 200))
	case path == "/live" && c.Request.Method == "GET":
		s.Hub.Subscribe(c)
	case strings.HasPrefix(path, "/maze/preview") && c.Request.Method == "GET":
		// NormalizePreviewPath itself rejects anything not maze-shaped and
		// filesystem-safe, falling back to the default preview path.
		html := maze.RenderAdminPreview(s.Config, s.Secrets, c.Query("path"))
		c.Data(200, "text/html; charset=utf-8", []byte(html))
	default:
		c.Data(404, "text/plain; charset=utf-8", nil)
	}
}
