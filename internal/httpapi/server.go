// Package httpapi wires the bot-defense route table onto gin-gonic/gin,
// with a single handler struct (Server) bundling every dependency behind
// one receiver. Route registration order follows an early-dispatch list:
// health before the KV gate, metrics/robots unauthenticated, challenge/
// not-a-bot GET+POST, admin as a catch-all.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/atomlessAK/shuma-gorath/internal/admin"
	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/enforcement"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/observability"
	"github.com/atomlessAK/shuma-gorath/internal/policy"
)

// Server bundles every collaborator the route handlers depend on.
type Server struct {
	Config   *config.Config
	Secrets  config.Secrets
	Store    kvstore.Store
	Rate     *enforcement.RateCounter
	Metrics  *observability.Metrics
	Pipeline *policy.Pipeline
	Events   *admin.KVSink
	Hub      *admin.Hub
}

// NewRouter builds the full gin.Engine for the bot-defense surface.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Early routes: health before the KV gate inside Evaluate, metrics and
	// robots unauthenticated.
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/robots.txt", s.handleRobots)

	r.GET("/challenge/puzzle", s.handleChallengeGet)
	r.POST("/challenge/puzzle", s.handleChallengePost)
	r.GET("/challenge/not-a-bot-checkbox", s.handleNotABotGet)
	r.POST("/challenge/not-a-bot-checkbox", s.handleNotABotPost)
	r.GET("/challenge/pow", s.handlePowGet)
	r.POST("/challenge/pow-verify", s.handlePowVerify)

	r.POST("/maze/checkpoint", s.handleMazeCheckpoint)
	r.POST("/maze/issue-links", s.handleMazeIssueLinks)
	// A single catch-all per prefix avoids the static/wildcard route-tree
	// conflict a separate "/maze/assets/*asset" registration would raise;
	// handleMazeRoute dispatches assets vs. page internally.
	r.GET("/maze/*path", s.handleMazeRoute)
	r.GET("/trap/*path", s.handleMazeRoute)

	r.POST("/cdp-report", s.handleFingerprintReport)
	r.POST("/fingerprint-report", s.handleFingerprintReport)

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.adminAuthMiddleware())
	{
		adminGroup.Any("/*path", s.handleAdmin)
	}

	r.NoRoute(s.handleCatchAll)
	return r
}
