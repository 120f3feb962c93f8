package httpapi

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atomlessAK/shuma-gorath/internal/challenge"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/jsverify"
	"github.com/atomlessAK/shuma-gorath/internal/maze"
	"github.com/atomlessAK/shuma-gorath/internal/notabot"
	"github.com/atomlessAK/shuma-gorath/internal/signals"
	"github.com/atomlessAK/shuma-gorath/internal/validate"
)

func newOperationID() string { return uuid.New().String() }

func newRNGSeed() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

// handleChallengeGet serves a fresh puzzle directly, bypassing the policy
// pipeline. Only reachable in test_mode)") — in normal operation the pipeline renders a
// puzzle page inline wherever it decides to challenge, and nothing links a
// visitor to this route.
func (s *Server) handleChallengeGet(c *gin.Context) {
	if !s.Config.TestMode {
		c.Data(404, "text/plain; charset=utf-8", nil)
		return
	}
	req := s.buildRequest(c)
	ipBucket := ipident.BucketIP(req.IP)
	_, _, page, err := challenge.BuildChallenge(s.Secrets.ChallengeKey(), ipBucket, newOperationID(), newRNGSeed(), req.Now, int64(s.Config.NotABotNonceTTLSeconds), s.Config.ChallengeTransformCount)
	if err != nil {
		c.Data(500, "text/plain; charset=utf-8", []byte("challenge unavailable"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(200, "text/html; charset=utf-8", []byte(page))
}

// handleChallengePost grades a puzzle submission.
func (s *Server) handleChallengePost(c *gin.Context) {
	seedToken := c.PostForm("seed")
	if seedToken == "" || !validate.ValidateSeedToken(seedToken) {
		c.Data(400, "text/plain; charset=utf-8", []byte("invalid seed"))
		return
	}
	seed, err := challenge.ParseSeedToken(s.Secrets.ChallengeKey(), seedToken)
	if err != nil {
		c.Data(400, "text/plain; charset=utf-8", []byte("invalid seed"))
		return
	}
	now := time.Now().Unix()
	outcome := challenge.Grade(c.Request.Context(), s.Store, seed, now, c.PostForm("output"), c.PostForm("transform_1"), c.PostForm("transform_2"))
	s.Metrics.IncChallengeOutcome(string(outcome))

	switch outcome {
	case challenge.Solved:
		c.Data(200, "text/plain; charset=utf-8", []byte("solved"))
	case challenge.Incorrect, challenge.InvalidOutput:
		c.Data(200, "text/plain; charset=utf-8", []byte("incorrect"))
	default: // Forbidden, ExpiredReplay
		c.Data(403, "text/plain; charset=utf-8", []byte("rejected"))
	}
}

// handleNotABotGet renders the checkbox page via the pipeline's shared seed
// construction (policy.Pipeline.ServeNotABot).
func (s *Server) handleNotABotGet(c *gin.Context) {
	req := s.buildRequest(c)
	returnTo, ok := validate.NormalizeReturnTo(c.Query("return_to"), "/challenge/not-a-bot-checkbox")
	if !ok {
		returnTo = "/"
	}
	resp, err := s.Pipeline.ServeNotABot(returnTo, req)
	if err != nil {
		c.Data(500, "text/plain; charset=utf-8", []byte("checkbox unavailable"))
		return
	}
	applyResponse(c, resp)
}

// handleNotABotPost implements submission pipeline via
// notabot.Submit, then routes the decision to a marker cookie, an escalated
// puzzle, or the maze/block fallback.
func (s *Server) handleNotABotPost(c *gin.Context) {
	req := s.buildRequest(c)
	result := notabot.Submit(c.Request.Context(), s.Store, s.Secrets.ChallengeKey(), s.Config, notabot.SubmitRequest{
		SiteID:       s.Config.SiteID,
		RequestIP:    req.IP,
		RequestUA:    req.UserAgent,
		Now:          req.Now,
		SeedTokenRaw: c.PostForm("seed"),
		TelemetryRaw: []byte(c.PostForm("telemetry")),
	})
	s.Metrics.IncNotABotOutcome(string(result.Outcome))

	switch result.Decision {
	case notabot.DecisionPass:
		if result.MarkerCookie != "" {
			setSignedCookie(c, notabot.MarkerCookieName, result.MarkerCookie, time.Duration(s.Config.NotABotMarkerTTLSeconds)*time.Second)
		}
		c.Redirect(302, result.ReturnTo)
	case notabot.DecisionEscalatePuzzle:
		ipBucket := ipident.BucketIP(req.IP)
		_, _, page, err := challenge.BuildChallenge(s.Secrets.ChallengeKey(), ipBucket, newOperationID(), newRNGSeed(), req.Now, int64(s.Config.NotABotNonceTTLSeconds), s.Config.ChallengeTransformCount)
		if err != nil {
			c.Data(500, "text/plain; charset=utf-8", []byte("challenge unavailable"))
			return
		}
		s.Metrics.IncChallengeServed("challenge_puzzle")
		c.Header("Cache-Control", "no-store")
		c.Data(200, "text/html; charset=utf-8", []byte(page))
	default: // DecisionMazeOrBlock
		if s.Config.MazeEnabled {
			page, err := maze.ServeRoot(s.Config, s.Secrets.MazeKey(), "/maze/not-a-bot-gate", req.IP, req.UserAgent, req.Now)
			if err != nil {
				c.Data(500, "text/plain; charset=utf-8", []byte("maze unavailable"))
				return
			}
			s.Metrics.IncMazeHit("root")
			setSignedCookie(c, maze.TraversalCookieName, page.Token, time.Duration(s.Config.MazeTokenTTLSeconds)*time.Second)
			c.Data(200, "text/html; charset=utf-8", []byte(page.HTML))
			return
		}
		s.Metrics.IncBlock("not_a_bot")
		c.Data(403, "text/plain; charset=utf-8", []byte("blocked: not_a_bot"))
	}
}

// handlePowGet mints a fresh client-side PoW challenge. This and the
// pipeline's own serveJSChallenge are the two construction sites for jsverify
// seeds — the pipeline's version is unexported, so the direct-entry route
// builds its own.
func (s *Server) handlePowGet(c *gin.Context) {
	req := s.buildRequest(c)
	returnTo, ok := validate.NormalizeReturnTo(c.Query("return_to"), "/challenge/pow")
	if !ok {
		returnTo = "/"
	}
	ipBucket := ipident.BucketIP(req.IP)
	uaBucket := ipident.BucketUA(req.UserAgent)
	token, err := jsverify.BuildChallenge(s.Secrets.JSSecret, ipBucket, uaBucket, newOperationID(), req.Now, int64(s.Config.PoWTTLSeconds), s.Config.PoWDifficulty, returnTo)
	if err != nil {
		c.Data(500, "text/plain; charset=utf-8", []byte("js verification unavailable"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(200, "text/html; charset=utf-8", []byte(jsverify.RenderPage(token, s.Config.PoWDifficulty, returnTo)))
}

// handlePowVerify grades a /challenge/pow-verify submission and, on
// success, mints the JS-verification marker cookie.
func (s *Server) handlePowVerify(c *gin.Context) {
	req := s.buildRequest(c)
	now := time.Now().Unix()
	outcome, seed := jsverify.VerifySubmission(c.Request.Context(), s.Store, s.Secrets.JSSecret, req.IP, req.UserAgent, now, c.PostForm("seed"), c.PostForm("nonce"))

	switch outcome {
	case jsverify.OutcomeVerified:
		marker, err := signals.MintJSMarker(s.Secrets.JSSecret, req.IP, req.UserAgent, time.Duration(s.Config.NotABotMarkerTTLSeconds)*time.Second)
		if err != nil {
			c.Data(500, "text/plain; charset=utf-8", []byte("marker unavailable"))
			return
		}
		setSignedCookie(c, signals.JSMarkerCookieName, marker, time.Duration(s.Config.NotABotMarkerTTLSeconds)*time.Second)
		returnTo := "/"
		if seed != nil && seed.ReturnTo != "" {
			returnTo = seed.ReturnTo
		}
		c.Redirect(302, returnTo)
	case jsverify.OutcomeMissingSeed, jsverify.OutcomeInvalidSeed:
		c.Data(400, "text/plain; charset=utf-8", []byte("invalid seed"))
	default:
		c.Data(403, "text/plain; charset=utf-8", []byte("rejected"))
	}
}
