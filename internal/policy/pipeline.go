// Package policy implements the decision engine: a fixed precedence chain
// of honeypot, ban, rate, geo, ip-range, and botness checks that terminates
// in allow/challenge/maze/block. Each check is its own maybeHandle* method;
// the top-level Evaluate dispatcher chains them in precedence order.
package policy

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/atomlessAK/shuma-gorath/internal/admin"
	"github.com/atomlessAK/shuma-gorath/internal/challenge"
	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/enforcement"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/jsverify"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/logging"
	"github.com/atomlessAK/shuma-gorath/internal/maze"
	"github.com/atomlessAK/shuma-gorath/internal/notabot"
	"github.com/atomlessAK/shuma-gorath/internal/observability"
	"github.com/atomlessAK/shuma-gorath/internal/signals"
)

// newID mints a fresh random identifier for admin event entries, seed ids,
// and operation ids.
func newID() string { return uuid.New().String() }

// randSeed draws a fresh uint64 for the puzzle engine's per-challenge PRNG
// seed (challenge.BuildChallenge's rngSeed parameter).
func randSeed() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

// Request is the minimal slice of an inbound HTTP request the pipeline
// needs, gathered by internal/httpapi before Evaluate is called.
type Request struct {
	Method         string
	Path           string
	IP             string
	UserAgent      string
	HeadersTrusted bool // x-forwarded-for / x-geo-country accepted (forwarded-identity secret matched)
	GeoCountryRaw  string
	MazeToken      string // "mt" query param or cookie, if present
	JSMarkerCookie string
	Now            int64
}

// Response is the terminal HTTP response the pipeline produces. Block/ban
// pages are deliberately minimal constant strings — full block-page HTML
// templates are an external collaborator concern; only the
// status code, reason, and (for challenge/maze/not-a-bot) body content
// are in scope here.
type Response struct {
	Status      int
	Body        string
	ContentType string
	Headers     map[string]string
	SetCookies  []string
}

func blockPage(reason string) Response {
	return Response{
		Status:      403,
		Body:        "blocked: " + reason,
		ContentType: "text/plain; charset=utf-8",
	}
}

func htmlPage(status int, body string) Response {
	return Response{Status: status, Body: body, ContentType: "text/html; charset=utf-8", Headers: map[string]string{"Cache-Control": "no-store"}}
}

// Pipeline holds every collaborator the decision engine depends on, bundled
// behind one receiver.
type Pipeline struct {
	Config  *config.Config
	Secrets config.Secrets
	Store   kvstore.Store
	Rate    *enforcement.RateCounter
	Metrics *observability.Metrics
	Admin   admin.Sink
	Fingerprints signals.FingerprintBackend
}

// New builds a Pipeline from its collaborators.
func New(cfg *config.Config, secrets config.Secrets, store kvstore.Store, rate *enforcement.RateCounter, metrics *observability.Metrics, sink admin.Sink) *Pipeline {
	return &Pipeline{
		Config:       cfg,
		Secrets:      secrets,
		Store:        store,
		Rate:         rate,
		Metrics:      metrics,
		Admin:        sink,
		Fingerprints: signals.NewInternalFingerprintBackend(),
	}
}

func (p *Pipeline) logEvent(event admin.EventType, ip, reason, outcome string) {
	p.Admin.Record(context.Background(), admin.EventLogEntry{
		ID:      newID(),
		Ts:      admin.NowTS(),
		Event:   event,
		IP:      ip,
		Reason:  reason,
		Outcome: outcome,
	})
}

// Evaluate runs the full precedence chain for one request and returns the
// terminal response. Callers have already handled the early routes named in
// step 1 (health/metrics/robots/admin/asset/challenge paths)
// before reaching here; KV availability (step 2) is this function's first
// concern.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) Response {
	cfg := p.Config
	ipBucket := ipident.BucketIP(req.IP)

	if err := p.Store.Ping(ctx); err != nil {
		p.Metrics.IncKVUnavailable("ping")
		if cfg.KVFailOpen {
			logging.Line("pipeline", "kv unavailable, failing open for ip=%s", ipBucket)
			return Response{Status: 200, Body: "ok", ContentType: "text/plain; charset=utf-8", Headers: map[string]string{"X-Shuma-Fail-Open": "1"}}
		}
		logging.Line("pipeline", "kv unavailable, failing closed for ip=%s", ipBucket)
		return Response{Status: 500, Body: "store unavailable", ContentType: "text/plain; charset=utf-8"}
	}

	if resp, handled := p.maybeHandleHoneypot(ctx, req, ipBucket); handled {
		return resp
	}
	if resp, handled := p.maybeHandleExistingBan(ctx, req, ipBucket); handled {
		return resp
	}
	if resp, handled := p.maybeHandleRateLimit(ctx, req, ipBucket); handled {
		return resp
	}

	geo := signals.AssessGeo(req.HeadersTrusted, req.GeoCountryRaw, cfg)
	if resp, handled := p.maybeHandleGeoPolicy(ctx, req, ipBucket, geo); handled {
		return resp
	}

	if resp, handled := p.maybeHandleBrowser(req); handled {
		return resp
	}

	if resp, handled := p.maybeHandleIPRange(ctx, req, ipBucket); handled {
		return resp
	}

	needsJS := p.computeNeedsJS(req)
	rateUsage := 0
	if p.Rate != nil {
		rateUsage = p.Rate.CurrentRateUsage(ctx, cfg.SiteID, ipBucket)
	}
	botness := signals.ComputeBotnessAssessment(signals.BotnessSignalContext{
		JSNeeded:           needsJS,
		GeoSignalAvailable: geo.HeadersTrusted && geo.Country != "",
		GeoRisk:            geo.ScoredRisk,
		RateCount:          rateUsage,
		RateLimit:          cfg.RateLimit,
	}, cfg)
	p.Metrics.ObserveBotness(botness.Score)

	if resp, handled := p.maybeHandleBotness(ctx, req, ipBucket, botness); handled {
		return resp
	}

	if resp, handled := p.maybeHandleJS(ctx, req, ipBucket, needsJS); handled {
		return resp
	}

	allowed := Response{Status: 200, Body: "ok", ContentType: "text/plain; charset=utf-8"}
	if body, injected := maze.MaybeInjectNonMazeDecoy(
		cfg, p.Secrets.MazeKey(), req.Method, req.Path, req.IP, req.UserAgent,
		allowed.Status, allowed.ContentType, []byte(allowed.Body), botness.Score, req.Now,
	); injected {
		p.Metrics.IncDecoyInjection()
		allowed.Body = string(body)
	}
	return allowed
}

// maybeHandleHoneypot bans outright and returns a block page on an exact
// honeypot path match.
func (p *Pipeline) maybeHandleHoneypot(ctx context.Context, req Request, ipBucket string) (Response, bool) {
	if !signals.IsHoneypot(req.Path, p.Config.Honeypots) {
		return Response{}, false
	}
	reason := "honeypot"
	if !p.Config.TestMode {
		enforcement.BanIPWithFingerprint(ctx, p.Store, p.Config.SiteID, ipBucket, reason, p.Config.GetBanDuration(reason), &enforcement.BanFingerprint{
			Signals: []string{"honeypot"},
			Summary: "path=" + req.Path,
		})
		p.Metrics.IncBan(reason)
		p.Metrics.IncBlock(reason)
		p.logEvent(admin.EventBan, req.IP, reason, "path="+req.Path)
		return blockPage(reason), true
	}
	p.Metrics.IncTestModeAction(reason)
	return Response{Status: 200, Body: "TEST MODE: would ban+block for honeypot path=" + req.Path, ContentType: "text/plain; charset=utf-8"}, true
}

// maybeHandleExistingBan blocks a standing ban without re-banning or
// re-logging a fresh ban event.
func (p *Pipeline) maybeHandleExistingBan(ctx context.Context, req Request, ipBucket string) (Response, bool) {
	if !enforcement.IsBanned(ctx, p.Store, p.Config.SiteID, ipBucket) {
		return Response{}, false
	}
	if p.Config.TestMode {
		p.Metrics.IncTestModeAction("existing_ban")
		return Response{Status: 200, Body: "TEST MODE: would block for existing ban", ContentType: "text/plain; charset=utf-8"}, true
	}
	p.Metrics.IncBlock("existing_ban")
	p.logEvent(admin.EventBlock, req.IP, "existing_ban", "")
	return blockPage("existing_ban"), true
}

// maybeHandleRateLimit bans with reason "rate" and returns 429 once the
// per-bucket rate limit is exceeded.
func (p *Pipeline) maybeHandleRateLimit(ctx context.Context, req Request, ipBucket string) (Response, bool) {
	cfg := p.Config
	if !cfg.RateActionEnabled() || p.Rate == nil {
		return Response{}, false
	}
	decision := p.Rate.CheckRateLimit(ctx, cfg.SiteID, ipBucket, cfg.RateLimit)
	if decision != enforcement.RateLimited {
		return Response{}, false
	}
	reason := "rate"
	if cfg.TestMode {
		p.Metrics.IncTestModeAction(reason)
		return Response{Status: 200, Body: "TEST MODE: would ban+block for rate limit", ContentType: "text/plain; charset=utf-8"}, true
	}
	enforcement.BanIPWithFingerprint(ctx, p.Store, cfg.SiteID, ipBucket, reason, cfg.GetBanDuration(reason), &enforcement.BanFingerprint{
		Signals: []string{"rate"},
	})
	p.Metrics.IncBan(reason)
	p.Metrics.IncBlock(reason)
	p.Metrics.IncRateLimited(cfg.SiteID)
	p.logEvent(admin.EventBan, req.IP, reason, "")
	resp := blockPage(reason)
	resp.Status = 429
	return resp, true
}

// maybeHandleGeoPolicy routes on the most-restrictive action configured for
// the request's country; maze falls back to challenge when the maze
// subsystem is disabled.
func (p *Pipeline) maybeHandleGeoPolicy(ctx context.Context, req Request, ipBucket string, geo signals.GeoAssessment) (Response, bool) {
	cfg := p.Config
	if !cfg.GeoActionEnabled() {
		return Response{}, false
	}
	switch geo.Route {
	case signals.GeoRouteBlock:
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("geo_block")
			return Response{Status: 200, Body: "TEST MODE: would block for geo policy", ContentType: "text/plain; charset=utf-8"}, true
		}
		p.Metrics.IncBlock("geo_policy")
		p.logEvent(admin.EventBlock, req.IP, "geo_policy", "country="+geo.Country)
		return blockPage("geo_policy"), true
	case signals.GeoRouteMaze:
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("geo_maze")
			return Response{Status: 200, Body: "TEST MODE: would maze for geo policy", ContentType: "text/plain; charset=utf-8"}, true
		}
		if cfg.MazeEnabled {
			return p.serveMaze(ctx, req, "/maze/geo-gate", "geo_maze", "country="+geo.Country), true
		}
		return p.serveChallenge(ctx, req, ipBucket, "geo_maze_fallback_challenge"), true
	case signals.GeoRouteChallenge:
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("geo_challenge")
			return Response{Status: 200, Body: "TEST MODE: would challenge for geo policy", ContentType: "text/plain; charset=utf-8"}, true
		}
		return p.serveChallenge(ctx, req, ipBucket, "geo_challenge"), true
	default:
		return Response{}, false
	}
}

// maybeHandleBrowser blocks outright when a listed UA family falls below
// its configured minimum version, unless whitelisted (search-engine
// crawlers).
func (p *Pipeline) maybeHandleBrowser(req Request) (Response, bool) {
	cfg := p.Config
	if !cfg.BrowserMode.EnforceEnabled() {
		return Response{}, false
	}
	if signals.IsBrowserWhitelisted(req.UserAgent, cfg.BrowserWhitelistPrefixes) {
		return Response{}, false
	}
	if !signals.IsOutdatedBrowser(req.UserAgent, cfg.BrowserBlockMinVersions) {
		return Response{}, false
	}
	reason := "browser"
	if cfg.TestMode {
		p.Metrics.IncTestModeAction(reason)
		return Response{Status: 200, Body: "TEST MODE: would block for outdated browser", ContentType: "text/plain; charset=utf-8"}, true
	}
	p.Metrics.IncBlock(reason)
	p.logEvent(admin.EventBlock, req.IP, reason, "ua="+req.UserAgent)
	return blockPage(reason), true
}

// maybeHandleIPRange applies the first matching CIDR rule's action.
func (p *Pipeline) maybeHandleIPRange(ctx context.Context, req Request, ipBucket string) (Response, bool) {
	cfg := p.Config
	if !cfg.IPRangeActionEnabled() {
		return Response{}, false
	}
	rule, ok := signals.MatchIPRange(req.IP, cfg.IPRangeRules)
	if !ok {
		return Response{}, false
	}
	switch signals.IPRangeAction(rule.Action) {
	case signals.IPRangeAllow:
		return Response{}, false
	case signals.IPRangeForbidden403:
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("ip_range_block")
			return Response{Status: 200, Body: "TEST MODE: would block for ip range rule", ContentType: "text/plain; charset=utf-8"}, true
		}
		p.Metrics.IncBlock("ip_range")
		p.logEvent(admin.EventBlock, req.IP, "ip_range", rule.CIDR)
		return blockPage("ip_range"), true
	case signals.IPRangeRedirect:
		return Response{Status: 302, Headers: map[string]string{"Location": rule.Target}}, true
	case signals.IPRangeMaze:
		if cfg.MazeEnabled {
			return p.serveMaze(ctx, req, "/maze/ip-range-gate", "ip_range_maze", rule.CIDR), true
		}
		return p.serveChallenge(ctx, req, ipBucket, "ip_range_maze_fallback_challenge"), true
	case signals.IPRangeChallenge:
		return p.serveChallenge(ctx, req, ipBucket, "ip_range_challenge"), true
	default:
		return Response{}, false
	}
}

// computeNeedsJS is skipped for /health; otherwise it delegates to the
// JS-verification signal's whitelist-aware check.
func (p *Pipeline) computeNeedsJS(req Request) bool {
	cfg := p.Config
	if !cfg.JSSignalEnabled() && !cfg.JSActionEnabled() {
		return false
	}
	if req.Path == "/health" {
		return false
	}
	return signals.NeedsJSVerificationWithWhitelist(p.Secrets.JSSecret, req.JSMarkerCookie, req.IP, req.UserAgent, cfg.BrowserWhitelistPrefixes)
}

// maybeHandleBotness gates on the composite score: maze first, then
// challenge.
func (p *Pipeline) maybeHandleBotness(ctx context.Context, req Request, ipBucket string, botness signals.BotnessAssessment) (Response, bool) {
	cfg := p.Config
	signalsSummary := signals.SignalsSummary(botness.Signals)
	stateSummary := signals.SignalStatesSummary(botness.Signals)

	if cfg.MazeEnabled && botness.Score >= cfg.BotnessMazeThreshold {
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("botness_gate_maze")
			return Response{Status: 200, Body: "TEST MODE: would maze for botness_gate_maze", ContentType: "text/plain; charset=utf-8"}, true
		}
		return p.serveMaze(ctx, req, "/maze/botness-gate", "botness_gate_maze", signalsSummary+" states="+stateSummary), true
	}
	if botness.Score >= cfg.ChallengeRiskThreshold {
		if cfg.TestMode {
			p.Metrics.IncTestModeAction("botness_gate_challenge")
			return Response{Status: 200, Body: "TEST MODE: would challenge for botness_gate_challenge", ContentType: "text/plain; charset=utf-8"}, true
		}
		p.logEvent(admin.EventChallenge, req.IP, "botness_gate_challenge", signalsSummary+" states="+stateSummary)
		return p.serveChallenge(ctx, req, ipBucket, "botness_gate_challenge"), true
	}
	return Response{}, false
}

// maybeHandleJS injects a JS verification challenge when the visitor
// hasn't carried a valid marker.
func (p *Pipeline) maybeHandleJS(ctx context.Context, req Request, ipBucket string, needsJS bool) (Response, bool) {
	cfg := p.Config
	if !cfg.JSActionEnabled() || !needsJS {
		return Response{}, false
	}
	if cfg.TestMode {
		p.Metrics.IncTestModeAction("js_verification")
		return Response{Status: 200, Body: "TEST MODE: would inject JS challenge", ContentType: "text/plain; charset=utf-8"}, true
	}
	p.Metrics.IncChallengeServed("js_verification")
	p.logEvent(admin.EventChallenge, req.IP, "js_verification", "js challenge")
	return p.serveJSChallenge(req, ipBucket)
}

// serveJSChallenge renders the PoW-solving page from internal/jsverify for
// a visitor lacking a valid JS-verification marker cookie.
func (p *Pipeline) serveJSChallenge(req Request, ipBucket string) (Response, bool) {
	cfg := p.Config
	uaBucket := ipident.BucketUA(req.UserAgent)
	operationID := newID()
	token, err := jsverify.BuildChallenge(p.Secrets.JSSecret, ipBucket, uaBucket, operationID, req.Now, int64(cfg.PoWTTLSeconds), cfg.PoWDifficulty, req.Path)
	if err != nil {
		return Response{Status: 500, Body: "js verification unavailable", ContentType: "text/plain; charset=utf-8"}, true
	}
	return htmlPage(200, jsverify.RenderPage(token, cfg.PoWDifficulty, req.Path)), true
}

// serveMaze routes a request into the maze tarpit from a fresh (unparented)
// entry, logging the admin event and metric the calling branch already
// decided to fire.
func (p *Pipeline) serveMaze(ctx context.Context, req Request, path, reason, outcome string) Response {
	p.Metrics.IncMazeHit("root")
	p.logEvent(admin.EventChallenge, req.IP, reason, outcome)
	page, err := maze.ServeRoot(p.Config, p.Secrets.MazeKey(), path, req.IP, req.UserAgent, req.Now)
	if err != nil {
		return Response{Status: 500, Body: "maze unavailable", ContentType: "text/plain; charset=utf-8"}
	}
	resp := htmlPage(200, page.HTML)
	resp.SetCookies = []string{maze.TraversalCookieName + "=" + page.Token}
	return resp
}

// serveChallenge renders a fresh puzzle challenge page for the live
// request's IP bucket, logging the admin event for whichever branch routed
// here (botness/JS branches already log a richer outcome string before
// calling in; this still records the common case for geo/ip-range routes
// that don't).
func (p *Pipeline) serveChallenge(ctx context.Context, req Request, ipBucket, reason string) Response {
	cfg := p.Config
	seedID := newID()
	rngSeed := randSeed()
	_, _, page, err := challenge.BuildChallenge(p.Secrets.ChallengeKey(), ipBucket, seedID, rngSeed, req.Now, int64(cfg.NotABotNonceTTLSeconds), cfg.ChallengeTransformCount)
	if err != nil {
		return Response{Status: 500, Body: "challenge unavailable", ContentType: "text/plain; charset=utf-8"}
	}
	p.Metrics.IncChallengeServed("challenge_puzzle")
	if reason != "botness_gate_challenge" && reason != "js_verification" {
		p.logEvent(admin.EventChallenge, req.IP, reason, "")
	}
	return htmlPage(200, page)
}

// ServeNotABot renders the not-a-bot checkbox page, used by the httpapi
// layer's GET /challenge/not-a-bot-checkbox route (kept here so the
// pipeline and the router share one construction path for the seed).
func (p *Pipeline) ServeNotABot(returnTo string, req Request) (Response, error) {
	operationID := newID()
	ipBucket := ipident.BucketIP(req.IP)
	uaBucket := ipident.BucketUA(req.UserAgent)
	seed := notabot.BuildSeed(operationID, ipBucket, uaBucket, "not_a_bot_submit", returnTo, req.Now, int64(p.Config.NotABotNonceTTLSeconds))
	token, err := notabot.MakeSeedToken(p.Secrets.ChallengeKey(), seed)
	if err != nil {
		return Response{}, err
	}
	return htmlPage(200, notabot.RenderPage(token, returnTo)), nil
}
