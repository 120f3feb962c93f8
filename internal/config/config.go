// Package config loads the process-wide Config and Secrets once at
// startup: requireEnv fails loudly on missing required values,
// getEnvOrDefault falls back to a documented default.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Mode is a signal composability mode: off, signal-only, enforce-only, or both.
type Mode string

const (
	ModeOff     Mode = "off"
	ModeSignal  Mode = "signal"
	ModeEnforce Mode = "enforce"
	ModeBoth    Mode = "both"
)

func (m Mode) SignalEnabled() bool {
	return m == ModeSignal || m == ModeBoth
}

func (m Mode) EnforceEnabled() bool {
	return m == ModeEnforce || m == ModeBoth
}

// IPRangeRule matches a CIDR and assigns an action.
type IPRangeRule struct {
	CIDR   string
	Action string // Allow|Forbidden403|Redirect|Maze|Challenge|Custom
	Target string // redirect target, when Action == Redirect
}

// Config is the per-site, read-mostly record
type Config struct {
	SiteID string

	RateLimit  int // requests per minute per bucket
	RateMode   Mode

	BanDurationDefault int // seconds
	BanDurations       map[string]int

	Honeypots []string

	BrowserWhitelistPrefixes []string
	BrowserBlockMinVersions  map[string]int
	BrowserMode              Mode

	GeoAllow     []string
	GeoChallenge []string
	GeoMaze      []string
	GeoBlock     []string
	GeoMode      Mode

	IPRangeRules []IPRangeRule
	IPRangeMode  Mode

	JSMode         Mode
	PoWEnabled     bool
	PoWDifficulty  int
	PoWTTLSeconds  int

	FingerprintMode      Mode
	FingerprintThreshold int

	BotnessWeights          map[string]int
	ChallengeRiskThreshold  int
	BotnessMazeThreshold    int

	MazeEnabled             bool
	MazeCovertDecoysEnabled bool
	MazeTokenTTLSeconds     int
	MazeMaxDepth            int
	MazeBranchBudget        int
	MazeEntropyWindow       int
	MazeMinHiddenLinks      int
	MazeMaxHiddenLinks      int
	MazeMinParagraphs       int
	MazeMaxParagraphs       int
	MazeSegmentLength       int

	RobotsAllowSearchEngines bool

	NotABotNonceTTLSeconds  int
	NotABotMarkerTTLSeconds int
	NotABotAttemptWindowSec int
	NotABotAttemptLimit     int
	NotABotPassMin          int
	NotABotEscalateMin      int

	ChallengeTransformCount int

	TestMode     bool
	DebugHeaders bool

	KVFailOpen bool
}

// Secrets holds process-wide HMAC key material, resolved once at startup
// with the documented fallback chain: challenge -> maze -> js.
type Secrets struct {
	JSSecret          string
	ChallengeSecret   string
	MazeSecret        string
	MazePreviewSecret string
	ForwardedIPSecret string
	AdminToken        string
}

// ChallengeKey returns the HMAC key for challenge/not-a-bot envelopes.
func (s Secrets) ChallengeKey() string {
	if strings.TrimSpace(s.ChallengeSecret) != "" {
		return s.ChallengeSecret
	}
	return s.MazeKey()
}

// MazeKey returns the HMAC key for maze traversal tokens.
func (s Secrets) MazeKey() string {
	if strings.TrimSpace(s.MazeSecret) != "" {
		return s.MazeSecret
	}
	return s.JSSecret
}

// MazePreviewKey returns the HMAC key for maze expansion-seed signatures.
func (s Secrets) MazePreviewKey() string {
	if strings.TrimSpace(s.MazePreviewSecret) != "" {
		return s.MazePreviewSecret
	}
	return s.MazeKey()
}

// requireEnv fatals the process if the named variable is unset.
func requireEnv(key string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		log.Fatalf("[shuma] missing required environment variable %s", key)
	}
	return v
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// LoadSecrets resolves the process-wide HMAC secret chain. SHUMA_JS_SECRET is
// mandatory; the rest are optional overrides, empty/whitespace treated as unset.
func LoadSecrets() Secrets {
	return Secrets{
		JSSecret:          requireEnv("SHUMA_JS_SECRET"),
		ChallengeSecret:   os.Getenv("SHUMA_CHALLENGE_SECRET"),
		MazeSecret:        os.Getenv("SHUMA_MAZE_SECRET"),
		MazePreviewSecret: os.Getenv("SHUMA_MAZE_PREVIEW_SECRET"),
		ForwardedIPSecret: os.Getenv("SHUMA_FORWARDED_IP_SECRET"),
		AdminToken:        os.Getenv("SHUMA_ADMIN_TOKEN"),
	}
}

// Default returns the baseline configuration for a single site, with the
// scalar knobs overridable by environment variable for operators who don't
// wire a config-persistence UI (out of scope) in front of this; the map and
// list settings (ban durations, browser minimum versions, botness weights,
// IP-range rules) are fixed here and have no environment override.
func Default() *Config {
	return &Config{
		SiteID:    getEnvOrDefault("SHUMA_SITE_ID", "default"),
		RateLimit: getEnvInt("SHUMA_RATE_LIMIT", 120),
		RateMode:  Mode(getEnvOrDefault("SHUMA_RATE_MODE", string(ModeBoth))),

		BanDurationDefault: getEnvInt("SHUMA_BAN_DURATION_SECONDS", 3600),
		BanDurations:       map[string]int{},

		Honeypots: splitCSV(getEnvOrDefault("SHUMA_HONEYPOTS", "/wp-admin,/wp-login.php,/.env,/phpmyadmin")),

		BrowserWhitelistPrefixes: splitCSV(getEnvOrDefault("SHUMA_BROWSER_WHITELIST", "Googlebot,bingbot,Slurp")),
		BrowserBlockMinVersions: map[string]int{
			"Chrome":  90,
			"Firefox": 90,
			"Safari":  14,
			"Edge":    90,
		},
		BrowserMode: Mode(getEnvOrDefault("SHUMA_BROWSER_MODE", string(ModeEnforce))),

		GeoAllow:     splitCSV(os.Getenv("SHUMA_GEO_ALLOW")),
		GeoChallenge: splitCSV(os.Getenv("SHUMA_GEO_CHALLENGE")),
		GeoMaze:      splitCSV(os.Getenv("SHUMA_GEO_MAZE")),
		GeoBlock:     splitCSV(os.Getenv("SHUMA_GEO_BLOCK")),
		GeoMode:      Mode(getEnvOrDefault("SHUMA_GEO_MODE", string(ModeEnforce))),

		IPRangeMode: Mode(getEnvOrDefault("SHUMA_IP_RANGE_MODE", string(ModeOff))),

		JSMode:        Mode(getEnvOrDefault("SHUMA_JS_MODE", string(ModeBoth))),
		PoWEnabled:    getEnvBool("SHUMA_POW_ENABLED", true),
		PoWDifficulty: getEnvInt("SHUMA_POW_DIFFICULTY", 18),
		PoWTTLSeconds: getEnvInt("SHUMA_POW_TTL_SECONDS", 120),

		FingerprintMode:      Mode(getEnvOrDefault("SHUMA_FINGERPRINT_MODE", string(ModeSignal))),
		FingerprintThreshold: getEnvInt("SHUMA_FINGERPRINT_THRESHOLD", 6),

		BotnessWeights: map[string]int{
			"rate_medium":   2,
			"rate_high":     4,
			"js_needed":     3,
			"geo_unknown":   1,
			"geo_risk":      3,
			"fingerprint":   3,
			"browser":       2,
		},
		ChallengeRiskThreshold: getEnvInt("SHUMA_CHALLENGE_RISK_THRESHOLD", 5),
		BotnessMazeThreshold:   getEnvInt("SHUMA_BOTNESS_MAZE_THRESHOLD", 8),

		MazeEnabled:             getEnvBool("SHUMA_MAZE_ENABLED", true),
		MazeCovertDecoysEnabled: getEnvBool("SHUMA_MAZE_COVERT_DECOYS_ENABLED", true),
		MazeTokenTTLSeconds:     getEnvInt("SHUMA_MAZE_TOKEN_TTL_SECONDS", 600),
		MazeMaxDepth:            getEnvInt("SHUMA_MAZE_MAX_DEPTH", 12),
		MazeBranchBudget:        getEnvInt("SHUMA_MAZE_BRANCH_BUDGET", 6),
		MazeEntropyWindow:       getEnvInt("SHUMA_MAZE_ENTROPY_WINDOW", 60),
		MazeMinHiddenLinks:      getEnvInt("SHUMA_MAZE_MIN_HIDDEN_LINKS", 3),
		MazeMaxHiddenLinks:      getEnvInt("SHUMA_MAZE_MAX_HIDDEN_LINKS", 8),
		MazeMinParagraphs:       getEnvInt("SHUMA_MAZE_MIN_PARAGRAPHS", 2),
		MazeMaxParagraphs:       getEnvInt("SHUMA_MAZE_MAX_PARAGRAPHS", 5),
		MazeSegmentLength:       getEnvInt("SHUMA_MAZE_SEGMENT_LENGTH", 8),

		RobotsAllowSearchEngines: getEnvBool("SHUMA_ROBOTS_ALLOW_SEARCH_ENGINES", true),

		NotABotNonceTTLSeconds:  getEnvInt("SHUMA_NOTABOT_NONCE_TTL_SECONDS", 300),
		NotABotMarkerTTLSeconds: getEnvInt("SHUMA_NOTABOT_MARKER_TTL_SECONDS", 86400),
		NotABotAttemptWindowSec: getEnvInt("SHUMA_NOTABOT_ATTEMPT_WINDOW_SECONDS", 600),
		NotABotAttemptLimit:     getEnvInt("SHUMA_NOTABOT_ATTEMPT_LIMIT", 5),
		NotABotPassMin:          getEnvInt("SHUMA_NOTABOT_PASS_MIN", 7),
		NotABotEscalateMin:      getEnvInt("SHUMA_NOTABOT_ESCALATE_MIN", 4),

		ChallengeTransformCount: getEnvInt("SHUMA_CHALLENGE_TRANSFORM_COUNT", 6),

		TestMode:     getEnvBool("SHUMA_TEST_MODE", false),
		DebugHeaders: getEnvBool("SHUMA_DEBUG_HEADERS", false),

		KVFailOpen: getEnvBool("SHUMA_KV_STORE_FAIL_OPEN", false),
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetBanDuration returns the configured ban duration in seconds for reason,
// falling back to BanDurationDefault.
func (c *Config) GetBanDuration(reason string) int {
	if d, ok := c.BanDurations[reason]; ok {
		return d
	}
	return c.BanDurationDefault
}

func (c *Config) RateActionEnabled() bool  { return c.RateMode.EnforceEnabled() }
func (c *Config) GeoActionEnabled() bool   { return c.GeoMode.EnforceEnabled() }
func (c *Config) JSSignalEnabled() bool    { return c.JSMode.SignalEnabled() }
func (c *Config) JSActionEnabled() bool    { return c.JSMode.EnforceEnabled() }
func (c *Config) IPRangeActionEnabled() bool { return c.IPRangeMode.EnforceEnabled() }

// Validate performs a minimal sanity check of cross-field invariants.
func (c *Config) Validate() error {
	if c.ChallengeTransformCount < 4 || c.ChallengeTransformCount > 8 {
		return fmt.Errorf("challenge transform count must be in [4,8], got %d", c.ChallengeTransformCount)
	}
	if c.BotnessMazeThreshold < c.ChallengeRiskThreshold {
		return fmt.Errorf("botness_maze_threshold (%d) must be >= challenge_risk_threshold (%d)", c.BotnessMazeThreshold, c.ChallengeRiskThreshold)
	}
	return nil
}
