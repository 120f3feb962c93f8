// Package observability wires every decision-path counter and gauge through
// prometheus/client_golang rather than a hand-rolled text exposition format.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge the policy pipeline and its
// subsystems touch, registered once at startup against a dedicated
// registry so /metrics never leaks Go runtime defaults the operator didn't
// ask for.
type Metrics struct {
	Registry *prometheus.Registry

	BansTotal            *prometheus.CounterVec
	BlocksTotal           *prometheus.CounterVec
	ChallengesServedTotal *prometheus.CounterVec
	ChallengeOutcomeTotal *prometheus.CounterVec
	NotABotOutcomeTotal   *prometheus.CounterVec
	MazeHitsTotal         *prometheus.CounterVec
	DecoyInjectionsTotal  prometheus.Counter
	BotnessScore          prometheus.Histogram
	RateLimitedTotal      *prometheus.CounterVec
	TestModeActionsTotal  *prometheus.CounterVec
	KVUnavailableTotal    *prometheus.CounterVec
}

// New builds and registers every metric against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		BansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_bans_total",
			Help: "Total bans issued, labeled by reason.",
		}, []string{"reason"}),

		BlocksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_blocks_total",
			Help: "Total requests blocked outright, labeled by cause.",
		}, []string{"cause"}),

		ChallengesServedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_challenges_served_total",
			Help: "Total challenge pages served, labeled by flow (challenge_puzzle|js_verification).",
		}, []string{"flow"}),

		ChallengeOutcomeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_challenge_outcome_total",
			Help: "Puzzle challenge submission outcomes.",
		}, []string{"outcome"}),

		NotABotOutcomeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_not_a_bot_outcome_total",
			Help: "Not-a-bot checkbox submission outcomes.",
		}, []string{"outcome"}),

		MazeHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_maze_hits_total",
			Help: "Total maze/trap page views, labeled by entry kind (root|chained|decoy).",
		}, []string{"entry_kind"}),

		DecoyInjectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shuma_decoy_injections_total",
			Help: "Total covert decoy links injected into non-maze responses.",
		}),

		BotnessScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuma_botness_score",
			Help:    "Distribution of computed botness scores (0-10).",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),

		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_rate_limited_total",
			Help: "Total requests rejected by the rate limiter, labeled by site.",
		}, []string{"site"}),

		TestModeActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_test_mode_actions_total",
			Help: "Would-have decisions recorded in test mode, labeled by would-have action.",
		}, []string{"action"}),

		KVUnavailableTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shuma_kv_unavailable_total",
			Help: "Total KV store operations that failed, labeled by operation.",
		}, []string{"operation"}),
	}
}

// IncBan records a ban decision for the given reason.
func (m *Metrics) IncBan(reason string) { m.BansTotal.WithLabelValues(reason).Inc() }

// IncBlock records an outright block for the given cause.
func (m *Metrics) IncBlock(cause string) { m.BlocksTotal.WithLabelValues(cause).Inc() }

// IncChallengeServed records a challenge page view for the given flow.
func (m *Metrics) IncChallengeServed(flow string) {
	m.ChallengesServedTotal.WithLabelValues(flow).Inc()
}

// IncChallengeOutcome records a puzzle submission outcome.
func (m *Metrics) IncChallengeOutcome(outcome string) {
	m.ChallengeOutcomeTotal.WithLabelValues(outcome).Inc()
}

// IncNotABotOutcome records a not-a-bot submission outcome.
func (m *Metrics) IncNotABotOutcome(outcome string) {
	m.NotABotOutcomeTotal.WithLabelValues(outcome).Inc()
}

// IncMazeHit records a maze/trap page view.
func (m *Metrics) IncMazeHit(entryKind string) { m.MazeHitsTotal.WithLabelValues(entryKind).Inc() }

// IncDecoyInjection records one covert decoy injection.
func (m *Metrics) IncDecoyInjection() { m.DecoyInjectionsTotal.Inc() }

// ObserveBotness records a computed botness score.
func (m *Metrics) ObserveBotness(score int) { m.BotnessScore.Observe(float64(score)) }

// IncRateLimited records a rate-limit rejection for a site.
func (m *Metrics) IncRateLimited(siteID string) { m.RateLimitedTotal.WithLabelValues(siteID).Inc() }

// IncTestModeAction records a would-have action from the test-mode dry run.
func (m *Metrics) IncTestModeAction(action string) {
	m.TestModeActionsTotal.WithLabelValues(action).Inc()
}

// IncKVUnavailable records a failed KV operation.
func (m *Metrics) IncKVUnavailable(operation string) {
	m.KVUnavailableTotal.WithLabelValues(operation).Inc()
}
