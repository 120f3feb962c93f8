package signals

import (
	"github.com/atomlessAK/shuma-gorath/internal/config"
)

// Availability is the per-signal tri-state: Active means the signal fired
// and contributed its configured weight; Disabled means it contributed
// nothing, either because its composability mode has it turned off entirely
// or because it was evaluated and did not fire; Unavailable means the mode
// allows scoring but the underlying data (e.g. untrusted geo headers)
// wasn't present this request.
type Availability string

const (
	Active      Availability = "Active"
	Disabled    Availability = "Disabled"
	Unavailable Availability = "Unavailable"
)

// BotSignal is one contribution to the composite score, always reported
// (even when inactive) so the admin/observability surface can show every
// signal's state.
type BotSignal struct {
	Key          string       `json:"key"`
	Label        string       `json:"label"`
	Availability Availability `json:"availability"`
	Active       bool         `json:"active"`
	Contribution int          `json:"contribution"`
}

// Scored builds a BotSignal whose availability is Active/Disabled
// (never Unavailable) depending on whether it actually fired.
func Scored(key, label string, fired bool, weight int) BotSignal {
	if fired {
		return BotSignal{Key: key, Label: label, Availability: Active, Active: true, Contribution: weight}
	}
	return BotSignal{Key: key, Label: label, Availability: Disabled, Active: false, Contribution: 0}
}

// UnavailableSignal builds a BotSignal whose underlying data wasn't present
// this request (e.g. untrusted/missing geo headers).
func UnavailableSignal(key, label string) BotSignal {
	return BotSignal{Key: key, Label: label, Availability: Unavailable, Active: false, Contribution: 0}
}

// Off builds a BotSignal for a signal whose composability mode is "off" —
// it never contributes and is never even evaluated.
func Off(key, label string) BotSignal {
	return BotSignal{Key: key, Label: label, Availability: Disabled, Active: false, Contribution: 0}
}

// Accumulator tracks a running, cap-saturating score and the ordered list
// of signals that contributed to it.
type Accumulator struct {
	score   int
	signals []BotSignal
}

const scoreCap = 10

func NewAccumulator(capacityHint int) *Accumulator {
	return &Accumulator{signals: make([]BotSignal, 0, capacityHint)}
}

func (a *Accumulator) Push(signal BotSignal) {
	a.score += signal.Contribution
	if a.score > scoreCap {
		a.score = scoreCap
	}
	if a.score < 0 {
		a.score = 0
	}
	a.signals = append(a.signals, signal)
}

func (a *Accumulator) Finish() (int, []BotSignal) {
	return a.score, a.signals
}

// BotnessSignalContext bundles the inputs the pipeline gathers before
// scoring.
type BotnessSignalContext struct {
	JSNeeded            bool
	GeoSignalAvailable   bool
	GeoRisk             bool
	RateCount           int
	RateLimit           int
}

// BotnessAssessment is the composite score plus the signals that produced
// it.
type BotnessAssessment struct {
	Score   int
	Signals []BotSignal
}

func weight(cfg *config.Config, key string, fallback int) int {
	if w, ok := cfg.BotnessWeights[key]; ok {
		return w
	}
	return fallback
}

// ComputeBotnessAssessment scores each signal only when its composability
// mode has scoring enabled ("signal"/"both"); rate pressure contributes two
// independently-weighted bands (medium at >=50%, high at >=87.5% of the
// limit).
func ComputeBotnessAssessment(ctx BotnessSignalContext, cfg *config.Config) BotnessAssessment {
	acc := NewAccumulator(6)

	if cfg.RateMode.SignalEnabled() && cfg.RateLimit > 0 {
		medium := ctx.RateCount >= int(float64(ctx.RateLimit)*0.5)
		high := ctx.RateCount >= int(float64(ctx.RateLimit)*0.875)
		acc.Push(Scored("rate_medium", "Elevated request rate", medium, weight(cfg, "rate_medium", 2)))
		acc.Push(Scored("rate_high", "High request rate", high, weight(cfg, "rate_high", 4)))
	} else {
		acc.Push(Off("rate_medium", "Elevated request rate"))
		acc.Push(Off("rate_high", "High request rate"))
	}

	if cfg.JSMode.SignalEnabled() {
		acc.Push(Scored("js_needed", "Missing JS verification", ctx.JSNeeded, weight(cfg, "js_needed", 3)))
	} else {
		acc.Push(Off("js_needed", "Missing JS verification"))
	}

	if cfg.GeoMode.SignalEnabled() {
		if !ctx.GeoSignalAvailable {
			acc.Push(UnavailableSignal("geo_risk", "High-risk geography"))
		} else {
			acc.Push(Scored("geo_risk", "High-risk geography", ctx.GeoRisk, weight(cfg, "geo_risk", 3)))
		}
	} else {
		acc.Push(Off("geo_risk", "High-risk geography"))
	}

	score, signals := acc.Finish()
	return BotnessAssessment{Score: score, Signals: signals}
}

// SignalsSummary renders "key=1" (fired) or "key=0" pairs for admin/log output.
func SignalsSummary(signals []BotSignal) string {
	out := ""
	for i, s := range signals {
		if i > 0 {
			out += ","
		}
		out += s.Key + "="
		if s.Active {
			out += "1"
		} else {
			out += "0"
		}
	}
	return out
}

// SignalStatesSummary renders "key:availability" pairs.
func SignalStatesSummary(signals []BotSignal) string {
	out := ""
	for i, s := range signals {
		if i > 0 {
			out += ","
		}
		out += s.Key + ":" + string(s.Availability)
	}
	return out
}
