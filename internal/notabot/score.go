package notabot

import "github.com/atomlessAK/shuma-gorath/internal/config"

// Timing bounds for the checkbox interaction itself.
const (
	InteractionMinMs = 250
	InteractionMaxMs = 180_000
	DownUpMinMs      = 25
	DownUpMaxMs      = 12_000
)

const notABotScoreCap = 10

// Telemetry range ceilings enforced before scoring: inclusive bounds for
// the posted telemetry record.
const (
	maxPointerMoveCount        = 60_000
	maxPointerPathLength       = 100_000
	maxPointerDirectionChanges = 60_000
	maxDownUpMs                = 600_000
	maxInteractionElapsedMs    = 600_000
	maxActivationCount         = 10
)

// ValidateTelemetryRanges rejects a posted telemetry record whose fields
// fall outside the bounds a legitimate client could ever produce, before
// any scoring is attempted.
func ValidateTelemetryRanges(t Telemetry) bool {
	if t.PointerMoveCount < 0 || t.PointerMoveCount > maxPointerMoveCount {
		return false
	}
	if t.PointerPathLength < 0 || t.PointerPathLength > maxPointerPathLength {
		return false
	}
	if t.PointerDirectionChanges < 0 || t.PointerDirectionChanges > maxPointerDirectionChanges {
		return false
	}
	if t.DownUpMs < 0 || t.DownUpMs > maxDownUpMs {
		return false
	}
	if t.InteractionElapsedMs < 0 || t.InteractionElapsedMs > maxInteractionElapsedMs {
		return false
	}
	if t.ActivationCount < 0 || t.ActivationCount > maxActivationCount {
		return false
	}
	switch t.ActivationMethod {
	case "pointer", "touch", "keyboard", "unknown", "":
	default:
		return false
	}
	return true
}

// gate reports whether telemetry fails one of the hard prerequisites a
// genuine checkbox click always satisfies: any failure here scores zero
// outright rather than merely losing points.
func gate(t Telemetry) bool {
	if !t.Checked || !t.EventsOrderValid || !t.ActivationTrusted {
		return false
	}
	if t.ActivationCount < 1 || t.ActivationCount > 2 {
		return false
	}
	if t.InteractionElapsedMs < InteractionMinMs || t.InteractionElapsedMs > InteractionMaxMs {
		return false
	}
	if t.DownUpMs > 0 && (t.DownUpMs < DownUpMinMs || t.DownUpMs > DownUpMaxMs) {
		return false
	}
	return true
}

// pointerMotionPlausible is the pointer-modality plausibility check: move
// count, path length, and direction changes must all fall within the
// ranges a real drag-to-click gesture produces.
func pointerMotionPlausible(t Telemetry) bool {
	return t.PointerMoveCount >= 2 && t.PointerMoveCount <= 3000 &&
		t.PointerPathLength >= 8 && t.PointerPathLength <= 80_000 &&
		t.PointerDirectionChanges >= 1 && t.PointerDirectionChanges <= 3000
}

// Score gates first (any failure => 0), then applies additive contributions
// capped at notABotScoreCap.
func Score(t Telemetry) int {
	if !gate(t) {
		return 0
	}

	score := 1 // base

	switch {
	case t.InteractionElapsedMs >= 900:
		score += 2
	case t.InteractionElapsedMs >= 500:
		score++
	}

	if t.DownUpMs >= 80 && t.DownUpMs <= 5000 {
		score++
	}

	modalityObserved := false
	switch t.ActivationMethod {
	case "pointer":
		if t.HasPointer {
			modalityObserved = true
			if pointerMotionPlausible(t) {
				score += 3
			} else if t.InteractionElapsedMs >= 1200 {
				score++
			}
		}
	case "touch":
		if t.TouchUsed {
			modalityObserved = true
			if pointerMotionPlausible(t) || t.InteractionElapsedMs >= 800 {
				score += 2
			}
		}
	case "keyboard":
		if t.KeyboardUsed {
			modalityObserved = true
			if t.ControlFocused {
				score += 3
			} else {
				score += 2
			}
		}
	case "unknown", "":
		if t.ControlFocused && t.InteractionElapsedMs >= 900 {
			score++
		}
	}

	if t.HasPointer || t.KeyboardUsed || t.TouchUsed {
		modalityObserved = true
	}
	if modalityObserved {
		score++
	}
	if t.ControlFocused {
		score++
	}
	if t.FocusChanges <= 3 && t.VisibilityChanges <= 1 {
		score++
	}

	if score > notABotScoreCap {
		score = notABotScoreCap
	}
	return score
}

// Decide maps a score to a Decision using the site's configured thresholds.
func Decide(score int, cfg *config.Config) Decision {
	if score >= cfg.NotABotPassMin {
		return DecisionPass
	}
	if score >= cfg.NotABotEscalateMin {
		return DecisionEscalatePuzzle
	}
	return DecisionMazeOrBlock
}
