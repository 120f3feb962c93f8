package notabot

import (
	"testing"

	"github.com/atomlessAK/shuma-gorath/internal/config"
)

func genuineTelemetry() Telemetry {
	return Telemetry{
		HasPointer:              true,
		PointerMoveCount:        6,
		PointerPathLength:       42.5,
		PointerDirectionChanges: 2,
		DownUpMs:                120,
		FocusChanges:            1,
		VisibilityChanges:       0,
		InteractionElapsedMs:    1500,
		EventsOrderValid:        true,
		ActivationMethod:        "pointer",
		ActivationTrusted:       true,
		ActivationCount:         1,
		ControlFocused:          true,
		Checked:                 true,
	}
}

func TestScoreGenuineInteractionPasses(t *testing.T) {
	cfg := config.Default()
	score := Score(genuineTelemetry())
	if score < cfg.NotABotPassMin {
		t.Fatalf("expected genuine interaction to score >= %d, got %d", cfg.NotABotPassMin, score)
	}
	if Decide(score, cfg) != DecisionPass {
		t.Fatalf("expected Pass decision, got score %d", score)
	}
}

func TestScoreGateFailureIsZero(t *testing.T) {
	tel := genuineTelemetry()
	tel.ActivationTrusted = false
	if got := Score(tel); got != 0 {
		t.Fatalf("expected untrusted activation to score 0, got %d", got)
	}

	tel = genuineTelemetry()
	tel.Checked = false
	if got := Score(tel); got != 0 {
		t.Fatalf("expected unchecked box to score 0, got %d", got)
	}

	tel = genuineTelemetry()
	tel.InteractionElapsedMs = InteractionMinMs - 1
	if got := Score(tel); got != 0 {
		t.Fatalf("expected too-fast interaction to score 0, got %d", got)
	}

	tel = genuineTelemetry()
	tel.ActivationCount = 3
	if got := Score(tel); got != 0 {
		t.Fatalf("expected multi-activation to score 0, got %d", got)
	}
}

func TestScoreCappedAtTen(t *testing.T) {
	tel := genuineTelemetry()
	tel.PointerDirectionChanges = 100
	tel.KeyboardUsed = true
	tel.TouchUsed = true
	if got := Score(tel); got > notABotScoreCap {
		t.Fatalf("expected score capped at %d, got %d", notABotScoreCap, got)
	}
}

func TestDecideThresholds(t *testing.T) {
	cfg := config.Default()
	if Decide(cfg.NotABotEscalateMin, cfg) != DecisionEscalatePuzzle {
		t.Fatalf("expected escalate at escalate_min threshold")
	}
	if Decide(cfg.NotABotEscalateMin-1, cfg) != DecisionMazeOrBlock {
		t.Fatalf("expected maze_or_block below escalate_min")
	}
	if Decide(cfg.NotABotPassMin, cfg) != DecisionPass {
		t.Fatalf("expected pass at pass_min threshold")
	}
}
