package notabot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/atomlessAK/shuma-gorath/internal/config"
	"github.com/atomlessAK/shuma-gorath/internal/envelope"
	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/logging"
	"github.com/atomlessAK/shuma-gorath/internal/validate"
)

// attemptStateKey groups the per-(site, ip_bucket) fixed-window attempt counter.
func attemptStateKey(siteID, ipBucket string) string {
	return fmt.Sprintf("not_a_bot:attempt:%s:%s", siteID, ipBucket)
}

// incrementAndCheckAttemptLimit tracks a fixed window starting at the first
// attempt, reset once windowSeconds elapses, rejecting once count exceeds
// limit.
func incrementAndCheckAttemptLimit(ctx context.Context, store kvstore.Store, siteID, ipBucket string, now int64, windowSeconds int64, limit int) bool {
	key := attemptStateKey(siteID, ipBucket)
	state := AttemptState{WindowStart: now, Count: 0}
	if raw, err := store.Get(ctx, key); err == nil {
		var existing AttemptState
		if err := json.Unmarshal(raw, &existing); err == nil {
			if now-existing.WindowStart < windowSeconds {
				state = existing
			}
		}
	}
	state.Count++
	raw, err := json.Marshal(state)
	if err == nil {
		ttl := time.Duration(windowSeconds) * time.Second
		if err := store.Set(ctx, key, raw, ttl); err != nil {
			logging.Line("not_a_bot", "failed to persist attempt state for %s: %v", ipBucket, err)
		}
	}
	return state.Count <= limit
}

// usedMarkerKey guards single-use submission of a given operation id,
// reusing the same "used" idiom as challenge.Grade.
func usedMarkerKey(operationID string) string {
	return "not_a_bot_used:" + operationID
}

func markUsed(ctx context.Context, store kvstore.Store, operationID string, expiresAt, now int64) {
	ttl := time.Duration(expiresAt-now) * time.Second
	if ttl <= 0 {
		ttl = time.Second
	}
	_ = store.Set(ctx, usedMarkerKey(operationID), []byte("1"), ttl)
}

func alreadyUsed(ctx context.Context, store kvstore.Store, operationID string) bool {
	_, err := store.Get(ctx, usedMarkerKey(operationID))
	return err == nil
}

// SubmitRequest bundles the inputs Submit reads off the live request.
type SubmitRequest struct {
	SiteID      string
	RequestIP   string
	RequestUA   string
	Now         int64
	SeedTokenRaw string
	TelemetryRaw []byte
}

// Submit implements the ordered not-a-bot submission pipeline: attempt-limit,
// body size, UTF-8, seed charset/parse, envelope well-formedness, request
// binding, ordering window, timing primitives, replay, telemetry bounds,
// then score+decide.
func Submit(ctx context.Context, store kvstore.Store, secret string, cfg *config.Config, req SubmitRequest) SubmitResult {
	ipBucket := ipident.BucketIP(req.RequestIP)
	uaBucket := ipident.BucketUA(req.RequestUA)

	if !incrementAndCheckAttemptLimit(ctx, store, req.SiteID, ipBucket, req.Now, int64(cfg.NotABotAttemptWindowSec), cfg.NotABotAttemptLimit) {
		return SubmitResult{Outcome: OutcomeAttemptLimitExceeded, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
	}

	if !validate.EnforceBodySize(req.TelemetryRaw, validate.MaxChallengeFormBytes) {
		return SubmitResult{Outcome: OutcomeInvalidTelemetry, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
	}
	if !utf8.Valid(req.TelemetryRaw) {
		return SubmitResult{Outcome: OutcomeInvalidTelemetry, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
	}

	if req.SeedTokenRaw == "" {
		return SubmitResult{Outcome: OutcomeMissingSeed, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
	}
	if !validate.ValidateSeedToken(req.SeedTokenRaw) {
		return SubmitResult{Outcome: OutcomeInvalidSeed, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
	}

	seed, err := ParseSeedToken(secret, req.SeedTokenRaw)
	if err != nil {
		kind, _ := envelope.KindOf(err)
		switch kind {
		case envelope.ErrSignatureMismatch, envelope.ErrInvalidPayloadJson, envelope.ErrInvalidPayloadEncoding, envelope.ErrInvalidSignatureEncoding:
			return SubmitResult{Outcome: OutcomeInvalidSeed, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
		default:
			return SubmitResult{Outcome: OutcomeSequenceViolation, Decision: DecisionMazeOrBlock, ReturnTo: "/"}
		}
	}

	returnTo, ok := validate.NormalizeReturnTo(seed.ReturnTo, "/challenge/not-a-bot-checkbox")
	if !ok {
		returnTo = "/"
	}

	if err := envelope.ValidateSignedOperationEnvelope(
		seed.OperationID, seed.FlowID, seed.StepID, seed.IssuedAt, seed.ExpiresAt, seed.TokenVersion,
		envelope.FlowNotABot, envelope.StepNotABotSubmit,
	); err != nil {
		return SubmitResult{Outcome: OutcomeSequenceViolation, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	if err := envelope.ValidateRequestBinding(
		seed.IPBucket, seed.UABucket, seed.PathClass,
		req.RequestIP, req.RequestUA, envelope.PathClassNotABotSubmit,
	); err != nil {
		return SubmitResult{Outcome: OutcomeBindingMismatch, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	if err := envelope.ValidateOrderingWindow(
		seed.FlowID, seed.StepID, seed.StepIndex, seed.IssuedAt, seed.ExpiresAt, req.Now,
		envelope.FlowNotABot, envelope.StepNotABotSubmit, 2,
		300,
	); err != nil {
		return SubmitResult{Outcome: OutcomeSequenceViolation, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	if err := envelope.ValidateTimingPrimitives(
		ctx, store, seed.FlowID, ipBucket, seed.IssuedAt, req.Now,
		1, 600, 900,
		4, 1, 1800,
	); err != nil {
		return SubmitResult{Outcome: OutcomeExpired, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	if err := envelope.ValidateOperationReplay(ctx, store, seed.FlowID, seed.OperationID, req.Now, seed.ExpiresAt, 900); err != nil {
		return SubmitResult{Outcome: OutcomeReplay, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	if alreadyUsed(ctx, store, seed.OperationID) {
		return SubmitResult{Outcome: OutcomeReplay, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}
	markUsed(ctx, store, seed.OperationID, seed.ExpiresAt, req.Now)

	var telemetry Telemetry
	if err := json.Unmarshal(req.TelemetryRaw, &telemetry); err != nil {
		return SubmitResult{Outcome: OutcomeInvalidTelemetry, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}
	if !ValidateTelemetryRanges(telemetry) {
		return SubmitResult{Outcome: OutcomeInvalidTelemetry, Decision: DecisionMazeOrBlock, ReturnTo: returnTo}
	}

	score := Score(telemetry)
	decision := Decide(score, cfg)
	solveMs := (req.Now - seed.IssuedAt) * 1000

	result := SubmitResult{Decision: decision, ReturnTo: returnTo, SolveMs: solveMs}
	switch decision {
	case DecisionPass:
		result.Outcome = OutcomePass
		if marker, err := MintMarker(secret, req.RequestIP, req.RequestUA, time.Duration(cfg.NotABotMarkerTTLSeconds)*time.Second); err == nil {
			result.MarkerCookie = marker
		} else {
			logging.Line("not_a_bot", "failed to mint marker cookie: %v", err)
		}
	case DecisionEscalatePuzzle:
		result.Outcome = OutcomeEscalatePuzzle
	default:
		result.Outcome = OutcomeMazeOrBlock
	}
	return result
}
