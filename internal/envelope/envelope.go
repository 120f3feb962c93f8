// Package envelope implements the signed-envelope protocol:
// MAC-protected payload encoding, operation-id uniqueness, ordering/window
// checks, request-binding checks, timing-cadence checks, and replay markers.
package envelope

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/ipident"
	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/logging"
)

// TokenVersionV1 is the only currently-accepted envelope version.
const TokenVersionV1 = 1

const maxOperationIDLen = 64

const (
	cadenceKeyPrefix  = "seq:cadence"
	opReplayKeyPrefix = "seq:op_seen"
)

// Flow identifiers, step identifiers and timing windows per flow.
const (
	FlowChallengePuzzle            = "challenge_puzzle"
	StepChallengePuzzleSubmit      = "puzzle_submit"
	PathClassChallengePuzzleSubmit = "challenge_puzzle_submit"
	StepIndexChallengePuzzleSubmit = 2

	MaxStepWindowSecondsChallengePuzzle           = 300
	MinStepLatencySecondsChallengePuzzle          = 1
	MaxStepLatencySecondsChallengePuzzle          = 900
	MaxFlowAgeSecondsChallengePuzzle              = 900
	TimingRegularityWindowChallengePuzzle         = 4
	TimingRegularitySpreadSecondsChallengePuzzle  = 1
	TimingHistoryTTLSecondsChallengePuzzle        = 1800
	MaxOperationReplayTTLSecondsChallengePuzzle   = 900

	FlowJSVerification   = "js_verification"
	StepJSPowVerify      = "pow_verify"
	PathClassJSPowVerify = "pow_verify"
	StepIndexJSPowVerify = 2

	MaxStepWindowSecondsJSPowVerify          = 300
	MinStepLatencySecondsJSPowVerify         = 1
	MaxStepLatencySecondsJSPowVerify         = 600
	MaxFlowAgeSecondsJSPowVerify             = 600
	TimingRegularityWindowJSPowVerify        = 4
	TimingRegularitySpreadSecondsJSPowVerify = 1
	TimingHistoryTTLSecondsJSPowVerify       = 1200
	MaxOperationReplayTTLSecondsJSPowVerify  = 600

	FlowNotABot            = "not_a_bot"
	StepNotABotSubmit      = "not_a_bot_submit"
	PathClassNotABotSubmit = "not_a_bot_submit"
	StepIndexNotABotSubmit = 2
)

// ErrorKind enumerates the envelope error taxonomy.
type ErrorKind string

const (
	ErrMissingOperationId ErrorKind = "MissingOperationId"
	ErrInvalidOperationId ErrorKind = "InvalidOperationId"
	ErrInvalidFlowId      ErrorKind = "InvalidFlowId"
	ErrInvalidStepId      ErrorKind = "InvalidStepId"
	ErrInvalidTokenVersion ErrorKind = "InvalidTokenVersion"
	ErrInvalidIssuedWindow ErrorKind = "InvalidIssuedWindow"

	ErrIpBucketMismatch   ErrorKind = "IpBucketMismatch"
	ErrUaBucketMismatch   ErrorKind = "UaBucketMismatch"
	ErrPathClassMismatch  ErrorKind = "PathClassMismatch"

	ErrOrderViolation ErrorKind = "OrderViolation"
	ErrWindowExceeded ErrorKind = "WindowExceeded"

	ErrTooFast    ErrorKind = "TooFast"
	ErrTooRegular ErrorKind = "TooRegular"
	ErrTooSlow    ErrorKind = "TooSlow"

	ErrReplayDetected  ErrorKind = "ReplayDetected"
	ErrExpiredOperation ErrorKind = "ExpiredOperation"
)

// ValidationError is a typed error carrying one ErrorKind, keeping
// validation failures in a small, per-category enum rather than ad hoc
// strings.
type ValidationError struct{ Kind ErrorKind }

func (e *ValidationError) Error() string { return string(e.Kind) }

func fail(kind ErrorKind) error { return &ValidationError{Kind: kind} }

// KindOf returns the ErrorKind carried by err and true when err is a
// *ValidationError, or "" and false for any other error.
func KindOf(err error) (ErrorKind, bool) {
	ve, ok := err.(*ValidationError)
	if !ok {
		return "", false
	}
	return ve.Kind, true
}

// Envelope is the invariant structure shared by every signed payload.
type Envelope struct {
	TokenVersion int    `json:"token_version"`
	OperationID  string `json:"operation_id"`
	FlowID       string `json:"flow_id"`
	StepID       string `json:"step_id"`
	StepIndex    int    `json:"step_index"`
	IssuedAt     int64  `json:"issued_at"`
	ExpiresAt    int64  `json:"expires_at"`
	IPBucket     string `json:"ip_bucket"`
	UABucket     string `json:"ua_bucket"`
	PathClass    string `json:"path_class"`
}

// UserAgentBucket derives the 16-hex-char UA bucket, delegating to ipident
// so there is a single implementation of the GLOSSARY definition.
func UserAgentBucket(ua string) string {
	return ipident.BucketUA(ua)
}

// ValidateSignedOperationEnvelope checks the envelope's own well-formedness,
// independent of the live request.
func ValidateSignedOperationEnvelope(
	operationID, flowID, stepID string,
	issuedAt, expiresAt int64,
	tokenVersion int,
	expectedFlowID, expectedStepID string,
) error {
	if strings.TrimSpace(operationID) == "" {
		return fail(ErrMissingOperationId)
	}
	if !isValidOperationID(operationID) {
		return fail(ErrInvalidOperationId)
	}
	if flowID != expectedFlowID {
		return fail(ErrInvalidFlowId)
	}
	if stepID != expectedStepID {
		return fail(ErrInvalidStepId)
	}
	if tokenVersion != TokenVersionV1 {
		return fail(ErrInvalidTokenVersion)
	}
	if issuedAt > expiresAt {
		return fail(ErrInvalidIssuedWindow)
	}
	return nil
}

func isValidOperationID(id string) bool {
	if len(id) > maxOperationIDLen {
		return false
	}
	for _, ch := range id {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch == '_' || ch == '-' || ch == ':':
		default:
			return false
		}
	}
	return true
}

// ValidateRequestBinding recomputes buckets from the live request and
// compares against the envelope's recorded values.
func ValidateRequestBinding(
	expectedIPBucket, expectedUABucket, expectedPathClass string,
	requestIP, requestUA, requestPathClass string,
) error {
	ipBucket := ipident.BucketIP(requestIP)
	if expectedIPBucket != ipBucket {
		return fail(ErrIpBucketMismatch)
	}
	uaBucket := ipident.BucketUA(requestUA)
	if expectedUABucket != uaBucket {
		return fail(ErrUaBucketMismatch)
	}
	if expectedPathClass != requestPathClass {
		return fail(ErrPathClassMismatch)
	}
	return nil
}

// ValidateOrderingWindow checks the flow/step identity matches expectations
// and that now still falls within the step's allotted window.
func ValidateOrderingWindow(
	flowID, stepID string,
	stepIndex int,
	issuedAt, expiresAt, now int64,
	expectedFlowID, expectedStepID string,
	expectedStepIndex int,
	maxStepWindowSeconds int64,
) error {
	if flowID != expectedFlowID || stepID != expectedStepID || stepIndex != expectedStepIndex {
		return fail(ErrOrderViolation)
	}
	stepWindowEnd := issuedAt + maxStepWindowSeconds
	if expiresAt < stepWindowEnd {
		stepWindowEnd = expiresAt
	}
	if now > stepWindowEnd {
		return fail(ErrWindowExceeded)
	}
	return nil
}

type cadenceHistoryState struct {
	ExpiresAt int64   `json:"expires_at"`
	Latencies []int64 `json:"latencies"`
}

// ValidateTimingPrimitives checks step latency bounds and maintains a
// persisted sliding-window cadence-regularity check.
func ValidateTimingPrimitives(
	ctx context.Context,
	store kvstore.Store,
	flowID, timingBucket string,
	issuedAt, now int64,
	minStepLatencySeconds, maxStepLatencySeconds, maxFlowAgeSeconds int64,
	cadenceWindowSize int,
	cadenceSpreadThresholdSeconds int64,
	cadenceHistoryTTLSeconds int64,
) error {
	if now < issuedAt {
		return fail(ErrTooFast)
	}
	latency := now - issuedAt
	if latency < minStepLatencySeconds {
		return fail(ErrTooFast)
	}
	if latency > maxStepLatencySeconds || latency > maxFlowAgeSeconds {
		return fail(ErrTooSlow)
	}

	if cadenceWindowSize < 2 || cadenceHistoryTTLSeconds == 0 || strings.TrimSpace(timingBucket) == "" {
		return nil
	}

	key := cadenceStateKey(flowID, timingBucket)
	latencies := loadCadenceLatencies(ctx, store, key, now)
	latencies = append(latencies, latency)
	for len(latencies) > cadenceWindowSize {
		latencies = latencies[1:]
	}

	tooRegular := false
	if len(latencies) >= cadenceWindowSize {
		min, max := latencies[0], latencies[0]
		for _, l := range latencies {
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		tooRegular = (max - min) <= cadenceSpreadThresholdSeconds
	}

	state := cadenceHistoryState{ExpiresAt: now + cadenceHistoryTTLSeconds, Latencies: latencies}
	if raw, err := json.Marshal(state); err == nil {
		ttl := time.Duration(cadenceHistoryTTLSeconds) * time.Second
		if err := store.Set(ctx, key, raw, ttl); err != nil {
			logging.Line("sequence", "failed to persist cadence state for key %s: %v", key, err)
		}
	}

	if tooRegular {
		return fail(ErrTooRegular)
	}
	return nil
}

func loadCadenceLatencies(ctx context.Context, store kvstore.Store, key string, now int64) []int64 {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil
	}
	var state cadenceHistoryState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil
	}
	if now > state.ExpiresAt {
		return nil
	}
	return state.Latencies
}

// ValidateOperationReplay rejects reuse of a still-tracked operation id,
// and records a fresh marker otherwise.
func ValidateOperationReplay(
	ctx context.Context,
	store kvstore.Store,
	flowID, operationID string,
	now, expiresAt, maxReplayTTLSeconds int64,
) error {
	if now > expiresAt {
		return fail(ErrExpiredOperation)
	}

	replayKey := operationReplayKey(flowID, operationID)
	if raw, err := store.Get(ctx, replayKey); err == nil {
		if seenUntil, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			if now <= seenUntil {
				return fail(ErrReplayDetected)
			}
		}
		if err := store.Delete(ctx, replayKey); err != nil {
			logging.Line("sequence", "failed to delete stale replay marker %s: %v", replayKey, err)
		}
	}

	trackUntil := now + maxReplayTTLSeconds
	if expiresAt < trackUntil {
		trackUntil = expiresAt
	}
	if trackUntil <= now {
		return fail(ErrExpiredOperation)
	}
	ttl := time.Duration(trackUntil-now) * time.Second
	if err := store.Set(ctx, replayKey, []byte(strconv.FormatInt(trackUntil, 10)), ttl); err != nil {
		logging.Line("sequence", "failed to persist replay marker %s: %v", replayKey, err)
	}
	return nil
}

func cadenceStateKey(flowID, timingBucket string) string {
	return fmt.Sprintf("%s:%s:%s", cadenceKeyPrefix, flowID, timingBucket)
}

func operationReplayKey(flowID, operationID string) string {
	return fmt.Sprintf("%s:%s:%s", opReplayKeyPrefix, flowID, operationID)
}
