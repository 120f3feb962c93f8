// Package notabot implements the checkbox not-a-bot flow: a telemetry-scored
// checkbox interaction with attempt-limit and marker cookie issuance.
package notabot

// Seed is an Envelope plus the validated return_to path.
type Seed struct {
	OperationID string `json:"operation_id"`
	FlowID      string `json:"flow_id"`
	StepID      string `json:"step_id"`
	StepIndex   int    `json:"step_index"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   int64  `json:"expires_at"`
	TokenVersion int   `json:"token_version"`
	IPBucket    string `json:"ip_bucket"`
	UABucket    string `json:"ua_bucket"`
	PathClass   string `json:"path_class"`
	ReturnTo    string `json:"return_to"`
}

// Telemetry is a bounded record of pointer motion, timing, activation
// trust/method, and focus/visibility counters.
type Telemetry struct {
	HasPointer              bool    `json:"has_pointer"`
	PointerMoveCount        int     `json:"pointer_move_count"`
	PointerPathLength       float64 `json:"pointer_path_length"`
	PointerDirectionChanges int     `json:"pointer_direction_changes"`
	DownUpMs                int     `json:"down_up_ms"`
	FocusChanges            int     `json:"focus_changes"`
	VisibilityChanges       int     `json:"visibility_changes"`
	InteractionElapsedMs    int     `json:"interaction_elapsed_ms"`
	KeyboardUsed            bool    `json:"keyboard_used"`
	TouchUsed               bool    `json:"touch_used"`
	EventsOrderValid        bool    `json:"events_order_valid"`
	ActivationMethod        string  `json:"activation_method"`
	ActivationTrusted       bool    `json:"activation_trusted"`
	ActivationCount         int     `json:"activation_count"`
	ControlFocused          bool    `json:"control_focused"`
	Checked                 bool    `json:"checked"`
}

// Decision is the outcome routing for a not-a-bot submission.
type Decision string

const (
	DecisionPass           Decision = "Pass"
	DecisionEscalatePuzzle Decision = "EscalatePuzzle"
	DecisionMazeOrBlock    Decision = "MazeOrBlock"
)

// SubmitOutcome classifies why a not-a-bot submission reached its Decision.
type SubmitOutcome string

const (
	OutcomePass                 SubmitOutcome = "Pass"
	OutcomeEscalatePuzzle        SubmitOutcome = "EscalatePuzzle"
	OutcomeMazeOrBlock           SubmitOutcome = "MazeOrBlock"
	OutcomeReplay                SubmitOutcome = "Replay"
	OutcomeInvalidSeed           SubmitOutcome = "InvalidSeed"
	OutcomeMissingSeed           SubmitOutcome = "MissingSeed"
	OutcomeExpired               SubmitOutcome = "Expired"
	OutcomeSequenceViolation     SubmitOutcome = "SequenceViolation"
	OutcomeBindingMismatch       SubmitOutcome = "BindingMismatch"
	OutcomeInvalidTelemetry      SubmitOutcome = "InvalidTelemetry"
	OutcomeAttemptLimitExceeded  SubmitOutcome = "AttemptLimitExceeded"
)

// SubmitResult is the full verdict returned from a not-a-bot submission.
type SubmitResult struct {
	Outcome      SubmitOutcome
	Decision     Decision
	ReturnTo     string
	MarkerCookie string
	SolveMs      int64
}

// AttemptState tracks the fixed attempt window for one (site, ip bucket).
type AttemptState struct {
	WindowStart int64 `json:"window_start"`
	Count       int   `json:"count"`
}
