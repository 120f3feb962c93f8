// Package challenge implements the challenge puzzle engine: seeded
// deterministic 4x4 grid puzzle generation and single-attempt grading.
package challenge

// Transform is one 4x4 grid transform. Drop* variants are deliberate aliases
// of the corresponding Shift* variant: the grid has no wraparound, so a
// shift that pushes cells off an edge already drops them, leaving nothing
// for a separate "drop" implementation to do differently.
type Transform string

const (
	ShiftUp    Transform = "shift_up"
	ShiftDown  Transform = "shift_down"
	ShiftLeft  Transform = "shift_left"
	ShiftRight Transform = "shift_right"
	RotateCW90  Transform = "rotate_cw90"
	RotateCCW90 Transform = "rotate_ccw90"
	MirrorHorizontal Transform = "mirror_horizontal"
	MirrorVertical   Transform = "mirror_vertical"
	DropTop    Transform = "drop_top"
	DropBottom Transform = "drop_bottom"
	DropLeft   Transform = "drop_left"
	DropRight  Transform = "drop_right"
)

const gridSize = 4

// Seed is the challenge seed payload, carried inside a signed
// Envelope.
type Seed struct {
	SeedID       string      `json:"seed_id"`
	IssuedAt     int64       `json:"issued_at"`
	ExpiresAt    int64       `json:"expires_at"`
	IPBucket     string      `json:"ip_bucket"`
	GridSize     int         `json:"grid_size"`
	ActiveCells  int         `json:"active_cells"`
	Transforms   []Transform `json:"transforms"`
	TrainingCount int        `json:"training_count"`
	RNGSeed      uint64      `json:"seed"`
}

// Puzzle is the pure function output of BuildPuzzle(seed).
type Puzzle struct {
	TrainingPairs [][2][]uint8 `json:"training_pairs"`
	TestInput     []uint8      `json:"test_input"`
	TestOutput    []uint8      `json:"test_output"`
	GridSize      int          `json:"grid_size"`
}

// Outcome enumerates the challenge-submit outcomes exposed to metrics.
type Outcome string

const (
	Solved        Outcome = "Solved"
	Incorrect     Outcome = "Incorrect"
	ExpiredReplay Outcome = "ExpiredReplay"
	Forbidden     Outcome = "Forbidden"
	InvalidOutput Outcome = "InvalidOutput"
)
