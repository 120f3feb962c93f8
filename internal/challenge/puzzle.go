package challenge

import (
	"math/rand"
	"strings"
)

// allTransforms is the fixed ordered list transform selection draws a
// prefix from.
func allTransforms() []Transform {
	return []Transform{
		ShiftUp, ShiftDown, ShiftLeft, ShiftRight,
		RotateCW90, RotateCCW90, MirrorHorizontal, MirrorVertical,
	}
}

const (
	minTransformCount = 4
	maxTransformCount = 8
)

// TransformsForCount returns the first `count` (clamped to [4,8]) transforms
// from the fixed ordered list.
func TransformsForCount(count int) []Transform {
	if count < minTransformCount {
		count = minTransformCount
	}
	if count > maxTransformCount {
		count = maxTransformCount
	}
	return append([]Transform(nil), allTransforms()[:count]...)
}

func inverseTransform(t Transform) (Transform, bool) {
	switch t {
	case ShiftLeft:
		return ShiftRight, true
	case ShiftRight:
		return ShiftLeft, true
	case ShiftUp:
		return ShiftDown, true
	case ShiftDown:
		return ShiftUp, true
	case RotateCW90:
		return RotateCCW90, true
	case RotateCCW90:
		return RotateCW90, true
	default:
		return "", false
	}
}

// SelectTransformPair shuffles `available`, takes the first as the primary
// transform, then picks the second uniformly from the remainder excluding
// the primary's direct inverse.
func SelectTransformPair(rng *rand.Rand, available []Transform) []Transform {
	options := append([]Transform(nil), available...)
	rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	first := options[0]
	inverse, hasInverse := inverseTransform(first)

	var choices []Transform
	for _, c := range options[1:] {
		if hasInverse && c == inverse {
			continue
		}
		choices = append(choices, c)
	}
	second := choices[rng.Intn(len(choices))]
	return []Transform{first, second}
}

func idx(row, col, size int) int { return row*size + col }

// ApplyTransform applies a single transform to a size*size grid. Drop*
// variants share the exact arm of their Shift* counterpart.
func ApplyTransform(grid []uint8, size int, t Transform) []uint8 {
	out := make([]uint8, size*size)
	switch t {
	case RotateCW90:
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				out[idx(c, size-1-r, size)] = grid[idx(r, c, size)]
			}
		}
	case RotateCCW90:
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				out[idx(size-1-c, r, size)] = grid[idx(r, c, size)]
			}
		}
	case MirrorHorizontal:
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				out[idx(size-1-r, c, size)] = grid[idx(r, c, size)]
			}
		}
	case MirrorVertical:
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				out[idx(r, size-1-c, size)] = grid[idx(r, c, size)]
			}
		}
	case ShiftUp, DropTop:
		for r := 1; r < size; r++ {
			for c := 0; c < size; c++ {
				out[idx(r-1, c, size)] = grid[idx(r, c, size)]
			}
		}
	case ShiftDown, DropBottom:
		for r := 0; r < size-1; r++ {
			for c := 0; c < size; c++ {
				out[idx(r+1, c, size)] = grid[idx(r, c, size)]
			}
		}
	case ShiftLeft, DropLeft:
		for r := 0; r < size; r++ {
			for c := 1; c < size; c++ {
				out[idx(r, c-1, size)] = grid[idx(r, c, size)]
			}
		}
	case ShiftRight, DropRight:
		for r := 0; r < size; r++ {
			for c := 0; c < size-1; c++ {
				out[idx(r, c+1, size)] = grid[idx(r, c, size)]
			}
		}
	}
	return out
}

func applyTransforms(grid []uint8, size int, transforms []Transform) []uint8 {
	current := grid
	for _, t := range transforms {
		current = ApplyTransform(current, size, t)
	}
	return current
}

func generateGrid(rng *rand.Rand, size, active int) []uint8 {
	grid := make([]uint8, size*size)
	indices := rng.Perm(len(grid))
	activeIndices := indices[:active]

	hasOne, hasTwo := false, false
	for _, i := range activeIndices {
		val := uint8(1)
		if rng.Intn(2) == 1 {
			val = 2
		}
		if val == 1 {
			hasOne = true
		} else {
			hasTwo = true
		}
		grid[i] = val
	}
	if active >= 2 && (!hasOne || !hasTwo) {
		i := activeIndices[0]
		if hasOne {
			grid[i] = 2
		} else {
			grid[i] = 1
		}
	}
	return grid
}

const maxPairAttempts = 64

// GeneratePair retries until input != output, capped at maxPairAttempts,
// falling back to the last attempt if all collide.
func GeneratePair(rng *rand.Rand, size, active int, transforms []Transform) (input, output []uint8) {
	for i := 0; i < maxPairAttempts; i++ {
		in := generateGrid(rng, size, active)
		out := applyTransforms(in, size, transforms)
		if !equalGrid(in, out) {
			return in, out
		}
		input, output = in, out
	}
	return input, output
}

func equalGrid(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildPuzzle is a pure function of the seed.
func BuildPuzzle(seed *Seed) *Puzzle {
	size := seed.GridSize
	active := seed.ActiveCells
	rng := rand.New(rand.NewSource(int64(seed.RNGSeed)))

	pairs := make([][2][]uint8, 0, seed.TrainingCount)
	for i := 0; i < seed.TrainingCount; i++ {
		in, out := GeneratePair(rng, size, active, seed.Transforms)
		pairs = append(pairs, [2][]uint8{in, out})
	}

	var testInput, testOutput []uint8
	if len(pairs) > 0 {
		testInput, testOutput = pairs[0][0], pairs[0][1]
	} else {
		testInput, testOutput = GeneratePair(rng, size, active, seed.Transforms)
	}

	return &Puzzle{
		TrainingPairs: pairs,
		TestInput:     testInput,
		TestOutput:    testOutput,
		GridSize:      size,
	}
}

// ParseSubmission parses a strict-length tritstring ({0,1,2}^(size*size)).
func ParseSubmission(input string, size int) ([]uint8, error) {
	trimmed := strings.TrimSpace(input)
	expected := size * size
	if trimmed == "" {
		return nil, errInvalidLength
	}
	for _, ch := range trimmed {
		if ch != '0' && ch != '1' && ch != '2' {
			return nil, errInvalidFormat
		}
	}
	if len(trimmed) != expected {
		return nil, errInvalidLength
	}
	out := make([]uint8, len(trimmed))
	for i, ch := range trimmed {
		out[i] = uint8(ch - '0')
	}
	return out, nil
}

// GridSize is the fixed puzzle dimension.
const GridSize = gridSize
