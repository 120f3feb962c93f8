package challenge

import (
	"fmt"
	"math/rand"
	"strings"
)

// RenderPage renders the minimal challenge HTML page: two radio groups
// named transform_1/transform_2, a hidden seed field, served with
// Cache-Control: no-store. A constant-string template — the surrounding
// chrome (CSS, copy) is deliberately minimal since page styling is an
// external collaborator concern, not a core behavior under test.
func RenderPage(seedToken string, puzzle *Puzzle, transforms []Transform) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Verification</title></head><body>\n")
	b.WriteString("<h2>Complete the pattern</h2>\n")
	b.WriteString(renderGrid("Example input", puzzle.TestInput, puzzle.GridSize))
	if len(puzzle.TrainingPairs) > 0 {
		b.WriteString(renderGrid("Example output", puzzle.TrainingPairs[0][1], puzzle.GridSize))
	}
	b.WriteString(fmt.Sprintf("<form method='POST' action='/challenge/puzzle'>\n"))
	b.WriteString(fmt.Sprintf("<input type='hidden' name='seed' value='%s'>\n", seedToken))
	b.WriteString("<fieldset><legend>transform_1</legend>\n")
	for _, t := range transforms {
		b.WriteString(fmt.Sprintf("<label><input type='radio' name='transform_1' value='%s'>%s</label>\n", t, t))
	}
	b.WriteString("</fieldset>\n<fieldset><legend>transform_2</legend>\n")
	for _, t := range transforms {
		b.WriteString(fmt.Sprintf("<label><input type='radio' name='transform_2' value='%s'>%s</label>\n", t, t))
	}
	b.WriteString("</fieldset>\n")
	b.WriteString("<input type='text' name='output' placeholder='0120...'>\n")
	b.WriteString("<button type='submit'>Submit</button>\n</form>\n</body></html>")
	return b.String()
}

func renderGrid(label string, grid []uint8, size int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<div class='grid' data-label='%s'>", label))
	for r := 0; r < size; r++ {
		b.WriteString("<div class='row'>")
		for c := 0; c < size; c++ {
			b.WriteString(fmt.Sprintf("<span class='cell v%d'></span>", grid[idx(r, c, size)]))
		}
		b.WriteString("</div>")
	}
	b.WriteString("</div>")
	return b.String()
}

// BuildChallenge assembles a fresh seed + puzzle + rendered page for GET
// /challenge/puzzle, selecting a random transform pair from the configured
// transform count.
func BuildChallenge(secret string, ipBucket string, seedID string, rngSeed uint64, issuedAt, ttlSeconds int64, transformCount int) (*Seed, *Puzzle, string, error) {
	available := TransformsForCount(transformCount)
	rng := rand.New(rand.NewSource(int64(rngSeed)))
	pair := SelectTransformPair(rng, available)

	seed := &Seed{
		SeedID:        seedID,
		IssuedAt:      issuedAt,
		ExpiresAt:     issuedAt + ttlSeconds,
		IPBucket:      ipBucket,
		GridSize:      GridSize,
		ActiveCells:   7,
		Transforms:    pair,
		TrainingCount: 3,
		RNGSeed:       rngSeed,
	}
	puzzle := BuildPuzzle(seed)
	token, err := MakeSeedToken(secret, seed)
	if err != nil {
		return nil, nil, "", err
	}
	page := RenderPage(token, puzzle, available)
	return seed, puzzle, page, nil
}
