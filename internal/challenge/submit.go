package challenge

import (
	"context"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
)

// usedMarkerKeyPrefix yields keys shaped "challenge_used:{seed_id}".
const usedMarkerKeyPrefix = "challenge_used"

func usedMarkerKey(seedID string) string {
	return usedMarkerKeyPrefix + ":" + seedID
}

// markUsed persists a "used" marker for seedID with a TTL matching the
// seed's remaining lifetime, enforcing single-attempt semantics: the marker
// is written on submit regardless of outcome (solved or incorrect).
func markUsed(ctx context.Context, store kvstore.Store, seedID string, expiresAt, now int64) {
	ttl := time.Duration(expiresAt-now) * time.Second
	if ttl <= 0 {
		ttl = time.Second
	}
	_ = store.Set(ctx, usedMarkerKey(seedID), []byte("1"), ttl)
}

func alreadyUsed(ctx context.Context, store kvstore.Store, seedID string) bool {
	_, err := store.Get(ctx, usedMarkerKey(seedID))
	return err == nil
}

// Grade compares a submitted tritstring against the seed's pure-function
// puzzle output and enforces single-attempt semantics.
//
// submittedOutput must be a tritstring of length grid_size^2; transform1/transform2 are
// the client-submitted radio selections, compared against the seed's actual
// transform pair (a malformed pairing yields Forbidden, distinct from a
// well-formed but wrong answer).
func Grade(
	ctx context.Context,
	store kvstore.Store,
	seed *Seed,
	now int64,
	submittedOutput string,
	submittedTransform1, submittedTransform2 string,
) Outcome {
	if now > seed.ExpiresAt {
		markUsed(ctx, store, seed.SeedID, seed.ExpiresAt, now)
		return ExpiredReplay
	}
	if alreadyUsed(ctx, store, seed.SeedID) {
		return ExpiredReplay
	}

	// The used marker is written unconditionally from here on, matching
	// the single-attempt guarantee: any further submission for this
	// seed_id sees the marker, win or lose.
	markUsed(ctx, store, seed.SeedID, seed.ExpiresAt, now)

	if len(seed.Transforms) != 2 ||
		string(seed.Transforms[0]) != submittedTransform1 ||
		string(seed.Transforms[1]) != submittedTransform2 {
		return Forbidden
	}

	submitted, err := ParseSubmission(submittedOutput, seed.GridSize)
	if err != nil {
		return InvalidOutput
	}

	puzzle := BuildPuzzle(seed)
	if equalGrid(submitted, puzzle.TestOutput) {
		return Solved
	}
	return Incorrect
}
