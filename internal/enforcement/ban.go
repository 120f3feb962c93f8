// Package enforcement implements the ban store and the distributed/local
// rate counter. The ban entry shape (reason + expires_at + optional
// fingerprint, keyed by site/ip_bucket) lives in the KV store rather than
// an in-process map since bans must survive across request handlers.
package enforcement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/logging"
)

// BanFingerprint is an optional annotation recorded alongside a ban
// explaining why it fired.
type BanFingerprint struct {
	Score   *int     `json:"score,omitempty"`
	Signals []string `json:"signals,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// BanEntry is the persisted record for a single active ban.
type BanEntry struct {
	Reason      string          `json:"reason"`
	ExpiresAt   int64           `json:"expires_at"`
	Fingerprint *BanFingerprint `json:"fingerprint,omitempty"`
}

func banKey(siteID, ipBucket string) string {
	return "ban:" + siteID + ":" + ipBucket
}

// BanIPWithFingerprint persists a ban entry keyed by (site, ip_bucket) with
// an explicit expiry and TTL matching the ban duration.
func BanIPWithFingerprint(ctx context.Context, store kvstore.Store, siteID, ipBucket, reason string, durationSeconds int, fingerprint *BanFingerprint) {
	now := time.Now().Unix()
	entry := BanEntry{
		Reason:      reason,
		ExpiresAt:   now + int64(durationSeconds),
		Fingerprint: fingerprint,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		logging.Line("enforcement", "failed to marshal ban entry for %s: %v", ipBucket, err)
		return
	}
	ttl := time.Duration(durationSeconds) * time.Second
	if err := store.Set(ctx, banKey(siteID, ipBucket), raw, ttl); err != nil {
		logging.Line("enforcement", "failed to persist ban for %s: %v", ipBucket, err)
	}
}

// IsBanned reports whether (site, ip_bucket) currently carries a
// non-expired ban. now > expires_at is treated as absent.
func IsBanned(ctx context.Context, store kvstore.Store, siteID, ipBucket string) bool {
	entry, ok := Lookup(ctx, store, siteID, ipBucket)
	if !ok {
		return false
	}
	return time.Now().Unix() <= entry.ExpiresAt
}

// Lookup returns the raw ban entry (even if logically expired by
// expires_at, so admin tooling can distinguish "never banned" from "ban
// expired") and whether one was found at all.
func Lookup(ctx context.Context, store kvstore.Store, siteID, ipBucket string) (BanEntry, bool) {
	raw, err := store.Get(ctx, banKey(siteID, ipBucket))
	if err != nil {
		return BanEntry{}, false
	}
	var entry BanEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return BanEntry{}, false
	}
	return entry, true
}

// UnbanIP removes a ban entry outright (admin action).
func UnbanIP(ctx context.Context, store kvstore.Store, siteID, ipBucket string) {
	if err := store.Delete(ctx, banKey(siteID, ipBucket)); err != nil {
		logging.Line("enforcement", "failed to delete ban for %s: %v", ipBucket, err)
	}
}

// ListActiveBans scans the ban prefix for siteID and returns every
// non-expired entry, keyed by ip_bucket. Used only by admin tooling — the
// hot path never scans.
func ListActiveBans(ctx context.Context, store kvstore.Store, siteID string) map[string]BanEntry {
	prefix := "ban:" + siteID + ":"
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil
	}
	now := time.Now().Unix()
	out := make(map[string]BanEntry, len(keys))
	for _, key := range keys {
		raw, err := store.Get(ctx, key)
		if err != nil {
			continue
		}
		var entry BanEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if now > entry.ExpiresAt {
			continue
		}
		out[key[len(prefix):]] = entry
	}
	return out
}
