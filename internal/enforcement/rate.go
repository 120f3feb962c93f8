package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
	"github.com/atomlessAK/shuma-gorath/internal/logging"
)

// rateCounterTTL spans two one-minute windows.
const rateCounterTTL = 120 * time.Second

func rateKey(siteID, ipBucket string, minute int64) string {
	return fmt.Sprintf("rate:%s:%s:%d", siteID, ipBucket, minute)
}

func currentMinute(now time.Time) int64 {
	return now.Unix() / 60
}

// RateLimitDecision is the outcome of a rate-limit check.
type RateLimitDecision string

const (
	RateAllowed RateLimitDecision = "allowed"
	RateLimited RateLimitDecision = "limited"
)

// RateBackend is the distributed-counter interface: a single
// increment-and-get plus current-usage method pair. The only implementation
// wired by default is the KV-backed local one (localRateBackend); an
// external Redis-style backend would satisfy this same interface and is
// attempted first when passed to NewRateCounter, falling back to local KV
// on any error.
type RateBackend interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CurrentUsage(ctx context.Context, key string) (int64, error)
}

// localRateBackend adapts a kvstore.Store (which already implements
// kvstore.Incrementer) to RateBackend — the always-present fallback path.
type localRateBackend struct {
	store kvstore.Store
}

func (l localRateBackend) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	inc, ok := l.store.(kvstore.Incrementer)
	if !ok {
		return 0, kvstore.ErrUnavailable
	}
	return inc.IncrementAndGet(ctx, key, ttl)
}

func (l localRateBackend) CurrentUsage(ctx context.Context, key string) (int64, error) {
	inc, ok := l.store.(kvstore.Incrementer)
	if !ok {
		return 0, kvstore.ErrUnavailable
	}
	return inc.CurrentUsage(ctx, key)
}

// RateCounter composes an optional distributed backend with the mandatory
// local KV fallback: in distributed mode a remote counter (INCR+EXPIRE) is
// attempted first; on any error, it falls back to local KV increment.
type RateCounter struct {
	Distributed RateBackend // optional; nil means KV-only
	local       localRateBackend
}

func NewRateCounter(store kvstore.Store, distributed RateBackend) *RateCounter {
	return &RateCounter{Distributed: distributed, local: localRateBackend{store: store}}
}

// CheckRateLimit increments the per-(site, ip_bucket, minute) counter and
// reports whether the caller is still within limit.
func (rc *RateCounter) CheckRateLimit(ctx context.Context, siteID, ipBucket string, limit int) RateLimitDecision {
	key := rateKey(siteID, ipBucket, currentMinute(time.Now()))

	var count int64
	var err error
	if rc.Distributed != nil {
		count, err = rc.Distributed.IncrementAndGet(ctx, key, rateCounterTTL)
		if err != nil {
			logging.Line("rate", "distributed backend unavailable for %s, falling back to local: %v", ipBucket, err)
			count, err = rc.local.IncrementAndGet(ctx, key, rateCounterTTL)
		}
	} else {
		count, err = rc.local.IncrementAndGet(ctx, key, rateCounterTTL)
	}
	if err != nil {
		logging.Line("rate", "rate counter unavailable for %s: %v", ipBucket, err)
		return RateAllowed
	}
	if int(count) > limit {
		return RateLimited
	}
	return RateAllowed
}

// CurrentRateUsage returns the current-minute count without incrementing,
// used by the botness aggregator's rate-pressure signal.
func (rc *RateCounter) CurrentRateUsage(ctx context.Context, siteID, ipBucket string) int {
	key := rateKey(siteID, ipBucket, currentMinute(time.Now()))
	var count int64
	var err error
	if rc.Distributed != nil {
		count, err = rc.Distributed.CurrentUsage(ctx, key)
		if err != nil {
			count, err = rc.local.CurrentUsage(ctx, key)
		}
	} else {
		count, err = rc.local.CurrentUsage(ctx, key)
	}
	if err != nil {
		return 0
	}
	return int(count)
}
