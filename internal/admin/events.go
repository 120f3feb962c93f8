// Package admin implements the event-log sink the policy pipeline writes to
// on every ban/block/challenge decision. The admin console UI itself stays
// out of scope; only the event-sink contract and a live websocket feed are
// implemented here.
package admin

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atomlessAK/shuma-gorath/internal/kvstore"
)

// EventType classifies an entry written to the event log.
type EventType string

const (
	EventBan       EventType = "ban"
	EventBlock     EventType = "block"
	EventChallenge EventType = "challenge"
)

// EventLogEntry is a single decision recorded for the admin feed.
type EventLogEntry struct {
	ID      string    `json:"id"`
	Ts      int64     `json:"ts"`
	Event   EventType `json:"event"`
	IP      string    `json:"ip,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Admin   string    `json:"admin,omitempty"`
}

// NowTS returns the current unix timestamp in seconds, used for envelope
// issued_at/now comparisons and event-log entries alike.
func NowTS() int64 { return time.Now().Unix() }

// Sink is the narrow interface the policy pipeline depends on.
type Sink interface {
	Record(ctx context.Context, entry EventLogEntry)
}

const ringBufferLimit = 1000
const ringBufferKey = "admin:events"

// KVSink persists a bounded ring buffer (last ringBufferLimit entries) in
// the KV store, evicting oldest-first once the limit is exceeded.
type KVSink struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewKVSink(store kvstore.Store) *KVSink {
	return &KVSink{store: store}
}

func (s *KVSink) Record(ctx context.Context, entry EventLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load(ctx)
	entries = append(entries, entry)
	if len(entries) > ringBufferLimit {
		entries = entries[len(entries)-ringBufferLimit:]
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	_ = s.store.Set(ctx, ringBufferKey, raw, 0)
}

func (s *KVSink) load(ctx context.Context) []EventLogEntry {
	raw, err := s.store.Get(ctx, ringBufferKey)
	if err != nil {
		return nil
	}
	var entries []EventLogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

// Recent returns up to n most recent events, newest last.
func (s *KVSink) Recent(ctx context.Context, n int) []EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load(ctx)
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries
}

// Multi fans a single Record call out to several sinks (used to combine the
// KV ring buffer with the websocket live stream).
type Multi struct {
	Sinks []Sink
}

func (m Multi) Record(ctx context.Context, entry EventLogEntry) {
	for _, s := range m.Sinks {
		s.Record(ctx, entry)
	}
}
