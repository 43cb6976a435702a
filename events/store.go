package events

import (
	"context"
	"sync"

	"github.com/folio-labs/ocrflow/engine"
)

// Store persists job events for replay.
type Store interface {
	// Append stores an event.
	Append(ctx context.Context, event engine.Event) error

	// List returns events for a job, optionally filtered.
	// afterSeq: return events with Seq > afterSeq (0 means all)
	// limit: max events to return (0 means no limit)
	List(ctx context.Context, jobKey string, afterSeq uint64, limit int) ([]engine.Event, error)

	// LatestSeq returns the highest Seq for a job (0 if no events).
	LatestSeq(ctx context.Context, jobKey string) (uint64, error)
}

// MemStore is a thread-safe in-memory event store.
type MemStore struct {
	mu     sync.RWMutex
	events map[string][]engine.Event // jobKey -> events
}

// NewMemStore creates a new in-memory event store.
func NewMemStore() *MemStore {
	return &MemStore{
		events: make(map[string][]engine.Event),
	}
}

// Append stores an event.
func (s *MemStore) Append(_ context.Context, event engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.JobKey] = append(s.events[event.JobKey], event)
	return nil
}

// List returns events for a job in append order.
func (s *MemStore) List(_ context.Context, jobKey string, afterSeq uint64, limit int) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []engine.Event
	for _, e := range s.events[jobKey] {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// LatestSeq returns the highest Seq for a job.
func (s *MemStore) LatestSeq(_ context.Context, jobKey string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxSeq uint64
	for _, e := range s.events[jobKey] {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	return maxSeq, nil
}

// Ensure interface compliance at compile time.
var _ Store = (*MemStore)(nil)
