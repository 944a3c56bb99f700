// Package store holds the per-camera shared state between one camera
// worker (the single writer) and the query surface (many readers): the
// bounded crossing-event log with its occupancy counters, and the
// latest-frame distribution buffer.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"occupancy-service/internal/domain/occupancy"
)

// DefaultEventCapacity bounds the in-memory event log when no capacity
// is configured. The log bounds memory, not counter correctness.
const DefaultEventCapacity = 1000

// EventStore is the per-camera event log plus running counters. Exactly
// one worker writes; any number of readers may snapshot concurrently
// and never observe a torn entered/exited pair.
type EventStore struct {
	mu       sync.RWMutex
	cameraID string
	capacity int

	// ring of events, oldest at head, size entries used.
	events []occupancy.CrossingEvent
	head   int
	size   int

	entered uint64
	exited  uint64
}

// NewEventStore creates a store for one camera with the given log
// capacity (DefaultEventCapacity when <= 0).
func NewEventStore(cameraID string, capacity int) *EventStore {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventStore{
		cameraID: cameraID,
		capacity: capacity,
		events:   make([]occupancy.CrossingEvent, capacity),
	}
}

// Record appends a crossing event and bumps the matching counter in the
// same critical section, so counts and log stay in step. When the log
// is at capacity the oldest event is dropped silently; counters are
// unaffected by log retention. The created event is returned so callers
// can hand it to an archive sink.
func (s *EventStore) Record(direction occupancy.Direction, trackID int, ts time.Time) occupancy.CrossingEvent {
	ev := occupancy.CrossingEvent{
		ID:        uuid.NewString(),
		CameraID:  s.cameraID,
		TrackID:   trackID,
		Direction: direction,
		Timestamp: ts,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.head + s.size) % s.capacity
	s.events[idx] = ev
	if s.size < s.capacity {
		s.size++
	} else {
		s.head = (s.head + 1) % s.capacity
	}

	if direction == occupancy.DirectionIn {
		s.entered++
	} else {
		s.exited++
	}
	return ev
}

// SnapshotCounts returns a consistent point-in-time triple. Current is
// computed from the same snapshot, never from counters that may have
// advanced since.
func (s *EventStore) SnapshotCounts() occupancy.Counts {
	s.mu.RLock()
	entered, exited := s.entered, s.exited
	s.mu.RUnlock()

	c := occupancy.Counts{Entered: entered, Exited: exited}
	if entered > exited {
		c.Current = entered - exited
	}
	return c
}

// RecentEvents returns up to limit events, most recent first. Read-only
// and bounded by both limit and log capacity.
func (s *EventStore) RecentEvents(limit int) []occupancy.CrossingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]occupancy.CrossingEvent, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head + s.size - 1 - i + s.capacity) % s.capacity
		out = append(out, s.events[idx])
	}
	return out
}
