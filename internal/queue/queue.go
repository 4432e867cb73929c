package queue

import (
	"errors"
	"fmt"
	"sync"

	"poolbridge/internal/model"
)

// ErrDrained is returned when the queue holds no pending work.
var ErrDrained = errors.New("queue drained")

// Queue is the strictly-FIFO settlement request queue. Entries are
// append-only and kept after settlement; two counters delimit pending work:
// Submitted (next free slot) and Processed (last consumed sequence).
// Sequences are 1-based, so the head sequence is always Processed+1.
type Queue struct {
	mu        sync.RWMutex
	spots     []model.Spot
	processed uint64
}

func New() *Queue {
	return &Queue{}
}

// Submitted returns the count of entries ever appended.
func (q *Queue) Submitted() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return uint64(len(q.spots))
}

// Processed returns the sequence of the last consumed entry.
func (q *Queue) Processed() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.processed
}

// Append assigns the next sequence number and enqueues the spot.
func (q *Queue) Append(spot model.Spot) model.Spot {
	q.mu.Lock()
	defer q.mu.Unlock()
	spot.Sequence = uint64(len(q.spots)) + 1
	spot.Status = model.SpotQueued
	q.spots = append(q.spots, spot)
	return spot
}

// PeekHead returns the next entry to process, or a sentinel empty spot and
// false when the queue is drained.
func (q *Queue) PeekHead() (model.Spot, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.processed >= uint64(len(q.spots)) {
		return model.Spot{}, false
	}
	return q.spots[q.processed], true
}

// Advance marks the head entry with its terminal status and moves the
// cursor forward by exactly one.
func (q *Queue) Advance(status model.SpotStatus, reason string) (model.Spot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.processed >= uint64(len(q.spots)) {
		return model.Spot{}, ErrDrained
	}
	spot := &q.spots[q.processed]
	spot.Status = status
	spot.Reason = reason
	q.processed++
	return *spot, nil
}

// Get returns the spot at a 1-based sequence, for audit reads.
func (q *Queue) Get(sequence uint64) (model.Spot, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if sequence == 0 || sequence > uint64(len(q.spots)) {
		return model.Spot{}, fmt.Errorf("sequence %d out of range", sequence)
	}
	return q.spots[sequence-1], nil
}

// Snapshot returns a copy of every entry, for persistence.
func (q *Queue) Snapshot() []model.Spot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]model.Spot, len(q.spots))
	copy(out, q.spots)
	return out
}
