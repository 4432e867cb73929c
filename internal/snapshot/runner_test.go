package snapshot

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"poolbridge/internal/model"
	"poolbridge/internal/storage"
)

type fakeSource struct {
	submitted uint64
	processed uint64
}

func (s *fakeSource) Pools() []model.Pool {
	return []model.Pool{{ID: 1, Type: model.PoolActive, Capacity: big.NewInt(100), AggregateActive: big.NewInt(10)}}
}

func (s *fakeSource) Spots() []model.Spot {
	return []model.Spot{{Sequence: 1, Pool: 1, Kind: model.KindDeposit, Status: model.SpotExecuted}}
}

func (s *fakeSource) Positions() map[model.PoolID]map[common.Address]*model.Position {
	return map[model.PoolID]map[common.Address]*model.Position{
		1: {common.HexToAddress("0x1001"): model.NewPosition()},
	}
}

func (s *fakeSource) Submitted() uint64 { return s.submitted }
func (s *fakeSource) Processed() uint64 { return s.processed }

type fakeTarget struct {
	mu       sync.Mutex
	flushes  int
	failures int
	saved    storage.Counters
}

func (t *fakeTarget) UpsertPools(context.Context, []model.Pool) error { return nil }
func (t *fakeTarget) UpsertSpots(context.Context, []model.Spot) error { return nil }
func (t *fakeTarget) UpsertPositions(context.Context, map[model.PoolID]map[common.Address]*model.Position) error {
	return nil
}

func (t *fakeTarget) Save(_ context.Context, counters storage.Counters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return errors.New("transient")
	}
	t.flushes++
	t.saved = counters
	return nil
}

func (t *fakeTarget) stats() (int, storage.Counters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes, t.saved
}

func TestFlushWritesCounters(t *testing.T) {
	source := &fakeSource{submitted: 7, processed: 5}
	target := &fakeTarget{}
	runner := NewRunner(Config{}, source, target, nil)

	if err := runner.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	flushes, saved := target.stats()
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
	if saved.Submitted != 7 || saved.Processed != 5 {
		t.Fatalf("saved counters = %+v", saved)
	}
}

func TestFlushRetriesTransientFailures(t *testing.T) {
	source := &fakeSource{submitted: 1}
	target := &fakeTarget{failures: 2}
	runner := NewRunner(Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, source, target, nil)

	if err := runner.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	flushes, _ := target.stats()
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
}

func TestRunFlushesDirtyStateOnShutdown(t *testing.T) {
	source := &fakeSource{submitted: 3, processed: 2}
	target := &fakeTarget{}
	runner := NewRunner(Config{Interval: time.Hour}, source, target, nil)

	events := make(chan model.QueueEvent, 1)
	events <- model.QueueEvent{Kind: model.EventSubmitted}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, events) }()

	// Give the runner a moment to consume the event, then stop it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	flushes, saved := target.stats()
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
	if saved.Submitted != 3 || saved.Processed != 2 {
		t.Fatalf("saved counters = %+v", saved)
	}
}
