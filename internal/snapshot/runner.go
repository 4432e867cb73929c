package snapshot

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolbridge/internal/model"
	"poolbridge/internal/storage"
)

// Source is the engine-side view the runner snapshots from.
type Source interface {
	Pools() []model.Pool
	Spots() []model.Spot
	Positions() map[model.PoolID]map[common.Address]*model.Position
	Submitted() uint64
	Processed() uint64
}

// Target receives snapshots. The Postgres store satisfies this.
type Target interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertSpots(ctx context.Context, spots []model.Spot) error
	UpsertPositions(ctx context.Context, positions map[model.PoolID]map[common.Address]*model.Position) error
	Save(ctx context.Context, counters storage.Counters) error
}

// Config controls snapshot behavior.
type Config struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	StateStore   storage.StateStore
}

// Runner mirrors engine state into the target whenever the queue moves. A
// flush happens at most once per interval; events between flushes only mark
// the state dirty.
type Runner struct {
	cfg    Config
	source Source
	target Target
	logger *zap.Logger
}

func NewRunner(cfg Config, source Source, target Target, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Runner{cfg: cfg, source: source, target: target, logger: logger}
}

// Run consumes queue events until the context is cancelled. A final flush
// runs on shutdown so a clean stop loses nothing.
func (r *Runner) Run(ctx context.Context, events <-chan model.QueueEvent) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			if dirty {
				if err := r.flush(context.Background()); err != nil {
					r.logger.Error("final snapshot failed", zap.Error(err))
					return err
				}
			}
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				if dirty {
					return r.flush(context.Background())
				}
				return nil
			}
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			if err := r.flush(ctx); err != nil {
				r.logger.Error("snapshot failed", zap.Error(err))
				continue
			}
			dirty = false
		}
	}
}

// Flush writes one snapshot immediately.
func (r *Runner) Flush(ctx context.Context) error {
	return r.flush(ctx)
}

func (r *Runner) flush(ctx context.Context) error {
	counters := storage.Counters{
		Submitted: r.source.Submitted(),
		Processed: r.source.Processed(),
	}
	pools := r.source.Pools()
	spots := r.source.Spots()
	positions := r.source.Positions()

	err := storage.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.target.UpsertPools(ctx, pools); err != nil {
			return err
		}
		if err := r.target.UpsertSpots(ctx, spots); err != nil {
			return err
		}
		if err := r.target.UpsertPositions(ctx, positions); err != nil {
			return err
		}
		return r.target.Save(ctx, counters)
	})
	if err != nil {
		return err
	}

	if r.cfg.StateStore != nil {
		if err := r.cfg.StateStore.Save(ctx, counters); err != nil {
			r.logger.Warn("local state save failed", zap.Error(err))
		}
	}

	r.logger.Debug("snapshot flushed",
		zap.Uint64("submitted", counters.Submitted),
		zap.Uint64("processed", counters.Processed),
		zap.Int("pools", len(pools)),
		zap.Int("spots", len(spots)),
	)
	return nil
}
