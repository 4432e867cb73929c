package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolbridge/internal/model"
	"poolbridge/internal/storage"
)

// Store provides Postgres persistence for engine snapshots and the queue
// counters.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool registry records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, vault_address, pool_type, capacity, aggregate_active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				pool_type = EXCLUDED.pool_type,
				capacity = EXCLUDED.capacity,
				aggregate_active = EXCLUDED.aggregate_active,
				updated_at = now()
		`,
			uint64(pool.ID),
			pool.Vault.Hex(),
			int16(pool.Type),
			pool.Capacity.String(),
			pool.AggregateActive.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSpots inserts or updates queue entries. Settled entries only change
// status and reason; payload fields are immutable after submission.
func (s *Store) UpsertSpots(ctx context.Context, spots []model.Spot) error {
	if len(spots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, spot := range spots {
		batch.Queue(`
			INSERT INTO spots (
				sequence, pool_id, account, vault_address, request_kind, amount, receiver, status, reason, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (sequence)
			DO UPDATE SET
				status = EXCLUDED.status,
				reason = EXCLUDED.reason,
				updated_at = now()
		`,
			spot.Sequence,
			uint64(spot.Pool),
			spot.Account.Hex(),
			spot.Vault.Hex(),
			spot.Kind.String(),
			model.FormatAmount(spot.Amount()),
			receiverOf(spot),
			spot.Status.String(),
			spot.Reason,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range spots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPositions inserts or updates ledger entries.
func (s *Store) UpsertPositions(ctx context.Context, positions map[model.PoolID]map[common.Address]*model.Position) error {
	batch := &pgx.Batch{}
	queued := 0
	for pool, accounts := range positions {
		for account, position := range accounts {
			batch.Queue(`
				INSERT INTO positions (
					pool_id, account, active_balance, pending_balance, fee_balance, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, now(), now())
				ON CONFLICT (pool_id, account)
				DO UPDATE SET
					active_balance = EXCLUDED.active_balance,
					pending_balance = EXCLUDED.pending_balance,
					fee_balance = EXCLUDED.fee_balance,
					updated_at = now()
			`,
				uint64(pool),
				account.Hex(),
				position.Active.String(),
				position.Pending.String(),
				position.Fee.String(),
			)
			queued++
		}
	}
	if queued == 0 {
		return nil
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const stateName = "settlement-queue"

// Load returns the persisted queue counters.
func (s *Store) Load(ctx context.Context) (storage.Counters, bool, error) {
	var counters storage.Counters
	row := s.pool.QueryRow(ctx, `SELECT submitted_count, processed_up_to FROM engine_state WHERE name=$1`, stateName)
	if err := row.Scan(&counters.Submitted, &counters.Processed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Counters{}, false, nil
		}
		return storage.Counters{}, false, err
	}
	return counters, true, nil
}

// Save upserts the queue counters.
func (s *Store) Save(ctx context.Context, counters storage.Counters) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, submitted_count, processed_up_to, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET submitted_count = EXCLUDED.submitted_count, processed_up_to = EXCLUDED.processed_up_to, updated_at = now()
	`, stateName, counters.Submitted, counters.Processed)
	return err
}

func receiverOf(spot model.Spot) string {
	if spot.Kind == model.KindDeposit && spot.Deposit != nil {
		return spot.Deposit.Receiver.Hex()
	}
	return ""
}
