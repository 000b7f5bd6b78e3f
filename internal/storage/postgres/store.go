package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairEngine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pool events, reserves and replay
// progress.
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

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutLogBatch stores encoded pool events. Records already stored are skipped,
// so a retried batch is harmless.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, lr := range logs {
		batch.Queue(`
			INSERT INTO pool_events (
				chain_id, block_number, log_index, tx_hash, pool_address, topic0, topics, data, event_ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (chain_id, block_number, log_index) DO NOTHING
		`,
			int64(lr.ChainID),
			int64(lr.BlockNumber),
			int64(lr.LogIndex),
			lr.TxHash,
			lr.Address,
			lr.Topic0(),
			lr.Topics,
			lr.Data,
			int64(lr.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPools inserts or updates pool identities.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token_a, token_b, factory, created_seq, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				factory = EXCLUDED.factory,
				created_seq = LEAST(pools.created_seq, EXCLUDED.created_seq),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.TokenA,
			pool.TokenB,
			pool.Factory,
			int64(pool.CreatedSeq),
		)
	}
	return s.sendBatch(ctx, batch)
}

// SaveReserves records pool state snapshots.
func (s *Store) SaveReserves(ctx context.Context, snapshots []model.ReserveSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_reserves (
				chain_id, pool_address, seq, reserve_a, reserve_b, total_supply,
				price_cumulative_a, price_cumulative_b, k_last, last_sync
			) VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10)
			ON CONFLICT (chain_id, pool_address, seq)
			DO UPDATE SET
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				total_supply = EXCLUDED.total_supply,
				price_cumulative_a = EXCLUDED.price_cumulative_a,
				price_cumulative_b = EXCLUDED.price_cumulative_b,
				k_last = EXCLUDED.k_last,
				last_sync = EXCLUDED.last_sync
		`,
			int64(snap.ChainID),
			snap.PoolAddress,
			int64(snap.Seq),
			snap.ReserveA,
			snap.ReserveB,
			snap.TotalSupply,
			snap.PriceCumulativeA,
			snap.PriceCumulativeB,
			snap.KLast,
			snap.LastSync,
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns the last applied replay step for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_seq FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last applied replay step for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, updated_at = now()
	`, name, int64(seq))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
