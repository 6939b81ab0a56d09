package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectFlagsSQL = `SELECT key, value, updated_at FROM feature_flags`

	upsertFlagSQL = `
		INSERT INTO feature_flags (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	deleteFlagSQL = `DELETE FROM feature_flags WHERE key = $1`
)

// PostgresRepository stores overrides in the feature_flags table. Values
// are JSONB so decoded numbers come back as float64, like request bodies.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	rows, err := r.pool.Query(ctx, selectFlagsSQL+` WHERE key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("query feature flag %s: %w", key, err)
	}
	flag, err := pgx.CollectExactlyOneRow(rows, scanFlag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFlagNotFound
	}
	return flag, err
}

func (r *PostgresRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	rows, err := r.pool.Query(ctx, selectFlagsSQL)
	if err != nil {
		return nil, fmt.Errorf("query feature flags: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanFlag)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]*Flag, len(list))
	for _, f := range list {
		flags[f.Key] = f
	}
	return flags, nil
}

func (r *PostgresRepository) SetFlag(ctx context.Context, flag *Flag) error {
	return r.SetFlags(ctx, []*Flag{flag})
}

// SetFlags upserts every flag in one transaction.
func (r *PostgresRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	batch := &pgx.Batch{}
	now := time.Now()
	for _, f := range flags {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("encode flag %s: %w", f.Key, err)
		}
		batch.Queue(upsertFlagSQL, f.Key, value, now)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *PostgresRepository) DeleteFlag(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, deleteFlagSQL, key)
	if err != nil {
		return fmt.Errorf("delete feature flag %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlagNotFound
	}
	return nil
}

func scanFlag(row pgx.CollectableRow) (*Flag, error) {
	var (
		flag  Flag
		value []byte
	)
	if err := row.Scan(&flag.Key, &value, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &flag.Value); err != nil {
		return nil, fmt.Errorf("decode flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

var _ Repository = (*PostgresRepository)(nil)
