package chkbookmark

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV is the production KV backing the bookmark store. It is
// grounded on the teacher's Postgres store: a pgxpool.Pool, a Ping-then-
// ensureSchema constructor, and pool.BeginTx for the multi-key
// transactional write.
type PostgresKV struct {
	pool *pgxpool.Pool
}

// NewPostgresKV opens a pool against dsn, verifies connectivity, and
// ensures the single bookmarks table exists.
func NewPostgresKV(ctx context.Context, dsn string) (*PostgresKV, error) {
	if dsn == "" {
		return nil, fmt.Errorf("chkbookmark: postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("chkbookmark: create postgres pool: %w", err)
	}

	kv := &PostgresKV{pool: pool}

	if err := kv.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("chkbookmark: ping postgres: %w", err)
	}
	if err := kv.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return kv, nil
}

func (k *PostgresKV) ensureSchema(ctx context.Context) error {
	_, err := k.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS chk_bookmarks (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("chkbookmark: ensure schema: %w", err)
	}
	return nil
}

func (k *PostgresKV) Upsert(ctx context.Context, key string, value []byte) error {
	_, err := k.pool.Exec(ctx, `INSERT INTO chk_bookmarks (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}

func (k *PostgresKV) UpsertMany(ctx context.Context, kv map[string][]byte) error {
	tx, err := k.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("chkbookmark: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for key, value := range kv {
		if _, err := tx.Exec(ctx, `INSERT INTO chk_bookmarks (key, value, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value); err != nil {
			return fmt.Errorf("chkbookmark: upsert %s: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

func (k *PostgresKV) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := k.pool.QueryRow(ctx, `SELECT value FROM chk_bookmarks WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (k *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := k.pool.Exec(ctx, `DELETE FROM chk_bookmarks WHERE key = $1`, key)
	return err
}

func (k *PostgresKV) Traverse(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	rows, err := k.pool.Query(ctx, `SELECT key, value FROM chk_bookmarks WHERE key LIKE $1`, prefix+"%")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (k *PostgresKV) Close() error {
	k.pool.Close()
	return nil
}
