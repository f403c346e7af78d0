package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"tower_bot/internal/models"
)

const (
	createWatermarkTable = `CREATE TABLE IF NOT EXISTS bot_watermarks (
	stream TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectWatermark = `SELECT value FROM bot_watermarks WHERE stream = $1`
	upsertWatermark = `INSERT INTO bot_watermarks (stream, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (stream) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// OpenPostgres connects, pings and creates the watermark table if needed.
func OpenPostgres(ctx context.Context, url string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	b := NewPostgresBackend(db)
	if err := b.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, createWatermarkTable); err != nil {
		return fmt.Errorf("create watermark table: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Load(ctx context.Context, stream models.Stream) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, selectWatermark, string(stream)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *PostgresBackend) Save(ctx context.Context, stream models.Stream, value string) error {
	_, err := b.db.ExecContext(ctx, upsertWatermark, string(stream), value)
	return err
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
