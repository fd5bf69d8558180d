// Package postgres provides a PostgreSQL writer and store for expenses.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/spendscan/pkg/api"
	"github.com/ArionMiles/spendscan/pkg/writer/buffered"
)

//go:embed 001_create_expenses.sql
var migrationSQL string

// DefaultMaxPoolSize is the default maximum number of pooled connections.
const DefaultMaxPoolSize = 10

// Config holds the PostgreSQL writer configuration.
type Config struct {
	// DSN is a libpq style connection string or postgres:// URL.
	DSN string

	BatchSize     int
	FlushInterval time.Duration
	MaxPoolSize   int
}

// Writer writes expenses to a PostgreSQL database.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	buffered *buffered.Writer
}

// ErrNoDSN is returned by New when no connection string is configured.
var ErrNoDSN = errors.New("postgres: connection string is empty")

// upsertSQL keys on message_id; rows without a message id never conflict.
const upsertSQL = `
	INSERT INTO expenses (
		id, message_id, amount, merchant, category, account, note, occurred_at, source, confidence
	) VALUES ($1, NULLIF($2, ''), $3::numeric, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (message_id) DO UPDATE SET
		amount = EXCLUDED.amount,
		merchant = EXCLUDED.merchant,
		category = EXCLUDED.category,
		account = EXCLUDED.account,
		note = EXCLUDED.note,
		occurred_at = EXCLUDED.occurred_at,
		source = EXCLUDED.source,
		confidence = EXCLUDED.confidence,
		updated_at = NOW()
`

// New connects, pings and migrates the database.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = DefaultMaxPoolSize
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	w := &Writer{pool: pool, logger: logger}
	if err := w.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	w.buffered = buffered.New(w.writeBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "postgres_buffer"))

	return w, nil
}

func (w *Writer) runMigrations(ctx context.Context) error {
	w.logger.Info("running database migrations")
	if _, err := w.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

// Write consumes expenses from the channel and writes them in batches.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Expense, ackChan chan<- string) error {
	return w.buffered.Write(ctx, in, ackChan)
}

// Save upserts a single expense immediately.
func (w *Writer) Save(ctx context.Context, e *api.Expense) error {
	_, err := w.pool.Exec(ctx, upsertSQL, args(e)...)
	if err != nil {
		return fmt.Errorf("saving expense: %w", err)
	}
	return nil
}

func args(e *api.Expense) []any {
	return []any{
		e.ID,
		e.MessageID,
		e.Amount.String(),
		e.Merchant,
		e.Category,
		e.Account,
		e.Note,
		e.Timestamp,
		e.Source,
		e.Confidence,
	}
}

// writeBatch upserts every expense inside one transaction.
func (w *Writer) writeBatch(ctx context.Context, expenses []*api.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, e := range expenses {
		batch.Queue(upsertSQL, args(e)...)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range expenses {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("inserting expense %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit expenses, newest first.
func (w *Writer) Recent(ctx context.Context, limit int) ([]api.Expense, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT id::text, COALESCE(message_id, ''), amount::text, merchant, category,
			account, note, occurred_at, source, confidence
		FROM expenses
		ORDER BY occurred_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	var out []api.Expense
	for rows.Next() {
		var (
			e      api.Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &amount, &e.Merchant, &e.Category,
			&e.Account, &e.Note, &e.Timestamp, &e.Source, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection pool.
func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
		w.logger.Info("closed PostgreSQL connection pool")
	}
}
