package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// dbtx is the part of *pgxpool.Pool the repository uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Retention decides when a viewed message is old enough to sweep. A message
// is kept for its own timer, or DefaultTimer when it has none, plus Grace.
type Retention struct {
	DefaultTimer time.Duration
	Grace        time.Duration
}

// PostgresRepository implements domain.ItemRepository and domain.ViewRepository using PostgreSQL
type PostgresRepository struct {
	db        dbtx
	retention Retention
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool, retention Retention) *PostgresRepository {
	return newRepository(db, retention)
}

func newRepository(db dbtx, retention Retention) *PostgresRepository {
	return &PostgresRepository{db: db, retention: retention}
}

// Migrate creates missing tables. Safe to run on every start.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity for readiness checks.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
