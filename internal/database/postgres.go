package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/nao1215/onionspider/internal/queue"
)

// Compile-time check for the queue.WorkQueue interface.
var _ queue.WorkQueue = (*PostgresDB)(nil)

// PostgresDB is the PostgreSQL-backed Work Queue. Several crawler
// processes may share one PostgresDB; the unique constraints keep
// upserts idempotent across them.
type PostgresDB struct {
	*store
}

// OpenPostgres applies pending migrations to the database at databaseURL
// and returns a connected PostgresDB.
func OpenPostgres(ctx context.Context, databaseURL string, clk clock.Clock) (*PostgresDB, error) {
	if err := RunMigrations(DialectPostgres, databaseURL); err != nil {
		return nil, err
	}

	db, err := sql.Open(string(DialectPostgres), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresDB(db, clk), nil
}

// NewPostgresDB wraps an open PostgreSQL connection whose schema is
// already migrated.
func NewPostgresDB(db *sql.DB, clk clock.Clock) *PostgresDB {
	return &PostgresDB{store: newStore(sqlx.NewDb(db, string(DialectPostgres)), clk)}
}
