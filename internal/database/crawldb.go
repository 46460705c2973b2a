package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/onionspider/internal/queue"
)

// FileName is the name of the SQLite database file inside the database directory.
const FileName = "onionspider.db"

// Compile-time check for the queue.WorkQueue interface.
var _ queue.WorkQueue = (*CrawlDB)(nil)

// CrawlDB is the SQLite-backed Work Queue.
// It stores hosts, locations, content records and crawl sessions in a
// single file.
type CrawlDB struct {
	*store

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that the status command can
	// read while a crawl is writing.
	EnableWAL bool

	// Clock supplies the creation timestamps of new Locations.
	// Nil means the wall clock.
	Clock clock.Clock
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir and applies pending migrations.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Migrations run on their own connection; the migrate driver closes it.
	if err := RunMigrations(DialectSQLite, "sqlite://"+filepath.ToSlash(dbPath)); err != nil {
		return nil, err
	}

	// modernc.org/sqlite applies _pragma parameters to every new connection.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sqlx.Open(string(DialectSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &CrawlDB{
		store:  newStore(db, opts.Clock),
		dbPath: dbPath,
	}, nil
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}
