package database

import (
	"context"
	"os"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/nao1215/onionspider/internal/queue/queuetest"
)

var (
	_ = check.Suite(new(sqliteQueueTestSuite))
	_ = check.Suite(new(postgresQueueTestSuite))
)

// Test wires the check suites into go test.
func Test(t *testing.T) {
	check.TestingT(t)
}

// sqliteQueueTestSuite runs the shared queue suite against a fresh
// SQLite file per test.
type sqliteQueueTestSuite struct {
	queuetest.BaseSuite
}

func (s *sqliteQueueTestSuite) SetUpTest(c *check.C) {
	db, err := Open(c.MkDir(), DefaultOptions())
	c.Assert(err, check.IsNil)
	s.SetQueue(db)
}

// postgresQueueTestSuite runs the shared queue suite against the database
// named by PG_DSN. Tables are truncated between tests.
type postgresQueueTestSuite struct {
	queuetest.BaseSuite
	db *PostgresDB
}

func (s *postgresQueueTestSuite) SetUpSuite(c *check.C) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		c.Skip("Missing PG_DSN envvar; skipping PostgreSQL backed test suite")
	}

	db, err := OpenPostgres(context.Background(), dsn, nil)
	c.Assert(err, check.IsNil)
	s.db = db
}

func (s *postgresQueueTestSuite) SetUpTest(c *check.C) {
	s.flushDB(c)
	s.SetQueue(s.db)
}

// TearDownTest keeps the shared connection open for the next test.
func (s *postgresQueueTestSuite) TearDownTest(c *check.C) {
	s.flushDB(c)
}

func (s *postgresQueueTestSuite) TearDownSuite(c *check.C) {
	if s.db != nil {
		c.Assert(s.db.Close(), check.IsNil)
	}
}

func (s *postgresQueueTestSuite) flushDB(c *check.C) {
	_, err := s.db.db.Exec("TRUNCATE contents, locations, hosts, crawl_sessions RESTART IDENTITY CASCADE")
	c.Assert(err, check.IsNil)
}
