package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"

	"github.com/nao1215/onionspider/internal/model"
	"github.com/nao1215/onionspider/internal/queue"
)

func init() {
	// modernc.org/sqlite registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// store implements queue.WorkQueue on top of any SQL backend whose schema
// was created by the embedded migrations. Queries are written with "?"
// placeholders and rebound for the backend's driver.
type store struct {
	db    *sqlx.DB
	clock clock.Clock

	// mu guards lastCreatedAt.
	mu            sync.Mutex
	lastCreatedAt int64
}

func newStore(db *sqlx.DB, clk clock.Clock) *store {
	if clk == nil {
		clk = clock.WallClock
	}
	return &store{db: db, clock: clk}
}

// locationRow is the scan target for location queries.
type locationRow struct {
	ID               int64  `db:"id"`
	HostID           int64  `db:"host_id"`
	Host             string `db:"base_url"`
	Path             string `db:"path"`
	LastScrapedAt    int64  `db:"last_scraped_at"`
	LastSuccessfulAt int64  `db:"last_successful_at"`
	CreatedAt        int64  `db:"created_at"`
}

func (r locationRow) toModel() model.Location {
	return model.Location{
		ID:               r.ID,
		HostID:           r.HostID,
		Host:             r.Host,
		Path:             r.Path,
		LastScrapedAt:    r.LastScrapedAt,
		LastSuccessfulAt: r.LastSuccessfulAt,
		CreatedAt:        r.CreatedAt,
	}
}

// contentRow is the scan target for content queries.
type contentRow struct {
	ID         int64  `db:"id"`
	LocationID int64  `db:"location_id"`
	ScrapedAt  int64  `db:"scraped_at"`
	Success    bool   `db:"success"`
	StatusCode int    `db:"status_code"`
	MimeType   string `db:"mime_type"`
	Title      string `db:"title"`
	Body       string `db:"body"`
}

// sessionRow is the scan target for session queries.
type sessionRow struct {
	ID         string `db:"id"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
	HopDepth   int    `db:"hop_depth"`
	Slots      int    `db:"slots"`
	Seeded     int    `db:"seeded"`
	Dispatched int    `db:"dispatched"`
	Succeeded  int    `db:"succeeded"`
	Failed     int    `db:"failed"`
	Status     string `db:"status"`
}

const selectLocation = `
	SELECT l.id, l.host_id, h.base_url, l.path, l.last_scraped_at, l.last_successful_at, l.created_at
	FROM locations l
	JOIN hosts h ON h.id = l.host_id
`

// nextCreatedAt returns a strictly increasing creation timestamp in
// unix milliseconds for this process.
func (s *store) nextCreatedAt() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.clock.Now().UnixMilli()
	if ts <= s.lastCreatedAt {
		ts = s.lastCreatedAt + 1
	}
	s.lastCreatedAt = ts
	return ts
}

// UpsertLocation implements queue.WorkQueue.
func (s *store) UpsertLocation(ctx context.Context, host, path string, scrapedAt int64, successful bool) (hostID, locationID int64, err error) {
	host = model.NormalizeHost(host)
	if host == "" {
		return 0, 0, queue.ErrInvalidLocation
	}
	path = model.NormalizePath(path)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the upsert error is more useful
		}
	}()

	hostQuery := tx.Rebind(`
	INSERT INTO hosts (base_url) VALUES (?)
	ON CONFLICT (base_url) DO UPDATE SET base_url = excluded.base_url
	RETURNING id
	`)
	if err = tx.GetContext(ctx, &hostID, hostQuery, host); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert host: %w", err)
	}

	locationQuery := tx.Rebind(`
	INSERT INTO locations (host_id, path, last_scraped_at, last_successful_at, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (host_id, path) DO UPDATE SET
		last_scraped_at = excluded.last_scraped_at,
		last_successful_at = CASE WHEN ? = 1 THEN excluded.last_scraped_at ELSE locations.last_successful_at END
	RETURNING id
	`)
	err = tx.GetContext(ctx, &locationID, locationQuery,
		hostID, path, scrapedAt, scrapedAt, s.nextCreatedAt(), boolToInt(successful))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert location: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return hostID, locationID, nil
}

// RecordContent implements queue.WorkQueue.
func (s *store) RecordContent(ctx context.Context, record model.ContentRecord) (int64, error) {
	var exists int
	err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM locations WHERE id = ?`), record.LocationID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up location: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("location %d: %w", record.LocationID, queue.ErrNotFound)
	}

	query := s.db.Rebind(`
	INSERT INTO contents (location_id, scraped_at, success, status_code, mime_type, title, body)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`)

	var id int64
	err = s.db.GetContext(ctx, &id, query,
		record.LocationID,
		record.ScrapedAt,
		record.Success,
		record.StatusCode,
		record.MimeType,
		record.Title,
		record.Body,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert content record: %w", err)
	}
	return id, nil
}

// QueryPending implements queue.WorkQueue.
func (s *store) QueryPending(ctx context.Context, q queue.PendingQuery) ([]model.Location, bool, error) {
	if q.Limit <= 0 {
		return nil, false, nil
	}

	query := selectLocation + ` WHERE l.last_scraped_at <= ?`
	args := []any{q.Threshold}
	if q.StableSince > 0 {
		query += ` OR l.last_scraped_at >= ?`
		args = append(args, q.StableSince)
	}
	query += ` ORDER BY l.created_at ASC, l.id ASC LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	var rows []locationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, false, fmt.Errorf("failed to query pending locations: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	locations := make([]model.Location, 0, len(rows))
	for _, r := range rows {
		locations = append(locations, r.toModel())
	}
	return locations, true, nil
}

// GetLocation implements queue.WorkQueue.
func (s *store) GetLocation(ctx context.Context, host, path string) (*model.Location, error) {
	query := s.db.Rebind(selectLocation + ` WHERE h.base_url = ? AND l.path = ?`)

	var row locationRow
	err := s.db.GetContext(ctx, &row, query, model.NormalizeHost(host), model.NormalizePath(path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	loc := row.toModel()
	return &loc, nil
}

// ContentHistory implements queue.WorkQueue.
func (s *store) ContentHistory(ctx context.Context, locationID int64) ([]model.ContentRecord, error) {
	query := s.db.Rebind(`
	SELECT id, location_id, scraped_at, success, status_code, mime_type, title, body
	FROM contents
	WHERE location_id = ?
	ORDER BY id ASC
	`)

	var rows []contentRow
	if err := s.db.SelectContext(ctx, &rows, query, locationID); err != nil {
		return nil, fmt.Errorf("failed to get content history: %w", err)
	}

	records := make([]model.ContentRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, model.ContentRecord(r))
	}
	return records, nil
}

// Stats implements queue.WorkQueue.
func (s *store) Stats(ctx context.Context) (queue.Stats, error) {
	var stats queue.Stats

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&stats.Hosts, `SELECT COUNT(*) FROM hosts`, nil},
		{&stats.Locations, `SELECT COUNT(*) FROM locations`, nil},
		{&stats.Pending, `SELECT COUNT(*) FROM locations WHERE last_scraped_at <= ?`, []any{model.NeverScraped}},
		{&stats.Succeeded, `SELECT COUNT(DISTINCT location_id) FROM contents WHERE success = ?`, []any{true}},
		{&stats.ContentRecords, `SELECT COUNT(*) FROM contents`, nil},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, s.db.Rebind(c.query), c.args...); err != nil {
			return queue.Stats{}, fmt.Errorf("failed to collect stats: %w", err)
		}
	}

	return stats, nil
}

// StartSession implements queue.WorkQueue.
func (s *store) StartSession(ctx context.Context, session model.CrawlSession) error {
	query := s.db.Rebind(`
	INSERT INTO crawl_sessions (id, started_at, finished_at, hop_depth, slots, seeded, dispatched, succeeded, failed, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.StartedAt,
		session.FinishedAt,
		session.HopDepth,
		session.Slots,
		session.Seeded,
		session.Dispatched,
		session.Succeeded,
		session.Failed,
		string(session.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// FinishSession implements queue.WorkQueue.
func (s *store) FinishSession(ctx context.Context, session model.CrawlSession) error {
	query := s.db.Rebind(`
	UPDATE crawl_sessions SET
		finished_at = ?, hop_depth = ?, slots = ?, seeded = ?,
		dispatched = ?, succeeded = ?, failed = ?, status = ?
	WHERE id = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		session.FinishedAt,
		session.HopDepth,
		session.Slots,
		session.Seeded,
		session.Dispatched,
		session.Succeeded,
		session.Failed,
		string(session.Status),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

// LatestSession implements queue.WorkQueue.
func (s *store) LatestSession(ctx context.Context) (*model.CrawlSession, error) {
	query := `
	SELECT id, started_at, finished_at, hop_depth, slots, seeded, dispatched, succeeded, failed, status
	FROM crawl_sessions
	ORDER BY started_at DESC
	LIMIT 1
	`

	var row sessionRow
	err := s.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}

	return &model.CrawlSession{
		ID:         row.ID,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		HopDepth:   row.HopDepth,
		Slots:      row.Slots,
		Seeded:     row.Seeded,
		Dispatched: row.Dispatched,
		Succeeded:  row.Succeeded,
		Failed:     row.Failed,
		Status:     model.SessionStatus(row.Status),
	}, nil
}

// Close closes the database connection.
func (s *store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
