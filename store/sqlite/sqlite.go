/*
Package sqlite provides the SQLite-backed availability.Store.

PURPOSE:
  Production persistence for the roster and interval tables. SQLite fits
  the deployment (one station, one scraper process, a handful of API
  readers); the same SQL moves to PostgreSQL with only dialect changes.

SCHEMA INVARIANTS, ENFORCED IN THE DATABASE:
  - intervals PRIMARY KEY (resource_id, start_time): no duplicate starts
    per resource
  - CHECK (start_time < end_time): zero-length rows cannot exist
  - coverage PRIMARY KEY (resource_id, day): one stamp per day

UPSERT ATOMICITY:
  Upsert runs select-overlapping, delete-replaced, insert-merged inside
  one transaction. With WAL mode, readers either see the pre-merge rows
  or the post-merge rows, never the gap between delete and insert.

TIME ENCODING:
  Instants are stored as "2006-01-02 15:04:05" strings with no zone
  suffix and compared lexically, which is correct for that format. The
  portal, the scraper and the store share one local clock; nothing here
  converts timezones. Decoding re-attaches the store's location (the
  process zone by default, New), so a stored 08:15 comes back as the
  same instant it went in. NewInLocation pins a different zone, which
  tests use for determinism.

CONCURRENCY:
  sync.RWMutex serializes writes in-process on top of SQLite's own
  locking. One scrape run writes at a time; queries take the read lock.

USAGE:
  st, err := sqlite.New("./data/availability.db")  // ":memory:" for tests
  defer st.Close()

SEE ALSO:
  - availability/store.go: Interface contracts
  - availability/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stationwatch/availability-engine/availability"
)

const timeFormat = "2006-01-02 15:04:05"

// Store implements availability.Store using SQLite.
type Store struct {
	db  *sql.DB
	loc *time.Location
	mu  sync.RWMutex
}

// New opens (or creates) the database and migrates the schema, decoding
// stored timestamps in the process's local zone. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	return NewInLocation(dbPath, time.Local)
}

// NewInLocation opens the database with stored timestamps interpreted in
// the given location. The location must match the clock the writers use;
// rows carry no zone of their own.
func NewInLocation(dbPath string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, loc: loc}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema.
func (s *Store) migrate() error {
	schema := `
	-- Roster: crew members and appliances, written once per import
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		skills TEXT NOT NULL DEFAULT '',
		contract_hours TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_resources_kind ON resources(kind);

	-- Availability intervals. The primary key forbids duplicate starts
	-- per resource; the check forbids zero-length rows. Non-overlap and
	-- non-adjacency are maintained by Upsert's re-coalescing.
	CREATE TABLE IF NOT EXISTS intervals (
		resource_id TEXT NOT NULL REFERENCES resources(id),
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		PRIMARY KEY (resource_id, start_time),
		CHECK (start_time < end_time)
	);

	-- Hot path: Covering and NextStart scans
	CREATE INDEX IF NOT EXISTS idx_intervals_resource_end
		ON intervals(resource_id, end_time);

	-- One stamp per (resource, day): when the day's data was populated
	CREATE TABLE IF NOT EXISTS coverage (
		resource_id TEXT NOT NULL,
		day TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (resource_id, day)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESOURCE STORE
// =============================================================================

func (s *Store) UpsertResources(ctx context.Context, resources []availability.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resources (id, kind, name, role, skills, contract_hours)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, role=excluded.role,
			skills=excluded.skills, contract_hours=excluded.contract_hours`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range resources {
		if _, err := stmt.ExecContext(ctx, string(r.ID), string(r.Kind), r.Name,
			string(r.Role), encodeSkills(r.Skills), r.ContractHours); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Resource(ctx context.Context, id availability.ResourceID) (availability.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, name, role, skills, contract_hours
		FROM resources WHERE id = ?`, string(id))

	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return availability.Resource{}, &availability.NotFoundError{Resource: id}
	}
	return r, err
}

func (s *Store) Resources(ctx context.Context, kind availability.ResourceKind) ([]availability.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, role, skills, contract_hours
		FROM resources WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (availability.Resource, error) {
	var r availability.Resource
	var id, kind, role, skills string
	if err := row.Scan(&id, &kind, &r.Name, &role, &skills, &r.ContractHours); err != nil {
		return availability.Resource{}, err
	}
	r.ID = availability.ResourceID(id)
	r.Kind = availability.ResourceKind(kind)
	r.Role = availability.Role(role)
	r.Skills = availability.ParseSkills(skills)
	return r, nil
}

// encodeSkills renders a SkillSet in the roster's space-separated form,
// sorted for stable storage.
func encodeSkills(skills availability.SkillSet) string {
	parts := make([]string, 0, len(skills))
	for _, sk := range skills.Slice() {
		parts = append(parts, string(sk))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// =============================================================================
// INTERVAL STORE
// =============================================================================

// Upsert merges intervals into the stored set for one resource. The
// select/delete/insert sequence runs in a single transaction so readers
// never observe the state between "replaced rows deleted" and "merged
// rows inserted".
func (s *Store) Upsert(ctx context.Context, id availability.ResourceID, intervals []availability.Interval) (int, error) {
	if len(intervals) == 0 {
		return 0, nil
	}
	for _, iv := range intervals {
		if err := iv.Validate(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Window touched by the incoming batch.
	span := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Start.Before(span.Start) {
			span.Start = iv.Start
		}
		if iv.End.After(span.End) {
			span.End = iv.End
		}
	}

	// Rows overlapping or abutting the window get replaced by the merge.
	affected := append([]availability.Interval(nil), intervals...)
	rows, err := tx.QueryContext(ctx, `
		SELECT start_time, end_time FROM intervals
		WHERE resource_id = ? AND start_time <= ? AND end_time >= ?`,
		string(id), encodeTime(span.End), encodeTime(span.Start))
	if err != nil {
		return 0, err
	}
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			rows.Close()
			return 0, err
		}
		iv, err := s.decodeInterval(id, start, end)
		if err != nil {
			rows.Close()
			return 0, err
		}
		affected = append(affected, iv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	merged := availability.CoalesceIntervals(affected)

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM intervals
		WHERE resource_id = ? AND start_time <= ? AND end_time >= ?`,
		string(id), encodeTime(span.End), encodeTime(span.Start)); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO intervals (resource_id, start_time, end_time) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, iv := range merged {
		if _, err := stmt.ExecContext(ctx, string(id), encodeTime(iv.Start), encodeTime(iv.End)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(merged), nil
}

func (s *Store) Covering(ctx context.Context, id availability.ResourceID, at time.Time) (availability.Interval, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT start_time, end_time FROM intervals
		WHERE resource_id = ? AND start_time <= ? AND end_time > ?
		LIMIT 1`, string(id), encodeTime(at), encodeTime(at))

	return s.scanInterval(row, id)
}

func (s *Store) InRange(ctx context.Context, id availability.ResourceID, from, to time.Time) ([]availability.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, end_time FROM intervals
		WHERE resource_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`, string(id), encodeTime(to), encodeTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var start, end string
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		iv, err := s.decodeInterval(id, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *Store) NextStart(ctx context.Context, id availability.ResourceID, after time.Time) (availability.Interval, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT start_time, end_time FROM intervals
		WHERE resource_id = ? AND start_time > ?
		ORDER BY start_time LIMIT 1`, string(id), encodeTime(after))

	return s.scanInterval(row, id)
}

func (s *Store) Coverage(ctx context.Context, id availability.ResourceID, day time.Time) (availability.CoverageStamp, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT fetched_at FROM coverage WHERE resource_id = ? AND day = ?`,
		string(id), encodeDay(day))

	var fetched string
	err := row.Scan(&fetched)
	if err == sql.ErrNoRows {
		return availability.CoverageStamp{}, false, nil
	}
	if err != nil {
		return availability.CoverageStamp{}, false, err
	}

	fetchedAt, err := s.decodeTime(fetched)
	if err != nil {
		return availability.CoverageStamp{}, false, err
	}
	return availability.CoverageStamp{
		Resource:  id,
		Day:       time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()),
		FetchedAt: fetchedAt,
	}, true, nil
}

func (s *Store) MarkCovered(ctx context.Context, id availability.ResourceID, day, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coverage (resource_id, day, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(resource_id, day) DO UPDATE SET fetched_at=excluded.fetched_at`,
		string(id), encodeDay(day), encodeTime(fetchedAt))
	return err
}

// Purge removes all intervals and coverage stamps for the resources. The
// fresh-start directive is the only caller.
func (s *Store) Purge(ctx context.Context, ids []availability.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM intervals WHERE resource_id = ?`, string(id)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM coverage WHERE resource_id = ?`, string(id)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

func encodeTime(t time.Time) string { return t.Format(timeFormat) }

func encodeDay(t time.Time) string { return t.Format("2006-01-02") }

// decodeTime re-attaches the store's location to a zone-less row value.
func (s *Store) decodeTime(v string) (time.Time, error) {
	return time.ParseInLocation(timeFormat, v, s.loc)
}

func (s *Store) decodeInterval(id availability.ResourceID, start, end string) (availability.Interval, error) {
	st, err := s.decodeTime(start)
	if err != nil {
		return availability.Interval{}, err
	}
	en, err := s.decodeTime(end)
	if err != nil {
		return availability.Interval{}, err
	}
	return availability.Interval{Resource: id, Start: st, End: en}, nil
}

func (s *Store) scanInterval(row *sql.Row, id availability.ResourceID) (availability.Interval, bool, error) {
	var start, end string
	err := row.Scan(&start, &end)
	if err == sql.ErrNoRows {
		return availability.Interval{}, false, nil
	}
	if err != nil {
		return availability.Interval{}, false, err
	}
	iv, err := s.decodeInterval(id, start, end)
	if err != nil {
		return availability.Interval{}, false, err
	}
	return iv, true, nil
}
