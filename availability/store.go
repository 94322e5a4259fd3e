/*
store.go - Persistence interfaces for resources and intervals

PURPOSE:
  Defines the boundary between the engine and the database. Implementations
  exist for SQLite (store/sqlite, production) and memory
  (availability/store, tests and demos).

UPSERT CONTRACT:
  Upsert merges incoming intervals into the stored set for one resource:
  rows that overlap or abut the incoming span are loaded, the union is
  re-coalesced, the replaced rows are deleted and the merged rows inserted
  in ONE transaction. A concurrent reader never observes the intermediate
  state. This is the only write path besides Purge.

WRITE DISCIPLINE:
  Single writer, many readers. One scrape run executes at a time
  (serialized by the caller); reads are pure and need no coordination.

COVERAGE STAMPS:
  The store records when each (resource, day) was last populated so the
  cache directive logic can ask "is stored coverage fresh enough?", and so
  a cache-only run can distinguish "no data" from "no availability".

SEE ALSO:
  - store/sqlite/sqlite.go:    Production implementation
  - availability/store/memory.go: In-memory implementation
  - scrape/runner.go:          Cache directive handling on top of this
*/
package availability

import (
	"context"
	"time"
)

// =============================================================================
// RESOURCE STORE - Roster persistence
// =============================================================================

// ResourceStore persists the roster. Resources are written once per import
// and treated as immutable afterwards; re-importing the same roster is an
// idempotent overwrite keyed by ID.
type ResourceStore interface {
	// UpsertResources inserts or refreshes roster entries.
	UpsertResources(ctx context.Context, resources []Resource) error

	// Resource returns one roster entry, or a NotFoundError.
	Resource(ctx context.Context, id ResourceID) (Resource, error)

	// Resources lists roster entries of one kind, ordered by ID.
	Resources(ctx context.Context, kind ResourceKind) ([]Resource, error)
}

// =============================================================================
// INTERVAL STORE - Availability persistence
// =============================================================================

// CoverageStamp records when a resource's day was last populated.
type CoverageStamp struct {
	Resource  ResourceID
	Day       time.Time // midnight of the covered day
	FetchedAt time.Time
}

// IntervalStore persists availability intervals under the coalescing
// invariants: per resource, stored rows are pairwise non-overlapping and
// non-adjacent, and every row satisfies Start < End.
type IntervalStore interface {
	// Upsert merges intervals into the resource's stored set, re-running
	// coalescing across the union. Returns the number of rows inserted.
	// Intervals failing Validate are rejected with ErrInvariantViolation
	// and nothing is written.
	Upsert(ctx context.Context, id ResourceID, intervals []Interval) (int, error)

	// Covering returns the interval containing the instant, if any.
	Covering(ctx context.Context, id ResourceID, at time.Time) (Interval, bool, error)

	// InRange returns intervals intersecting [from, to), ordered by start.
	InRange(ctx context.Context, id ResourceID, from, to time.Time) ([]Interval, error)

	// NextStart returns the earliest interval starting strictly after the
	// instant, if any within the stored horizon.
	NextStart(ctx context.Context, id ResourceID, after time.Time) (Interval, bool, error)

	// Coverage reports the stamp for a (resource, day), if one exists.
	Coverage(ctx context.Context, id ResourceID, day time.Time) (CoverageStamp, bool, error)

	// MarkCovered records that the day's data was (re)populated at the
	// given instant.
	MarkCovered(ctx context.Context, id ResourceID, day, fetchedAt time.Time) error

	// Purge removes all intervals and coverage stamps for the resources.
	// Used only by the fresh-start directive.
	Purge(ctx context.Context, ids []ResourceID) error
}

// Store is the full persistence surface the engine runs against.
type Store interface {
	ResourceStore
	IntervalStore

	Close() error
}
