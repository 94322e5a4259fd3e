// Package store provides an in-memory availability.Store implementation.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stationwatch/availability-engine/availability"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the roster and intervals in maps guarded by an RWMutex.
// Interval slices are maintained sorted by start and already coalesced,
// the same invariants the SQLite store enforces with its schema.
type Memory struct {
	mu        sync.RWMutex
	resources map[availability.ResourceID]availability.Resource
	intervals map[availability.ResourceID][]availability.Interval
	coverage  map[coverageKey]availability.CoverageStamp
}

type coverageKey struct {
	Resource availability.ResourceID
	Day      time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		resources: make(map[availability.ResourceID]availability.Resource),
		intervals: make(map[availability.ResourceID][]availability.Interval),
		coverage:  make(map[coverageKey]availability.CoverageStamp),
	}
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }

// =============================================================================
// RESOURCE STORE
// =============================================================================

func (m *Memory) UpsertResources(_ context.Context, resources []availability.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resources {
		m.resources[r.ID] = r
	}
	return nil
}

func (m *Memory) Resource(_ context.Context, id availability.ResourceID) (availability.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return availability.Resource{}, &availability.NotFoundError{Resource: id}
	}
	return r, nil
}

func (m *Memory) Resources(_ context.Context, kind availability.ResourceKind) ([]availability.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.Resource
	for _, r := range m.resources {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// INTERVAL STORE
// =============================================================================

// Upsert merges the incoming intervals with the stored rows they overlap
// or abut, then swaps the affected window in one locked operation so
// readers never see a half-merged state.
func (m *Memory) Upsert(_ context.Context, id availability.ResourceID, intervals []availability.Interval) (int, error) {
	if len(intervals) == 0 {
		return 0, nil
	}
	for _, iv := range intervals {
		if err := iv.Validate(); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

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

	var kept, affected []availability.Interval
	for _, existing := range m.intervals[id] {
		if existing.Overlaps(span) || existing.Abuts(span) {
			affected = append(affected, existing)
		} else {
			kept = append(kept, existing)
		}
	}

	merged := availability.CoalesceIntervals(append(affected, intervals...))
	next := append(kept, merged...)
	sort.Slice(next, func(i, j int) bool { return next[i].Start.Before(next[j].Start) })
	m.intervals[id] = next

	return len(merged), nil
}

func (m *Memory) Covering(_ context.Context, id availability.ResourceID, at time.Time) (availability.Interval, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, iv := range m.intervals[id] {
		if iv.Contains(at) {
			return iv, true, nil
		}
	}
	return availability.Interval{}, false, nil
}

func (m *Memory) InRange(_ context.Context, id availability.ResourceID, from, to time.Time) ([]availability.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.Interval
	for _, iv := range m.intervals[id] {
		if iv.Start.Before(to) && from.Before(iv.End) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (m *Memory) NextStart(_ context.Context, id availability.ResourceID, after time.Time) (availability.Interval, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, iv := range m.intervals[id] {
		if iv.Start.After(after) {
			return iv, true, nil
		}
	}
	return availability.Interval{}, false, nil
}

func (m *Memory) Coverage(_ context.Context, id availability.ResourceID, day time.Time) (availability.CoverageStamp, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stamp, ok := m.coverage[coverageKey{Resource: id, Day: midnight(day)}]
	return stamp, ok, nil
}

func (m *Memory) MarkCovered(_ context.Context, id availability.ResourceID, day, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := midnight(day)
	m.coverage[coverageKey{Resource: id, Day: d}] = availability.CoverageStamp{
		Resource:  id,
		Day:       d,
		FetchedAt: fetchedAt,
	}
	return nil
}

func (m *Memory) Purge(_ context.Context, ids []availability.ResourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.intervals, id)
		for k := range m.coverage {
			if k.Resource == id {
				delete(m.coverage, k)
			}
		}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
