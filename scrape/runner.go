/*
Package scrape orchestrates the fetch -> parse -> coalesce -> store
pipeline that keeps the availability store populated.

PURPOSE:
  One Runner owns the single write path. A run covers a span of booking
  days; for each day a cache directive decides whether to serve stored
  data, refresh it, or rebuild it from scratch:

    cache-only   never fetch; fail with ErrNoCachedData when the store
                 has no coverage stamp for the day
    cache-first  fetch only when the stored coverage is stale for the
                 day's offset (see FreshnessWindow)
    no-cache     always fetch, bypassing the on-disk day cache
    fresh-start  purge all stored intervals and stamps, then fetch

WRITE DISCIPLINE:
  Runs are serialized by an internal mutex. Readers (the query engine,
  the API) never coordinate with the runner; Upsert's transaction
  guarantees they see before or after, never between.

SEE ALSO:
  - cache.go:     on-disk raw HTML cache and freshness windows
  - scheduler.go: periodic execution via gocron
  - fetch/:       the portal client behind the Fetcher interface
*/
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/stationwatch/availability-engine/availability"
	"github.com/stationwatch/availability-engine/gridparse"
)

// ErrPortalFetch marks a failure to reach the portal, as opposed to a
// failure to understand what it returned (ErrParseFailure). The API maps
// it to an upstream-failure status.
var ErrPortalFetch = errors.New("portal fetch failed")

// PortalFetchError names the page that could not be retrieved.
type PortalFetchError struct {
	Page string
	Err  error
}

func (e *PortalFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Page, e.Err)
}

func (e *PortalFetchError) Unwrap() []error { return []error{ErrPortalFetch, e.Err} }

// Fetcher retrieves raw portal documents. Implemented by fetch.Client;
// tests substitute fakes.
type Fetcher interface {
	// GridHTML returns the raw schedule grid page for one booking day.
	GridHTML(ctx context.Context, day time.Time) (string, error)
}

// DisplayFetcher retrieves the live station display page, the ground
// truth used for reconciliation.
type DisplayFetcher interface {
	StationDisplayHTML(ctx context.Context) (string, error)
}

// DayResult summarizes what one day's upsert did.
type DayResult struct {
	Day              time.Time
	Fetched          bool // a portal round trip happened
	FromCache        bool // served from the on-disk day cache
	Resources        int
	IntervalsWritten int
}

// Runner drives day upserts against the store. All writes to the
// interval store flow through here.
type Runner struct {
	store   availability.Store
	fetcher Fetcher
	cache   *DayCache
	clock   clockwork.Clock
	log     zerolog.Logger
	metrics *Metrics

	mu sync.Mutex // one run at a time
}

// NewRunner wires the scrape pipeline. cache may be nil to disable the
// on-disk day cache.
func NewRunner(store availability.Store, fetcher Fetcher, cache *DayCache, clock clockwork.Clock, log zerolog.Logger, metrics *Metrics) *Runner {
	return &Runner{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		clock:   clock,
		log:     log.With().Str("component", "scrape").Logger(),
		metrics: metrics,
	}
}

// UpsertDay populates one booking day's availability according to the
// cache directive. Returns what happened so callers can log or count it.
func (r *Runner) UpsertDay(ctx context.Context, day time.Time, directive availability.CacheDirective) (DayResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertDayLocked(ctx, midnight(day), directive)
}

func (r *Runner) upsertDayLocked(ctx context.Context, day time.Time, directive availability.CacheDirective) (DayResult, error) {
	result := DayResult{Day: day}
	log := r.log.With().Str("day", day.Format("2006-01-02")).Str("directive", string(directive)).Logger()

	switch directive {
	case availability.CacheOnly:
		// Serve only what is already stored. Coverage stamps distinguish
		// "never fetched" from "fetched, zero availability".
		if err := r.requireCoverage(ctx, day); err != nil {
			return result, err
		}
		log.Debug().Msg("cache-only run satisfied by stored coverage")
		r.metrics.CacheHits.Inc()
		return result, nil

	case availability.CacheFirst:
		fresh, err := r.coverageFresh(ctx, day)
		if err != nil {
			return result, err
		}
		if fresh {
			log.Debug().Msg("stored coverage still fresh, skipping fetch")
			r.metrics.CacheHits.Inc()
			return result, nil
		}

	case availability.FreshStart:
		if err := r.purgeAll(ctx); err != nil {
			return result, fmt.Errorf("fresh-start purge: %w", err)
		}
		log.Info().Msg("purged stored availability for fresh start")
	}

	raw, fromCache, err := r.dayHTML(ctx, day, directive)
	if err != nil {
		r.metrics.Runs.WithLabelValues("fetch_error").Inc()
		return result, err
	}
	result.Fetched = !fromCache
	result.FromCache = fromCache

	grid, err := gridparse.ParseGrid(strings.NewReader(raw), day)
	if err != nil {
		r.metrics.ParseFailures.Inc()
		r.metrics.Runs.WithLabelValues("parse_error").Inc()
		return result, err
	}

	written, err := r.storeGrid(ctx, grid)
	if err != nil {
		r.metrics.Runs.WithLabelValues("store_error").Inc()
		return result, err
	}
	result.Resources = len(grid.Roster)
	result.IntervalsWritten = written

	r.metrics.IntervalsWritten.Add(float64(written))
	r.metrics.Runs.WithLabelValues("ok").Inc()
	log.Info().
		Bool("fetched", result.Fetched).
		Int("resources", result.Resources).
		Int("intervals", written).
		Msg("day upserted")
	return result, nil
}

// storeGrid writes one parsed day: roster first, then per-resource
// coalesced intervals, then coverage stamps. A resource whose slots
// coalesce to nothing still gets a stamp; "we looked and found no
// availability" is itself data.
func (r *Runner) storeGrid(ctx context.Context, grid *gridparse.DayGrid) (int, error) {
	if err := r.store.UpsertResources(ctx, grid.Roster); err != nil {
		return 0, fmt.Errorf("upsert roster: %w", err)
	}

	now := r.clock.Now()
	total := 0
	for _, res := range grid.Roster {
		intervals := availability.Coalesce(grid.SlotsFor(res.ID))
		if len(intervals) > 0 {
			written, err := r.store.Upsert(ctx, res.ID, intervals)
			if err != nil {
				return total, fmt.Errorf("upsert intervals for %s: %w", res.ID, err)
			}
			total += written
		}
		if err := r.store.MarkCovered(ctx, res.ID, grid.Date, now); err != nil {
			return total, fmt.Errorf("mark coverage for %s: %w", res.ID, err)
		}
	}
	return total, nil
}

// dayHTML returns the raw grid page, consulting the on-disk cache only
// under cache-first.
func (r *Runner) dayHTML(ctx context.Context, day time.Time, directive availability.CacheDirective) (string, bool, error) {
	if directive == availability.CacheFirst && r.cache != nil {
		if raw, ok := r.cache.Read(day); ok {
			r.metrics.CacheHits.Inc()
			return raw, true, nil
		}
	}

	raw, err := r.fetcher.GridHTML(ctx, day)
	if err != nil {
		return "", false, &PortalFetchError{Page: "grid " + day.Format("2006-01-02"), Err: err}
	}
	if r.cache != nil {
		if err := r.cache.Write(day, raw); err != nil {
			r.log.Warn().Err(err).Msg("day cache write failed")
		}
	}
	return raw, false, nil
}

// requireCoverage fails with NoCachedDataError naming the first roster
// resource lacking a stamp for the day. An empty roster counts as no
// coverage.
func (r *Runner) requireCoverage(ctx context.Context, day time.Time) error {
	roster, err := r.roster(ctx)
	if err != nil {
		return err
	}
	if len(roster) == 0 {
		return &availability.NoCachedDataError{Day: day}
	}
	for _, res := range roster {
		_, ok, err := r.store.Coverage(ctx, res.ID, day)
		if err != nil {
			return err
		}
		if !ok {
			return &availability.NoCachedDataError{Resource: res.ID, Day: day}
		}
	}
	return nil
}

// coverageFresh reports whether every roster resource's stamp for the
// day is within the freshness window for the day's offset from today.
func (r *Runner) coverageFresh(ctx context.Context, day time.Time) (bool, error) {
	roster, err := r.roster(ctx)
	if err != nil {
		return false, err
	}
	if len(roster) == 0 {
		return false, nil
	}

	now := r.clock.Now()
	window := FreshnessWindow(dayOffset(now, day))
	for _, res := range roster {
		stamp, ok, err := r.store.Coverage(ctx, res.ID, day)
		if err != nil {
			return false, err
		}
		if !ok || now.Sub(stamp.FetchedAt) >= window {
			return false, nil
		}
	}
	return true, nil
}

func (r *Runner) purgeAll(ctx context.Context) error {
	roster, err := r.roster(ctx)
	if err != nil {
		return err
	}
	ids := make([]availability.ResourceID, 0, len(roster))
	for _, res := range roster {
		ids = append(ids, res.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	return r.store.Purge(ctx, ids)
}

func (r *Runner) roster(ctx context.Context) ([]availability.Resource, error) {
	crew, err := r.store.Resources(ctx, availability.KindCrew)
	if err != nil {
		return nil, err
	}
	appliances, err := r.store.Resources(ctx, availability.KindAppliance)
	if err != nil {
		return nil, err
	}
	return append(crew, appliances...), nil
}

// Run populates a span of days starting today. A fresh-start directive
// purges once, then the remaining days proceed as no-cache. Stale cache
// files for past days are cleaned afterwards.
func (r *Runner) Run(ctx context.Context, days int, directive availability.CacheDirective) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.clock.Now()
	defer func() {
		r.metrics.RunDuration.Observe(r.clock.Since(started).Seconds())
	}()

	today := midnight(r.clock.Now())
	dayDirective := directive
	for offset := 0; offset < days; offset++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		day := today.AddDate(0, 0, offset)
		if _, err := r.upsertDayLocked(ctx, day, dayDirective); err != nil {
			return fmt.Errorf("day %s: %w", day.Format("2006-01-02"), err)
		}
		if dayDirective == availability.FreshStart {
			dayDirective = availability.NoCache
		}
	}

	if r.cache != nil {
		r.cache.Cleanup()
	}
	return nil
}

// Reconcile fetches the live station display and compares it against the
// engine's computed crew state at the current instant.
func (r *Runner) Reconcile(ctx context.Context, display DisplayFetcher) (availability.ReconcileRun, error) {
	raw, err := display.StationDisplayHTML(ctx)
	if err != nil {
		return availability.ReconcileRun{}, &PortalFetchError{Page: "station display", Err: err}
	}

	sd, err := gridparse.ParseStationDisplay(strings.NewReader(raw))
	if err != nil {
		r.metrics.ParseFailures.Inc()
		return availability.ReconcileRun{}, err
	}

	crew, err := r.store.Resources(ctx, availability.KindCrew)
	if err != nil {
		return availability.ReconcileRun{}, err
	}

	now := r.clock.Now()
	engine := availability.NewEngine(r.store)
	computed := make(availability.Snapshot, len(crew))
	for _, c := range crew {
		avail, err := engine.IsAvailable(ctx, c.ID, now)
		if err != nil {
			return availability.ReconcileRun{}, err
		}
		computed[c.ID] = avail
	}

	run := availability.NewReconcileRun(computed, sd.Snapshot(crew), now)
	r.log.Info().
		Int("compared", run.Compared).
		Int("discrepancies", len(run.Discrepancies)).
		Msg("reconciliation complete")
	return run, nil
}
