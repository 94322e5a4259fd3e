/*
query.go - Point-in-time and duration queries

PURPOSE:
  Answers the two questions the dispatch side keeps asking:
    1. Is this resource available right now (or at instant t)?
    2. How long until its state flips?

  Both are pure reads against committed interval rows, safe to invoke
  concurrently from multiple read paths.

BOUNDARY SEMANTICS:
  Containment is closed-open: available at Start, unavailable at End. An
  instant exactly on a boundary belongs to the new state.

UNBOUNDED vs NEVER:
  The scrape horizon is finite (a few days ahead). When a currently
  unavailable resource has no future interval stored, the duration until
  change is reported as unbounded - meaning "beyond the horizon", never
  "permanently unavailable".
*/
package availability

import (
	"context"
	"time"
)

// Engine answers availability queries against a store. Construct with
// NewEngine; the zero value is not usable.
type Engine struct {
	store Store
}

// NewEngine creates a query engine reading from the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// StateChange is the result of a duration-until-change query.
type StateChange struct {
	// Available is the state at the queried instant.
	Available bool

	// Until is the time remaining in the current state. Meaningless when
	// Unbounded is set.
	Until time.Duration

	// Unbounded is set when the resource is unavailable and no future
	// interval exists within the stored horizon.
	Unbounded bool
}

// IsAvailable reports whether some stored interval covers the instant
// (Start <= at < End). An unknown resource yields ErrResourceNotFound,
// which is distinct from a known resource that is simply uncovered.
func (e *Engine) IsAvailable(ctx context.Context, id ResourceID, at time.Time) (bool, error) {
	if _, err := e.store.Resource(ctx, id); err != nil {
		return false, err
	}
	_, ok, err := e.store.Covering(ctx, id, at)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// DurationUntilChange computes how long the resource's current state
// persists from the reference instant:
//   - available:   end of the covering interval minus the instant
//   - unavailable: start of the nearest future interval minus the
//     instant, or unbounded when the horizon holds none
func (e *Engine) DurationUntilChange(ctx context.Context, id ResourceID, at time.Time) (StateChange, error) {
	if _, err := e.store.Resource(ctx, id); err != nil {
		return StateChange{}, err
	}

	covering, ok, err := e.store.Covering(ctx, id, at)
	if err != nil {
		return StateChange{}, err
	}
	if ok {
		return StateChange{Available: true, Until: covering.End.Sub(at)}, nil
	}

	next, ok, err := e.store.NextStart(ctx, id, at)
	if err != nil {
		return StateChange{}, err
	}
	if !ok {
		return StateChange{Available: false, Unbounded: true}, nil
	}
	return StateChange{Available: false, Until: next.Start.Sub(at)}, nil
}

// AvailableResources returns the subset of the given resources that are
// available at the instant, preserving roster order. Used by the readiness
// evaluator to assemble the current crew pool.
func (e *Engine) AvailableResources(ctx context.Context, kind ResourceKind, at time.Time) ([]Resource, error) {
	all, err := e.store.Resources(ctx, kind)
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, r := range all {
		_, ok, err := e.store.Covering(ctx, r.ID, at)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
