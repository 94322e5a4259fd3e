/*
errors.go - Centralized error types for the availability engine

PURPOSE:
  All engine error kinds in one place. Callers branch on kind with
  errors.Is rather than matching message text, so "resource unknown" is
  never confused with "resource known but currently unavailable", and
  "cache empty" is never silently treated as "unavailable".

ERROR CATEGORIES:
  1. Parse errors    - malformed source documents
  2. Cache errors    - cache-only runs without covering stored data
  3. Lookup errors   - unknown resource identifiers
  4. Invariant errors - interval writes that would corrupt the store

None of these are retried inside the engine; each failure is local to the
operation that raised it and is surfaced to the caller.

SEE ALSO:
  - store.go:  raises ErrNoCachedData and ErrResourceNotFound
  - types.go:  Interval.Validate raises InvariantError
*/
package availability

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrParseFailure is returned when a source document is missing its
	// expected section markers. Distinguishes "no data" from "zero slots".
	ErrParseFailure = errors.New("schedule document malformed")

	// ErrNoCachedData is returned by a cache-only run when the store has
	// no covering data for the requested resource and day.
	ErrNoCachedData = errors.New("no cached availability data")

	// ErrResourceNotFound is returned when a query names an unknown
	// resource identifier. Distinct from "known, currently unavailable".
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvariantViolation is returned when an interval write would
	// violate store invariants. Rejected before persistence, never
	// silently corrected.
	ErrInvariantViolation = errors.New("interval invariant violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ParseError reports what section marker was missing from a document.
type ParseError struct {
	Document string // "grid", "station-display"
	Missing  string // the marker that was not found
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s document: missing %s", e.Document, e.Missing)
}

func (e *ParseError) Unwrap() error { return ErrParseFailure }

// NoCachedDataError identifies the uncovered resource/day pair.
type NoCachedDataError struct {
	Resource ResourceID
	Day      time.Time
}

func (e *NoCachedDataError) Error() string {
	return fmt.Sprintf("no cached data for %s on %s", e.Resource, e.Day.Format("2006-01-02"))
}

func (e *NoCachedDataError) Unwrap() error { return ErrNoCachedData }

// NotFoundError names the unknown resource.
type NotFoundError struct {
	Resource ResourceID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrResourceNotFound }

// InvariantError describes a rejected interval write.
type InvariantError struct {
	Interval Interval
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invalid interval %s: %s", e.Interval, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsClientError reports whether the error is due to invalid caller input
// rather than an engine fault. The API layer maps these to 4xx responses.
func IsClientError(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrNoCachedData) ||
		errors.Is(err, ErrInvariantViolation)
}
