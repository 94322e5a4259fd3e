/*
reconcile.go - Cross-source state comparison

PURPOSE:
  The engine's computed state is periodically checked against independent
  ground truths: the live station display feed and a spreadsheet export.
  Reconcile diffs two resource->state maps and emits one discrepancy per
  disagreement, so scraping or parsing drift surfaces instead of silently
  feeding wrong answers to dispatch.

SEMANTICS:
  - Only keys present in BOTH maps are compared; not every external
    source enumerates every resource, so one-sided keys are ignored.
  - The flagged set is symmetric in argument order; only the explanation
    phrasing references which side said what.
*/
package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one source's view of resource availability at an instant.
type Snapshot map[ResourceID]bool

// ReconcileRun is the outcome of one comparison, with a stable identifier
// for audit trails. An empty Discrepancies slice means full agreement.
type ReconcileRun struct {
	ID            string        `json:"id"`
	At            time.Time     `json:"at"`
	Compared      int           `json:"compared"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Reconcile compares two snapshots and flags every resource on which they
// disagree, ordered by resource ID for deterministic output.
func Reconcile(sourceA, sourceB Snapshot) []Discrepancy {
	var out []Discrepancy
	for id, a := range sourceA {
		b, ok := sourceB[id]
		if !ok || a == b {
			continue
		}
		out = append(out, Discrepancy{
			Resource:    id,
			SourceA:     a,
			SourceB:     b,
			Explanation: fmt.Sprintf("source A says %s, source B says %s", stateWord(a), stateWord(b)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// NewReconcileRun performs a comparison and wraps it with run metadata.
func NewReconcileRun(sourceA, sourceB Snapshot, at time.Time) ReconcileRun {
	compared := 0
	for id := range sourceA {
		if _, ok := sourceB[id]; ok {
			compared++
		}
	}
	return ReconcileRun{
		ID:            uuid.NewString(),
		At:            at,
		Compared:      compared,
		Discrepancies: Reconcile(sourceA, sourceB),
	}
}

func stateWord(available bool) string {
	if available {
		return "available"
	}
	return "unavailable"
}
