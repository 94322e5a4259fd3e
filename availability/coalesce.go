/*
coalesce.go - Slot-to-interval merging

PURPOSE:
  Converts the parser's fixed-resolution slot records into the minimal set
  of availability intervals carrying the same information. Only available
  spans are materialized; unavailable slots are dropped, since absence of
  a covering interval already means unavailable.

ALGORITHM:
  Sort by start time (multi-day merges need a full sort even though a
  single day's parse is already chronological), then a single sweep that
  extends the open interval while each available slot begins exactly where
  the open interval ends. O(n log n) sort + O(n) sweep.

PROPERTIES:
  - Deterministic: same input, same output.
  - Idempotent: re-coalescing an already-minimal set is a no-op, which is
    what lets Upsert re-run coalescing over old+new rows safely.
*/
package availability

import "sort"

// Coalesce merges an ordered-or-not sequence of same-resource slot records
// into minimal non-overlapping intervals. Unavailable slots contribute
// nothing beyond terminating the open span.
func Coalesce(slots []SlotRecord) []Interval {
	if len(slots) == 0 {
		return nil
	}

	sorted := make([]SlotRecord, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var out []Interval
	var open *Interval
	for _, s := range sorted {
		if !s.Available {
			open = nil
			continue
		}
		if open != nil && open.End.Equal(s.Start) {
			open.End = s.End
			continue
		}
		out = append(out, Interval{Resource: s.Resource, Start: s.Start, End: s.End})
		open = &out[len(out)-1]
	}
	return out
}

// CoalesceIntervals re-merges a mixed set of already-valid intervals, as
// Upsert does across the union of stored and incoming rows. Overlapping
// and abutting intervals collapse into one.
func CoalesceIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		// Merge when overlapping or exactly adjacent.
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
