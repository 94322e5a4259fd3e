package availability_test

import (
	"testing"
	"time"

	"github.com/stationwatch/availability-engine/availability"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func slot(id string, start time.Time, avail bool) availability.SlotRecord {
	return availability.SlotRecord{
		Resource:  availability.ResourceID(id),
		Start:     start,
		End:       start.Add(availability.SlotResolution),
		Available: avail,
	}
}

func daySlots(id string, start time.Time, states []bool) []availability.SlotRecord {
	out := make([]availability.SlotRecord, len(states))
	for i, avail := range states {
		out[i] = slot(id, start.Add(time.Duration(i)*availability.SlotResolution), avail)
	}
	return out
}

// =============================================================================
// COALESCE TESTS
// =============================================================================

func TestCoalesce_UnavailableThenAvailable(t *testing.T) {
	// GIVEN: 08:00-08:15 unavailable, then available through 09:00
	// WHEN: Coalescing
	// THEN: One interval 08:15-09:00; the unavailable slot contributes nothing

	slots := daySlots("R1", at(8, 0), []bool{false, true, true, true})

	intervals := availability.Coalesce(slots)
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if !intervals[0].Start.Equal(at(8, 15)) || !intervals[0].End.Equal(at(9, 0)) {
		t.Errorf("expected [08:15, 09:00), got %s", intervals[0])
	}
}

func TestCoalesce_GapSplitsIntervals(t *testing.T) {
	// GIVEN: available, unavailable, available
	// WHEN: Coalescing
	// THEN: Two separate intervals, not one spanning the gap

	slots := daySlots("R1", at(8, 0), []bool{true, false, true})

	intervals := availability.Coalesce(slots)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if !intervals[0].End.Equal(at(8, 15)) {
		t.Errorf("first interval should end at the gap, got %s", intervals[0])
	}
	if !intervals[1].Start.Equal(at(8, 30)) {
		t.Errorf("second interval should start after the gap, got %s", intervals[1])
	}
}

func TestCoalesce_AllUnavailable(t *testing.T) {
	slots := daySlots("R1", at(8, 0), []bool{false, false, false})
	if got := availability.Coalesce(slots); got != nil {
		t.Errorf("expected no intervals, got %v", got)
	}
}

func TestCoalesce_UnsortedInput(t *testing.T) {
	// GIVEN: slots delivered out of order (multi-day merge case)
	// THEN: Coalesce sorts before sweeping

	slots := []availability.SlotRecord{
		slot("R1", at(8, 30), true),
		slot("R1", at(8, 0), true),
		slot("R1", at(8, 15), true),
	}

	intervals := availability.Coalesce(slots)
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if !intervals[0].Start.Equal(at(8, 0)) || !intervals[0].End.Equal(at(8, 45)) {
		t.Errorf("expected [08:00, 08:45), got %s", intervals[0])
	}
}

func TestCoalesce_Idempotent(t *testing.T) {
	// GIVEN: any slot sequence
	// THEN: re-coalescing the resulting intervals is a no-op

	slots := daySlots("R1", at(6, 0), []bool{true, true, false, true, false, false, true, true})

	first := availability.Coalesce(slots)
	second := availability.CoalesceIntervals(first)

	if len(first) != len(second) {
		t.Fatalf("idempotence broken: %d vs %d intervals", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Errorf("interval %d changed: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestCoalesceIntervals_MergesOverlapAndAdjacency(t *testing.T) {
	r := availability.ResourceID("R1")
	intervals := []availability.Interval{
		{Resource: r, Start: at(8, 0), End: at(9, 0)},
		{Resource: r, Start: at(8, 30), End: at(9, 30)}, // overlaps
		{Resource: r, Start: at(9, 30), End: at(10, 0)}, // abuts
		{Resource: r, Start: at(11, 0), End: at(12, 0)}, // separate
	}

	merged := availability.CoalesceIntervals(intervals)
	if len(merged) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %v", len(merged), merged)
	}
	if !merged[0].Start.Equal(at(8, 0)) || !merged[0].End.Equal(at(10, 0)) {
		t.Errorf("expected [08:00, 10:00), got %s", merged[0])
	}
}

func TestInterval_Validate(t *testing.T) {
	bad := availability.Interval{Resource: "R1", Start: at(9, 0), End: at(9, 0)}
	if err := bad.Validate(); err == nil {
		t.Error("zero-length interval should be rejected")
	}
	reversed := availability.Interval{Resource: "R1", Start: at(9, 0), End: at(8, 0)}
	if err := reversed.Validate(); err == nil {
		t.Error("reversed interval should be rejected")
	}
}
