package availability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stationwatch/availability-engine/availability"
	memstore "github.com/stationwatch/availability-engine/availability/store"
)

func newEngineWith(t *testing.T, resources []availability.Resource, intervals map[availability.ResourceID][]availability.Interval) *availability.Engine {
	t.Helper()
	ctx := context.Background()
	st := memstore.NewMemory()
	if err := st.UpsertResources(ctx, resources); err != nil {
		t.Fatalf("seed resources: %v", err)
	}
	for id, ivs := range intervals {
		if _, err := st.Upsert(ctx, id, ivs); err != nil {
			t.Fatalf("seed intervals for %s: %v", id, err)
		}
	}
	return availability.NewEngine(st)
}

func crewMember(id string) availability.Resource {
	return availability.Resource{
		ID:   availability.ResourceID(id),
		Kind: availability.KindCrew,
		Name: id,
		Role: availability.RoleFirefighterComp,
	}
}

// =============================================================================
// POINT-IN-TIME QUERIES
// =============================================================================

func TestIsAvailable_ContainmentAndBoundaries(t *testing.T) {
	// GIVEN: R1 available [08:15, 09:00)
	// THEN: closed-open containment; boundary instants take the new state

	engine := newEngineWith(t,
		[]availability.Resource{crewMember("R1")},
		map[availability.ResourceID][]availability.Interval{
			"R1": {{Resource: "R1", Start: at(8, 15), End: at(9, 0)}},
		})

	ctx := context.Background()
	cases := []struct {
		at   time.Time
		want bool
	}{
		{at(8, 0), false},  // before
		{at(8, 15), true},  // start boundary: available
		{at(8, 30), true},  // inside
		{at(8, 59), true},  // last covered minute
		{at(9, 0), false},  // end boundary: unavailable
		{at(10, 0), false}, // after
	}
	for _, c := range cases {
		got, err := engine.IsAvailable(ctx, "R1", c.at)
		if err != nil {
			t.Fatalf("IsAvailable(%s): %v", c.at, err)
		}
		if got != c.want {
			t.Errorf("IsAvailable at %s = %v, want %v", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestIsAvailable_UnknownResource(t *testing.T) {
	engine := newEngineWith(t, nil, nil)

	_, err := engine.IsAvailable(context.Background(), "ghost", at(8, 0))
	if !errors.Is(err, availability.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
	if !availability.IsNotFound(err) {
		t.Error("IsNotFound should report true")
	}
}

// =============================================================================
// DURATION UNTIL CHANGE
// =============================================================================

func TestDurationUntilChange_CurrentlyAvailable(t *testing.T) {
	// GIVEN: R1 available [08:15, 09:00), asked at 08:30
	// THEN: 30 minutes until the state flips

	engine := newEngineWith(t,
		[]availability.Resource{crewMember("R1")},
		map[availability.ResourceID][]availability.Interval{
			"R1": {{Resource: "R1", Start: at(8, 15), End: at(9, 0)}},
		})

	change, err := engine.DurationUntilChange(context.Background(), "R1", at(8, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !change.Available {
		t.Error("expected available state")
	}
	if change.Unbounded {
		t.Error("covered instant should never be unbounded")
	}
	if change.Until != 30*time.Minute {
		t.Errorf("expected 30m, got %s", change.Until)
	}
}

func TestDurationUntilChange_CurrentlyUnavailable_NextKnown(t *testing.T) {
	// GIVEN: R1 unavailable at 08:00, next interval starts 08:15
	engine := newEngineWith(t,
		[]availability.Resource{crewMember("R1")},
		map[availability.ResourceID][]availability.Interval{
			"R1": {{Resource: "R1", Start: at(8, 15), End: at(9, 0)}},
		})

	change, err := engine.DurationUntilChange(context.Background(), "R1", at(8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.Available || change.Unbounded {
		t.Errorf("expected bounded unavailable state, got %+v", change)
	}
	if change.Until != 15*time.Minute {
		t.Errorf("expected 15m, got %s", change.Until)
	}
}

func TestDurationUntilChange_UnboundedBeyondHorizon(t *testing.T) {
	// GIVEN: R1 unavailable with nothing further in the stored horizon
	// THEN: unbounded, which means "beyond the scrape horizon", not "never"

	engine := newEngineWith(t,
		[]availability.Resource{crewMember("R1")},
		map[availability.ResourceID][]availability.Interval{
			"R1": {{Resource: "R1", Start: at(8, 15), End: at(9, 0)}},
		})

	change, err := engine.DurationUntilChange(context.Background(), "R1", at(10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !change.Unbounded {
		t.Errorf("expected unbounded, got %+v", change)
	}
}

// =============================================================================
// ROUND-TRIP
// =============================================================================

func TestRoundTrip_SlotsToQueries(t *testing.T) {
	// GIVEN: a day's boolean slot sequence
	// WHEN: coalesced, upserted and queried at every slot start
	// THEN: queries reproduce exactly the source booleans

	states := []bool{false, true, true, false, false, true, false, true, true, true, false}
	slots := daySlots("R1", at(7, 0), states)

	ctx := context.Background()
	st := memstore.NewMemory()
	if err := st.UpsertResources(ctx, []availability.Resource{crewMember("R1")}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Upsert(ctx, "R1", availability.Coalesce(slots)); err != nil {
		t.Fatal(err)
	}
	engine := availability.NewEngine(st)

	for i, want := range states {
		instant := at(7, 0).Add(time.Duration(i) * availability.SlotResolution)
		got, err := engine.IsAvailable(ctx, "R1", instant)
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
		if got != want {
			t.Errorf("slot %d (%s): got %v, want %v", i, instant.Format("15:04"), got, want)
		}
	}
}
