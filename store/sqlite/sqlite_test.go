package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stationwatch/availability-engine/availability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreIn(t, time.UTC)
}

// newTestStoreIn pins the store to a zone so the suite does not depend
// on the machine's clock. Rows carry no zone; the store re-attaches it.
func newTestStoreIn(t *testing.T, loc *time.Location) *Store {
	t.Helper()
	st, err := NewInLocation(":memory:", loc)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func ts(day, hour, min int) time.Time {
	return time.Date(2026, time.March, day, hour, min, 0, 0, time.UTC)
}

func iv(id string, start, end time.Time) availability.Interval {
	return availability.Interval{Resource: availability.ResourceID(id), Start: start, End: end}
}

func TestResources_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	in := availability.Resource{
		ID:            "3",
		Kind:          availability.KindCrew,
		Name:          "GIBB, OL",
		Role:          availability.RoleCrewCommander,
		Skills:        availability.NewSkillSet(availability.SkillBreathingApparatus, availability.SkillIncidentCommand),
		ContractHours: "56",
	}
	require.NoError(t, st.UpsertResources(ctx, []availability.Resource{in}))

	out, err := st.Resource(ctx, "3")
	require.NoError(t, err)
	require.Equal(t, in.Name, out.Name)
	require.Equal(t, in.Role, out.Role)
	require.Equal(t, in.ContractHours, out.ContractHours)
	require.True(t, out.Skills.Has(availability.SkillBreathingApparatus))
	require.True(t, out.Skills.Has(availability.SkillIncidentCommand))
	require.Len(t, out.Skills, 2)
}

func TestResources_ReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	r := availability.Resource{ID: "3", Kind: availability.KindCrew, Name: "GIBB, OL"}
	require.NoError(t, st.UpsertResources(ctx, []availability.Resource{r}))
	r.Role = availability.RoleWatchCommander
	require.NoError(t, st.UpsertResources(ctx, []availability.Resource{r}))

	crew, err := st.Resources(ctx, availability.KindCrew)
	require.NoError(t, err)
	require.Len(t, crew, 1)
	require.Equal(t, availability.RoleWatchCommander, crew[0].Role)
}

func TestResource_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Resource(context.Background(), "ghost")
	require.True(t, availability.IsNotFound(err))
}

func seedCrew(t *testing.T, st *Store, ids ...string) {
	t.Helper()
	var rs []availability.Resource
	for _, id := range ids {
		rs = append(rs, availability.Resource{
			ID: availability.ResourceID(id), Kind: availability.KindCrew, Name: id,
		})
	}
	require.NoError(t, st.UpsertResources(context.Background(), rs))
}

func TestUpsert_MergeAcrossWrites(t *testing.T) {
	// GIVEN: stored [08:00, 10:00), then an overlapping [09:00, 12:00)
	// THEN: exactly one row [08:00, 12:00) survives

	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	written, err := st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 8, 0), ts(2, 10, 0))})
	require.NoError(t, err)
	require.Equal(t, 1, written)

	_, err = st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 9, 0), ts(2, 12, 0))})
	require.NoError(t, err)

	stored, err := st.InRange(ctx, "R1", ts(2, 0, 0), ts(3, 0, 0))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].Start.Equal(ts(2, 8, 0)))
	require.True(t, stored[0].End.Equal(ts(2, 12, 0)))
}

func TestUpsert_AdjacencyCoalesces(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	_, err := st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 8, 0), ts(2, 10, 0))})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 10, 0), ts(2, 11, 0))})
	require.NoError(t, err)

	stored, err := st.InRange(ctx, "R1", ts(2, 0, 0), ts(3, 0, 0))
	require.NoError(t, err)
	require.Len(t, stored, 1, "adjacent intervals must not remain as two rows")
}

func TestUpsert_NonOverlapInvariantAfterManyWrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	batches := [][]availability.Interval{
		{iv("R1", ts(2, 8, 0), ts(2, 9, 0)), iv("R1", ts(2, 14, 0), ts(2, 15, 0))},
		{iv("R1", ts(2, 8, 30), ts(2, 13, 0))},
		{iv("R1", ts(2, 13, 0), ts(2, 14, 0))},
		{iv("R1", ts(3, 6, 0), ts(3, 7, 0))},
	}
	for _, b := range batches {
		_, err := st.Upsert(ctx, "R1", b)
		require.NoError(t, err)
	}

	stored, err := st.InRange(ctx, "R1", ts(1, 0, 0), ts(4, 0, 0))
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for i := 1; i < len(stored); i++ {
		require.True(t, stored[i-1].End.Before(stored[i].Start),
			"rows %s and %s overlap or touch", stored[i-1], stored[i])
	}
}

func TestUpsert_RejectsInvalidInterval(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	_, err := st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 10, 0), ts(2, 10, 0))})
	require.True(t, errors.Is(err, availability.ErrInvariantViolation))

	stored, err := st.InRange(ctx, "R1", ts(2, 0, 0), ts(3, 0, 0))
	require.NoError(t, err)
	require.Empty(t, stored, "rejected write must not modify the store")
}

func TestCoveringAndNextStart(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	_, err := st.Upsert(ctx, "R1", []availability.Interval{
		iv("R1", ts(2, 8, 0), ts(2, 10, 0)),
		iv("R1", ts(2, 14, 0), ts(2, 16, 0)),
	})
	require.NoError(t, err)

	// Closed-open containment.
	_, ok, err := st.Covering(ctx, "R1", ts(2, 8, 0))
	require.NoError(t, err)
	require.True(t, ok, "start boundary is covered")

	_, ok, err = st.Covering(ctx, "R1", ts(2, 10, 0))
	require.NoError(t, err)
	require.False(t, ok, "end boundary is not covered")

	next, ok, err := st.NextStart(ctx, "R1", ts(2, 10, 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, next.Start.Equal(ts(2, 14, 0)))

	_, ok, err = st.NextStart(ctx, "R1", ts(2, 16, 0))
	require.NoError(t, err)
	require.False(t, ok, "nothing beyond the horizon")
}

func TestCoverageStampsAndPurge(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1", "R2")

	for _, id := range []availability.ResourceID{"R1", "R2"} {
		_, err := st.Upsert(ctx, id, []availability.Interval{iv(string(id), ts(2, 8, 0), ts(2, 10, 0))})
		require.NoError(t, err)
		require.NoError(t, st.MarkCovered(ctx, id, ts(2, 0, 0), ts(2, 7, 30)))
	}

	stamp, ok, err := st.Coverage(ctx, "R1", ts(2, 13, 0))
	require.NoError(t, err)
	require.True(t, ok, "stamp lookup normalizes to the day")
	require.True(t, stamp.FetchedAt.Equal(ts(2, 7, 30)))

	require.NoError(t, st.Purge(ctx, []availability.ResourceID{"R1"}))

	_, ok, err = st.Coverage(ctx, "R1", ts(2, 0, 0))
	require.NoError(t, err)
	require.False(t, ok)

	stored, err := st.InRange(ctx, "R1", ts(1, 0, 0), ts(3, 0, 0))
	require.NoError(t, err)
	require.Empty(t, stored)

	// R2 untouched.
	stored, err = st.InRange(ctx, "R2", ts(1, 0, 0), ts(3, 0, 0))
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestRoundTrip_NonUTCClock(t *testing.T) {
	// GIVEN: a store opened in the wall-clock zone the writers use
	// THEN: decoded instants equal the instants that were written, and
	//       the duration query is exact rather than off by the offset

	zone := time.FixedZone("UTC+1", 3600)
	at := func(h, m int) time.Time {
		return time.Date(2026, time.March, 2, h, m, 0, 0, zone)
	}

	ctx := context.Background()
	st := newTestStoreIn(t, zone)
	seedCrew(t, st, "R1")

	_, err := st.Upsert(ctx, "R1", []availability.Interval{
		{Resource: "R1", Start: at(8, 15), End: at(9, 0)},
	})
	require.NoError(t, err)

	stored, err := st.InRange(ctx, "R1", at(0, 0), at(23, 59))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.True(t, stored[0].Start.Equal(at(8, 15)))
	require.True(t, stored[0].End.Equal(at(9, 0)))

	engine := availability.NewEngine(st)
	change, err := engine.DurationUntilChange(ctx, "R1", at(8, 30))
	require.NoError(t, err)
	require.True(t, change.Available)
	require.Equal(t, 30*time.Minute, change.Until)
}

func TestCoverage_NonUTCClock(t *testing.T) {
	zone := time.FixedZone("UTC+1", 3600)
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, zone)
	fetched := day.Add(7*time.Hour + 30*time.Minute)

	ctx := context.Background()
	st := newTestStoreIn(t, zone)
	seedCrew(t, st, "R1")

	require.NoError(t, st.MarkCovered(ctx, "R1", day, fetched))

	stamp, ok, err := st.Coverage(ctx, "R1", day.Add(13*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, stamp.FetchedAt.Equal(fetched),
		"stamp must come back as the instant it was written")
	require.True(t, stamp.Day.Equal(day), "day pinned to the query's zone")
}

func TestEngineOverSQLite(t *testing.T) {
	// The query engine behaves identically over SQLite and memory stores.
	ctx := context.Background()
	st := newTestStore(t)
	seedCrew(t, st, "R1")

	_, err := st.Upsert(ctx, "R1", []availability.Interval{iv("R1", ts(2, 8, 15), ts(2, 9, 0))})
	require.NoError(t, err)

	engine := availability.NewEngine(st)

	avail, err := engine.IsAvailable(ctx, "R1", ts(2, 8, 30))
	require.NoError(t, err)
	require.True(t, avail)

	change, err := engine.DurationUntilChange(ctx, "R1", ts(2, 8, 30))
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, change.Until)
}
