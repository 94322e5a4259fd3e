package gridparse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stationwatch/availability-engine/availability"
)

const validGrid = `
<html><body>
<table id="gridAvail">
  <tr class="gridheader">
    <td>Role</td><td>Name</td><td>Skills</td><td>Contract</td><td>Notes</td>
    <td>0800</td><td>0815</td><td>0830</td><td>0845</td>
  </tr>
  <tr class="employee" data-id="3" data-name="GIBB, OL" data-role="CC" data-skills="BA ERD IC" data-contract="56">
    <td>CC</td><td>GIBB, OL</td><td>BA ERD IC</td><td>56</td><td></td>
    <td>W</td><td></td><td></td><td></td>
  </tr>
  <tr class="employee" data-id="7" data-name="SABA, JA" data-role="FF" data-skills="BA ERD">
    <td>FF</td><td>SABA, JA</td><td>BA ERD</td><td></td><td></td>
    <td></td><td></td><td>S</td><td>S</td>
  </tr>
  <tr class="appliance" data-name="P22P6">
    <td>P22P6</td><td></td><td></td><td></td><td></td>
    <td></td><td>OTR</td><td>OTR</td><td></td>
  </tr>
</table>
</body></html>`

var bookingDate = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func parseValid(t *testing.T) *DayGrid {
	t.Helper()
	grid, err := ParseGrid(strings.NewReader(validGrid), bookingDate)
	require.NoError(t, err)
	return grid
}

func TestParseGrid_Roster(t *testing.T) {
	grid := parseValid(t)

	require.Len(t, grid.Roster, 3)

	gibb := grid.Roster[0]
	require.Equal(t, availability.ResourceID("3"), gibb.ID)
	require.Equal(t, availability.KindCrew, gibb.Kind)
	require.Equal(t, "GIBB, OL", gibb.Name)
	require.Equal(t, availability.RoleCrewCommander, gibb.Role)
	require.True(t, gibb.Skills.Has(availability.SkillBreathingApparatus))
	require.True(t, gibb.Skills.Has(availability.SkillIncidentCommand))
	require.Equal(t, "56", gibb.ContractHours)

	pump := grid.Roster[2]
	require.Equal(t, availability.KindAppliance, pump.Kind)
	require.Equal(t, availability.ResourceID("P22P6"), pump.ID)
}

func TestParseGrid_BlankMeansAvailable(t *testing.T) {
	// PermissiveBlankPolicy: blank cell = available, marker = unavailable
	// with the marker retained only as a diagnostic.
	grid := parseValid(t)

	slots := grid.SlotsFor("3")
	require.Len(t, slots, 4)

	require.False(t, slots[0].Available, "08:00 carries marker W")
	require.Equal(t, "W", slots[0].Marker)
	require.True(t, slots[1].Available)
	require.True(t, slots[2].Available)
	require.True(t, slots[3].Available)

	require.Equal(t, bookingDate.Add(8*time.Hour), slots[0].Start)
	require.Equal(t, availability.SlotResolution, slots[0].End.Sub(slots[0].Start))
}

func TestParseGrid_ApplianceOffTheRun(t *testing.T) {
	grid := parseValid(t)

	slots := grid.SlotsFor("P22P6")
	require.Len(t, slots, 4)
	require.True(t, slots[0].Available)
	require.False(t, slots[1].Available, "OTR marker withdraws the appliance")
	require.False(t, slots[2].Available)
	require.True(t, slots[3].Available)
}

func TestParseGrid_RoundTripThroughCoalesce(t *testing.T) {
	// SABA: available 08:00-08:30, then marked S for the rest.
	grid := parseValid(t)

	intervals := availability.Coalesce(grid.SlotsFor("7"))
	require.Len(t, intervals, 1)
	require.Equal(t, bookingDate.Add(8*time.Hour), intervals[0].Start)
	require.Equal(t, bookingDate.Add(8*time.Hour+30*time.Minute), intervals[0].End)
}

func TestParseGrid_MalformedDocuments(t *testing.T) {
	cases := []struct {
		name string
		html string
	}{
		{"no grid table", `<html><body><p>maintenance page</p></body></html>`},
		{"no header row", `<table id="gridAvail"><tr class="employee" data-name="X"><td></td></tr></table>`},
		{"no slot columns", `<table id="gridAvail"><tr class="gridheader"><td>a</td><td>b</td><td>c</td><td>d</td><td>e</td></tr></table>`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseGrid(strings.NewReader(c.html), bookingDate)
			require.Error(t, err)
			require.True(t, errors.Is(err, availability.ErrParseFailure),
				"malformed document must be a parse failure, got %v", err)
		})
	}
}

func TestParseGrid_RowWithoutNameSkipped(t *testing.T) {
	html := `
<table id="gridAvail">
  <tr class="gridheader"><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>0900</td></tr>
  <tr class="employee"><td></td><td></td><td></td><td></td><td></td><td></td></tr>
</table>`
	grid, err := ParseGrid(strings.NewReader(html), bookingDate)
	require.NoError(t, err)
	require.Empty(t, grid.Roster)
	require.Empty(t, grid.Slots)
}
