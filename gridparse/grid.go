/*
Package gridparse turns the scheduling portal's HTML pages into engine input.

PURPOSE:
  The portal renders one day of availability as a fixed-layout table:
  five identity columns followed by one column per 15-minute slot. This
  package walks that markup (golang.org/x/net/html) and produces the
  roster entries and slot records the availability engine consumes. It
  never talks to the network; callers hand it raw HTML from the fetch
  client or the on-disk day cache.

THE BLANK-CELL POLICY:
  A crew cell with no text means "available"; any marker code means
  "unavailable", with the marker kept only as a diagnostic. This
  permissive default is a business assumption inherited from the portal,
  named PermissiveBlankPolicy below so it is a documented decision rather
  than an incidental parsing default. If the portal ever starts using
  blank cells for "not yet scheduled", this is the constant to find.

FAILURE MODES:
  A document missing its expected section markers (the grid table or its
  header row) yields an explicit parse failure, never a partial or empty
  result, so callers can tell "malformed page" from "zero slots".

SEE ALSO:
  - station.go: Live station display parser (reconciliation ground truth)
  - availability/coalesce.go: What happens to the slot records next
*/
package gridparse

import (
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/stationwatch/availability-engine/availability"
)

// PermissiveBlankPolicy names the parsing rule applied to crew cells: a
// blank cell is availability. See the package comment before changing it.
const PermissiveBlankPolicy = "blank-cell-means-available"

// OffTheRunMarker is the cell text the portal uses for an appliance that
// is withdrawn from service.
const OffTheRunMarker = "OTR"

// fixedColumns is the number of identity columns preceding the first
// time slot in every grid row.
const fixedColumns = 5

// DayGrid is one parsed day: the roster rows found in the document and
// every slot cell, crew and appliance alike.
type DayGrid struct {
	Date   time.Time
	Roster []availability.Resource
	Slots  []availability.SlotRecord
}

// SlotsFor returns the day's slot records for one resource.
func (g *DayGrid) SlotsFor(id availability.ResourceID) []availability.SlotRecord {
	var out []availability.SlotRecord
	for _, s := range g.Slots {
		if s.Resource == id {
			out = append(out, s)
		}
	}
	return out
}

// ParseGrid parses one day's schedule grid. bookingDate supplies the
// calendar day the column labels (HHMM) belong to; times are built in
// bookingDate's location with no timezone conversion.
func ParseGrid(r io.Reader, bookingDate time.Time) (*DayGrid, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &availability.ParseError{Document: "grid", Missing: "well-formed markup"}
	}

	table := findByID(doc, "table", "gridAvail")
	if table == nil {
		return nil, &availability.ParseError{Document: "grid", Missing: "table#gridAvail"}
	}

	header := findByClass(table, "tr", "gridheader")
	if header == nil {
		return nil, &availability.ParseError{Document: "grid", Missing: "tr.gridheader"}
	}

	labels := cellTexts(header)
	if len(labels) <= fixedColumns {
		return nil, &availability.ParseError{Document: "grid", Missing: "time slot columns"}
	}

	starts := make([]time.Time, 0, len(labels)-fixedColumns)
	for _, label := range labels[fixedColumns:] {
		start, err := slotStart(bookingDate, label)
		if err != nil {
			return nil, &availability.ParseError{Document: "grid", Missing: "parseable slot label " + label}
		}
		starts = append(starts, start)
	}

	grid := &DayGrid{Date: midnight(bookingDate)}
	for _, row := range childElements(table, "tr") {
		switch {
		case hasClass(row, "employee"):
			grid.parseCrewRow(row, starts)
		case hasClass(row, "appliance"):
			grid.parseApplianceRow(row, starts)
		}
	}
	return grid, nil
}

// parseCrewRow extracts one crew member's identity and slot cells. Cell
// interpretation follows PermissiveBlankPolicy.
func (g *DayGrid) parseCrewRow(row *html.Node, starts []time.Time) {
	name := attr(row, "data-name")
	if name == "" {
		return
	}
	id := availability.ResourceID(attr(row, "data-id"))
	if id == "" {
		id = availability.ResourceID(name)
	}

	g.Roster = append(g.Roster, availability.Resource{
		ID:            id,
		Kind:          availability.KindCrew,
		Name:          name,
		Role:          availability.Role(attr(row, "data-role")),
		Skills:        availability.ParseSkills(attr(row, "data-skills")),
		ContractHours: attr(row, "data-contract"),
	})

	g.appendSlots(id, row, starts, func(text string) (bool, string) {
		// Blank means available; any marker means unavailable.
		if text == "" {
			return true, ""
		}
		return false, text
	})
}

// parseApplianceRow follows the same boolean derivation but with the
// appliance's own semantics: the off-the-run marker withdraws it.
func (g *DayGrid) parseApplianceRow(row *html.Node, starts []time.Time) {
	name := attr(row, "data-name")
	if name == "" {
		return
	}
	id := availability.ResourceID(attr(row, "data-id"))
	if id == "" {
		id = availability.ResourceID(name)
	}

	g.Roster = append(g.Roster, availability.Resource{
		ID:   id,
		Kind: availability.KindAppliance,
		Name: name,
	})

	g.appendSlots(id, row, starts, func(text string) (bool, string) {
		if strings.Contains(text, OffTheRunMarker) {
			return false, text
		}
		return text == "", text
	})
}

func (g *DayGrid) appendSlots(id availability.ResourceID, row *html.Node, starts []time.Time, classify func(string) (bool, string)) {
	cells := childElements(row, "td")
	if len(cells) <= fixedColumns {
		return
	}
	for i, cell := range cells[fixedColumns:] {
		if i >= len(starts) {
			break
		}
		avail, marker := classify(strings.TrimSpace(text(cell)))
		g.Slots = append(g.Slots, availability.SlotRecord{
			Resource:  id,
			Start:     starts[i],
			End:       starts[i].Add(availability.SlotResolution),
			Available: avail,
			Marker:    marker,
		})
	}
}

// slotStart combines the booking date with an HHMM column label.
func slotStart(day time.Time, label string) (time.Time, error) {
	t, err := time.Parse("1504", strings.TrimSpace(label))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
