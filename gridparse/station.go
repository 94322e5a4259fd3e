/*
station.go - Live station display parser

PURPOSE:
  The station runs a wall display page that self-reports who is on duty
  right now. It is an independent view of the same underlying state the
  grid scrape computes, which makes it the primary reconciliation ground
  truth: parse it here, turn it into a Snapshot, and hand both views to
  availability.Reconcile.

LAYOUT:
  - span#lblTime / span#lblDate / span#lblStation: page header
  - table#gvCrewing: per-skill summary rows, "N (+/-D)" cells
  - table#gvOnDuty:  one row per on-duty firefighter (role, name, skills)
*/
package gridparse

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/stationwatch/availability-engine/availability"
)

// OnDutyEntry is one row of the display's on-duty table.
type OnDutyEntry struct {
	Role   availability.Role
	Name   string
	Skills availability.SkillSet
}

// SkillSummary is one row of the display's crewing summary: how many of a
// skill are on duty and the difference against establishment.
type SkillSummary struct {
	Available  int
	Difference int
}

// StationDisplay is the parsed wall display page.
type StationDisplay struct {
	Time    string
	Date    string
	Station string
	Summary map[string]SkillSummary
	OnDuty  []OnDutyEntry
}

var summaryPattern = regexp.MustCompile(`^(\d+)\s*\(([-+]?\d+)\)$`)

// ParseStationDisplay parses the live display page. A page missing the
// on-duty table is malformed; the summary table is optional (older
// display firmware omits it).
func ParseStationDisplay(r io.Reader) (*StationDisplay, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &availability.ParseError{Document: "station-display", Missing: "well-formed markup"}
	}

	onDuty := findByID(doc, "table", "gvOnDuty")
	if onDuty == nil {
		return nil, &availability.ParseError{Document: "station-display", Missing: "table#gvOnDuty"}
	}

	sd := &StationDisplay{
		Time:    spanText(doc, "lblTime"),
		Date:    spanText(doc, "lblDate"),
		Station: spanText(doc, "lblStation"),
		Summary: make(map[string]SkillSummary),
	}

	for _, row := range childElements(onDuty, "tr") {
		cells := cellTexts(row)
		if len(cells) != 3 {
			continue
		}
		sd.OnDuty = append(sd.OnDuty, OnDutyEntry{
			Role:   availability.Role(cells[0]),
			Name:   cells[1],
			Skills: availability.ParseSkills(strings.NewReplacer("(", "", ")", "", ",", "").Replace(cells[2])),
		})
	}

	if summary := findByID(doc, "table", "gvCrewing"); summary != nil {
		for _, row := range childElements(summary, "tr") {
			cells := cellTexts(row)
			if len(cells) != 2 {
				continue
			}
			m := summaryPattern.FindStringSubmatch(cells[1])
			if m == nil {
				continue
			}
			sd.Summary[cells[0]] = SkillSummary{
				Available:  atoi(m[1]),
				Difference: atoi(m[2]),
			}
		}
	}
	return sd, nil
}

// Snapshot converts the display into the comparator's input: every roster
// crew member keyed by ID, true when their name appears on duty. The
// display enumerates only people currently on duty, so a roster name
// absent from it is the display asserting "off duty", not missing data.
func (sd *StationDisplay) Snapshot(roster []availability.Resource) availability.Snapshot {
	onDuty := make(map[string]bool, len(sd.OnDuty))
	for _, e := range sd.OnDuty {
		onDuty[e.Name] = true
	}

	snap := make(availability.Snapshot)
	for _, r := range roster {
		if r.Kind != availability.KindCrew {
			continue
		}
		snap[r.ID] = onDuty[r.Name]
	}
	return snap
}

func spanText(doc *html.Node, id string) string {
	if n := findByID(doc, "span", id); n != nil {
		return strings.TrimSpace(text(n))
	}
	return ""
}

func atoi(s string) int {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && (c == '-' || c == '+') {
			neg = c == '-'
			continue
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
