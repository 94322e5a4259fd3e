/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire-format structs, kept separate from the domain types so the JSON
  contract can evolve without touching the engine. Times travel as
  RFC3339; durations as whole seconds plus a human-readable string;
  duty-hours as decimal strings to keep quarter-hour precision exact.
*/
package api

import (
	"sort"
	"time"

	"github.com/stationwatch/availability-engine/availability"
)

// ResourceDTO is one roster entry.
type ResourceDTO struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Name          string   `json:"name"`
	Role          string   `json:"role,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	ContractHours string   `json:"contract_hours,omitempty"`
}

func toResourceDTO(r availability.Resource) ResourceDTO {
	skills := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills.Slice() {
		skills = append(skills, string(s))
	}
	sort.Strings(skills)
	return ResourceDTO{
		ID:            string(r.ID),
		Kind:          string(r.Kind),
		Name:          r.Name,
		Role:          string(r.Role),
		Skills:        skills,
		ContractHours: r.ContractHours,
	}
}

// AvailabilityDTO answers "is this resource available at t".
type AvailabilityDTO struct {
	Resource  string    `json:"resource_id"`
	At        time.Time `json:"at"`
	Available bool      `json:"available"`
}

// DurationDTO answers "how long until the state flips".
type DurationDTO struct {
	Resource  string    `json:"resource_id"`
	At        time.Time `json:"at"`
	Available bool      `json:"available"`

	// Unbounded means the resource is unavailable with nothing further
	// stored; "beyond the horizon", not "never".
	Unbounded bool `json:"unbounded"`

	// Omitted when unbounded.
	UntilSeconds int64  `json:"until_seconds,omitempty"`
	Until        string `json:"until,omitempty"`
	ChangeAt     string `json:"change_at,omitempty"`
}

func toDurationDTO(id availability.ResourceID, at time.Time, sc availability.StateChange) DurationDTO {
	dto := DurationDTO{
		Resource:  string(id),
		At:        at,
		Available: sc.Available,
		Unbounded: sc.Unbounded,
	}
	if !sc.Unbounded {
		dto.UntilSeconds = int64(sc.Until.Seconds())
		dto.Until = sc.Until.String()
		dto.ChangeAt = at.Add(sc.Until).Format(time.RFC3339)
	}
	return dto
}

// WeeklyHoursDTO reports a crew member's duty-hours position as decimal
// strings.
type WeeklyHoursDTO struct {
	Resource    string `json:"resource_id"`
	WeekStart   string `json:"week_start"`
	Banked      string `json:"banked_hours"`
	Contracted  string `json:"contracted_hours,omitempty"`
	Shortfall   string `json:"shortfall_hours,omitempty"`
	HasContract bool   `json:"has_contract"`
}

func toWeeklyHoursDTO(wh availability.WeeklyHours) WeeklyHoursDTO {
	dto := WeeklyHoursDTO{
		Resource:    string(wh.Resource),
		WeekStart:   wh.WeekStart.Format("2006-01-02"),
		Banked:      wh.Banked.String(),
		HasContract: wh.HasContract,
	}
	if wh.HasContract {
		dto.Contracted = wh.Contracted.String()
		dto.Shortfall = wh.Shortfall.String()
	}
	return dto
}

// ScrapeResultDTO summarizes a manually triggered run.
type ScrapeResultDTO struct {
	Directive string `json:"directive"`
	Days      int    `json:"days"`
	Status    string `json:"status"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
