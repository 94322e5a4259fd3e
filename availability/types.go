/*
Package availability provides the core duty-availability engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking when
  fire-crew personnel and appliances are available for dispatch. Raw
  schedule slots are coalesced into minimal availability intervals, stored
  through the Store interface, and answered back as point-in-time and
  duration queries plus dispatch-readiness decisions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource: A crew member or appliance tracked for availability
  - SlotRecord: A raw fixed-resolution (15-minute) availability datum
  - Interval: A merged, non-overlapping span during which a resource is
    available; absence of a covering interval means unavailable
  - CacheDirective: Controls whether a scrape run reuses stored data
  - Discrepancy: A flagged disagreement between two availability sources

DESIGN PRINCIPLES:
  1. Absence is the default: only available spans are materialized.
     An instant not covered by any interval is "unavailable".
  2. Intervals are immutable once written; the only mutation is
     coalescing-driven replacement during Upsert.
  3. No timezone conversion: source portal and store share one local clock.
  4. Explicit configuration: components receive their dependencies at
     construction, never from package-level state.

SEE ALSO:
  - coalesce.go:  Slot-to-interval merging
  - query.go:     Point-in-time and duration queries
  - readiness.go: Dispatch-readiness rule evaluation
  - reconcile.go: Cross-source state comparison
  - store.go:     Persistence interfaces
*/
package availability

import (
	"fmt"
	"time"
)

// =============================================================================
// RESOURCES - Crew members and appliances
// =============================================================================

// ResourceID uniquely identifies a crew member or appliance.
type ResourceID string

// ResourceKind distinguishes personnel from appliances. The two share the
// same interval semantics but are parsed from distinct grid regions.
type ResourceKind string

const (
	KindCrew      ResourceKind = "crew"
	KindAppliance ResourceKind = "appliance"
)

// Role is a crew member's rank. Roles are single-valued and immutable
// during a run; they come from the roster import.
type Role string

const (
	RoleWatchCommander   Role = "WC"  // Watch Commander
	RoleCrewCommander    Role = "CC"  // Crew Commander
	RoleFirefighterComp  Role = "FFC" // Firefighter (competent)
	RoleFirefighterDev   Role = "FFD" // Firefighter (development)
	RoleFirefighterTrain Role = "FFT" // Firefighter (trainee)
)

// OfficerEligible reports whether the role can act as officer in charge.
func (r Role) OfficerEligible() bool {
	switch r {
	case RoleWatchCommander, RoleCrewCommander, RoleFirefighterComp:
		return true
	}
	return false
}

// Skill is a qualification tag attached to a crew member.
type Skill string

const (
	SkillBreathingApparatus Skill = "BA"
	SkillTechnicalRescue    Skill = "TTR"
	SkillLargeGoodsVehicle  Skill = "LGV"
	SkillEmergencyResponse  Skill = "ERD"
	SkillIncidentCommand    Skill = "IC"
)

// SkillSet is an unordered set of skill tags.
type SkillSet map[Skill]bool

// NewSkillSet builds a SkillSet from individual skills.
func NewSkillSet(skills ...Skill) SkillSet {
	s := make(SkillSet, len(skills))
	for _, sk := range skills {
		s[sk] = true
	}
	return s
}

// ParseSkills parses a space-separated skill string as exported by the
// roster (e.g. "BA ERD IC").
func ParseSkills(raw string) SkillSet {
	s := make(SkillSet)
	start := -1
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ' ' {
			if start >= 0 && i > start {
				s[Skill(raw[start:i])] = true
			}
			start = -1
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return s
}

// Has reports whether the set contains the skill.
func (s SkillSet) Has(skill Skill) bool { return s[skill] }

// Slice returns the skills as a slice. Order is unspecified; callers
// needing stable output sort it themselves.
func (s SkillSet) Slice() []Skill {
	out := make([]Skill, 0, len(s))
	for sk := range s {
		out = append(out, sk)
	}
	return out
}

// Resource is a crew member or an appliance. Resources are created once
// from the roster import and are immutable during engine operation.
type Resource struct {
	ID   ResourceID
	Kind ResourceKind
	Name string

	// Crew-only attributes; zero-valued for appliances.
	Role   Role
	Skills SkillSet

	// ContractHours is the contracted weekly duty commitment for crew,
	// e.g. "56". Empty when the roster does not export one.
	ContractHours string
}

// =============================================================================
// SLOT RECORDS - Raw fixed-resolution parser output (never persisted)
// =============================================================================

// SlotResolution is the fixed grid column width of the source portal.
const SlotResolution = 15 * time.Minute

// SlotRecord is one parsed grid cell: a fixed-resolution span with a
// boolean availability state. The marker text from an unavailable cell is
// retained as a diagnostic only and is never interpreted further.
type SlotRecord struct {
	Resource  ResourceID
	Start     time.Time
	End       time.Time
	Available bool
	Marker    string
}

// =============================================================================
// AVAILABILITY INTERVALS - The fundamental stored unit
// =============================================================================

// Interval states that a resource is available for dispatch throughout
// [Start, End). Invariants, enforced at the store boundary:
//   - Start < End (zero-length intervals are rejected)
//   - per resource, stored intervals are pairwise non-overlapping and
//     non-adjacent (adjacent spans must have been coalesced)
type Interval struct {
	Resource ResourceID
	Start    time.Time
	End      time.Time
}

// Contains performs the closed-open containment test Start <= t < End.
// A boundary instant belongs to the new state: available at Start,
// unavailable at End.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether two intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Abuts reports whether one interval begins exactly where the other ends.
func (iv Interval) Abuts(other Interval) bool {
	return iv.End.Equal(other.Start) || other.End.Equal(iv.Start)
}

// Validate rejects malformed intervals before they reach a store.
func (iv Interval) Validate() error {
	if iv.Resource == "" {
		return &InvariantError{Interval: iv, Reason: "empty resource id"}
	}
	if !iv.Start.Before(iv.End) {
		return &InvariantError{Interval: iv, Reason: "start must precede end"}
	}
	return nil
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s[%s, %s)", iv.Resource,
		iv.Start.Format("2006-01-02 15:04"), iv.End.Format("2006-01-02 15:04"))
}

// =============================================================================
// CACHE DIRECTIVES - Run-level fetch vs. reuse policy
// =============================================================================

// CacheDirective controls whether a scrape run fetches from the portal or
// reuses stored data. Exactly one directive is active per run.
type CacheDirective string

const (
	// CacheOnly never fetches. Queries are answered from existing data;
	// a day without coverage raises ErrNoCachedData rather than silently
	// reporting "unavailable".
	CacheOnly CacheDirective = "cache-only"

	// CacheFirst reuses stored data when present and within the freshness
	// window for the day offset, fetching otherwise.
	CacheFirst CacheDirective = "cache-first"

	// NoCache always fetches and overwrites, bypassing freshness checks.
	NoCache CacheDirective = "no-cache"

	// FreshStart destructively clears all intervals for the targeted
	// resources before fetching. The only operation that destroys data
	// outside coalescing-driven replacement.
	FreshStart CacheDirective = "fresh-start"
)

// ParseCacheDirective maps a CLI/config string onto a directive.
func ParseCacheDirective(s string) (CacheDirective, error) {
	switch s {
	case "cache-only":
		return CacheOnly, nil
	case "cache-first", "cache-preferred":
		return CacheFirst, nil
	case "no-cache", "cache-off":
		return NoCache, nil
	case "fresh-start":
		return FreshStart, nil
	}
	return "", fmt.Errorf("unknown cache directive %q", s)
}

// =============================================================================
// DISCREPANCIES - Cross-source disagreement records
// =============================================================================

// Discrepancy flags a disagreement between two independently derived
// availability states for the same resource. Absence of discrepancies for
// a comparison run means full agreement.
type Discrepancy struct {
	Resource    ResourceID `json:"resource_id"`
	SourceA     bool       `json:"source_a_state"`
	SourceB     bool       `json:"source_b_state"`
	Explanation string     `json:"explanation"`
}
