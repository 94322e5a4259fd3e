/*
readiness.go - Dispatch-readiness rule evaluation

PURPOSE:
  Decides whether a crewed appliance can turn out, by applying the unit's
  composition rules to the crew currently available. The appliance's own
  portal availability is reported alongside the rule outcome: a unit can
  be rule-ready while the appliance is separately marked off the run, and
  callers want to see both.

THE RULES (all must hold):
  1. At least four crew available
  2. At least one available crew with technical rescue (TTR)
  3. At least one available crew with large goods vehicle (LGV)
  4. At least two available crew with breathing apparatus (BA) who do NOT
     also hold TTR
  5. At least one BA (non-TTR) holder in an officer-in-charge-eligible
     role (WC, CC, FFC)

  The BA/TTR mutual exclusion in rules 4 and 5 is an inherited brigade
  counting rule: a TTR holder is assumed to cover that capability
  separately. It is preserved exactly and deliberately not generalized.
*/
package availability

import (
	"context"
	"time"
)

// =============================================================================
// REQUIREMENTS
// =============================================================================

// Requirements parameterizes the readiness criteria. DefaultRequirements
// is the standard pump configuration.
type Requirements struct {
	MinCrew            int
	MinTechnicalRescue int
	MinLGV             int
	MinBANonTTR        int
	MinOfficerWithBA   int
}

// DefaultRequirements is the standard dispatch configuration for a
// retained pump.
func DefaultRequirements() Requirements {
	return Requirements{
		MinCrew:            4,
		MinTechnicalRescue: 1,
		MinLGV:             1,
		MinBANonTTR:        2,
		MinOfficerWithBA:   1,
	}
}

// =============================================================================
// EVALUATION
// =============================================================================

// CriteriaBreakdown reports each rule's outcome and the observed counts.
type CriteriaBreakdown struct {
	CrewCount       int  `json:"crew_count"`
	CrewOK          bool `json:"crew_ok"`
	TTRCount        int  `json:"ttr_count"`
	TTROK           bool `json:"ttr_ok"`
	LGVCount        int  `json:"lgv_count"`
	LGVOK           bool `json:"lgv_ok"`
	BANonTTRCount   int  `json:"ba_non_ttr_count"`
	BANonTTROK      bool `json:"ba_non_ttr_ok"`
	OfficerBACount  int  `json:"officer_ba_count"`
	OfficerBAOK     bool `json:"officer_ba_ok"`
}

// ReadinessResult is the evaluator's full answer for one appliance.
type ReadinessResult struct {
	Appliance ResourceID        `json:"appliance_id"`
	At        time.Time         `json:"at"`
	Ready     bool              `json:"ready"`
	Criteria  CriteriaBreakdown `json:"criteria"`

	// ApplianceAvailable is the portal's own flag for the appliance,
	// independent of the crew rules. Rule-ready and portal-ready may
	// legitimately diverge.
	ApplianceAvailable bool `json:"appliance_available"`
}

// Evaluator applies Requirements to the crew pool reported by the query
// engine.
type Evaluator struct {
	engine *Engine
	reqs   Requirements
}

// NewEvaluator creates an evaluator over the query engine. Pass
// DefaultRequirements unless the unit has a custom establishment.
func NewEvaluator(engine *Engine, reqs Requirements) *Evaluator {
	return &Evaluator{engine: engine, reqs: reqs}
}

// Evaluate runs the readiness rules for one appliance at an instant. The
// appliance must exist in the roster; crew availability is read through
// the query engine.
func (ev *Evaluator) Evaluate(ctx context.Context, appliance ResourceID, at time.Time) (ReadinessResult, error) {
	applianceUp, err := ev.engine.IsAvailable(ctx, appliance, at)
	if err != nil {
		return ReadinessResult{}, err
	}

	crew, err := ev.engine.AvailableResources(ctx, KindCrew, at)
	if err != nil {
		return ReadinessResult{}, err
	}

	breakdown := EvaluateCrew(crew, ev.reqs)
	return ReadinessResult{
		Appliance:          appliance,
		At:                 at,
		Ready:              breakdown.AllOK(),
		Criteria:           breakdown,
		ApplianceAvailable: applianceUp,
	}, nil
}

// EvaluateCrew applies the rules to an already-assembled crew pool. Pure
// function; Evaluate wraps it with the availability lookups.
func EvaluateCrew(crew []Resource, reqs Requirements) CriteriaBreakdown {
	var b CriteriaBreakdown
	b.CrewCount = len(crew)

	for _, c := range crew {
		hasBA := c.Skills.Has(SkillBreathingApparatus)
		hasTTR := c.Skills.Has(SkillTechnicalRescue)

		if hasTTR {
			b.TTRCount++
		}
		if c.Skills.Has(SkillLargeGoodsVehicle) {
			b.LGVCount++
		}
		// BA holders who also hold TTR are excluded from the BA counts:
		// the TTR holder is assumed to cover that capability separately.
		if hasBA && !hasTTR {
			b.BANonTTRCount++
			if c.Role.OfficerEligible() {
				b.OfficerBACount++
			}
		}
	}

	b.CrewOK = b.CrewCount >= reqs.MinCrew
	b.TTROK = b.TTRCount >= reqs.MinTechnicalRescue
	b.LGVOK = b.LGVCount >= reqs.MinLGV
	b.BANonTTROK = b.BANonTTRCount >= reqs.MinBANonTTR
	b.OfficerBAOK = b.OfficerBACount >= reqs.MinOfficerWithBA
	return b
}

// AllOK reports whether every criterion holds.
func (b CriteriaBreakdown) AllOK() bool {
	return b.CrewOK && b.TTROK && b.LGVOK && b.BANonTTROK && b.OfficerBAOK
}
