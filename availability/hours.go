/*
hours.go - Contracted duty-hours accounting

PURPOSE:
  Retained crew commit to a contracted number of availability hours per
  week (the roster exports it as a plain figure, e.g. "56"). This file
  compares that commitment against the hours actually banked in the
  interval store for a given week and reports shortfall or surplus.

PRECISION:
  The grid resolution is a quarter hour, so banked totals are exact
  multiples of 0.25. Arithmetic uses decimal.Decimal end to end to keep
  them exact; float64 would drift once weeks are summed across a roster.
*/
package availability

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// WeeklyHours is one crew member's duty-hours position for a week.
type WeeklyHours struct {
	Resource   ResourceID      `json:"resource_id"`
	WeekStart  time.Time       `json:"week_start"`
	Contracted decimal.Decimal `json:"contracted_hours"`
	Banked     decimal.Decimal `json:"banked_hours"`

	// Shortfall is contracted minus banked; negative means surplus.
	Shortfall decimal.Decimal `json:"shortfall_hours"`

	// Contracted hours may be absent from the roster, in which case only
	// Banked is meaningful.
	HasContract bool `json:"has_contract"`
}

// BankedHours sums the availability stored for [weekStart, weekStart+7d),
// clipping intervals that straddle the week boundary.
func (e *Engine) BankedHours(ctx context.Context, id ResourceID, weekStart time.Time) (decimal.Decimal, error) {
	if _, err := e.store.Resource(ctx, id); err != nil {
		return decimal.Zero, err
	}
	weekEnd := weekStart.AddDate(0, 0, 7)

	intervals, err := e.store.InRange(ctx, id, weekStart, weekEnd)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, iv := range intervals {
		start, end := iv.Start, iv.End
		if start.Before(weekStart) {
			start = weekStart
		}
		if end.After(weekEnd) {
			end = weekEnd
		}
		minutes := decimal.NewFromInt(int64(end.Sub(start) / time.Minute))
		total = total.Add(minutes.Div(minutesPerHour))
	}
	return total, nil
}

// WeeklyHoursFor computes a crew member's full duty-hours position for
// the week starting at weekStart.
func (e *Engine) WeeklyHoursFor(ctx context.Context, id ResourceID, weekStart time.Time) (WeeklyHours, error) {
	res, err := e.store.Resource(ctx, id)
	if err != nil {
		return WeeklyHours{}, err
	}

	banked, err := e.BankedHours(ctx, id, weekStart)
	if err != nil {
		return WeeklyHours{}, err
	}

	wh := WeeklyHours{
		Resource:  id,
		WeekStart: weekStart,
		Banked:    banked,
	}

	if res.ContractHours != "" {
		contracted, err := decimal.NewFromString(res.ContractHours)
		if err == nil {
			wh.Contracted = contracted
			wh.Shortfall = contracted.Sub(banked)
			wh.HasContract = true
		}
	}
	return wh, nil
}
