package temporal

import (
	"time"

	"alcyxob/trainer-schedule/internal/domain"
)

// Plan describes how to append a record starting at From to a timeline.
type Plan struct {
	From time.Time
	// Close is the timeline index of the record to close at From, or -1.
	Close int
	// To is the new record's end; nil means open-ended.
	To *time.Time
}

// Closes reports whether the plan closes an existing record.
func (p Plan) Closes() bool { return p.Close >= 0 }

// PlanInsert computes the write needed to start a new record at from.
//
// Without retroactive, from may not precede the start of any existing record;
// the record containing from is closed there and the new one is open-ended.
// With retroactive, the new record is spliced in: the record containing from
// is re-closed at from and the new record takes over the rest of its window,
// or fills the gap up to the next record.
func PlanInsert[T Versioned](timeline []T, from time.Time, retroactive bool) (Plan, error) {
	const op = "PlanInsert"
	plan := Plan{From: from, Close: -1}

	var next *time.Time
	for i, v := range timeline {
		start := v.ValidFrom()
		if start.After(from) {
			if !retroactive {
				return Plan{}, domain.NewError(op, domain.ErrInvalidEffectiveDate,
					"effective date %s precedes the current version starting %s",
					from.Format(time.RFC3339), start.Format(time.RFC3339))
			}
			if next == nil || start.Before(*next) {
				s := start
				next = &s
			}
			continue
		}
		if Contains(v, from) {
			if plan.Closes() {
				return Plan{}, domain.NewError(op, domain.ErrOverlappingVersions,
					"more than one version applies at %s", from.Format(time.RFC3339))
			}
			plan.Close = i
		}
	}

	if !retroactive {
		return plan, nil
	}

	if plan.Closes() {
		if to := timeline[plan.Close].ValidTo(); to != nil {
			t := *to
			plan.To = &t
		}
	}
	if next != nil && (plan.To == nil || next.Before(*plan.To)) {
		plan.To = next
	}
	if plan.To != nil && plan.To.Before(from) {
		return Plan{}, domain.NewError(op, domain.ErrInvalidEffectiveDate,
			"splice at %s would end before it starts", from.Format(time.RFC3339))
	}
	return plan, nil
}
