// Package temporal answers "which version applies at T" for effective-dated
// timelines and plans appends to them without breaking the no-overlap rule.
package temporal

import (
	"sort"
	"time"

	"alcyxob/trainer-schedule/internal/domain"
)

// Versioned is a record valid on [ValidFrom, ValidTo); a nil ValidTo is open-ended.
type Versioned interface {
	ValidFrom() time.Time
	ValidTo() *time.Time
	Created() time.Time
}

// Contains reports whether t is inside v's window. Zero-length windows contain nothing.
func Contains(v Versioned, t time.Time) bool {
	if t.Before(v.ValidFrom()) {
		return false
	}
	to := v.ValidTo()
	return to == nil || t.Before(*to)
}

// Empty reports whether v's window is zero-length (a superseded record).
func Empty(v Versioned) bool {
	to := v.ValidTo()
	return to != nil && !to.After(v.ValidFrom())
}

// Overlaps reports whether the two windows share at least one instant.
func Overlaps(a, b Versioned) bool {
	if Empty(a) || Empty(b) {
		return false
	}
	aTo, bTo := a.ValidTo(), b.ValidTo()
	return (bTo == nil || a.ValidFrom().Before(*bTo)) &&
		(aTo == nil || b.ValidFrom().Before(*aTo))
}

// Resolve selects the unique candidate whose window contains asOf.
func Resolve[T Versioned](candidates []T, asOf time.Time) (T, error) {
	var (
		match T
		found int
	)
	for _, c := range candidates {
		if Contains(c, asOf) {
			match = c
			found++
		}
	}
	switch found {
	case 0:
		var zero T
		return zero, domain.NewError("Resolve", domain.ErrNotFound, "no version applies at %s", asOf.Format(time.RFC3339))
	case 1:
		return match, nil
	default:
		var zero T
		return zero, domain.NewError("Resolve", domain.ErrOverlappingVersions, "%d versions apply at %s", found, asOf.Format(time.RFC3339))
	}
}

// Latest returns the most recent version: highest ValidFrom, then latest creation.
func Latest[T Versioned](candidates []T) (T, bool) {
	var (
		best T
		ok   bool
	)
	for _, c := range candidates {
		if !ok || newer(c, best) {
			best, ok = c, true
		}
	}
	return best, ok
}

// Sort orders a timeline oldest first.
func Sort[T Versioned](timeline []T) {
	sort.SliceStable(timeline, func(i, j int) bool {
		return newer(timeline[j], timeline[i])
	})
}

func newer(a, b Versioned) bool {
	if !a.ValidFrom().Equal(b.ValidFrom()) {
		return a.ValidFrom().After(b.ValidFrom())
	}
	return a.Created().After(b.Created())
}
