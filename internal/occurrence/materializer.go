// Package occurrence turns series versions into concrete sessions on calendar dates.
package occurrence

import (
	"sort"
	"strings"
	"time"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/temporal"
)

const (
	refSeparator = "@"
	dateLayout   = "2006-01-02"
)

// Materializer projects weekday/time templates onto dates in one time zone.
type Materializer struct {
	loc *time.Location
}

func NewMaterializer(loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{loc: loc}
}

func (m *Materializer) Location() *time.Location { return m.loc }

// Date truncates t to its calendar date in the schedule time zone.
func (m *Materializer) Date(t time.Time) time.Time {
	y, mo, d := t.In(m.loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
}

// Project returns the scheduled start of s on date.
func (m *Materializer) Project(s domain.Series, date time.Time) time.Time {
	return s.StartTime.On(m.Date(date), m.loc)
}

// Defaults are the session fields s hands to its occurrence on date.
func (m *Materializer) Defaults(s domain.Series, date time.Time) domain.SessionFields {
	start := m.Project(s, date)
	name := s.Name
	return domain.SessionFields{
		TrainerID:       s.TrainerID,
		StartsAt:        start,
		EndsAt:          start.Add(s.Duration()),
		Label:           &name,
		Notes:           s.Notes,
		Room:            s.Room,
		Equipment:       s.Equipment,
		MaxParticipants: s.MaxParticipants,
	}
}

// Materialize builds the occurrence for version s on the date of scheduledAt,
// layering the persisted instance (if any) on top. s is nil for one-off instances.
func (m *Materializer) Materialize(s *domain.Series, inst *domain.Instance, scheduledAt time.Time) domain.Occurrence {
	occ := domain.Occurrence{ScheduledAt: scheduledAt}

	var base domain.SessionFields
	if s != nil {
		base = m.Defaults(*s, scheduledAt)
		occ.SeriesID = s.SeriesID
		occ.SeriesVersionID = s.ID
		occ.Ref = m.Ref(s.SeriesID, scheduledAt)
	}

	if inst != nil {
		occ.InstanceID = inst.ID
		occ.Cancelled = inst.Cancelled
		if inst.Base != nil {
			base = *inst.Base
		}
		if inst.OneOff() {
			occ.Ref = inst.ID
		}
		base = inst.Diff.ApplyTo(base)
		occ.Override = inst.Override()
		occ.OverriddenFields = inst.Diff.Fields()
	}

	occ.SessionFields = base
	return occ
}

// Ref formats the reference of a not-yet-persisted occurrence.
func (m *Materializer) Ref(seriesID string, t time.Time) string {
	return seriesID + refSeparator + m.DateKey(t)
}

// DateKey formats the calendar date of t in the schedule time zone. Together
// with the lineage it identifies a series-backed occurrence.
func (m *Materializer) DateKey(t time.Time) string {
	return m.Date(t).Format(dateLayout)
}

// OccurrenceDate returns the calendar date a persisted instance belongs to.
func (m *Materializer) OccurrenceDate(inst *domain.Instance) time.Time {
	if inst.OccurrenceDate != "" {
		if d, err := time.ParseInLocation(dateLayout, inst.OccurrenceDate, m.loc); err == nil {
			return d
		}
	}
	return m.Date(inst.ScheduledAt)
}

// Ref identifies an occurrence by series lineage and calendar date.
type Ref struct {
	SeriesID string
	Date     time.Time
}

// IsRef reports whether id looks like an occurrence reference rather than an instance id.
func IsRef(id string) bool {
	return strings.Contains(id, refSeparator)
}

// ParseRef parses "<seriesId>@<YYYY-MM-DD>".
func (m *Materializer) ParseRef(ref string) (Ref, error) {
	seriesID, date, ok := strings.Cut(ref, refSeparator)
	if !ok || seriesID == "" {
		return Ref{}, domain.NewError("ParseRef", domain.ErrValidation, "malformed occurrence reference %q", ref)
	}
	d, err := time.ParseInLocation(dateLayout, date, m.loc)
	if err != nil {
		return Ref{}, domain.NewError("ParseRef", domain.ErrValidation, "malformed occurrence date %q", date)
	}
	return Ref{SeriesID: seriesID, Date: d}, nil
}

// Locate finds the version of a lineage that produces an occurrence on date.
// When a split falls on that very date the most recent version wins.
func (m *Materializer) Locate(versions []domain.Series, date time.Time) (domain.Series, time.Time, error) {
	day := m.Date(date)
	var matches []domain.Series
	for _, v := range versions {
		if !v.Active || v.Weekday != day.Weekday() {
			continue
		}
		if v.Covers(m.Project(v, day)) {
			matches = append(matches, v)
		}
	}
	best, ok := temporal.Latest(matches)
	if !ok {
		return domain.Series{}, time.Time{}, domain.NewError("Locate", domain.ErrNotFound,
			"no session scheduled on %s", day.Format(dateLayout))
	}
	return best, m.Project(best, day), nil
}

// Slot is one projected occurrence of a version.
type Slot struct {
	Series      domain.Series
	ScheduledAt time.Time
}

// Enumerate lists every occurrence of the active versions starting in [from, to).
// Each lineage yields at most one slot per date, carried by the version Locate
// picks for that date.
func (m *Materializer) Enumerate(versions []domain.Series, from, to time.Time) []Slot {
	lineages := map[string][]domain.Series{}
	for _, v := range versions {
		if v.Active {
			lineages[v.SeriesID] = append(lineages[v.SeriesID], v)
		}
	}

	var slots []Slot
	first := m.Date(from)
	for _, lineage := range lineages {
		seen := map[string]bool{}
		for _, v := range lineage {
			offset := (int(v.Weekday) - int(first.Weekday()) + 7) % 7
			for d := first.AddDate(0, 0, offset); d.Before(to); d = d.AddDate(0, 0, 7) {
				key := d.Format(dateLayout)
				if seen[key] {
					continue
				}
				seen[key] = true
				best, start, err := m.Locate(lineage, d)
				if err != nil || start.Before(from) || !start.Before(to) {
					continue
				}
				slots = append(slots, Slot{Series: best, ScheduledAt: start})
			}
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].ScheduledAt.Equal(slots[j].ScheduledAt) {
			return slots[i].ScheduledAt.Before(slots[j].ScheduledAt)
		}
		return slots[i].Series.SeriesID < slots[j].Series.SeriesID
	})
	return slots
}
