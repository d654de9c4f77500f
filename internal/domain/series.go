package domain

import (
	"time"
)

// Series is one version of a trainer's recurring weekly session on a weekday.
// Versions are append-only: only the validity window and the Active flag ever change.
type Series struct {
	ID              string       `bson:"_id" json:"id"`             // version id
	SeriesID        string       `bson:"seriesId" json:"seriesId"`  // lineage shared by consecutive versions
	TrainerID       string       `bson:"trainerId" json:"trainerId"`
	Weekday         time.Weekday `bson:"weekday" json:"weekday"` // 0 = Sunday
	StartTime       Clock        `bson:"startTime" json:"startTime"`
	DurationMinutes int          `bson:"durationMinutes" json:"durationMinutes"`
	Name            string       `bson:"name" json:"name"`
	Room            *string      `bson:"room,omitempty" json:"room"`
	Equipment       *string      `bson:"equipment,omitempty" json:"equipment"`
	Notes           *string      `bson:"notes,omitempty" json:"notes"`
	MaxParticipants *int         `bson:"maxParticipants,omitempty" json:"maxParticipants"`
	EffectiveFrom   time.Time    `bson:"effectiveFrom" json:"effectiveFrom"`
	EffectiveTo     *time.Time   `bson:"effectiveTo,omitempty" json:"effectiveTo"`
	Active          bool         `bson:"active" json:"active"`
	CreatedAt       time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time    `bson:"updatedAt" json:"updatedAt"`
}

func (s Series) ValidFrom() time.Time { return s.EffectiveFrom }
func (s Series) ValidTo() *time.Time  { return s.EffectiveTo }
func (s Series) Created() time.Time   { return s.CreatedAt }

// Duration of one session.
func (s Series) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Covers reports whether t falls inside the version's window.
func (s Series) Covers(t time.Time) bool {
	return !t.Before(s.EffectiveFrom) && (s.EffectiveTo == nil || t.Before(*s.EffectiveTo))
}

// Open reports whether the version has no end.
func (s Series) Open() bool { return s.EffectiveTo == nil }

// Validate checks the fields a new version must carry.
func (s Series) Validate() error {
	const op = "Series.Validate"
	switch {
	case s.TrainerID == "":
		return NewError(op, ErrValidation, "trainer id is required")
	case s.Weekday < time.Sunday || s.Weekday > time.Saturday:
		return NewError(op, ErrValidation, "weekday must be between 0 and 6")
	case !s.StartTime.Valid():
		return NewError(op, ErrValidation, "start time is out of range")
	case s.DurationMinutes <= 0:
		return NewError(op, ErrValidation, "duration must be positive")
	case s.StartTime+Clock(s.DurationMinutes) > minutesPerDay:
		return NewError(op, ErrValidation, "session must end on the day it starts")
	case s.MaxParticipants != nil && *s.MaxParticipants < 0:
		return NewError(op, ErrValidation, "max participants cannot be negative")
	case s.EffectiveFrom.IsZero():
		return NewError(op, ErrValidation, "effectiveFrom is required")
	case s.EffectiveTo != nil && s.EffectiveTo.Before(s.EffectiveFrom):
		return NewError(op, ErrInvalidEffectiveDate, "effectiveTo precedes effectiveFrom")
	}
	return nil
}

// SeriesDefaults are the per-session values a version hands to its occurrences.
type SeriesDefaults struct {
	Name            string
	Room            *string
	Equipment       *string
	Notes           *string
	MaxParticipants *int
}

// WeekdayConfig configures one weekday for a week split.
type WeekdayConfig struct {
	Weekday   time.Weekday
	Active    bool
	StartTime Clock
	EndTime   Clock
	// Optional overrides; nil inherits from the version being closed.
	Name            *string
	Room            *string
	Equipment       *string
	Notes           *string
	MaxParticipants *int
}
