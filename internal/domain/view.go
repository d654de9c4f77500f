package domain

import (
	"time"
)

// Occurrence is one concrete session: either projected from a series version
// on a date, or backed by a persisted instance.
type Occurrence struct {
	InstanceID      string    `json:"instanceId,omitempty"`
	Ref             string    `json:"ref"`
	SeriesID        string    `json:"seriesId,omitempty"`
	SeriesVersionID string    `json:"seriesVersionId,omitempty"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	SessionFields
	Override         bool     `json:"instanceOverride"`
	OverriddenFields []string `json:"overriddenFields,omitempty"`
	Cancelled        bool     `json:"cancelled"`
}

// ExerciseView is an exercise entry joined with catalog metadata.
type ExerciseView struct {
	ExerciseEntry
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ParticipantView is one student's line in a session view.
type ParticipantView struct {
	StudentID   string           `json:"studentId"`
	StudentName string           `json:"studentName"`
	Status      CommitmentStatus `json:"status"`
	Present     bool             `json:"present"`
	Notes       string           `json:"notes,omitempty"`
	Exercises   []ExerciseView   `json:"exercises"`
}

// SessionView is the aggregated read model of one session.
type SessionView struct {
	Occurrence
	TrainerName       string            `json:"trainerName"`
	Participants      []ParticipantView `json:"participants"`
	AttendingCount    int               `json:"attendingCount"`
	PresentCount      int               `json:"presentCount"`
	CapacityRemaining *int              `json:"capacityRemaining"` // nil when unlimited
}
