package domain

import (
	"time"
)

// ExerciseEntry records one exercise a student did (or was meant to do) in a session.
type ExerciseEntry struct {
	ExerciseID string   `bson:"exerciseId" json:"exerciseId"`
	Sets       *int     `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps       *string  `bson:"reps,omitempty" json:"reps,omitempty"` // e.g. "8-12", "AMRAP"
	Weight     *float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	Done       bool     `bson:"done" json:"done"`
}

// ParticipantRecord holds execution facts for one student in one instance.
// It is not versioned; corrections overwrite it.
type ParticipantRecord struct {
	InstanceID string          `bson:"instanceId" json:"instanceId"`
	StudentID  string          `bson:"studentId" json:"studentId"`
	Present    bool            `bson:"present" json:"present"`
	Notes      string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Exercises  []ExerciseEntry `bson:"exercises,omitempty" json:"exercises"`
	UpdatedAt  time.Time       `bson:"updatedAt" json:"updatedAt"`
}
