package domain

import (
	"time"
)

// CommitmentStatus is a student's standing intention for a series.
type CommitmentStatus string

const (
	StatusAttending    CommitmentStatus = "ATTENDING"
	StatusNotAttending CommitmentStatus = "NOT_ATTENDING"
	StatusTentative    CommitmentStatus = "TENTATIVE"
)

func (s CommitmentStatus) Valid() bool {
	switch s {
	case StatusAttending, StatusNotAttending, StatusTentative:
		return true
	}
	return false
}

// Commitment is one effective-dated record of a (student, series) timeline.
type Commitment struct {
	ID            string           `bson:"_id" json:"id"`
	StudentID     string           `bson:"studentId" json:"studentId"`
	SeriesID      string           `bson:"seriesId" json:"seriesId"`
	Status        CommitmentStatus `bson:"status" json:"status"`
	EffectiveFrom time.Time        `bson:"effectiveFrom" json:"effectiveFromTimestamp"`
	EffectiveTo   *time.Time       `bson:"effectiveTo,omitempty" json:"effectiveToTimestamp"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
}

func (c Commitment) ValidFrom() time.Time { return c.EffectiveFrom }
func (c Commitment) ValidTo() *time.Time  { return c.EffectiveTo }
func (c Commitment) Created() time.Time   { return c.CreatedAt }
