package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckIn is a worker's daily self-report, the raw material for the
// compliance score. One per worker per calendar day; resubmission on the
// same day overwrites (last write wins).
type CheckIn struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkerID          primitive.ObjectID `bson:"workerId" json:"workerId"`
	Date              time.Time          `bson:"date" json:"date"` // Normalized via NormalizeDay
	ExerciseDone      bool               `bson:"exerciseDone" json:"exerciseDone"`
	MedicationTracked bool               `bson:"medicationTracked" json:"medicationTracked"`
	MedicationTaken   bool               `bson:"medicationTaken" json:"medicationTaken"`
	Note              string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Compliant reports whether this check-in satisfies both exercise and, when
// tracked, medication compliance.
func (c *CheckIn) Compliant() bool {
	if !c.ExerciseDone {
		return false
	}
	if c.MedicationTracked && !c.MedicationTaken {
		return false
	}
	return true
}
