package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompletionOutcome type for a single exercise on a single day
type CompletionOutcome string

const (
	OutcomePending   CompletionOutcome = "pending"
	OutcomeCompleted CompletionOutcome = "completed"
	OutcomeSkipped   CompletionOutcome = "skipped"
)

// ExerciseCompletionRecord captures the outcome of one prescribed exercise
// on one calendar day.
type ExerciseCompletionRecord struct {
	ExerciseID  primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Status      CompletionOutcome  `bson:"status" json:"status"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	PainLevel   *int               `bson:"painLevel,omitempty" json:"painLevel,omitempty"` // 0-10
	PainNotes   string             `bson:"painNotes,omitempty" json:"painNotes,omitempty"`
	SkipReason  string             `bson:"skipReason,omitempty" json:"skipReason,omitempty"`
}

// DailyCompletion is the record of exercise outcomes for one plan on one
// calendar day. Once every prescribed exercise is completed the day is
// locked and no record within it may be mutated again.
type DailyCompletion struct {
	ID        primitive.ObjectID         `bson:"_id,omitempty" json:"id"`
	PlanID    primitive.ObjectID         `bson:"planId" json:"planId"`
	Date      time.Time                  `bson:"date" json:"date"` // Normalized via NormalizeDay
	Records   []ExerciseCompletionRecord `bson:"records" json:"records"`
	Locked    bool                       `bson:"locked" json:"locked"`
	CreatedAt time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// Record returns the completion record for the given exercise, or nil.
func (d *DailyCompletion) Record(exerciseID primitive.ObjectID) *ExerciseCompletionRecord {
	for i := range d.Records {
		if d.Records[i].ExerciseID == exerciseID {
			return &d.Records[i]
		}
	}
	return nil
}

// AllCompleted reports whether every one of the plan's exercises has a
// completed record for this day.
func (d *DailyCompletion) AllCompleted(exercises []PlanExercise) bool {
	for i := range exercises {
		rec := d.Record(exercises[i].ID)
		if rec == nil || rec.Status != OutcomeCompleted {
			return false
		}
	}
	return len(exercises) > 0
}

// AnySkipped reports whether at least one exercise was skipped on this day.
func (d *DailyCompletion) AnySkipped() bool {
	for i := range d.Records {
		if d.Records[i].Status == OutcomeSkipped {
			return true
		}
	}
	return false
}

// NormalizeDay collapses a timestamp to its calendar day in the timestamp's
// own location, stored at midnight UTC so that equality and range queries
// compare whole days.
func NormalizeDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats a timestamp as its calendar day, used for alert dedupe keys.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
