package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus type for the rehabilitation plan lifecycle
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed" // Terminal: worker finished or clinician closed the plan
	PlanStatusCancelled PlanStatus = "cancelled" // Terminal: plan and its completions are hard-deleted
)

// Duration bounds for a plan, in days.
const (
	MinDurationDays = 1
	MaxDurationDays = 365
)

// PlanExercise is one prescribed exercise within a plan. Position in the
// plan's exercise list is meaningful: edits match old and new entries by
// position so that completion history stays attached across renames.
type PlanExercise struct {
	ID           primitive.ObjectID `bson:"id" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Instructions string             `bson:"instructions,omitempty" json:"instructions,omitempty"`
	TargetReps   int                `bson:"targetReps,omitempty" json:"targetReps,omitempty"`
	MediaKey     string             `bson:"mediaKey,omitempty" json:"-"`                        // Object key of reference media in S3 - internal use
	MediaURL     string             `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`       // Optional external reference video/image URL
}

// RehabilitationPlan is a time-boxed exercise program prescribed by a
// clinician to a worker for a specific case. A case holds at most one plan
// at a time; freeing the case requires cancelling (deleting) the plan.
type RehabilitationPlan struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CaseID       primitive.ObjectID `bson:"caseId" json:"caseId"`
	WorkerID     primitive.ObjectID `bson:"workerId" json:"workerId"`
	ClinicianID  primitive.ObjectID `bson:"clinicianId" json:"clinicianId"` // Owner; workers and cases hold only references
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Exercises    []PlanExercise     `bson:"exercises" json:"exercises"`
	DurationDays int                `bson:"durationDays" json:"durationDays"`
	StartDate    time.Time          `bson:"startDate" json:"startDate"`
	EndDate      *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Status       PlanStatus         `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ExerciseByID returns the prescribed exercise with the given ID, or nil.
func (p *RehabilitationPlan) ExerciseByID(id primitive.ObjectID) *PlanExercise {
	for i := range p.Exercises {
		if p.Exercises[i].ID == id {
			return &p.Exercises[i]
		}
	}
	return nil
}

// IsTerminal reports whether the plan can no longer transition.
func (p *RehabilitationPlan) IsTerminal() bool {
	return p.Status == PlanStatusCompleted || p.Status == PlanStatusCancelled
}
