package repository

import (
	"context"
	"time"

	"rehabworks/rehab-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// PlanRepository defines the interface for interacting with rehabilitation
// plan data. A case holds at most one plan; GetByCaseID is the duplicate-plan
// guard's read.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.RehabilitationPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.RehabilitationPlan, error)
	GetByCaseID(ctx context.Context, caseID primitive.ObjectID) (*domain.RehabilitationPlan, error)
	GetByWorkerID(ctx context.Context, workerID primitive.ObjectID) ([]domain.RehabilitationPlan, error)
	Update(ctx context.Context, plan *domain.RehabilitationPlan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// CompletionRepository defines the interface for daily completion records,
// keyed by (planId, date).
type CompletionRepository interface {
	Upsert(ctx context.Context, completion *domain.DailyCompletion) error
	GetByPlanAndDate(ctx context.Context, planID primitive.ObjectID, date time.Time) (*domain.DailyCompletion, error)
	// GetByPlanID returns all completion records for a plan in ascending
	// date order.
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.DailyCompletion, error)
	DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) error
}

// CheckInRepository defines the interface for worker daily check-ins,
// keyed by (workerId, date).
type CheckInRepository interface {
	Upsert(ctx context.Context, checkIn *domain.CheckIn) error
	// GetByWorkerInWindow returns check-ins dated within [from, to] inclusive.
	GetByWorkerInWindow(ctx context.Context, workerID primitive.ObjectID, from, to time.Time) ([]domain.CheckIn, error)
}

// AlertRepository defines the interface for alert records. Alerts are
// append-only; only the read flag is mutable.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.Alert) (primitive.ObjectID, error)
	ExistsByTrigger(ctx context.Context, planID primitive.ObjectID, alertType domain.AlertType, triggerKey string) (bool, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.Alert, error)
	GetByRecipient(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool) ([]domain.Alert, error)
	MarkRead(ctx context.Context, alertID, recipientID primitive.ObjectID) error
	DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) error
}

// CaseStore is the external case record collaborator. The engine touches
// only the status field.
type CaseStore interface {
	GetCaseStatus(ctx context.Context, caseID primitive.ObjectID) (domain.CaseStatus, error)
	SetCaseStatus(ctx context.Context, caseID primitive.ObjectID, status domain.CaseStatus) error
}
