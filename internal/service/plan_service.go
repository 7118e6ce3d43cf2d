package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/logger"
	"rehabworks/rehab-engine/internal/notification"
	"rehabworks/rehab-engine/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound           = errors.New("plan not found")
	ErrDuplicatePlanConflict  = errors.New("case already holds a plan")
	ErrInvalidStateTransition = errors.New("invalid plan state transition")
	ErrValidation             = errors.New("validation failed")
	ErrPlanAccessDenied       = errors.New("access denied to this plan")
)

// ExerciseSpec is the input shape for one prescribed exercise.
type ExerciseSpec struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	TargetReps   int    `json:"targetReps"`
	MediaKey     string `json:"mediaKey"`
	MediaURL     string `json:"mediaUrl"`
}

// PlanSpec is the validated input for creating or editing a plan.
type PlanSpec struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	DurationDays int            `json:"durationDays"`
	Exercises    []ExerciseSpec `json:"exercises"`
}

// Validate checks the spec's shape. Duration bounds are inclusive; values
// equal to the bounds pass and are clamped (a no-op) rather than rejected.
func (s PlanSpec) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&s.DurationDays, validation.Required,
			validation.Min(domain.MinDurationDays), validation.Max(domain.MaxDurationDays)),
		validation.Field(&s.Exercises, validation.Required, validation.By(atLeastOneNamedExercise)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func atLeastOneNamedExercise(value interface{}) error {
	exercises, _ := value.([]ExerciseSpec)
	for _, ex := range exercises {
		if strings.TrimSpace(ex.Name) != "" {
			return nil
		}
	}
	return errors.New("at least one exercise with a non-empty name is required")
}

func clampDuration(days int) int {
	if days < domain.MinDurationDays {
		return domain.MinDurationDays
	}
	if days > domain.MaxDurationDays {
		return domain.MaxDurationDays
	}
	return days
}

// CompleteResult is the caller-visible outcome of CompletePlan. The warning,
// when present, reports that the case's status did not converge; the plan's
// own completion has already committed and is never withheld because of it.
type CompleteResult struct {
	Plan       *domain.RehabilitationPlan `json:"plan"`
	CaseStatus domain.CaseStatus          `json:"caseStatus"`
	Warning    *PartialSyncWarning        `json:"warning,omitempty"`
}

// --- Service Interface ---
type PlanService interface {
	Create(ctx context.Context, caseID, workerID, clinicianID primitive.ObjectID, spec PlanSpec, now time.Time) (*domain.RehabilitationPlan, error)
	Edit(ctx context.Context, planID, clinicianID primitive.ObjectID, spec PlanSpec) (*domain.RehabilitationPlan, error)
	Complete(ctx context.Context, planID, clinicianID primitive.ObjectID, now time.Time) (*CompleteResult, error)
	Cancel(ctx context.Context, planID, clinicianID primitive.ObjectID) error
	GetByID(ctx context.Context, planID primitive.ObjectID) (*domain.RehabilitationPlan, error)
	GetByWorker(ctx context.Context, workerID primitive.ObjectID) ([]domain.RehabilitationPlan, error)
}

// --- Service Implementation ---

// planService implements the PlanService interface.
type planService struct {
	planRepo       repository.PlanRepository
	completionRepo repository.CompletionRepository
	alertRepo      repository.AlertRepository
	syncService    CaseSyncService
	sink           notification.Sink
	locks          *PlanLocker
}

// NewPlanService creates a new instance of planService.
func NewPlanService(
	planRepo repository.PlanRepository,
	completionRepo repository.CompletionRepository,
	alertRepo repository.AlertRepository,
	syncService CaseSyncService,
	sink notification.Sink,
	locks *PlanLocker,
) PlanService {
	return &planService{
		planRepo:       planRepo,
		completionRepo: completionRepo,
		alertRepo:      alertRepo,
		syncService:    syncService,
		sink:           sink,
		locks:          locks,
	}
}

// Create validates the spec, enforces the one-plan-per-case rule, and
// persists a new active plan with no completion history.
func (s *planService) Create(ctx context.Context, caseID, workerID, clinicianID primitive.ObjectID, spec PlanSpec, now time.Time) (*domain.RehabilitationPlan, error) {
	if caseID == primitive.NilObjectID || workerID == primitive.NilObjectID || clinicianID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: case ID, worker ID, and clinician ID are required", ErrValidation)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// A case already holding a plan in any status cannot receive another
	// until the existing plan is cancelled.
	existing, err := s.planRepo.GetByCaseID(ctx, caseID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicatePlanConflict
	}

	exercises := make([]domain.PlanExercise, 0, len(spec.Exercises))
	for _, ex := range spec.Exercises {
		exercises = append(exercises, domain.PlanExercise{
			ID:           primitive.NewObjectID(),
			Name:         ex.Name,
			Instructions: ex.Instructions,
			TargetReps:   ex.TargetReps,
			MediaKey:     ex.MediaKey,
			MediaURL:     ex.MediaURL,
		})
	}

	plan := &domain.RehabilitationPlan{
		CaseID:       caseID,
		WorkerID:     workerID,
		ClinicianID:  clinicianID,
		Name:         spec.Name,
		Description:  spec.Description,
		Exercises:    exercises,
		DurationDays: clampDuration(spec.DurationDays),
		StartDate:    domain.NormalizeDay(now),
		Status:       domain.PlanStatusActive,
	}

	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = planID

	// Notification failures are non-fatal to plan operations.
	if err := s.sink.Send(ctx, workerID, notification.TypePlanAssigned,
		"New rehabilitation plan",
		fmt.Sprintf("Your clinician assigned you the plan %q (%d days).", plan.Name, plan.DurationDays),
		map[string]interface{}{"planId": planID.Hex()},
	); err != nil {
		logger.Log.WithError(err).WithField("plan_id", planID.Hex()).Warn("Failed to send plan assignment notification")
	}

	return plan, nil
}

// Edit replaces the plan's name, duration, and exercise list while the plan
// is active. Exercise entries keep the identity of the entry previously at
// the same position, so completion records of locked days stay attached and
// history cannot be un-completed by a rewrite.
func (s *planService) Edit(ctx context.Context, planID, clinicianID primitive.ObjectID, spec PlanSpec) (*domain.RehabilitationPlan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.getOwned(ctx, planID, clinicianID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanStatusActive {
		return nil, ErrInvalidStateTransition
	}

	exercises := make([]domain.PlanExercise, 0, len(spec.Exercises))
	for i, ex := range spec.Exercises {
		id := primitive.NewObjectID()
		if i < len(plan.Exercises) {
			id = plan.Exercises[i].ID
		}
		exercises = append(exercises, domain.PlanExercise{
			ID:           id,
			Name:         ex.Name,
			Instructions: ex.Instructions,
			TargetReps:   ex.TargetReps,
			MediaKey:     ex.MediaKey,
			MediaURL:     ex.MediaURL,
		})
	}

	plan.Name = spec.Name
	plan.Description = spec.Description
	plan.DurationDays = clampDuration(spec.DurationDays)
	plan.Exercises = exercises

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Complete moves an active plan to its completed terminal state, then asks
// the case store to advance the case. A divergent case status is surfaced
// as a warning; it never rolls the completion back.
func (s *planService) Complete(ctx context.Context, planID, clinicianID primitive.ObjectID, now time.Time) (*CompleteResult, error) {
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.getOwned(ctx, planID, clinicianID)
	if err != nil {
		return nil, err
	}
	if plan.Status != domain.PlanStatusActive {
		return nil, ErrInvalidStateTransition
	}

	endDate := domain.NormalizeDay(now)
	plan.Status = domain.PlanStatusCompleted
	plan.EndDate = &endDate

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, err
	}

	caseStatus, warning := s.syncService.SyncOnCompletion(ctx, plan)

	if err := s.sink.Send(ctx, plan.WorkerID, notification.TypePlanCompleted,
		"Plan completed",
		fmt.Sprintf("Your rehabilitation plan %q is complete.", plan.Name),
		map[string]interface{}{"planId": planID.Hex()},
	); err != nil {
		logger.Log.WithError(err).WithField("plan_id", planID.Hex()).Warn("Failed to send plan completion notification")
	}

	return &CompleteResult{Plan: plan, CaseStatus: caseStatus, Warning: warning}, nil
}

// Cancel hard-deletes a non-terminal plan together with its completion and
// alert records, freeing the case for a new plan. There is no archival
// state: cancellation is destructive by design.
func (s *planService) Cancel(ctx context.Context, planID, clinicianID primitive.ObjectID) error {
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.getOwned(ctx, planID, clinicianID)
	if err != nil {
		return err
	}
	if plan.IsTerminal() {
		return ErrInvalidStateTransition
	}

	if err := s.completionRepo.DeleteByPlanID(ctx, planID); err != nil {
		return err
	}
	if err := s.alertRepo.DeleteByPlanID(ctx, planID); err != nil {
		return err
	}
	if err := s.planRepo.Delete(ctx, planID); err != nil {
		return err
	}

	s.locks.Forget(planID)

	logger.Log.WithFields(map[string]interface{}{
		"plan_id": planID.Hex(),
		"case_id": plan.CaseID.Hex(),
	}).Info("Plan cancelled and deleted")
	return nil
}

// GetByID retrieves a single plan.
func (s *planService) GetByID(ctx context.Context, planID primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// GetByWorker retrieves all plans assigned to a worker.
func (s *planService) GetByWorker(ctx context.Context, workerID primitive.ObjectID) ([]domain.RehabilitationPlan, error) {
	return s.planRepo.GetByWorkerID(ctx, workerID)
}

// getOwned fetches a plan and checks clinician ownership. Plans are owned
// exclusively by the clinician who created them.
func (s *planService) getOwned(ctx context.Context, planID, clinicianID primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if clinicianID != primitive.NilObjectID && plan.ClinicianID != clinicianID {
		return nil, ErrPlanAccessDenied
	}
	return plan, nil
}
