package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/logger"
	"rehabworks/rehab-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrDayLocked       = errors.New("day is locked: all exercises already completed")
	ErrUnknownExercise = errors.New("exercise is not part of the plan")
)

// --- Service Interface ---
type CompletionService interface {
	// RecordCompletion upserts one exercise outcome for (plan, date) and
	// returns stats that are current as of the write: when the submission
	// completes the day, the lock and the recompute happen before returning.
	RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, exerciseID primitive.ObjectID, outcome domain.CompletionOutcome, painLevel *int, notes string, now time.Time) (domain.ProgressStats, error)

	// RecordCheckIn upserts the worker's daily self-report (last write wins).
	RecordCheckIn(ctx context.Context, workerID primitive.ObjectID, date time.Time, exerciseDone, medicationTracked, medicationTaken bool, note string) error
}

// --- Service Implementation ---

// completionService implements the CompletionService interface.
type completionService struct {
	planRepo        repository.PlanRepository
	completionRepo  repository.CompletionRepository
	checkInRepo     repository.CheckInRepository
	progressService ProgressService
	alertService    AlertService
	locks           *PlanLocker
}

// NewCompletionService creates a new instance of completionService.
func NewCompletionService(
	planRepo repository.PlanRepository,
	completionRepo repository.CompletionRepository,
	checkInRepo repository.CheckInRepository,
	progressService ProgressService,
	alertService AlertService,
	locks *PlanLocker,
) CompletionService {
	return &completionService{
		planRepo:        planRepo,
		completionRepo:  completionRepo,
		checkInRepo:     checkInRepo,
		progressService: progressService,
		alertService:    alertService,
		locks:           locks,
	}
}

func (s *completionService) RecordCompletion(ctx context.Context, planID primitive.ObjectID, date time.Time, exerciseID primitive.ObjectID, outcome domain.CompletionOutcome, painLevel *int, notes string, now time.Time) (domain.ProgressStats, error) {
	if outcome != domain.OutcomeCompleted && outcome != domain.OutcomeSkipped {
		return domain.ProgressStats{}, fmt.Errorf("%w: outcome must be completed or skipped", ErrValidation)
	}
	if painLevel != nil && (*painLevel < 0 || *painLevel > 10) {
		return domain.ProgressStats{}, fmt.Errorf("%w: pain level must be between 0 and 10", ErrValidation)
	}

	// The upsert, the all-completed lock check, and the recompute form one
	// critical section per plan.
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ProgressStats{}, ErrPlanNotFound
		}
		return domain.ProgressStats{}, err
	}
	if plan.Status != domain.PlanStatusActive {
		return domain.ProgressStats{}, ErrInvalidStateTransition
	}
	if plan.ExerciseByID(exerciseID) == nil {
		return domain.ProgressStats{}, ErrUnknownExercise
	}

	day, err := s.completionRepo.GetByPlanAndDate(ctx, planID, date)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.ProgressStats{}, err
		}
		day = &domain.DailyCompletion{
			PlanID: planID,
			Date:   domain.NormalizeDay(date),
		}
	}

	if day.Locked {
		// An identical resubmission against a locked day is an idempotent
		// no-op; anything that would change the record is refused.
		existing := day.Record(exerciseID)
		if existing != nil && existing.Status == outcome {
			return s.progressService.Recompute(ctx, plan)
		}
		return domain.ProgressStats{}, ErrDayLocked
	}

	record := day.Record(exerciseID)
	if record == nil {
		day.Records = append(day.Records, domain.ExerciseCompletionRecord{ExerciseID: exerciseID})
		record = &day.Records[len(day.Records)-1]
	}

	record.Status = outcome
	record.PainLevel = painLevel
	switch outcome {
	case domain.OutcomeCompleted:
		completedAt := now.UTC()
		record.CompletedAt = &completedAt
		record.PainNotes = notes
		record.SkipReason = ""
	case domain.OutcomeSkipped:
		record.CompletedAt = nil
		record.SkipReason = notes
		record.PainNotes = ""
	}

	if day.AllCompleted(plan.Exercises) {
		day.Locked = true
	}

	if err := s.completionRepo.Upsert(ctx, day); err != nil {
		return domain.ProgressStats{}, err
	}

	stats, err := s.progressService.Recompute(ctx, plan)
	if err != nil {
		return domain.ProgressStats{}, err
	}

	// Threshold evaluation failures must not fail a committed submission.
	if err := s.alertService.EvaluateRecord(ctx, plan, day.Date, record); err != nil {
		logger.Log.WithError(err).WithField("plan_id", planID.Hex()).Warn("High-pain alert evaluation failed")
	}
	if err := s.alertService.EvaluateProgress(ctx, plan, stats, day.Date); err != nil {
		logger.Log.WithError(err).WithField("plan_id", planID.Hex()).Warn("Progress alert evaluation failed")
	}

	return stats, nil
}

func (s *completionService) RecordCheckIn(ctx context.Context, workerID primitive.ObjectID, date time.Time, exerciseDone, medicationTracked, medicationTaken bool, note string) error {
	if workerID == primitive.NilObjectID {
		return fmt.Errorf("%w: worker ID is required", ErrValidation)
	}
	checkIn := &domain.CheckIn{
		WorkerID:          workerID,
		Date:              domain.NormalizeDay(date),
		ExerciseDone:      exerciseDone,
		MedicationTracked: medicationTracked,
		MedicationTaken:   medicationTaken,
		Note:              note,
	}
	return s.checkInRepo.Upsert(ctx, checkIn)
}
