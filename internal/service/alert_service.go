package service

import (
	"context"
	"fmt"
	"time"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/logger"
	"rehabworks/rehab-engine/internal/notification"
	"rehabworks/rehab-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertThresholds holds the operator-configurable trigger levels.
type AlertThresholds struct {
	SkippedDays       int // consecutive skipped days before a skipped_sessions alert
	MilestoneInterval int // completed-day multiple that fires a progress_milestone alert
	HighPainLevel     int // pain level at or above which a high_pain alert fires immediately
}

// DefaultAlertThresholds mirrors the config defaults.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{SkippedDays: 2, MilestoneInterval: 5, HighPainLevel: 7}
}

// --- Service Interface ---
type AlertService interface {
	// EvaluateProgress runs the threshold checks after a successful stats
	// recompute. day is the calendar day whose submission triggered the
	// recompute; it anchors the dedupe keys.
	EvaluateProgress(ctx context.Context, plan *domain.RehabilitationPlan, stats domain.ProgressStats, day time.Time) error

	// EvaluateRecord fires the immediate high-pain check for one record,
	// not batched with the recompute-driven checks.
	EvaluateRecord(ctx context.Context, plan *domain.RehabilitationPlan, day time.Time, record *domain.ExerciseCompletionRecord) error

	ListForRecipient(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool) ([]domain.Alert, error)
	MarkRead(ctx context.Context, alertID, recipientID primitive.ObjectID) error
}

// --- Service Implementation ---

// alertService implements the AlertService interface.
type alertService struct {
	alertRepo  repository.AlertRepository
	sink       notification.Sink
	thresholds AlertThresholds
}

// NewAlertService creates a new instance of alertService.
func NewAlertService(alertRepo repository.AlertRepository, sink notification.Sink, thresholds AlertThresholds) AlertService {
	if thresholds.SkippedDays <= 0 {
		thresholds.SkippedDays = 2
	}
	if thresholds.MilestoneInterval <= 0 {
		thresholds.MilestoneInterval = 5
	}
	if thresholds.HighPainLevel <= 0 {
		thresholds.HighPainLevel = 7
	}
	return &alertService{
		alertRepo:  alertRepo,
		sink:       sink,
		thresholds: thresholds,
	}
}

func (s *alertService) EvaluateProgress(ctx context.Context, plan *domain.RehabilitationPlan, stats domain.ProgressStats, day time.Time) error {
	if stats.ConsecutiveSkippedDays >= s.thresholds.SkippedDays {
		alert := &domain.Alert{
			PlanID:      plan.ID,
			RecipientID: plan.ClinicianID,
			Type:        domain.AlertSkippedSessions,
			Message:     fmt.Sprintf("%d consecutive skipped days on plan %q.", stats.ConsecutiveSkippedDays, plan.Name),
			TriggerKey:  domain.DayKey(day),
			Link:        planLink(plan.ID),
		}
		if err := s.fire(ctx, alert); err != nil {
			return err
		}
	}

	// Fires when completedDays lands exactly on a milestone multiple; the
	// dedupe key is the count itself, so later recomputes at the same count
	// never repeat it.
	if stats.CompletedDays > 0 && stats.CompletedDays%s.thresholds.MilestoneInterval == 0 {
		alert := &domain.Alert{
			PlanID:      plan.ID,
			RecipientID: plan.WorkerID,
			Type:        domain.AlertProgressMilestone,
			Message:     fmt.Sprintf("Milestone reached: %d days completed on plan %q.", stats.CompletedDays, plan.Name),
			TriggerKey:  fmt.Sprintf("%d", stats.CompletedDays),
			Link:        planLink(plan.ID),
		}
		if err := s.fire(ctx, alert); err != nil {
			return err
		}
	}

	return nil
}

func (s *alertService) EvaluateRecord(ctx context.Context, plan *domain.RehabilitationPlan, day time.Time, record *domain.ExerciseCompletionRecord) error {
	if record.PainLevel == nil || *record.PainLevel < s.thresholds.HighPainLevel {
		return nil
	}
	alert := &domain.Alert{
		PlanID:      plan.ID,
		RecipientID: plan.ClinicianID,
		Type:        domain.AlertHighPain,
		Message:     fmt.Sprintf("Pain level %d reported on plan %q.", *record.PainLevel, plan.Name),
		TriggerKey:  domain.DayKey(day) + "/" + record.ExerciseID.Hex(),
		Link:        planLink(plan.ID),
	}
	return s.fire(ctx, alert)
}

func (s *alertService) ListForRecipient(ctx context.Context, recipientID primitive.ObjectID, unreadOnly bool) ([]domain.Alert, error) {
	return s.alertRepo.GetByRecipient(ctx, recipientID, unreadOnly)
}

func (s *alertService) MarkRead(ctx context.Context, alertID, recipientID primitive.ObjectID) error {
	return s.alertRepo.MarkRead(ctx, alertID, recipientID)
}

// fire appends the alert unless its (plan, type, trigger) key already
// exists, then forwards it to the notification sink. Sink failures are
// logged and do not fail the triggering operation.
func (s *alertService) fire(ctx context.Context, alert *domain.Alert) error {
	exists, err := s.alertRepo.ExistsByTrigger(ctx, alert.PlanID, alert.Type, alert.TriggerKey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	alert.TriggeredAt = time.Now().UTC()
	if _, err := s.alertRepo.Create(ctx, alert); err != nil {
		return err
	}

	if err := s.sink.Send(ctx, alert.RecipientID, notification.TypeAlert, string(alert.Type), alert.Message, map[string]interface{}{
		"planId": alert.PlanID.Hex(),
		"link":   alert.Link,
	}); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"plan_id":    alert.PlanID.Hex(),
			"alert_type": alert.Type,
		}).Warn("Failed to forward alert to notification sink")
	}
	return nil
}

func planLink(planID primitive.ObjectID) string {
	return "/plans/" + planID.Hex()
}
