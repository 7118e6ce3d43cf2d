package service

import (
	"context"
	"errors"
	"testing"

	"rehabworks/rehab-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func alertTestPlan() *domain.RehabilitationPlan {
	return &domain.RehabilitationPlan{
		ID:          primitive.NewObjectID(),
		WorkerID:    primitive.NewObjectID(),
		ClinicianID: primitive.NewObjectID(),
		Name:        "knee program",
	}
}

func TestSkippedSessionsAlert(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()

	// One consecutive skipped day stays below the threshold of two.
	stats := domain.ProgressStats{PlanID: plan.ID, ConsecutiveSkippedDays: 1}
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(1)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertSkippedSessions); len(alerts) != 0 {
		t.Fatalf("alerts below threshold = %d, want 0", len(alerts))
	}

	stats.ConsecutiveSkippedDays = 2
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(2)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	alerts := env.alertRepo.byType(domain.AlertSkippedSessions)
	if len(alerts) != 1 {
		t.Fatalf("alerts at threshold = %d, want 1", len(alerts))
	}
	if alerts[0].RecipientID != plan.ClinicianID {
		t.Fatalf("recipient = %v, want clinician", alerts[0].RecipientID)
	}

	// Same day, same streak: deduped.
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(2)); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertSkippedSessions); len(alerts) != 1 {
		t.Fatalf("alerts after re-evaluation = %d, want 1", len(alerts))
	}
}

func TestMilestoneAlertFiresOncePerCount(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()

	stats := domain.ProgressStats{PlanID: plan.ID, CompletedDays: 5}
	for i := 0; i < 3; i++ {
		if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(i)); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}

	alerts := env.alertRepo.byType(domain.AlertProgressMilestone)
	if len(alerts) != 1 {
		t.Fatalf("milestone alerts = %d, want 1", len(alerts))
	}
	if alerts[0].RecipientID != plan.WorkerID {
		t.Fatalf("recipient = %v, want worker", alerts[0].RecipientID)
	}

	// The next milestone multiple fires again.
	stats.CompletedDays = 10
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(9)); err != nil {
		t.Fatalf("evaluate at 10: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertProgressMilestone); len(alerts) != 2 {
		t.Fatalf("milestone alerts = %d, want 2", len(alerts))
	}
}

func TestMilestoneNotFiredOffMultiple(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()

	stats := domain.ProgressStats{PlanID: plan.ID, CompletedDays: 4}
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(3)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertProgressMilestone); len(alerts) != 0 {
		t.Fatalf("milestone alerts = %d, want 0", len(alerts))
	}
}

func TestHighPainAlert(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()
	exID := primitive.NewObjectID()

	moderate := 6
	rec := &domain.ExerciseCompletionRecord{ExerciseID: exID, Status: domain.OutcomeCompleted, PainLevel: &moderate}
	if err := env.alertService.EvaluateRecord(ctx, plan, day(0), rec); err != nil {
		t.Fatalf("evaluate moderate: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertHighPain); len(alerts) != 0 {
		t.Fatalf("alerts below cutoff = %d, want 0", len(alerts))
	}

	severe := 7
	rec.PainLevel = &severe
	if err := env.alertService.EvaluateRecord(ctx, plan, day(0), rec); err != nil {
		t.Fatalf("evaluate severe: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertHighPain); len(alerts) != 1 {
		t.Fatalf("alerts at cutoff = %d, want 1", len(alerts))
	}

	// Same exercise and day: deduped. A different day fires again.
	if err := env.alertService.EvaluateRecord(ctx, plan, day(0), rec); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if err := env.alertService.EvaluateRecord(ctx, plan, day(1), rec); err != nil {
		t.Fatalf("evaluate next day: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertHighPain); len(alerts) != 2 {
		t.Fatalf("alerts after next day = %d, want 2", len(alerts))
	}
}

func TestAlertSinkFailureIsNonFatal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()
	env.sink.sendErr = errors.New("broker down")

	stats := domain.ProgressStats{PlanID: plan.ID, CompletedDays: 5}
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(4)); err != nil {
		t.Fatalf("evaluate with failing sink: %v", err)
	}
	if alerts := env.alertRepo.byType(domain.AlertProgressMilestone); len(alerts) != 1 {
		t.Fatalf("alert not recorded despite sink failure: %d", len(alerts))
	}
}

func TestListAndMarkRead(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	plan := alertTestPlan()

	stats := domain.ProgressStats{PlanID: plan.ID, CompletedDays: 5}
	if err := env.alertService.EvaluateProgress(ctx, plan, stats, day(4)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	alerts, err := env.alertService.ListForRecipient(ctx, plan.WorkerID, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("unread alerts = %d, want 1", len(alerts))
	}

	// Another user cannot flip the read flag.
	if err := env.alertService.MarkRead(ctx, alerts[0].ID, plan.ClinicianID); err == nil {
		t.Fatal("mark read by wrong recipient must fail")
	}

	if err := env.alertService.MarkRead(ctx, alerts[0].ID, plan.WorkerID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, err := env.alertService.ListForRecipient(ctx, plan.WorkerID, true)
	if err != nil {
		t.Fatalf("list after read: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread after read = %d, want 0", len(unread))
	}
	all, err := env.alertService.ListForRecipient(ctx, plan.WorkerID, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || !all[0].Read {
		t.Fatalf("all alerts = %+v", all)
	}
}
