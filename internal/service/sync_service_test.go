package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rehabworks/rehab-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSyncOnCompletionSuccess(t *testing.T) {
	env := newTestEnv()
	plan := &domain.RehabilitationPlan{
		ID:          primitive.NewObjectID(),
		CaseID:      primitive.NewObjectID(),
		ClinicianID: primitive.NewObjectID(),
	}

	status, warning := env.syncService.SyncOnCompletion(context.Background(), plan)
	if warning != nil {
		t.Fatalf("unexpected warning: %+v", warning)
	}
	if status != domain.CaseStatusReturnToWork {
		t.Fatalf("status = %q, want return_to_work", status)
	}
}

func TestCompletePlanSurvivesCaseStoreFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	clinicianID := primitive.NewObjectID()

	plan, err := env.planService.Create(ctx, primitive.NewObjectID(), primitive.NewObjectID(), clinicianID, singleExerciseSpec("p"), testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.caseStore.setErr = errors.New("case storage down")

	// The plan completion commits; the case divergence arrives as a warning.
	result, err := env.planService.Complete(ctx, plan.ID, clinicianID, testNow)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Plan.Status != domain.PlanStatusCompleted {
		t.Fatalf("plan status = %q, want completed", result.Plan.Status)
	}
	if result.Warning == nil {
		t.Fatal("expected a partial sync warning")
	}

	stored, err := env.planService.GetByID(ctx, plan.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.PlanStatusCompleted {
		t.Fatalf("stored status = %q, want completed", stored.Status)
	}
}

func TestSyncOnCompletionReportsUnadvancedStatus(t *testing.T) {
	env := newTestEnv()
	env.caseStore.stickyStatus = domain.CaseStatusOpen

	plan := &domain.RehabilitationPlan{
		ID:          primitive.NewObjectID(),
		CaseID:      primitive.NewObjectID(),
		ClinicianID: primitive.NewObjectID(),
	}

	_, warning := env.syncService.SyncOnCompletion(context.Background(), plan)
	if warning == nil {
		t.Fatal("expected warning when read-back shows an unsettled status")
	}
	if warning.Actual != domain.CaseStatusOpen {
		t.Fatalf("warning actual = %q, want open", warning.Actual)
	}
}

func TestVerifyAndRepairSettled(t *testing.T) {
	env := newTestEnv()
	caseID := primitive.NewObjectID()
	if err := env.caseStore.SetCaseStatus(context.Background(), caseID, domain.CaseStatusReturnToWork); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if w := env.syncService.VerifyAndRepair(context.Background(), caseID); w != nil {
		t.Fatalf("unexpected warning for settled case: %+v", w)
	}
}

func TestVerifyAndRepairIssuesCorrectiveWrite(t *testing.T) {
	env := newTestEnv()
	caseID := primitive.NewObjectID()
	// The case sits at open, as if the primary write never took effect.

	before := env.caseStore.setCalls
	w := env.syncService.VerifyAndRepair(context.Background(), caseID)
	if w == nil {
		t.Fatal("expected warning for unsettled case")
	}
	if env.caseStore.setCalls != before+1 {
		t.Fatalf("corrective writes = %d, want 1", env.caseStore.setCalls-before)
	}

	status, err := env.caseStore.GetCaseStatus(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != domain.CaseStatusReturnToWork {
		t.Fatalf("status after repair = %q, want return_to_work", status)
	}
}

func TestVerifyAndRepairCancelledContext(t *testing.T) {
	caseStore := newFakeCaseStore()
	svc := NewCaseSyncService(caseStore, newFakeAlertRepo(), 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := svc.VerifyAndRepair(ctx, primitive.NewObjectID())
	if w == nil {
		t.Fatal("expected warning when cancelled before the re-read")
	}
	if caseStore.setCalls != 0 {
		t.Fatalf("no write should happen after cancellation, got %d", caseStore.setCalls)
	}
}

func TestDivergenceAlertRecorded(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	clinicianID := primitive.NewObjectID()

	plan, err := env.planService.Create(ctx, primitive.NewObjectID(), primitive.NewObjectID(), clinicianID, singleExerciseSpec("p"), testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.caseStore.stickyStatus = domain.CaseStatusOpen
	if _, err := env.planService.Complete(ctx, plan.ID, clinicianID, testNow); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The delayed verification runs on its own goroutine with a 1ms delay.
	deadline := time.After(2 * time.Second)
	for {
		if alerts := env.alertRepo.byType(domain.AlertSyncDivergence); len(alerts) > 0 {
			if alerts[0].RecipientID != clinicianID {
				t.Fatalf("divergence alert recipient = %v, want clinician", alerts[0].RecipientID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no sync divergence alert recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
