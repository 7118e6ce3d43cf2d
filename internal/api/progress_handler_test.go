package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rehabworks/rehab-engine/internal/analytics"
	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubPlanService struct {
	plan       *domain.RehabilitationPlan
	getByIDErr error
}

func (s *stubPlanService) Create(context.Context, primitive.ObjectID, primitive.ObjectID, primitive.ObjectID, service.PlanSpec, time.Time) (*domain.RehabilitationPlan, error) {
	return nil, nil
}

func (s *stubPlanService) Edit(context.Context, primitive.ObjectID, primitive.ObjectID, service.PlanSpec) (*domain.RehabilitationPlan, error) {
	return nil, nil
}

func (s *stubPlanService) Complete(context.Context, primitive.ObjectID, primitive.ObjectID, time.Time) (*service.CompleteResult, error) {
	return nil, nil
}

func (s *stubPlanService) Cancel(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return nil
}

func (s *stubPlanService) GetByID(_ context.Context, planID primitive.ObjectID) (*domain.RehabilitationPlan, error) {
	if s.getByIDErr != nil {
		return nil, s.getByIDErr
	}
	return s.plan, nil
}

func (s *stubPlanService) GetByWorker(context.Context, primitive.ObjectID) ([]domain.RehabilitationPlan, error) {
	return nil, nil
}

type stubProgressService struct {
	getProgressCalls int
	verifyCalls      int
	verifiedPlan     *domain.RehabilitationPlan
	consistent       bool
}

func (s *stubProgressService) Recompute(context.Context, *domain.RehabilitationPlan) (domain.ProgressStats, error) {
	return domain.ProgressStats{}, nil
}

func (s *stubProgressService) ComplianceScore(context.Context, primitive.ObjectID, time.Time, time.Time) (domain.ComplianceScore, error) {
	return domain.ComplianceScore{}, nil
}

func (s *stubProgressService) VerifyCachedStats(_ context.Context, plan *domain.RehabilitationPlan) (bool, error) {
	s.verifyCalls++
	s.verifiedPlan = plan
	return s.consistent, nil
}

func (s *stubProgressService) GetProgress(context.Context, primitive.ObjectID, time.Time) (*service.ProgressReport, error) {
	s.getProgressCalls++
	return &service.ProgressReport{}, nil
}

func (s *stubProgressService) CompletionSeries(context.Context, primitive.ObjectID, time.Time, time.Time) (*analytics.Series, error) {
	return &analytics.Series{}, nil
}

// Verification must compare the cache against a recompute without touching
// the cache first; a progress read beforehand would refresh the entry and
// always report consistent.
func TestVerifyStatsDoesNotRecomputeFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	plan := &domain.RehabilitationPlan{ID: primitive.NewObjectID(), Name: "p"}
	planSvc := &stubPlanService{plan: plan}
	progressSvc := &stubProgressService{consistent: false}

	handler := NewProgressHandler(planSvc, nil, progressSvc, nil)
	router := gin.New()
	router.GET("/plans/:planId/stats/verify", handler.VerifyStats)

	req := httptest.NewRequest(http.MethodGet, "/plans/"+plan.ID.Hex()+"/stats/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if progressSvc.getProgressCalls != 0 {
		t.Fatalf("progress report fetched %d times before verification, want 0", progressSvc.getProgressCalls)
	}
	if progressSvc.verifyCalls != 1 {
		t.Fatalf("verify calls = %d, want 1", progressSvc.verifyCalls)
	}
	if progressSvc.verifiedPlan != plan {
		t.Fatal("verification did not receive the fetched plan")
	}
	if !strings.Contains(rec.Body.String(), `"consistent":false`) {
		t.Fatalf("body = %s, want consistent:false", rec.Body.String())
	}
}

func TestVerifyStatsUnknownPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	planSvc := &stubPlanService{getByIDErr: service.ErrPlanNotFound}
	progressSvc := &stubProgressService{}

	handler := NewProgressHandler(planSvc, nil, progressSvc, nil)
	router := gin.New()
	router.GET("/plans/:planId/stats/verify", handler.VerifyStats)

	req := httptest.NewRequest(http.MethodGet, "/plans/"+primitive.NewObjectID().Hex()+"/stats/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if progressSvc.verifyCalls != 0 {
		t.Fatalf("verify calls = %d, want 0", progressSvc.verifyCalls)
	}
}
