// internal/api/progress_handler.go
package api

import (
	"errors"
	"net/http"
	"time"

	"rehabworks/rehab-engine/internal/analytics"
	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressHandler serves the read path: progress reports, chart series,
// compliance scores, alerts, and completion submissions.
type ProgressHandler struct {
	planService       service.PlanService
	completionService service.CompletionService
	progressService   service.ProgressService
	alertService      service.AlertService
}

func NewProgressHandler(
	planService service.PlanService,
	completionService service.CompletionService,
	progressService service.ProgressService,
	alertService service.AlertService,
) *ProgressHandler {
	return &ProgressHandler{
		planService:       planService,
		completionService: completionService,
		progressService:   progressService,
		alertService:      alertService,
	}
}

// --- DTOs ---

type RecordCompletionRequest struct {
	Date       string `json:"date" binding:"required"` // 2006-01-02
	ExerciseID string `json:"exerciseId" binding:"required"`
	Outcome    string `json:"outcome" binding:"required"` // completed | skipped
	PainLevel  *int   `json:"painLevel"`
	Notes      string `json:"notes"`
}

type CheckInRequest struct {
	Date              string `json:"date" binding:"required"`
	ExerciseDone      bool   `json:"exerciseDone"`
	MedicationTracked bool   `json:"medicationTracked"`
	MedicationTaken   bool   `json:"medicationTaken"`
	Note              string `json:"note"`
}

// --- Handlers ---

// RecordCompletion submits one exercise outcome for a day.
// POST /api/v1/worker/plans/:planId/completions
func (h *ProgressHandler) RecordCompletion(c *gin.Context) {
	var req RecordCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	exerciseID, err := primitive.ObjectIDFromHex(req.ExerciseID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid exercise ID format.")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD.")
		return
	}

	stats, err := h.completionService.RecordCompletion(
		c.Request.Context(), planID, date, exerciseID,
		domain.CompletionOutcome(req.Outcome), req.PainLevel, req.Notes, time.Now(),
	)
	if err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":              stats,
		"progressPercentage": stats.ProgressPercentage(),
	})
}

// RecordCheckIn submits the worker's daily self-report.
// POST /api/v1/worker/checkins
func (h *ProgressHandler) RecordCheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	workerID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD.")
		return
	}

	if err := h.completionService.RecordCheckIn(c.Request.Context(), workerID, date,
		req.ExerciseDone, req.MedicationTracked, req.MedicationTaken, req.Note); err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// GetProgress returns the dashboard read model for one plan.
// GET /api/v1/plans/:planId/progress
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	report, err := h.progressService.GetProgress(c.Request.Context(), planID, time.Now())
	if err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetSeries returns a chart-ready time series of fully-completed days.
// GET /api/v1/plans/:planId/series?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *ProgressHandler) GetSeries(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	start, end, ok := dateRangeQuery(c)
	if !ok {
		return
	}

	series, err := h.progressService.CompletionSeries(c.Request.Context(), planID, start, end)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidRange) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// GetCompliance scores a worker's check-ins over a window.
// GET /api/v1/clinician/workers/:workerId/compliance?start=...&end=...
func (h *ProgressHandler) GetCompliance(c *gin.Context) {
	workerID, ok := objectIDParam(c, "workerId")
	if !ok {
		return
	}
	start, end, ok := dateRangeQuery(c)
	if !ok {
		return
	}

	score, err := h.progressService.ComplianceScore(c.Request.Context(), workerID, start, end)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to compute compliance score.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"score": score, "compliant": score.IsCompliant()})
}

// VerifyStats compares cached stats against a fresh recompute. The plan is
// fetched directly; going through the progress report would refresh the
// cache first and verify it against itself.
// GET /api/v1/plans/:planId/stats/verify
func (h *ProgressHandler) VerifyStats(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	plan, err := h.planService.GetByID(c.Request.Context(), planID)
	if err != nil {
		mapPlanError(c, err)
		return
	}

	consistent, err := h.progressService.VerifyCachedStats(c.Request.Context(), plan)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Stats verification failed.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"consistent": consistent})
}

// ListAlerts returns alerts addressed to the authenticated user.
// GET /api/v1/alerts?unread=true
func (h *ProgressHandler) ListAlerts(c *gin.Context) {
	recipientID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"

	alerts, err := h.alertService.ListForRecipient(c.Request.Context(), recipientID, unreadOnly)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve alerts.")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// MarkAlertRead flips an alert's read flag.
// POST /api/v1/alerts/:alertId/read
func (h *ProgressHandler) MarkAlertRead(c *gin.Context) {
	recipientID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	alertID, ok := objectIDParam(c, "alertId")
	if !ok {
		return
	}

	if err := h.alertService.MarkRead(c.Request.Context(), alertID, recipientID); err != nil {
		abortWithError(c, http.StatusNotFound, "Alert not found.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// --- helpers ---

func dateRangeQuery(c *gin.Context) (start, end time.Time, ok bool) {
	var err error
	start, err = time.ParseInLocation("2006-01-02", c.Query("start"), time.Local)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD.")
		return start, end, false
	}
	end, err = time.ParseInLocation("2006-01-02", c.Query("end"), time.Local)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD.")
		return start, end, false
	}
	return start, end, true
}
