// internal/api/plan_handler.go
package api

import (
	"errors"
	"net/http"
	"time"

	"rehabworks/rehab-engine/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// --- DTOs ---

type CreatePlanRequest struct {
	CaseID       string                 `json:"caseId" binding:"required"`
	WorkerID     string                 `json:"workerId" binding:"required"`
	Name         string                 `json:"name" binding:"required"`
	Description  string                 `json:"description"`
	DurationDays int                    `json:"durationDays" binding:"required"`
	Exercises    []service.ExerciseSpec `json:"exercises" binding:"required"`
}

type EditPlanRequest struct {
	Name         string                 `json:"name" binding:"required"`
	Description  string                 `json:"description"`
	DurationDays int                    `json:"durationDays" binding:"required"`
	Exercises    []service.ExerciseSpec `json:"exercises" binding:"required"`
}

// --- Handlers ---

// CreatePlan assigns a new rehabilitation plan to a worker's case.
// POST /api/v1/clinician/plans
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	clinicianID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	caseID, err := primitive.ObjectIDFromHex(req.CaseID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid case ID format.")
		return
	}
	workerID, err := primitive.ObjectIDFromHex(req.WorkerID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid worker ID format.")
		return
	}

	spec := service.PlanSpec{
		Name:         req.Name,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Exercises:    req.Exercises,
	}

	plan, err := h.planService.Create(c.Request.Context(), caseID, workerID, clinicianID, spec, time.Now())
	if err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// EditPlan rewrites an active plan's name, duration, and exercise list.
// PUT /api/v1/clinician/plans/:planId
func (h *PlanHandler) EditPlan(c *gin.Context) {
	var req EditPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	clinicianID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	spec := service.PlanSpec{
		Name:         req.Name,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Exercises:    req.Exercises,
	}

	plan, err := h.planService.Edit(c.Request.Context(), planID, clinicianID, spec)
	if err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// CompletePlan moves an active plan to completed and advances the case.
// POST /api/v1/clinician/plans/:planId/complete
func (h *PlanHandler) CompletePlan(c *gin.Context) {
	clinicianID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	result, err := h.planService.Complete(c.Request.Context(), planID, clinicianID, time.Now())
	if err != nil {
		mapPlanError(c, err)
		return
	}

	// A sync warning rides along with the successful result; the completion
	// itself has committed.
	c.JSON(http.StatusOK, result)
}

// CancelPlan hard-deletes a plan and its history, freeing the case.
// DELETE /api/v1/clinician/plans/:planId
func (h *PlanHandler) CancelPlan(c *gin.Context) {
	clinicianID, ok := objectIDFromToken(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	if err := h.planService.Cancel(c.Request.Context(), planID, clinicianID); err != nil {
		mapPlanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// GetMyPlans lists the authenticated worker's plans.
// GET /api/v1/worker/plans
func (h *PlanHandler) GetMyPlans(c *gin.Context) {
	workerID, ok := objectIDFromToken(c)
	if !ok {
		return
	}

	plans, err := h.planService.GetByWorker(c.Request.Context(), workerID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve plans.")
		return
	}
	if plans == nil {
		c.JSON(http.StatusOK, gin.H{"plans": []interface{}{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// --- helpers ---

func objectIDFromToken(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid user ID format in token.")
		return primitive.NilObjectID, false
	}
	return id, true
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// mapPlanError maps service errors to HTTP status codes.
func mapPlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPlanNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicatePlanConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidStateTransition):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrDayLocked):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownExercise):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrPlanAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Operation failed.")
	}
}
