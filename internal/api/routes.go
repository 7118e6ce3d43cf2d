package api

import (
	"net/http"

	"rehabworks/rehab-engine/internal/domain"
	"rehabworks/rehab-engine/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	planService service.PlanService,
	completionService service.CompletionService,
	progressService service.ProgressService,
	alertService service.AlertService,
) {
	authHandler := NewAuthHandler(authService)
	planHandler := NewPlanHandler(planService)
	progressHandler := NewProgressHandler(planService, completionService, progressService, alertService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Shared progress routes ---
		// Both roles can read a plan's progress; the service layer scopes
		// what each role may see.
		protected.GET("/plans/:planId/progress", progressHandler.GetProgress)
		protected.GET("/plans/:planId/series", progressHandler.GetSeries)
		protected.GET("/plans/:planId/stats/verify", progressHandler.VerifyStats)

		// --- Alert routes ---
		protected.GET("/alerts", progressHandler.ListAlerts)
		protected.POST("/alerts/:alertId/read", progressHandler.MarkAlertRead)

		// --- Clinician routes ---
		clinicianGroup := protected.Group("/clinician")
		clinicianGroup.Use(RoleMiddleware(domain.RoleClinician))
		{
			// POST /api/v1/clinician/plans
			clinicianGroup.POST("/plans", planHandler.CreatePlan)
			// PUT /api/v1/clinician/plans/{planId}
			clinicianGroup.PUT("/plans/:planId", planHandler.EditPlan)
			// POST /api/v1/clinician/plans/{planId}/complete
			clinicianGroup.POST("/plans/:planId/complete", planHandler.CompletePlan)
			// DELETE /api/v1/clinician/plans/{planId}
			clinicianGroup.DELETE("/plans/:planId", planHandler.CancelPlan)
			// GET /api/v1/clinician/workers/{workerId}/compliance
			clinicianGroup.GET("/workers/:workerId/compliance", progressHandler.GetCompliance)
		}

		// --- Worker routes ---
		workerGroup := protected.Group("/worker")
		workerGroup.Use(RoleMiddleware(domain.RoleWorker))
		{
			// GET /api/v1/worker/plans
			workerGroup.GET("/plans", planHandler.GetMyPlans)
			// POST /api/v1/worker/plans/{planId}/completions
			workerGroup.POST("/plans/:planId/completions", progressHandler.RecordCompletion)
			// POST /api/v1/worker/checkins
			workerGroup.POST("/checkins", progressHandler.RecordCheckIn)
		}
	}
}
