package api

import (
	"alcyxob/trainer-schedule/internal/domain" // Needed for RoleMiddleware
	"alcyxob/trainer-schedule/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	loc *time.Location,
	logger *slog.Logger,
	scheduleService service.ScheduleService,
	sessionService service.SessionService,
	commitmentService service.CommitmentService,
	archiveService service.ArchiveService,
) error {
	if err := RegisterValidators(); err != nil {
		return err
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduleHandler := NewScheduleHandler(scheduleService, archiveService, loc, logger)
	sessionHandler := NewSessionHandler(sessionService, loc, logger)
	commitmentHandler := NewCommitmentHandler(commitmentService, loc, logger)

	authMiddleware := AuthMiddleware(jwtSecret)
	staffOnly := RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role})
		})

		// --- Weekly schedule ---
		scheduleGroup := protected.Group("/schedule")
		{
			scheduleGroup.GET("", scheduleHandler.GetSchedule)
			scheduleGroup.GET("/history", scheduleHandler.GetHistory)
			scheduleGroup.POST("", staffOnly, scheduleHandler.DefineSeries)
			scheduleGroup.POST("/split", staffOnly, scheduleHandler.SplitWeek)
			scheduleGroup.POST("/archive", staffOnly, scheduleHandler.ExportHistory)
			scheduleGroup.POST("/:versionId/deactivate", staffOnly, scheduleHandler.DeactivateSeries)
			scheduleGroup.POST("/:versionId/activate", staffOnly, scheduleHandler.ActivateSeries)
		}

		// --- Sessions ---
		protected.GET("/sessions", sessionHandler.ListSessions)
		protected.POST("/sessions", staffOnly, sessionHandler.CreateOneOff)

		sessionGroup := protected.Group("/session/:instanceId")
		{
			sessionGroup.GET("", sessionHandler.GetSession)
			sessionGroup.PATCH("", staffOnly, sessionHandler.PatchSession)
			sessionGroup.POST("/cancel", staffOnly, sessionHandler.CancelSession)
			sessionGroup.POST("/restore", staffOnly, sessionHandler.RestoreSession)
			sessionGroup.PATCH("/participant/:studentId/presence", staffOnly, sessionHandler.SetPresence)
			// Students may log their own exercises; the handler checks ownership.
			sessionGroup.PUT("/participant/:studentId/exercises", sessionHandler.RecordExercises)
		}

		// --- Commitments ---
		commitmentGroup := protected.Group("/commitment")
		{
			commitmentGroup.GET("", commitmentHandler.GetStatus)
			commitmentGroup.GET("/history", commitmentHandler.GetHistory)
			commitmentGroup.POST("", commitmentHandler.SetCommitment)
			commitmentGroup.POST("/bulk", commitmentHandler.ApplyBulk)
		}
		protected.GET("/students/:studentId/commitments", commitmentHandler.GetStudentCommitments)
	}
	return nil
}
