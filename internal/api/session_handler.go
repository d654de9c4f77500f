package api

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService service.SessionService
	loc            *time.Location
	logger         *slog.Logger
}

func NewSessionHandler(sessionService service.SessionService, loc *time.Location, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		loc:            loc,
		logger:         logger,
	}
}

// --- DTOs ---

type CreateOneOffRequest struct {
	TrainerID       string    `json:"trainerId" binding:"required"`
	StartsAt        time.Time `json:"startsAt" binding:"required"`
	EndsAt          time.Time `json:"endsAt" binding:"required,gtfield=StartsAt"`
	Label           *string   `json:"label"`
	Notes           *string   `json:"notes"`
	Room            *string   `json:"room"`
	Equipment       *string   `json:"equipment"`
	MaxParticipants *int      `json:"maxParticipants" binding:"omitempty,min=0"`
}

// PatchSessionRequest carries per-instance overrides. A missing key leaves the
// field as it is, an explicit null clears it, and names listed in revert drop
// their override so the field inherits from the series again.
type PatchSessionRequest struct {
	domain.InstanceDiff
	Revert []string `json:"revert"`
}

type PresenceRequest struct {
	Present *bool   `json:"present" binding:"required"`
	Notes   *string `json:"notes"`
}

type ExerciseEntryRequest struct {
	ExerciseID string   `json:"exerciseId" binding:"required"`
	Sets       *int     `json:"sets" binding:"omitempty,min=0"`
	Reps       *string  `json:"reps"`
	Weight     *float64 `json:"weight" binding:"omitempty,min=0"`
	Done       bool     `json:"done"`
}

type RecordExercisesRequest struct {
	Exercises []ExerciseEntryRequest `json:"exercises" binding:"dive"`
}

// --- Handler Methods ---

// authorizeSession aborts the request unless the caller manages the session's trainer.
func (h *SessionHandler) authorizeSession(c *gin.Context) bool {
	trainers, err := h.sessionService.Trainers(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return false
	}
	if !canManageSession(c, trainers) {
		abortWithError(c, http.StatusForbidden, "Trainers may only manage their own sessions.")
		return false
	}
	return true
}

// ListSessions godoc
// @Summary List a trainer's sessions in a time range
// @Description Occurrences are projected from the schedule on demand and merged with persisted instances and one-off sessions.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param trainerId query string true "Trainer ID"
// @Param from query string true "Range start (RFC 3339 or date)"
// @Param to query string true "Range end, exclusive (RFC 3339 or date)"
// @Success 200 {array} domain.Occurrence
// @Failure 400 {object} gin.H "Invalid range"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	trainerID, ok := requiredQuery(c, "trainerId")
	if !ok {
		return
	}
	if _, ok := requiredQuery(c, "from"); !ok {
		return
	}
	if _, ok := requiredQuery(c, "to"); !ok {
		return
	}
	from, err := queryInstant(c, "from", h.loc, time.Time{})
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := queryInstant(c, "to", h.loc, time.Time{})
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	sessions, err := h.sessionService.ListSessions(c.Request.Context(), trainerID, from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// CreateOneOff godoc
// @Summary Create a session that does not belong to any series
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body CreateOneOffRequest true "Session"
// @Success 201 {object} domain.SessionView
// @Failure 400 {object} gin.H "Invalid input"
// @Router /sessions [post]
func (h *SessionHandler) CreateOneOff(c *gin.Context) {
	var req CreateOneOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !canManageTrainer(c, req.TrainerID) {
		abortWithError(c, http.StatusForbidden, "Trainers may only create their own sessions.")
		return
	}

	view, err := h.sessionService.CreateOneOff(c.Request.Context(), service.OneOffInput{
		TrainerID:       req.TrainerID,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		Label:           req.Label,
		Notes:           req.Notes,
		Room:            req.Room,
		Equipment:       req.Equipment,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession godoc
// @Summary Get the aggregated view of one session
// @Description The id is either a persisted instance id or an occurrence reference "<seriesId>@YYYY-MM-DD".
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Success 200 {object} domain.SessionView
// @Failure 404 {object} gin.H "No such session"
// @Failure 409 {object} gin.H "SERIES_NOT_FOUND"
// @Router /session/{instanceId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.sessionService.BuildSessionView(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PatchSession godoc
// @Summary Override fields of one session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Param diff body PatchSessionRequest true "Overrides; null clears, revert re-inherits"
// @Success 200 {object} domain.SessionView
// @Failure 400 {object} gin.H "Invalid diff"
// @Failure 409 {object} gin.H "Concurrent modification"
// @Router /session/{instanceId} [patch]
func (h *SessionHandler) PatchSession(c *gin.Context) {
	var req PatchSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !h.authorizeSession(c) {
		return
	}
	view, err := h.sessionService.PatchInstance(c.Request.Context(), c.Param("instanceId"), req.InstanceDiff, req.Revert)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelSession godoc
// @Summary Cancel one session
// @Description Participant records are kept and come back on restore.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Success 200 {object} domain.SessionView
// @Router /session/{instanceId}/cancel [post]
func (h *SessionHandler) CancelSession(c *gin.Context) {
	if !h.authorizeSession(c) {
		return
	}
	view, err := h.sessionService.CancelInstance(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RestoreSession godoc
// @Summary Undo a cancellation
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Success 200 {object} domain.SessionView
// @Router /session/{instanceId}/restore [post]
func (h *SessionHandler) RestoreSession(c *gin.Context) {
	if !h.authorizeSession(c) {
		return
	}
	view, err := h.sessionService.RestoreInstance(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetPresence godoc
// @Summary Record whether a student attended
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Param studentId path string true "Student ID"
// @Param presence body PresenceRequest true "Presence"
// @Success 200 {object} domain.SessionView
// @Failure 400 {object} gin.H "Session cancelled or not started"
// @Router /session/{instanceId}/participant/{studentId}/presence [patch]
func (h *SessionHandler) SetPresence(c *gin.Context) {
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !h.authorizeSession(c) {
		return
	}
	view, err := h.sessionService.SetPresence(c.Request.Context(), c.Param("instanceId"), c.Param("studentId"), service.PresenceInput{
		Present: *req.Present,
		Notes:   req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RecordExercises godoc
// @Summary Replace the exercises a student did in a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID or occurrence reference"
// @Param studentId path string true "Student ID"
// @Param exercises body RecordExercisesRequest true "Exercise entries"
// @Success 200 {object} domain.SessionView
// @Router /session/{instanceId}/participant/{studentId}/exercises [put]
func (h *SessionHandler) RecordExercises(c *gin.Context) {
	studentID := c.Param("studentId")
	if !canManageStudent(c, studentID) {
		abortWithError(c, http.StatusForbidden, "Students may only record their own exercises.")
		return
	}
	var req RecordExercisesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if role, err := getUserRoleFromContext(c); err == nil && role == domain.RoleTrainer && !h.authorizeSession(c) {
		return
	}

	entries := make([]domain.ExerciseEntry, 0, len(req.Exercises))
	for _, e := range req.Exercises {
		entries = append(entries, domain.ExerciseEntry{
			ExerciseID: e.ExerciseID,
			Sets:       e.Sets,
			Reps:       e.Reps,
			Weight:     e.Weight,
			Done:       e.Done,
		})
	}
	view, err := h.sessionService.RecordExercises(c.Request.Context(), c.Param("instanceId"), studentID, entries)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
