package api

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	scheduleService service.ScheduleService
	archiveService  service.ArchiveService
	loc             *time.Location
	logger          *slog.Logger
}

func NewScheduleHandler(scheduleService service.ScheduleService, archiveService service.ArchiveService, loc *time.Location, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
		archiveService:  archiveService,
		loc:             loc,
		logger:          logger,
	}
}

// --- DTOs ---

type DefineSeriesRequest struct {
	TrainerID       string        `json:"trainerId" binding:"required"`
	Weekday         *int          `json:"weekday" binding:"required,weekday"`
	StartTime       *domain.Clock `json:"startTime" binding:"required,clock"`
	DurationMinutes int           `json:"durationMinutes" binding:"required,min=1,max=1440"`
	Name            string        `json:"name" binding:"required"`
	Room            *string       `json:"room"`
	Equipment       *string       `json:"equipment"`
	Notes           *string       `json:"notes"`
	MaxParticipants *int          `json:"maxParticipants" binding:"omitempty,min=0"`
	EffectiveFrom   time.Time     `json:"effectiveFrom" binding:"required"`
	Retroactive     bool          `json:"retroactive"`
}

type WeekdayConfigRequest struct {
	Weekday         *int         `json:"weekday" binding:"required,weekday"`
	Active          bool         `json:"active"`
	StartTime       domain.Clock `json:"startTime" binding:"clock"`
	EndTime         domain.Clock `json:"endTime" binding:"clock"`
	Name            *string      `json:"name"`
	Room            *string      `json:"room"`
	Equipment       *string      `json:"equipment"`
	Notes           *string      `json:"notes"`
	MaxParticipants *int         `json:"maxParticipants" binding:"omitempty,min=0"`
}

type SplitWeekRequest struct {
	TrainerID        string                 `json:"trainerId" binding:"required"`
	NewEffectiveFrom time.Time              `json:"newEffectiveFrom" binding:"required"`
	Weekdays         []WeekdayConfigRequest `json:"weekdays" binding:"dive"`
}

type ExportHistoryRequest struct {
	TrainerID string `json:"trainerId" binding:"required"`
}

// --- Handler Methods ---

// GetSchedule godoc
// @Summary Resolve a trainer's weekly schedule at a point in time
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param trainerId query string true "Trainer ID"
// @Param weekday query int false "Restrict to one weekday (0=Sunday)"
// @Param asOf query string false "RFC 3339 timestamp or date; defaults to now"
// @Success 200 {array} domain.Series
// @Failure 400 {object} gin.H "Invalid query"
// @Router /schedule [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	trainerID, ok := requiredQuery(c, "trainerId")
	if !ok {
		return
	}
	weekday, err := queryWeekday(c, "weekday")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	asOf, err := queryInstant(c, "asOf", h.loc, time.Now())
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	versions, err := h.scheduleService.ScheduleAsOf(c.Request.Context(), trainerID, weekday, asOf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetHistory godoc
// @Summary List every schedule version of a trainer (audit)
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param trainerId query string true "Trainer ID"
// @Success 200 {array} domain.Series
// @Router /schedule/history [get]
func (h *ScheduleHandler) GetHistory(c *gin.Context) {
	trainerID, ok := requiredQuery(c, "trainerId")
	if !ok {
		return
	}
	versions, err := h.scheduleService.History(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if versions == nil {
		versions = []domain.Series{}
	}
	c.JSON(http.StatusOK, versions)
}

// DefineSeries godoc
// @Summary Open a new schedule version for one weekday
// @Description Closes the version in force at effectiveFrom. Backdating before an existing version requires retroactive.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param series body DefineSeriesRequest true "Series definition"
// @Success 201 {object} domain.Series
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Forbidden"
// @Failure 409 {object} gin.H "Concurrent modification or overlapping versions"
// @Failure 422 {object} gin.H "Invalid effective date"
// @Router /schedule [post]
func (h *ScheduleHandler) DefineSeries(c *gin.Context) {
	var req DefineSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !canManageTrainer(c, req.TrainerID) {
		abortWithError(c, http.StatusForbidden, "Trainers may only change their own schedule.")
		return
	}

	series, err := h.scheduleService.DefineSeries(c.Request.Context(), service.DefineSeriesInput{
		TrainerID:       req.TrainerID,
		Weekday:         time.Weekday(*req.Weekday),
		StartTime:       *req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Name:            req.Name,
		Room:            req.Room,
		Equipment:       req.Equipment,
		Notes:           req.Notes,
		MaxParticipants: req.MaxParticipants,
		EffectiveFrom:   req.EffectiveFrom,
		Retroactive:     req.Retroactive,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, series)
}

// SplitWeek godoc
// @Summary Replace the whole week's schedule from a date on
// @Description Every weekday's current version ends at newEffectiveFrom; active configs open new versions. All or nothing.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param split body SplitWeekRequest true "New week layout"
// @Success 201 {array} domain.Series
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 409 {object} gin.H "Concurrent modification"
// @Failure 422 {object} gin.H "Invalid effective date"
// @Router /schedule/split [post]
func (h *ScheduleHandler) SplitWeek(c *gin.Context) {
	var req SplitWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !canManageTrainer(c, req.TrainerID) {
		abortWithError(c, http.StatusForbidden, "Trainers may only change their own schedule.")
		return
	}

	configs := make([]domain.WeekdayConfig, 0, len(req.Weekdays))
	for _, w := range req.Weekdays {
		configs = append(configs, domain.WeekdayConfig{
			Weekday:         time.Weekday(*w.Weekday),
			Active:          w.Active,
			StartTime:       w.StartTime,
			EndTime:         w.EndTime,
			Name:            w.Name,
			Room:            w.Room,
			Equipment:       w.Equipment,
			Notes:           w.Notes,
			MaxParticipants: w.MaxParticipants,
		})
	}

	opened, err := h.scheduleService.SplitWeek(c.Request.Context(), req.TrainerID, req.NewEffectiveFrom, configs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, opened)
}

// DeactivateSeries godoc
// @Summary Soft-deactivate one series version
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Series version ID"
// @Success 200 {object} domain.Series
// @Failure 404 {object} gin.H "Version not found"
// @Router /schedule/{versionId}/deactivate [post]
func (h *ScheduleHandler) DeactivateSeries(c *gin.Context) {
	h.setActive(c, false)
}

// ActivateSeries godoc
// @Summary Re-activate one series version
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param versionId path string true "Series version ID"
// @Success 200 {object} domain.Series
// @Failure 404 {object} gin.H "Version not found"
// @Failure 409 {object} gin.H "Would overlap an active version"
// @Router /schedule/{versionId}/activate [post]
func (h *ScheduleHandler) ActivateSeries(c *gin.Context) {
	h.setActive(c, true)
}

func (h *ScheduleHandler) setActive(c *gin.Context, active bool) {
	version, err := h.scheduleService.GetVersion(c.Request.Context(), c.Param("versionId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !canManageTrainer(c, version.TrainerID) {
		abortWithError(c, http.StatusForbidden, "Trainers may only change their own schedule.")
		return
	}

	series, err := h.scheduleService.SetSeriesActive(c.Request.Context(), version.ID, active)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// ExportHistory godoc
// @Summary Export a trainer's full history to object storage
// @Description Returns a short-lived download URL for the JSON archive.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExportHistoryRequest true "Trainer to export"
// @Success 201 {object} domain.ArchiveExport
// @Failure 503 {object} gin.H "Archive storage not configured"
// @Router /schedule/archive [post]
func (h *ScheduleHandler) ExportHistory(c *gin.Context) {
	var req ExportHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !canManageTrainer(c, req.TrainerID) {
		abortWithError(c, http.StatusForbidden, "Trainers may only export their own history.")
		return
	}

	export, err := h.archiveService.ExportHistory(c.Request.Context(), req.TrainerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, export)
}
