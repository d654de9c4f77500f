package api

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type CommitmentHandler struct {
	commitmentService service.CommitmentService
	loc               *time.Location
	logger            *slog.Logger
}

func NewCommitmentHandler(commitmentService service.CommitmentService, loc *time.Location, logger *slog.Logger) *CommitmentHandler {
	return &CommitmentHandler{
		commitmentService: commitmentService,
		loc:               loc,
		logger:            logger,
	}
}

// --- DTOs ---

type SetCommitmentRequest struct {
	StudentID     string                  `json:"studentId" binding:"required"`
	SeriesID      string                  `json:"seriesId" binding:"required"`
	Status        domain.CommitmentStatus `json:"status" binding:"required,oneof=ATTENDING NOT_ATTENDING TENTATIVE"`
	EffectiveFrom time.Time               `json:"effectiveFrom" binding:"required"`
	Retroactive   bool                    `json:"retroactive"`
}

type BulkCommitmentRequest struct {
	StudentID     string                  `json:"studentId" binding:"required"`
	SeriesIDs     []string                `json:"seriesIds" binding:"required,min=1,dive,required"`
	Status        domain.CommitmentStatus `json:"status" binding:"required,oneof=ATTENDING NOT_ATTENDING TENTATIVE"`
	EffectiveFrom time.Time               `json:"effectiveFrom" binding:"required"`
	Retroactive   bool                    `json:"retroactive"`
}

type CommitmentStatusResponse struct {
	StudentID string                  `json:"studentId"`
	SeriesID  string                  `json:"seriesId"`
	AsOf      time.Time               `json:"asOf"`
	Status    domain.CommitmentStatus `json:"status"`
	Record    *domain.Commitment      `json:"record"` // nil when no record applies
}

// --- Handler Methods ---

// GetStatus godoc
// @Summary Resolve a student's commitment to a series at a point in time
// @Tags Commitments
// @Produce json
// @Security BearerAuth
// @Param studentId query string true "Student ID"
// @Param seriesId query string true "Series lineage ID"
// @Param asOf query string false "RFC 3339 timestamp or date; defaults to now"
// @Success 200 {object} CommitmentStatusResponse
// @Router /commitment [get]
func (h *CommitmentHandler) GetStatus(c *gin.Context) {
	studentID, ok := requiredQuery(c, "studentId")
	if !ok {
		return
	}
	seriesID, ok := requiredQuery(c, "seriesId")
	if !ok {
		return
	}
	asOf, err := queryInstant(c, "asOf", h.loc, time.Now())
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	status, record, err := h.commitmentService.StatusAsOf(c.Request.Context(), studentID, seriesID, asOf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, CommitmentStatusResponse{
		StudentID: studentID,
		SeriesID:  seriesID,
		AsOf:      asOf,
		Status:    status,
		Record:    record,
	})
}

// GetHistory godoc
// @Summary List the full commitment ledger of a student for a series
// @Tags Commitments
// @Produce json
// @Security BearerAuth
// @Param studentId query string true "Student ID"
// @Param seriesId query string true "Series lineage ID"
// @Success 200 {array} domain.Commitment
// @Router /commitment/history [get]
func (h *CommitmentHandler) GetHistory(c *gin.Context) {
	studentID, ok := requiredQuery(c, "studentId")
	if !ok {
		return
	}
	seriesID, ok := requiredQuery(c, "seriesId")
	if !ok {
		return
	}
	history, err := h.commitmentService.History(c.Request.Context(), studentID, seriesID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if history == nil {
		history = []domain.Commitment{}
	}
	c.JSON(http.StatusOK, history)
}

// GetStudentCommitments godoc
// @Summary List every commitment that applies to a student at a point in time
// @Tags Commitments
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param asOf query string false "RFC 3339 timestamp or date; defaults to now"
// @Success 200 {array} domain.Commitment
// @Router /students/{studentId}/commitments [get]
func (h *CommitmentHandler) GetStudentCommitments(c *gin.Context) {
	asOf, err := queryInstant(c, "asOf", h.loc, time.Now())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	commitments, err := h.commitmentService.CommitmentsAsOf(c.Request.Context(), c.Param("studentId"), asOf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, commitments)
}

// SetCommitment godoc
// @Summary Change a student's status for a series from a date on
// @Description Backdating before the latest record needs retroactive, which only admins may use.
// @Tags Commitments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param commitment body SetCommitmentRequest true "Commitment change"
// @Success 201 {object} domain.Commitment
// @Failure 403 {object} gin.H "Retroactive edit without admin role"
// @Failure 404 {object} gin.H "Series not found"
// @Failure 422 {object} gin.H "Invalid effective date"
// @Router /commitment [post]
func (h *CommitmentHandler) SetCommitment(c *gin.Context) {
	var req SetCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !h.authorize(c, req.StudentID, req.Retroactive) {
		return
	}

	created, err := h.commitmentService.SetCommitment(c.Request.Context(), service.SetCommitmentInput{
		StudentID:     req.StudentID,
		SeriesID:      req.SeriesID,
		Status:        req.Status,
		EffectiveFrom: req.EffectiveFrom,
		Retroactive:   req.Retroactive,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ApplyBulk godoc
// @Summary Change a student's status for many series at once
// @Description All series change or none do; a rejection lists failedSeriesIds.
// @Tags Commitments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param bulk body BulkCommitmentRequest true "Bulk change"
// @Success 201 {array} domain.Commitment
// @Failure 422 {object} gin.H "PARTIAL_BULK_FAILURE with failedSeriesIds"
// @Router /commitment/bulk [post]
func (h *CommitmentHandler) ApplyBulk(c *gin.Context) {
	var req BulkCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation error: "+err.Error())
		return
	}
	if !h.authorize(c, req.StudentID, req.Retroactive) {
		return
	}

	created, err := h.commitmentService.ApplyBulk(c.Request.Context(), service.BulkCommitmentInput{
		StudentID:     req.StudentID,
		SeriesIDs:     req.SeriesIDs,
		Status:        req.Status,
		EffectiveFrom: req.EffectiveFrom,
		Retroactive:   req.Retroactive,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CommitmentHandler) authorize(c *gin.Context, studentID string, retroactive bool) bool {
	if !canManageStudent(c, studentID) {
		abortWithError(c, http.StatusForbidden, "Students may only change their own commitments.")
		return false
	}
	if retroactive {
		role, err := getUserRoleFromContext(c)
		if err != nil || role != domain.RoleAdmin {
			abortWithError(c, http.StatusForbidden, "Retroactive edits require the admin role.")
			return false
		}
	}
	return true
}
