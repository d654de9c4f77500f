package api

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/service"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Machine readable error codes returned next to the message.
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeOverlappingVersions    = "OVERLAPPING_VERSIONS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInvalidEffectiveDate   = "INVALID_EFFECTIVE_DATE"
	CodePartialBulkFailure     = "PARTIAL_BULK_FAILURE"
	CodeSeriesNotFound         = "SERIES_NOT_FOUND"
	CodeArchiveDisabled        = "ARCHIVE_DISABLED"
	CodeInternal               = "INTERNAL_ERROR"
)

// retryAfterSeconds is advertised when a write lost a race.
const retryAfterSeconds = 1

// respondError maps a service error onto the HTTP taxonomy and aborts the request.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	ctx := c.Request.Context()

	var bulk *domain.PartialBulkFailureError
	if errors.As(err, &bulk) {
		failures := make(map[string]string, len(bulk.Failures))
		for id, ferr := range bulk.Failures {
			failures[id] = ferr.Error()
		}
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error":           "bulk update rejected; nothing was changed",
			"code":            CodePartialBulkFailure,
			"failedSeriesIds": bulk.FailedSeriesIDs(),
			"failures":        failures,
		})
		return
	}

	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, domain.ErrSeriesNotFound):
		// Checked before ErrNotFound: a dangling series reference is a data problem.
		status, code = http.StatusConflict, CodeSeriesNotFound
		logger.ErrorContext(ctx, "session references an unresolvable series", slog.Any("error", err))
	case errors.Is(err, domain.ErrConcurrentModification):
		status, code = http.StatusConflict, CodeConcurrentModification
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	case errors.Is(err, domain.ErrOverlappingVersions):
		status, code = http.StatusConflict, CodeOverlappingVersions
		logger.ErrorContext(ctx, "overlapping versions", slog.Any("error", err))
	case errors.Is(err, domain.ErrInvalidEffectiveDate):
		status, code = http.StatusUnprocessableEntity, CodeInvalidEffectiveDate
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrArchiveDisabled):
		status, code = http.StatusServiceUnavailable, CodeArchiveDisabled
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(ContextRequestIDKey)),
			slog.Any("error", err),
		)
		message = "Internal server error."
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// badRequest reports malformed input in the same shape as respondError.
func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": CodeValidation})
}
