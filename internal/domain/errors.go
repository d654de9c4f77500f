package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base error kinds. Match them with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrOverlappingVersions    = errors.New("overlapping versions")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidEffectiveDate   = errors.New("invalid effective date")
	ErrPartialBulkFailure     = errors.New("bulk update rejected")
	ErrSeriesNotFound         = errors.New("series not found")
	ErrValidation             = errors.New("validation error")
)

// Error carries the operation and a human readable message on top of a base kind.
type Error struct {
	Op      string // e.g. "SetCommitment", "SplitWeek"
	Kind    error  // one of the base kinds above
	Message string
	Err     error // underlying cause (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewError creates an error of the given kind.
func NewError(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(op string, kind error, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// PartialBulkFailureError lists every series id rejected by a bulk commitment update.
// Nothing from the batch is persisted when it is returned.
type PartialBulkFailureError struct {
	Failures map[string]error
}

func (e *PartialBulkFailureError) Error() string {
	ids := e.FailedSeriesIDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failures[id]))
	}
	return fmt.Sprintf("bulk update rejected for %d series: %s", len(ids), strings.Join(parts, "; "))
}

func (e *PartialBulkFailureError) Is(target error) bool {
	return target == ErrPartialBulkFailure
}

// FailedSeriesIDs returns the rejected series ids in stable order.
func (e *PartialBulkFailureError) FailedSeriesIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the caller may simply retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
