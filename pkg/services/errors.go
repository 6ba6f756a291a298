// Package services implements the orchestration business logic on top of
// the persistence layer.
package services

import (
	"errors"
	"fmt"

	"github.com/renewos/renewos/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrEmptyOwnerID         = errors.New("owner ID cannot be empty")
	ErrInvalidSnoozeUntil   = errors.New("snooze until must be in the future")
	ErrSnoozeBeyondDeadline = errors.New("snooze until exceeds the episode deadline")
	ErrInvalidDecision      = errors.New("decision must be act_now or skip_forever")
	ErrNoOwnersAvailable    = errors.New("no owners available for assignment")
)

// Conflict errors (409 Conflict).
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrDecisionPending   = errors.New("a forced decision is pending")
	ErrNoDecisionPending = errors.New("no forced decision is pending")
	ErrTerminalState     = errors.New("record is in a terminal state")
	ErrTransferTarget    = errors.New("transfer target execution is not active")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrInvalidSnoozeUntil) ||
		errors.Is(err, ErrSnoozeBeyondDeadline) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrNoOwnersAvailable)
}

// IsConflictError checks if an error should map to HTTP 409. Optimistic
// lock failures and duplicate instantiation races surface here too.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrDecisionPending) ||
		errors.Is(err, ErrNoDecisionPending) ||
		errors.Is(err, ErrTerminalState) ||
		errors.Is(err, ErrTransferTarget) ||
		persistence.IsVersionConflict(err) ||
		persistence.IsDuplicateExecution(err)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}
