// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrTaskNotFound indicates a task was not found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotificationNotFound indicates a notification was not found.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDuplicateExecution indicates a non-terminal execution already
	// exists for the (customer, definition) pair.
	ErrDuplicateExecution = errors.New("active execution already exists for customer and definition")

	// ErrVersionConflict indicates a compare-and-swap update lost a race
	// with a concurrent transition.
	ErrVersionConflict = errors.New("version conflict")
)

// StoreError wraps persistence errors with operation context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "Create", "Update")
	EntityID string // Entity ID if applicable
	Err      error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a persistence error with context.
func NewStoreError(op, entityID string, err error) *StoreError {
	return &StoreError{Op: op, EntityID: entityID, Err: err}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsDuplicateExecution checks if an error indicates the uniqueness
// constraint on active executions was hit.
func IsDuplicateExecution(err error) bool {
	return errors.Is(err, ErrDuplicateExecution)
}

// IsVersionConflict checks if an error indicates an optimistic-lock failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
