// internal/apperrors/errors.go
package apperrors

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/licensecore/internal/models"
)

// ErrorCode identifies the error class for callers and logs.
type ErrorCode string

const (
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeConflictDetected  ErrorCode = "CONFLICT_DETECTED"
	CodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	CodeVersionConflict   ErrorCode = "VERSION_CONFLICT"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeDeadlineExpired   ErrorCode = "DEADLINE_EXPIRED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
)

// ValidationError aggregates failing check names, messages, and any
// conflicts attached by the checks. Always recoverable by the caller.
type ValidationError struct {
	FailedChecks []string
	Messages     []string
	Warnings     []string
	Conflicts    []models.Conflict
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s",
		strings.Join(e.FailedChecks, ", "), strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Code() ErrorCode { return CodeValidationFailed }

// ConflictError surfaces conflict-detector results in standalone preview
// mode. Informational, non-fatal.
type ConflictError struct {
	Conflicts []models.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d conflict(s) detected", len(e.Conflicts))
}

func (e *ConflictError) Code() ErrorCode { return CodeConflictDetected }

// StateTransitionError rejects a transition absent from the table. Fatal
// to the request; never silently coerced.
type StateTransitionError struct {
	LicenseID uuid.UUID
	From      models.LicenseStatus
	To        models.LicenseStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s for license %s", e.From, e.To, e.LicenseID)
}

func (e *StateTransitionError) Code() ErrorCode { return CodeIllegalTransition }

// VersionConflictError reports a lost optimistic-lock race: a concurrent
// request mutated the license first.
type VersionConflictError struct {
	LicenseID uuid.UUID
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("license %s was modified concurrently", e.LicenseID)
}

func (e *VersionConflictError) Code() ErrorCode { return CodeVersionConflict }

// PermissionError reports an actor lacking the role or ownership
// relationship required for the mutation.
type PermissionError struct {
	ActorID uuid.UUID
	Action  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %s is not permitted to %s", e.ActorID, e.Action)
}

func (e *PermissionError) Code() ErrorCode { return CodePermissionDenied }

// DeadlineExpiredError reports an interactive action on an amendment,
// extension, or offer whose deadline already passed; the sweep resolves
// the item itself.
type DeadlineExpiredError struct {
	Entity   string
	EntityID uuid.UUID
	Deadline time.Time
}

func (e *DeadlineExpiredError) Error() string {
	return fmt.Sprintf("%s %s deadline expired at %s", e.Entity, e.EntityID, e.Deadline.Format(time.RFC3339))
}

func (e *DeadlineExpiredError) Code() ErrorCode { return CodeDeadlineExpired }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity   string
	EntityID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.EntityID)
}

func (e *NotFoundError) Code() ErrorCode { return CodeNotFound }
