package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// Sentinel errors mapped to HTTP statuses by the handlers.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrStudentNotAssigned = errors.New("student is not assigned to this assignment")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
)

// ValidationError carries a caller-facing message for a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError formats a caller-facing validation failure.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Caller identifies the authenticated principal on whose behalf a service
// operation runs.
type Caller struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// CanActFor reports whether the caller may read or mutate the given
// student's progress: admins always, students only for themselves.
func (c Caller) CanActFor(studentID uuid.UUID) bool {
	return c.IsAdmin() || c.ID == studentID
}
