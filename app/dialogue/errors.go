package dialogue

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or out-of-range input. The step is re-prompted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Code implements the error-code contract used by handler logs.
func (e *ValidationError) Code() string { return "VALIDATION" }

// AuthorizationError means the user's role may not open this dialogue.
type AuthorizationError struct {
	UserID int64
	Role   string
	Kind   string
}

func (e *AuthorizationError) Error() string {
	role := e.Role
	if role == "" {
		role = "none"
	}
	return fmt.Sprintf("authorization: user %d with role %s may not start %s", e.UserID, role, e.Kind)
}

// Code implements the error-code contract used by handler logs.
func (e *AuthorizationError) Code() string { return "AUTHORIZATION" }

// StateNotFoundError is returned for events that reference a chat without a session.
type StateNotFoundError struct {
	ChatID int64
}

func (e *StateNotFoundError) Error() string {
	return fmt.Sprintf("state not found for chat %d", e.ChatID)
}

// Code implements the error-code contract used by handler logs.
func (e *StateNotFoundError) Code() string { return "STATE_NOT_FOUND" }

// PersistenceError wraps a store failure. Session state is kept so the user can retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code implements the error-code contract used by handler logs.
func (e *PersistenceError) Code() string { return "PERSISTENCE" }

// ConfigurationError reports missing hierarchy or directory data.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Code implements the error-code contract used by handler logs.
func (e *ConfigurationError) Code() string { return "CONFIGURATION" }

// SessionConflictError is returned when a chat already runs a different dialogue.
type SessionConflictError struct {
	Active    string
	Requested string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("session conflict: %s active, %s requested", e.Active, e.Requested)
}

// Code implements the error-code contract used by handler logs.
func (e *SessionConflictError) Code() string { return "SESSION_CONFLICT" }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var v *AuthorizationError
	return errors.As(err, &v)
}

// IsStateNotFound reports whether err is a StateNotFoundError.
func IsStateNotFound(err error) bool {
	var v *StateNotFoundError
	return errors.As(err, &v)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var v *PersistenceError
	return errors.As(err, &v)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var v *ConfigurationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a SessionConflictError.
func IsConflict(err error) bool {
	var v *SessionConflictError
	return errors.As(err, &v)
}
