// Package errors provides structured error types for meow-studio.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for meow-studio operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value type

	// Save errors
	CodeContractViolation = "SAVE_001" // Same context resolved to two locations, or nil target
	CodeIOFailure         = "SAVE_002" // I/O error or invalid settings
	CodeCancelled         = "SAVE_003" // Cancelled through the progress monitor
	CodeLockFailure       = "SAVE_004" // Target locked by another writer

	// Template errors
	CodeTemplateNotFound = "TMPL_001" // No template manifest in directory
	CodeTemplateParse    = "TMPL_002" // Manifest could not be parsed
	CodeUnknownMount     = "TMPL_003" // Context names an unconfigured mount

	// Drop errors
	CodeDropInvalidURL = "DROP_001" // Payload is not an acceptable URL
	CodeDropNoImporter = "DROP_002" // No importer for the URL scheme

	// Editor request errors
	CodeUnknownModifiers = "EDIT_001" // Wheel event names an unknown modifier
	CodeSaveNotRunning   = "EDIT_002" // Cancel names no running save

	// IO errors
	CodeIOFileNotFound = "IO_001" // File not found
	CodeIOPermission   = "IO_002" // Permission denied
	CodeIOReadError    = "IO_004" // Read error
	CodeIOWriteError   = "IO_005" // Write error
)

// StudioError is the structured error type for meow-studio operations.
type StudioError struct {
	Code    string         `json:"code"`              // Error code (e.g., "SAVE_001")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (component, dir, etc.)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *StudioError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StudioError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *StudioError) WithDetail(key string, value any) *StudioError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *StudioError) WithCause(err error) *StudioError {
	e.Cause = err
	return e
}

// MarshalJSON implements json.Marshaler with cause error message.
func (e *StudioError) MarshalJSON() ([]byte, error) {
	type alias StudioError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new StudioError.
func New(code, message string) *StudioError {
	return &StudioError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new StudioError with formatted message.
func Newf(code, format string, args ...any) *StudioError {
	return &StudioError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a StudioError.
func Wrap(code, message string, err error) *StudioError {
	return &StudioError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted StudioError.
func Wrapf(code string, err error, format string, args ...any) *StudioError {
	return &StudioError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for missing config field.
func ConfigMissingField(field string) *StudioError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *StudioError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// --- Save Errors ---

// ContractViolation reports a broken caller or store contract. It is not
// recoverable in place.
func ContractViolation(reason string) *StudioError {
	return Newf(CodeContractViolation, "save contract violated: %s", reason).
		WithDetail("reason", reason)
}

// LocationMismatch is the ContractViolation raised when an unchanged context
// resolves to a directory other than the component's current one.
func LocationMismatch(resolved, current string) *StudioError {
	return ContractViolation("same context resolved to a different directory").
		WithDetail("resolved", resolved).
		WithDetail("current", current)
}

// IOFailure wraps an I/O error raised while saving.
func IOFailure(dir string, err error) *StudioError {
	return Wrap(CodeIOFailure, "template save failed", err).
		WithDetail("dir", dir)
}

// InvalidSettings wraps a settings validation error as an IOFailure.
func InvalidSettings(component string, err error) *StudioError {
	return Wrapf(CodeIOFailure, err, "invalid settings in component %s", component).
		WithDetail("component", component).
		WithDetail("invalid_settings", true)
}

// Cancelled reports a save aborted through its progress monitor.
func Cancelled(component string, err error) *StudioError {
	return Wrapf(CodeCancelled, err, "save of %s cancelled", component).
		WithDetail("component", component)
}

// LockFailure reports a target directory locked by another writer.
func LockFailure(dir string, err error) *StudioError {
	return Wrap(CodeLockFailure, "template directory is locked by another writer", err).
		WithDetail("dir", dir)
}

// --- Template Errors ---

// TemplateNotFound creates an error for a directory with no manifest.
func TemplateNotFound(dir string) *StudioError {
	return Newf(CodeTemplateNotFound, "no component template in %s", dir).
		WithDetail("dir", dir)
}

// TemplateParseError creates an error for an unreadable manifest.
func TemplateParseError(path string, err error) *StudioError {
	return Wrap(CodeTemplateParse, "failed to parse template manifest", err).
		WithDetail("path", path)
}

// UnknownMount creates an error for a context naming an unknown mount.
func UnknownMount(mount string) *StudioError {
	return Newf(CodeUnknownMount, "unknown mount point: %s", mount).
		WithDetail("mount", mount)
}

// --- Drop Errors ---

// DropInvalidURL creates an error for a payload that is not an acceptable URL.
func DropInvalidURL(payload string, reason string) *StudioError {
	return Newf(CodeDropInvalidURL, "dropped payload is not a valid URL: %s", reason).
		WithDetail("payload", payload)
}

// DropNoImporter creates an error for a URL scheme nobody imports.
func DropNoImporter(scheme string) *StudioError {
	return Newf(CodeDropNoImporter, "no importer for scheme %q", scheme).
		WithDetail("scheme", scheme)
}

// --- Editor Request Errors ---

// UnknownModifiers creates an error for a wheel event with modifiers that
// cannot be parsed.
func UnknownModifiers(modifiers string) *StudioError {
	return Newf(CodeUnknownModifiers, "unknown modifiers %q", modifiers).
		WithDetail("modifiers", modifiers)
}

// SaveNotRunning creates an error for a cancel request naming no running
// save.
func SaveNotRunning(saveID string) *StudioError {
	return Newf(CodeSaveNotRunning, "no running save %q", saveID).
		WithDetail("save_id", saveID)
}

// --- IO Errors ---

// IOFileNotFound creates an error for missing file.
func IOFileNotFound(path string) *StudioError {
	return Newf(CodeIOFileNotFound, "file not found: %s", path).
		WithDetail("path", path)
}

// IOPermissionDenied creates an error for permission issues.
func IOPermissionDenied(path string, err error) *StudioError {
	return Wrap(CodeIOPermission, "permission denied", err).
		WithDetail("path", path)
}

// IOReadError creates an error for read failures.
func IOReadError(path string, err error) *StudioError {
	return Wrap(CodeIOReadError, "failed to read file", err).
		WithDetail("path", path)
}

// IOWriteError creates an error for write failures.
func IOWriteError(path string, err error) *StudioError {
	return Wrap(CodeIOWriteError, "failed to write file", err).
		WithDetail("path", path)
}

// HasCode checks if an error is a StudioError with the given code.
// It handles wrapped errors by unwrapping to find a StudioError.
func HasCode(err error, code string) bool {
	var serr *StudioError
	if errors.As(err, &serr) {
		return serr.Code == code
	}
	return false
}

// Code returns the error code if err is a StudioError, empty string otherwise.
// It handles wrapped errors by unwrapping to find a StudioError.
func Code(err error) string {
	var serr *StudioError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}
