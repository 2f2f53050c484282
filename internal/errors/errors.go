// Package errors provides the error taxonomy for changelog aggregation. It
// defines sentinel errors, typed errors carrying platform and phase context,
// and classification helpers used by the CLI to decide what to show users.
//
// # Error Types
//
// Domain-specific errors:
//   - ConfigError: invalid or unsupported configuration, fatal at construction
//   - PlatformError: a failed call to an issue-tracking platform
//   - ResolutionError: a failed aggregation phase (parent waves, summaries, commits)
//
// Semantic errors:
//   - NotFoundError: a work item or type does not exist upstream
//   - ValidationError: invalid input
//
// # Usage
//
//	err := errors.NewPlatformError("devops", "get work item", cause).WithItemID(42)
//	if errors.Is(err, errors.ErrItemNotFound) { ... }
//
//	var perr *errors.PlatformError
//	if errors.As(err, &perr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Platform-related sentinel errors
var (
	// ErrItemNotFound indicates that a work item does not exist upstream or is
	// not accessible with the configured credentials.
	ErrItemNotFound = New("work item not found")
	// ErrUnsupportedPlatform indicates that the configured platform kind is unknown.
	ErrUnsupportedPlatform = New("unsupported platform")
	// ErrUnauthorized indicates that the platform rejected the credentials.
	ErrUnauthorized = New("unauthorized")
	// ErrRateLimited indicates that the platform throttled the request.
	ErrRateLimited = New("rate limited")
)

// Lifecycle sentinel errors
var (
	// ErrNotInitialized indicates an operation that requires Initialize to have run.
	ErrNotInitialized = New("not initialized")
	// ErrAlreadyInitialized indicates a second call to Initialize.
	ErrAlreadyInitialized = New("already initialized")
	// ErrClosed indicates use after Close.
	ErrClosed = New("already closed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrSummarizerUnavailable indicates that no summarization model is configured.
	ErrSummarizerUnavailable = New("summarizer unavailable")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// WeaverError is implemented by all typed errors in this package.
type WeaverError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	// IsRetryable returns true if the operation may succeed when repeated.
	// The aggregation engine never retries; this is advice for callers.
	IsRetryable() bool
	// IsUserFacing returns true if the message is safe to show end users.
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func formatPrefix(kind string, parts []string) string {
	if len(parts) == 0 {
		return kind
	}
	return fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigError represents a configuration problem that prevents the run from
// starting, such as an unrecognized platform.
//
// Example:
//
//	err := errors.NewConfigError("cannot create platform client", errors.ErrUnsupportedPlatform).
//		WithKey("project.url")
//	fmt.Println(err) // "config error [key=project.url]: cannot create platform client: unsupported platform"
type ConfigError struct {
	baseError
	Key string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithKey records the configuration key at fault.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	prefix := formatPrefix("config error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PlatformError represents a failed call to an issue-tracking platform.
//
// Example:
//
//	err := errors.NewPlatformError("devops", "get work item", cause).WithItemID(42).WithStatus(503)
//	fmt.Println(err) // "platform error [platform=devops, op=get work item, item=42, status=503]: ..."
type PlatformError struct {
	baseError
	Platform   string
	Operation  string
	ItemID     int64
	StatusCode int
}

// NewPlatformError creates a new PlatformError.
func NewPlatformError(platform, operation string, cause error) *PlatformError {
	return &PlatformError{
		baseError: baseError{
			message:    operation + " failed",
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Platform:  platform,
		Operation: operation,
	}
}

// WithItemID records the work item the call was about.
func (e *PlatformError) WithItemID(id int64) *PlatformError {
	e.ItemID = id
	return e
}

// WithStatus records the HTTP status code. Server errors and throttling are
// marked retryable.
func (e *PlatformError) WithStatus(code int) *PlatformError {
	e.StatusCode = code
	e.retryable = code == 429 || code >= 500
	return e
}

// Error returns the formatted error message.
func (e *PlatformError) Error() string {
	var parts []string
	if e.Platform != "" {
		parts = append(parts, fmt.Sprintf("platform=%s", e.Platform))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	if e.ItemID != 0 {
		parts = append(parts, fmt.Sprintf("item=%d", e.ItemID))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	prefix := formatPrefix("platform error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PlatformError) Is(target error) bool {
	if _, ok := target.(*PlatformError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ResolutionError represents a failed aggregation phase. Any failure inside a
// concurrently dispatched group aborts the run and is reported through this
// type with the phase that failed.
//
// Example:
//
//	err := errors.NewResolutionError("parent resolution", cause).WithWave(2)
type ResolutionError struct {
	baseError
	Phase string
	Wave  int
}

// NewResolutionError creates a new ResolutionError.
func NewResolutionError(phase string, cause error) *ResolutionError {
	return &ResolutionError{
		baseError: baseError{
			message:    phase + " failed",
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Phase: phase,
	}
}

// WithWave records the parent-resolution wave that failed.
func (e *ResolutionError) WithWave(wave int) *ResolutionError {
	e.Wave = wave
	return e
}

// Error returns the formatted error message.
func (e *ResolutionError) Error() string {
	var parts []string
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Wave > 0 {
		parts = append(parts, fmt.Sprintf("wave=%d", e.Wave))
	}
	prefix := formatPrefix("resolution error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ResolutionError) Is(target error) bool {
	if _, ok := target.(*ResolutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable delegates to the underlying cause.
func (e *ResolutionError) IsRetryable() bool {
	return IsRetryable(e.cause)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("work item", "42")
//	fmt.Println(err) // "work item '42' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target. A NotFoundError for a work
// item always matches ErrItemNotFound.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrItemNotFound && e.ResourceType == "work item" {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("batch size must be positive").WithField("resolver.batch_size").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	prefix := formatPrefix("validation error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var werr WeaverError
	if As(err, &werr) {
		return werr.IsRetryable()
	}
	return Is(err, ErrRateLimited)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, err)
//	} else {
//	    fmt.Fprintln(os.Stderr, "an internal error occurred")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var werr WeaverError
	if As(err, &werr) {
		return werr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement WeaverError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var werr WeaverError
	if As(err, &werr) {
		return werr.Severity()
	}
	return SeverityError
}

// IsNotFound reports whether err means a work item is permanently missing.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	return Is(err, ErrItemNotFound) || As(err, &nf)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
