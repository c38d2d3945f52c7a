package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Ingestion pipeline. Only MalformedEvent and IdentityResolution are
	// pipeline-visible failures; every other kind degrades to a carried
	// value so the inbound event is never lost.
	ErrCodeMalformedEvent      ErrorCode = "MALFORMED_EVENT"
	ErrCodeIdentityResolution  ErrorCode = "IDENTITY_RESOLUTION_FAILED"
	ErrCodeDuplicateEvent      ErrorCode = "DUPLICATE_EVENT"
	ErrCodeReactionUnresolved  ErrorCode = "REACTION_TARGET_UNRESOLVED"
	ErrCodeMediaFetchFailed    ErrorCode = "MEDIA_FETCH_FAILED"
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeAnalysisFailed      ErrorCode = "ANALYSIS_FAILED"
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeDownstreamSend      ErrorCode = "DOWNSTREAM_SEND_FAILED"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"

	// Authentication
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func MalformedEvent(reason string) *AppError {
	return New(ErrCodeMalformedEvent, fmt.Sprintf("Malformed event: %s", reason))
}

func IdentityResolution(cause error) *AppError {
	return Wrap(ErrCodeIdentityResolution, "Failed to resolve contact identity", cause)
}

func DuplicateEvent() *AppError {
	return New(ErrCodeDuplicateEvent, "Duplicate event within dedup window")
}

func ReactionUnresolved() *AppError {
	return New(ErrCodeReactionUnresolved, "Reaction target could not be resolved")
}

func MediaFetchFailed(cause error) *AppError {
	return Wrap(ErrCodeMediaFetchFailed, "Failed to fetch media", cause)
}

func TranscriptionFailed(cause error) *AppError {
	return Wrap(ErrCodeTranscriptionFailed, "Transcription failed", cause)
}

func AnalysisFailed(cause error) *AppError {
	return Wrap(ErrCodeAnalysisFailed, "Media analysis failed", cause)
}

func GenerationFailed(cause error) *AppError {
	return Wrap(ErrCodeGenerationFailed, "Reply generation failed", cause)
}

func DownstreamSendFailed(cause error) *AppError {
	return Wrap(ErrCodeDownstreamSend, "Outbound send failed", cause)
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AlreadyExists(resource string) *AppError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
