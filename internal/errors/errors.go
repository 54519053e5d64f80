package errors

import (
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies an AppError for callers and transports.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicateUsername Kind = "duplicate_username"
	KindNotFound          Kind = "not_found"
	KindBadCredential     Kind = "bad_credential"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// User message keys resolved through i18n.
const (
	MsgInvalidInput       = "errors.invalid_input"
	MsgMissingCredentials = "errors.missing_credentials"
	MsgMissingScoreFields = "errors.missing_score_fields"
	MsgDuplicateUsername  = "errors.duplicate_username"
	MsgUserNotFound       = "errors.user_not_found"
	MsgBadCredential      = "errors.bad_credential"
	MsgRequestInProgress  = "errors.request_in_progress"
	MsgInternal           = "errors.internal"
)

type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// StatusCode maps the error kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	if e == nil {
		return http.StatusOK
	}

	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDuplicateUsername, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindBadCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports missing or malformed input. userMessage is an i18n key;
// an empty key falls back to the generic invalid-input message.
func NewValidationError(msg, userMessage string) *AppError {
	if userMessage == "" {
		userMessage = MsgInvalidInput
	}

	return &AppError{
		Code:        "E100",
		Kind:        KindInvalidInput,
		Message:     msg,
		UserMessage: userMessage,
		Severity:    SeverityLow,
	}
}

func NewDuplicateUsernameError(username string, cause error) *AppError {
	return &AppError{
		Code:        "E110",
		Kind:        KindDuplicateUsername,
		Message:     fmt.Sprintf("username %q already exists", username),
		UserMessage: MsgDuplicateUsername,
		Severity:    SeverityLow,
		cause:       cause,
	}
}

func NewUserNotFoundError(ref string, cause error) *AppError {
	return &AppError{
		Code:        "E120",
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("user %s not found", ref),
		UserMessage: MsgUserNotFound,
		Severity:    SeverityLow,
		cause:       cause,
	}
}

func NewBadCredentialError(username string) *AppError {
	return &AppError{
		Code:        "E130",
		Kind:        KindBadCredential,
		Message:     fmt.Sprintf("password mismatch for %q", username),
		UserMessage: MsgBadCredential,
		Severity:    SeverityLow,
	}
}

func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        "E140",
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: MsgRequestInProgress,
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Kind:        KindInternal,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: MsgInternal,
		Severity:    SeverityHigh,
		cause:       cause,
	}
}

func NewInternalError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E300",
		Kind:        KindInternal,
		Message:     fmt.Sprintf("Internal error: %s", underlyingMsg),
		UserMessage: MsgInternal,
		Severity:    SeverityCritical,
		cause:       cause,
	}
}
