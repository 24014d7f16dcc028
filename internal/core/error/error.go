package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// MongoErrorMessage describes MongoDB related failures.
	MongoErrorMessage = "mongo operation failed"
	// MongoNotFoundMessage describes a missing MongoDB document.
	MongoNotFoundMessage = "document not found"
)

// Error codes reported to clients alongside the HTTP status.
const (
	CodeUnauthorized          = "unauthorized"
	CodeEmailNotVerified      = "email_not_verified"
	CodeInsufficientCredits   = "insufficient_credits"
	CodeCreditDeductionFailed = "credit_deduction_failed"
	CodeInvalidQuery          = "invalid_query"
	CodeInternal              = "internal_server_error"
	CodeDecisionInvalid       = "llm_tool_decision_invalid"
	CodeDecisionFailed        = "llm_tool_decision_failed"
	CodeSynthesisFailed       = "ai_synthesis_failed"
	CodeLoopException         = "react_loop_exception"
)

// Apologies returned as the reply of a failed query.
const (
	DecisionApology  = "Sorry, I encountered an error while deciding on an action."
	SynthesisApology = "Sorry, I couldn't generate a response due to AI service issues."
	LoopApology      = "Sorry, something went wrong while processing your request."
)

// Sentinels used to classify processor failures with errors.Is.
var (
	ErrDecisionParse    = errors.New("tool decision parse failed")
	ErrDecisionBackend  = errors.New("tool decision backend failed")
	ErrSynthesisBackend = errors.New("answer synthesis backend failed")
)

// AppError wraps an underlying error with an HTTP status, a machine readable
// code and a safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NewCoded creates an AppError carrying an error code.
func NewCoded(err error, status int, code, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// StatusOf returns the HTTP status carried by err, or 500 when err is not an AppError.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code carried by err, if any.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
