package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an echofeed error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrEmptySpeech     ErrorCode = "EMPTY_SPEECH"     // 422
	ErrSuperseded      ErrorCode = "SUPERSEDED"       // 409
	ErrSynthesisFailed ErrorCode = "SYNTHESIS_FAILED" // 502
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// FeedError represents a structured error with code, status, and details.
type FeedError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *FeedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *FeedError {
	return &FeedError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a post cannot be found.
func NewNotFound(url string) *FeedError {
	return &FeedError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("post not found: %s", url),
		Details: map[string]any{"url": url},
	}
}

// NewEmptySpeech creates a 422 error for posts with no speakable text.
func NewEmptySpeech(url string) *FeedError {
	return &FeedError{
		Code:    ErrEmptySpeech,
		Status:  422,
		Message: "post has no speakable text",
		Details: map[string]any{"url": url},
	}
}

// NewSuperseded creates a 409 error for playback sessions cancelled by a
// newer session before their audio arrived.
func NewSuperseded(url string) *FeedError {
	return &FeedError{
		Code:    ErrSuperseded,
		Status:  409,
		Message: "playback session superseded by a newer request",
		Details: map[string]any{"url": url},
	}
}

// NewSynthesisFailed creates a 502 error for failed speech synthesis requests.
func NewSynthesisFailed(err error) *FeedError {
	msg := "speech synthesis failed"
	if err != nil {
		msg = fmt.Sprintf("speech synthesis failed: %v", err)
	}
	return &FeedError{
		Code:    ErrSynthesisFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message is generic; the original error is kept in Details for logging
// so internals are not leaked to clients.
func NewInternal(err error) *FeedError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &FeedError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or any error it wraps) is a FeedError with the
// given code.
func Is(err error, code ErrorCode) bool {
	var fErr *FeedError
	if stderrors.As(err, &fErr) {
		return fErr.Code == code
	}
	return false
}
