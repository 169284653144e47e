package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAuthMissing      = errors.New("api key is not configured")
	ErrValidation       = errors.New("invalid request")
	ErrSubmission       = errors.New("submission failed")
	ErrPollingTransport = errors.New("polling transport error")
	ErrNoResult         = errors.New("provider reported success without a result")
	ErrPollingAbandoned = errors.New("polling abandoned after repeated transport errors")
)

// ValidationError describes a client-side precondition that was violated
// before any request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SubmissionError carries the provider's message for a rejected request.
type SubmissionError struct {
	Status  int
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("provider status %d: %s", e.Status, msg)
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission
}

// ProviderMessage extracts the provider supplied message, if any.
func ProviderMessage(err error) string {
	var sub *SubmissionError
	if errors.As(err, &sub) {
		return sub.Message
	}
	return ""
}
