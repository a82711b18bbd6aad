package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Data carries
// step-specific diagnostics and must never contain credentials.
type Error struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Status   int                    `json:"status"`
	Location string                 `json:"location,omitempty"`
	Data     map[string]interface{} `json:"error_data,omitempty"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the onboarding pipeline taxonomy.
var (
	ErrValidation      = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrAuth            = New("AUTH_ERROR", http.StatusUnauthorized, "authentication failed")
	ErrForbidden       = New("AUTH_ERROR", http.StatusForbidden, "insufficient permissions")
	ErrUserCreation    = New("USER_CREATION_ERROR", http.StatusBadGateway, "could not create user")
	ErrAllUserCreation = New("ALLUSER_CREATION_ERROR", http.StatusBadGateway, "could not create all-user record")
	ErrProfileCreation = New("PROFILE_CREATION_ERROR", http.StatusBadGateway, "could not create profile")
	ErrTraineeCreation = New("TRAINEE_CREATION_ERROR", http.StatusBadGateway, "could not create trainee record")
	ErrBatchProcessing = New("BATCH_PROCESSING_ERROR", http.StatusUnprocessableEntity, "batch processing failed")
	ErrEmptyFile       = New("EMPTY_FILE_ERROR", http.StatusBadRequest, "uploaded file is empty")
	ErrProcessing      = New("PROCESSING_ERROR", http.StatusUnprocessableEntity, "record processing failed")
	ErrUnexpected      = New("UNEXPECTED_ERROR", http.StatusInternalServerError, "unexpected error")
	ErrInternal        = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// At returns a copy of the error tagged with the pipeline step it occurred in.
func At(err *Error, location string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Location = location
	return &clone
}

// CodeOf extracts the taxonomy code from any error, defaulting to UNEXPECTED_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnexpected.Code
}
