package errors

import "fmt"

// ErrorCode represents an Itemsmith error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrConflict         ErrorCode = "CONFLICT"          // 409
	ErrNotConfigured    ErrorCode = "NOT_CONFIGURED"    // 412
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 502
	ErrUnexpectedFormat ErrorCode = "UNEXPECTED_FORMAT" // 502
	ErrSubmissionFailed ErrorCode = "SUBMISSION_FAILED" // 502
	ErrLinkMissing      ErrorCode = "LINK_MISSING"      // 502
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// ItemsmithError represents a structured error with code, status, and details.
type ItemsmithError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ItemsmithError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(id string) *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewConflict creates a 409 error for operations refused by current state,
// such as starting a generation run while one is already in flight.
func NewConflict(msg string) *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewNotConfigured creates a 412 error for submission attempts without
// complete tracker credentials.
func NewNotConfigured() *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrNotConfigured,
		Status:  412,
		Message: "tracker credentials are not configured: organization, project, and personal access token are all required",
	}
}

// NewGenerationFailed creates a 502 error for generative backend failures.
// The underlying cause goes into details for logging, not the user message.
func NewGenerationFailed(err error) *ItemsmithError {
	e := &ItemsmithError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: "failed to generate work items from the provided text",
	}
	if err != nil {
		e.Details = map[string]any{"cause": err.Error()}
	}
	return e
}

// NewUnexpectedFormat creates a 502 error for replies that do not conform
// to the expected record schema.
func NewUnexpectedFormat(msg string) *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrUnexpectedFormat,
		Status:  502,
		Message: "the generative backend returned data in an unexpected format",
		Details: map[string]any{"reason": msg},
	}
}

// NewSubmissionFailed creates a 502 error for tracker rejections.
// The message prefers backend-provided detail when available.
func NewSubmissionFailed(msg string) *ItemsmithError {
	if msg == "" {
		msg = "the work-tracking backend rejected the request"
	}
	return &ItemsmithError{
		Code:    ErrSubmissionFailed,
		Status:  502,
		Message: msg,
	}
}

// NewLinkMissing creates a 502 error for the soft-failure case where the
// tracker accepted the item but the response carried no retrievable link.
// The remote resource may already exist.
func NewLinkMissing() *ItemsmithError {
	return &ItemsmithError{
		Code:    ErrLinkMissing,
		Status:  502,
		Message: "work item was created but the tracker returned no link to it",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ItemsmithError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ItemsmithError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is an ItemsmithError with the given code.
func Is(err error, code ErrorCode) bool {
	if iErr, ok := err.(*ItemsmithError); ok {
		return iErr.Code == code
	}
	return false
}
