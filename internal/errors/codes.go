package errors

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode classifies a failure at the sign service boundary.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeOCRUnavailable indicates the OCR engine is missing or failed.
	ErrCodeOCRUnavailable ErrorCode = "OCR_UNAVAILABLE"
	// ErrCodeUnsupportedMedia indicates an image format the OCR engine cannot read.
	ErrCodeUnsupportedMedia ErrorCode = "UNSUPPORTED_MEDIA"
	// ErrCodePolicyInvalid indicates a confirmation policy failed to compile or evaluate.
	ErrCodePolicyInvalid ErrorCode = "POLICY_INVALID"
	// ErrCodeCacheUnavailable indicates the extraction cache could not be reached.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal is the code of errors that carry no code of their own.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ParkError is a structured error returned by the sign service.
type ParkError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *ParkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParkError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *ParkError) WithContext(key string, value any) *ParkError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ParkError {
	return &ParkError{Code: ErrCodeInvalidArgument, Message: msg}
}

// OCRUnavailable creates an OCR failure error.
func OCRUnavailable(msg string, cause error) *ParkError {
	return &ParkError{Code: ErrCodeOCRUnavailable, Message: msg, Cause: cause}
}

// UnsupportedMedia creates an error for an image the OCR engine cannot read.
func UnsupportedMedia(format string) *ParkError {
	return &ParkError{
		Code:    ErrCodeUnsupportedMedia,
		Message: fmt.Sprintf("unsupported image format: %s", format),
	}
}

// PolicyInvalid creates a policy error.
func PolicyInvalid(cause error) *ParkError {
	return &ParkError{Code: ErrCodePolicyInvalid, Message: "confirmation policy failed", Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *ParkError {
	return &ParkError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string) *ParkError {
	return &ParkError{Code: ErrCodeTimeout, Message: msg}
}

// Wrap wraps an existing error with a code.
func Wrap(cause error, code ErrorCode, msg string) *ParkError {
	return &ParkError{Code: code, Message: msg, Cause: cause}
}

// FromContext converts a context error into a coded error, or returns nil
// when ctx is still live.
func FromContext(ctx context.Context) *ParkError {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case pkgerrors.Is(err, context.DeadlineExceeded):
		return &ParkError{Code: ErrCodeTimeout, Message: "deadline exceeded", Cause: err}
	default:
		return ContextCanceled(err)
	}
}

// IsCode checks whether any error in the chain carries code.
func IsCode(err error, code ErrorCode) bool {
	var parkErr *ParkError
	return pkgerrors.As(err, &parkErr) && parkErr.Code == code
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if no ParkError is in the chain.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var parkErr *ParkError
	if pkgerrors.As(err, &parkErr) {
		return parkErr.Code
	}
	return defaultCode
}

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCodeFromError(err, ErrCodeInternal) {
	case ErrCodeInvalidArgument, ErrCodePolicyInvalid:
		return 2
	case ErrCodeOCRUnavailable, ErrCodeUnsupportedMedia:
		return 3
	case ErrCodeContextCanceled, ErrCodeTimeout:
		return 4
	default:
		return 1
	}
}
