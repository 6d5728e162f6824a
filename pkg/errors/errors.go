package errors

import "errors"

// Closed taxonomy of error codes propagated through the core (see spec §7).
// Components translate store/network-level failures into these before they
// cross a boundary; HTTP/voice/chat routers map them to transport codes.
const (
	CodeUnauthenticated   = "unauthenticated"
	CodeUnauthorized      = "unauthorized"
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeNotReady          = "not_ready"
	CodeTransientFailure  = "transient_failure"
	CodeTooLarge          = "too_large"
	CodeInvalidInput      = "invalid_input"
	CodeStorageError      = "storage_error"
	CodeEmbeddingError    = "embedding_error"
	CodeRetrieveError     = "retrieve_error"
	CodeUpstreamError     = "upstream_error"
	CodeFatal             = "fatal"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode helps handler differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
