package backend

import (
	"errors"
	"fmt"
)

// ValidationError is a client-side input failure; no request was sent
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConnectError means the service could not be reached at all
type ConnectError struct {
	Service string
	Message string
	Err     error
}

func (e *ConnectError) Error() string {
	return e.Message
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// APIError is an application error reported by a reachable service
type APIError struct {
	Service string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// TooLargeError means the request body ran past its size limit while it
// was being sent; the service never saw a complete upload
type TooLargeError struct {
	Service string
	Limit   int64
}

func (e *TooLargeError) Error() string {
	return TooLargeMessage(e.Limit)
}

// TooLargeMessage is the user-facing text for an upload over limit bytes
func TooLargeMessage(limit int64) string {
	if limit >= 1<<20 && limit%(1<<20) == 0 {
		return fmt.Sprintf("File is too large. The maximum upload size is %d MB", limit>>20)
	}
	return fmt.Sprintf("File is too large. The maximum upload size is %d bytes", limit)
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a client-side validation failure
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
