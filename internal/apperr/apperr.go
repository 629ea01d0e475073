// Package apperr holds the error taxonomy shared by the sync engine.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyncUnavailable    = errors.New("sync unavailable")
	ErrAllEndpointsFailed = errors.New("all endpoints failed")
	ErrQuotaExceeded      = errors.New("notification quota exceeded")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStaleEpoch         = errors.New("cache epoch changed during poll")
)

// UploadFailed is stored in place of a photo URL when the attachment
// store could not be reached. It is a valid field value, not an error.
const UploadFailed = "error-upload"

// quotaMarker is what the remote store puts in its error envelope when the
// daily mail quota is exhausted.
const quotaMarker = "LIMIT_EMAIL"

// TransportError is an endpoint that could not be reached or answered
// with a non-2xx status.
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("endpoint %s: http status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError is a structured {"status":"error"} envelope.
type ApplicationError struct {
	Endpoint string
	Message  string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("endpoint %s: remote error: %s", e.Endpoint, e.Message)
}

func (e *ApplicationError) Is(target error) bool {
	return target == ErrQuotaExceeded && strings.Contains(strings.ToUpper(e.Message), quotaMarker)
}

// UnavailableError is returned once every endpoint has been tried.
// Last is the last transport error seen, or ErrAllEndpointsFailed.
type UnavailableError struct {
	Last   error
	Remote []*ApplicationError
	Tried  int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("sync unavailable after %d endpoint(s): %v", e.Tried, e.Last)
}

func (e *UnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Remote)+2)
	errs = append(errs, ErrSyncUnavailable, e.Last)
	for _, r := range e.Remote {
		errs = append(errs, r)
	}
	return errs
}

// ValidationError names the fields that blocked an operation.
type ValidationError struct {
	Op     string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing or invalid: %s", e.Op, strings.Join(e.Fields, ", "))
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
