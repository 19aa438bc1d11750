package report

import (
	"errors"
	"fmt"
)

// ErrValidation marks a submission rejected before any side effect.
var ErrValidation = errors.New("validation failed")

// ValidationError lists the required fields that were left empty.
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("missing required fields: %v", e.Missing)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UploadError means the photo never reached storage; no row was appended.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "upload photo: " + e.Err.Error() }

func (e *UploadError) Unwrap() error { return e.Err }

// AppendError means the row was not written. When a photo was uploaded first,
// PhotoURL names it; Orphaned is true if the compensating delete did not run
// or did not succeed.
type AppendError struct {
	Err       error
	PhotoURL  string
	Orphaned  bool
	DeleteErr error
}

func (e *AppendError) Error() string {
	msg := "append report: " + e.Err.Error()
	if e.Orphaned && e.PhotoURL != "" {
		msg += fmt.Sprintf(" (uploaded photo %s was left in storage)", e.PhotoURL)
	}
	return msg
}

func (e *AppendError) Unwrap() error { return e.Err }
