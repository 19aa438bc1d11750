package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every configuration failure via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// Error describes a missing or malformed configuration value.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("configuration: %s", e.Key)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrConfiguration }

func missing(key string) error {
	return &Error{Key: key, Err: errors.New("missing env var")}
}
