package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a failed fetch.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection_error"
	KindHTTP        Kind = "http_error"
	KindRemote      Kind = "remote_error"
	KindUnexpected  Kind = "unexpected"
)

// Error is returned by Fetcher.Fetch for every failed lookup.
type Error struct {
	Kind     Kind
	Status   int // HTTP status for KindHTTP
	Attempts int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream %s", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether another attempt could change the outcome.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindHTTP:
		return true
	}
	return false
}

// IsTransient is the default retry predicate.
func IsTransient(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Transient()
	}
	return false
}

// KindOf extracts the Kind from err, or KindUnexpected.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnexpected
}
