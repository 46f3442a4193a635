package domain

import (
	"fmt"
)

type FetchErrorKind string

const (
	FetchNetwork FetchErrorKind = "network"
	FetchHTTP    FetchErrorKind = "http"
)

// FetchError is returned when a remote feed cannot be retrieved.
// StatusCode is set only for FetchHTTP.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchHTTP && e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: http status %d: %v", e.URL, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a payload is not a decodable calendar
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed calendar: %s: %v", e.Reason, e.Err)
	}
	return "malformed calendar: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReconcileError wraps a storage failure while writing events for a source
type ReconcileError struct {
	SourceID int64
	UID      string
	Err      error
}

func (e *ReconcileError) Error() string {
	if e.UID != "" {
		return fmt.Sprintf("reconcile source %d uid %q: storage failure: %v", e.SourceID, e.UID, e.Err)
	}
	return fmt.Sprintf("reconcile source %d: storage failure: %v", e.SourceID, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// NotFriends is the only AuthorizationError reason so far
const NotFriends = "not_friends"

// AuthorizationError is returned when a viewer may not see another user's agenda
type AuthorizationError struct {
	Reason   string
	ViewerID int64
	TargetID int64
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %d may not view user %d: %s", e.ViewerID, e.TargetID, e.Reason)
}
