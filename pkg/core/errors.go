package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigInvalid is returned when required configuration is missing or malformed.
	ErrConfigInvalid = errors.New("invalid configuration")
	// ErrDenied is returned when the user or provider rejected consent.
	ErrDenied = errors.New("authorization denied")
	// ErrTokenExchangeFailed is returned when the token endpoint answered non-2xx.
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	// ErrMalformedResponse is returned when a 2xx response lacks required fields.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrProfileFetchFailed is returned when the profile endpoint answered non-2xx during login.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrAPI is returned when an authenticated API call answered non-2xx.
	ErrAPI = errors.New("api error")
	// ErrNotAuthenticated is returned when a query needs a session and none is active.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTimeout is returned when no redirect arrived in time.
	ErrTimeout = errors.New("timed out waiting for authorization")
	// ErrLoginInProgress is returned when a login is started while another is running.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrNoLoginInProgress is returned when a login is completed without being started.
	ErrNoLoginInProgress = errors.New("no login in progress")
	// ErrInvalidInput is returned for locally rejected arguments, before any network call.
	ErrInvalidInput = errors.New("invalid input")
)

// Error carries the context of a failed login or API call.
type Error struct {
	Kind   error
	Status int
	Body   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Denied builds an ErrDenied error with the provider's reason.
func Denied(reason string) error {
	return &Error{Kind: ErrDenied, Reason: reason}
}

// TokenExchangeFailed builds an ErrTokenExchangeFailed error.
func TokenExchangeFailed(status int, body string) error {
	return &Error{Kind: ErrTokenExchangeFailed, Status: status, Body: body}
}

// MalformedResponse builds an ErrMalformedResponse error.
func MalformedResponse(reason string) error {
	return &Error{Kind: ErrMalformedResponse, Reason: reason}
}

// ProfileFetchFailed builds an ErrProfileFetchFailed error.
func ProfileFetchFailed(status int) error {
	return &Error{Kind: ErrProfileFetchFailed, Status: status}
}

// APIError builds an ErrAPI error.
func APIError(status int, body string) error {
	return &Error{Kind: ErrAPI, Status: status, Body: body}
}

// NotAuthenticated builds an ErrNotAuthenticated error.
func NotAuthenticated(reason string) error {
	return &Error{Kind: ErrNotAuthenticated, Reason: reason}
}

// ConfigInvalid builds an ErrConfigInvalid error naming the offending field.
func ConfigInvalid(field, reason string) error {
	return &Error{Kind: ErrConfigInvalid, Reason: field + " " + reason}
}

// InvalidInput builds an ErrInvalidInput error.
func InvalidInput(reason string) error {
	return &Error{Kind: ErrInvalidInput, Reason: reason}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
