// Package apperr holds the typed errors shared by the bridge's components.
// Handlers classify failures with errors.As and map them onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

// AuthError reports a credential or token problem. It is never retried.
type AuthError struct {
	Service    string
	Msg        string
	StatusCode int // status returned by the authorization endpoint, 0 if no call was made
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s auth: %s", e.Service, e.Msg)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteAPIError is a non-2xx response (or transport failure) from a vendor API.
type RemoteAPIError struct {
	Service    string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteAPIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s request failed: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s error: status %d, body: %s", e.Service, e.Op, e.StatusCode, e.Body)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

// NotFoundError reports an absent mapping, candidate or log.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// ConflictError reports an attempt to create something that already exists.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists for %q", e.Resource, e.Key)
}

// ValidationError reports bad caller input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// InternalError wraps anything unexpected.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal wraps err as an InternalError unless it already carries one of the typed errors.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindInternal {
		return err
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// ErrorKind names the taxonomy bucket of an error.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRemoteAPI  ErrorKind = "remote_api"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

// Kind classifies err. Untyped errors are internal.
func Kind(err error) ErrorKind {
	var (
		ae *AuthError
		re *RemoteAPIError
		ne *NotFoundError
		ce *ConflictError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &re):
		return KindRemoteAPI
	case errors.As(err, &ne):
		return KindNotFound
	case errors.As(err, &ce):
		return KindConflict
	case errors.As(err, &ve):
		return KindValidation
	default:
		return KindInternal
	}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound
}
