// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// Messages shown to the user. Each component has a single error slot that
// displays one of these.
const (
	MsgEmptyQuery    = "please enter a username"
	MsgUserNotFound  = "user not found"
	MsgUserFailed    = "failed to fetch user"
	MsgReposFailed   = "failed to fetch repositories"
	MsgCommitsFailed = "failed to fetch commits"
)

// ErrSuperseded is returned when a response arrives after a newer request for
// the same state slot was issued. The response is discarded.
var ErrSuperseded = errors.New("response superseded by a newer request")

// ErrInvalidRepoFormat is returned when a repository reference is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ValidationError is returned for input rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StatusError is a non-success response from the GitHub API.
type StatusError struct {
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *StatusError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("github: rate limited (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// SchemaError is a 2xx response whose payload lacks required fields.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return "github: unexpected payload: " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NotFoundError is returned for any failed user lookup that received a
// response, whatever its status. The status stays available through Err.
type NotFoundError struct {
	Login string
	Err   error
}

func (e *NotFoundError) Error() string {
	return MsgUserNotFound
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// FetchError is a failed repository, commit or transport-level user fetch.
type FetchError struct {
	Op      string // "user", "repositories" or "commits"
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError builds a FetchError carrying the generic message for op.
func NewFetchError(op string, err error) *FetchError {
	msg := MsgCommitsFailed
	switch op {
	case "user":
		msg = MsgUserFailed
	case "repositories":
		msg = MsgReposFailed
	}
	return &FetchError{Op: op, Message: msg, Err: err}
}

// StatusCode returns the upstream HTTP status wrapped in err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsRateLimited reports whether GitHub rejected the request because of a rate limit.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.RateLimited
}

// Detail renders err followed by its immediate cause, for logs. The
// user-facing messages above hide the status code and transport error.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	if u := errors.Unwrap(err); u != nil {
		return err.Error() + ": " + u.Error()
	}
	return err.Error()
}
