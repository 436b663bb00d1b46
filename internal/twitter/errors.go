package twitter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiendaovinh/toolkit/pkg/arr"
)

// ErrorCode classifies client failures.
type ErrorCode string

const (
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
	ErrIdentifierStale    ErrorCode = "IDENTIFIER_STALE"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrUpstream           ErrorCode = "UPSTREAM"
	ErrAutomatedRejection ErrorCode = "AUTOMATED_REJECTION"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrDiscoveryFailed    ErrorCode = "DISCOVERY_FAILED"
)

// ClientError is a structured error with a code and an optional cause.
type ClientError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClientError) Unwrap() error { return e.Err }

// Is reports whether err is a ClientError with the given code.
func Is(err error, code ErrorCode) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func newError(code ErrorCode, format string, args ...any) *ClientError {
	return &ClientError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *ClientError {
	return &ClientError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// StatusError is an HTTP-level failure that was not handled by a retry path.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response code %d", e.StatusCode)
}

// RateLimitError carries the delay the server asked for, when it sent one.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// APIError is a single GraphQL-level error entry in a response payload.
type APIError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
}

func (e APIError) Error() string { return e.Message }

// codeAutomatedRequest is the application error code the write path receives
// when a post is flagged as automated.
const codeAutomatedRequest = 226

func hasErrorCode(errs []APIError, code int) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func joinAPIErrors(errs []APIError) string {
	return strings.Join(arr.ArrMap(errs, func(e APIError) string { return e.Message }), "; ")
}
