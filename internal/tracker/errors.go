package tracker

import (
	"errors"
	"fmt"
)

// ErrorKind classifies tracker and forge failures for retry and display
// decisions.
type ErrorKind int

const (
	// KindAuth means bad credentials. Fatal; never retried.
	KindAuth ErrorKind = iota
	// KindNotFound means the task or PR does not exist. Shown as an
	// empty state, not a crash.
	KindNotFound
	// KindRateLimited is retried with backoff, then surfaced as
	// unavailable.
	KindRateLimited
	// KindNetwork covers transport failures. Retried with backoff.
	KindNetwork
	// KindMalformed means the API returned a payload we could not
	// parse. Non-retryable; indicates contract drift.
	KindMalformed
	// KindUnavailable is a retryable failure that exhausted its
	// retries.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed response"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified tracker failure.
type Error struct {
	Kind ErrorKind
	Op   string // e.g. "fetch task PROJ-42"
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a classified error.
func Errf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, or KindNetwork if err is not a
// tracker error (transport-level failures surface as plain errors).
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether the failure should be retried under the
// backoff policy. Only rate limiting and transport failures qualify.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindRateLimited || k == KindNetwork
}

// IsNotFound reports whether err is a not-found, which callers treat as
// an empty state.
func IsNotFound(err error) bool { return errorKindIs(err, KindNotFound) }

// IsAuth reports whether err is a credentials failure.
func IsAuth(err error) bool { return errorKindIs(err, KindAuth) }

func errorKindIs(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
