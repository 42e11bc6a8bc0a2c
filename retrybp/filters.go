package retrybp

import (
	"context"
	"errors"
	"net"

	retry "github.com/avast/retry-go"
	"github.com/sony/gobreaker"
)

// DefaultFilterDecision is the decision returned at the end of the filter
// chain.
const DefaultFilterDecision = false

func fallback(_ error) bool {
	return DefaultFilterDecision
}

var _ retry.RetryIfFunc = fallback

// Filter decides whether err should be retried, or defers to next when it
// can't make that decision on its own.
type Filter func(err error, next retry.RetryIfFunc) bool

// Filters returns a retry.RetryIf option that runs err through filters in
// order and falls back to DefaultFilterDecision.
//
// Don't combine it with other retry.RetryIf options, one would override the
// other.
func Filters(filters ...Filter) retry.Option {
	retryIf := fallback
	for i := len(filters) - 1; i >= 0; i-- {
		current, next := filters[i], retryIf
		retryIf = func(err error) bool {
			return current(err, next)
		}
	}
	return retry.RetryIf(retryIf)
}

// ContextErrorFilter never retries context.Canceled and
// context.DeadlineExceeded.
func ContextErrorFilter(err error, next retry.RetryIfFunc) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return next(err)
}

// NetworkErrorFilter retries any net.Error that isn't a deadline.
//
// Only use it for idempotent requests.
func NetworkErrorFilter(err error, next retry.RetryIfFunc) bool {
	if !errors.Is(err, context.DeadlineExceeded) && errors.As(err, new(net.Error)) {
		return true
	}
	return next(err)
}

// RetryableError defines an optional error interface to return retryable info.
type RetryableError interface {
	error

	// Retryable returns 0 when there isn't enough information to decide, >0
	// when the error is retryable, and <0 when it is not.
	Retryable() int
}

// RetryableErrorFilter uses the decision of a RetryableError in the chain,
// and also respects retry.Unrecoverable.
//
// It should usually be first in the chain so Unrecoverable can override the
// other filters.
func RetryableErrorFilter(err error, next retry.RetryIfFunc) bool {
	var re RetryableError
	if errors.As(err, &re) {
		if v := re.Retryable(); v != 0 {
			return v > 0
		}
	} else if !retry.IsRecoverable(err) {
		return false
	}
	return next(err)
}

// BreakerErrorFilter retries the fail fast errors of an open or half-open
// gobreaker circuit breaker.
//
// Only use it together with a backoff delay.
func BreakerErrorFilter(err error, next retry.RetryIfFunc) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	return next(err)
}

// RetryAll retries every error that reaches it.
//
// Put it at the end of the chain.
func RetryAll(_ error, _ retry.RetryIfFunc) bool {
	return true
}

type retryableWrapper struct {
	err       error
	retryable int
}

func (e retryableWrapper) Error() string {
	return e.err.Error()
}

func (e retryableWrapper) Unwrap() error {
	return e.err
}

func (e retryableWrapper) Retryable() int {
	return e.retryable
}

// Unrecoverable marks err as not retryable through RetryableError.
//
// Unlike retry.Unrecoverable the result still unwraps to err.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return retryableWrapper{
		err:       err,
		retryable: -1,
	}
}

var (
	_ Filter = ContextErrorFilter
	_ Filter = NetworkErrorFilter
	_ Filter = RetryableErrorFilter
	_ Filter = BreakerErrorFilter
	_ Filter = RetryAll

	_ RetryableError = retryableWrapper{}
)
