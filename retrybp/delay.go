package retrybp

import (
	"errors"
	"math"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/latencylab/latencysvc/randbp"
)

// RetryAfterError defines a type of errors that contain retry-after
// information (for example, HTTP's Retry-After header).
//
// httpbp.ClientError implements it.
type RetryAfterError interface {
	error

	// A duration <= 0 means there's no retry-after info.
	RetryAfterDuration() time.Duration
}

// CappedExponentialBackoffArgs defines the args used in
// CappedExponentialBackoff retry option.
//
// All args are optional.
type CappedExponentialBackoffArgs struct {
	// The initial delay.
	// If <=0, retry.DefaultDelay will be used.
	InitialDelay time.Duration

	// The cap of InitialDelay<<n, not including MaxJitter.
	// If <=0, only MaxExponent caps it.
	MaxDelay time.Duration

	// Caps n in InitialDelay<<n. Values <=0 or too large to fit in an int64
	// are adjusted automatically.
	MaxExponent int

	// Max random jitter to be added to each retry delay.
	MaxJitter time.Duration

	// Unless set, a RetryAfterError with a positive RetryAfterDuration raises
	// the delay to at least that duration, even above MaxDelay.
	IgnoreRetryAfterError bool
}

// CappedExponentialBackoff is an exponential backoff delay option with
// properly capped delays.
func CappedExponentialBackoff(args CappedExponentialBackoffArgs) retry.Option {
	return retry.DelayType(cappedExponentialBackoffFunc(args))
}

func cappedExponentialBackoffFunc(args CappedExponentialBackoffArgs) retry.DelayTypeFunc {
	base := args.InitialDelay
	if base <= 0 {
		base = retry.DefaultDelay
	}
	if base <= 0 {
		base = 1
	}

	maxExponent := actualMaxExponent(base)
	if args.MaxExponent > 0 && args.MaxExponent < maxExponent {
		maxExponent = args.MaxExponent
	}
	uMaxExponent := uint(maxExponent)

	return func(n uint, err error, _ *retry.Config) time.Duration {
		if n > uMaxExponent {
			n = uMaxExponent
		}
		delay := uint64(base) << n
		if args.MaxDelay > 0 && delay > uint64(args.MaxDelay) {
			delay = uint64(args.MaxDelay)
		}

		var rae RetryAfterError
		if !args.IgnoreRetryAfterError && errors.As(err, &rae) {
			if minDelay := rae.RetryAfterDuration(); minDelay > 0 && delay < uint64(minDelay) {
				delay = uint64(minDelay)
			}
		}

		if args.MaxJitter > 0 {
			delay += uint64(randbp.UpTo(args.MaxJitter))
		}
		if delay > math.MaxInt64 {
			delay = math.MaxInt64
		}
		return time.Duration(delay)
	}
}

func actualMaxExponent(base time.Duration) int {
	// 1 << 63 would overflow int64, thus 62.
	return 62 - int(math.Floor(math.Log2(float64(base))))
}

// FixedDelay is a delay option that waits delay between attempts.
//
// It's the same as combining retry.Delay and retry.DelayType(retry.FixedDelay)
// but harder to get wrong.
func FixedDelay(delay time.Duration) retry.Option {
	return retry.DelayType(FixedDelayFunc(delay))
}

// FixedDelayFunc is a retry.DelayTypeFunc implementation causing fixed delays.
func FixedDelayFunc(delay time.Duration) retry.DelayTypeFunc {
	return func(_ uint, _ error, _ *retry.Config) time.Duration {
		return delay
	}
}
