package retrybp

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/latencylab/latencysvc/errorsbp"
)

func init() {
	retry.DefaultAttempts = 1
	retry.DefaultDelay = 1 * time.Millisecond
	retry.DefaultMaxJitter = 5 * time.Millisecond
	retry.DefaultDelayType = cappedExponentialBackoffFunc(CappedExponentialBackoffArgs{
		InitialDelay: retry.DefaultDelay,
		MaxJitter:    retry.DefaultMaxJitter,
	})
	retry.DefaultLastErrorOnly = false
}

// Do calls retry.Do with retry.Context(ctx) applied first, followed by the
// given options.
//
// When every attempt fails, the errors from all attempts are returned as an
// errorsbp.Batch (or the only error when there was just one attempt).
func Do(ctx context.Context, fn func() error, options ...retry.Option) error {
	merged := make([]retry.Option, 0, 1+len(options))
	merged = append(merged, retry.Context(ctx))
	merged = append(merged, options...)
	err := retry.Do(fn, merged...)

	var retryErr retry.Error
	if errors.As(err, &retryErr) {
		var batch errorsbp.Batch
		batch.Add(retryErr.WrappedErrors()...)
		return batch.Compile()
	}
	return err
}
