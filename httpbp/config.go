package httpbp

import (
	"time"

	"github.com/latencylab/latencysvc/breakerbp"
	"github.com/latencylab/latencysvc/errorsbp"
)

// ClientConfig provides the configuration for a HTTP client including its
// middlewares.
type ClientConfig struct {
	// Slug names the client in metrics. Required.
	Slug string `yaml:"slug"`

	// Timeout is the http.Client timeout covering the whole request including
	// reading the response body. 0 means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxConcurrency limits in-flight requests, failing the excess ones with
	// ErrConcurrencyLimit. 0 means unlimited.
	MaxConcurrency int64 `yaml:"maxConcurrency"`

	// MaxConnections limits connections per host. 0 means unlimited.
	MaxConnections int `yaml:"maxConnections"`

	// MaxErrorReadAhead is the number of bytes of a failed response stored in
	// ClientError.AdditionalInfo. 0 means DefaultMaxErrorReadAhead.
	MaxErrorReadAhead int `yaml:"maxErrorReadAhead"`

	// FailOnStatus turns responses outside [200, 400) into *ClientError.
	FailOnStatus bool `yaml:"failOnStatus"`

	// CircuitBreaker enables the per-host circuit breaker when non-nil.
	CircuitBreaker *breakerbp.Config `yaml:"circuitBreaker"`
}

// Validate checks ClientConfig for any missing or erroneous values.
func (c ClientConfig) Validate() error {
	var batch errorsbp.Batch
	if c.Slug == "" {
		batch.Add(ErrConfigMissingSlug)
	}
	if c.Timeout < 0 {
		batch.Add(ErrConfigInvalidTimeout)
	}
	if c.MaxConcurrency < 0 {
		batch.Add(ErrConfigInvalidMaxConcurrency)
	}
	if c.MaxConnections < 0 {
		batch.Add(ErrConfigInvalidMaxConnections)
	}
	if c.MaxErrorReadAhead < 0 {
		batch.Add(ErrConfigInvalidMaxErrorReadAhead)
	}
	return batch.Compile()
}
