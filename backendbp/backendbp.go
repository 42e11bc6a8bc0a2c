// Package backendbp calls the downstream backend of the benchmark service.
//
// Each call is one GET with a bounded timeout whose body is read to
// completion. Calls are never retried.
package backendbp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go"

	"github.com/latencylab/latencysvc/breakerbp"
	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/httpbp"
	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/retrybp"
)

// Defaults used by Config.
const (
	DefaultURL       = "http://localhost:8080/"
	DefaultTimeout   = 5 * time.Second
	DefaultWaitDelay = 500 * time.Millisecond

	// Slug is the client name reported in httpbp client metrics.
	Slug = "backend"
)

// Config configures a Client.
//
// Can be deserialized from YAML and overridden by environment variables.
type Config struct {
	// URL is the backend URL every call GETs.
	URL string `yaml:"url" env:"BACKEND_URL"`

	// Timeout bounds a whole call including reading the body.
	Timeout time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT"`

	// MaxConnections limits connections to the backend host.
	// 0 means unlimited.
	MaxConnections int `yaml:"maxConnections" env:"BACKEND_MAX_CONNECTIONS"`

	// MaxConcurrency fails calls beyond this many in flight.
	// 0 means unlimited.
	MaxConcurrency int64 `yaml:"maxConcurrency" env:"BACKEND_MAX_CONCURRENCY"`

	// FailOnStatus makes responses outside [200, 400) fail the call.
	// By default the status code is ignored.
	FailOnStatus bool `yaml:"failOnStatus" env:"BACKEND_FAIL_ON_STATUS"`

	// WaitAttempts is the number of readiness probes WaitReady makes.
	// 0 skips waiting.
	WaitAttempts uint `yaml:"waitAttempts" env:"BACKEND_WAIT_ATTEMPTS"`

	// WaitDelay is the initial delay between readiness probes.
	WaitDelay time.Duration `yaml:"waitDelay" env:"BACKEND_WAIT_DELAY"`

	// CircuitBreaker enables a circuit breaker in front of the backend when
	// non-nil.
	CircuitBreaker *breakerbp.Config `yaml:"circuitBreaker"`
}

// DefaultConfig returns the Config used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		URL:       DefaultURL,
		Timeout:   DefaultTimeout,
		WaitDelay: DefaultWaitDelay,
	}
}

// Validate checks Config for erroneous values.
func (c Config) Validate() error {
	var batch errorsbp.Batch
	if c.URL == "" {
		batch.Add(errors.New("backendbp: url must be non-empty"))
	} else if _, err := http.NewRequest(http.MethodGet, c.URL, nil); err != nil {
		batch.Add(fmt.Errorf("backendbp: invalid url %q: %w", c.URL, err))
	}
	if c.Timeout <= 0 {
		batch.Add(fmt.Errorf("backendbp: timeout must be positive, got %v", c.Timeout))
	}
	if c.WaitDelay < 0 {
		batch.Add(fmt.Errorf("backendbp: waitDelay must be non-negative, got %v", c.WaitDelay))
	}
	return batch.Compile()
}

// Error is returned by Client.Call when the call failed.
type Error struct {
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend call to %s failed: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying transport, timeout or status error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call failed because it ran out of time.
func (e *Error) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Cause, &t) && t.Timeout()
}

// Client calls the backend.
//
// It's safe for concurrent use.
type Client struct {
	url    string
	client *http.Client
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := httpbp.NewClient(httpbp.ClientConfig{
		Slug:           Slug,
		Timeout:        cfg.Timeout,
		MaxConnections: cfg.MaxConnections,
		MaxConcurrency: cfg.MaxConcurrency,
		FailOnStatus:   cfg.FailOnStatus,
		CircuitBreaker: cfg.CircuitBreaker,
	})
	if err != nil {
		return nil, fmt.Errorf("backendbp: creating http client: %w", err)
	}
	return NewWithHTTPClient(cfg.URL, client), nil
}

// NewWithHTTPClient creates a Client calling url with the given http.Client.
func NewWithHTTPClient(url string, client *http.Client) *Client {
	return &Client{
		url:    url,
		client: client,
	}
}

// URL returns the backend URL.
func (c *Client) URL() string {
	return c.url
}

// Call performs a single GET to the backend and reads the body to
// completion.
//
// Any transport failure, timeout or (when configured) status failure is
// returned as *Error.
func (c *Client) Call(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return &Error{URL: c.url, Cause: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{URL: c.url, Cause: err}
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return &Error{URL: c.url, Cause: err}
	}
	return nil
}

// WaitReady probes the backend with Call until it succeeds, making at most
// attempts calls with a capped exponential backoff starting at delay.
//
// It returns nil without calling when attempts is 0.
func (c *Client) WaitReady(ctx context.Context, attempts uint, delay time.Duration) error {
	if attempts == 0 {
		return nil
	}
	return retrybp.Do(
		ctx,
		func() error {
			return c.Call(ctx)
		},
		retry.Attempts(attempts),
		retrybp.CappedExponentialBackoff(retrybp.CappedExponentialBackoffArgs{
			InitialDelay: delay,
			MaxDelay:     10 * delay,
		}),
		retrybp.Filters(
			retrybp.RetryAll,
		),
		retry.OnRetry(func(n uint, err error) {
			log.C(ctx).Infow(
				"backendbp: backend not ready",
				"url", c.url,
				"attempt", n+1,
				"err", err,
			)
		}),
	)
}
