package httpbp

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/latencylab/latencysvc/breakerbp"
	"github.com/latencylab/latencysvc/retrybp"
)

// DefaultMaxErrorReadAhead defines the maximum bytes to be read from a
// failed HTTP response to be attached as additional information in a
// ClientError response.
const DefaultMaxErrorReadAhead = 1024

// ClientMiddleware is used to build HTTP client middleware by implementing
// http.RoundTripper which http.Client accepts as Transport.
type ClientMiddleware func(next http.RoundTripper) http.RoundTripper

// roundTripperFunc adapts closures and functions to implement http.RoundTripper.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// NewClient returns a standard HTTP client wrapped with the middlewares
// derived from config, plus any additional client middleware passed in.
//
// The outermost middleware is MonitorClient, followed by the given middleware,
// CircuitBreaker (when configured), MaxConcurrency (when configured) and
// ClientErrorWrapper (when FailOnStatus is set).
//
// The client never retries. Wrap it with Retries for that.
func NewClient(config ClientConfig, middleware ...ClientMiddleware) (*http.Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.MaxConnections > 0 {
		transport.MaxConnsPerHost = config.MaxConnections
		if transport.MaxIdleConnsPerHost < config.MaxConnections {
			transport.MaxIdleConnsPerHost = config.MaxConnections
		}
	}

	chain := make([]ClientMiddleware, 0, len(middleware)+4)
	chain = append(chain, MonitorClient(config.Slug))
	chain = append(chain, middleware...)
	if config.CircuitBreaker != nil {
		chain = append(chain, CircuitBreaker(*config.CircuitBreaker))
	}
	if config.MaxConcurrency > 0 {
		chain = append(chain, MaxConcurrency(config.MaxConcurrency))
	}
	if config.FailOnStatus {
		chain = append(chain, ClientErrorWrapper(config.MaxErrorReadAhead))
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: WrapTransport(transport, chain...),
	}, nil
}

// WrapTransport takes a list of client middleware and wraps them around the
// given transport. This is useful for using client middleware outside of this
// package.
func WrapTransport(transport http.RoundTripper, middleware ...ClientMiddleware) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	// add middleware in reverse so the first in the list is the outermost
	for i := len(middleware) - 1; i >= 0; i-- {
		transport = middleware[i](transport)
	}
	return transport
}

// ClientErrorWrapper applies ClientErrorFromResponse to the returned response
// ensuring an HTTP status response outside the range [200, 400) is wrapped in
// an error relieving users from the need to check the status response.
//
// If a response is wrapped in an error this middleware will perform
// DrainAndClose on the response body after reading up to maxErrorReadAhead
// bytes into ClientError.AdditionalInfo. If maxErrorReadAhead is <= 0,
// DefaultMaxErrorReadAhead is used.
func ClientErrorWrapper(maxErrorReadAhead int) ClientMiddleware {
	if maxErrorReadAhead <= 0 {
		maxErrorReadAhead = DefaultMaxErrorReadAhead
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			err = ClientErrorFromResponse(resp)
			if err == nil {
				return resp, nil
			}

			defer DrainAndClose(resp.Body)
			var ce *ClientError
			if !errors.As(err, &ce) {
				return nil, err
			}
			body, e := io.ReadAll(io.LimitReader(resp.Body, int64(maxErrorReadAhead)))
			if e != nil {
				return nil, e
			}
			ce.AdditionalInfo = string(body)
			return nil, ce
		})
	}
}

// CircuitBreaker is a middleware that prevents sending requests that are
// likely to fail through a configurable failure ratio based on total failures
// and requests. The circuit breaker is applied on a per-host basis, e.g.
// failed requests are counted per host.
//
// Any HTTP 5xx response counts as a failure and is returned as *ClientError.
func CircuitBreaker(config breakerbp.Config) ClientMiddleware {
	var breakers sync.Map
	baseName := config.Name

	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			host := req.URL.Hostname()

			breaker, ok := breakers.Load(host)
			if !ok {
				cfg := config
				cfg.Name = baseName + "." + host
				breaker, _ = breakers.LoadOrStore(host, breakerbp.NewFailureRatioBreaker(cfg))
			}

			resp, err := breaker.(breakerbp.CircuitBreaker).Execute(func() (interface{}, error) {
				resp, err := next.RoundTrip(req)
				if err != nil {
					return nil, err
				}
				if resp.StatusCode >= http.StatusInternalServerError {
					ce := ClientErrorFromResponse(resp)
					// drain & close so the underlying http.Transport is able to
					// re-use the persistent TCP connection.
					DrainAndClose(resp.Body)
					return nil, ce
				}
				return resp, nil
			})
			if err != nil {
				return nil, err
			}
			return resp.(*http.Response), nil
		})
	}
}

// Retries provides a retry middleware by ensuring certain HTTP responses are
// wrapped in errors. Retries wraps the ClientErrorWrapper middleware, e.g. if
// you are using Retries there is no need to also use ClientErrorWrapper.
//
// Only use it for requests without a body, as the body can't be replayed.
func Retries(limit int, retryOptions ...retry.Option) ClientMiddleware {
	if len(retryOptions) == 0 {
		retryOptions = []retry.Option{retry.Attempts(1)}
	}
	return func(next http.RoundTripper) http.RoundTripper {
		wrapped := ClientErrorWrapper(limit)(next)
		return roundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			err = retrybp.Do(req.Context(), func() error {
				resp, err = wrapped.RoundTrip(req)
				return err
			}, retryOptions...)
			if err != nil {
				return nil, err
			}
			return resp, nil
		})
	}
}

// MaxConcurrency is a middleware to limit the number of concurrent in-flight
// requests at any given time by returning ErrConcurrencyLimit if the maximum
// is reached.
func MaxConcurrency(maxConcurrency int64) ClientMiddleware {
	var activeRequests int64
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			attemptedRequests := atomic.AddInt64(&activeRequests, 1)
			defer atomic.AddInt64(&activeRequests, -1)

			if maxConcurrency > 0 && attemptedRequests > maxConcurrency {
				return nil, ErrConcurrencyLimit
			}
			return next.RoundTrip(req)
		})
	}
}

// MonitorClient is an HTTP client middleware that reports the latency, the
// total count and the in-flight count of requests through prometheus, labeled
// with the given client slug.
//
// The latency covers the round trip up to the response headers.
func MonitorClient(slug string) ClientMiddleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			start := time.Now()
			method := req.Method
			endpoint := req.URL.Path

			active := clientActiveRequests.With(prometheus.Labels{
				methodLabel:     method,
				endpointLabel:   endpoint,
				clientNameLabel: slug,
			})
			active.Inc()
			defer func() {
				active.Dec()

				code := ""
				if resp != nil {
					code = strconv.Itoa(resp.StatusCode)
				} else {
					var ce *ClientError
					if errors.As(err, &ce) && ce.StatusCode != 0 {
						code = strconv.Itoa(ce.StatusCode)
					}
				}
				success := successValue(err == nil)

				clientLatencyDistribution.With(prometheus.Labels{
					methodLabel:     method,
					endpointLabel:   endpoint,
					successLabel:    success,
					clientNameLabel: slug,
				}).Observe(time.Since(start).Seconds())
				clientTotalRequests.With(prometheus.Labels{
					methodLabel:     method,
					endpointLabel:   endpoint,
					successLabel:    success,
					codeLabel:       code,
					clientNameLabel: slug,
				}).Inc()
			}()
			return next.RoundTrip(req)
		})
	}
}
