package httpbp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/latencylab/latencysvc/log"
)

// AllowHeader is the "Allow" header. This should be set when returning a
// 405 - Method Not Allowed error.
const AllowHeader = "Allow"

// Middleware wraps the given HandlerFunc and returns a new, wrapped, HandlerFunc.
type Middleware func(name string, next HandlerFunc) HandlerFunc

// Wrap wraps the given HandlerFunc with the given Middlewares and returns the
// wrapped HandlerFunc passing the given name to each middleware in the chain.
//
// Middlewares will be called in the order that they are defined:
//
//	1. Middlewares[0]
//	2. Middlewares[1]
//	...
//	N. Middlewares[n]
func Wrap(name string, handle HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handle = middlewares[i](name, handle)
	}
	return handle
}

// DefaultMiddleware returns a slice of all the default Middleware for a server.
func DefaultMiddleware() []Middleware {
	return []Middleware{
		MonitorServer,
		RecoverPanic,
	}
}

// SupportedMethods returns a middleware that checks if the request is made
// using one of the given HTTP methods.
//
// Returns a plain text 405 error response if the method is not supported.
// If GET is supported, HEAD will be automatically supported as well.
// Sets the "Allow" header automatically to the methods given.
func SupportedMethods(method string, additional ...string) Middleware {
	supported := make(map[string]bool, len(additional)+1)
	supported[strings.ToUpper(method)] = true
	for _, m := range additional {
		supported[strings.ToUpper(m)] = true
	}
	if supported[http.MethodGet] {
		supported[http.MethodHead] = true
	}

	allowed := make([]string, 0, len(supported))
	for m := range supported {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allowedHeader := strings.Join(allowed, ",")

	return func(name string, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !supported[r.Method] {
				w.Header().Set(AllowHeader, allowedHeader)
				return PlainTextError(
					http.StatusMethodNotAllowed,
					http.StatusText(http.StatusMethodNotAllowed),
					fmt.Errorf("method %q is not supported by %q", r.Method, name),
				)
			}
			return next(ctx, w, r)
		}
	}
}

// MonitorServer is a middleware that reports the latency, the total count
// and the in-flight count of requests through prometheus.
//
// A request is successful when the handler returned no error and the response
// code is below 500.
func MonitorServer(name string, next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
		start := time.Now()
		method := r.Method
		active := serverActiveRequests.With(prometheus.Labels{
			methodLabel:   method,
			endpointLabel: name,
		})
		active.Inc()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			active.Dec()

			code := rec.statusCode()
			var httpErr HTTPError
			if errors.As(err, &httpErr) {
				code = httpErr.Code()
			} else if err != nil && !rec.wroteHeader {
				code = http.StatusInternalServerError
			}
			success := successValue(code < http.StatusInternalServerError)

			serverLatency.With(prometheus.Labels{
				methodLabel:   method,
				successLabel:  success,
				endpointLabel: name,
			}).Observe(time.Since(start).Seconds())
			serverTotalRequests.With(prometheus.Labels{
				methodLabel:   method,
				successLabel:  success,
				codeLabel:     strconv.Itoa(code),
				endpointLabel: name,
			}).Inc()
		}()

		return next(ctx, wrapResponseWriter(w, rec), r)
	}
}

// PanicError is returned by RecoverPanic when the wrapped handler panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("httpbp: recovered from panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RecoverPanic recovers from panics in the wrapped handler and returns them
// as *PanicError, which results in a 500 response.
func RecoverPanic(name string, next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
		defer func() {
			if rErr := recover(); rErr != nil {
				if rErr == http.ErrAbortHandler {
					panic(rErr)
				}
				panicRecoverCounter.With(prometheus.Labels{
					methodLabel: r.Method,
				}).Inc()
				pe := &PanicError{Value: rErr, Stack: debug.Stack()}
				log.C(ctx).Errorw(
					"httpbp: recovered from panic",
					"endpoint", name,
					"err", pe,
					"stack", string(pe.Stack),
				)
				err = pe
			}
		}()
		return next(ctx, w, r)
	}
}

// MaxConcurrentRequests returns a middleware that lets at most n requests run
// the wrapped handler at the same time.
//
// The remaining requests wait, without bound, for a free worker in the order
// the semaphore grants them. A request whose context is cancelled while
// waiting returns the context error without calling the handler.
//
// The number of busy workers and waiting requests are reported as
// httpbp_server_worker_pool_busy and httpbp_server_worker_pool_queued gauges,
// together with their high watermarks.
//
// It panics when n is not positive.
func MaxConcurrentRequests(n int64) Middleware {
	if n <= 0 {
		panic(fmt.Sprintf("httpbp: MaxConcurrentRequests needs a positive limit, got %d", n))
	}
	return func(name string, next HandlerFunc) HandlerFunc {
		sem := semaphore.NewWeighted(n)
		busy, queued := workerPoolGauges(name)
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			queued.Inc()
			err := sem.Acquire(ctx, 1)
			queued.Dec()
			if err != nil {
				return fmt.Errorf("httpbp: waiting for a worker on %q: %w", name, err)
			}
			defer sem.Release(1)

			busy.Inc()
			defer busy.Dec()
			return next(ctx, w, r)
		}
	}
}
