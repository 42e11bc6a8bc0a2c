package httpbp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/latencylab/latencysvc/errorsbp"
)

// RetryAfterHeader is the standard "Retry-After" header key defined in RFC2616.
//
// https://www.w3.org/Protocols/rfc2616/rfc2616-sec14.html
const RetryAfterHeader = "Retry-After"

// Well-known errors for middleware layer.
var (
	// ErrConcurrencyLimit is returned by the max concurrency middleware if
	// there are too many requests in-flight.
	ErrConcurrencyLimit = errors.New("httpbp: hit concurrency limit")
)

// ClientConfig errors are returned if the configuration validation fails.
var (
	ErrConfigMissingSlug              = errors.New("httpbp: slug cannot be empty")
	ErrConfigInvalidMaxErrorReadAhead = errors.New("httpbp: maxErrorReadAhead value needs to be non-negative")
	ErrConfigInvalidMaxConnections    = errors.New("httpbp: maxConnections value needs to be non-negative")
	ErrConfigInvalidMaxConcurrency    = errors.New("httpbp: maxConcurrency value needs to be non-negative")
	ErrConfigInvalidTimeout           = errors.New("httpbp: timeout value needs to be non-negative")
)

// WriteError is returned when writing the response to the client failed.
//
// The response may be partially written, so the handler only logs it.
type WriteError struct {
	Cause error
}

func (e *WriteError) Error() string {
	return "httpbp: writing response: " + e.Cause.Error()
}

// Unwrap returns the underlying transport error.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// HTTPError is an error that can be returned by a HandlerFunc to write a
// customized plain text error response.
type HTTPError interface {
	error

	// Code is the HTTP status code of the error response.
	Code() int

	// Body is the plain text body of the error response.
	Body() string

	// Unwrap returns the internal error that triggered the HTTPError.
	Unwrap() error
}

// PlainTextError returns an HTTPError writing body with the given status code.
func PlainTextError(code int, body string, cause error) HTTPError {
	return httpError{
		code:  code,
		body:  body,
		cause: cause,
	}
}

type httpError struct {
	code  int
	body  string
	cause error
}

func (e httpError) Code() int {
	return e.code
}

func (e httpError) Body() string {
	return e.body
}

func (e httpError) Error() string {
	return fmt.Sprintf(
		"httpbp: http error with code %d and cause %v",
		e.code,
		e.cause,
	)
}

func (e httpError) Unwrap() error {
	return e.cause
}

// ClientError defines the client side error constructed from an HTTP response.
//
// Please see ClientErrorFromResponse for more details.
type ClientError struct {
	Status     string
	StatusCode int
	RetryAfter time.Duration

	AdditionalInfo string
}

func (ce ClientError) Error() string {
	var sb strings.Builder
	sb.WriteString("httpbp.ClientError: ")
	if ce.Status == "" {
		sb.WriteString("nil response")
	} else {
		sb.WriteString("http status ")
		sb.WriteString(ce.Status)
	}
	if ce.AdditionalInfo != "" {
		sb.WriteString(": ")
		sb.WriteString(ce.AdditionalInfo)
	}
	return sb.String()
}

// RetryAfterDuration implements retrybp.RetryAfterError.
func (ce ClientError) RetryAfterDuration() time.Duration {
	return ce.RetryAfter
}

// Retryable implements retrybp.RetryableError.
//
// It returns true (1) when the response carried a valid Retry-After header or
// the status code was one of 425, 429 or 503, and no decision (0) otherwise.
func (ce ClientError) Retryable() int {
	if ce.StatusCode == 0 {
		return 0
	}
	if ce.RetryAfter > 0 {
		return 1
	}

	switch ce.StatusCode {
	case
		http.StatusTooEarly,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable:
		return 1
	}
	return 0
}

// ClientErrorFromResponse creates ClientError from http response.
//
// It returns nil error when the response code are in range of [200, 400),
// or non-nil error otherwise (including response being nil).
// When the returned error is non-nil,
// it's guaranteed to be of type *ClientError.
//
// It does not read from resp.Body in any case.
// It's always the caller's responsibility to read and close the body so that
// the HTTP connection can be reused with keep-alive.
func ClientErrorFromResponse(resp *http.Response) error {
	if resp == nil {
		return &ClientError{}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	ce := &ClientError{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
	}
	if retryAfter := strings.TrimSpace(resp.Header.Get(RetryAfterHeader)); retryAfter != "" {
		// Retry-After header could be either an absolute time or a relative time.
		if t, err := http.ParseTime(retryAfter); err == nil {
			ce.RetryAfter = time.Until(t)
		} else if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil {
			ce.RetryAfter = time.Duration(seconds * float64(time.Second))
		}
	}
	return ce
}

// DrainAndClose reads r fully then closes it.
//
// It's required for http response bodies by stdlib http clients to reuse
// keep-alive connections, so you should always defer it after checking error.
func DrainAndClose(r io.ReadCloser) error {
	var batch errorsbp.Batch
	_, err := io.Copy(io.Discard, r)
	batch.Add(err)
	batch.Add(r.Close())
	return batch.Compile()
}
