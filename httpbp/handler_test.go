package httpbp_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/latencylab/latencysvc/httpbp"
)

func TestHandler(t *testing.T) {
	t.Parallel()

	for _, c := range []struct {
		name   string
		handle httpbp.HandlerFunc
		code   int
		body   string
	}{
		{
			name: "ok",
			handle: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return httpbp.WritePlainText(w, http.StatusOK, "hello")
			},
			code: http.StatusOK,
			body: "hello",
		},
		{
			name: "http-error",
			handle: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return httpbp.PlainTextError(http.StatusTeapot, "short and stout", errors.New("teapot"))
			},
			code: http.StatusTeapot,
			body: "short and stout",
		},
		{
			name: "wrapped-http-error",
			handle: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return fmt.Errorf("wrapped: %w", httpbp.PlainTextError(http.StatusBadGateway, "bad gateway", nil))
			},
			code: http.StatusBadGateway,
			body: "bad gateway",
		},
		{
			name: "generic-error",
			handle: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errors.New("boom")
			},
			code: http.StatusInternalServerError,
			body: http.StatusText(http.StatusInternalServerError) + "\n",
		},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			httpbp.NewHandler("test", c.handle).ServeHTTP(w, r)
			if w.Code != c.code {
				t.Errorf("expected code %d, got %d", c.code, w.Code)
			}
			if got := w.Body.String(); got != c.body {
				t.Errorf("expected body %q, got %q", c.body, got)
			}
		})
	}
}

func TestHTTPErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := httpbp.PlainTextError(http.StatusInternalServerError, "error", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected %v to wrap %v", err, cause)
	}
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func (w brokenWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func TestHandlerWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	var returned error
	httpbp.NewHandler("test", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		returned = httpbp.WritePlainText(w, http.StatusOK, "hello")
		return returned
	}).ServeHTTP(brokenWriter{rec}, httptest.NewRequest(http.MethodGet, "/", nil))

	var writeErr *httpbp.WriteError
	if !errors.As(returned, &writeErr) {
		t.Fatalf("expected *WriteError, got %v", returned)
	}
	// The status line was already sent, so no error response is written.
	if rec.Code != http.StatusOK {
		t.Errorf("expected code 200, got %d", rec.Code)
	}
}
