package httpbp

import (
	"context"
	"errors"
	"net/http"

	"github.com/latencylab/latencysvc/log"
)

// HandlerFunc handles a single HTTP request and can be wrapped in Middleware.
//
// The context is extracted from the http.Request and should be used rather
// than the context in http.Request, as middlewares may have enriched it.
//
// If a HandlerFunc returns an error, the http.Handler returned by NewHandler
// will attempt to write an error response, so you should generally avoid
// writing your response until the end of your handler call. If you return an
// HTTPError, it will be used to write a custom plain text error response,
// otherwise a generic http.StatusInternalServerError (500) is written.
type HandlerFunc func(context.Context, http.ResponseWriter, *http.Request) error

type handler struct {
	handle HandlerFunc
}

func (h handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.handle(ctx, w, r)
	if err == nil {
		return
	}

	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		log.C(ctx).Warnw("httpbp: failed to write response", "err", err)
		return
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code() >= http.StatusInternalServerError {
			log.C(ctx).Errorw("httpbp: handler returned server error", "err", err)
		}
		if werr := WritePlainText(w, httpErr.Code(), httpErr.Body()); werr != nil {
			log.C(ctx).Warnw("httpbp: failed to write error response", "err", werr)
		}
		return
	}

	log.C(ctx).Errorw("httpbp: unhandled server error", "err", err)
	code := http.StatusInternalServerError
	http.Error(w, http.StatusText(code), code)
}

var (
	_ http.Handler = handler{}
	_ http.Handler = (*handler)(nil)
)

// NewHandler returns a new http.Handler with the given HandlerFunc wrapped with
// the given Middleware. The given "name" will be passed to all of the
// middlewares.
//
// Most services should use NewServer to create an entire Server with all of
// its handlers instead. NewHandler is provided for testing purposes.
func NewHandler(name string, handle HandlerFunc, middlewares ...Middleware) http.Handler {
	return handler{handle: Wrap(name, handle, middlewares...)}
}
