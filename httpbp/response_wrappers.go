package httpbp

import (
	"net/http"
)

// statusRecorder remembers the status code and body size written through it.
type statusRecorder struct {
	http.ResponseWriter

	code        int
	wroteHeader bool
	written     int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.code = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.written += int64(n)
	return n, err
}

// statusCode returns the status code sent to the client, which is 200 when
// nothing was written.
func (r *statusRecorder) statusCode() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.code
}

// wrapResponseWriter returns rec as an http.ResponseWriter that still
// implements http.Flusher when orig does.
func wrapResponseWriter(orig http.ResponseWriter, rec *statusRecorder) http.ResponseWriter {
	if fl, ok := orig.(http.Flusher); ok {
		return struct {
			http.ResponseWriter
			http.Flusher
		}{rec, fl}
	}
	return rec
}
