package httpbp

import (
	"net/http"
)

// PlainTextContentType is the Content-Type header for plain text responses.
const PlainTextContentType = "text/plain; charset=utf-8"

// ContentTypeHeader is the "Content-Type" header.
const ContentTypeHeader = "Content-Type"

// WritePlainText writes body to w with the given status code and
// PlainTextContentType.
//
// Any error returned is a *WriteError and the response may be partially
// written.
func WritePlainText(w http.ResponseWriter, code int, body string) error {
	return WriteRaw(w, code, PlainTextContentType, body)
}

// WriteRaw writes body to w with the given status code and content type.
func WriteRaw(w http.ResponseWriter, code int, contentType string, body string) error {
	w.Header().Set(ContentTypeHeader, contentType)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body)); err != nil {
		return &WriteError{Cause: err}
	}
	return nil
}
