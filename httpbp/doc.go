// Package httpbp provides the HTTP server and client building blocks used by
// latencysvc.
//
// Servers are built from Endpoints whose HandlerFuncs are wrapped in
// Middleware, and clients are standard *http.Client-s whose transports are
// wrapped in ClientMiddleware.
package httpbp
