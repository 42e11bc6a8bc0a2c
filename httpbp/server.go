package httpbp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"time"

	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/log"
)

var allHTTPMethods = map[string]bool{
	http.MethodConnect: true,
	http.MethodDelete:  true,
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPatch:   true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodTrace:   true,
}

// AnyMethod as the only entry of Endpoint.Methods accepts every request
// method, including non-standard ones like PROPFIND.
const AnyMethod = "*"

// AllMethods returns every standard HTTP method an Endpoint can support,
// sorted.
func AllMethods() []string {
	methods := make([]string, 0, len(allHTTPMethods))
	for m := range allHTTPMethods {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// EndpointRegistry is the minimal interface needed by a Server for the
// underlying HTTP routing.
//
// *http.ServeMux implements this interface and is the default EndpointRegistry
// used by NewServer.
type EndpointRegistry interface {
	http.Handler

	Handle(pattern string, handler http.Handler)
}

var (
	_ EndpointRegistry = (*http.ServeMux)(nil)
)

type httpHandlerFactory struct {
	middlewares []Middleware
}

func (f httpHandlerFactory) NewHandler(endpoint Endpoint) http.Handler {
	wrappers := make([]Middleware, 0, len(f.middlewares)+len(endpoint.Middlewares)+1)
	if !endpoint.anyMethod() {
		wrappers = append(wrappers, SupportedMethods(endpoint.Methods[0], endpoint.Methods[1:]...))
	}
	wrappers = append(wrappers, f.middlewares...)
	wrappers = append(wrappers, endpoint.Middlewares...)
	return NewHandler(endpoint.Name, endpoint.Handle, wrappers...)
}

// Pattern is the pattern passed to a EndpointRegistry when registering an
// Endpoint.
type Pattern string

// Endpoint holds the values needed to create a new HandlerFunc.
type Endpoint struct {
	// Name is required, it is the "name" of the endpoint that will be passed
	// to any Middleware wrapping the HandlerFunc.
	Name string

	// Methods is the list of HTTP methods that the endpoint supports. Methods
	// must have at least one entry and all entries must be valid HTTP methods
	// in upper case. Use AllMethods to accept the standard methods, or
	// []string{AnyMethod} to skip the method check entirely.
	//
	// If you add http.MethodGet, http.MethodHead will be supported automatically.
	Methods []string

	// Handle is required, it is the base HandlerFunc that will be wrapped
	// by any Middleware.
	Handle HandlerFunc

	// Middlewares is an optional list of additional Middleware to wrap the
	// given HandlerFunc. They run inside the server wide middlewares.
	Middlewares []Middleware
}

// Validate checks for input errors on the Endpoint and returns an error
// if any exist.
func (e Endpoint) Validate() error {
	var err errorsbp.Batch
	if e.Name == "" {
		err.Add(errors.New("httpbp: Endpoint.Name must be non-empty"))
	}
	if e.Handle == nil {
		err.Add(errors.New("httpbp: Endpoint.Handle must be non-nil"))
	}
	if len(e.Methods) == 0 {
		err.Add(errors.New("httpbp: Endpoint.Methods must be non-empty"))
	} else if !e.anyMethod() {
		for _, method := range e.Methods {
			if !allHTTPMethods[method] {
				err.Add(fmt.Errorf("httpbp: Endpoint.Methods contains an invalid value: %q", method))
			}
		}
	}
	return err.Compile()
}

func (e Endpoint) anyMethod() bool {
	return len(e.Methods) == 1 && e.Methods[0] == AnyMethod
}

// ServerArgs defines all of the arguments used to create a new HTTP server.
type ServerArgs struct {
	// Addr is the address to listen on, e.g. ":8080".
	Addr string

	// Endpoints is the mapping of endpoint patterns to Endpoint objects that
	// the Server will handle.
	Endpoints map[Pattern]Endpoint

	// EndpointRegistry is an optional argument that can be used to customize
	// the EndpointRegistry used by the server.
	//
	// Defaults to a new *http.ServeMux.
	EndpointRegistry EndpointRegistry

	// Middlewares is optional, additional Middleware that will wrap every
	// Endpoint after the DefaultMiddleware.
	Middlewares []Middleware

	// ReadTimeout and WriteTimeout are passed to http.Server.
	// 0 means no timeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OnShutdown is an optional list of functions that are run when the
	// server is shutting down.
	OnShutdown []func()
}

// ValidateAndSetDefaults checks the ServerArgs for any errors and sets any
// default values.
func (args ServerArgs) ValidateAndSetDefaults() (ServerArgs, error) {
	var inputErrors errorsbp.Batch
	for pattern, endpoint := range args.Endpoints {
		inputErrors.AddPrefix(string(pattern), endpoint.Validate())
	}
	if args.EndpointRegistry == nil {
		args.EndpointRegistry = http.NewServeMux()
	}
	return args, inputErrors.Compile()
}

// SetupEndpoints calls ValidateAndSetDefaults and registers the Endpoints
// in args to the EndpointRegistry in args and returns the fully setup
// ServerArgs.
func (args ServerArgs) SetupEndpoints() (ServerArgs, error) {
	args, err := args.ValidateAndSetDefaults()
	if err != nil {
		return args, err
	}

	wrappers := DefaultMiddleware()
	wrappers = append(wrappers, args.Middlewares...)

	factory := httpHandlerFactory{middlewares: wrappers}
	for pattern, endpoint := range args.Endpoints {
		args.EndpointRegistry.Handle(string(pattern), factory.NewHandler(endpoint))
	}
	return args, nil
}

// Server is an HTTP server serving Endpoints.
type Server struct {
	srv *http.Server
}

// NewServer returns a new HTTP server with the given ServerArgs.
//
// The Endpoints given in the ServerArgs will be wrapped using the
// DefaultMiddleware as well as any additional Middleware passed in.
func NewServer(args ServerArgs) (*Server, error) {
	args, err := args.SetupEndpoints()
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         args.Addr,
		Handler:      args.EndpointRegistry,
		ReadTimeout:  args.ReadTimeout,
		WriteTimeout: args.WriteTimeout,
	}
	for _, f := range args.OnShutdown {
		srv.RegisterOnShutdown(f)
	}
	return &Server{srv: srv}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Handler returns the root http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe listens on the configured address and serves until the
// server is closed.
//
// It returns nil after Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until the server is closed.
//
// It returns nil after Close.
func (s *Server) Serve(ln net.Listener) error {
	log.Infow("httpbp: serving", "addr", ln.Addr().String())
	// Serve always returns a non-nil error, http.ErrServerClosed is the
	// "expected" error for it to return after being shutdown.
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close gracefully shuts down the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// NewTestServer returns an httptest.Server serving the Endpoints in args the
// same way NewServer would.
//
// The returned server is already started and should be closed by the caller.
func NewTestServer(args ServerArgs) (*httptest.Server, error) {
	args, err := args.SetupEndpoints()
	if err != nil {
		return nil, err
	}
	ts := httptest.NewServer(args.EndpointRegistry)
	for _, f := range args.OnShutdown {
		ts.Config.RegisterOnShutdown(f)
	}
	return ts, nil
}
