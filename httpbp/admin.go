package httpbp

import (
	"context"
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/prometheusbp"
)

// DefaultAdminAddr is the default address of the admin server.
const DefaultAdminAddr = ":6060"

// AdminServerArgs contain optional configuration for the admin server.
type AdminServerArgs struct {
	// AdminAddr is a custom address for the admin server. Defaults to DefaultAdminAddr.
	AdminAddr string

	// HealthCheckFn is the HTTP handler for health check.
	// Defaults to always answering "ok".
	HealthCheckFn http.HandlerFunc

	// Gatherer is the source of /metrics. Defaults to prometheusbp.Registry.
	Gatherer prometheus.Gatherer
}

// AdminServer serves internal functionality:
//
//	metrics       - serve /metrics for prometheus
//	health check  - serve /health for health checking
//	profiling     - serve /debug/pprof for profiling, ref: https://pkg.go.dev/net/http/pprof
type AdminServer struct {
	srv *http.Server
}

// NewAdminServer returns a new admin server for internal functionality.
func NewAdminServer(args AdminServerArgs) *AdminServer {
	if args.AdminAddr == "" {
		args.AdminAddr = DefaultAdminAddr
	}
	if args.Gatherer == nil {
		args.Gatherer = prometheusbp.Registry
	}
	if args.HealthCheckFn == nil {
		args.HealthCheckFn = func(w http.ResponseWriter, r *http.Request) {
			WritePlainText(w, http.StatusOK, "ok")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(args.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", args.HealthCheckFn)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &AdminServer{
		srv: &http.Server{
			Addr:    args.AdminAddr,
			Handler: mux,
		},
	}
}

// Handler returns the admin mux.
func (s *AdminServer) Handler() http.Handler {
	return s.srv.Handler
}

// Serve starts a blocking HTTP server on the admin address.
//
// It returns nil after Close.
func (s *AdminServer) Serve() error {
	log.Infow("httpbp: serving admin", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts down the admin server.
func (s *AdminServer) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
