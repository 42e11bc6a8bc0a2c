package latencysvc

import (
	"context"
	"os"
	"time"

	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/runtimebp"
)

// Server is a server that Serve can run.
//
// *httpbp.Server implements it.
type Server interface {
	// ListenAndServe serves until Close is called, returning nil in that case.
	ListenAndServe() error

	// Close shuts the server down gracefully, giving up when ctx is done.
	Close(ctx context.Context) error
}

// Serve runs server until ctx is done or the process receives SIGTERM or
// SIGINT, then closes it gracefully within stopTimeout (unbounded when 0).
//
// It returns the error from serving or closing. An error from serving before
// any shutdown is returned immediately.
func Serve(ctx context.Context, server Server, stopTimeout time.Duration) error {
	served := make(chan error, 1)
	go func() {
		served <- server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signalCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runtimebp.HandleShutdown(signalCtx, func(s os.Signal) {
		signals <- s
	})

	select {
	case err := <-served:
		return err
	case s := <-signals:
		log.Infow("latencysvc: graceful shutdown", "signal", s)
	case <-ctx.Done():
		log.Infow("latencysvc: graceful shutdown", "err", ctx.Err())
	}

	closeCtx := context.Background()
	if stopTimeout > 0 {
		var cancel context.CancelFunc
		closeCtx, cancel = context.WithTimeout(closeCtx, stopTimeout)
		defer cancel()
	}

	var batch errorsbp.Batch
	batch.AddPrefix("close", server.Close(closeCtx))
	batch.AddPrefix("serve", <-served)
	err := batch.Compile()
	log.Infow("latencysvc: server stopped", "err", err)
	return err
}
