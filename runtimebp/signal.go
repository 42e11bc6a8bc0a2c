package runtimebp

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownHandler is the callback type used in HandleShutdown.
type ShutdownHandler func(signal os.Signal)

var defaultSignals = []os.Signal{
	// For ^C
	os.Interrupt,
	// Ref: https://kubernetes.io/docs/concepts/workloads/pods/pod/#termination-of-pods
	syscall.SIGTERM,
}

// HandleShutdown registers a handler to do cleanups for a graceful shutdown.
//
// This function blocks until the ctx passed in is cancelled,
// or a signal happens, whichever comes first.
// So it should usually be started in its own goroutine.
//
// SIGTERM and os.Interrupt are always registered,
// the signals vararg is for any additional signals you wish to handle.
// The handler is not called when ctx is cancelled first.
func HandleShutdown(ctx context.Context, handler ShutdownHandler, signals ...os.Signal) {
	sig := make([]os.Signal, 0, len(defaultSignals)+len(signals))
	sig = append(sig, defaultSignals...)
	sig = append(sig, signals...)
	c := make(chan os.Signal, 1)
	signal.Notify(c, sig...)
	defer signal.Stop(c)

	select {
	case s := <-c:
		handler(s)
	case <-ctx.Done():
	}
}
