package batchcloser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/latencylab/latencysvc/errorsbp"
)

// CloseError wraps the error returned by one of the closers of a
// BatchCloser, keeping the name it was added with.
type CloseError struct {
	Name  string
	Cause error
}

func (err *CloseError) Error() string {
	return fmt.Sprintf("batchcloser: closing %s: %v", err.Name, err.Cause)
}

func (err *CloseError) Unwrap() error {
	return err.Cause
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// Wrap wraps a close function as an io.Closer.
func Wrap(close func() error) io.Closer {
	return closerFunc(close)
}

// WrapCancel wraps a context.CancelFunc as an io.Closer.
func WrapCancel(cancel context.CancelFunc) io.Closer {
	return closerFunc(func() error {
		cancel()
		return nil
	})
}

// WrapContext wraps a graceful close function as an io.Closer that gives it
// at most timeout to finish. timeout <= 0 means no limit.
//
// *httpbp.Server and *httpbp.AdminServer Close methods fit it.
func WrapContext(close func(ctx context.Context) error, timeout time.Duration) io.Closer {
	return closerFunc(func() error {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return close(ctx)
	})
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// BatchCloser closes every added io.Closer when closed, the last added first.
//
// The zero value is ready to use. It's not safe for concurrent use.
type BatchCloser struct {
	closers []namedCloser
}

// Add adds closer, identified by name in errors.
func (bc *BatchCloser) Add(name string, closer io.Closer) {
	bc.closers = append(bc.closers, namedCloser{name: name, closer: closer})
}

// Close closes every closer, even after some of them failed, and returns all
// failures as *CloseError in an errorsbp.Batch.
//
// The closers are dropped so a second Close is a no-op.
func (bc *BatchCloser) Close() error {
	var batch errorsbp.Batch
	for i := len(bc.closers) - 1; i >= 0; i-- {
		c := bc.closers[i]
		if err := c.closer.Close(); err != nil {
			batch.Add(&CloseError{Name: c.name, Cause: err})
		}
	}
	bc.closers = nil
	return batch.Compile()
}

var (
	_ error     = (*CloseError)(nil)
	_ io.Closer = closerFunc(nil)
	_ io.Closer = (*BatchCloser)(nil)
)
