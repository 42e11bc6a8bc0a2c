package backendbp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/latencylab/latencysvc/backendbp"
	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/httpbp"
)

func newClient(t *testing.T, cfg backendbp.Config) *backendbp.Client {
	t.Helper()
	client, err := backendbp.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func configFor(url string) backendbp.Config {
	cfg := backendbp.DefaultConfig()
	cfg.URL = url
	return cfg
}

func TestCall(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	client := newClient(t, configFor(ts.URL))
	if err := client.Call(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := client.URL(); got != ts.URL {
		t.Errorf("expected URL %q, got %q", ts.URL, got)
	}
}

func TestCallStatus(t *testing.T) {
	t.Parallel()

	var calls int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	t.Run("ignored", func(t *testing.T) {
		if err := newClient(t, configFor(ts.URL)).Call(context.Background()); err != nil {
			t.Errorf("expected status to be ignored, got %v", err)
		}
	})

	t.Run("fail-on-status", func(t *testing.T) {
		cfg := configFor(ts.URL)
		cfg.FailOnStatus = true
		before := atomic.LoadInt64(&calls)

		err := newClient(t, cfg).Call(context.Background())
		var be *backendbp.Error
		if !errors.As(err, &be) {
			t.Fatalf("expected *backendbp.Error, got %v", err)
		}
		var ce *httpbp.ClientError
		if !errors.As(err, &ce) || ce.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected 503 *httpbp.ClientError, got %v", err)
		}
		if got := atomic.LoadInt64(&calls) - before; got != 1 {
			t.Errorf("expected exactly 1 attempt, got %d", got)
		}
	})
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	cfg := configFor(ts.URL)
	cfg.Timeout = 50 * time.Millisecond
	start := time.Now()
	err := newClient(t, cfg).Call(context.Background())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("call took %v, expected it to time out quickly", elapsed)
	}

	var be *backendbp.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *backendbp.Error, got %v", err)
	}
	if !be.Timeout() {
		t.Errorf("expected a timeout error, got %v", err)
	}
	if be.URL != ts.URL {
		t.Errorf("expected URL %q in error, got %q", ts.URL, be.URL)
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestCallConnectionRefused(t *testing.T) {
	t.Parallel()

	err := newClient(t, configFor("http://"+closedAddr(t)+"/")).Call(context.Background())
	var be *backendbp.Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *backendbp.Error, got %v", err)
	}
	if be.Timeout() {
		t.Errorf("connection refused should not be a timeout: %v", err)
	}
}

func TestCallContextCanceled(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newClient(t, configFor(ts.URL)).Call(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	for _, c := range []struct {
		name string
		cfg  backendbp.Config
		errs int
	}{
		{
			name: "default",
			cfg:  backendbp.DefaultConfig(),
		},
		{
			name: "empty",
			cfg:  backendbp.Config{},
			errs: 2,
		},
		{
			name: "bad-url",
			cfg: backendbp.Config{
				URL:       "http://[::1",
				Timeout:   time.Second,
				WaitDelay: -time.Second,
			},
			errs: 2,
		},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			err := c.cfg.Validate()
			if got := errorsbp.BatchSize(err); got != c.errs {
				t.Errorf("expected %d errors, got %d: %v", c.errs, got, err)
			}
			if c.errs > 0 {
				if _, err := backendbp.New(c.cfg); err == nil {
					t.Error("expected New to fail")
				}
			}
		})
	}
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	var calls int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer ts.Close()

	cfg := configFor(ts.URL)
	cfg.FailOnStatus = true
	client := newClient(t, cfg)

	if err := client.WaitReady(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("expected backend to become ready, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("expected 3 probes, got %d", got)
	}
}

func TestWaitReadyGivesUp(t *testing.T) {
	t.Parallel()

	client := newClient(t, configFor("http://"+closedAddr(t)+"/"))
	err := client.WaitReady(context.Background(), 3, time.Millisecond)
	if got := errorsbp.BatchSize(err); got != 3 {
		t.Errorf("expected 3 errors, got %d: %v", got, err)
	}
	var be *backendbp.Error
	if !errors.As(err, &be) {
		t.Errorf("expected *backendbp.Error in %v", err)
	}
}

func TestWaitReadySkipped(t *testing.T) {
	t.Parallel()

	client := newClient(t, configFor("http://"+closedAddr(t)+"/"))
	if err := client.WaitReady(context.Background(), 0, time.Millisecond); err != nil {
		t.Errorf("expected nil with 0 attempts, got %v", err)
	}
}
