package latencysvc_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/latencylab/latencysvc"
	"github.com/latencylab/latencysvc/backendbp"
	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/histogrambp"
	"github.com/latencylab/latencysvc/httpbp"
	"github.com/latencylab/latencysvc/workbp"
)

type workerFunc func() (int64, error)

func (f workerFunc) Run() (int64, error) {
	return f()
}

type backendFunc func(ctx context.Context) error

func (f backendFunc) Call(ctx context.Context) error {
	return f(ctx)
}

func okBackend(context.Context) error {
	return nil
}

// stepClock returns start on its first call and start+step on every later
// call.
func stepClock(step time.Duration) func() time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int64
	return func() time.Time {
		if atomic.AddInt64(&calls, 1) == 1 {
			return start
		}
		return start.Add(step)
	}
}

func newTestService(t *testing.T, args latencysvc.Args) (*latencysvc.Service, *httptest.Server) {
	t.Helper()
	if args.Histogram == nil {
		args.Histogram = histogrambp.New(histogrambp.DefaultBuckets)
	}
	if args.Work == nil {
		args.Work = workbp.Default
	}
	if args.Backend == nil {
		args.Backend = backendFunc(okBackend)
	}
	svc, err := latencysvc.NewService(args)
	if err != nil {
		t.Fatal(err)
	}
	ts, err := httpbp.NewTestServer(httpbp.ServerArgs{
		Endpoints: svc.Endpoints(latencysvc.DefaultWorkers),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ts.Close)
	return svc, ts
}

func do(t *testing.T, method, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := latencysvc.NewService(latencysvc.Args{})
	if got := errorsbp.BatchSize(err); got != 3 {
		t.Errorf("expected 3 errors, got %d: %v", got, err)
	}
}

func TestHandleRootSuccess(t *testing.T) {
	t.Parallel()

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	var calls int64
	_, ts := newTestService(t, latencysvc.Args{
		Histogram: hist,
		Backend: backendFunc(func(ctx context.Context) error {
			atomic.AddInt64(&calls, 1)
			return nil
		}),
	})

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		for _, path := range []string{"/", "/anything/else"} {
			resp, body := do(t, method, ts.URL+path)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s %s: expected 200, got %d", method, path, resp.StatusCode)
			}
			if body != "ok (checksum: 0)" {
				t.Errorf("%s %s: unexpected body %q", method, path, body)
			}
			if resp.Header.Get(latencysvc.RequestIDHeader) == "" {
				t.Errorf("%s %s: missing %s header", method, path, latencysvc.RequestIDHeader)
			}
		}
	}
	if got := atomic.LoadInt64(&calls); got != 6 {
		t.Errorf("expected 6 backend calls, got %d", got)
	}
	if got := hist.Count(); got != 6 {
		t.Errorf("expected 6 observations, got %d", got)
	}
}

func TestHandleRootCustomMethod(t *testing.T) {
	t.Parallel()

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{Histogram: hist})

	resp, body := do(t, "PROPFIND", ts.URL)
	if resp.StatusCode != http.StatusOK || body != "ok (checksum: 0)" {
		t.Errorf("expected 200 %q, got %d %q", "ok (checksum: 0)", resp.StatusCode, body)
	}
	if got := hist.Count(); got != 1 {
		t.Errorf("expected exactly 1 observation, got %d", got)
	}
}

func TestHandleRootClientGoesAway(t *testing.T) {
	t.Parallel()

	const backendDelay = 300 * time.Millisecond
	backendErr := make(chan error, 1)
	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{
		Histogram: hist,
		Backend: backendFunc(func(ctx context.Context) error {
			timer := time.NewTimer(backendDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
				backendErr <- nil
			case <-ctx.Done():
				backendErr <- ctx.Err()
			}
			return nil
		}),
	})

	client := &http.Client{Timeout: 50 * time.Millisecond}
	if resp, err := client.Get(ts.URL); err == nil {
		resp.Body.Close()
		t.Fatal("expected the client to give up before the backend answered")
	}

	select {
	case err := <-backendErr:
		if err != nil {
			t.Errorf("expected the backend call to run to completion, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backend call never finished")
	}

	deadline := time.Now().Add(5 * time.Second)
	for hist.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hist.Count(); got != 1 {
		t.Fatalf("expected exactly 1 observation, got %d", got)
	}
	if got := hist.Sum(); got < backendDelay.Seconds() {
		t.Errorf("expected the observation to cover the backend call (>= %v), got %v", backendDelay.Seconds(), got)
	}
}

func TestHandleRootRequestID(t *testing.T) {
	t.Parallel()

	_, ts := newTestService(t, latencysvc.Args{})
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(latencysvc.RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(latencysvc.RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id %q echoed, got %q", "abc-123", got)
	}
}

func TestHandleRootFailures(t *testing.T) {
	t.Parallel()

	for _, c := range []struct {
		name        string
		work        workerFunc
		backend     backendFunc
		bodyPrefix  string
		backendCall bool
	}{
		{
			name: "work-error",
			work: func() (int64, error) {
				return 0, errors.New("out of memory")
			},
			bodyPrefix: "error: out of memory",
		},
		{
			name: "work-panic",
			work: func() (int64, error) {
				panic("boom")
			},
			bodyPrefix: "error: panic in SIMULATING: boom",
		},
		{
			name: "backend-error",
			backend: func(context.Context) error {
				return errors.New("connection refused")
			},
			bodyPrefix:  "error: connection refused",
			backendCall: true,
		},
		{
			name: "backend-panic",
			backend: func(context.Context) error {
				panic("kaboom")
			},
			bodyPrefix:  "error: panic in CALLING_BACKEND: kaboom",
			backendCall: true,
		},
	} {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			var called int64
			work := c.work
			if work == nil {
				work = func() (int64, error) { return 42, nil }
			}
			backend := c.backend
			if backend == nil {
				backend = okBackend
			}
			hist := histogrambp.New(histogrambp.DefaultBuckets)
			_, ts := newTestService(t, latencysvc.Args{
				Histogram: hist,
				Work:      work,
				Backend: backendFunc(func(ctx context.Context) error {
					atomic.AddInt64(&called, 1)
					return backend(ctx)
				}),
			})

			resp, body := do(t, http.MethodGet, ts.URL)
			if resp.StatusCode != http.StatusInternalServerError {
				t.Errorf("expected 500, got %d", resp.StatusCode)
			}
			if !strings.HasPrefix(body, c.bodyPrefix) {
				t.Errorf("expected body to start with %q, got %q", c.bodyPrefix, body)
			}
			if got := atomic.LoadInt64(&called) > 0; got != c.backendCall {
				t.Errorf("backend called: expected %v, got %v", c.backendCall, got)
			}
			if got := hist.Count(); got != 1 {
				t.Errorf("expected exactly 1 observation, got %d", got)
			}
		})
	}
}

func TestHandleRootBackendTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	client := backendbp.NewWithHTTPClient(backend.URL, &http.Client{Timeout: 50 * time.Millisecond})
	_, ts := newTestService(t, latencysvc.Args{
		Histogram: hist,
		Backend:   client,
	})

	resp, body := do(t, http.MethodGet, ts.URL)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "error") {
		t.Errorf("expected an error body, got %q", body)
	}
	if got := hist.Count(); got != 1 {
		t.Errorf("expected exactly 1 observation, got %d", got)
	}
	if got := hist.Sum(); got < 0.05 {
		t.Errorf("expected the observation to include the timeout, got %v", got)
	}
}

func TestHandleRootRecordsElapsed(t *testing.T) {
	t.Parallel()

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{
		Histogram: hist,
		Clock:     stepClock(90 * time.Millisecond),
	})
	do(t, http.MethodGet, ts.URL)

	_, body := do(t, http.MethodGet, ts.URL+"/metrics")
	for _, line := range []string{
		`http_request_duration_seconds_bucket{le="0.085"} 0`,
		`http_request_duration_seconds_bucket{le="0.090"} 1`,
		`http_request_duration_seconds_bucket{le="+Inf"} 1`,
		`http_request_duration_seconds_sum 0.090000`,
		`http_request_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("expected line %q in:\n%s", line, body)
		}
	}
}

func TestHandleRootConcurrent(t *testing.T) {
	t.Parallel()

	const requests = 50
	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{Histogram: hist})

	var wg sync.WaitGroup
	var failures int64
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL)
			if err != nil {
				atomic.AddInt64(&failures, 1)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&failures); got != 0 {
		t.Errorf("expected no failures, got %d", got)
	}
	if got := hist.Count(); got != requests {
		t.Errorf("expected %d observations, got %d", requests, got)
	}
}

func TestHandleMetrics(t *testing.T) {
	t.Parallel()

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{Histogram: hist})

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != histogrambp.TextContentType {
		t.Errorf("expected content type %q, got %q", histogrambp.TextContentType, got)
	}
	if !strings.HasSuffix(body, "http_request_duration_seconds_count 0\n") {
		t.Errorf("unexpected body:\n%s", body)
	}
	if hist.Count() != 0 {
		t.Errorf("metrics requests must not be recorded, got %d", hist.Count())
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /metrics: expected 405, got %d", resp.StatusCode)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	hist := histogrambp.New(histogrambp.DefaultBuckets)
	_, ts := newTestService(t, latencysvc.Args{
		Histogram: hist,
		Backend: backendFunc(func(context.Context) error {
			return errors.New("backend down")
		}),
	})

	resp, body := do(t, http.MethodGet, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Errorf("expected 200 %q, got %d %q", "ok", resp.StatusCode, body)
	}
	if hist.Count() != 0 {
		t.Errorf("health requests must not be recorded, got %d", hist.Count())
	}
}

func TestStageString(t *testing.T) {
	t.Parallel()

	for stage, expected := range map[latencysvc.Stage]string{
		latencysvc.StageStart:           "START",
		latencysvc.StageSimulating:      "SIMULATING",
		latencysvc.StageCallingBackend:  "CALLING_BACKEND",
		latencysvc.StageResponding:      "RESPONDING",
		latencysvc.StageErrorResponding: "ERROR_RESPONDING",
		latencysvc.StageRecorded:        "RECORDED",
		latencysvc.Stage(-1):            "UNKNOWN",
		latencysvc.Stage(100):           "UNKNOWN",
	} {
		if got := stage.String(); got != expected {
			t.Errorf("Stage(%d): expected %q, got %q", int(stage), expected, got)
		}
	}
}
