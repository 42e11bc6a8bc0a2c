package latencysvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid"

	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/histogrambp"
	"github.com/latencylab/latencysvc/httpbp"
	"github.com/latencylab/latencysvc/log"
)

// RequestIDHeader carries the request ID. It's read from the request when
// present and always set on the response.
const RequestIDHeader = "X-Request-Id"

// Worker performs the simulated work of a request and returns its checksum.
//
// workbp.Simulator implements it.
type Worker interface {
	Run() (checksum int64, err error)
}

// Backend is the downstream dependency called once per request.
//
// *backendbp.Client implements it.
type Backend interface {
	Call(ctx context.Context) error
}

// Args are the dependencies of a Service.
type Args struct {
	// Histogram records the duration of every request to "/". Required.
	Histogram *histogrambp.Histogram

	// Work is run first by every request. Required.
	Work Worker

	// Backend is called after Work succeeded. Required.
	Backend Backend

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Service serves the benchmark endpoints.
type Service struct {
	histogram *histogrambp.Histogram
	work      Worker
	backend   Backend
	now       func() time.Time
}

// NewService creates a Service from args.
func NewService(args Args) (*Service, error) {
	var batch errorsbp.Batch
	if args.Histogram == nil {
		batch.Add(errors.New("latencysvc: Args.Histogram must be non-nil"))
	}
	if args.Work == nil {
		batch.Add(errors.New("latencysvc: Args.Work must be non-nil"))
	}
	if args.Backend == nil {
		batch.Add(errors.New("latencysvc: Args.Backend must be non-nil"))
	}
	if err := batch.Compile(); err != nil {
		return nil, err
	}
	if args.Clock == nil {
		args.Clock = time.Now
	}
	return &Service{
		histogram: args.Histogram,
		work:      args.Work,
		backend:   args.Backend,
		now:       args.Clock,
	}, nil
}

// Endpoints returns the endpoints of the service.
//
// "/" accepts any method and any path not matched by the other endpoints,
// and runs on a pool of at most workers concurrent requests.
func (s *Service) Endpoints(workers int64) map[httpbp.Pattern]httpbp.Endpoint {
	return map[httpbp.Pattern]httpbp.Endpoint{
		"/": {
			Name:    "root",
			Methods: []string{httpbp.AnyMethod},
			Handle:  s.HandleRoot,
			Middlewares: []httpbp.Middleware{
				httpbp.MaxConcurrentRequests(workers),
			},
		},
		"/metrics": {
			Name:    "metrics",
			Methods: []string{http.MethodGet},
			Handle:  s.HandleMetrics,
		},
		"/health": {
			Name:    "health",
			Methods: []string{http.MethodGet},
			Handle:  s.HandleHealth,
		},
	}
}

// HandleRoot runs the request pipeline.
//
// It simulates the work, calls the backend, and responds with 200
// "ok (checksum: N)", or 500 "error: <message>" when either step failed or
// panicked. The duration from the start of the request until the response
// write returned is recorded exactly once, whatever the outcome.
func (s *Service) HandleRoot(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
	start := s.now()
	stage := StageStart

	requestID := requestIDFrom(r)
	w.Header().Set(RequestIDHeader, requestID)
	ctx = log.Attach(ctx, log.AttachArgs{RequestID: requestID})

	defer func() {
		if rec := recover(); rec != nil {
			failed := stage
			panicErr := fmt.Errorf("panic in %v: %v", failed, rec)
			log.ErrorWithSentry(ctx, "latencysvc: recovered from panic", panicErr, "stage", failed.String())
			switch failed {
			case StageSimulating, StageCallingBackend:
				stage = StageErrorResponding
				err = respondError(w, panicErr)
			default:
				// The response may already be on the wire.
				err = panicErr
			}
		}

		elapsed := s.now().Sub(start)
		s.histogram.Observe(elapsed.Seconds())
		log.C(ctx).Debugw(
			"latencysvc: "+StageRecorded.String(),
			"from", stage.String(),
			"duration", elapsed,
		)
	}()

	stage = StageSimulating
	checksum, err := s.work.Run()
	if err == nil {
		stage = StageCallingBackend
		// A client going away must not cut the backend call short.
		err = s.backend.Call(context.WithoutCancel(ctx))
	}
	if err != nil {
		log.ErrorWithSentry(ctx, "latencysvc: request failed", err, "stage", stage.String())
		stage = StageErrorResponding
		return respondError(w, err)
	}

	stage = StageResponding
	return httpbp.WritePlainText(w, http.StatusOK, "ok (checksum: "+strconv.FormatInt(checksum, 10)+")")
}

func respondError(w http.ResponseWriter, err error) error {
	return httpbp.WritePlainText(w, http.StatusInternalServerError, "error: "+err.Error())
}

// requestIDFrom returns the request ID sent by the client or a new random
// one.
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}

// HandleMetrics writes the histogram in the Prometheus text format.
func (s *Service) HandleMetrics(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set(httpbp.ContentTypeHeader, histogrambp.TextContentType)
	w.WriteHeader(http.StatusOK)
	if err := histogrambp.WriteText(w, s.histogram.Name(), s.histogram.Snapshot()); err != nil {
		return &httpbp.WriteError{Cause: err}
	}
	return nil
}

// HandleHealth always answers "ok".
func (s *Service) HandleHealth(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return httpbp.WritePlainText(w, http.StatusOK, "ok")
}
