// Package breakerbp provides a failure ratio circuit breaker on top of
// github.com/sony/gobreaker, reporting its state through prometheus.
package breakerbp

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/prometheusbp"
	"github.com/latencylab/latencysvc/randbp"
)

const (
	nameLabel = "breaker"
)

var (
	breakerLabels = []string{
		nameLabel,
	}

	breakerClosed = promauto.With(prometheusbp.Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "breakerbp_closed",
		Help: "0 means the breaker is currently tripped, 1 otherwise (closed)",
	}, breakerLabels)

	breakerTimeout = promauto.With(prometheusbp.Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "breakerbp_jittered_timeout_seconds",
		Help: "The jittered timeout used by this breaker",
	}, breakerLabels)
)

// DefaultTimeoutJitterRatio is the TimeoutJitterRatio used when it's not set.
const DefaultTimeoutJitterRatio = 0.5

// Config represents the configuration for a FailureRatioBreaker.
//
// Can be deserialized from YAML.
type Config struct {
	// Minimum requests that need to be sent during a time period before the
	// breaker is eligible to transition from closed to open.
	MinRequestsToTrip int `yaml:"minRequestsToTrip"`

	// Ratio of failed requests during a time period needed to open the
	// breaker, in [0,1]. 0.05 means >=5% failures trip the breaker.
	FailureThreshold float64 `yaml:"failureThreshold"`

	// Name of the breaker, used in logs and as the breaker label of metrics.
	Name string `yaml:"name"`

	// MaxRequestsHalfOpen is the number of requests let through while
	// half-open. 0 means 1.
	MaxRequestsHalfOpen uint32 `yaml:"maxRequestsHalfOpen"`

	// Interval is the cyclical period of the closed state.
	// If 0, the counts are never reset while closed.
	Interval time.Duration `yaml:"interval"`

	// Timeout is the duration of the open state before going half-open.
	Timeout time.Duration `yaml:"timeout"`

	// TimeoutJitterRatio is the jitter applied to Timeout, in (0, 1].
	//
	// Optional, defaults to DefaultTimeoutJitterRatio which means the actual
	// timeout is Timeout+-50%.
	TimeoutJitterRatio *float64 `yaml:"timeoutJitterRatio"`

	// Logger is called when the breaker trips or changes states.
	//
	// Optional, defaults to a warn level zap logger.
	Logger log.Wrapper `yaml:"-"`
}

// FailureRatioBreaker is a circuit breaker based on gobreaker that uses a
// low-water-mark and a failure ratio threshold to trip.
type FailureRatioBreaker struct {
	goBreaker *gobreaker.CircuitBreaker

	name              string
	minRequestsToTrip int
	failureThreshold  float64
	logger            log.Wrapper
}

// NewFailureRatioBreaker creates a new FailureRatioBreaker with the provided
// configuration.
func NewFailureRatioBreaker(config Config) FailureRatioBreaker {
	cb := FailureRatioBreaker{
		name:              config.Name,
		minRequestsToTrip: config.MinRequestsToTrip,
		failureThreshold:  config.FailureThreshold,
		logger:            config.Logger,
	}
	if cb.logger == nil {
		cb.logger = log.ZapWrapper(log.WarnLevel)
	}

	jitterRatio := DefaultTimeoutJitterRatio
	if config.TimeoutJitterRatio != nil {
		jitterRatio = *config.TimeoutJitterRatio
	}
	timeout := randbp.JitterDuration(config.Timeout, jitterRatio)
	breakerTimeout.With(prometheus.Labels{
		nameLabel: config.Name,
	}).Set(timeout.Seconds())

	cb.goBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          config.Name,
		Interval:      config.Interval,
		Timeout:       timeout,
		MaxRequests:   config.MaxRequestsHalfOpen,
		ReadyToTrip:   cb.shouldTrip,
		OnStateChange: cb.stateChanged,
	})

	breakerClosed.With(prometheus.Labels{
		nameLabel: config.Name,
	}).Set(1)

	return cb
}

// Execute wraps the given function call in circuit breaker logic and returns
// the result.
func (cb FailureRatioBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.goBreaker.Execute(fn)
}

// State returns the current state of the breaker.
func (cb FailureRatioBreaker) State() gobreaker.State {
	return cb.goBreaker.State()
}

func (cb FailureRatioBreaker) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < uint32(cb.minRequestsToTrip) {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	if failureRatio < cb.failureThreshold {
		return false
	}
	cb.logger.Log(context.Background(), fmt.Sprintf(
		"breakerbp: tripping circuit breaker %q: %d of %d requests failed",
		cb.name,
		counts.TotalFailures,
		counts.Requests,
	))
	return true
}

func (cb FailureRatioBreaker) stateChanged(name string, from gobreaker.State, to gobreaker.State) {
	var value float64
	if to != gobreaker.StateOpen {
		value = 1
	}
	breakerClosed.With(prometheus.Labels{
		nameLabel: cb.name,
	}).Set(value)

	cb.logger.Log(context.Background(), fmt.Sprintf(
		"breakerbp: circuit breaker %q changed state from %v to %v",
		name,
		from,
		to,
	))
}

var (
	_ CircuitBreaker = FailureRatioBreaker{}
	_ CircuitBreaker = (*gobreaker.CircuitBreaker)(nil)
)
