// Package promtest provides helpers to test prometheus metrics.
package promtest

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// PrometheusMetricTest stores information about a metric to use for testing.
type PrometheusMetricTest struct {
	tb          testing.TB
	metric      prometheus.Collector
	name        string
	initValue   float64
	labelValues []string
}

// NewPrometheusMetricTest creates a new test object for a Prometheus metric.
// It stores the current value of the metric along with the metric name.
//
// Supported metric types are *prometheus.CounterVec, *prometheus.GaugeVec and
// *prometheus.HistogramVec. For histograms the value is the sample count.
func NewPrometheusMetricTest(tb testing.TB, name string, metric prometheus.Collector, labelValues ...string) *PrometheusMetricTest {
	p := &PrometheusMetricTest{
		tb:          tb,
		metric:      metric,
		name:        name,
		labelValues: labelValues,
	}
	p.initValue = p.getValue()
	return p
}

// CheckDelta checks that the metric value changed exactly delta since
// NewPrometheusMetricTest was called.
func (p *PrometheusMetricTest) CheckDelta(delta float64) {
	p.tb.Helper()
	got := p.getValue() - p.initValue
	if got != delta {
		p.tb.Errorf("%s metric delta: wanted %v, got %v", p.name, delta, got)
	}
}

func (p *PrometheusMetricTest) getValue() float64 {
	p.tb.Helper()
	switch m := p.metric.(type) {
	case *prometheus.GaugeVec:
		gauge, err := m.GetMetricWithLabelValues(p.labelValues...)
		if err != nil {
			p.tb.Fatalf("get %s metric err %v", p.name, err)
		}
		return testutil.ToFloat64(gauge)
	case *prometheus.CounterVec:
		counter, err := m.GetMetricWithLabelValues(p.labelValues...)
		if err != nil {
			p.tb.Fatalf("get %s metric err %v", p.name, err)
		}
		return testutil.ToFloat64(counter)
	case *prometheus.HistogramVec:
		observer, err := m.GetMetricWithLabelValues(p.labelValues...)
		if err != nil {
			p.tb.Fatalf("get %s metric err %v", p.name, err)
		}
		return float64(histogramSampleCount(p.tb, observer.(prometheus.Metric)))
	default:
		p.tb.Fatalf("not supported type %T", m)
	}
	return 0
}

// Lint runs the prometheus linter against every metric family from g whose
// name starts with prefix, and fails the test on any problem found.
func Lint(tb testing.TB, g prometheus.Gatherer, prefix string) {
	tb.Helper()
	problems, err := testutil.GatherAndLint(g)
	if err != nil {
		tb.Fatalf("gather and lint: %v", err)
	}
	for _, p := range problems {
		if strings.HasPrefix(p.Metric, prefix) {
			tb.Errorf("lint problem with %s: %s", p.Metric, p.Text)
		}
	}
}
