package promtest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func histogramSampleCount(tb testing.TB, m prometheus.Metric) uint64 {
	tb.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		tb.Fatalf("writing histogram: %v", err)
	}
	if pb.Histogram == nil {
		tb.Fatalf("metric %v is not a histogram", m.Desc())
	}
	return pb.Histogram.GetSampleCount()
}
