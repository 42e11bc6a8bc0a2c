package prometheusbp

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HighWatermarkValue implements an int64 gauge that remembers its highest
// value.
type HighWatermarkValue struct {
	lock sync.RWMutex
	curr int64
	max  int64
}

// Inc increases the gauge value by 1.
func (hwv *HighWatermarkValue) Inc() {
	hwv.lock.Lock()
	defer hwv.lock.Unlock()

	hwv.curr++
	if hwv.curr > hwv.max {
		hwv.max = hwv.curr
	}
}

// Dec decreases the gauge value by 1.
func (hwv *HighWatermarkValue) Dec() {
	hwv.lock.Lock()
	defer hwv.lock.Unlock()

	hwv.curr--
}

// Get returns the current value.
func (hwv *HighWatermarkValue) Get() int64 {
	curr, _ := hwv.getBoth()
	return curr
}

// Max returns the high watermark.
func (hwv *HighWatermarkValue) Max() int64 {
	_, max := hwv.getBoth()
	return max
}

func (hwv *HighWatermarkValue) getBoth() (curr, max int64) {
	hwv.lock.RLock()
	defer hwv.lock.RUnlock()

	return hwv.curr, hwv.max
}

// HighWatermarkGauge is a prometheus.Collector reporting a HighWatermarkValue
// as two gauges, "<name>" and "max_<name>".
type HighWatermarkGauge struct {
	*HighWatermarkValue

	curr *prometheus.Desc
	max  *prometheus.Desc
}

// NewHighWatermarkGauge creates a HighWatermarkGauge with a new value.
func NewHighWatermarkGauge(name, help string, constLabels prometheus.Labels) HighWatermarkGauge {
	return HighWatermarkGauge{
		HighWatermarkValue: new(HighWatermarkValue),

		curr: prometheus.NewDesc(name, help, nil, constLabels),
		max:  prometheus.NewDesc("max_"+name, "High watermark of "+name, nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (hwg HighWatermarkGauge) Describe(ch chan<- *prometheus.Desc) {
	ch <- hwg.curr
	ch <- hwg.max
}

// Collect implements prometheus.Collector.
func (hwg HighWatermarkGauge) Collect(ch chan<- prometheus.Metric) {
	curr, max := hwg.getBoth()
	ch <- prometheus.MustNewConstMetric(hwg.curr, prometheus.GaugeValue, float64(curr))
	ch <- prometheus.MustNewConstMetric(hwg.max, prometheus.GaugeValue, float64(max))
}

var _ prometheus.Collector = HighWatermarkGauge{}
