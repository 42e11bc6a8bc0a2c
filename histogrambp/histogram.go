package histogrambp

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricName is the metric family name used by the benchmark.
const DefaultMetricName = "http_request_duration_seconds"

const defaultHelp = "HTTP request duration in seconds"

// cacheLinePad is sized so that two adjacent counters never share a cache
// line on amd64 and arm64.
const cacheLinePad = 64 - 8

type counter struct {
	atomic.Uint64
	_ [cacheLinePad]byte
}

// Opts are the options used by NewWithOpts.
type Opts struct {
	// Buckets is required and must be constructed via NewBuckets,
	// MustNewBuckets, or ParseBuckets.
	Buckets Buckets

	// Name is the metric family name.
	// Defaults to DefaultMetricName.
	Name string

	// Help is the help text reported through prometheus.Collector.
	Help string
}

// Histogram is a concurrent accumulator of latency observations.
//
// All methods are safe to be called concurrently from any number of
// goroutines. Counters are never reset.
type Histogram struct {
	buckets Buckets
	name    string
	desc    *prometheus.Desc

	count   counter
	sumBits counter
	counts  []counter
}

// New creates a new Histogram with the given buckets and the default name.
//
// It panics if buckets is the zero value.
func New(buckets Buckets) *Histogram {
	return NewWithOpts(Opts{Buckets: buckets})
}

// NewWithOpts creates a new Histogram with the given options.
//
// It panics if opts.Buckets is the zero value.
func NewWithOpts(opts Opts) *Histogram {
	if opts.Buckets.Len() == 0 {
		panic("histogrambp: Histogram requires at least one bucket")
	}
	if opts.Name == "" {
		opts.Name = DefaultMetricName
	}
	if opts.Help == "" {
		opts.Help = defaultHelp
	}
	return &Histogram{
		buckets: opts.Buckets,
		name:    opts.Name,
		desc:    prometheus.NewDesc(opts.Name, opts.Help, nil, nil),
		counts:  make([]counter, opts.Buckets.Len()),
	}
}

// Name returns the metric family name of the histogram.
func (h *Histogram) Name() string {
	return h.name
}

// Buckets returns the bucket set of the histogram.
func (h *Histogram) Buckets() Buckets {
	return h.buckets
}

// Observe records a single observation in seconds.
//
// It increments the total count, adds seconds to the total sum, then
// increments every bucket whose bound is >= seconds (inclusive). A value
// exactly equal to a bound counts in that bucket.
//
// Observe never fails. NaN is counted in the total count and sum but matches
// no bucket.
func (h *Histogram) Observe(seconds float64) {
	h.count.Add(1)
	h.addSum(seconds)
	for i := range h.counts {
		if seconds <= h.buckets.bounds[i] {
			h.counts[i].Add(1)
		}
	}
}

// ObserveDuration is Observe with d converted to seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *Histogram) addSum(v float64) {
	for {
		old := h.sumBits.Load()
		updated := math.Float64bits(math.Float64frombits(old) + v)
		if h.sumBits.CompareAndSwap(old, updated) {
			return
		}
	}
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 {
	return h.count.Load()
}

// Sum returns the sum of all observations in seconds.
func (h *Histogram) Sum() float64 {
	return math.Float64frombits(h.sumBits.Load())
}

// Snapshot is a point-in-time copy of a Histogram's counters.
type Snapshot struct {
	Buckets Buckets

	// Counts[i] is the number of observations <= Buckets.At(i), as stored.
	Counts []uint64

	Count uint64
	Sum   float64
}

// Snapshot reads the current counters.
//
// The read is not atomic across counters. Under concurrent writes the
// snapshot can be off by the observations in flight, which is acceptable for
// scraped metrics.
func (h *Histogram) Snapshot() Snapshot {
	s := Snapshot{
		Buckets: h.buckets,
		Counts:  make([]uint64, len(h.counts)),
	}
	for i := range h.counts {
		s.Counts[i] = h.counts[i].Load()
	}
	s.Count = h.count.Load()
	s.Sum = math.Float64frombits(h.sumBits.Load())
	return s
}

// Describe implements prometheus.Collector.
func (h *Histogram) Describe(ch chan<- *prometheus.Desc) {
	ch <- h.desc
}

// Collect implements prometheus.Collector.
//
// The stored counts are already "less than or equal" counts so they are
// reported unchanged as cumulative Prometheus buckets.
func (h *Histogram) Collect(ch chan<- prometheus.Metric) {
	s := h.Snapshot()
	buckets := make(map[float64]uint64, len(s.Counts))
	for i, c := range s.Counts {
		buckets[s.Buckets.At(i)] = c
	}
	ch <- prometheus.MustNewConstHistogram(h.desc, s.Count, s.Sum, buckets)
}

var _ prometheus.Collector = (*Histogram)(nil)
