package histogrambp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/latencylab/latencysvc/errorsbp"
)

// DefaultBuckets is the bucket set used by the benchmark, in seconds.
//
// The bounds are dense around the ~80ms backend delay of the mock backend.
var DefaultBuckets = MustNewBuckets(
	0.080,
	0.085,
	0.090,
	0.095,
	0.100,
	0.110,
	0.120,
	0.150,
	0.200,
	0.300,
	0.500,
	1.0,
)

// Errors returned by NewBuckets.
var (
	ErrNoBuckets = errors.New("histogrambp: at least one bucket bound is required")
)

// Buckets is an immutable, strictly increasing set of finite upper bounds in
// seconds.
//
// The implicit +Inf bucket is not part of Buckets.
//
// The zero value is an empty set and is not usable with New.
type Buckets struct {
	bounds []float64
}

// NewBuckets validates bounds and returns them as a Buckets.
//
// Bounds must be non-empty, finite, and strictly increasing.
// All problems found are reported together as an errorsbp.Batch.
func NewBuckets(bounds ...float64) (Buckets, error) {
	if len(bounds) == 0 {
		return Buckets{}, ErrNoBuckets
	}
	var batch errorsbp.Batch
	for i, b := range bounds {
		if !isFinite(b) {
			batch.Add(fmt.Errorf("histogrambp: bucket #%d must be finite, got %v", i, b))
			continue
		}
		// Ordering against a non-finite neighbor is already reported above.
		if i > 0 && isFinite(bounds[i-1]) && !(b > bounds[i-1]) {
			batch.Add(fmt.Errorf(
				"histogrambp: bucket #%d (%v) must be greater than bucket #%d (%v)",
				i, b, i-1, bounds[i-1],
			))
		}
	}
	if err := batch.Compile(); err != nil {
		return Buckets{}, err
	}
	copied := make([]float64, len(bounds))
	copy(copied, bounds)
	return Buckets{bounds: copied}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MustNewBuckets is NewBuckets but panics on invalid input.
//
// It's intended for package level variables.
func MustNewBuckets(bounds ...float64) Buckets {
	b, err := NewBuckets(bounds...)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseBuckets parses a comma separated list of bounds, e.g. "0.1,0.5,1".
func ParseBuckets(s string) (Buckets, error) {
	parts := strings.Split(s, ",")
	bounds := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return Buckets{}, fmt.Errorf("histogrambp: invalid bucket %q: %w", part, err)
		}
		bounds = append(bounds, f)
	}
	return NewBuckets(bounds...)
}

// Len returns the number of finite bounds.
func (b Buckets) Len() int {
	return len(b.bounds)
}

// At returns the i-th bound.
func (b Buckets) At(i int) float64 {
	return b.bounds[i]
}

// Bounds returns a copy of the bounds.
func (b Buckets) Bounds() []float64 {
	bounds := make([]float64, len(b.bounds))
	copy(bounds, b.bounds)
	return bounds
}

// String implements fmt.Stringer.
func (b Buckets) String() string {
	parts := make([]string, len(b.bounds))
	for i, bound := range b.bounds {
		parts[i] = strconv.FormatFloat(bound, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseBuckets.
//
// It allows Buckets to be used directly as an environment variable or YAML
// scalar config field.
func (b *Buckets) UnmarshalText(text []byte) error {
	parsed, err := ParseBuckets(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler, accepting either a YAML sequence
// of numbers or a comma separated string.
func (b *Buckets) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var bounds []float64
	if err := unmarshal(&bounds); err == nil {
		parsed, err := NewBuckets(bounds...)
		if err != nil {
			return err
		}
		*b = parsed
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(s))
}
