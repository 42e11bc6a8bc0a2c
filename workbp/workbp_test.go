package workbp_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/workbp"
)

func TestRunDefault(t *testing.T) {
	t.Parallel()

	checksum, err := workbp.Default.Run()
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if checksum != 0 {
		t.Errorf("expected checksum of zeroed memory to be 0, got %d", checksum)
	}
}

func TestRunSmallShapes(t *testing.T) {
	t.Parallel()

	for _, s := range []workbp.Simulator{
		{Blocks: 1, BlockSize: 1, Stride: 1},
		{Blocks: 3, BlockSize: 100, Stride: 7},
		{Blocks: 2, BlockSize: 8, Stride: 64},
	} {
		s := s
		t.Run(fmt.Sprintf("%d-%d-%d", s.Blocks, s.BlockSize, s.Stride), func(t *testing.T) {
			t.Parallel()

			if _, err := s.Run(); err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	for _, c := range []struct {
		label string
		sim   workbp.Simulator
		errs  int
	}{
		{
			label: "default",
			sim:   workbp.Default,
		},
		{
			label: "zero",
			sim:   workbp.Simulator{},
			errs:  3,
		},
		{
			label: "negative-stride",
			sim:   workbp.Simulator{Blocks: 1, BlockSize: 1, Stride: -1},
			errs:  1,
		},
		{
			label: "overflow",
			sim:   workbp.Simulator{Blocks: math.MaxInt, BlockSize: 2, Stride: 1},
			errs:  1,
		},
	} {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()

			if got := errorsbp.BatchSize(c.sim.Validate()); got != c.errs {
				t.Errorf("expected %d error(s), got %d", c.errs, got)
			}
		})
	}
}

func TestRunInvalid(t *testing.T) {
	t.Parallel()

	s := workbp.Simulator{Blocks: math.MaxInt, BlockSize: 2, Stride: 1}
	checksum, err := s.Run()
	if checksum != 0 {
		t.Errorf("expected 0 checksum on error, got %d", checksum)
	}
	var ae *workbp.AllocationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AllocationError, got %T: %v", err, err)
	}
	if ae.Simulator != s {
		t.Errorf("expected simulator %+v, got %+v", s, ae.Simulator)
	}
	if !workbp.IsAllocationError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsAllocationError should see through wrapping")
	}
}

func BenchmarkRun(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := workbp.Default.Run(); err != nil {
			b.Fatal(err)
		}
	}
}
