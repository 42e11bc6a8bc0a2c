package errorsbp_test

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/latencylab/latencysvc/errorsbp"
)

func TestAdd(t *testing.T) {
	var batch errorsbp.Batch
	if batch.Len() != 0 {
		t.Errorf("zero Batch should be empty, got %d", batch.Len())
	}

	batch.Add()
	batch.Add(nil, nil)
	if batch.Len() != 0 {
		t.Errorf("nil errors should be skipped: %v", batch.GetErrors())
	}

	err0 := errors.New("foo")
	batch.Add(err0)

	var inner errorsbp.Batch
	batch.Add(inner)
	if batch.Len() != 1 {
		t.Errorf("empty batch should be skipped: %v", batch.GetErrors())
	}

	err1 := errors.New("bar")
	err2 := errors.New("fizz")
	inner.Add(err1, err2)
	err3 := errors.New("buzz")
	batch.Add(&inner, err3)

	expected := []error{err0, err1, err2, err3}
	if diff := cmp.Diff(expected, batch.GetErrors(), cmpopts.EquateErrors()); diff != "" {
		t.Errorf("batch should be flattened (-want +got):\n%s", diff)
	}

	batch.Clear()
	if batch.Len() != 0 {
		t.Errorf("cleared batch should be empty: %v", batch.GetErrors())
	}
}

func TestAddPrefix(t *testing.T) {
	const prefix = "pre%sfix"

	err0 := errors.New("foo")
	err1 := errors.New("bar")
	err2 := errors.New("baz")

	var inner errorsbp.Batch
	inner.AddPrefix("inner", err1)
	inner.AddPrefix("", err2)

	var batch errorsbp.Batch
	batch.AddPrefix(prefix, nil)
	batch.AddPrefix(prefix, err0, inner)

	expected := []string{
		"pre%sfix: foo",
		"pre%sfix: inner: bar",
		"pre%sfix: baz",
	}
	var got []string
	for _, err := range batch.GetErrors() {
		got = append(got, err.Error())
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	for _, err := range []error{err0, err1, err2} {
		if !errors.Is(batch, err) {
			t.Errorf("expected errors.Is(batch, %v) to be true", err)
		}
	}
}

func TestCompile(t *testing.T) {
	var batch errorsbp.Batch
	if err := batch.Compile(); err != nil {
		t.Errorf("empty batch should compile to nil, got %v", err)
	}

	err0 := errors.New("foo")
	batch.Add(err0)
	if err := batch.Compile(); err != err0 {
		t.Errorf("single error batch should compile to %v, got %v", err0, err)
	}

	batch.Add(errors.New("bar"), errors.New("foobar"))
	const expected = "errorsbp.Batch: total 3 error(s) in this batch: foo; bar; foobar"
	if got := batch.Compile().Error(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestGetErrorsCopy(t *testing.T) {
	var batch errorsbp.Batch
	err0 := errors.New("foo")
	batch.Add(err0)
	batch.GetErrors()[0] = nil
	if got := batch.GetErrors()[0]; got != err0 {
		t.Errorf("GetErrors should return a copy, got %v", got)
	}
}

func TestAs(t *testing.T) {
	var batch errorsbp.Batch
	batch.Add(
		errors.New("foo"),
		fmt.Errorf("wrapped: %w", &os.PathError{Op: "open", Path: "/nope", Err: os.ErrNotExist}),
	)
	err := fmt.Errorf("outer: %w", batch.Compile())

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected errors.As to find *os.PathError in %v", err)
	}
	if pathErr.Path != "/nope" {
		t.Errorf("unexpected path %q", pathErr.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected errors.Is(err, os.ErrNotExist) to be true")
	}

	var target *errorsbp.Batch
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to find *Batch")
	}
	if target.Len() != 2 {
		t.Errorf("expected 2 errors, got %d", target.Len())
	}
}

func TestBatchSize(t *testing.T) {
	var batch errorsbp.Batch
	batch.Add(errors.New("foo"), errors.New("bar"))

	for _, c := range []struct {
		label    string
		err      error
		expected int
	}{
		{label: "nil", err: nil, expected: 0},
		{label: "single", err: errors.New("foo"), expected: 1},
		{label: "batch", err: batch, expected: 2},
		{label: "pointer", err: &batch, expected: 2},
		{label: "wrapped", err: fmt.Errorf("wrapped: %w", batch), expected: 2},
	} {
		t.Run(c.label, func(t *testing.T) {
			if got := errorsbp.BatchSize(c.err); got != c.expected {
				t.Errorf("expected %d, got %d", c.expected, got)
			}
		})
	}
}
