package errorsbp

import (
	"errors"
	"strconv"
	"strings"
)

var (
	_ error = Batch{}
	_ error = (*Batch)(nil)
)

// Batch is an error that can contain multiple errors.
//
// The zero value is an empty batch ready to use.
type Batch struct {
	errors []error
}

func (be Batch) Error() string {
	var sb strings.Builder
	sb.WriteString("errorsbp.Batch: total ")
	sb.WriteString(strconv.Itoa(len(be.errors)))
	sb.WriteString(" error(s) in this batch")
	for i, err := range be.errors {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Len returns the number of errors in the batch.
func (be Batch) Len() int {
	return len(be.errors)
}

// Is implements the helper interface for errors.Is by checking every error in
// the batch.
//
// Add never stores a Batch inside a Batch, so this can't loop.
func (be Batch) Is(target error) bool {
	for _, err := range be.errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// As implements the helper interface for errors.As.
//
// A target of *Batch or **Batch receives the batch itself, any other target is
// tried against every error in the batch.
func (be Batch) As(v interface{}) bool {
	switch target := v.(type) {
	case *Batch:
		*target = be
		return true
	case **Batch:
		*target = &be
		return true
	}
	for _, err := range be.errors {
		if errors.As(err, v) {
			return true
		}
	}
	return false
}

// Add adds non-nil errors into the batch.
//
// When an error is itself a Batch its underlying errors are added instead.
func (be *Batch) Add(errs ...error) {
	be.AddPrefix("", errs...)
}

// AddPrefix is Add with every added error's message prefixed as
//
//	"prefix: err.Error()"
//
// The prefixed errors still unwrap to the originals.
func (be *Batch) AddPrefix(prefix string, errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		var batch Batch
		if errors.As(err, &batch) {
			for _, inner := range batch.errors {
				be.errors = append(be.errors, withPrefix(prefix, inner))
			}
			continue
		}
		be.errors = append(be.errors, withPrefix(prefix, err))
	}
}

// Compile returns nil for an empty batch, the only error for a batch of one,
// and the batch itself otherwise.
func (be Batch) Compile() error {
	switch len(be.errors) {
	case 0:
		return nil
	case 1:
		return be.errors[0]
	default:
		return be
	}
}

// Clear empties the batch.
func (be *Batch) Clear() {
	be.errors = nil
}

// GetErrors returns a copy of the errors in the batch.
func (be Batch) GetErrors() []error {
	errs := make([]error, len(be.errors))
	copy(errs, be.errors)
	return errs
}

// BatchSize returns Len() when err is a Batch, 1 for any other non-nil error,
// and 0 for nil.
//
// It's mostly useful in tests.
func BatchSize(err error) int {
	if err == nil {
		return 0
	}
	var be Batch
	if errors.As(err, &be) {
		return be.Len()
	}
	return 1
}

// prefixError is used over fmt.Errorf(prefix+": %w", err) since prefix may
// contain format verbs.
type prefixError struct {
	msg string
	err error
}

func withPrefix(prefix string, err error) error {
	if prefix == "" {
		return err
	}
	return &prefixError{
		msg: prefix + ": " + err.Error(),
		err: err,
	}
}

func (e *prefixError) Error() string {
	return e.msg
}

func (e *prefixError) Unwrap() error {
	return e.err
}
