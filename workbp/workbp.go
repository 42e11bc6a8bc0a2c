// Package workbp simulates a fixed amount of per-request CPU and memory work.
package workbp

import (
	"errors"
	"fmt"
	"math"

	"github.com/latencylab/latencysvc/errorsbp"
)

// Default shape of the simulated work, 1000 blocks of 1 KiB.
const (
	DefaultBlocks    = 1000
	DefaultBlockSize = 1024
	DefaultStride    = 64
)

// Default is the Simulator with the default shape.
var Default = Simulator{
	Blocks:    DefaultBlocks,
	BlockSize: DefaultBlockSize,
	Stride:    DefaultStride,
}

// Simulator allocates Blocks blocks of BlockSize bytes each and reads every
// Stride-th byte of every block into a checksum.
//
// Can be deserialized from YAML, and every field can be overridden by its
// environment variable.
type Simulator struct {
	Blocks    int `yaml:"blocks" env:"WORK_BLOCKS"`
	BlockSize int `yaml:"blockSize" env:"WORK_BLOCK_SIZE"`
	Stride    int `yaml:"stride" env:"WORK_STRIDE"`
}

// Validate checks that the shape is positive and its total size fits in an
// int.
func (s Simulator) Validate() error {
	var batch errorsbp.Batch
	if s.Blocks <= 0 {
		batch.Add(fmt.Errorf("workbp: blocks must be positive, got %d", s.Blocks))
	}
	if s.BlockSize <= 0 {
		batch.Add(fmt.Errorf("workbp: blockSize must be positive, got %d", s.BlockSize))
	}
	if s.Stride <= 0 {
		batch.Add(fmt.Errorf("workbp: stride must be positive, got %d", s.Stride))
	}
	if s.Blocks > 0 && s.BlockSize > 0 && s.Blocks > math.MaxInt/s.BlockSize {
		batch.Add(fmt.Errorf("workbp: %d blocks of %d bytes overflows int", s.Blocks, s.BlockSize))
	}
	return batch.Compile()
}

// Run performs the work once and returns the checksum.
//
// Freshly allocated memory is zeroed, so the checksum of a successful run is
// always 0. It is still computed so the reads happen.
//
// An invalid shape, or a runtime panic while allocating (e.g. a size the
// allocator rejects), is returned as *AllocationError. A real out of memory
// condition is fatal to the Go runtime and can't be recovered here.
func (s Simulator) Run() (checksum int64, err error) {
	if err := s.Validate(); err != nil {
		return 0, &AllocationError{Simulator: s, Cause: err}
	}
	defer func() {
		if r := recover(); r != nil {
			checksum = 0
			err = &AllocationError{Simulator: s, Cause: panicError(r)}
		}
	}()

	blocks := make([][]byte, s.Blocks)
	for i := range blocks {
		blocks[i] = make([]byte, s.BlockSize)
	}
	for _, block := range blocks {
		for j := 0; j < len(block); j += s.Stride {
			checksum += int64(block[j])
		}
	}
	return checksum, nil
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// AllocationError is returned by Run when the work buffers could not be
// allocated.
type AllocationError struct {
	Simulator Simulator
	Cause     error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf(
		"workbp: failed to allocate %d blocks of %d bytes: %v",
		e.Simulator.Blocks,
		e.Simulator.BlockSize,
		e.Cause,
	)
}

func (e *AllocationError) Unwrap() error {
	return e.Cause
}

var _ error = (*AllocationError)(nil)

// IsAllocationError reports whether err is or wraps an *AllocationError.
func IsAllocationError(err error) bool {
	var ae *AllocationError
	return errors.As(err, &ae)
}
