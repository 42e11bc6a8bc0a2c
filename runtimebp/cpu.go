package runtimebp

import (
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/latencylab/latencysvc/log"
)

const (
	cgroupV2MaxPath    = "/sys/fs/cgroup/cpu.max"
	cgroupV1QuotaPath  = "/sys/fs/cgroup/cpu/cpu.cfs_quota_us"
	cgroupV1PeriodPath = "/sys/fs/cgroup/cpu/cpu.cfs_period_us"
)

// NumCPU returns the number of CPUs assigned to this running container.
//
// This is the container aware version of runtime.NumCPU.
// It reads the cgroup v2 cpu.max values first, then the cgroup v1 cfs quota
// and period. When neither is readable or no limit is set it falls back to
// runtime.NumCPU.
func NumCPU() float64 {
	// Big enough buffer to read the numbers in the files wholly into memory.
	buf := make([]byte, 1024)

	n, err := numCPUCgroupsV2(buf)
	if err == nil {
		return n
	}
	log.Debugw("runtimebp.NumCPU: cgroup v2 unavailable", "err", err)

	n, err = numCPUCgroupsV1(buf)
	if err == nil {
		return n
	}
	log.Debugw("runtimebp.NumCPU: cgroup v1 unavailable, using runtime.NumCPU", "err", err)
	return float64(runtime.NumCPU())
}

func numCPUCgroupsV2(buf []byte) (float64, error) {
	values, err := readNumbersFromFile(cgroupV2MaxPath, buf, 2)
	if err != nil {
		return 0, fmt.Errorf("failed to read max file: %w", err)
	}
	return values[0] / values[1], nil
}

func numCPUCgroupsV1(buf []byte) (float64, error) {
	quota, err := readNumbersFromFile(cgroupV1QuotaPath, buf, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read quota file: %w", err)
	}
	// CFS quota is -1 when there is no limit.
	if quota[0] < 0 {
		return 0, fmt.Errorf("quota file returned %f", quota[0])
	}

	period, err := readNumbersFromFile(cgroupV1PeriodPath, buf, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read period file: %w", err)
	}
	return quota[0] / period[0], nil
}

func readNumbersFromFile(path string, buf []byte, numbers int) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer file.Close()

	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	line := strings.TrimSpace(string(buf[:n]))
	strs := strings.Fields(line)
	if numbers != len(strs) {
		return nil, fmt.Errorf("got %d numbers instead of %d: %q", len(strs), numbers, line)
	}
	result := make([]float64, numbers)
	for i, s := range strs {
		f, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w (#%d of %q)", path, err, i, line)
		}
		result[i] = float64(f)
	}
	return result, nil
}

// GOMAXPROCS sets runtime.GOMAXPROCS to NumCPU rounded up, in bound of
// [min, max].
//
// It's a no-op returning the current value twice when the GOMAXPROCS
// environment variable is set.
func GOMAXPROCS(min, max int) (oldVal, newVal int) {
	if v, ok := os.LookupEnv("GOMAXPROCS"); ok {
		log.Infow("runtimebp.GOMAXPROCS: environment variable set, skipping", "GOMAXPROCS", v)
		current := runtime.GOMAXPROCS(0)
		return current, current
	}
	newVal = boundNtoMinMax(int(math.Ceil(NumCPU())), min, max)
	oldVal = runtime.GOMAXPROCS(newVal)
	return oldVal, newVal
}

func boundNtoMinMax(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
