package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count sizes a worker pool from GOMAXPROCS, which follows the cgroup
// CPU quota. runtime.NumCPU still reports the host count inside a
// limited container, so sizing from it oversubscribes. multiplier
// scales per-CPU (1.0 for CPU-bound decode/encode work, higher for
// I/O-heavy work); limit caps the result, 0 for no cap. The
// ASSET_WORKERS environment variable overrides the computed count,
// still subject to limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("ASSET_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU sizes a pool for CPU-bound work, one worker per available
// CPU, capped at limit.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
