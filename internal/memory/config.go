package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-catalog/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit handed to the
// Go heap. The remainder covers ffmpeg subprocesses, libvips buffers,
// and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult reports what ConfigureFromEnv decided.
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT ended up set.
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none".
	Source string

	// ContainerLimit is the container memory limit in bytes, zero when
	// not provided.
	ContainerLimit int64

	// GoMemLimit is the effective GOMEMLIMIT in bytes, zero when unset.
	GoMemLimit int64

	// Ratio is the fraction of ContainerLimit given to the heap.
	Ratio float64
}

// ConfigureFromEnv derives GOMEMLIMIT from the container memory limit.
// An explicit GOMEMLIMIT wins; otherwise MEMORY_LIMIT (bytes, typically
// injected through the Kubernetes Downward API) scaled by MEMORY_RATIO
// is applied. Call it before the catalog and asset cache allocate.
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		result.Source = "none"
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		result.Source = "none"
		return result
	}
	result.ContainerLimit = memLimit

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1.0:
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}
	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.GoMemLimit = goMemLimit

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(memLimit))
	return result
}

// formatBytes renders a byte count as a binary-prefixed string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
