package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config tunes the monitor's sampling and thresholds.
type Config struct {
	// MemoryLimitBytes is the soft heap limit. Zero falls back to
	// GOMEMLIMIT; with neither set, backpressure is disabled.
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which a paused
	// monitor resumes.
	HighWaterMark float64

	// CriticalWaterMark is the fraction of the limit at which asset
	// builds pause.
	CriticalWaterMark float64

	// CheckInterval is the sampling period.
	CheckInterval time.Duration
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes:  0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and pauses asset build workers while the
// process is close to its memory limit. Decoding a large source image
// can allocate tens of megabytes at once, so builds wait out the
// pressure instead of pushing the container into an OOM kill.
type Monitor struct {
	config   Config
	limit    int64
	stopChan chan struct{}

	mu        sync.RWMutex
	isPaused  bool
	pauseChan chan struct{}
}

// NewMonitor creates a Monitor. With no explicit limit it adopts
// GOMEMLIMIT when one is set.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %d bytes (%.1f MB)", limit, float64(limit)/(1024*1024))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
	}
}

// Start launches the sampling loop. Without a limit there is nothing
// to sample and builds never pause.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.sampleLoop()
}

// Stop ends sampling and releases any build worker blocked in
// WaitIfPaused.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) sampleLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	usage := float64(stats.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing asset builds", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()

	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming asset builds", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
		close(m.pauseChan)
		m.pauseChan = make(chan struct{})
	}
}

// WaitIfPaused blocks while usage is critical. It returns false only
// when the monitor was stopped, so a build worker shutting down can
// bail out instead of finishing its job.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	}
}

// IsPaused reports whether builds are currently held.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}
