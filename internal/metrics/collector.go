package metrics

import (
	"time"

	"media-catalog/internal/logging"
)

// StatsProvider supplies catalog-wide counts for the library gauges.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog statistics
type Stats struct {
	TotalContents  int
	TotalImages    int
	TotalVideos    int
	TotalLocations int
	TotalRoots     int
	TotalTags      int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	CatalogContentsTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	CatalogContentsTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	CatalogLocationsTotal.Set(float64(stats.TotalLocations))
	CatalogRootsTotal.Set(float64(stats.TotalRoots))
	CatalogTagsTotal.Set(float64(stats.TotalTags))

	logging.Debug("Metrics collected: contents=%d, locations=%d, roots=%d, tags=%d",
		stats.TotalContents, stats.TotalLocations, stats.TotalRoots, stats.TotalTags)
}
