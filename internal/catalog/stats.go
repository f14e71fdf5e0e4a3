package catalog

import (
	"context"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// CalculateStats counts the catalog's rows for health output.
func (c *Catalog) CalculateStats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM contents", &stats.TotalContents},
		{"SELECT COUNT(*) FROM contents WHERE is_video = 0", &stats.TotalImages},
		{"SELECT COUNT(*) FROM contents WHERE is_video = 1", &stats.TotalVideos},
		{"SELECT COUNT(*) FROM locations", &stats.TotalLocations},
		{"SELECT COUNT(*) FROM watched_roots", &stats.TotalRoots},
		{"SELECT COUNT(*) FROM tags", &stats.TotalTags},
	}

	for _, count := range counts {
		if err = c.db.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// GetStats implements metrics.StatsProvider for the periodic collector.
func (c *Catalog) GetStats() metrics.Stats {
	stats, err := c.CalculateStats(context.Background())
	if err != nil {
		logging.Warn("Failed to calculate catalog stats: %v", err)
		return metrics.Stats{}
	}
	c.UpdateDBMetrics()
	return metrics.Stats{
		TotalContents:  stats.TotalContents,
		TotalImages:    stats.TotalImages,
		TotalVideos:    stats.TotalVideos,
		TotalLocations: stats.TotalLocations,
		TotalRoots:     stats.TotalRoots,
		TotalTags:      stats.TotalTags,
	}
}
