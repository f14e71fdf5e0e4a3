// Package middleware provides HTTP middleware for the catalog API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Response compression (gzip, deflate)
//   - Prometheus request metrics with streaming-aware durations
//   - Configurable filtering for health checks and noisy paths
package middleware
