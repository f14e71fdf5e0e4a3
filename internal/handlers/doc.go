// Package handlers provides HTTP request handlers for the catalog API.
//
// It includes handlers for:
//   - Derived asset retrieval and purging
//   - Scan triggering
//   - Change notification streaming (SSE)
//   - Catalog content inspection
//   - Health checks and Prometheus metrics
package handlers
