// Package scanner implements the full-catalog reconciliation pass. It
// trades throughput for crash-safety: every discovered file and every
// auto-registered subdirectory commits on its own, so an interrupted
// pass leaves a valid catalog that the next pass simply resumes.
package scanner
