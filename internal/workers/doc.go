// Package workers sizes worker pools for containerized deployments,
// where GOMAXPROCS tracks the cgroup CPU quota but runtime.NumCPU does
// not. The asset cache sizes its build pool with ForCPU; ASSET_WORKERS
// overrides the computed count.
package workers
