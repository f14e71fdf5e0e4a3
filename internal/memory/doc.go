/*
Package memory keeps the catalog inside its container memory limit.

Go sizes GOMAXPROCS from the cgroup CPU quota but never reads the
cgroup memory limit, so a container with a 512Mi limit will happily
grow its heap past it and get OOM-killed mid-scan. Two pieces address
that:

[ConfigureFromEnv] sets GOMEMLIMIT from the MEMORY_LIMIT environment
variable (bytes, injected through the Kubernetes Downward API), scaled
by MEMORY_RATIO so ffmpeg subprocesses and libvips buffers keep their
share outside the Go heap. An explicit GOMEMLIMIT takes precedence.
Call it at the top of main, before the catalog opens:

	memory.ConfigureFromEnv()

[Monitor] adds backpressure for the derived-asset cache, whose build
workers decode full-size images and video frames. When heap usage
crosses the critical water mark the workers block in WaitIfPaused
until the GC brings usage back under the high water mark:

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	cache, err := assets.New(cat, prober, hub, monitor, assets.Options{...})

GOMEMLIMIT is a soft limit: the GC runs harder near it but the heap can
still overshoot, and it covers neither CGO nor subprocess memory. The
default ratio of 0.85 assumes light ffmpeg use; lower it when large
video libraries dominate the roots.
*/
package memory
