// Package memory configures the Go memory limit for containers and provides
// a backpressure monitor for memory-hungry background work.
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//	memory.ConfigureFromEnv()
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable; when set it wins.
//   - MEMORY_LIMIT: container memory limit in bytes, usually passed through the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (0.0-1.0,
//     default 0.85). The rest is left for the chunk cache's transient reads,
//     image decoding and goroutine stacks.
//
// # Monitor
//
// A [Monitor] samples heap usage against the limit. The delivery engine skips
// next-chunk prefetches while [Monitor.ShouldThrottle] is true, and the full
// scan waits in [Monitor.WaitIfPaused] between courses when usage crosses the
// critical mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
// Without a configured limit the monitor never throttles or pauses.
package memory
