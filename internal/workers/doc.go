/*
Package workers sizes background worker pools in containerized environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the container
CPU quota (Go 1.19+). Pool sizes are derived from GOMAXPROCS:

	// Chunk prefetches are disk reads: 2 per CPU, at most 8.
	n := workers.ForIO(8)

The delivery engine uses this to bound how many next-chunk prefetches run at
once; a prefetch that finds every slot busy is skipped.

# Environment Variable Override

PREFETCH_WORKERS pins the count (still capped by the limit):

	env:
	- name: PREFETCH_WORKERS
	  value: "2"
*/
package workers
