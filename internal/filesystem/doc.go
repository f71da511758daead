/*
Package filesystem provides filesystem operations that retry NFS stale file
handle errors.

Course libraries are frequently mounted from a NAS. A directory listing or an
open on such a mount can fail with ESTALE while the server swaps an inode, and
the same call succeeds a few milliseconds later. [StatWithRetry], [OpenWithRetry]
and [ReadDirWithRetry] retry only that error with exponential backoff (50ms,
100ms, 200ms by default); every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Retry metrics are labelled by volume. Register the known mounts once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "content": cfg.ContentDir,
	    "data":    cfg.DataDir,
	}))

The scanner uses ReadDirWithRetry for course and lesson listings, the delivery
engine uses StatWithRetry and OpenWithRetry for served files.
*/
package filesystem
