// Package snapshot persists session state as one JSON document per session
// under a sessions/ directory. Snapshots make long-running searches
// crash-recoverable: they are written at stage boundaries and on pause/stop,
// and read back once at process startup.
//
// Credentials are always redacted before a snapshot touches disk.
package snapshot
