// Package session orchestrates search sessions through the collection,
// filtering, and enrichment stages. The manager owns the per-session state
// machine: starting, pausing, stopping, resuming, progress reporting with
// derived ETAs, snapshot persistence after every transition, and eviction of
// finished sessions after a retention window.
//
// Stages run strictly sequentially per session, so at most one stage is ever
// running. Pause and stop cancel the stage context; a paused stage replays
// from the persisted output of the previous stage on resume.
package session
