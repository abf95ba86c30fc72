// Package postings persists collected, filtered, and enriched job postings
// per session in SQLite. Resume re-fetches a session's postings from here
// instead of checkpointing a half-finished stage: stages replay from their
// start against stored inputs.
package postings
