// Package pipeline defines the shared data model of the search pipeline:
// stage and status enums, per-stage and multi-stage progress aggregates,
// job postings, search requests, and filtering outcomes.
//
// The types here are plain data. Lifecycle rules (who may mutate progress and
// when) are owned by the session orchestrator; this package only supplies the
// invariant-preserving mutation helpers it builds on.
package pipeline
