// Package collect coordinates the collection stage: it fans a search request
// out over a query x site x country matrix of pluggable sources, tolerates
// per-source failures, deduplicates results, and exposes the sub-progress the
// orchestrator polls while the stage is in flight.
//
// Concrete site scrapers are external collaborators; they plug in through the
// Source interface.
package collect
