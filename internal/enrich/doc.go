// Package enrich implements the enrichment stage. Each surviving posting is
// sent to an OpenRouter-compatible chat completion endpoint for a structured
// assessment (summary, fit score, reasoning). Transient API failures are
// retried with exponential backoff; per-item failures leave the posting
// unenriched and are reported as partial errors rather than aborting the run.
package enrich
