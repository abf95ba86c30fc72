// Package eta converts raw throughput samples into smoothed time-remaining
// estimates. Samples are ephemeral: only raw progress counters are persisted
// elsewhere, and every estimate is recomputed from the live rolling windows.
package eta
