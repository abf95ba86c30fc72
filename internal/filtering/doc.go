// Package filtering implements the rule engine that partitions collected
// postings into passed and skipped, with exactly one skip reason per skipped
// posting. Rules run in a fixed priority order and the first match wins.
package filtering
