// Package stage defines the narrow contracts between the session
// orchestrator and the three stage executors, plus the shared error
// classification and context helpers stage code uses.
package stage
