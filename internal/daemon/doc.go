// Package daemon hosts the long-running jobscout process: the single-instance
// lock, the session manager wiring, and the HTTP polling API the CLI talks
// to. The API is plain request/response JSON; clients poll progress rather
// than holding streams open.
package daemon
