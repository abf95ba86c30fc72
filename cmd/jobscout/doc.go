// Command jobscout is the CLI front end for the jobscout daemon: it starts
// and controls search sessions over the daemon's HTTP API and renders
// progress, session listings, and exports.
package main
