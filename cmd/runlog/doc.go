// Command runlog is the CLI for the run-aware logging pipeline: it reads a
// run's shipped records back by identifier and manages the settings document.
package main
