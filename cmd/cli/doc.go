// Package cli constructs the evg-module-manager command-line interface,
// wiring the Cobra command hierarchy, local configuration resolution, and
// structured logging. Each subcommand is assembled through a builder so tests
// can substitute executors and services.
package cli
