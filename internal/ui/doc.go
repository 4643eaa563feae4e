// Package ui provides helpers for formatting human-readable console output.
//
// ConsoleRenderer prints module listings, per-repository operation results,
// colorized git statuses, and patch and pull request summaries, while the
// command event logger translates shell executions into concise messages.
// Detailed telemetry continues to flow through structured loggers.
package ui
