// Package evgcli wraps the Evergreen command-line tool for patch submission,
// commit-queue management, and project configuration evaluation.
package evgcli
