// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions used throughout
// evg-module-manager to run git, the Evergreen CLI, and the GitHub CLI in a
// testable manner.
package execshell
