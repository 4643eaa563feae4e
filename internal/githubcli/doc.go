// Package githubcli wraps the GitHub CLI for pull request workflows.
//
// It layers typed request structures for gh subcommands and integrates with
// execshell so interactions with GitHub can be mocked during testing.
package githubcli
