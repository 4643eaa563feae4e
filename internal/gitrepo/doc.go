// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager for branch, status, and history operations, along
// with remote URL parsing used when deriving module repositories from their
// configured remotes.
package gitrepo
