// Package branches fans git branch operations out across the base repository
// and every enabled module.
//
// It offers Service, which creates, switches, deletes, shows, and updates
// branches across the repository set and syncs modules to their pinned
// revisions after base-repository operations.
package branches
