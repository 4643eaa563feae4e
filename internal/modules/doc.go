// Package modules resolves the modules a project declares, tracks which of
// them are enabled locally, and performs the enable, disable, and sync
// operations that keep module clones aligned with the base repository.
//
// Enablement is derived from the filesystem on every probe: a module is
// enabled iff a symlink at prefix/<name> resolves into the modules directory.
package modules
