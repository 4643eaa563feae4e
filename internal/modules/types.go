package modules

import (
	"fmt"

	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
)

const (
	cloneErrorTemplateConstant      = "unable to clone module %s from %s: %s"
	symlinkErrorTemplateConstant    = "unable to link module %s at %s: %s"
	notEnabledErrorTemplateConstant = "module %s is not enabled at %s"
)

// Module describes one auxiliary repository declared in a project configuration.
type Module struct {
	Name   string `mapstructure:"name"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	Prefix string `mapstructure:"prefix"`
	Owner  string `mapstructure:"owner"`
}

// CloneDirectoryName derives the local clone directory from the repository
// name in the module's remote URL, falling back to the module name when the
// remote cannot be parsed.
func (module Module) CloneDirectoryName() string {
	remoteURL, parseError := gitrepo.ParseRemoteURL(module.Repo)
	if parseError != nil {
		return module.Name
	}
	return remoteURL.Repository
}

// EnabledModule reports where an enabled module was linked and cloned.
type EnabledModule struct {
	LinkPath  string
	ClonePath string
}

// ModuleState couples a declared module with its locally observed enablement.
type ModuleState struct {
	Module  Module
	Enabled bool
}

// SyncedModule records the outcome of syncing one module to its pinned revision.
type SyncedModule struct {
	ModuleName string
	Revision   string
	Err        error
}

// ModuleRevision pairs a module name with the revision pinned for a base commit.
type ModuleRevision struct {
	ModuleName string
	Revision   string
}

// CloneError indicates a module repository could not be cloned.
type CloneError struct {
	ModuleName string
	RemoteURL  string
	Cause      error
}

// Error describes the failed clone.
func (cloneError CloneError) Error() string {
	return fmt.Sprintf(cloneErrorTemplateConstant, cloneError.ModuleName, cloneError.RemoteURL, cloneError.Cause)
}

// Unwrap exposes the underlying git failure.
func (cloneError CloneError) Unwrap() error {
	return cloneError.Cause
}

// SymlinkError indicates the module link could not be created at its prefix path.
type SymlinkError struct {
	ModuleName string
	LinkPath   string
	Cause      error
}

// Error describes the failed link creation.
func (symlinkError SymlinkError) Error() string {
	return fmt.Sprintf(symlinkErrorTemplateConstant, symlinkError.ModuleName, symlinkError.LinkPath, symlinkError.Cause)
}

// Unwrap exposes the underlying filesystem failure.
func (symlinkError SymlinkError) Unwrap() error {
	return symlinkError.Cause
}

// NotEnabledError indicates a disable request for a module with no local link.
type NotEnabledError struct {
	ModuleName string
	LinkPath   string
}

// Error describes the missing link.
func (notEnabledError NotEnabledError) Error() string {
	return fmt.Sprintf(notEnabledErrorTemplateConstant, notEnabledError.ModuleName, notEnabledError.LinkPath)
}
