package modules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const fileSystemMissingMessageConstant = "filesystem not configured"

// ErrFileSystemNotConfigured indicates the tracker was constructed without a filesystem.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// StateTracker derives module enablement from the filesystem on every probe.
//
// A module is enabled iff a symlink at prefix/<name> resolves to an existing
// directory under the modules directory. Dangling links and links pointing
// elsewhere count as disabled and are never repaired here.
type StateTracker struct {
	fileSystem       shared.FileSystem
	modulesDirectory string
}

// NewStateTracker constructs a StateTracker rooted at the provided modules directory.
func NewStateTracker(fileSystem shared.FileSystem, modulesDirectory string) (*StateTracker, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	return &StateTracker{fileSystem: fileSystem, modulesDirectory: modulesDirectory}, nil
}

// LinkPath returns the path where the module's symlink lives when enabled.
func (tracker *StateTracker) LinkPath(declaredModule Module) string {
	return filepath.Join(declaredModule.Prefix, declaredModule.Name)
}

// ClonePath returns the path where the module's repository clone lives. The
// directory is named after the repository in the module's remote URL.
func (tracker *StateTracker) ClonePath(declaredModule Module) string {
	return filepath.Join(tracker.modulesDirectory, declaredModule.CloneDirectoryName())
}

// IsEnabled reports whether the module's link resolves into the modules directory.
func (tracker *StateTracker) IsEnabled(declaredModule Module) bool {
	linkPath := tracker.LinkPath(declaredModule)
	linkInformation, lstatError := tracker.fileSystem.Lstat(linkPath)
	if lstatError != nil {
		return false
	}
	if linkInformation.Mode()&os.ModeSymlink == 0 {
		return false
	}

	resolvedTarget, resolveError := tracker.fileSystem.EvalSymlinks(linkPath)
	if resolveError != nil {
		return false
	}
	absoluteTarget, targetError := tracker.fileSystem.Abs(resolvedTarget)
	if targetError != nil {
		return false
	}
	absoluteModulesDirectory, directoryError := tracker.fileSystem.Abs(tracker.modulesDirectory)
	if directoryError != nil {
		return false
	}

	relativePath, relativeError := filepath.Rel(absoluteModulesDirectory, absoluteTarget)
	if relativeError != nil {
		return false
	}
	return relativePath != ".." && !strings.HasPrefix(relativePath, ".."+string(filepath.Separator))
}

// States reports the enablement of each declared module in declaration order.
func (tracker *StateTracker) States(declaredModules []Module) []ModuleState {
	return lo.Map(declaredModules, func(declaredModule Module, _ int) ModuleState {
		return ModuleState{Module: declaredModule, Enabled: tracker.IsEnabled(declaredModule)}
	})
}

// EnabledModules filters the declared modules down to those enabled locally.
func (tracker *StateTracker) EnabledModules(declaredModules []Module) []Module {
	return lo.Filter(declaredModules, func(declaredModule Module, _ int) bool {
		return tracker.IsEnabled(declaredModule)
	})
}
