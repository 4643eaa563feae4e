package modules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/evergreen"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	resolverMissingMessageConstant        = "module resolver not configured"
	stateTrackerMissingMessageConstant    = "state tracker not configured"
	gitManagerMissingMessageConstant      = "git manager not configured"
	manifestAPIMissingMessageConstant     = "manifest client not configured"
	loggerMissingMessageConstant          = "logger not configured"
	moduleMissingFromManifestMessage      = "module missing from manifest"
	unsupportedStrategyTemplateConstant   = "unsupported update strategy %q"
	linkExistsMessageConstant             = "path already exists"
	linkNotSymlinkMessageConstant         = "path exists and is not a symlink"
	lockFileNameConstant                  = ".emm.lock"
	headReferenceConstant                 = "HEAD"
	moduleEnabledLogMessageConstant       = "module enabled"
	moduleDisabledLogMessageConstant      = "module disabled"
	moduleSyncedLogMessageConstant        = "module synced"
	moduleNameLogFieldConstant            = "module"
	linkPathLogFieldConstant              = "link_path"
	clonePathLogFieldConstant             = "clone_path"
	revisionLogFieldConstant              = "revision"
	prefixDirectoryPermissionsConstant    = fs.FileMode(0o755)
)

// UpdateStrategy selects how a module is moved to its pinned revision.
type UpdateStrategy string

// Supported update strategies.
const (
	StrategyCheckout UpdateStrategy = UpdateStrategy("checkout")
	StrategyMerge    UpdateStrategy = UpdateStrategy("merge")
	StrategyRebase   UpdateStrategy = UpdateStrategy("rebase")
)

// ErrResolverNotConfigured indicates the module resolver dependency was missing.
var ErrResolverNotConfigured = errors.New(resolverMissingMessageConstant)

// ErrStateTrackerNotConfigured indicates the state tracker dependency was missing.
var ErrStateTrackerNotConfigured = errors.New(stateTrackerMissingMessageConstant)

// ErrGitManagerNotConfigured indicates the git manager dependency was missing.
var ErrGitManagerNotConfigured = errors.New(gitManagerMissingMessageConstant)

// ErrManifestAPINotConfigured indicates the manifest client dependency was missing.
var ErrManifestAPINotConfigured = errors.New(manifestAPIMissingMessageConstant)

// ErrLoggerNotConfigured indicates the logger dependency was missing.
var ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)

// ErrModuleMissingFromManifest indicates a manifest carried no entry for a module.
var ErrModuleMissingFromManifest = errors.New(moduleMissingFromManifestMessage)

// ModuleResolver resolves module declarations for a project.
type ModuleResolver interface {
	Modules(executionContext context.Context, projectIdentifier string) ([]Module, error)
	Module(executionContext context.Context, projectIdentifier string, moduleName string) (Module, error)
	ProjectBranch(executionContext context.Context, projectIdentifier string) (string, error)
}

// GitManager exposes the git operations module management relies on.
type GitManager interface {
	Clone(executionContext context.Context, parentDirectory string, remoteURL string, localName string, branchName string) error
	Fetch(executionContext context.Context, repositoryPath string) error
	Checkout(executionContext context.Context, repositoryPath string, revision string) error
	Rebase(executionContext context.Context, repositoryPath string, revision string) (string, error)
	Merge(executionContext context.Context, repositoryPath string, revision string) (string, error)
	MergeBase(executionContext context.Context, repositoryPath string, firstRevision string, secondRevision string) (string, error)
}

// ManifestFetcher retrieves module revision manifests from Evergreen.
type ManifestFetcher interface {
	Manifest(executionContext context.Context, projectIdentifier string, revision string) (evergreen.Manifest, error)
}

// FileLock guards the modules directory against concurrent clone attempts.
type FileLock interface {
	Lock() error
	Unlock() error
}

// LockFactory builds a FileLock for the provided lock file path.
type LockFactory func(lockFilePath string) FileLock

// Dependencies enumerates the collaborators required by the module service.
type Dependencies struct {
	Resolver     ModuleResolver
	StateTracker *StateTracker
	GitManager   GitManager
	ManifestAPI  ManifestFetcher
	FileSystem   shared.FileSystem
	Logger       *zap.Logger
	LockFactory  LockFactory
}

// Options configures the module service for one invocation.
type Options struct {
	ProjectIdentifier string
	ModulesDirectory  string
}

// Service coordinates module enablement, disablement, and revision syncing.
type Service struct {
	resolver     ModuleResolver
	stateTracker *StateTracker
	gitManager   GitManager
	manifestAPI  ManifestFetcher
	fileSystem   shared.FileSystem
	logger       *zap.Logger
	lockFactory  LockFactory
	options      Options
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies, options Options) (*Service, error) {
	if dependencies.Resolver == nil {
		return nil, ErrResolverNotConfigured
	}
	if dependencies.StateTracker == nil {
		return nil, ErrStateTrackerNotConfigured
	}
	if dependencies.GitManager == nil {
		return nil, ErrGitManagerNotConfigured
	}
	if dependencies.ManifestAPI == nil {
		return nil, ErrManifestAPINotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}

	lockFactory := dependencies.LockFactory
	if lockFactory == nil {
		lockFactory = func(lockFilePath string) FileLock {
			return flock.New(lockFilePath)
		}
	}

	return &Service{
		resolver:     dependencies.Resolver,
		stateTracker: dependencies.StateTracker,
		gitManager:   dependencies.GitManager,
		manifestAPI:  dependencies.ManifestAPI,
		fileSystem:   dependencies.FileSystem,
		logger:       dependencies.Logger,
		lockFactory:  lockFactory,
		options:      options,
	}, nil
}

// AllModules reports the declared modules with their local enablement, in declaration order.
func (service *Service) AllModules(executionContext context.Context, enabledOnly bool) ([]ModuleState, error) {
	declaredModules, resolutionError := service.resolver.Modules(executionContext, service.options.ProjectIdentifier)
	if resolutionError != nil {
		return nil, resolutionError
	}

	moduleStates := service.stateTracker.States(declaredModules)
	if !enabledOnly {
		return moduleStates, nil
	}

	enabledStates := make([]ModuleState, 0, len(moduleStates))
	for _, moduleState := range moduleStates {
		if moduleState.Enabled {
			enabledStates = append(enabledStates, moduleState)
		}
	}
	return enabledStates, nil
}

// LinkPath reports the symlink location of the provided module.
func (service *Service) LinkPath(declaredModule Module) string {
	return service.stateTracker.LinkPath(declaredModule)
}

// Enable clones the module repository when absent, links it at its prefix, and
// optionally syncs it to the revision pinned for the current base commit.
func (service *Service) Enable(executionContext context.Context, moduleName string, syncCommit bool) (EnabledModule, error) {
	declaredModule, resolutionError := service.resolver.Module(executionContext, service.options.ProjectIdentifier, moduleName)
	if resolutionError != nil {
		return EnabledModule{}, resolutionError
	}

	linkPath := service.stateTracker.LinkPath(declaredModule)
	if _, lstatError := service.fileSystem.Lstat(linkPath); lstatError == nil {
		return EnabledModule{}, SymlinkError{ModuleName: moduleName, LinkPath: linkPath, Cause: errors.New(linkExistsMessageConstant)}
	}

	if directoryError := service.fileSystem.MkdirAll(service.options.ModulesDirectory, prefixDirectoryPermissionsConstant); directoryError != nil {
		return EnabledModule{}, directoryError
	}

	clonePath := service.stateTracker.ClonePath(declaredModule)
	if cloneError := service.cloneIfAbsent(executionContext, declaredModule, clonePath); cloneError != nil {
		return EnabledModule{}, cloneError
	}

	if directoryError := service.fileSystem.MkdirAll(declaredModule.Prefix, prefixDirectoryPermissionsConstant); directoryError != nil {
		return EnabledModule{}, directoryError
	}

	absoluteClonePath, absoluteError := service.fileSystem.Abs(clonePath)
	if absoluteError != nil {
		return EnabledModule{}, absoluteError
	}
	if symlinkError := service.fileSystem.Symlink(absoluteClonePath, linkPath); symlinkError != nil {
		return EnabledModule{}, SymlinkError{ModuleName: moduleName, LinkPath: linkPath, Cause: symlinkError}
	}

	service.logger.Info(moduleEnabledLogMessageConstant,
		zap.String(moduleNameLogFieldConstant, moduleName),
		zap.String(linkPathLogFieldConstant, linkPath),
		zap.String(clonePathLogFieldConstant, absoluteClonePath),
	)

	enabledModule := EnabledModule{LinkPath: linkPath, ClonePath: absoluteClonePath}
	if !syncCommit {
		return enabledModule, nil
	}
	_, syncError := service.SyncModule(executionContext, declaredModule, StrategyCheckout)
	return enabledModule, syncError
}

// Disable removes the module's link, leaving the clone in place for re-enablement.
func (service *Service) Disable(executionContext context.Context, moduleName string) error {
	declaredModule, resolutionError := service.resolver.Module(executionContext, service.options.ProjectIdentifier, moduleName)
	if resolutionError != nil {
		return resolutionError
	}

	linkPath := service.stateTracker.LinkPath(declaredModule)
	linkInformation, lstatError := service.fileSystem.Lstat(linkPath)
	if lstatError != nil {
		return NotEnabledError{ModuleName: moduleName, LinkPath: linkPath}
	}
	if linkInformation.Mode()&fs.ModeSymlink == 0 {
		return SymlinkError{ModuleName: moduleName, LinkPath: linkPath, Cause: errors.New(linkNotSymlinkMessageConstant)}
	}

	if removeError := service.fileSystem.Remove(linkPath); removeError != nil {
		return removeError
	}

	service.logger.Info(moduleDisabledLogMessageConstant,
		zap.String(moduleNameLogFieldConstant, moduleName),
		zap.String(linkPathLogFieldConstant, linkPath),
	)
	return nil
}

// BaseRevision resolves the base commit the current checkout diverged from.
func (service *Service) BaseRevision(executionContext context.Context) (string, error) {
	projectBranch, branchError := service.resolver.ProjectBranch(executionContext, service.options.ProjectIdentifier)
	if branchError != nil {
		return "", branchError
	}
	return service.gitManager.MergeBase(executionContext, "", projectBranch, headReferenceConstant)
}

// SyncModule moves the module to the revision pinned for the current base commit.
func (service *Service) SyncModule(executionContext context.Context, declaredModule Module, strategy UpdateStrategy) (string, error) {
	baseRevision, revisionError := service.BaseRevision(executionContext)
	if revisionError != nil {
		return "", revisionError
	}

	manifest, manifestError := service.manifestAPI.Manifest(executionContext, service.options.ProjectIdentifier, baseRevision)
	if manifestError != nil {
		return "", manifestError
	}
	manifestModule, declared := manifest.Modules[declaredModule.Name]
	if !declared {
		return "", fmt.Errorf("%w: %s", ErrModuleMissingFromManifest, declaredModule.Name)
	}

	moduleDirectory := service.stateTracker.LinkPath(declaredModule)
	if fetchError := service.gitManager.Fetch(executionContext, moduleDirectory); fetchError != nil {
		return "", fetchError
	}

	switch strategy {
	case StrategyCheckout:
		if checkoutError := service.gitManager.Checkout(executionContext, moduleDirectory, manifestModule.Revision); checkoutError != nil {
			return "", checkoutError
		}
	case StrategyRebase:
		if _, rebaseError := service.gitManager.Rebase(executionContext, moduleDirectory, manifestModule.Revision); rebaseError != nil {
			return "", rebaseError
		}
	case StrategyMerge:
		if _, mergeError := service.gitManager.Merge(executionContext, moduleDirectory, manifestModule.Revision); mergeError != nil {
			return "", mergeError
		}
	default:
		return "", fmt.Errorf(unsupportedStrategyTemplateConstant, strategy)
	}

	service.logger.Info(moduleSyncedLogMessageConstant,
		zap.String(moduleNameLogFieldConstant, declaredModule.Name),
		zap.String(revisionLogFieldConstant, manifestModule.Revision),
	)
	return manifestModule.Revision, nil
}

// SyncAllModules syncs each module best effort and reports per-module outcomes in order.
func (service *Service) SyncAllModules(executionContext context.Context, enabledOnly bool, strategy UpdateStrategy) ([]SyncedModule, error) {
	moduleStates, resolutionError := service.AllModules(executionContext, enabledOnly)
	if resolutionError != nil {
		return nil, resolutionError
	}

	syncedModules := make([]SyncedModule, 0, len(moduleStates))
	for _, moduleState := range moduleStates {
		revision, syncError := service.SyncModule(executionContext, moduleState.Module, strategy)
		syncedModules = append(syncedModules, SyncedModule{
			ModuleName: moduleState.Module.Name,
			Revision:   revision,
			Err:        syncError,
		})
	}
	return syncedModules, nil
}

// CollectRepositories builds the ordered repository set: base first, then
// enabled modules in declaration order.
func (service *Service) CollectRepositories(executionContext context.Context) ([]shared.Repository, error) {
	projectBranch, branchError := service.resolver.ProjectBranch(executionContext, service.options.ProjectIdentifier)
	if branchError != nil {
		return nil, branchError
	}

	enabledStates, resolutionError := service.AllModules(executionContext, true)
	if resolutionError != nil {
		return nil, resolutionError
	}

	repositories := make([]shared.Repository, 0, len(enabledStates)+1)
	repositories = append(repositories, shared.Repository{
		Name:         shared.BaseRepositoryName,
		TargetBranch: projectBranch,
	})
	for _, moduleState := range enabledStates {
		repositories = append(repositories, shared.Repository{
			Name:         moduleState.Module.Name,
			Directory:    service.stateTracker.LinkPath(moduleState.Module),
			TargetBranch: moduleState.Module.Branch,
		})
	}
	return repositories, nil
}

// ModuleCommits reports the manifest revision of each module for the given base commit.
func (service *Service) ModuleCommits(executionContext context.Context, enabledOnly bool, baseCommit string) ([]ModuleRevision, error) {
	moduleStates, resolutionError := service.AllModules(executionContext, enabledOnly)
	if resolutionError != nil {
		return nil, resolutionError
	}

	manifest, manifestError := service.manifestAPI.Manifest(executionContext, service.options.ProjectIdentifier, baseCommit)
	if manifestError != nil {
		return nil, manifestError
	}

	moduleRevisions := make([]ModuleRevision, 0, len(moduleStates))
	for _, moduleState := range moduleStates {
		manifestModule, declared := manifest.Modules[moduleState.Module.Name]
		if !declared {
			return nil, fmt.Errorf("%w: %s", ErrModuleMissingFromManifest, moduleState.Module.Name)
		}
		moduleRevisions = append(moduleRevisions, ModuleRevision{
			ModuleName: moduleState.Module.Name,
			Revision:   manifestModule.Revision,
		})
	}
	return moduleRevisions, nil
}

func (service *Service) cloneIfAbsent(executionContext context.Context, declaredModule Module, clonePath string) error {
	if _, statError := service.fileSystem.Stat(clonePath); statError == nil {
		return nil
	}

	modulesLock := service.lockFactory(filepath.Join(service.options.ModulesDirectory, lockFileNameConstant))
	if lockError := modulesLock.Lock(); lockError != nil {
		return lockError
	}
	defer func() {
		_ = modulesLock.Unlock()
	}()

	// Another invocation may have completed the clone while we waited on the lock.
	if _, statError := service.fileSystem.Stat(clonePath); statError == nil {
		return nil
	}

	cloneError := service.gitManager.Clone(executionContext, service.options.ModulesDirectory, declaredModule.Repo, declaredModule.CloneDirectoryName(), declaredModule.Branch)
	if cloneError != nil {
		return CloneError{ModuleName: declaredModule.Name, RemoteURL: declaredModule.Repo, Cause: cloneError}
	}
	return nil
}
