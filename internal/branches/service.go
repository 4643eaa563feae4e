package branches

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	branchNameRequiredMessageConstant   = "branch name must be provided"
	gitManagerMissingMessageConstant    = "git manager not configured"
	moduleServiceMissingMessageConstant = "module service not configured"
	loggerMissingMessageConstant        = "logger not configured"
	branchOperationLogMessageConstant   = "branch operation applied"
	repositoryLogFieldConstant          = "repository"
	operationLogFieldConstant           = "operation"
	createOperationNameConstant         = "create"
	switchOperationNameConstant         = "switch"
	deleteOperationNameConstant         = "delete"
	showOperationNameConstant           = "show"
	updateOperationNameConstant         = "update"
	pullOperationNameConstant           = "pull"
)

// ErrBranchNameRequired indicates the branch name option was empty.
var ErrBranchNameRequired = errors.New(branchNameRequiredMessageConstant)

// ErrGitManagerNotConfigured indicates the git manager dependency was missing.
var ErrGitManagerNotConfigured = errors.New(gitManagerMissingMessageConstant)

// ErrModuleServiceNotConfigured indicates the module service dependency was missing.
var ErrModuleServiceNotConfigured = errors.New(moduleServiceMissingMessageConstant)

// ErrLoggerNotConfigured indicates the logger dependency was missing.
var ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)

// GitManager exposes the git operations branch fan-outs rely on.
type GitManager interface {
	Checkout(executionContext context.Context, repositoryPath string, revision string) error
	CheckoutNewBranch(executionContext context.Context, repositoryPath string, branchName string) error
	ListBranches(executionContext context.Context, repositoryPath string) (string, error)
	DeleteBranch(executionContext context.Context, repositoryPath string, branchName string) (string, error)
	Fetch(executionContext context.Context, repositoryPath string) error
	FetchBranch(executionContext context.Context, repositoryPath string, branchName string) error
	Rebase(executionContext context.Context, repositoryPath string, revision string) (string, error)
	Merge(executionContext context.Context, repositoryPath string, revision string) (string, error)
	Pull(executionContext context.Context, repositoryPath string, rebase bool) (string, error)
}

// ModuleCoordinator exposes the module operations branch fan-outs rely on.
type ModuleCoordinator interface {
	CollectRepositories(executionContext context.Context) ([]shared.Repository, error)
	SyncAllModules(executionContext context.Context, enabledOnly bool, strategy modules.UpdateStrategy) ([]modules.SyncedModule, error)
}

// Dependencies enumerates the collaborators required for branch operations.
type Dependencies struct {
	GitManager    GitManager
	ModuleService ModuleCoordinator
	Logger        *zap.Logger
}

// Service fans branch operations out across the base repository and enabled modules.
//
// Fan-outs are best effort: a failure in one repository is recorded and the
// remaining repositories are still processed.
type Service struct {
	gitManager    GitManager
	moduleService ModuleCoordinator
	logger        *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.GitManager == nil {
		return nil, ErrGitManagerNotConfigured
	}
	if dependencies.ModuleService == nil {
		return nil, ErrModuleServiceNotConfigured
	}
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	return &Service{
		gitManager:    dependencies.GitManager,
		moduleService: dependencies.ModuleService,
		logger:        dependencies.Logger,
	}, nil
}

// CreateBranch creates the named branch across the repository set.
//
// When a base revision is provided the base repository is moved there first and
// every enabled module is synced to its pinned revision before branching.
func (service *Service) CreateBranch(executionContext context.Context, branchName string, baseRevision string) ([]shared.OperationResult, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return nil, ErrBranchNameRequired
	}

	if len(strings.TrimSpace(baseRevision)) > 0 {
		if checkoutError := service.gitManager.Checkout(executionContext, "", baseRevision); checkoutError != nil {
			return nil, checkoutError
		}
		if _, syncError := service.moduleService.SyncAllModules(executionContext, true, modules.StrategyCheckout); syncError != nil {
			return nil, syncError
		}
	}

	return service.fanOut(executionContext, createOperationNameConstant, func(repository shared.Repository) (string, error) {
		return "", service.gitManager.CheckoutNewBranch(executionContext, repository.Directory, trimmedBranchName)
	})
}

// ShowBranches lists the local branches of every repository in the set.
func (service *Service) ShowBranches(executionContext context.Context) ([]shared.OperationResult, error) {
	return service.fanOut(executionContext, showOperationNameConstant, func(repository shared.Repository) (string, error) {
		return service.gitManager.ListBranches(executionContext, repository.Directory)
	})
}

// SwitchBranch checks the named branch out in every repository in the set.
func (service *Service) SwitchBranch(executionContext context.Context, branchName string) ([]shared.OperationResult, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return nil, ErrBranchNameRequired
	}

	return service.fanOut(executionContext, switchOperationNameConstant, func(repository shared.Repository) (string, error) {
		return "", service.gitManager.Checkout(executionContext, repository.Directory, trimmedBranchName)
	})
}

// DeleteBranch force-deletes the named branch in every repository in the set.
func (service *Service) DeleteBranch(executionContext context.Context, branchName string) ([]shared.OperationResult, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return nil, ErrBranchNameRequired
	}

	return service.fanOut(executionContext, deleteOperationNameConstant, func(repository shared.Repository) (string, error) {
		return service.gitManager.DeleteBranch(executionContext, repository.Directory, trimmedBranchName)
	})
}

// UpdateBranch brings the current branch up to date with the named branch.
//
// Every repository is fetched first: the full origin remote for remote
// branches, only the named branch for local ones. The base repository is then
// rebased onto or merged with the branch, and enabled modules are synced to
// the revisions pinned for the resulting base commit.
func (service *Service) UpdateBranch(executionContext context.Context, branchName string, localBranch bool, rebase bool) ([]shared.OperationResult, error) {
	trimmedBranchName := strings.TrimSpace(branchName)
	if len(trimmedBranchName) == 0 {
		return nil, ErrBranchNameRequired
	}

	repositories, collectError := service.moduleService.CollectRepositories(executionContext)
	if collectError != nil {
		return nil, collectError
	}
	for _, repository := range repositories {
		fetchError := service.fetchForUpdate(executionContext, repository.Directory, trimmedBranchName, localBranch)
		if fetchError != nil {
			return nil, fetchError
		}
	}

	baseOutput, baseError := service.applyUpdateToBase(executionContext, trimmedBranchName, rebase)
	return service.syncAfterBaseOperation(executionContext, updateOperationNameConstant, baseOutput, baseError, rebase)
}

// Pull integrates remote changes into the base repository and syncs modules to the result.
func (service *Service) Pull(executionContext context.Context, rebase bool) ([]shared.OperationResult, error) {
	baseOutput, baseError := service.gitManager.Pull(executionContext, "", rebase)
	return service.syncAfterBaseOperation(executionContext, pullOperationNameConstant, baseOutput, baseError, rebase)
}

func (service *Service) fetchForUpdate(executionContext context.Context, repositoryPath string, branchName string, localBranch bool) error {
	if localBranch {
		return service.gitManager.FetchBranch(executionContext, repositoryPath, branchName)
	}
	return service.gitManager.Fetch(executionContext, repositoryPath)
}

func (service *Service) applyUpdateToBase(executionContext context.Context, branchName string, rebase bool) (string, error) {
	if rebase {
		return service.gitManager.Rebase(executionContext, "", branchName)
	}
	return service.gitManager.Merge(executionContext, "", branchName)
}

func (service *Service) syncAfterBaseOperation(executionContext context.Context, operationName string, baseOutput string, baseError error, rebase bool) ([]shared.OperationResult, error) {
	results := []shared.OperationResult{{
		RepositoryName: shared.BaseRepositoryName,
		Output:         baseOutput,
		Err:            baseError,
	}}
	if baseError != nil {
		return results, nil
	}

	strategy := modules.StrategyMerge
	if rebase {
		strategy = modules.StrategyRebase
	}

	syncedModules, syncError := service.moduleService.SyncAllModules(executionContext, true, strategy)
	if syncError != nil {
		return nil, syncError
	}
	for _, syncedModule := range syncedModules {
		service.logger.Debug(branchOperationLogMessageConstant,
			zap.String(operationLogFieldConstant, operationName),
			zap.String(repositoryLogFieldConstant, syncedModule.ModuleName),
		)
		results = append(results, shared.OperationResult{
			RepositoryName: syncedModule.ModuleName,
			Output:         syncedModule.Revision,
			Err:            syncedModule.Err,
		})
	}
	return results, nil
}

func (service *Service) fanOut(executionContext context.Context, operationName string, apply func(repository shared.Repository) (string, error)) ([]shared.OperationResult, error) {
	repositories, collectError := service.moduleService.CollectRepositories(executionContext)
	if collectError != nil {
		return nil, collectError
	}

	results := make([]shared.OperationResult, 0, len(repositories))
	for _, repository := range repositories {
		output, operationError := apply(repository)
		service.logger.Debug(branchOperationLogMessageConstant,
			zap.String(operationLogFieldConstant, operationName),
			zap.String(repositoryLogFieldConstant, repository.Name),
		)
		results = append(results, shared.OperationResult{
			RepositoryName: repository.Name,
			Output:         output,
			Err:            operationError,
		})
	}
	return results, nil
}
