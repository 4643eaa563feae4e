package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/dependencies"
	"github.com/evergreen-ci/evg-module-manager/internal/evgcli"
	"github.com/evergreen-ci/evg-module-manager/internal/githubcli"
	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
)

const repositoriesFailedMessageConstant = "one or more repositories reported an error"

// ErrRepositoriesFailed signals that a fan-out finished with at least one per-repository failure.
var ErrRepositoriesFailed = errors.New(repositoriesFailedMessageConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// OptionsProvider yields the resolved global options for command execution.
type OptionsProvider func() dependencies.Options

// ServiceOverrides lets tests substitute concrete collaborators for the
// defaults resolved from the process environment.
type ServiceOverrides struct {
	Executor          dependencies.ShellExecutor
	RepositoryManager *gitrepo.RepositoryManager
	ProjectAPI        modules.ProjectConfigAPI
	ModuleService     *modules.Service
	EvergreenCLI      *evgcli.Service
	GitHubClient      *githubcli.Client
}

type coreServices struct {
	executor          dependencies.ShellExecutor
	repositoryManager *gitrepo.RepositoryManager
	moduleService     *modules.Service
	evergreenCLI      *evgcli.Service
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveOptions(provider OptionsProvider) dependencies.Options {
	if provider == nil {
		return dependencies.Options{}
	}
	return provider()
}

func resolveHumanReadableLogging(provider func() bool) bool {
	if provider == nil {
		return false
	}
	return provider()
}

// resolveCoreServices constructs the collaborators shared by most commands:
// the shell executor, repository manager, Evergreen CLI bridge, and the module
// service. An injected module service short-circuits Evergreen API resolution
// so tests never need credentials.
func resolveCoreServices(logger *zap.Logger, humanReadableLogging bool, globalOptions dependencies.Options, overrides ServiceOverrides) (coreServices, error) {
	shellExecutor, executorError := dependencies.ResolveShellExecutor(overrides.Executor, logger, humanReadableLogging)
	if executorError != nil {
		return coreServices{}, executorError
	}

	repositoryManager, managerError := dependencies.ResolveRepositoryManager(overrides.RepositoryManager, shellExecutor)
	if managerError != nil {
		return coreServices{}, managerError
	}

	evergreenCLI, evergreenCLIError := dependencies.ResolveEvergreenCLIService(overrides.EvergreenCLI, shellExecutor)
	if evergreenCLIError != nil {
		return coreServices{}, evergreenCLIError
	}

	moduleService := overrides.ModuleService
	if moduleService == nil {
		projectAPI := overrides.ProjectAPI
		if projectAPI == nil {
			evergreenClient, clientError := dependencies.ResolveEvergreenClient(nil, globalOptions.CredentialsPath)
			if clientError != nil {
				return coreServices{}, clientError
			}
			projectAPI = evergreenClient
		}

		wiredModuleService, moduleServiceError := dependencies.ResolveModuleService(nil, dependencies.ModuleServiceCollaborators{
			Executor:          shellExecutor,
			RepositoryManager: repositoryManager,
			ProjectAPI:        projectAPI,
			Evaluator:         evergreenCLI,
			Logger:            logger,
			ProjectIdentifier: globalOptions.ProjectIdentifier,
			ModulesDirectory:  globalOptions.ModulesDirectory,
		})
		if moduleServiceError != nil {
			return coreServices{}, moduleServiceError
		}
		moduleService = wiredModuleService
	}

	return coreServices{
		executor:          shellExecutor,
		repositoryManager: repositoryManager,
		moduleService:     moduleService,
		evergreenCLI:      evergreenCLI,
	}, nil
}

// renderFanOutResults prints per-repository outcomes and reports an error when
// any repository failed so the command exits non-zero.
func renderFanOutResults(command *cobra.Command, operationResults []shared.OperationResult) error {
	renderer := ui.NewConsoleRenderer(command.OutOrStdout())
	renderer.RenderOperationResults(operationResults)
	if shared.AnyFailed(operationResults) {
		return ErrRepositoriesFailed
	}
	return nil
}
