// Package dependencies provides default constructors for the collaborators
// command builders accept so tests can inject stubs while production commands
// resolve real implementations lazily.
package dependencies

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/evergreen"
	"github.com/evergreen-ci/evg-module-manager/internal/evgcli"
	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/githubcli"
	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
	pathutils "github.com/evergreen-ci/evg-module-manager/internal/utils/path"
)

const evergreenAPIRequestTimeoutConstant = 30 * time.Second

// ShellExecutor combines the per-binary execution interfaces satisfied by execshell.ShellExecutor.
type ShellExecutor interface {
	shared.GitExecutor
	shared.EvergreenCLIExecutor
	shared.GitHubCLIExecutor
}

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return shared.OSFileSystem{}
}

// ResolveShellExecutor returns the provided executor or constructs a shell-backed
// default, attaching a console event logger when human-readable output is requested.
func ResolveShellExecutor(existing ShellExecutor, logger *zap.Logger, humanReadableLogging bool) (ShellExecutor, error) {
	if existing != nil {
		return existing, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner)
	if creationError != nil {
		return nil, creationError
	}
	if humanReadableLogging {
		shellExecutor.SetEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

// ResolveRepositoryManager returns the provided manager or constructs one from the executor.
func ResolveRepositoryManager(existing *gitrepo.RepositoryManager, executor shared.GitExecutor) (*gitrepo.RepositoryManager, error) {
	if existing != nil {
		return existing, nil
	}
	return gitrepo.NewRepositoryManager(executor)
}

// ResolveEvergreenClient returns the provided client or constructs one from the
// credentials stored at the supplied configuration path.
func ResolveEvergreenClient(existing *evergreen.Client, credentialsPath string) (*evergreen.Client, error) {
	if existing != nil {
		return existing, nil
	}

	credentials, credentialsError := evergreen.LoadCredentials(credentialsPath, pathutils.NewHomeExpander())
	if credentialsError != nil {
		return nil, credentialsError
	}
	httpClient := &http.Client{Timeout: evergreenAPIRequestTimeoutConstant}
	return evergreen.NewClient(httpClient, credentials)
}

// ResolveEvergreenCLIService returns the provided service or constructs one from the executor.
func ResolveEvergreenCLIService(existing *evgcli.Service, executor shared.EvergreenCLIExecutor) (*evgcli.Service, error) {
	if existing != nil {
		return existing, nil
	}
	return evgcli.NewService(executor)
}

// ResolveGitHubClient returns the provided client or constructs one from the executor.
func ResolveGitHubClient(existing *githubcli.Client, executor shared.GitHubCLIExecutor) (*githubcli.Client, error) {
	if existing != nil {
		return existing, nil
	}
	return githubcli.NewClient(executor)
}

// ResolveModuleRegistry returns the provided resolver or constructs a registry
// combining the Evergreen API client with the CLI evaluator.
func ResolveModuleRegistry(existing modules.ModuleResolver, projectAPI modules.ProjectConfigAPI, evaluator modules.ConfigurationEvaluator) (modules.ModuleResolver, error) {
	if existing != nil {
		return existing, nil
	}
	return modules.NewRegistry(projectAPI, evaluator)
}

// ResolveStateTracker returns the provided tracker or constructs one for the modules directory.
func ResolveStateTracker(existing *modules.StateTracker, fileSystem shared.FileSystem, modulesDirectory string) (*modules.StateTracker, error) {
	if existing != nil {
		return existing, nil
	}
	return modules.NewStateTracker(fileSystem, modulesDirectory)
}

// Options carries the global configuration resolved by the root command.
type Options struct {
	ProjectIdentifier string
	ModulesDirectory  string
	CredentialsPath   string
}

// ModuleServiceCollaborators bundles the pieces the module service is wired from.
type ModuleServiceCollaborators struct {
	Executor          ShellExecutor
	RepositoryManager *gitrepo.RepositoryManager
	ProjectAPI        modules.ProjectConfigAPI
	Evaluator         modules.ConfigurationEvaluator
	FileSystem        shared.FileSystem
	Logger            *zap.Logger
	ProjectIdentifier string
	ModulesDirectory  string
}

// ResolveModuleService wires the registry, state tracker, and module service
// from the provided collaborators.
func ResolveModuleService(existing *modules.Service, collaborators ModuleServiceCollaborators) (*modules.Service, error) {
	if existing != nil {
		return existing, nil
	}

	moduleRegistry, registryError := ResolveModuleRegistry(nil, collaborators.ProjectAPI, collaborators.Evaluator)
	if registryError != nil {
		return nil, registryError
	}
	fileSystem := ResolveFileSystem(collaborators.FileSystem)
	stateTracker, trackerError := ResolveStateTracker(nil, fileSystem, collaborators.ModulesDirectory)
	if trackerError != nil {
		return nil, trackerError
	}
	return modules.NewService(modules.Dependencies{
		Resolver:     moduleRegistry,
		StateTracker: stateTracker,
		GitManager:   collaborators.RepositoryManager,
		ManifestAPI:  collaborators.ProjectAPI,
		FileSystem:   fileSystem,
		Logger:       collaborators.Logger,
	}, modules.Options{
		ProjectIdentifier: collaborators.ProjectIdentifier,
		ModulesDirectory:  collaborators.ModulesDirectory,
	})
}
