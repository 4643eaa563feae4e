package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/evergreen"
	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	fixtureProjectIdentifierConstant   = "mongodb-mongo-master"
	fixtureProjectBranchConstant       = "master"
	fixtureEnterpriseModuleConstant    = "enterprise"
	fixtureWiredTigerModuleConstant    = "wiredtiger"
	fixtureEnterpriseRevisionConstant  = "0f3a1c4b9d2e8a7f6c5b4a3d2e1f0c9b8a7d6e5f"
	fixtureWiredTigerRevisionConstant  = "9b8a7d6e5f0f3a1c4b9d2e8a7f6c5b4a3d2e1f0c"
	fixtureMergeBaseRevisionConstant   = "4a3d2e1f0c9b8a7d6e5f0f3a1c4b9d2e8a7f6c5b"
	fixtureEnterpriseRemoteConstant    = "git@github.com:10gen/mongo-enterprise-modules.git"
	fixtureEnterpriseCloneNameConstant = "mongo-enterprise-modules"
	fixtureWiredTigerRemoteConstant    = "git@github.com:wiredtiger/wiredtiger.git"
	fixtureWiredTigerBranchConstant    = "develop"
	fixtureModulesDirectoryName        = "modules"
	fixturePrefixDirectoryName         = "src"
	argumentSeparatorConstant          = " "
	gitToolNameConstant                = "git"
	evergreenToolNameConstant          = "evergreen"
	githubToolNameConstant             = "gh"
)

// recordedInvocation captures one command the scripted executor received.
type recordedInvocation struct {
	toolName string
	details  execshell.CommandDetails
}

// scriptedExecutor satisfies dependencies.ShellExecutor with canned responses
// keyed by the space-joined argument list.
type scriptedExecutor struct {
	gitOutputs       map[string]string
	evergreenOutputs map[string]string
	githubOutputs    map[string]string
	failures         map[string]error
	invocations      []recordedInvocation
}

func (executor *scriptedExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.respond(gitToolNameConstant, details, executor.gitOutputs)
}

func (executor *scriptedExecutor) ExecuteEvergreen(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.respond(evergreenToolNameConstant, details, executor.evergreenOutputs)
}

func (executor *scriptedExecutor) ExecuteGitHubCLI(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.respond(githubToolNameConstant, details, executor.githubOutputs)
}

func (executor *scriptedExecutor) respond(toolName string, details execshell.CommandDetails, outputs map[string]string) (execshell.ExecutionResult, error) {
	executor.invocations = append(executor.invocations, recordedInvocation{toolName: toolName, details: details})
	argumentKey := strings.Join(details.Arguments, argumentSeparatorConstant)
	if failure, failed := executor.failures[toolName+argumentSeparatorConstant+argumentKey]; failed {
		return execshell.ExecutionResult{ExitCode: 1}, failure
	}
	return execshell.ExecutionResult{StandardOutput: outputs[argumentKey]}, nil
}

func (executor *scriptedExecutor) invokedArguments(toolName string) []string {
	invokedArguments := make([]string, 0, len(executor.invocations))
	for _, invocation := range executor.invocations {
		if invocation.toolName == toolName {
			invokedArguments = append(invokedArguments, strings.Join(invocation.details.Arguments, argumentSeparatorConstant))
		}
	}
	return invokedArguments
}

type stubModuleResolver struct {
	declaredModules []modules.Module
	projectBranch   string
}

func (resolver *stubModuleResolver) Modules(_ context.Context, _ string) ([]modules.Module, error) {
	return resolver.declaredModules, nil
}

func (resolver *stubModuleResolver) Module(_ context.Context, projectIdentifier string, moduleName string) (modules.Module, error) {
	for _, declaredModule := range resolver.declaredModules {
		if declaredModule.Name == moduleName {
			return declaredModule, nil
		}
	}
	return modules.Module{}, modules.UnknownModuleError{ModuleName: moduleName, ProjectIdentifier: projectIdentifier}
}

func (resolver *stubModuleResolver) ProjectBranch(_ context.Context, _ string) (string, error) {
	return resolver.projectBranch, nil
}

type stubManifestFetcher struct {
	manifest evergreen.Manifest
}

func (fetcher *stubManifestFetcher) Manifest(_ context.Context, _ string, _ string) (evergreen.Manifest, error) {
	return fetcher.manifest, nil
}

type stubModulesGitManager struct {
	mergeBaseRevision string
	clonedModules     []string
	fetchedPaths      []string
	checkouts         []string
}

func (manager *stubModulesGitManager) Clone(_ context.Context, _ string, _ string, localName string, _ string) error {
	manager.clonedModules = append(manager.clonedModules, localName)
	return nil
}

func (manager *stubModulesGitManager) Fetch(_ context.Context, repositoryPath string) error {
	manager.fetchedPaths = append(manager.fetchedPaths, repositoryPath)
	return nil
}

func (manager *stubModulesGitManager) Checkout(_ context.Context, repositoryPath string, revision string) error {
	manager.checkouts = append(manager.checkouts, repositoryPath+argumentSeparatorConstant+revision)
	return nil
}

func (manager *stubModulesGitManager) Rebase(_ context.Context, _ string, _ string) (string, error) {
	return "", nil
}

func (manager *stubModulesGitManager) Merge(_ context.Context, _ string, _ string) (string, error) {
	return "", nil
}

func (manager *stubModulesGitManager) MergeBase(_ context.Context, _ string, _ string, _ string) (string, error) {
	return manager.mergeBaseRevision, nil
}

type noopFileLock struct{}

func (noopFileLock) Lock() error   { return nil }
func (noopFileLock) Unlock() error { return nil }

// moduleFixture bundles a module service backed by real filesystem state under
// a temporary directory with stubbed resolver, manifest, and git collaborators.
type moduleFixture struct {
	service          *modules.Service
	gitManager       *stubModulesGitManager
	modulesDirectory string
	enterprise       modules.Module
	wiredtiger       modules.Module
}

func newModuleFixture(testInstance *testing.T, enabledModuleNames ...string) *moduleFixture {
	testInstance.Helper()

	rootDirectory := testInstance.TempDir()
	modulesDirectory := filepath.Join(rootDirectory, fixtureModulesDirectoryName)
	prefixDirectory := filepath.Join(rootDirectory, fixturePrefixDirectoryName)
	require.NoError(testInstance, os.MkdirAll(modulesDirectory, 0o755))
	require.NoError(testInstance, os.MkdirAll(prefixDirectory, 0o755))

	enterpriseModule := modules.Module{
		Name:   fixtureEnterpriseModuleConstant,
		Repo:   fixtureEnterpriseRemoteConstant,
		Branch: fixtureProjectBranchConstant,
		Prefix: prefixDirectory,
		Owner:  "10gen",
	}
	wiredtigerModule := modules.Module{
		Name:   fixtureWiredTigerModuleConstant,
		Repo:   fixtureWiredTigerRemoteConstant,
		Branch: fixtureWiredTigerBranchConstant,
		Prefix: prefixDirectory,
		Owner:  "wiredtiger",
	}

	for _, enabledModuleName := range enabledModuleNames {
		clonePath := filepath.Join(modulesDirectory, enabledModuleName)
		require.NoError(testInstance, os.MkdirAll(clonePath, 0o755))
		require.NoError(testInstance, os.Symlink(clonePath, filepath.Join(prefixDirectory, enabledModuleName)))
	}

	stateTracker, trackerError := modules.NewStateTracker(shared.OSFileSystem{}, modulesDirectory)
	require.NoError(testInstance, trackerError)

	gitManager := &stubModulesGitManager{mergeBaseRevision: fixtureMergeBaseRevisionConstant}
	moduleService, serviceError := modules.NewService(modules.Dependencies{
		Resolver:     &stubModuleResolver{declaredModules: []modules.Module{enterpriseModule, wiredtigerModule}, projectBranch: fixtureProjectBranchConstant},
		StateTracker: stateTracker,
		GitManager:   gitManager,
		ManifestAPI: &stubManifestFetcher{manifest: evergreen.Manifest{
			Revision: fixtureMergeBaseRevisionConstant,
			Project:  fixtureProjectIdentifierConstant,
			Modules: map[string]evergreen.ManifestModule{
				fixtureEnterpriseModuleConstant: {Revision: fixtureEnterpriseRevisionConstant},
				fixtureWiredTigerModuleConstant: {Revision: fixtureWiredTigerRevisionConstant},
			},
		}},
		FileSystem:  shared.OSFileSystem{},
		Logger:      zap.NewNop(),
		LockFactory: func(string) modules.FileLock { return noopFileLock{} },
	}, modules.Options{
		ProjectIdentifier: fixtureProjectIdentifierConstant,
		ModulesDirectory:  modulesDirectory,
	})
	require.NoError(testInstance, serviceError)

	return &moduleFixture{
		service:          moduleService,
		gitManager:       gitManager,
		modulesDirectory: modulesDirectory,
		enterprise:       enterpriseModule,
		wiredtiger:       wiredtigerModule,
	}
}

func (fixture *moduleFixture) linkPath(moduleName string) string {
	return filepath.Join(fixture.enterprise.Prefix, moduleName)
}

func executeCommand(builtCommand *cobra.Command, arguments ...string) (string, error) {
	outputBuffer := &bytes.Buffer{}
	builtCommand.SetContext(context.Background())
	builtCommand.SetOut(outputBuffer)
	builtCommand.SetErr(outputBuffer)
	// A nil slice makes cobra fall back to os.Args[1:], leaking the test
	// binary's own flags into commands that disable flag parsing.
	builtCommand.SetArgs(append([]string{}, arguments...))
	executionError := builtCommand.Execute()
	return outputBuffer.String(), executionError
}

func disableColorOutput(testInstance *testing.T) {
	testInstance.Helper()
	previousSetting := color.NoColor
	color.NoColor = true
	testInstance.Cleanup(func() {
		color.NoColor = previousSetting
	})
}
