package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/internal/localconfig"
	"github.com/evergreen-ci/evg-module-manager/internal/utils"
)

const (
	overrideProjectIdentifierConstant = "mongodb-mongo-release-7.0"
	configuredModulesDirectory        = "../checkouts"
	localConfigurationFixture         = "evg_project: sys-perf\nmodules_directory: ../perf-modules\n"
)

func TestNewApplicationRegistersCommands(testInstance *testing.T) {
	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)

	registeredNames := map[string]bool{}
	for _, registeredCommand := range application.rootCommand.Commands() {
		registeredNames[registeredCommand.Name()] = true
	}

	expectedNames := []string{
		"list-modules",
		"enable",
		"disable",
		"git-branch-create",
		"git-branch-update",
		"git-branch-switch",
		"git-branch-delete",
		"git-branch-show",
		"git-pull",
		"git-status",
		"git-add",
		"git-restore",
		"git-commit",
		"evg-patch",
		"evg-commit-queue",
		"pull-request",
		"save-local-config",
	}
	for _, expectedName := range expectedNames {
		require.True(testInstance, registeredNames[expectedName], expectedName)
	}
}

// changeWorkingDirectory mirrors testing.T.Chdir, which requires Go 1.24.
func changeWorkingDirectory(testInstance *testing.T, directory string) {
	testInstance.Helper()
	originalDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NoError(testInstance, os.Chdir(directory))
	testInstance.Cleanup(func() {
		require.NoError(testInstance, os.Chdir(originalDirectory))
	})
}

func TestInitializeConfigurationUsesDefaults(testInstance *testing.T) {
	changeWorkingDirectory(testInstance, testInstance.TempDir())

	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	globalOptions := application.globalOptions()
	require.Equal(testInstance, defaultEvergreenProjectConstant, globalOptions.ProjectIdentifier)
	require.Equal(testInstance, defaultModulesDirectoryConstant, globalOptions.ModulesDirectory)
	require.Equal(testInstance, defaultCredentialsPathConstant, globalOptions.CredentialsPath)
}

func TestInitializeConfigurationReadsLocalFile(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	changeWorkingDirectory(testInstance, workingDirectory)
	require.NoError(testInstance, os.WriteFile(localconfig.FileName, []byte(localConfigurationFixture), 0o644))

	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	globalOptions := application.globalOptions()
	require.Equal(testInstance, "sys-perf", globalOptions.ProjectIdentifier)
	require.Equal(testInstance, "../perf-modules", globalOptions.ModulesDirectory)
}

func TestInitializeConfigurationFlagsOverrideFile(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	changeWorkingDirectory(testInstance, workingDirectory)
	require.NoError(testInstance, os.WriteFile(localconfig.FileName, []byte(localConfigurationFixture), 0o644))

	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(projectFlagNameConstant, overrideProjectIdentifierConstant))
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(modulesDirectoryFlagNameConstant, configuredModulesDirectory))
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	globalOptions := application.globalOptions()
	require.Equal(testInstance, overrideProjectIdentifierConstant, globalOptions.ProjectIdentifier)
	require.Equal(testInstance, configuredModulesDirectory, globalOptions.ModulesDirectory)
}

func TestHumanReadableLoggingFollowsLogFormat(testInstance *testing.T) {
	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)
	require.True(testInstance, application.humanReadableLoggingEnabled())

	application.logFormatFlagValue = string(utils.LogFormatStructured)
	require.False(testInstance, application.humanReadableLoggingEnabled())
}
