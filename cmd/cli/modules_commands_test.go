package cli_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/cmd/cli"
)

const (
	moduleFlagArgumentConstant       = "--module"
	enabledFlagArgumentConstant      = "--enabled"
	missingModuleNameMessageFragment = "module name is required"
	enabledMarkerConstant            = "[enabled]"
)

func TestListModulesCommand(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		expectedNames   []string
		unexpectedNames []string
	}{
		{
			name:          "lists_all_declared_modules",
			arguments:     []string{},
			expectedNames: []string{fixtureEnterpriseModuleConstant, fixtureWiredTigerModuleConstant},
		},
		{
			name:            "enabled_flag_filters_to_enabled_modules",
			arguments:       []string{enabledFlagArgumentConstant},
			expectedNames:   []string{fixtureEnterpriseModuleConstant},
			unexpectedNames: []string{fixtureWiredTigerModuleConstant},
		},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			disableColorOutput(subtest)
			fixture := newModuleFixture(subtest, fixtureEnterpriseModuleConstant)

			builder := cli.ListModulesCommandBuilder{
				ServiceOverrides: cli.ServiceOverrides{
					Executor:      &scriptedExecutor{},
					ModuleService: fixture.service,
				},
			}
			command, buildError := builder.Build()
			require.NoError(subtest, buildError)

			commandOutput, executionError := executeCommand(command, testCase.arguments...)
			require.NoError(subtest, executionError)

			for _, expectedName := range testCase.expectedNames {
				require.Contains(subtest, commandOutput, expectedName)
			}
			for _, unexpectedName := range testCase.unexpectedNames {
				require.NotContains(subtest, commandOutput, unexpectedName)
			}
			require.Contains(subtest, commandOutput, enabledMarkerConstant)
		})
	}
}

func TestEnableCommand(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance)

	builder := cli.EnableCommandBuilder{
		ServiceOverrides: cli.ServiceOverrides{
			Executor:      &scriptedExecutor{},
			ModuleService: fixture.service,
		},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command, moduleFlagArgumentConstant, fixtureEnterpriseModuleConstant)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Create symlink: "+fixture.linkPath(fixtureEnterpriseModuleConstant))
	require.Contains(testInstance, commandOutput, "Module enterprise enabled.")

	linkInformation, lstatError := os.Lstat(fixture.linkPath(fixtureEnterpriseModuleConstant))
	require.NoError(testInstance, lstatError)
	require.NotZero(testInstance, linkInformation.Mode()&os.ModeSymlink)

	require.Equal(testInstance, []string{fixtureEnterpriseCloneNameConstant}, fixture.gitManager.clonedModules)
	require.Contains(testInstance, fixture.gitManager.checkouts, fixture.linkPath(fixtureEnterpriseModuleConstant)+" "+fixtureEnterpriseRevisionConstant)
}

func TestEnableCommandRequiresModuleName(testInstance *testing.T) {
	builder := cli.EnableCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), missingModuleNameMessageFragment)
	require.Contains(testInstance, commandOutput, command.UseLine())
}

func TestDisableCommand(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)

	builder := cli.DisableCommandBuilder{
		ServiceOverrides: cli.ServiceOverrides{
			Executor:      &scriptedExecutor{},
			ModuleService: fixture.service,
		},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command, moduleFlagArgumentConstant, fixtureEnterpriseModuleConstant)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Module enterprise disabled.")

	_, lstatError := os.Lstat(fixture.linkPath(fixtureEnterpriseModuleConstant))
	require.Error(testInstance, lstatError)
}

func TestDisableCommandRequiresModuleName(testInstance *testing.T) {
	builder := cli.DisableCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), missingModuleNameMessageFragment)
	require.Contains(testInstance, commandOutput, command.UseLine())
}
