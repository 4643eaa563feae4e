package cli_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/cmd/cli"
	"github.com/evergreen-ci/evg-module-manager/internal/dependencies"
	"github.com/evergreen-ci/evg-module-manager/internal/validation"
)

const (
	fixturePatchIdentifierConstant = "63b4a5d7f84ae82d8b3e9f21"
	fixtureBuildURLConstant        = "https://spruce.mongodb.com/version/" + fixturePatchIdentifierConstant
	patchCommandOutputFixture      = "ID : " + fixturePatchIdentifierConstant + "\nBuild : " + fixtureBuildURLConstant + "\n"
	createPatchInvocationConstant  = "patch --project " + fixtureProjectIdentifierConstant + " --skip_confirm"
	setModuleInvocationConstant    = "patch-set-module --module " + fixtureEnterpriseModuleConstant + " --patch " + fixturePatchIdentifierConstant + " --skip_confirm"
	commitQueueInvocationConstant  = "commit-queue merge --project " + fixtureProjectIdentifierConstant + " --pause"
	resumeInvocationConstant       = "commit-queue merge --resume " + fixturePatchIdentifierConstant
	evergreenBinaryNameConstant    = "evergreen"
	locatedBinaryPathConstant      = "/usr/local/bin/evergreen"
)

type stubCommandLocator struct {
	availableCommands map[string]bool
}

func (locator stubCommandLocator) LookPath(executableName string) (string, error) {
	if locator.availableCommands[executableName] {
		return locatedBinaryPathConstant, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func patchTestOptionsProvider() dependencies.Options {
	return dependencies.Options{ProjectIdentifier: fixtureProjectIdentifierConstant}
}

func TestPatchCommandSubmitsEnabledModules(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)
	executor := &scriptedExecutor{evergreenOutputs: map[string]string{
		createPatchInvocationConstant: patchCommandOutputFixture,
	}}

	builder := cli.PatchCommandBuilder{
		OptionsProvider: patchTestOptionsProvider,
		ServiceOverrides: cli.ServiceOverrides{
			Executor:      executor,
			ModuleService: fixture.service,
		},
		CommandLocator: stubCommandLocator{availableCommands: map[string]bool{evergreenBinaryNameConstant: true}},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Patch Submitted: "+fixtureBuildURLConstant)

	evergreenInvocations := executor.invokedArguments(evergreenToolNameConstant)
	require.Equal(testInstance, []string{createPatchInvocationConstant, setModuleInvocationConstant}, evergreenInvocations)

	moduleInvocation := executor.invocations[len(executor.invocations)-1]
	require.Equal(testInstance, fixture.linkPath(fixtureEnterpriseModuleConstant), moduleInvocation.details.WorkingDirectory)
}

func TestCommitQueueCommandFinalizesAfterModules(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)
	executor := &scriptedExecutor{evergreenOutputs: map[string]string{
		commitQueueInvocationConstant: patchCommandOutputFixture,
	}}

	builder := cli.CommitQueueCommandBuilder{
		OptionsProvider: patchTestOptionsProvider,
		ServiceOverrides: cli.ServiceOverrides{
			Executor:      executor,
			ModuleService: fixture.service,
		},
		CommandLocator: stubCommandLocator{availableCommands: map[string]bool{evergreenBinaryNameConstant: true}},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Patch Submitted: "+fixtureBuildURLConstant)

	evergreenInvocations := executor.invokedArguments(evergreenToolNameConstant)
	require.Len(testInstance, evergreenInvocations, 3)
	require.Equal(testInstance, commitQueueInvocationConstant, evergreenInvocations[0])
	require.Equal(testInstance, resumeInvocationConstant, evergreenInvocations[2])
}

func TestPatchCommandRequiresEvergreenBinary(testInstance *testing.T) {
	executor := &scriptedExecutor{}

	builder := cli.PatchCommandBuilder{
		OptionsProvider:  patchTestOptionsProvider,
		ServiceOverrides: cli.ServiceOverrides{Executor: executor},
		CommandLocator:   stubCommandLocator{},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	_, executionError := executeCommand(command)
	require.Error(testInstance, executionError)
	missingCommand := &validation.MissingCommandError{}
	require.ErrorAs(testInstance, executionError, &missingCommand)
	require.Equal(testInstance, evergreenBinaryNameConstant, missingCommand.CommandName)
	require.Empty(testInstance, executor.invocations)
}
