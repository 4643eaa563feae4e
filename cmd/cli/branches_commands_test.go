package cli_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/cmd/cli"
)

const (
	branchFlagArgumentConstant       = "--branch"
	featureBranchNameConstant        = "feature-spool-queue"
	missingBranchNameMessageFragment = "branch name is required"
	checkoutNewBranchInvocation      = "checkout -b " + featureBranchNameConstant
	deleteBranchInvocationConstant   = "branch -D " + featureBranchNameConstant
	branchListingOutputConstant      = "* " + featureBranchNameConstant + "\n  master\n"
)

func TestBranchCreateCommand(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)
	executor := &scriptedExecutor{}

	builder := cli.BranchCreateCommandBuilder{}
	builder.ServiceOverrides = cli.ServiceOverrides{Executor: executor, ModuleService: fixture.service}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command, branchFlagArgumentConstant, featureBranchNameConstant)
	require.NoError(testInstance, executionError)

	require.Contains(testInstance, commandOutput, "Branch '"+featureBranchNameConstant+"' created on:")
	require.Contains(testInstance, commandOutput, " - base")
	require.Contains(testInstance, commandOutput, " - "+fixtureEnterpriseModuleConstant)

	gitInvocations := executor.invokedArguments(gitToolNameConstant)
	require.Equal(testInstance, []string{checkoutNewBranchInvocation, checkoutNewBranchInvocation}, gitInvocations)
}

func TestBranchCreateCommandRequiresBranchName(testInstance *testing.T) {
	builder := cli.BranchCreateCommandBuilder{}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), missingBranchNameMessageFragment)
	require.Contains(testInstance, commandOutput, command.UseLine())
}

func TestBranchShowCommand(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)
	executor := &scriptedExecutor{gitOutputs: map[string]string{"branch": branchListingOutputConstant}}

	builder := cli.BranchShowCommandBuilder{}
	builder.ServiceOverrides = cli.ServiceOverrides{Executor: executor, ModuleService: fixture.service}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command)
	require.NoError(testInstance, executionError)

	require.Contains(testInstance, commandOutput, "Branches in 'base':")
	require.Contains(testInstance, commandOutput, "Branches in '"+fixtureEnterpriseModuleConstant+"':")
	require.Contains(testInstance, commandOutput, featureBranchNameConstant)
}

func TestBranchDeleteCommandReportsFailures(testInstance *testing.T) {
	disableColorOutput(testInstance)
	fixture := newModuleFixture(testInstance, fixtureEnterpriseModuleConstant)
	executor := &scriptedExecutor{
		failures: map[string]error{
			gitToolNameConstant + " " + deleteBranchInvocationConstant: errors.New("branch not found"),
		},
	}

	builder := cli.BranchDeleteCommandBuilder{}
	builder.ServiceOverrides = cli.ServiceOverrides{Executor: executor, ModuleService: fixture.service}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(command, branchFlagArgumentConstant, featureBranchNameConstant)
	require.ErrorIs(testInstance, executionError, cli.ErrRepositoriesFailed)
	require.Contains(testInstance, commandOutput, "base")
	require.Contains(testInstance, commandOutput, fixtureEnterpriseModuleConstant)
}
