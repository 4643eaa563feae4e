package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/branches"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
)

const (
	branchCreateUseConstant              = "git-branch-create"
	branchCreateShortDescriptionConstant = "Create a branch across the base repository and enabled modules"
	branchUpdateUseConstant              = "git-branch-update"
	branchUpdateShortDescriptionConstant = "Update a branch from its upstream across the repository set"
	branchSwitchUseConstant              = "git-branch-switch"
	branchSwitchShortDescriptionConstant = "Switch to a branch across the repository set"
	branchDeleteUseConstant              = "git-branch-delete"
	branchDeleteShortDescriptionConstant = "Delete a branch across the repository set"
	branchShowUseConstant                = "git-branch-show"
	branchShowShortDescriptionConstant   = "Show the branches of every repository in the set"
	gitPullUseConstant                   = "git-pull"
	gitPullShortDescriptionConstant      = "Pull the current branch across the repository set"

	branchFlagNameConstant          = "branch"
	branchFlagShorthandConstant     = "b"
	branchFlagDescriptionConstant   = "Name of the branch"
	revisionFlagNameConstant        = "revision"
	revisionFlagDescriptionConstant = "Revision to base the new branch on"
	localFlagNameConstant           = "local"
	localFlagDescriptionConstant    = "Fetch only the named branch instead of everything from origin"
	rebaseFlagNameConstant          = "rebase"
	rebaseFlagDescriptionConstant   = "Rebase instead of merging"

	missingBranchNameMessageConstant  = "branch name is required; supply --branch"
	branchCreatedHeadingTemplate      = "Branch '%s' created on:"
	branchSwitchedHeadingTemplate     = "Switched to '%s' in:"
	branchDeletedHeadingTemplate      = "Branch '%s' deleted from:"
	branchListingHeadingTemplate      = "Branches in '%s':\n%s\n"
	branchListingFailureTemplate      = "Branches in '%s': %v\n"
)

type branchServiceResolver struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
}

func (resolver branchServiceResolver) resolve() (*branches.Service, error) {
	logger := resolveLogger(resolver.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(resolver.HumanReadableLoggingProvider), resolveOptions(resolver.OptionsProvider), resolver.ServiceOverrides)
	if resolutionError != nil {
		return nil, resolutionError
	}
	return branches.NewService(branches.Dependencies{
		GitManager:    services.repositoryManager,
		ModuleService: services.moduleService,
		Logger:        logger,
	})
}

// BranchCreateCommandBuilder assembles the git-branch-create command.
type BranchCreateCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-branch-create command.
func (builder *BranchCreateCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   branchCreateUseConstant,
		Short: branchCreateShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(branchFlagNameConstant, branchFlagShorthandConstant, "", branchFlagDescriptionConstant)
	command.Flags().String(revisionFlagNameConstant, "", revisionFlagDescriptionConstant)

	return command, nil
}

func (builder *BranchCreateCommandBuilder) run(command *cobra.Command, _ []string) error {
	branchName, branchNameError := requireBranchName(command)
	if branchNameError != nil {
		return branchNameError
	}
	baseRevision, revisionFlagError := command.Flags().GetString(revisionFlagNameConstant)
	if revisionFlagError != nil {
		return revisionFlagError
	}

	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, createError := branchService.CreateBranch(command.Context(), branchName, baseRevision)
	if createError != nil {
		return createError
	}
	return renderHeadedResults(command, fmt.Sprintf(branchCreatedHeadingTemplate, branchName), operationResults)
}

// BranchUpdateCommandBuilder assembles the git-branch-update command.
type BranchUpdateCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-branch-update command.
func (builder *BranchUpdateCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   branchUpdateUseConstant,
		Short: branchUpdateShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(branchFlagNameConstant, branchFlagShorthandConstant, "", branchFlagDescriptionConstant)
	command.Flags().Bool(localFlagNameConstant, false, localFlagDescriptionConstant)
	command.Flags().Bool(rebaseFlagNameConstant, false, rebaseFlagDescriptionConstant)

	return command, nil
}

func (builder *BranchUpdateCommandBuilder) run(command *cobra.Command, _ []string) error {
	branchName, branchNameError := requireBranchName(command)
	if branchNameError != nil {
		return branchNameError
	}
	localOnly, localFlagError := command.Flags().GetBool(localFlagNameConstant)
	if localFlagError != nil {
		return localFlagError
	}
	rebaseRequested, rebaseFlagError := command.Flags().GetBool(rebaseFlagNameConstant)
	if rebaseFlagError != nil {
		return rebaseFlagError
	}

	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, updateError := branchService.UpdateBranch(command.Context(), branchName, localOnly, rebaseRequested)
	if updateError != nil {
		return updateError
	}
	return renderFanOutResults(command, operationResults)
}

// BranchSwitchCommandBuilder assembles the git-branch-switch command.
type BranchSwitchCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-branch-switch command.
func (builder *BranchSwitchCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   branchSwitchUseConstant,
		Short: branchSwitchShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(branchFlagNameConstant, branchFlagShorthandConstant, "", branchFlagDescriptionConstant)

	return command, nil
}

func (builder *BranchSwitchCommandBuilder) run(command *cobra.Command, _ []string) error {
	branchName, branchNameError := requireBranchName(command)
	if branchNameError != nil {
		return branchNameError
	}

	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, switchError := branchService.SwitchBranch(command.Context(), branchName)
	if switchError != nil {
		return switchError
	}
	return renderHeadedResults(command, fmt.Sprintf(branchSwitchedHeadingTemplate, branchName), operationResults)
}

// BranchDeleteCommandBuilder assembles the git-branch-delete command.
type BranchDeleteCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-branch-delete command.
func (builder *BranchDeleteCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   branchDeleteUseConstant,
		Short: branchDeleteShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(branchFlagNameConstant, branchFlagShorthandConstant, "", branchFlagDescriptionConstant)

	return command, nil
}

func (builder *BranchDeleteCommandBuilder) run(command *cobra.Command, _ []string) error {
	branchName, branchNameError := requireBranchName(command)
	if branchNameError != nil {
		return branchNameError
	}

	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, deleteError := branchService.DeleteBranch(command.Context(), branchName)
	if deleteError != nil {
		return deleteError
	}
	return renderHeadedResults(command, fmt.Sprintf(branchDeletedHeadingTemplate, branchName), operationResults)
}

// BranchShowCommandBuilder assembles the git-branch-show command.
type BranchShowCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-branch-show command.
func (builder *BranchShowCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   branchShowUseConstant,
		Short: branchShowShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	return command, nil
}

func (builder *BranchShowCommandBuilder) run(command *cobra.Command, _ []string) error {
	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, showError := branchService.ShowBranches(command.Context())
	if showError != nil {
		return showError
	}

	for _, operationResult := range operationResults {
		if operationResult.Err != nil {
			command.Printf(branchListingFailureTemplate, operationResult.RepositoryName, operationResult.Err)
			continue
		}
		command.Printf(branchListingHeadingTemplate, operationResult.RepositoryName, operationResult.Output)
	}
	if shared.AnyFailed(operationResults) {
		return ErrRepositoriesFailed
	}
	return nil
}

// PullCommandBuilder assembles the git-pull command.
type PullCommandBuilder struct {
	branchServiceResolver
}

// Build constructs the git-pull command.
func (builder *PullCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   gitPullUseConstant,
		Short: gitPullShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().Bool(rebaseFlagNameConstant, false, rebaseFlagDescriptionConstant)

	return command, nil
}

func (builder *PullCommandBuilder) run(command *cobra.Command, _ []string) error {
	rebaseRequested, rebaseFlagError := command.Flags().GetBool(rebaseFlagNameConstant)
	if rebaseFlagError != nil {
		return rebaseFlagError
	}

	branchService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, pullError := branchService.Pull(command.Context(), rebaseRequested)
	if pullError != nil {
		return pullError
	}
	return renderFanOutResults(command, operationResults)
}

func requireBranchName(command *cobra.Command) (string, error) {
	branchName, flagError := command.Flags().GetString(branchFlagNameConstant)
	if flagError != nil {
		return "", flagError
	}
	if len(branchName) == 0 {
		_ = command.Help()
		return "", errors.New(missingBranchNameMessageConstant)
	}
	return branchName, nil
}

// renderHeadedResults prints a heading followed by the repositories the
// operation succeeded on, then reports failures individually.
func renderHeadedResults(command *cobra.Command, heading string, operationResults []shared.OperationResult) error {
	renderer := ui.NewConsoleRenderer(command.OutOrStdout())

	succeededRepositories := make([]string, 0, len(operationResults))
	failedResults := make([]shared.OperationResult, 0, len(operationResults))
	for _, operationResult := range operationResults {
		if operationResult.Err != nil {
			failedResults = append(failedResults, operationResult)
			continue
		}
		succeededRepositories = append(succeededRepositories, operationResult.RepositoryName)
	}

	renderer.RenderBranchAction(heading, succeededRepositories)
	if len(failedResults) == 0 {
		return nil
	}
	renderer.RenderOperationResults(failedResults)
	return ErrRepositoriesFailed
}
