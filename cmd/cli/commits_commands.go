package cli

import (
	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/commits"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
)

const (
	gitStatusUseConstant               = "git-status"
	gitStatusShortDescriptionConstant  = "Show the worktree status of every repository in the set"
	gitAddUseConstant                  = "git-add PATHSPEC..."
	gitAddShortDescriptionConstant     = "Stage matching files across the repository set"
	gitRestoreUseConstant              = "git-restore PATHSPEC..."
	gitRestoreShortDescriptionConstant = "Restore matching files across the repository set"
	gitCommitUseConstant               = "git-commit"
	gitCommitShortDescriptionConstant  = "Commit staged changes across the repository set"

	stagedFlagNameConstant           = "staged"
	stagedFlagDescriptionConstant    = "Restore the staged copy of the files"
	messageFlagNameConstant          = "message"
	messageFlagShorthandConstant     = "m"
	messageFlagDescriptionConstant   = "Commit message"
	amendFlagNameConstant            = "amend"
	amendFlagDescriptionConstant     = "Amend the previous commit, reusing its message"
	addFlagNameConstant              = "add"
	addFlagShorthandConstant         = "a"
	addFlagDescriptionConstant       = "Stage modified and deleted files before committing"
	commitCreatedHeadingConstant     = "Commit created in the following repositories:"
	commitAmendedHeadingConstant     = "Commit amended in the following repositories:"
)

type commitServiceResolver struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
}

func (resolver commitServiceResolver) resolve() (*commits.Service, error) {
	logger := resolveLogger(resolver.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(resolver.HumanReadableLoggingProvider), resolveOptions(resolver.OptionsProvider), resolver.ServiceOverrides)
	if resolutionError != nil {
		return nil, resolutionError
	}
	return commits.NewService(commits.Dependencies{
		GitManager:    services.repositoryManager,
		ModuleService: services.moduleService,
		Logger:        logger,
	})
}

// StatusCommandBuilder assembles the git-status command.
type StatusCommandBuilder struct {
	commitServiceResolver
}

// Build constructs the git-status command.
func (builder *StatusCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   gitStatusUseConstant,
		Short: gitStatusShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	return command, nil
}

func (builder *StatusCommandBuilder) run(command *cobra.Command, _ []string) error {
	commitService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	statusResults, statusError := commitService.Status(command.Context())
	if statusError != nil {
		return statusError
	}

	ui.NewConsoleRenderer(command.OutOrStdout()).RenderStatuses(statusResults)
	if shared.AnyFailed(statusResults) {
		return ErrRepositoriesFailed
	}
	return nil
}

// AddCommandBuilder assembles the git-add command.
type AddCommandBuilder struct {
	commitServiceResolver
}

// Build constructs the git-add command.
func (builder *AddCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   gitAddUseConstant,
		Short: gitAddShortDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}

	return command, nil
}

func (builder *AddCommandBuilder) run(command *cobra.Command, arguments []string) error {
	commitService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, addError := commitService.Add(command.Context(), arguments)
	if addError != nil {
		return addError
	}
	return renderFanOutResults(command, operationResults)
}

// RestoreCommandBuilder assembles the git-restore command.
type RestoreCommandBuilder struct {
	commitServiceResolver
}

// Build constructs the git-restore command.
func (builder *RestoreCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   gitRestoreUseConstant,
		Short: gitRestoreShortDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.run,
	}

	command.Flags().Bool(stagedFlagNameConstant, false, stagedFlagDescriptionConstant)

	return command, nil
}

func (builder *RestoreCommandBuilder) run(command *cobra.Command, arguments []string) error {
	restoreStaged, stagedFlagError := command.Flags().GetBool(stagedFlagNameConstant)
	if stagedFlagError != nil {
		return stagedFlagError
	}

	commitService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, restoreError := commitService.Restore(command.Context(), arguments, restoreStaged)
	if restoreError != nil {
		return restoreError
	}
	return renderFanOutResults(command, operationResults)
}

// CommitCommandBuilder assembles the git-commit command.
type CommitCommandBuilder struct {
	commitServiceResolver
}

// Build constructs the git-commit command.
func (builder *CommitCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   gitCommitUseConstant,
		Short: gitCommitShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(messageFlagNameConstant, messageFlagShorthandConstant, "", messageFlagDescriptionConstant)
	command.Flags().Bool(amendFlagNameConstant, false, amendFlagDescriptionConstant)
	command.Flags().BoolP(addFlagNameConstant, addFlagShorthandConstant, false, addFlagDescriptionConstant)

	return command, nil
}

func (builder *CommitCommandBuilder) run(command *cobra.Command, _ []string) error {
	commitMessage, messageFlagError := command.Flags().GetString(messageFlagNameConstant)
	if messageFlagError != nil {
		return messageFlagError
	}
	amendRequested, amendFlagError := command.Flags().GetBool(amendFlagNameConstant)
	if amendFlagError != nil {
		return amendFlagError
	}
	includeAll, addFlagError := command.Flags().GetBool(addFlagNameConstant)
	if addFlagError != nil {
		return addFlagError
	}

	commitService, serviceError := builder.resolve()
	if serviceError != nil {
		return serviceError
	}
	operationResults, commitError := commitService.Commit(command.Context(), commits.CommitRequest{
		Message:    commitMessage,
		Amend:      amendRequested,
		IncludeAll: includeAll,
	})
	if commitError != nil {
		return commitError
	}

	commitHeading := commitCreatedHeadingConstant
	if amendRequested {
		commitHeading = commitAmendedHeadingConstant
	}
	return renderHeadedResults(command, commitHeading, operationResults)
}
