package cli

import (
	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/dependencies"
	"github.com/evergreen-ci/evg-module-manager/internal/pullrequests"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
	"github.com/evergreen-ci/evg-module-manager/internal/validation"
)

const (
	pullRequestUseConstant              = "pull-request"
	pullRequestShortDescriptionConstant = "Create pull requests for every repository with changes"
	pullRequestLongDescriptionConstant  = "pull-request pushes the current branch of every repository that differs from its target branch, opens a pull request for each, and cross-links the requests when more than one is created."

	titleFlagNameConstant        = "title"
	titleFlagDescriptionConstant = "Title of the pull requests"
	bodyFlagNameConstant         = "body"
	bodyFlagDescriptionConstant  = "Body of the pull requests; requires --title"
)

// PullRequestCommandBuilder assembles the pull-request command.
type PullRequestCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
	CommandLocator               validation.CommandLocator
}

// Build constructs the pull-request command.
func (builder *PullRequestCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   pullRequestUseConstant,
		Short: pullRequestShortDescriptionConstant,
		Long:  pullRequestLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(titleFlagNameConstant, "", titleFlagDescriptionConstant)
	command.Flags().String(bodyFlagNameConstant, "", bodyFlagDescriptionConstant)

	return command, nil
}

func (builder *PullRequestCommandBuilder) run(command *cobra.Command, _ []string) error {
	pullRequestTitle, titleFlagError := command.Flags().GetString(titleFlagNameConstant)
	if titleFlagError != nil {
		return titleFlagError
	}
	pullRequestBody, bodyFlagError := command.Flags().GetString(bodyFlagNameConstant)
	if bodyFlagError != nil {
		return bodyFlagError
	}

	logger := resolveLogger(builder.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(builder.HumanReadableLoggingProvider), resolveOptions(builder.OptionsProvider), builder.ServiceOverrides)
	if resolutionError != nil {
		return resolutionError
	}

	gitHubClient, clientError := dependencies.ResolveGitHubClient(builder.ServiceOverrides.GitHubClient, services.executor)
	if clientError != nil {
		return clientError
	}

	commandLocator := builder.CommandLocator
	if commandLocator == nil {
		commandLocator = validation.OSCommandLocator{}
	}
	validationService, validationCreationError := validation.NewService(validation.Dependencies{
		CommandLocator:        commandLocator,
		AuthenticationChecker: gitHubClient,
	})
	if validationCreationError != nil {
		return validationCreationError
	}
	if gitHubValidationError := validationService.ValidateGitHub(command.Context()); gitHubValidationError != nil {
		return gitHubValidationError
	}

	pullRequestService, serviceCreationError := pullrequests.NewService(pullrequests.Dependencies{
		GitManager:          services.repositoryManager,
		RepositoryCollector: services.moduleService,
		PullRequestClient:   gitHubClient,
		Logger:              logger,
	})
	if serviceCreationError != nil {
		return serviceCreationError
	}

	createdPullRequests, creationError := pullRequestService.CreatePullRequests(command.Context(), pullRequestTitle, pullRequestBody)
	if creationError != nil {
		return creationError
	}
	ui.NewConsoleRenderer(command.OutOrStdout()).RenderPullRequests(createdPullRequests)
	return nil
}
