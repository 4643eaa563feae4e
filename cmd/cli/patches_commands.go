package cli

import (
	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/patches"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
	"github.com/evergreen-ci/evg-module-manager/internal/validation"
)

const (
	evgPatchUseConstant              = "evg-patch"
	evgPatchShortDescriptionConstant = "Submit an Evergreen patch including enabled modules"
	evgPatchLongDescriptionConstant  = "evg-patch submits a patch for the base repository, attaches every enabled module, and forwards unrecognized arguments to the Evergreen CLI."

	evgCommitQueueUseConstant              = "evg-commit-queue"
	evgCommitQueueShortDescriptionConstant = "Submit a commit-queue patch including enabled modules"
	evgCommitQueueLongDescriptionConstant  = "evg-commit-queue submits a commit-queue entry for the base repository, attaches every enabled module, and resumes the entry once all modules are attached."
)

// PatchCommandBuilder assembles the evg-patch command.
type PatchCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
	CommandLocator               validation.CommandLocator
}

// Build constructs the evg-patch command. Flag parsing is disabled so every
// argument reaches the Evergreen CLI untouched.
func (builder *PatchCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:                evgPatchUseConstant,
		Short:              evgPatchShortDescriptionConstant,
		Long:               evgPatchLongDescriptionConstant,
		DisableFlagParsing: true,
		RunE:               builder.run,
	}

	return command, nil
}

func (builder *PatchCommandBuilder) run(command *cobra.Command, arguments []string) error {
	patchService, serviceError := resolvePatchService(command, builder.LoggerProvider, builder.OptionsProvider, builder.HumanReadableLoggingProvider, builder.ServiceOverrides, builder.CommandLocator)
	if serviceError != nil {
		return serviceError
	}

	patchInfo, patchError := patchService.CreatePatch(command.Context(), arguments)
	if patchError != nil {
		return patchError
	}
	ui.NewConsoleRenderer(command.OutOrStdout()).RenderPatchInfo(patchInfo)
	return nil
}

// CommitQueueCommandBuilder assembles the evg-commit-queue command.
type CommitQueueCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
	CommandLocator               validation.CommandLocator
}

// Build constructs the evg-commit-queue command. Flag parsing is disabled so
// every argument reaches the Evergreen CLI untouched.
func (builder *CommitQueueCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:                evgCommitQueueUseConstant,
		Short:              evgCommitQueueShortDescriptionConstant,
		Long:               evgCommitQueueLongDescriptionConstant,
		DisableFlagParsing: true,
		RunE:               builder.run,
	}

	return command, nil
}

func (builder *CommitQueueCommandBuilder) run(command *cobra.Command, arguments []string) error {
	patchService, serviceError := resolvePatchService(command, builder.LoggerProvider, builder.OptionsProvider, builder.HumanReadableLoggingProvider, builder.ServiceOverrides, builder.CommandLocator)
	if serviceError != nil {
		return serviceError
	}

	patchInfo, patchError := patchService.CreateCommitQueuePatch(command.Context(), arguments)
	if patchError != nil {
		return patchError
	}
	ui.NewConsoleRenderer(command.OutOrStdout()).RenderPatchInfo(patchInfo)
	return nil
}

func resolvePatchService(command *cobra.Command, loggerProvider LoggerProvider, optionsProvider OptionsProvider, humanReadableLoggingProvider func() bool, overrides ServiceOverrides, commandLocator validation.CommandLocator) (*patches.Service, error) {
	if locatorError := validateEvergreenInstalled(commandLocator); locatorError != nil {
		return nil, locatorError
	}

	logger := resolveLogger(loggerProvider)
	globalOptions := resolveOptions(optionsProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(humanReadableLoggingProvider), globalOptions, overrides)
	if resolutionError != nil {
		return nil, resolutionError
	}

	return patches.NewService(patches.Dependencies{
		PatchClient:      services.evergreenCLI,
		ModuleEnumerator: services.moduleService,
		Logger:           logger,
	}, patches.Options{ProjectIdentifier: globalOptions.ProjectIdentifier})
}

func validateEvergreenInstalled(commandLocator validation.CommandLocator) error {
	if commandLocator == nil {
		commandLocator = validation.OSCommandLocator{}
	}
	validationService, creationError := validation.NewService(validation.Dependencies{CommandLocator: commandLocator})
	if creationError != nil {
		return creationError
	}
	return validationService.ValidateEvergreenCommand()
}
