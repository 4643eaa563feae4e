package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/ui"
)

const (
	listModulesUseConstant              = "list-modules"
	listModulesShortDescriptionConstant = "List the modules declared by the Evergreen project"
	listModulesLongDescriptionConstant  = "list-modules prints the modules the configured Evergreen project declares, marking the ones enabled in the local checkout."
	enabledFlagNameConstant             = "enabled"
	enabledFlagDescriptionConstant      = "Only list modules enabled in the local checkout"
	showDetailsFlagNameConstant         = "show-details"
	showDetailsFlagDescriptionConstant  = "Include the prefix, repository, branch, and pinned revision of each module"

	enableUseConstant              = "enable"
	enableShortDescriptionConstant = "Enable a module in the local checkout"
	enableLongDescriptionConstant  = "enable clones the module repository when needed, links it at its prefix, and syncs it to the revision associated with the local base commit."

	disableUseConstant              = "disable"
	disableShortDescriptionConstant = "Disable a module in the local checkout"
	disableLongDescriptionConstant  = "disable removes the module symlink from its prefix; the clone is kept for later re-enablement."

	moduleFlagNameConstant        = "module"
	moduleFlagShorthandConstant   = "m"
	moduleFlagDescriptionConstant = "Name of the module"

	missingModuleNameMessageConstant = "module name is required; supply --module"
	moduleEnabledTemplateConstant    = "Module %s enabled.\n"
	moduleDisabledTemplateConstant   = "Module %s disabled.\n"
)

// ListModulesCommandBuilder assembles the list-modules command.
type ListModulesCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
}

// Build constructs the list-modules command.
func (builder *ListModulesCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listModulesUseConstant,
		Short: listModulesShortDescriptionConstant,
		Long:  listModulesLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().Bool(enabledFlagNameConstant, false, enabledFlagDescriptionConstant)
	command.Flags().Bool(showDetailsFlagNameConstant, false, showDetailsFlagDescriptionConstant)

	return command, nil
}

func (builder *ListModulesCommandBuilder) run(command *cobra.Command, _ []string) error {
	enabledOnly, enabledFlagError := command.Flags().GetBool(enabledFlagNameConstant)
	if enabledFlagError != nil {
		return enabledFlagError
	}
	showDetails, showDetailsFlagError := command.Flags().GetBool(showDetailsFlagNameConstant)
	if showDetailsFlagError != nil {
		return showDetailsFlagError
	}

	logger := resolveLogger(builder.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(builder.HumanReadableLoggingProvider), resolveOptions(builder.OptionsProvider), builder.ServiceOverrides)
	if resolutionError != nil {
		return resolutionError
	}

	moduleStates, listError := services.moduleService.AllModules(command.Context(), enabledOnly)
	if listError != nil {
		return listError
	}

	moduleRevisions := map[string]string{}
	if showDetails {
		baseRevision, revisionError := services.moduleService.BaseRevision(command.Context())
		if revisionError != nil {
			return revisionError
		}
		pinnedRevisions, commitsError := services.moduleService.ModuleCommits(command.Context(), enabledOnly, baseRevision)
		if commitsError != nil {
			return commitsError
		}
		for _, pinnedRevision := range pinnedRevisions {
			moduleRevisions[pinnedRevision.ModuleName] = pinnedRevision.Revision
		}
	}

	moduleListings := make([]ui.ModuleListing, 0, len(moduleStates))
	for _, moduleState := range moduleStates {
		moduleListings = append(moduleListings, ui.ModuleListing{
			State:    moduleState,
			Revision: moduleRevisions[moduleState.Module.Name],
		})
	}

	ui.NewConsoleRenderer(command.OutOrStdout()).RenderModuleListing(moduleListings, showDetails)
	return nil
}

// EnableCommandBuilder assembles the enable command.
type EnableCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
}

// Build constructs the enable command.
func (builder *EnableCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   enableUseConstant,
		Short: enableShortDescriptionConstant,
		Long:  enableLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(moduleFlagNameConstant, moduleFlagShorthandConstant, "", moduleFlagDescriptionConstant)

	return command, nil
}

func (builder *EnableCommandBuilder) run(command *cobra.Command, _ []string) error {
	moduleName, moduleNameError := requireModuleName(command)
	if moduleNameError != nil {
		return moduleNameError
	}

	logger := resolveLogger(builder.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(builder.HumanReadableLoggingProvider), resolveOptions(builder.OptionsProvider), builder.ServiceOverrides)
	if resolutionError != nil {
		return resolutionError
	}

	enabledModule, enableError := services.moduleService.Enable(command.Context(), moduleName, true)
	if enableError != nil {
		return enableError
	}
	ui.NewConsoleRenderer(command.OutOrStdout()).RenderSymlinkCreated(enabledModule.LinkPath, enabledModule.ClonePath)
	command.Printf(moduleEnabledTemplateConstant, moduleName)
	return nil
}

// DisableCommandBuilder assembles the disable command.
type DisableCommandBuilder struct {
	LoggerProvider               LoggerProvider
	OptionsProvider              OptionsProvider
	HumanReadableLoggingProvider func() bool
	ServiceOverrides             ServiceOverrides
}

// Build constructs the disable command.
func (builder *DisableCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   disableUseConstant,
		Short: disableShortDescriptionConstant,
		Long:  disableLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().StringP(moduleFlagNameConstant, moduleFlagShorthandConstant, "", moduleFlagDescriptionConstant)

	return command, nil
}

func (builder *DisableCommandBuilder) run(command *cobra.Command, _ []string) error {
	moduleName, moduleNameError := requireModuleName(command)
	if moduleNameError != nil {
		return moduleNameError
	}

	logger := resolveLogger(builder.LoggerProvider)
	services, resolutionError := resolveCoreServices(logger, resolveHumanReadableLogging(builder.HumanReadableLoggingProvider), resolveOptions(builder.OptionsProvider), builder.ServiceOverrides)
	if resolutionError != nil {
		return resolutionError
	}

	if disableError := services.moduleService.Disable(command.Context(), moduleName); disableError != nil {
		return disableError
	}
	command.Printf(moduleDisabledTemplateConstant, moduleName)
	return nil
}

func requireModuleName(command *cobra.Command) (string, error) {
	moduleName, flagError := command.Flags().GetString(moduleFlagNameConstant)
	if flagError != nil {
		return "", flagError
	}
	if len(moduleName) == 0 {
		_ = command.Help()
		return "", errors.New(missingModuleNameMessageConstant)
	}
	return moduleName, nil
}
