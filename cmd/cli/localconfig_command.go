package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evergreen-ci/evg-module-manager/internal/localconfig"
)

const (
	saveLocalConfigUseConstant              = "save-local-config"
	saveLocalConfigShortDescriptionConstant = "Save the active options to a local configuration file"
	saveLocalConfigLongDescriptionConstant  = "save-local-config writes the Evergreen project and modules directory currently in effect to " + localconfig.FileName + " in the working directory so later invocations pick them up automatically."
	saveLocalConfigConfirmationTemplate     = "Saved configuration to %s.\n"
)

// SaveLocalConfigCommandBuilder assembles the save-local-config command.
type SaveLocalConfigCommandBuilder struct {
	OptionsProvider OptionsProvider
}

// Build constructs the save-local-config command.
func (builder *SaveLocalConfigCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   saveLocalConfigUseConstant,
		Short: saveLocalConfigShortDescriptionConstant,
		Long:  saveLocalConfigLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *SaveLocalConfigCommandBuilder) run(command *cobra.Command, _ []string) error {
	globalOptions := resolveOptions(builder.OptionsProvider)
	configuration := localconfig.Configuration{
		EvergreenProject: globalOptions.ProjectIdentifier,
		ModulesDirectory: globalOptions.ModulesDirectory,
	}
	if saveError := localconfig.Save(localconfig.FileName, configuration); saveError != nil {
		return saveError
	}
	fmt.Fprintf(command.OutOrStdout(), saveLocalConfigConfirmationTemplate, localconfig.FileName)
	return nil
}
