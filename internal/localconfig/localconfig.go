// Package localconfig persists per-checkout defaults for the module manager
// in a .emm-local.yml file at the invocation root.
package localconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evergreen-ci/evg-module-manager/internal/utils"
)

const (
	// FileName is the local configuration file resolved from the invocation root.
	FileName = ".emm-local.yml"

	configurationNameConstant       = ".emm-local"
	configurationTypeConstant       = "yml"
	environmentPrefixConstant       = "EMM"
	projectConfigurationKeyConstant = "evg_project"
	modulesConfigurationKeyConstant = "modules_directory"
	localConfigurationFileMode      = 0o644

	filePathRequiredMessageConstant = "local configuration file path must not be empty"
	encodeErrorTemplateConstant     = "failed to encode local configuration: %w"
	writeErrorTemplateConstant      = "failed to write local configuration %s: %w"
)

// ErrFilePathRequired indicates Save was called without a destination path.
var ErrFilePathRequired = errors.New(filePathRequiredMessageConstant)

// Configuration holds the persisted defaults for the current checkout.
type Configuration struct {
	EvergreenProject string `mapstructure:"evg_project"      yaml:"evg_project,omitempty"`
	ModulesDirectory string `mapstructure:"modules_directory" yaml:"modules_directory,omitempty"`
}

// Load resolves the local configuration by precedence: explicit file values,
// EMM_* environment variables, then the provided defaults.
func Load(searchPaths []string, defaults Configuration) (Configuration, error) {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		searchPaths,
	)

	defaultValues := map[string]any{
		projectConfigurationKeyConstant: defaults.EvergreenProject,
		modulesConfigurationKeyConstant: defaults.ModulesDirectory,
	}

	var loadedConfiguration Configuration
	if _, loadError := configurationLoader.LoadConfiguration("", defaultValues, &loadedConfiguration); loadError != nil {
		return Configuration{}, loadError
	}
	return loadedConfiguration, nil
}

// Save writes the configuration to the provided path. Empty fields are
// omitted so an absent value keeps falling through to environment and
// built-in defaults on the next load.
func Save(configurationFilePath string, configuration Configuration) error {
	if len(configurationFilePath) == 0 {
		return ErrFilePathRequired
	}

	encodedConfiguration, encodeError := yaml.Marshal(configuration)
	if encodeError != nil {
		return fmt.Errorf(encodeErrorTemplateConstant, encodeError)
	}

	writeError := os.WriteFile(configurationFilePath, encodedConfiguration, localConfigurationFileMode)
	if writeError != nil {
		return fmt.Errorf(writeErrorTemplateConstant, configurationFilePath, writeError)
	}
	return nil
}
