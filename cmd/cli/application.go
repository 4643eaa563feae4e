package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/dependencies"
	"github.com/evergreen-ci/evg-module-manager/internal/localconfig"
	"github.com/evergreen-ci/evg-module-manager/internal/utils"
)

const (
	applicationNameConstant             = "evg-module-manager"
	applicationShortDescriptionConstant = "Manage Evergreen modules in a multi-repository project"
	applicationLongDescriptionConstant  = "evg-module-manager enables and disables Evergreen modules, fans git operations out across the base repository and every enabled module, and submits patch builds and pull requests that span all of them."

	projectFlagNameConstant          = "evg-project"
	projectFlagUsageConstant         = "Evergreen project the working directory belongs to."
	modulesDirectoryFlagNameConstant = "modules-dir"
	modulesDirectoryFlagUsage        = "Directory module repositories are cloned into."
	credentialsFlagNameConstant      = "evg-config-file"
	credentialsFlagUsageConstant     = "Path to the Evergreen API credentials file."
	rootLogLevelFlagNameConstant     = "log-level"
	rootLogLevelFlagUsageConstant    = "Override the log level (debug, info, warn, or error)."
	rootLogFormatFlagNameConstant    = "log-format"
	rootLogFormatFlagUsageConstant   = "Override the log format (structured or console)."

	defaultEvergreenProjectConstant     = "mongodb-mongo-master"
	defaultModulesDirectoryConstant     = ".."
	defaultCredentialsPathConstant      = "~/.evergreen.yml"
	localConfigurationSearchPathBase    = "."
	configurationLoadErrorTemplate      = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant     = "unable to flush logger: %w"
)

// Application wires the Cobra command hierarchy, local configuration, and structured logger.
type Application struct {
	rootCommand        *cobra.Command
	loggerFactory      *utils.LoggerFactory
	logger             *zap.Logger
	configuration      localconfig.Configuration
	credentialsPath    string
	logLevelFlagValue  string
	logFormatFlagValue string
}

type commandBuilder interface {
	Build() (*cobra.Command, error)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() (*Application, error) {
	application := &Application{
		loggerFactory: utils.NewLoggerFactory(),
		logger:        zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().String(projectFlagNameConstant, "", projectFlagUsageConstant)
	cobraCommand.PersistentFlags().String(modulesDirectoryFlagNameConstant, "", modulesDirectoryFlagUsage)
	cobraCommand.PersistentFlags().StringVar(&application.credentialsPath, credentialsFlagNameConstant, defaultCredentialsPathConstant, credentialsFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, rootLogLevelFlagNameConstant, string(utils.LogLevelInfo), rootLogLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, rootLogFormatFlagNameConstant, string(utils.LogFormatConsole), rootLogFormatFlagUsageConstant)

	for _, builder := range application.commandBuilders() {
		builtCommand, buildError := builder.Build()
		if buildError != nil {
			return nil, buildError
		}
		cobraCommand.AddCommand(builtCommand)
	}

	application.rootCommand = cobraCommand

	return application, nil
}

func (application *Application) commandBuilders() []commandBuilder {
	loggerProvider := func() *zap.Logger { return application.logger }
	optionsProvider := application.globalOptions
	humanReadableProvider := application.humanReadableLoggingEnabled

	branchResolver := branchServiceResolver{
		LoggerProvider:               loggerProvider,
		OptionsProvider:              optionsProvider,
		HumanReadableLoggingProvider: humanReadableProvider,
	}
	commitResolver := commitServiceResolver{
		LoggerProvider:               loggerProvider,
		OptionsProvider:              optionsProvider,
		HumanReadableLoggingProvider: humanReadableProvider,
	}

	return []commandBuilder{
		&ListModulesCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&EnableCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&DisableCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&BranchCreateCommandBuilder{branchServiceResolver: branchResolver},
		&BranchUpdateCommandBuilder{branchServiceResolver: branchResolver},
		&BranchSwitchCommandBuilder{branchServiceResolver: branchResolver},
		&BranchDeleteCommandBuilder{branchServiceResolver: branchResolver},
		&BranchShowCommandBuilder{branchServiceResolver: branchResolver},
		&PullCommandBuilder{branchServiceResolver: branchResolver},
		&StatusCommandBuilder{commitServiceResolver: commitResolver},
		&AddCommandBuilder{commitServiceResolver: commitResolver},
		&RestoreCommandBuilder{commitServiceResolver: commitResolver},
		&CommitCommandBuilder{commitServiceResolver: commitResolver},
		&PatchCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&CommitQueueCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&PullRequestCommandBuilder{LoggerProvider: loggerProvider, OptionsProvider: optionsProvider, HumanReadableLoggingProvider: humanReadableProvider},
		&SaveLocalConfigCommandBuilder{OptionsProvider: optionsProvider},
	}
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	application, creationError := NewApplication()
	if creationError != nil {
		return creationError
	}
	return application.Execute()
}

// initializeConfiguration merges the local configuration file, environment
// variables, and persistent flags before any subcommand runs. Flags win over
// the file and environment when explicitly set.
func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaults := localconfig.Configuration{
		EvergreenProject: defaultEvergreenProjectConstant,
		ModulesDirectory: defaultModulesDirectoryConstant,
	}

	loadedConfiguration, loadError := localconfig.Load([]string{localConfigurationSearchPathBase}, defaults)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplate, loadError)
	}
	application.configuration = loadedConfiguration

	if application.persistentFlagChanged(command, projectFlagNameConstant) {
		if projectFlagValue, flagError := command.Flags().GetString(projectFlagNameConstant); flagError == nil {
			application.configuration.EvergreenProject = projectFlagValue
		}
	}
	if application.persistentFlagChanged(command, modulesDirectoryFlagNameConstant) {
		if modulesDirectoryFlagValue, flagError := command.Flags().GetString(modulesDirectoryFlagNameConstant); flagError == nil {
			application.configuration.ModulesDirectory = modulesDirectoryFlagValue
		}
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.logLevelFlagValue),
		utils.LogFormat(application.logFormatFlagValue),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	return nil
}

func (application *Application) globalOptions() dependencies.Options {
	return dependencies.Options{
		ProjectIdentifier: application.configuration.EvergreenProject,
		ModulesDirectory:  application.configuration.ModulesDirectory,
		CredentialsPath:   application.credentialsPath,
	}
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.logFormatFlagValue)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) flushLogger() error {
	return application.syncLoggerInstance(application.logger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
