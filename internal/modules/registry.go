package modules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/evergreen-ci/evg-module-manager/internal/evergreen"
)

const (
	projectAPIMissingMessageConstant      = "project configuration client not configured"
	evaluatorMissingMessageConstant       = "configuration evaluator not configured"
	unknownModuleTemplateConstant         = "module %s is not declared by project %s"
	manifestParseErrorTemplateConstant    = "invalid module declaration in %s: %s"
	moduleDecodeFailureTemplateConstant   = "unable to decode module entry: %s"
	moduleFieldMissingTemplateConstant    = "module entry is missing %s"
	configurationDecodeTemplateConstant   = "unable to parse evaluated configuration: %s"
	moduleNameFieldConstant               = "name"
	moduleRepoFieldConstant               = "repo"
	moduleBranchFieldConstant             = "branch"
	modulePrefixFieldConstant             = "prefix"
)

// ErrProjectAPINotConfigured indicates the registry was constructed without an API client.
var ErrProjectAPINotConfigured = errors.New(projectAPIMissingMessageConstant)

// ErrEvaluatorNotConfigured indicates the registry was constructed without an evaluator.
var ErrEvaluatorNotConfigured = errors.New(evaluatorMissingMessageConstant)

// ProjectConfigAPI exposes the Evergreen lookups required for module resolution.
type ProjectConfigAPI interface {
	Project(executionContext context.Context, projectIdentifier string) (evergreen.Project, error)
	Manifest(executionContext context.Context, projectIdentifier string, revision string) (evergreen.Manifest, error)
}

// ConfigurationEvaluator expands a project configuration file into plain YAML.
type ConfigurationEvaluator interface {
	Evaluate(executionContext context.Context, configurationPath string) (string, error)
}

// ManifestParseError indicates a project configuration carried an unusable module entry.
type ManifestParseError struct {
	ConfigurationPath string
	Reason            string
}

// Error describes the malformed declaration.
func (parseError ManifestParseError) Error() string {
	return fmt.Sprintf(manifestParseErrorTemplateConstant, parseError.ConfigurationPath, parseError.Reason)
}

// UnknownModuleError indicates a module name not present in the project's declarations.
type UnknownModuleError struct {
	ModuleName        string
	ProjectIdentifier string
}

// Error names the missing module.
func (unknownError UnknownModuleError) Error() string {
	return fmt.Sprintf(unknownModuleTemplateConstant, unknownError.ModuleName, unknownError.ProjectIdentifier)
}

// Registry resolves the modules a project declares in its Evergreen configuration.
//
// Resolution fetches the project's remote configuration path from the API,
// evaluates that file with the Evergreen CLI, and parses the modules section.
// Results are cached per project for the lifetime of the registry.
type Registry struct {
	projectAPI ProjectConfigAPI
	evaluator  ConfigurationEvaluator

	cacheGuard  sync.Mutex
	moduleCache map[string][]Module
}

// NewRegistry constructs a Registry from the provided collaborators.
func NewRegistry(projectAPI ProjectConfigAPI, evaluator ConfigurationEvaluator) (*Registry, error) {
	if projectAPI == nil {
		return nil, ErrProjectAPINotConfigured
	}
	if evaluator == nil {
		return nil, ErrEvaluatorNotConfigured
	}
	return &Registry{projectAPI: projectAPI, evaluator: evaluator, moduleCache: map[string][]Module{}}, nil
}

// Modules returns the declared modules of the project in declaration order.
func (registry *Registry) Modules(executionContext context.Context, projectIdentifier string) ([]Module, error) {
	registry.cacheGuard.Lock()
	cachedModules, cached := registry.moduleCache[projectIdentifier]
	registry.cacheGuard.Unlock()
	if cached {
		return cachedModules, nil
	}

	project, projectError := registry.projectAPI.Project(executionContext, projectIdentifier)
	if projectError != nil {
		return nil, projectError
	}

	evaluatedConfiguration, evaluationError := registry.evaluator.Evaluate(executionContext, project.RemotePath)
	if evaluationError != nil {
		return nil, evaluationError
	}

	declaredModules, parseError := parseModuleDeclarations(project.RemotePath, evaluatedConfiguration)
	if parseError != nil {
		return nil, parseError
	}

	registry.cacheGuard.Lock()
	registry.moduleCache[projectIdentifier] = declaredModules
	registry.cacheGuard.Unlock()
	return declaredModules, nil
}

// Module returns the declaration of one named module.
func (registry *Registry) Module(executionContext context.Context, projectIdentifier string, moduleName string) (Module, error) {
	declaredModules, resolutionError := registry.Modules(executionContext, projectIdentifier)
	if resolutionError != nil {
		return Module{}, resolutionError
	}
	for _, declaredModule := range declaredModules {
		if declaredModule.Name == moduleName {
			return declaredModule, nil
		}
	}
	return Module{}, UnknownModuleError{ModuleName: moduleName, ProjectIdentifier: projectIdentifier}
}

// ProjectBranch returns the git branch the project builds from.
func (registry *Registry) ProjectBranch(executionContext context.Context, projectIdentifier string) (string, error) {
	project, projectError := registry.projectAPI.Project(executionContext, projectIdentifier)
	if projectError != nil {
		return "", projectError
	}
	return project.BranchName, nil
}

func parseModuleDeclarations(configurationPath string, evaluatedConfiguration string) ([]Module, error) {
	projectConfiguration := struct {
		Modules []map[string]any `yaml:"modules"`
	}{}
	if decodeError := yaml.Unmarshal([]byte(evaluatedConfiguration), &projectConfiguration); decodeError != nil {
		return nil, ManifestParseError{
			ConfigurationPath: configurationPath,
			Reason:            fmt.Sprintf(configurationDecodeTemplateConstant, decodeError),
		}
	}

	declaredModules := make([]Module, 0, len(projectConfiguration.Modules))
	for _, moduleEntry := range projectConfiguration.Modules {
		declaredModule := Module{}
		if decodeError := mapstructure.Decode(moduleEntry, &declaredModule); decodeError != nil {
			return nil, ManifestParseError{
				ConfigurationPath: configurationPath,
				Reason:            fmt.Sprintf(moduleDecodeFailureTemplateConstant, decodeError),
			}
		}
		if fieldError := validateModuleFields(declaredModule); fieldError != nil {
			return nil, ManifestParseError{ConfigurationPath: configurationPath, Reason: fieldError.Error()}
		}
		declaredModules = append(declaredModules, declaredModule)
	}
	return declaredModules, nil
}

func validateModuleFields(declaredModule Module) error {
	requiredFields := []struct {
		name  string
		value string
	}{
		{name: moduleNameFieldConstant, value: declaredModule.Name},
		{name: moduleRepoFieldConstant, value: declaredModule.Repo},
		{name: moduleBranchFieldConstant, value: declaredModule.Branch},
		{name: modulePrefixFieldConstant, value: declaredModule.Prefix},
	}
	for _, requiredField := range requiredFields {
		if len(strings.TrimSpace(requiredField.value)) == 0 {
			return fmt.Errorf(moduleFieldMissingTemplateConstant, requiredField.name)
		}
	}
	return nil
}
