// Package validation checks that the external commands this tool shells out
// to are installed and, for the GitHub CLI, authenticated.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

const (
	documentationLinkConstant             = "https://github.com/evergreen-ci/evg-module-manager/blob/main/docs/usage.md#prerequisites"
	gitCommandNameConstant                = "git"
	evergreenCommandNameConstant          = "evergreen"
	gitHubCommandNameConstant             = "gh"
	missingCommandMessageTemplateConstant = "cannot find %q command; ensure it is installed, see %s"
	unauthenticatedMessageConstant        = "not authenticated to github, see " + documentationLinkConstant
	dependenciesIncompleteConstant        = "validation service dependencies are incomplete"
)

// ErrServiceDependenciesIncomplete indicates NewService received missing dependencies.
var ErrServiceDependenciesIncomplete = errors.New(dependenciesIncompleteConstant)

// ErrGitHubUnauthenticated indicates the GitHub CLI holds no valid credentials.
var ErrGitHubUnauthenticated = errors.New(unauthenticatedMessageConstant)

// MissingCommandError reports an external command that could not be located.
type MissingCommandError struct {
	CommandName string
}

// Error describes the missing command and links the installation documentation.
func (missingCommand *MissingCommandError) Error() string {
	return fmt.Sprintf(missingCommandMessageTemplateConstant, missingCommand.CommandName, documentationLinkConstant)
}

// CommandLocator resolves executable names on the current PATH.
type CommandLocator interface {
	LookPath(executableName string) (string, error)
}

// OSCommandLocator resolves executables through the process environment.
type OSCommandLocator struct{}

// LookPath reports the filesystem location of the named executable.
func (OSCommandLocator) LookPath(executableName string) (string, error) {
	return exec.LookPath(executableName)
}

// AuthenticationChecker reports whether the GitHub CLI is authenticated.
type AuthenticationChecker interface {
	CheckAuthenticationStatus(executionContext context.Context) error
}

// Dependencies bundles the collaborators required by the validation service.
type Dependencies struct {
	CommandLocator        CommandLocator
	AuthenticationChecker AuthenticationChecker
}

// Service validates the presence and readiness of external command prerequisites.
type Service struct {
	commandLocator        CommandLocator
	authenticationChecker AuthenticationChecker
}

// NewService validates dependencies and returns a configured validation
// service. The authentication checker is only required by ValidateGitHub.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.CommandLocator == nil {
		return nil, ErrServiceDependenciesIncomplete
	}
	return &Service{
		commandLocator:        dependencies.CommandLocator,
		authenticationChecker: dependencies.AuthenticationChecker,
	}, nil
}

// ValidateGitCommand checks that the git binary is installed.
func (service *Service) ValidateGitCommand() error {
	return service.validateCommand(gitCommandNameConstant)
}

// ValidateEvergreenCommand checks that the Evergreen CLI is installed.
func (service *Service) ValidateEvergreenCommand() error {
	return service.validateCommand(evergreenCommandNameConstant)
}

// ValidateGitHub checks that the GitHub CLI is installed and authenticated.
func (service *Service) ValidateGitHub(executionContext context.Context) error {
	if service.authenticationChecker == nil {
		return ErrServiceDependenciesIncomplete
	}
	if locationError := service.validateCommand(gitHubCommandNameConstant); locationError != nil {
		return locationError
	}
	if authenticationError := service.authenticationChecker.CheckAuthenticationStatus(executionContext); authenticationError != nil {
		return fmt.Errorf("%w: %w", ErrGitHubUnauthenticated, authenticationError)
	}
	return nil
}

func (service *Service) validateCommand(commandName string) error {
	if _, locationError := service.commandLocator.LookPath(commandName); locationError != nil {
		return &MissingCommandError{CommandName: commandName}
	}
	return nil
}
