package githubcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	pullRequestSubcommandConstant           = "pr"
	createSubcommandConstant                = "create"
	commentSubcommandConstant               = "comment"
	authSubcommandConstant                  = "auth"
	statusSubcommandConstant                = "status"
	titleFlagConstant                       = "--title"
	bodyFlagConstant                        = "--body"
	fillFlagConstant                        = "--fill"
	pullRequestURLFieldNameConstant         = "pull_request_url"
	commentBodyFieldNameConstant            = "comment_body"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	createPullRequestOperationNameConstant  = OperationName("CreatePullRequest")
	commentPullRequestOperationNameConstant = OperationName("CommentOnPullRequest")
	authenticationStatusOperationConstant   = OperationName("CheckAuthenticationStatus")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// PullRequestOptions configures pull request creation.
//
// When Title is empty the pull request is created with --fill so the title and
// body are derived from the branch commits.
type PullRequestOptions struct {
	Title string
	Body  string
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor shared.GitHubCLIExecutor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor shared.GitHubCLIExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// CreatePullRequest opens a pull request for the branch checked out in repositoryDirectory
// and returns the pull request URL printed by the CLI.
func (client *Client) CreatePullRequest(executionContext context.Context, repositoryDirectory string, options PullRequestOptions) (string, error) {
	arguments := []string{pullRequestSubcommandConstant, createSubcommandConstant}
	trimmedTitle := strings.TrimSpace(options.Title)
	if len(trimmedTitle) > 0 {
		arguments = append(arguments, titleFlagConstant, trimmedTitle, bodyFlagConstant, options.Body)
	} else {
		arguments = append(arguments, fillFlagConstant)
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryDirectory,
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// CommentOnPullRequest adds a comment to the referenced pull request.
func (client *Client) CommentOnPullRequest(executionContext context.Context, repositoryDirectory string, pullRequestURL string, commentBody string) error {
	trimmedPullRequestURL := strings.TrimSpace(pullRequestURL)
	if len(trimmedPullRequestURL) == 0 {
		return InvalidInputError{FieldName: pullRequestURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(commentBody)) == 0 {
		return InvalidInputError{FieldName: commentBodyFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			commentSubcommandConstant,
			trimmedPullRequestURL,
			bodyFlagConstant,
			commentBody,
		},
		WorkingDirectory: repositoryDirectory,
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: commentPullRequestOperationNameConstant, Cause: executionError}
	}

	return nil
}

// CheckAuthenticationStatus verifies the GitHub CLI holds valid credentials.
func (client *Client) CheckAuthenticationStatus(executionContext context.Context) error {
	commandDetails := execshell.CommandDetails{
		Arguments: []string{authSubcommandConstant, statusSubcommandConstant},
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: authenticationStatusOperationConstant, Cause: executionError}
	}

	return nil
}
