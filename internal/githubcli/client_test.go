package githubcli_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/githubcli"
)

const (
	testRepositoryDirectoryConstant = "/tmp/workspace/mongo"
	testPullRequestURLConstant      = "https://github.com/mongodb/mongo/pull/1234"
	testPullRequestTitleConstant    = "SERVER-1234 Add widget support"
	testPullRequestBodyConstant     = "Adds widgets to the server."
	testCommentBodyConstant         = "This code review is spread across multiple repositories."
)

type stubGitHubExecutor struct {
	executeFunc     func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedDetails []execshell.CommandDetails
}

func (executor *stubGitHubExecutor) ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(executionContext, details)
	}
	return execshell.ExecutionResult{}, nil
}

func TestNewClientValidation(testInstance *testing.T) {
	testInstance.Run("nil_executor", func(testInstance *testing.T) {
		client, creationError := githubcli.NewClient(nil)
		require.Error(testInstance, creationError)
		require.ErrorIs(testInstance, creationError, githubcli.ErrExecutorNotConfigured)
		require.Nil(testInstance, client)
	})
}

func TestCreatePullRequest(testInstance *testing.T) {
	testCases := []struct {
		name              string
		options           githubcli.PullRequestOptions
		executor          *stubGitHubExecutor
		expectError       bool
		expectedArguments []string
		expectedURL       string
	}{
		{
			name:    "create_with_title_and_body",
			options: githubcli.PullRequestOptions{Title: testPullRequestTitleConstant, Body: testPullRequestBodyConstant},
			executor: &stubGitHubExecutor{
				executeFunc: func(_ context.Context, _ execshell.CommandDetails) (execshell.ExecutionResult, error) {
					return execshell.ExecutionResult{StandardOutput: testPullRequestURLConstant + "\n"}, nil
				},
			},
			expectedArguments: []string{"pr", "create", "--title", testPullRequestTitleConstant, "--body", testPullRequestBodyConstant},
			expectedURL:       testPullRequestURLConstant,
		},
		{
			name:    "create_with_fill",
			options: githubcli.PullRequestOptions{},
			executor: &stubGitHubExecutor{
				executeFunc: func(_ context.Context, _ execshell.CommandDetails) (execshell.ExecutionResult, error) {
					return execshell.ExecutionResult{StandardOutput: testPullRequestURLConstant + "\n"}, nil
				},
			},
			expectedArguments: []string{"pr", "create", "--fill"},
			expectedURL:       testPullRequestURLConstant,
		},
		{
			name:    "create_command_failure",
			options: githubcli.PullRequestOptions{},
			executor: &stubGitHubExecutor{
				executeFunc: func(_ context.Context, _ execshell.CommandDetails) (execshell.ExecutionResult, error) {
					return execshell.ExecutionResult{}, errors.New("execution failed")
				},
			},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubcli.NewClient(testCase.executor)
			require.NoError(testInstance, creationError)

			pullRequestURL, operationError := client.CreatePullRequest(context.Background(), testRepositoryDirectoryConstant, testCase.options)
			if testCase.expectError {
				require.Error(testInstance, operationError)

				var githubOperationError githubcli.OperationError
				require.ErrorAs(testInstance, operationError, &githubOperationError)
				return
			}

			require.NoError(testInstance, operationError)
			require.Equal(testInstance, testCase.expectedURL, pullRequestURL)
			require.Len(testInstance, testCase.executor.recordedDetails, 1)
			require.Equal(testInstance, testCase.expectedArguments, testCase.executor.recordedDetails[0].Arguments)
			require.Equal(testInstance, testRepositoryDirectoryConstant, testCase.executor.recordedDetails[0].WorkingDirectory)
		})
	}
}

func TestCommentOnPullRequest(testInstance *testing.T) {
	testCases := []struct {
		name           string
		pullRequestURL string
		commentBody    string
		expectError    bool
	}{
		{
			name:           "comment_success",
			pullRequestURL: testPullRequestURLConstant,
			commentBody:    testCommentBodyConstant,
		},
		{
			name:        "comment_missing_url",
			commentBody: testCommentBodyConstant,
			expectError: true,
		},
		{
			name:           "comment_missing_body",
			pullRequestURL: testPullRequestURLConstant,
			expectError:    true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubGitHubExecutor{}
			client, creationError := githubcli.NewClient(executor)
			require.NoError(testInstance, creationError)

			operationError := client.CommentOnPullRequest(context.Background(), testRepositoryDirectoryConstant, testCase.pullRequestURL, testCase.commentBody)
			if testCase.expectError {
				var inputError githubcli.InvalidInputError
				require.ErrorAs(testInstance, operationError, &inputError)
				require.Empty(testInstance, executor.recordedDetails)
				return
			}

			require.NoError(testInstance, operationError)
			require.Len(testInstance, executor.recordedDetails, 1)
			require.Equal(testInstance,
				[]string{"pr", "comment", testPullRequestURLConstant, "--body", testCommentBodyConstant},
				executor.recordedDetails[0].Arguments,
			)
		})
	}
}

func TestCheckAuthenticationStatus(testInstance *testing.T) {
	testInstance.Run("auth_success", func(testInstance *testing.T) {
		executor := &stubGitHubExecutor{}
		client, creationError := githubcli.NewClient(executor)
		require.NoError(testInstance, creationError)

		require.NoError(testInstance, client.CheckAuthenticationStatus(context.Background()))
		require.Equal(testInstance, []string{"auth", "status"}, executor.recordedDetails[0].Arguments)
	})

	testInstance.Run("auth_failure", func(testInstance *testing.T) {
		executor := &stubGitHubExecutor{
			executeFunc: func(_ context.Context, _ execshell.CommandDetails) (execshell.ExecutionResult, error) {
				return execshell.ExecutionResult{}, errors.New("not logged in")
			},
		}
		client, creationError := githubcli.NewClient(executor)
		require.NoError(testInstance, creationError)

		operationError := client.CheckAuthenticationStatus(context.Background())
		var githubOperationError githubcli.OperationError
		require.ErrorAs(testInstance, operationError, &githubOperationError)
	})
}
