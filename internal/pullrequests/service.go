// Package pullrequests publishes pull requests for the base repository and
// every enabled module that carries changes, then cross-links them with
// review comments.
package pullrequests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/githubcli"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	crossLinkCommentPrefixConstant   = "This code review is spread across multiple repositories. Here are the other Pull Requests associated with the code review:"
	crossLinkEntryTemplateConstant   = "* [%s](%s)"
	pullRequestCreatedMessage        = "created pull request"
	repositoryFieldNameConstant      = "repository"
	pullRequestLinkFieldNameConstant = "link"
	serviceDependenciesErrorConstant = "pull request service dependencies are incomplete"
	bodyRequiresTitleErrorConstant   = "a pull request body requires a title"
	noChangedRepositoriesConstant    = "no repository contains changes against its target branch"
)

// ErrServiceDependenciesIncomplete indicates NewService received missing dependencies.
var ErrServiceDependenciesIncomplete = errors.New(serviceDependenciesErrorConstant)

// ErrBodyRequiresTitle indicates a pull request body was supplied without a title.
var ErrBodyRequiresTitle = errors.New(bodyRequiresTitleErrorConstant)

// ErrNoChangedRepositories indicates no repository differs from its target branch.
var ErrNoChangedRepositories = errors.New(noChangedRepositoriesConstant)

// GitManager describes the git operations used while publishing pull requests.
type GitManager interface {
	HasDifferences(executionContext context.Context, repositoryPath string, targetRevision string) (bool, error)
	PushCurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
}

// RepositoryCollector enumerates the base repository and enabled modules.
type RepositoryCollector interface {
	CollectRepositories(executionContext context.Context) ([]shared.Repository, error)
}

// PullRequestClient describes the GitHub CLI operations used by the service.
type PullRequestClient interface {
	CreatePullRequest(executionContext context.Context, repositoryDirectory string, options githubcli.PullRequestOptions) (string, error)
	CommentOnPullRequest(executionContext context.Context, repositoryDirectory string, pullRequestURL string, commentBody string) error
}

// Dependencies bundles the collaborators required by the pull request service.
type Dependencies struct {
	GitManager          GitManager
	RepositoryCollector RepositoryCollector
	PullRequestClient   PullRequestClient
	Logger              *zap.Logger
}

// Service publishes pull requests across the base repository and enabled modules.
type Service struct {
	gitManager          GitManager
	repositoryCollector RepositoryCollector
	pullRequestClient   PullRequestClient
	logger              *zap.Logger
}

// PullRequest pairs a repository name with the link of its created pull request.
type PullRequest struct {
	Name string
	Link string
}

// NewService validates dependencies and returns a configured pull request service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.GitManager == nil || dependencies.RepositoryCollector == nil || dependencies.PullRequestClient == nil || dependencies.Logger == nil {
		return nil, ErrServiceDependenciesIncomplete
	}
	serviceInstance := &Service{
		gitManager:          dependencies.GitManager,
		repositoryCollector: dependencies.RepositoryCollector,
		pullRequestClient:   dependencies.PullRequestClient,
		logger:              dependencies.Logger,
	}
	return serviceInstance, nil
}

// CreatePullRequests pushes every repository that differs from its target
// branch, opens a pull request for each, and cross-links the requests with a
// comment when more than one repository is involved. A body without a title is
// rejected because the GitHub CLI would otherwise prompt for one.
func (service *Service) CreatePullRequests(executionContext context.Context, title string, body string) ([]PullRequest, error) {
	if len(title) == 0 && len(body) > 0 {
		return nil, ErrBodyRequiresTitle
	}

	changedRepositories, collectionError := service.changedRepositories(executionContext)
	if collectionError != nil {
		return nil, collectionError
	}
	if len(changedRepositories) == 0 {
		return nil, ErrNoChangedRepositories
	}

	for _, changedRepository := range changedRepositories {
		if _, pushError := service.gitManager.PushCurrentBranch(executionContext, changedRepository.Directory); pushError != nil {
			return nil, pushError
		}
	}

	pullRequestOptions := githubcli.PullRequestOptions{Title: title, Body: body}
	createdPullRequests := make([]PullRequest, 0, len(changedRepositories))
	for _, changedRepository := range changedRepositories {
		pullRequestLink, creationError := service.pullRequestClient.CreatePullRequest(executionContext, changedRepository.Directory, pullRequestOptions)
		if creationError != nil {
			return nil, creationError
		}
		service.logger.Info(pullRequestCreatedMessage,
			zap.String(repositoryFieldNameConstant, changedRepository.Name),
			zap.String(pullRequestLinkFieldNameConstant, pullRequestLink),
		)
		createdPullRequests = append(createdPullRequests, PullRequest{Name: changedRepository.Name, Link: pullRequestLink})
	}

	if len(createdPullRequests) > 1 {
		if annotationError := service.crossLinkPullRequests(executionContext, changedRepositories, createdPullRequests); annotationError != nil {
			return nil, annotationError
		}
	}
	return createdPullRequests, nil
}

func (service *Service) changedRepositories(executionContext context.Context) ([]shared.Repository, error) {
	collectedRepositories, collectionError := service.repositoryCollector.CollectRepositories(executionContext)
	if collectionError != nil {
		return nil, collectionError
	}

	changedRepositories := make([]shared.Repository, 0, len(collectedRepositories))
	for _, collectedRepository := range collectedRepositories {
		hasChanges, comparisonError := service.gitManager.HasDifferences(executionContext, collectedRepository.Directory, collectedRepository.TargetBranch)
		if comparisonError != nil {
			return nil, comparisonError
		}
		if hasChanges {
			changedRepositories = append(changedRepositories, collectedRepository)
		}
	}
	return changedRepositories, nil
}

func (service *Service) crossLinkPullRequests(executionContext context.Context, changedRepositories []shared.Repository, createdPullRequests []PullRequest) error {
	for repositoryIndex, changedRepository := range changedRepositories {
		commentBody := crossLinkCommentBody(createdPullRequests, createdPullRequests[repositoryIndex])
		commentError := service.pullRequestClient.CommentOnPullRequest(executionContext, changedRepository.Directory, createdPullRequests[repositoryIndex].Link, commentBody)
		if commentError != nil {
			return commentError
		}
	}
	return nil
}

func crossLinkCommentBody(createdPullRequests []PullRequest, ownPullRequest PullRequest) string {
	commentLines := []string{crossLinkCommentPrefixConstant}
	for _, createdPullRequest := range createdPullRequests {
		if createdPullRequest == ownPullRequest {
			continue
		}
		commentLines = append(commentLines, fmt.Sprintf(crossLinkEntryTemplateConstant, createdPullRequest.Name, createdPullRequest.Link))
	}
	return strings.Join(commentLines, "\n")
}
