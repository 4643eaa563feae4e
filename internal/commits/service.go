package commits

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	gitManagerMissingMessageConstant       = "git manager not configured"
	moduleServiceMissingMessageConstant    = "module service not configured"
	loggerMissingMessageConstant           = "logger not configured"
	messageOrAmendRequiredMessageConstant  = "a commit message or --amend must be provided"
	untrackedStatusPrefixConstant          = "??"
	unstagedStatusPrefixConstant           = " "
	statusEntryPrefixLengthConstant        = 2
	changesCommittedLogMessageConstant     = "changes committed"
	repositoryLogFieldConstant             = "repository"
	fileListSeparatorConstant              = "\n"
)

// ErrGitManagerNotConfigured indicates the git manager dependency was missing.
var ErrGitManagerNotConfigured = errors.New(gitManagerMissingMessageConstant)

// ErrModuleServiceNotConfigured indicates the module service dependency was missing.
var ErrModuleServiceNotConfigured = errors.New(moduleServiceMissingMessageConstant)

// ErrLoggerNotConfigured indicates the logger dependency was missing.
var ErrLoggerNotConfigured = errors.New(loggerMissingMessageConstant)

// ErrMessageOrAmendRequired indicates a commit was requested without a message or amend.
var ErrMessageOrAmendRequired = errors.New(messageOrAmendRequiredMessageConstant)

// GitManager exposes the git operations commit fan-outs rely on.
type GitManager interface {
	Status(executionContext context.Context, repositoryPath string) (string, error)
	FullStatus(executionContext context.Context, repositoryPath string) (string, error)
	ListFiles(executionContext context.Context, repositoryPath string, options gitrepo.ListFilesOptions) ([]string, error)
	StageFiles(executionContext context.Context, repositoryPath string, pathspecs []string) error
	RestoreFiles(executionContext context.Context, repositoryPath string, pathspecs []string, staged bool) error
	Commit(executionContext context.Context, repositoryPath string, options gitrepo.CommitOptions) (string, error)
}

// RepositoryCollector yields the ordered repository set for fan-out operations.
type RepositoryCollector interface {
	CollectRepositories(executionContext context.Context) ([]shared.Repository, error)
}

// CommitRequest configures a commit fan-out.
type CommitRequest struct {
	Message    string
	Amend      bool
	IncludeAll bool
}

// Dependencies enumerates the collaborators required for commit operations.
type Dependencies struct {
	GitManager    GitManager
	ModuleService RepositoryCollector
	Logger        *zap.Logger
}

// Service fans working-tree operations out across the base repository and enabled modules.
type Service struct {
	gitManager    GitManager
	moduleService RepositoryCollector
	logger        *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.GitManager == nil {
		return nil, ErrGitManagerNotConfigured
	}
	if dependencies.ModuleService == nil {
		return nil, ErrModuleServiceNotConfigured
	}
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	return &Service{
		gitManager:    dependencies.GitManager,
		moduleService: dependencies.ModuleService,
		logger:        dependencies.Logger,
	}, nil
}

// Status reports the long-form status of every repository in the set.
func (service *Service) Status(executionContext context.Context) ([]shared.OperationResult, error) {
	repositories, collectError := service.moduleService.CollectRepositories(executionContext)
	if collectError != nil {
		return nil, collectError
	}

	results := make([]shared.OperationResult, 0, len(repositories))
	for _, repository := range repositories {
		statusOutput, statusError := service.gitManager.FullStatus(executionContext, repository.Directory)
		results = append(results, shared.OperationResult{
			RepositoryName: repository.Name,
			Output:         statusOutput,
			Err:            statusError,
		})
	}
	return results, nil
}

// Add stages the touched files matching the pathspecs in every repository in the set.
func (service *Service) Add(executionContext context.Context, pathspecs []string) ([]shared.OperationResult, error) {
	return service.applyToMatchingFiles(executionContext, pathspecs, func(repository shared.Repository, matchingFiles []string) error {
		if len(matchingFiles) == 0 {
			return nil
		}
		return service.gitManager.StageFiles(executionContext, repository.Directory, matchingFiles)
	})
}

// Restore restores the touched files matching the pathspecs, optionally unstaging them.
func (service *Service) Restore(executionContext context.Context, pathspecs []string, staged bool) ([]shared.OperationResult, error) {
	return service.applyToMatchingFiles(executionContext, pathspecs, func(repository shared.Repository, matchingFiles []string) error {
		if len(matchingFiles) == 0 {
			return nil
		}
		return service.gitManager.RestoreFiles(executionContext, repository.Directory, matchingFiles, staged)
	})
}

// Commit records changes in every repository of the set that has something to commit.
//
// Repositories without committable changes are skipped entirely so an amend in
// one repository never creates empty commits in the others.
func (service *Service) Commit(executionContext context.Context, request CommitRequest) ([]shared.OperationResult, error) {
	if len(strings.TrimSpace(request.Message)) == 0 && !request.Amend {
		return nil, ErrMessageOrAmendRequired
	}

	repositories, collectError := service.moduleService.CollectRepositories(executionContext)
	if collectError != nil {
		return nil, collectError
	}

	results := make([]shared.OperationResult, 0, len(repositories))
	for _, repository := range repositories {
		statusOutput, statusError := service.gitManager.Status(executionContext, repository.Directory)
		if statusError != nil {
			results = append(results, shared.OperationResult{RepositoryName: repository.Name, Err: statusError})
			continue
		}
		if !hasCommittableChange(statusOutput, request.IncludeAll) {
			continue
		}

		commitOutput, commitError := service.gitManager.Commit(executionContext, repository.Directory, gitrepo.CommitOptions{
			Message:    request.Message,
			Amend:      request.Amend,
			IncludeAll: request.IncludeAll,
		})
		if commitError == nil {
			service.logger.Info(changesCommittedLogMessageConstant, zap.String(repositoryLogFieldConstant, repository.Name))
		}
		results = append(results, shared.OperationResult{
			RepositoryName: repository.Name,
			Output:         commitOutput,
			Err:            commitError,
		})
	}
	return results, nil
}

func (service *Service) applyToMatchingFiles(executionContext context.Context, pathspecs []string, apply func(repository shared.Repository, matchingFiles []string) error) ([]shared.OperationResult, error) {
	repositories, collectError := service.moduleService.CollectRepositories(executionContext)
	if collectError != nil {
		return nil, collectError
	}

	results := make([]shared.OperationResult, 0, len(repositories))
	for _, repository := range repositories {
		matchingFiles, matchError := service.matchingTouchedFiles(executionContext, repository, pathspecs)
		if matchError != nil {
			results = append(results, shared.OperationResult{RepositoryName: repository.Name, Err: matchError})
			continue
		}

		operationError := apply(repository, matchingFiles)
		results = append(results, shared.OperationResult{
			RepositoryName: repository.Name,
			Output:         strings.Join(matchingFiles, fileListSeparatorConstant),
			Err:            operationError,
		})
	}
	return results, nil
}

// matchingTouchedFiles intersects the files matching the pathspecs with the
// files the short status reports as touched, preserving status order.
func (service *Service) matchingTouchedFiles(executionContext context.Context, repository shared.Repository, pathspecs []string) ([]string, error) {
	trackedFiles, listError := service.gitManager.ListFiles(executionContext, repository.Directory, gitrepo.ListFilesOptions{
		Pathspecs:       pathspecs,
		Cached:          true,
		Others:          true,
		ExcludeStandard: true,
	})
	if listError != nil {
		return nil, listError
	}

	statusOutput, statusError := service.gitManager.Status(executionContext, repository.Directory)
	if statusError != nil {
		return nil, statusError
	}

	trackedFileSet := lo.SliceToMap(trackedFiles, func(trackedFile string) (string, struct{}) {
		return trackedFile, struct{}{}
	})
	touchedFiles := touchedFilesFromStatus(statusOutput)
	return lo.Filter(touchedFiles, func(touchedFile string, _ int) bool {
		_, matches := trackedFileSet[touchedFile]
		return matches
	}), nil
}

func touchedFilesFromStatus(statusOutput string) []string {
	statusLines := strings.Split(statusOutput, "\n")
	touchedFiles := make([]string, 0, len(statusLines))
	for _, statusLine := range statusLines {
		if len(statusLine) <= statusEntryPrefixLengthConstant {
			continue
		}
		touchedFiles = append(touchedFiles, strings.TrimSpace(statusLine[statusEntryPrefixLengthConstant:]))
	}
	return touchedFiles
}

func hasCommittableChange(statusOutput string, includeAll bool) bool {
	for _, statusLine := range strings.Split(statusOutput, "\n") {
		if len(strings.TrimSpace(statusLine)) == 0 {
			continue
		}
		if strings.HasPrefix(statusLine, untrackedStatusPrefixConstant) {
			continue
		}
		if includeAll {
			return true
		}
		if !strings.HasPrefix(statusLine, unstagedStatusPrefixConstant) {
			return true
		}
	}
	return false
}
