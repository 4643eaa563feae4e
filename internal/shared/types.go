package shared

import (
	"context"
	"io/fs"

	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
)

const (
	// BaseRepositoryName labels the base repository inside a repository set.
	BaseRepositoryName = "base"
	// OriginRemoteNameConstant identifies the default upstream remote.
	OriginRemoteNameConstant = "origin"
)

// Repository identifies one member of the repository set iterated by multi-repository commands.
type Repository struct {
	Name         string
	Directory    string
	TargetBranch string
}

// IsBase reports whether the repository represents the base repository.
func (repository Repository) IsBase() bool {
	return repository.Name == BaseRepositoryName
}

// OperationResult captures the outcome of applying one operation to one repository.
type OperationResult struct {
	RepositoryName string
	Output         string
	Err            error
}

// Failed reports whether the operation ended in an error.
func (result OperationResult) Failed() bool {
	return result.Err != nil
}

// AnyFailed reports whether any result in the ordered collection carries an error.
func AnyFailed(results []OperationResult) bool {
	for _, operationResult := range results {
		if operationResult.Failed() {
			return true
		}
	}
	return false
}

// GitExecutor exposes the subset of shell execution used by git-backed services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// EvergreenCLIExecutor exposes shell execution for the Evergreen command-line tool.
type EvergreenCLIExecutor interface {
	ExecuteEvergreen(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// GitHubCLIExecutor exposes shell execution for the GitHub command-line tool.
type GitHubCLIExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// FileSystem exposes the filesystem operations required by module management services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Lstat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
	MkdirAll(path string, permissions fs.FileMode) error
	Symlink(linkTarget string, linkPath string) error
	Readlink(linkPath string) (string, error)
	EvalSymlinks(path string) (string, error)
	Remove(path string) error
}
