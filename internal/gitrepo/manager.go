package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	gitExecutorMissingMessageConstant        = "git executor not configured"
	requiredValueMessageConstant             = "value required"
	gitOperationErrorTemplateConstant        = "git %s failed: %s"
	mergeConflictMessageTemplateConstant     = "merge conflict while applying %s"
	protectedBranchMessageTemplateConstant   = "refusing to push protected branch %q"
	gitCloneSubcommandConstant               = "clone"
	gitCloneBranchFlagConstant               = "--branch"
	gitFetchSubcommandConstant               = "fetch"
	gitPullSubcommandConstant                = "pull"
	gitPullRebaseFlagConstant                = "--rebase"
	gitCheckoutSubcommandConstant            = "checkout"
	gitCheckoutNewBranchFlagConstant         = "-b"
	gitBranchSubcommandConstant              = "branch"
	gitBranchForceDeleteFlagConstant         = "-D"
	gitStatusSubcommandConstant              = "status"
	gitStatusShortFlagConstant               = "--short"
	gitListFilesSubcommandConstant           = "ls-files"
	gitListFilesCachedFlagConstant           = "--cached"
	gitListFilesOthersFlagConstant           = "--others"
	gitListFilesExcludeStandardFlagConstant  = "--exclude-standard"
	gitPathspecSeparatorConstant             = "--"
	gitAddSubcommandConstant                 = "add"
	gitRestoreSubcommandConstant             = "restore"
	gitRestoreStagedFlagConstant             = "--staged"
	gitRebaseSubcommandConstant              = "rebase"
	gitMergeSubcommandConstant               = "merge"
	gitRevParseSubcommandConstant            = "rev-parse"
	gitHeadReferenceConstant                 = "HEAD"
	gitAbbreviatedReferenceFlagConstant      = "--abbrev-ref"
	gitMergeBaseSubcommandConstant           = "merge-base"
	gitCommitSubcommandConstant              = "commit"
	gitCommitAllFlagConstant                 = "--all"
	gitCommitMessageFlagConstant             = "--message"
	gitCommitAmendFlagConstant               = "--amend"
	gitCommitReuseMessageFlagConstant        = "--reuse-message=HEAD"
	gitSymbolicRefSubcommandConstant         = "symbolic-ref"
	gitOriginHeadReferenceConstant           = "refs/remotes/origin/HEAD"
	gitDiffSubcommandConstant                = "diff"
	gitDiffNameOnlyFlagConstant              = "--name-only"
	gitPushSubcommandConstant                = "push"
	gitPushSetUpstreamFlagConstant           = "--set-upstream"
	mainBranchNameConstant                   = "main"
	masterBranchNameConstant                 = "master"
	conflictMarkerFragmentConstant           = "CONFLICT"
	conflictCouldNotApplyFragmentConstant    = "could not apply"
	conflictNeedsMergeFragmentConstant       = "needs merge"
	gitTerminalPromptEnvironmentNameConstant = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledValueConstant   = "0"
)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ProtectedBranchNames enumerates branch names that must never receive direct pushes.
var ProtectedBranchNames = []string{mainBranchNameConstant, masterBranchNameConstant}

// GitOperationError reports a git subcommand that exited unsuccessfully.
type GitOperationError struct {
	Operation string
	Output    string
	Cause     error
}

// Error describes the failed operation including captured output.
func (operationError GitOperationError) Error() string {
	return fmt.Sprintf(gitOperationErrorTemplateConstant, operationError.Operation, operationError.Output)
}

// Unwrap exposes the underlying execution failure.
func (operationError GitOperationError) Unwrap() error {
	return operationError.Cause
}

// MergeConflictError reports that a merge or rebase stopped on conflicting changes.
type MergeConflictError struct {
	Revision string
	Output   string
}

// Error describes the conflicting revision.
func (conflictError MergeConflictError) Error() string {
	return fmt.Sprintf(mergeConflictMessageTemplateConstant, conflictError.Revision)
}

// ProtectedBranchError reports an attempted push to a protected branch.
type ProtectedBranchError struct {
	BranchName string
}

// Error describes the refused branch.
func (protectedError ProtectedBranchError) Error() string {
	return fmt.Sprintf(protectedBranchMessageTemplateConstant, protectedError.BranchName)
}

// CommitOptions configures commit creation.
type CommitOptions struct {
	Message    string
	Amend      bool
	IncludeAll bool
}

// ListFilesOptions configures which tracked and untracked files are listed.
type ListFilesOptions struct {
	Pathspecs       []string
	Cached          bool
	Others          bool
	ExcludeStandard bool
}

// RepositoryManager performs git operations against local repositories through a shell executor.
type RepositoryManager struct {
	executor shared.GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor shared.GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// Clone creates a local copy of the remote repository inside parentDirectory.
func (manager *RepositoryManager) Clone(executionContext context.Context, parentDirectory string, remoteURL string, localName string, branchName string) error {
	arguments := []string{gitCloneSubcommandConstant}
	if len(strings.TrimSpace(branchName)) > 0 {
		arguments = append(arguments, gitCloneBranchFlagConstant, branchName)
	}
	arguments = append(arguments, remoteURL, localName)
	_, executionError := manager.run(executionContext, parentDirectory, arguments)
	return executionError
}

// Fetch downloads new objects and references from the origin remote.
func (manager *RepositoryManager) Fetch(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, []string{gitFetchSubcommandConstant, shared.OriginRemoteNameConstant})
	return executionError
}

// FetchBranch downloads the named branch from the origin remote.
func (manager *RepositoryManager) FetchBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, []string{gitFetchSubcommandConstant, shared.OriginRemoteNameConstant, branchName})
	return executionError
}

// Pull integrates remote changes into the current branch, rebasing when requested.
func (manager *RepositoryManager) Pull(executionContext context.Context, repositoryPath string, rebase bool) (string, error) {
	arguments := []string{gitPullSubcommandConstant}
	if rebase {
		arguments = append(arguments, gitPullRebaseFlagConstant)
	}
	output, executionError := manager.run(executionContext, repositoryPath, arguments)
	if executionError != nil {
		return output, wrapConflictError(executionError, shared.OriginRemoteNameConstant)
	}
	return output, nil
}

// Checkout switches the working tree to the provided revision.
func (manager *RepositoryManager) Checkout(executionContext context.Context, repositoryPath string, revision string) error {
	_, executionError := manager.run(executionContext, repositoryPath, []string{gitCheckoutSubcommandConstant, revision})
	return executionError
}

// CheckoutNewBranch creates a branch at the current revision and switches to it.
func (manager *RepositoryManager) CheckoutNewBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.run(executionContext, repositoryPath, []string{gitCheckoutSubcommandConstant, gitCheckoutNewBranchFlagConstant, branchName})
	return executionError
}

// ListBranches returns the local branch listing exactly as git prints it.
func (manager *RepositoryManager) ListBranches(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.run(executionContext, repositoryPath, []string{gitBranchSubcommandConstant})
}

// DeleteBranch force-deletes the named local branch.
func (manager *RepositoryManager) DeleteBranch(executionContext context.Context, repositoryPath string, branchName string) (string, error) {
	return manager.run(executionContext, repositoryPath, []string{gitBranchSubcommandConstant, gitBranchForceDeleteFlagConstant, branchName})
}

// Status returns the porcelain short status of the working tree.
func (manager *RepositoryManager) Status(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.run(executionContext, repositoryPath, []string{gitStatusSubcommandConstant, gitStatusShortFlagConstant})
}

// FullStatus reports the long-form worktree status used for display.
func (manager *RepositoryManager) FullStatus(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.run(executionContext, repositoryPath, []string{gitStatusSubcommandConstant})
}

// ListFiles returns the files matching the provided listing options, one per line.
func (manager *RepositoryManager) ListFiles(executionContext context.Context, repositoryPath string, options ListFilesOptions) ([]string, error) {
	arguments := []string{gitListFilesSubcommandConstant}
	if options.Cached {
		arguments = append(arguments, gitListFilesCachedFlagConstant)
	}
	if options.Others {
		arguments = append(arguments, gitListFilesOthersFlagConstant)
	}
	if options.ExcludeStandard {
		arguments = append(arguments, gitListFilesExcludeStandardFlagConstant)
	}
	if len(options.Pathspecs) > 0 {
		arguments = append(arguments, gitPathspecSeparatorConstant)
		arguments = append(arguments, options.Pathspecs...)
	}
	output, executionError := manager.run(executionContext, repositoryPath, arguments)
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(output), nil
}

// StageFiles adds the provided pathspecs to the index.
func (manager *RepositoryManager) StageFiles(executionContext context.Context, repositoryPath string, pathspecs []string) error {
	arguments := []string{gitAddSubcommandConstant, gitPathspecSeparatorConstant}
	arguments = append(arguments, pathspecs...)
	_, executionError := manager.run(executionContext, repositoryPath, arguments)
	return executionError
}

// RestoreFiles restores the provided pathspecs, optionally unstaging them instead.
func (manager *RepositoryManager) RestoreFiles(executionContext context.Context, repositoryPath string, pathspecs []string, staged bool) error {
	arguments := []string{gitRestoreSubcommandConstant}
	if staged {
		arguments = append(arguments, gitRestoreStagedFlagConstant)
	}
	arguments = append(arguments, gitPathspecSeparatorConstant)
	arguments = append(arguments, pathspecs...)
	_, executionError := manager.run(executionContext, repositoryPath, arguments)
	return executionError
}

// Rebase replays the current branch on top of the provided revision.
func (manager *RepositoryManager) Rebase(executionContext context.Context, repositoryPath string, revision string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitRebaseSubcommandConstant, revision})
	if executionError != nil {
		return output, wrapConflictError(executionError, revision)
	}
	return output, nil
}

// Merge merges the provided revision into the current branch.
func (manager *RepositoryManager) Merge(executionContext context.Context, repositoryPath string, revision string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitMergeSubcommandConstant, revision})
	if executionError != nil {
		return output, wrapConflictError(executionError, revision)
	}
	return output, nil
}

// CurrentCommit resolves the commit hash the working tree currently points at.
func (manager *RepositoryManager) CurrentCommit(executionContext context.Context, repositoryPath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitRevParseSubcommandConstant, gitHeadReferenceConstant})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// CurrentBranch resolves the name of the checked-out branch.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitRevParseSubcommandConstant, gitAbbreviatedReferenceFlagConstant, gitHeadReferenceConstant})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// MergeBase finds the best common ancestor between the two revisions.
func (manager *RepositoryManager) MergeBase(executionContext context.Context, repositoryPath string, firstRevision string, secondRevision string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitMergeBaseSubcommandConstant, firstRevision, secondRevision})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(output), nil
}

// Commit records staged changes, amending the previous commit when requested.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, options CommitOptions) (string, error) {
	arguments := []string{gitCommitSubcommandConstant}
	if options.IncludeAll {
		arguments = append(arguments, gitCommitAllFlagConstant)
	}
	if options.Amend {
		arguments = append(arguments, gitCommitAmendFlagConstant, gitCommitReuseMessageFlagConstant)
	}
	if len(options.Message) > 0 {
		arguments = append(arguments, gitCommitMessageFlagConstant, options.Message)
	}
	return manager.run(executionContext, repositoryPath, arguments)
}

// DefaultBranchName resolves the branch the origin remote points at, such as main or master.
func (manager *RepositoryManager) DefaultBranchName(executionContext context.Context, repositoryPath string) (string, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitSymbolicRefSubcommandConstant, gitOriginHeadReferenceConstant})
	if executionError != nil {
		return "", executionError
	}
	return path.Base(strings.TrimSpace(output)), nil
}

// HasDifferences reports whether the working tree differs from the target revision.
func (manager *RepositoryManager) HasDifferences(executionContext context.Context, repositoryPath string, targetRevision string) (bool, error) {
	output, executionError := manager.run(executionContext, repositoryPath, []string{gitDiffSubcommandConstant, gitDiffNameOnlyFlagConstant, targetRevision, gitHeadReferenceConstant})
	if executionError != nil {
		return false, executionError
	}
	return len(strings.TrimSpace(output)) > 0, nil
}

// PushCurrentBranch publishes the checked-out branch to origin, refusing protected branches.
func (manager *RepositoryManager) PushCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	branchName, branchError := manager.CurrentBranch(executionContext, repositoryPath)
	if branchError != nil {
		return "", branchError
	}
	for _, protectedBranchName := range ProtectedBranchNames {
		if branchName == protectedBranchName {
			return "", ProtectedBranchError{BranchName: branchName}
		}
	}
	return manager.run(executionContext, repositoryPath, []string{gitPushSubcommandConstant, gitPushSetUpstreamFlagConstant, shared.OriginRemoteNameConstant, gitHeadReferenceConstant})
}

func (manager *RepositoryManager) run(executionContext context.Context, workingDirectory string, arguments []string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptDisabledValueConstant},
	})
	combinedOutput := combineOutput(executionResult)
	if executionError != nil {
		return combinedOutput, GitOperationError{Operation: arguments[0], Output: combinedOutput, Cause: executionError}
	}
	return executionResult.StandardOutput, nil
}

func combineOutput(executionResult execshell.ExecutionResult) string {
	segments := make([]string, 0, 2)
	if len(strings.TrimSpace(executionResult.StandardOutput)) > 0 {
		segments = append(segments, strings.TrimRight(executionResult.StandardOutput, "\n"))
	}
	if len(strings.TrimSpace(executionResult.StandardError)) > 0 {
		segments = append(segments, strings.TrimRight(executionResult.StandardError, "\n"))
	}
	return strings.Join(segments, "\n")
}

func wrapConflictError(operationError error, revision string) error {
	var gitError GitOperationError
	if !errors.As(operationError, &gitError) {
		return operationError
	}
	conflictFragments := []string{conflictMarkerFragmentConstant, conflictCouldNotApplyFragmentConstant, conflictNeedsMergeFragmentConstant}
	for _, fragment := range conflictFragments {
		if strings.Contains(gitError.Output, fragment) {
			return MergeConflictError{Revision: revision, Output: gitError.Output}
		}
	}
	return operationError
}

func splitNonEmptyLines(output string) []string {
	lines := strings.Split(output, "\n")
	nonEmptyLines := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) > 0 {
			nonEmptyLines = append(nonEmptyLines, trimmedLine)
		}
	}
	return nonEmptyLines
}
