package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/evergreen-ci/evg-module-manager/internal/evgcli"
	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/pullrequests"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	statusStagedSignatureConstant    = "Changes to be committed:"
	statusNotStagedSignatureConstant = "Changes not staged for commit:"
	statusUntrackedSignatureConstant = "Untracked files:"

	enabledMarkerConstant              = "[enabled]"
	moduleDetailTemplateConstant       = "\tprefix: %s\n\trepo: %s\n\tbranch: %s\n"
	moduleRevisionTemplateConstant     = "\trevision: %s\n"
	statusHeadingTemplateConstant      = "Status of %s:\n"
	resultEntryTemplateConstant        = "- %s: %s\n"
	failureEntryTemplateConstant       = "- %s: %s\n"
	listEntryTemplateConstant          = " - %s\n"
	pullRequestEntryTemplateConstant   = "- %s: %s\n"
	patchSubmittedTemplateConstant     = "Patch Submitted: %s\n"
	symlinkCreatedTemplateConstant     = "Create symlink: %s -> %s\n"
	conflictHintMessageConstant        = "manual resolution required"
	conflictHintSuffixTemplateConstant = " (%s)"
	statusLinePrefixConstant           = "  "
	okOutputPlaceholderConstant        = "ok"
)

var statusTransitionSignatures = []string{
	statusStagedSignatureConstant,
	statusNotStagedSignatureConstant,
	statusUntrackedSignatureConstant,
}

// statusSection tracks which part of long-form git status output a line belongs to.
type statusSection int

const (
	statusSectionNone statusSection = iota
	statusSectionStaged
	statusSectionNotStaged
	statusSectionUntracked
)

func (section statusSection) next(statusLine string) statusSection {
	switch {
	case strings.HasPrefix(statusLine, statusStagedSignatureConstant):
		return statusSectionStaged
	case strings.HasPrefix(statusLine, statusNotStagedSignatureConstant):
		return statusSectionNotStaged
	case strings.HasPrefix(statusLine, statusUntrackedSignatureConstant):
		return statusSectionUntracked
	}
	return section
}

func (section statusSection) colorize(statusLine string) string {
	for _, transitionSignature := range statusTransitionSignatures {
		if strings.HasPrefix(statusLine, transitionSignature) {
			return statusLine
		}
	}

	trimmedLine := strings.TrimSpace(statusLine)
	if strings.HasPrefix(trimmedLine, "(") && strings.HasSuffix(trimmedLine, ")") {
		return statusLine
	}

	switch section {
	case statusSectionStaged:
		return color.GreenString(statusLine)
	case statusSectionNotStaged, statusSectionUntracked:
		return color.RedString(statusLine)
	}
	return statusLine
}

// ModuleListing pairs a module state with its manifest revision when known.
type ModuleListing struct {
	State    modules.ModuleState
	Revision string
}

// ConsoleRenderer writes human-readable command output to a terminal stream.
type ConsoleRenderer struct {
	writer io.Writer
}

// NewConsoleRenderer constructs a renderer targeting the provided stream.
func NewConsoleRenderer(writer io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{writer: writer}
}

// RenderModuleListing prints the declared modules, flagging enabled ones and
// optionally including per-module details.
func (renderer *ConsoleRenderer) RenderModuleListing(moduleListings []ModuleListing, showDetails bool) {
	for _, moduleListing := range moduleListings {
		moduleLabel := color.YellowString(moduleListing.State.Module.Name)
		if moduleListing.State.Enabled {
			fmt.Fprintf(renderer.writer, "%s %s\n", moduleLabel, color.GreenString(enabledMarkerConstant))
		} else {
			fmt.Fprintf(renderer.writer, "%s\n", moduleLabel)
		}
		if !showDetails {
			continue
		}
		fmt.Fprintf(renderer.writer, moduleDetailTemplateConstant,
			moduleListing.State.Module.Prefix,
			moduleListing.State.Module.Repo,
			moduleListing.State.Module.Branch,
		)
		if len(moduleListing.Revision) > 0 {
			fmt.Fprintf(renderer.writer, moduleRevisionTemplateConstant, moduleListing.Revision)
		}
	}
}

// RenderBranchAction prints an action heading followed by the repository names
// the action applied to.
func (renderer *ConsoleRenderer) RenderBranchAction(actionHeading string, repositoryNames []string) {
	fmt.Fprintf(renderer.writer, "%s\n", actionHeading)
	for _, repositoryName := range repositoryNames {
		fmt.Fprintf(renderer.writer, listEntryTemplateConstant, color.YellowString(repositoryName))
	}
}

// RenderOperationResults prints per-repository outcomes, marking failures in
// red and appending a resolution hint for merge conflicts.
func (renderer *ConsoleRenderer) RenderOperationResults(operationResults []shared.OperationResult) {
	for _, operationResult := range operationResults {
		repositoryLabel := color.YellowString(operationResult.RepositoryName)
		if operationResult.Err != nil {
			fmt.Fprintf(renderer.writer, failureEntryTemplateConstant, repositoryLabel, color.RedString(renderFailure(operationResult.Err)))
			continue
		}
		resultOutput := strings.TrimSpace(operationResult.Output)
		if len(resultOutput) == 0 {
			resultOutput = okOutputPlaceholderConstant
		}
		fmt.Fprintf(renderer.writer, resultEntryTemplateConstant, repositoryLabel, resultOutput)
	}
}

// RenderStatuses prints the long-form git status of every repository with the
// staged, unstaged, and untracked sections colorized.
func (renderer *ConsoleRenderer) RenderStatuses(statusResults []shared.OperationResult) {
	for _, statusResult := range statusResults {
		fmt.Fprintf(renderer.writer, statusHeadingTemplateConstant, color.YellowString(statusResult.RepositoryName))
		if statusResult.Err != nil {
			fmt.Fprintf(renderer.writer, "%s%s\n", statusLinePrefixConstant, color.RedString(statusResult.Err.Error()))
			continue
		}

		currentSection := statusSectionNone
		for _, statusLine := range strings.Split(strings.TrimRight(statusResult.Output, "\n"), "\n") {
			currentSection = currentSection.next(statusLine)
			fmt.Fprintf(renderer.writer, "%s%s\n", statusLinePrefixConstant, currentSection.colorize(statusLine))
		}
		fmt.Fprintln(renderer.writer)
	}
}

// RenderPullRequests prints the links of the created pull requests.
func (renderer *ConsoleRenderer) RenderPullRequests(createdPullRequests []pullrequests.PullRequest) {
	for _, createdPullRequest := range createdPullRequests {
		fmt.Fprintf(renderer.writer, pullRequestEntryTemplateConstant, color.YellowString(createdPullRequest.Name), createdPullRequest.Link)
	}
}

// RenderPatchInfo prints the link of a submitted patch.
func (renderer *ConsoleRenderer) RenderPatchInfo(patchInfo evgcli.PatchInfo) {
	fmt.Fprintf(renderer.writer, patchSubmittedTemplateConstant, patchInfo.BuildURL)
}

// RenderSymlinkCreated prints the link installed while enabling a module.
func (renderer *ConsoleRenderer) RenderSymlinkCreated(linkPath string, clonePath string) {
	fmt.Fprintf(renderer.writer, symlinkCreatedTemplateConstant, linkPath, clonePath)
}

func renderFailure(operationError error) string {
	var conflictError gitrepo.MergeConflictError
	if errors.As(operationError, &conflictError) {
		return operationError.Error() + fmt.Sprintf(conflictHintSuffixTemplateConstant, conflictHintMessageConstant)
	}
	return operationError.Error()
}
