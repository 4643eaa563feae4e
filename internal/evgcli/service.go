package evgcli

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/evergreen-ci/evg-module-manager/internal/execshell"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
)

const (
	evergreenExecutorMissingMessageConstant = "evergreen executor not configured"
	projectRequiredMessageConstant          = "evergreen project must be provided"
	patchIdentifierRequiredMessageConstant  = "patch identifier must be provided"
	unrecognizedPatchOutputMessageConstant  = "could not recognize patch details in evergreen output"
	reservedFlagConflictTemplateConstant    = "flag %s is supplied automatically and cannot be overridden"
	patchSubcommandConstant                 = "patch"
	patchSetModuleSubcommandConstant        = "patch-set-module"
	finalizePatchSubcommandConstant         = "finalize-patch"
	commitQueueSubcommandConstant           = "commit-queue"
	commitQueueMergeSubcommandConstant      = "merge"
	commitQueueSetModuleSubcommandConstant  = "set-module"
	evaluateSubcommandConstant              = "evaluate"
	projectFlagConstant                     = "--project"
	projectShortFlagConstant                = "-p"
	skipConfirmFlagConstant                 = "--skip_confirm"
	yesFlagConstant                         = "--yes"
	yesShortFlagConstant                    = "-y"
	pauseFlagConstant                       = "--pause"
	resumeFlagConstant                      = "--resume"
	moduleFlagConstant                      = "--module"
	patchFlagConstant                       = "--patch"
	identifierFlagConstant                  = "--id"
	pathFlagConstant                        = "--path"
	uncommittedFlagConstant                 = "--uncommitted"
	uncommittedShortFlagConstant            = "-u"
	largeFlagConstant                       = "--large"
	preserveCommitsFlagConstant             = "--preserve-commits"
)

var (
	patchIdentifierPattern = regexp.MustCompile(`(?m)ID\s:\s(\S+)$`)
	patchBuildURLPattern   = regexp.MustCompile(`(?m)Build\s:\s(\S+)$`)
)

// ErrEvergreenExecutorNotConfigured indicates the evergreen executor dependency was missing.
var ErrEvergreenExecutorNotConfigured = errors.New(evergreenExecutorMissingMessageConstant)

// ErrProjectRequired indicates an empty project identifier was supplied.
var ErrProjectRequired = errors.New(projectRequiredMessageConstant)

// ErrPatchIdentifierRequired indicates an empty patch identifier was supplied.
var ErrPatchIdentifierRequired = errors.New(patchIdentifierRequiredMessageConstant)

// ErrUnrecognizedPatchOutput indicates the CLI output did not carry patch details.
var ErrUnrecognizedPatchOutput = errors.New(unrecognizedPatchOutputMessageConstant)

// reservedPatchFlags are injected into patch invocations and may not appear
// in user arguments.
var reservedPatchFlags = []string{
	projectFlagConstant,
	projectShortFlagConstant,
	skipConfirmFlagConstant,
	yesFlagConstant,
	yesShortFlagConstant,
}

// reservedCommitQueueFlags additionally cover the pause and resume flags the
// bridge uses to sequence module attachment around the merge.
var reservedCommitQueueFlags = append(
	[]string{pauseFlagConstant, resumeFlagConstant},
	reservedPatchFlags...,
)

// moduleForwardedFlags are the user arguments forwarded to patch-set-module invocations.
var moduleForwardedFlags = map[string]string{
	uncommittedFlagConstant:      uncommittedFlagConstant,
	uncommittedShortFlagConstant: uncommittedFlagConstant,
	largeFlagConstant:            largeFlagConstant,
	preserveCommitsFlagConstant:  preserveCommitsFlagConstant,
}

// ReservedFlagConflictError indicates user arguments contained a flag the bridge manages itself.
type ReservedFlagConflictError struct {
	FlagName string
}

// Error names the conflicting flag.
func (conflictError ReservedFlagConflictError) Error() string {
	return fmt.Sprintf(reservedFlagConflictTemplateConstant, conflictError.FlagName)
}

// PatchInfo captures the identifier and build URL of a created patch.
type PatchInfo struct {
	PatchID  string
	BuildURL string
}

// Service wraps the Evergreen command-line tool for patch and evaluation workflows.
type Service struct {
	executor shared.EvergreenCLIExecutor

	evaluationGuard sync.Mutex
	evaluationCache map[string]string
}

// NewService constructs a Service backed by the provided executor.
func NewService(executor shared.EvergreenCLIExecutor) (*Service, error) {
	if executor == nil {
		return nil, ErrEvergreenExecutorNotConfigured
	}
	return &Service{executor: executor, evaluationCache: map[string]string{}}, nil
}

// Evaluate expands the project configuration at the given path into plain YAML.
//
// Evaluations are cached per path since configuration files do not change
// during one invocation.
func (service *Service) Evaluate(executionContext context.Context, configurationPath string) (string, error) {
	service.evaluationGuard.Lock()
	cachedOutput, cached := service.evaluationCache[configurationPath]
	service.evaluationGuard.Unlock()
	if cached {
		return cachedOutput, nil
	}

	output, executionError := service.run(executionContext, "", []string{evaluateSubcommandConstant, pathFlagConstant, configurationPath})
	if executionError != nil {
		return "", executionError
	}

	service.evaluationGuard.Lock()
	service.evaluationCache[configurationPath] = output
	service.evaluationGuard.Unlock()
	return output, nil
}

// CreatePatch submits a patch build for the project and returns the created patch details.
func (service *Service) CreatePatch(executionContext context.Context, projectIdentifier string, userArguments []string) (PatchInfo, error) {
	if len(strings.TrimSpace(projectIdentifier)) == 0 {
		return PatchInfo{}, ErrProjectRequired
	}
	if conflictError := rejectReservedFlags(userArguments, reservedPatchFlags); conflictError != nil {
		return PatchInfo{}, conflictError
	}

	arguments := []string{patchSubcommandConstant, projectFlagConstant, projectIdentifier, skipConfirmFlagConstant}
	arguments = append(arguments, userArguments...)
	output, executionError := service.run(executionContext, "", arguments)
	if executionError != nil {
		return PatchInfo{}, executionError
	}
	return parsePatchInfo(output)
}

// AddModuleToPatch attaches the module changes found in moduleDirectory to an existing patch.
func (service *Service) AddModuleToPatch(executionContext context.Context, patchIdentifier string, moduleName string, moduleDirectory string, userArguments []string) error {
	if len(strings.TrimSpace(patchIdentifier)) == 0 {
		return ErrPatchIdentifierRequired
	}

	arguments := []string{patchSetModuleSubcommandConstant, moduleFlagConstant, moduleName, patchFlagConstant, patchIdentifier, skipConfirmFlagConstant}
	arguments = append(arguments, forwardedModuleFlags(userArguments)...)
	_, executionError := service.run(executionContext, moduleDirectory, arguments)
	return executionError
}

// FinalizePatch schedules a patch that was created without immediate scheduling.
func (service *Service) FinalizePatch(executionContext context.Context, patchIdentifier string) error {
	if len(strings.TrimSpace(patchIdentifier)) == 0 {
		return ErrPatchIdentifierRequired
	}
	_, executionError := service.run(executionContext, "", []string{finalizePatchSubcommandConstant, identifierFlagConstant, patchIdentifier})
	return executionError
}

// CreateCommitQueuePatch submits a paused commit-queue merge for the project.
func (service *Service) CreateCommitQueuePatch(executionContext context.Context, projectIdentifier string, userArguments []string) (PatchInfo, error) {
	if len(strings.TrimSpace(projectIdentifier)) == 0 {
		return PatchInfo{}, ErrProjectRequired
	}
	if conflictError := rejectReservedFlags(userArguments, reservedCommitQueueFlags); conflictError != nil {
		return PatchInfo{}, conflictError
	}

	arguments := []string{commitQueueSubcommandConstant, commitQueueMergeSubcommandConstant, projectFlagConstant, projectIdentifier, pauseFlagConstant}
	arguments = append(arguments, userArguments...)
	output, executionError := service.run(executionContext, "", arguments)
	if executionError != nil {
		return PatchInfo{}, executionError
	}
	return parsePatchInfo(output)
}

// AddModuleToCommitQueuePatch attaches module changes to an existing commit-queue patch.
func (service *Service) AddModuleToCommitQueuePatch(executionContext context.Context, patchIdentifier string, moduleName string, moduleDirectory string, userArguments []string) error {
	if len(strings.TrimSpace(patchIdentifier)) == 0 {
		return ErrPatchIdentifierRequired
	}

	arguments := []string{commitQueueSubcommandConstant, commitQueueSetModuleSubcommandConstant, moduleFlagConstant, moduleName, identifierFlagConstant, patchIdentifier, skipConfirmFlagConstant}
	arguments = append(arguments, userArguments...)
	_, executionError := service.run(executionContext, moduleDirectory, arguments)
	return executionError
}

// FinalizeCommitQueuePatch resumes a paused commit-queue merge.
func (service *Service) FinalizeCommitQueuePatch(executionContext context.Context, patchIdentifier string) error {
	if len(strings.TrimSpace(patchIdentifier)) == 0 {
		return ErrPatchIdentifierRequired
	}
	_, executionError := service.run(executionContext, "", []string{commitQueueSubcommandConstant, commitQueueMergeSubcommandConstant, resumeFlagConstant, patchIdentifier})
	return executionError
}

func (service *Service) run(executionContext context.Context, workingDirectory string, arguments []string) (string, error) {
	executionResult, executionError := service.executor.ExecuteEvergreen(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
	})
	if executionError != nil {
		return "", executionError
	}
	return executionResult.StandardOutput, nil
}

func rejectReservedFlags(userArguments []string, reservedFlags []string) error {
	for _, userArgument := range userArguments {
		for _, reservedFlag := range reservedFlags {
			if userArgument == reservedFlag {
				return ReservedFlagConflictError{FlagName: reservedFlag}
			}
		}
	}
	return nil
}

func forwardedModuleFlags(userArguments []string) []string {
	forwarded := make([]string, 0, len(userArguments))
	seen := map[string]bool{}
	for _, userArgument := range userArguments {
		canonicalFlag, recognized := moduleForwardedFlags[userArgument]
		if recognized && !seen[canonicalFlag] {
			forwarded = append(forwarded, canonicalFlag)
			seen[canonicalFlag] = true
		}
	}
	return forwarded
}

func parsePatchInfo(commandOutput string) (PatchInfo, error) {
	identifierMatch := patchIdentifierPattern.FindStringSubmatch(commandOutput)
	buildURLMatch := patchBuildURLPattern.FindStringSubmatch(commandOutput)
	if identifierMatch == nil || buildURLMatch == nil {
		return PatchInfo{}, fmt.Errorf("%w: %s", ErrUnrecognizedPatchOutput, strings.TrimSpace(commandOutput))
	}
	return PatchInfo{PatchID: identifierMatch[1], BuildURL: buildURLMatch[1]}, nil
}
