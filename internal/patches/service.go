// Package patches builds Evergreen patches and commit-queue patches that
// include every enabled module alongside the base repository.
package patches

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/evergreen-ci/evg-module-manager/internal/evgcli"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
)

const (
	patchCreatedMessageConstant       = "created patch"
	moduleAttachedMessageConstant     = "attached module to patch"
	patchIdentifierFieldNameConstant  = "patch_id"
	moduleNameFieldNameConstant       = "module"
	serviceDependenciesErrorConstant  = "patch service dependencies are incomplete"
	projectIdentifierRequiredConstant = "project identifier must not be empty"
	moduleAttachmentErrorTemplate     = "attach module %s to patch %s: %w"
)

// ErrServiceDependenciesIncomplete indicates NewService received missing dependencies.
var ErrServiceDependenciesIncomplete = errors.New(serviceDependenciesErrorConstant)

// ErrProjectIdentifierRequired indicates the service was constructed without a project.
var ErrProjectIdentifierRequired = errors.New(projectIdentifierRequiredConstant)

// PatchClient describes the Evergreen CLI operations used when building patches.
type PatchClient interface {
	CreatePatch(executionContext context.Context, projectIdentifier string, userArguments []string) (evgcli.PatchInfo, error)
	AddModuleToPatch(executionContext context.Context, patchIdentifier string, moduleName string, moduleDirectory string, userArguments []string) error
	CreateCommitQueuePatch(executionContext context.Context, projectIdentifier string, userArguments []string) (evgcli.PatchInfo, error)
	AddModuleToCommitQueuePatch(executionContext context.Context, patchIdentifier string, moduleName string, moduleDirectory string, userArguments []string) error
	FinalizeCommitQueuePatch(executionContext context.Context, patchIdentifier string) error
}

// ModuleEnumerator lists project modules together with their enablement state.
type ModuleEnumerator interface {
	AllModules(executionContext context.Context, enabledOnly bool) ([]modules.ModuleState, error)
	LinkPath(declaredModule modules.Module) string
}

// Dependencies bundles the collaborators required by the patch service.
type Dependencies struct {
	PatchClient      PatchClient
	ModuleEnumerator ModuleEnumerator
	Logger           *zap.Logger
}

// Options carries the project configuration for patch creation.
type Options struct {
	ProjectIdentifier string
}

// Service creates Evergreen patches spanning the base repository and enabled modules.
type Service struct {
	patchClient       PatchClient
	moduleEnumerator  ModuleEnumerator
	logger            *zap.Logger
	projectIdentifier string
}

// NewService validates dependencies and returns a configured patch service.
func NewService(dependencies Dependencies, options Options) (*Service, error) {
	if dependencies.PatchClient == nil || dependencies.ModuleEnumerator == nil || dependencies.Logger == nil {
		return nil, ErrServiceDependenciesIncomplete
	}
	if len(options.ProjectIdentifier) == 0 {
		return nil, ErrProjectIdentifierRequired
	}
	serviceInstance := &Service{
		patchClient:       dependencies.PatchClient,
		moduleEnumerator:  dependencies.ModuleEnumerator,
		logger:            dependencies.Logger,
		projectIdentifier: options.ProjectIdentifier,
	}
	return serviceInstance, nil
}

// CreatePatch submits a patch for the base repository and attaches every
// enabled module to it. The returned info identifies the created patch.
func (service *Service) CreatePatch(executionContext context.Context, userArguments []string) (evgcli.PatchInfo, error) {
	enabledStates, enumerationError := service.moduleEnumerator.AllModules(executionContext, true)
	if enumerationError != nil {
		return evgcli.PatchInfo{}, enumerationError
	}
	patchInfo, creationError := service.patchClient.CreatePatch(executionContext, service.projectIdentifier, userArguments)
	if creationError != nil {
		return evgcli.PatchInfo{}, creationError
	}
	service.logger.Info(patchCreatedMessageConstant, zap.String(patchIdentifierFieldNameConstant, patchInfo.PatchID))
	for _, moduleState := range enabledStates {
		moduleDirectory := service.moduleEnumerator.LinkPath(moduleState.Module)
		attachmentError := service.patchClient.AddModuleToPatch(executionContext, patchInfo.PatchID, moduleState.Module.Name, moduleDirectory, userArguments)
		if attachmentError != nil {
			return evgcli.PatchInfo{}, fmt.Errorf(moduleAttachmentErrorTemplate, moduleState.Module.Name, patchInfo.PatchID, attachmentError)
		}
		service.logger.Info(moduleAttachedMessageConstant,
			zap.String(patchIdentifierFieldNameConstant, patchInfo.PatchID),
			zap.String(moduleNameFieldNameConstant, moduleState.Module.Name),
		)
	}
	return patchInfo, nil
}

// CreateCommitQueuePatch submits a paused commit-queue patch, attaches every
// enabled module, and resumes the patch once all modules are attached.
func (service *Service) CreateCommitQueuePatch(executionContext context.Context, userArguments []string) (evgcli.PatchInfo, error) {
	enabledStates, enumerationError := service.moduleEnumerator.AllModules(executionContext, true)
	if enumerationError != nil {
		return evgcli.PatchInfo{}, enumerationError
	}
	patchInfo, creationError := service.patchClient.CreateCommitQueuePatch(executionContext, service.projectIdentifier, userArguments)
	if creationError != nil {
		return evgcli.PatchInfo{}, creationError
	}
	service.logger.Info(patchCreatedMessageConstant, zap.String(patchIdentifierFieldNameConstant, patchInfo.PatchID))
	for _, moduleState := range enabledStates {
		moduleDirectory := service.moduleEnumerator.LinkPath(moduleState.Module)
		attachmentError := service.patchClient.AddModuleToCommitQueuePatch(executionContext, patchInfo.PatchID, moduleState.Module.Name, moduleDirectory, userArguments)
		if attachmentError != nil {
			return evgcli.PatchInfo{}, fmt.Errorf(moduleAttachmentErrorTemplate, moduleState.Module.Name, patchInfo.PatchID, attachmentError)
		}
		service.logger.Info(moduleAttachedMessageConstant,
			zap.String(patchIdentifierFieldNameConstant, patchInfo.PatchID),
			zap.String(moduleNameFieldNameConstant, moduleState.Module.Name),
		)
	}
	finalizationError := service.patchClient.FinalizeCommitQueuePatch(executionContext, patchInfo.PatchID)
	if finalizationError != nil {
		return evgcli.PatchInfo{}, finalizationError
	}
	return patchInfo, nil
}
