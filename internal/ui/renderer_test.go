package ui_test

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/internal/evgcli"
	"github.com/evergreen-ci/evg-module-manager/internal/gitrepo"
	"github.com/evergreen-ci/evg-module-manager/internal/modules"
	"github.com/evergreen-ci/evg-module-manager/internal/pullrequests"
	"github.com/evergreen-ci/evg-module-manager/internal/shared"
	"github.com/evergreen-ci/evg-module-manager/internal/ui"
)

func newPlainRenderer(t *testing.T) (*ui.ConsoleRenderer, *strings.Builder) {
	t.Helper()
	previousNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = previousNoColor })

	outputBuilder := &strings.Builder{}
	return ui.NewConsoleRenderer(outputBuilder), outputBuilder
}

func enterpriseListing(enabled bool) ui.ModuleListing {
	return ui.ModuleListing{
		State: modules.ModuleState{
			Module: modules.Module{
				Name:   "enterprise",
				Repo:   "git@github.com:10gen/mongo-enterprise-modules.git",
				Branch: "master",
				Prefix: "src/mongo/db/modules",
			},
			Enabled: enabled,
		},
	}
}

func TestRenderModuleListing(t *testing.T) {
	t.Run("MarksEnabledModules", func(t *testing.T) {
		renderer, output := newPlainRenderer(t)

		renderer.RenderModuleListing([]ui.ModuleListing{enterpriseListing(true)}, false)
		require.Equal(t, "enterprise [enabled]\n", output.String())
	})

	t.Run("OmitsMarkerForDisabledModules", func(t *testing.T) {
		renderer, output := newPlainRenderer(t)

		renderer.RenderModuleListing([]ui.ModuleListing{enterpriseListing(false)}, false)
		require.Equal(t, "enterprise\n", output.String())
	})

	t.Run("ShowDetailsIncludesDeclarationAndRevision", func(t *testing.T) {
		renderer, output := newPlainRenderer(t)
		detailedListing := enterpriseListing(true)
		detailedListing.Revision = "4a1bcd2ef"

		renderer.RenderModuleListing([]ui.ModuleListing{detailedListing}, true)
		require.Contains(t, output.String(), "\tprefix: src/mongo/db/modules\n")
		require.Contains(t, output.String(), "\trepo: git@github.com:10gen/mongo-enterprise-modules.git\n")
		require.Contains(t, output.String(), "\tbranch: master\n")
		require.Contains(t, output.String(), "\trevision: 4a1bcd2ef\n")
	})
}

func TestRenderSymlinkCreated(t *testing.T) {
	renderer, output := newPlainRenderer(t)

	renderer.RenderSymlinkCreated("src/mongo/db/modules/enterprise", "/data/modules/mongo-enterprise-modules")
	require.Equal(t, "Create symlink: src/mongo/db/modules/enterprise -> /data/modules/mongo-enterprise-modules\n", output.String())
}

func TestRenderBranchAction(t *testing.T) {
	renderer, output := newPlainRenderer(t)

	renderer.RenderBranchAction("Branch 'feature' created on:", []string{shared.BaseRepositoryName, "enterprise"})
	require.Equal(t, "Branch 'feature' created on:\n - base\n - enterprise\n", output.String())
}

func TestRenderOperationResults(t *testing.T) {
	t.Run("PrintsOutputsAndPlaceholders", func(t *testing.T) {
		renderer, output := newPlainRenderer(t)

		renderer.RenderOperationResults([]shared.OperationResult{
			{RepositoryName: shared.BaseRepositoryName, Output: "updated to 4a1bcd2\n"},
			{RepositoryName: "enterprise"},
		})
		require.Equal(t, "- base: updated to 4a1bcd2\n- enterprise: ok\n", output.String())
	})

	t.Run("AppendsConflictHint", func(t *testing.T) {
		renderer, output := newPlainRenderer(t)

		renderer.RenderOperationResults([]shared.OperationResult{
			{RepositoryName: "wiredtiger", Err: gitrepo.MergeConflictError{Revision: "master"}},
		})
		require.Contains(t, output.String(), "manual resolution required")
	})
}

func TestRenderStatusesColorsSections(t *testing.T) {
	renderer, output := newPlainRenderer(t)
	statusOutput := strings.Join([]string{
		"On branch feature",
		"Changes to be committed:",
		"  (use \"git restore --staged <file>...\" to unstage)",
		"\tmodified:   src/staged.cpp",
		"Untracked files:",
		"\tsrc/new.cpp",
	}, "\n")

	renderer.RenderStatuses([]shared.OperationResult{{RepositoryName: shared.BaseRepositoryName, Output: statusOutput}})

	renderedOutput := output.String()
	require.Contains(t, renderedOutput, "Status of base:\n")
	require.Contains(t, renderedOutput, "\tmodified:   src/staged.cpp")
	require.Contains(t, renderedOutput, "\tsrc/new.cpp")
}

func TestRenderStatusesColorAnnotations(t *testing.T) {
	previousNoColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = previousNoColor })

	outputBuilder := &strings.Builder{}
	renderer := ui.NewConsoleRenderer(outputBuilder)
	statusOutput := strings.Join([]string{
		"Changes to be committed:",
		"\tmodified:   src/staged.cpp",
		"Changes not staged for commit:",
		"\tmodified:   src/dirty.cpp",
	}, "\n")

	renderer.RenderStatuses([]shared.OperationResult{{RepositoryName: shared.BaseRepositoryName, Output: statusOutput}})

	renderedOutput := outputBuilder.String()
	require.Contains(t, renderedOutput, color.GreenString("\tmodified:   src/staged.cpp"))
	require.Contains(t, renderedOutput, color.RedString("\tmodified:   src/dirty.cpp"))
	require.Contains(t, renderedOutput, "Changes to be committed:")
	require.NotContains(t, renderedOutput, color.GreenString("Changes to be committed:"))
}

func TestRenderPullRequests(t *testing.T) {
	renderer, output := newPlainRenderer(t)

	renderer.RenderPullRequests([]pullrequests.PullRequest{
		{Name: shared.BaseRepositoryName, Link: "https://github.com/10gen/example/pull/1"},
	})
	require.Equal(t, "- base: https://github.com/10gen/example/pull/1\n", output.String())
}

func TestRenderPatchInfo(t *testing.T) {
	renderer, output := newPlainRenderer(t)

	renderer.RenderPatchInfo(evgcli.PatchInfo{PatchID: "63b4a5d7", BuildURL: "https://evergreen.example.com/version/63b4a5d7"})
	require.Equal(t, "Patch Submitted: https://evergreen.example.com/version/63b4a5d7\n", output.String())
}
