package localconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evergreen-ci/evg-module-manager/internal/localconfig"
)

const (
	testProjectNameConstant      = "mongodb-mongo-master"
	testModulesDirectoryConstant = ".."
)

func builtInDefaults() localconfig.Configuration {
	return localconfig.Configuration{
		EvergreenProject: testProjectNameConstant,
		ModulesDirectory: testModulesDirectoryConstant,
	}
}

func TestLoadAppliesDefaultsWithoutFile(t *testing.T) {
	loadedConfiguration, loadError := localconfig.Load([]string{t.TempDir()}, builtInDefaults())
	require.NoError(t, loadError)
	require.Equal(t, builtInDefaults(), loadedConfiguration)
}

func TestLoadReadsValuesFromFile(t *testing.T) {
	configurationDirectory := t.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, localconfig.FileName)
	require.NoError(t, os.WriteFile(configurationFilePath, []byte("evg_project: mongodb-mongo-v6.0\nmodules_directory: /srv/modules\n"), 0o644))

	loadedConfiguration, loadError := localconfig.Load([]string{configurationDirectory}, builtInDefaults())
	require.NoError(t, loadError)
	require.Equal(t, "mongodb-mongo-v6.0", loadedConfiguration.EvergreenProject)
	require.Equal(t, "/srv/modules", loadedConfiguration.ModulesDirectory)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	configurationDirectory := t.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, localconfig.FileName)
	require.NoError(t, os.WriteFile(configurationFilePath, []byte("evg_project: mongodb-mongo-v6.0\n"), 0o644))
	t.Setenv("EMM_EVG_PROJECT", "mongodb-mongo-v7.0")

	loadedConfiguration, loadError := localconfig.Load([]string{configurationDirectory}, builtInDefaults())
	require.NoError(t, loadError)
	require.Equal(t, "mongodb-mongo-v7.0", loadedConfiguration.EvergreenProject)
	require.Equal(t, testModulesDirectoryConstant, loadedConfiguration.ModulesDirectory)
}

func TestSaveRequiresFilePath(t *testing.T) {
	saveError := localconfig.Save("", builtInDefaults())
	require.ErrorIs(t, saveError, localconfig.ErrFilePathRequired)
}

func TestSaveOmitsEmptyFields(t *testing.T) {
	configurationFilePath := filepath.Join(t.TempDir(), localconfig.FileName)

	saveError := localconfig.Save(configurationFilePath, localconfig.Configuration{EvergreenProject: testProjectNameConstant})
	require.NoError(t, saveError)

	savedContent, readError := os.ReadFile(configurationFilePath)
	require.NoError(t, readError)
	require.Contains(t, string(savedContent), "evg_project: "+testProjectNameConstant)
	require.NotContains(t, string(savedContent), "modules_directory")
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	configurationDirectory := t.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, localconfig.FileName)
	savedConfiguration := localconfig.Configuration{
		EvergreenProject: "mongodb-mongo-v6.0",
		ModulesDirectory: "/srv/modules",
	}

	require.NoError(t, localconfig.Save(configurationFilePath, savedConfiguration))

	loadedConfiguration, loadError := localconfig.Load([]string{configurationDirectory}, builtInDefaults())
	require.NoError(t, loadError)
	require.Equal(t, savedConfiguration, loadedConfiguration)
}
