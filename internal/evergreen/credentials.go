package evergreen

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	pathutils "github.com/evergreen-ci/evg-module-manager/internal/utils/path"
)

const (
	credentialsPathRequiredMessageConstant  = "evergreen configuration file path must be provided"
	credentialsReadErrorTemplateConstant    = "unable to read evergreen configuration %s: %w"
	credentialsDecodeErrorTemplateConstant  = "unable to parse evergreen configuration %s: %w"
	credentialsMissingFieldTemplateConstant = "evergreen configuration %s is missing %s"
	apiServerHostFieldNameConstant          = "api_server_host"
	userFieldNameConstant                   = "user"
	apiKeyFieldNameConstant                 = "api_key"
)

// ErrCredentialsPathRequired indicates no configuration file path was supplied.
var ErrCredentialsPathRequired = errors.New(credentialsPathRequiredMessageConstant)

// Credentials holds the authentication material read from an Evergreen configuration file.
type Credentials struct {
	APIServerHost string `yaml:"api_server_host"`
	User          string `yaml:"user"`
	APIKey        string `yaml:"api_key"`
}

// IncompleteCredentialsError indicates a configuration file omitted a required field.
type IncompleteCredentialsError struct {
	ConfigurationPath string
	FieldName         string
}

// Error names the missing configuration field.
func (credentialsError IncompleteCredentialsError) Error() string {
	return fmt.Sprintf(credentialsMissingFieldTemplateConstant, credentialsError.ConfigurationPath, credentialsError.FieldName)
}

// LoadCredentials reads Evergreen API credentials from the provided configuration file.
//
// Tilde prefixes in the path are expanded so the default ~/.evergreen.yml location works.
func LoadCredentials(configurationPath string, homeExpander *pathutils.HomeExpander) (Credentials, error) {
	trimmedPath := strings.TrimSpace(configurationPath)
	if len(trimmedPath) == 0 {
		return Credentials{}, ErrCredentialsPathRequired
	}

	expandedPath := homeExpander.Expand(trimmedPath)
	configurationContent, readError := os.ReadFile(expandedPath)
	if readError != nil {
		return Credentials{}, fmt.Errorf(credentialsReadErrorTemplateConstant, expandedPath, readError)
	}

	credentials := Credentials{}
	if decodeError := yaml.Unmarshal(configurationContent, &credentials); decodeError != nil {
		return Credentials{}, fmt.Errorf(credentialsDecodeErrorTemplateConstant, expandedPath, decodeError)
	}

	requiredFields := []struct {
		name  string
		value string
	}{
		{name: apiServerHostFieldNameConstant, value: credentials.APIServerHost},
		{name: userFieldNameConstant, value: credentials.User},
		{name: apiKeyFieldNameConstant, value: credentials.APIKey},
	}
	for _, requiredField := range requiredFields {
		if len(strings.TrimSpace(requiredField.value)) == 0 {
			return Credentials{}, IncompleteCredentialsError{ConfigurationPath: expandedPath, FieldName: requiredField.name}
		}
	}

	return credentials, nil
}
