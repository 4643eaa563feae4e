package evergreen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	httpClientMissingMessageConstant       = "http client not configured"
	credentialsMissingMessageConstant      = "evergreen credentials not configured"
	projectIdentifierRequiredMessage       = "project identifier must be provided"
	revisionRequiredMessageConstant        = "revision must be provided"
	configFetchErrorTemplateConstant       = "unable to fetch project configuration for %s: %s"
	manifestFetchErrorTemplateConstant     = "unable to fetch manifest for %s at %s: %s"
	requestBuildErrorTemplateConstant      = "unable to build request for %s: %w"
	responseDecodeErrorTemplateConstant    = "unable to decode response from %s: %w"
	unexpectedStatusTemplateConstant       = "unexpected status %s"
	projectEndpointTemplateConstant        = "%s/rest/v2/projects/%s"
	manifestEndpointTemplateConstant       = "%s/rest/v2/projects/%s/revisions/%s/manifest"
	apiUserHeaderNameConstant              = "Api-User"
	apiKeyHeaderNameConstant               = "Api-Key"
	manifestCacheKeySeparatorConstant      = "@"
	trailingSlashConstant                  = "/"
)

// ErrHTTPClientNotConfigured indicates the client was constructed without an HTTP client.
var ErrHTTPClientNotConfigured = errors.New(httpClientMissingMessageConstant)

// ErrCredentialsNotConfigured indicates the client was constructed without credentials.
var ErrCredentialsNotConfigured = errors.New(credentialsMissingMessageConstant)

// ErrProjectIdentifierRequired indicates an empty project identifier was supplied.
var ErrProjectIdentifierRequired = errors.New(projectIdentifierRequiredMessage)

// ErrRevisionRequired indicates an empty revision was supplied for a manifest lookup.
var ErrRevisionRequired = errors.New(revisionRequiredMessageConstant)

// Project describes the Evergreen project configuration fields used for module resolution.
type Project struct {
	Identifier string `json:"identifier"`
	BranchName string `json:"branch_name"`
	RemotePath string `json:"remote_path"`
}

// ManifestModule records the revision a module was pinned to for one base commit.
type ManifestModule struct {
	Branch   string `json:"branch"`
	Repo     string `json:"repo"`
	Revision string `json:"revision"`
	Owner    string `json:"owner"`
	URL      string `json:"url"`
}

// Manifest associates a base revision with the module revisions recorded for it.
type Manifest struct {
	ID       string                    `json:"id"`
	Revision string                    `json:"revision"`
	Project  string                    `json:"project"`
	Modules  map[string]ManifestModule `json:"modules"`
}

// ConfigFetchError indicates the project configuration could not be retrieved.
type ConfigFetchError struct {
	ProjectIdentifier string
	Cause             error
}

// Error describes the failed project lookup.
func (fetchError ConfigFetchError) Error() string {
	return fmt.Sprintf(configFetchErrorTemplateConstant, fetchError.ProjectIdentifier, fetchError.Cause)
}

// Unwrap exposes the underlying retrieval failure.
func (fetchError ConfigFetchError) Unwrap() error {
	return fetchError.Cause
}

// ManifestFetchError indicates a manifest could not be retrieved or decoded.
type ManifestFetchError struct {
	ProjectIdentifier string
	Revision          string
	Cause             error
}

// Error describes the failed manifest lookup.
func (fetchError ManifestFetchError) Error() string {
	return fmt.Sprintf(manifestFetchErrorTemplateConstant, fetchError.ProjectIdentifier, fetchError.Revision, fetchError.Cause)
}

// Unwrap exposes the underlying retrieval failure.
func (fetchError ManifestFetchError) Unwrap() error {
	return fetchError.Cause
}

// HTTPDoer abstracts the HTTP transport for testability.
type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client retrieves project configuration and manifests from the Evergreen REST API.
//
// Successful lookups are cached for the lifetime of the client since one CLI
// invocation never needs the same project or manifest twice.
type Client struct {
	httpClient  HTTPDoer
	credentials Credentials

	cacheGuard    sync.Mutex
	projectCache  map[string]Project
	manifestCache map[string]Manifest
}

// NewClient constructs a Client from the provided transport and credentials.
func NewClient(httpClient HTTPDoer, credentials Credentials) (*Client, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientNotConfigured
	}
	if len(strings.TrimSpace(credentials.APIServerHost)) == 0 {
		return nil, ErrCredentialsNotConfigured
	}
	return &Client{
		httpClient:    httpClient,
		credentials:   credentials,
		projectCache:  map[string]Project{},
		manifestCache: map[string]Manifest{},
	}, nil
}

// Project returns the configuration of the identified Evergreen project.
func (client *Client) Project(executionContext context.Context, projectIdentifier string) (Project, error) {
	trimmedIdentifier := strings.TrimSpace(projectIdentifier)
	if len(trimmedIdentifier) == 0 {
		return Project{}, ErrProjectIdentifierRequired
	}

	client.cacheGuard.Lock()
	cachedProject, cached := client.projectCache[trimmedIdentifier]
	client.cacheGuard.Unlock()
	if cached {
		return cachedProject, nil
	}

	endpoint := fmt.Sprintf(projectEndpointTemplateConstant, client.baseURL(), trimmedIdentifier)
	project := Project{}
	if requestError := client.getJSON(executionContext, endpoint, &project); requestError != nil {
		return Project{}, ConfigFetchError{ProjectIdentifier: trimmedIdentifier, Cause: requestError}
	}

	client.cacheGuard.Lock()
	client.projectCache[trimmedIdentifier] = project
	client.cacheGuard.Unlock()
	return project, nil
}

// Manifest returns the module revisions Evergreen recorded for the given base revision.
func (client *Client) Manifest(executionContext context.Context, projectIdentifier string, revision string) (Manifest, error) {
	trimmedIdentifier := strings.TrimSpace(projectIdentifier)
	if len(trimmedIdentifier) == 0 {
		return Manifest{}, ErrProjectIdentifierRequired
	}
	trimmedRevision := strings.TrimSpace(revision)
	if len(trimmedRevision) == 0 {
		return Manifest{}, ErrRevisionRequired
	}

	cacheKey := trimmedIdentifier + manifestCacheKeySeparatorConstant + trimmedRevision
	client.cacheGuard.Lock()
	cachedManifest, cached := client.manifestCache[cacheKey]
	client.cacheGuard.Unlock()
	if cached {
		return cachedManifest, nil
	}

	endpoint := fmt.Sprintf(manifestEndpointTemplateConstant, client.baseURL(), trimmedIdentifier, trimmedRevision)
	manifest := Manifest{}
	if requestError := client.getJSON(executionContext, endpoint, &manifest); requestError != nil {
		return Manifest{}, ManifestFetchError{ProjectIdentifier: trimmedIdentifier, Revision: trimmedRevision, Cause: requestError}
	}

	client.cacheGuard.Lock()
	client.manifestCache[cacheKey] = manifest
	client.cacheGuard.Unlock()
	return manifest, nil
}

func (client *Client) baseURL() string {
	return strings.TrimRight(client.credentials.APIServerHost, trailingSlashConstant)
}

func (client *Client) getJSON(executionContext context.Context, endpoint string, target any) error {
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, endpoint, nil)
	if requestError != nil {
		return fmt.Errorf(requestBuildErrorTemplateConstant, endpoint, requestError)
	}
	request.Header.Set(apiUserHeaderNameConstant, client.credentials.User)
	request.Header.Set(apiKeyHeaderNameConstant, client.credentials.APIKey)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return responseError
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf(unexpectedStatusTemplateConstant, response.Status)
	}

	if decodeError := json.NewDecoder(response.Body).Decode(target); decodeError != nil {
		return fmt.Errorf(responseDecodeErrorTemplateConstant, endpoint, decodeError)
	}
	return nil
}
