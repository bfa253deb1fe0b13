// ABOUTME: deps.dev API client that resolves packages to source repositories.
// ABOUTME: Maps dependency-graph ecosystems onto deps.dev package systems.

package scorecard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDepsDevBaseURL = "https://api.deps.dev/v3alpha"

// depsDevSystems maps dependency-graph ecosystem names to deps.dev systems.
// Ecosystems missing here have no deps.dev coverage.
var depsDevSystems = map[string]string{
	"npm":      "npm",
	"pip":      "pypi",
	"rubygems": "rubygems",
	"cargo":    "cargo",
	"maven":    "maven",
	"nuget":    "nuget",
	"gomod":    "go",
	"go":       "go",
}

// DepsDevClient resolves packages to their source repository through the
// deps.dev API.
type DepsDevClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewDepsDevClient creates a client against the public deps.dev API.
func NewDepsDevClient() *DepsDevClient {
	return &DepsDevClient{
		BaseURL:    defaultDepsDevBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type packageVersionMetadata struct {
	RelatedProjects []relatedProject `json:"relatedProjects"`
}

type relatedProject struct {
	ProjectKey   projectKey `json:"projectKey"`
	RelationType string     `json:"relationType"`
}

type projectKey struct {
	ID string `json:"id"`
}

// ResolveSourceRepo returns the project identity (for example
// "github.com/owner/repo") of the SOURCE_REPO related project for the given
// package version.
func (c *DepsDevClient) ResolveSourceRepo(ctx context.Context, ecosystem, name, version string) (string, error) {
	system, ok := depsDevSystems[strings.ToLower(ecosystem)]
	if !ok {
		return "", fmt.Errorf("no deps.dev system for ecosystem %q", ecosystem)
	}

	u := fmt.Sprintf("%s/systems/%s/packages/%s/versions/%s",
		c.BaseURL, system, url.PathEscape(name), url.PathEscape(version))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch package metadata for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("package metadata request failed for %s: %s", name, resp.Status)
	}

	var meta packageVersionMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("failed to decode package metadata: %w", err)
	}

	for _, project := range meta.RelatedProjects {
		if project.RelationType == "SOURCE_REPO" {
			return project.ProjectKey.ID, nil
		}
	}

	return "", fmt.Errorf("no source repository known for %s/%s", ecosystem, name)
}
