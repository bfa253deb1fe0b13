// ABOUTME: Tests for the deps.dev source repository resolver.
// ABOUTME: Covers ecosystem mapping, response handling, and failure modes.

package scorecard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSourceRepo(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		body         any
		expected     string
		expectError  bool
	}{
		{
			name:       "source repo among related projects",
			statusCode: http.StatusOK,
			body: packageVersionMetadata{
				RelatedProjects: []relatedProject{
					{ProjectKey: projectKey{ID: "github.com/facebook/react"}, RelationType: "ISSUE_TRACKER"},
					{ProjectKey: projectKey{ID: "github.com/facebook/react"}, RelationType: "SOURCE_REPO"},
				},
			},
			expected: "github.com/facebook/react",
		},
		{
			name:       "no source repo relation",
			statusCode: http.StatusOK,
			body: packageVersionMetadata{
				RelatedProjects: []relatedProject{
					{ProjectKey: projectKey{ID: "github.com/facebook/react"}, RelationType: "ISSUE_TRACKER"},
				},
			},
			expectError: true,
		},
		{
			name:        "package not found",
			statusCode:  http.StatusNotFound,
			body:        nil,
			expectError: true,
		},
		{
			name:        "invalid JSON",
			statusCode:  http.StatusOK,
			body:        "bad-json",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/systems/npm/packages/react/versions/18.2.0", r.URL.Path)
				w.WriteHeader(tt.statusCode)
				if tt.body != nil {
					switch v := tt.body.(type) {
					case string:
						fmt.Fprint(w, v)
					default:
						_ = json.NewEncoder(w).Encode(v)
					}
				}
			}))
			defer server.Close()

			client := &DepsDevClient{
				BaseURL:    server.URL,
				HTTPClient: http.DefaultClient,
			}

			repo, err := client.ResolveSourceRepo(context.Background(), "npm", "react", "18.2.0")

			if tt.expectError {
				require.Error(t, err)
				assert.Empty(t, repo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, repo)
		})
	}
}

func TestResolveSourceRepoEcosystemMapping(t *testing.T) {
	tests := []struct {
		ecosystem string
		system    string
	}{
		{ecosystem: "npm", system: "npm"},
		{ecosystem: "pip", system: "pypi"},
		{ecosystem: "rubygems", system: "rubygems"},
		{ecosystem: "cargo", system: "cargo"},
		{ecosystem: "maven", system: "maven"},
		{ecosystem: "nuget", system: "nuget"},
		{ecosystem: "gomod", system: "go"},
		{ecosystem: "go", system: "go"},
	}

	for _, tt := range tests {
		t.Run(tt.ecosystem, func(t *testing.T) {
			var requestedPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requestedPath = r.URL.Path
				_ = json.NewEncoder(w).Encode(packageVersionMetadata{
					RelatedProjects: []relatedProject{
						{ProjectKey: projectKey{ID: "github.com/owner/repo"}, RelationType: "SOURCE_REPO"},
					},
				})
			}))
			defer server.Close()

			client := &DepsDevClient{
				BaseURL:    server.URL,
				HTTPClient: http.DefaultClient,
			}

			_, err := client.ResolveSourceRepo(context.Background(), tt.ecosystem, "pkg", "1.0.0")
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("/systems/%s/packages/pkg/versions/1.0.0", tt.system), requestedPath)
		})
	}
}

func TestResolveSourceRepoUnknownEcosystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued for an unmapped ecosystem")
	}))
	defer server.Close()

	client := &DepsDevClient{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	}

	_, err := client.ResolveSourceRepo(context.Background(), "homebrew", "wget", "1.21")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homebrew")
}
