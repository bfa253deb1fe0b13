// ABOUTME: GitHub API client for retrieving the dependency diff between two revisions.
// ABOUTME: Wraps go-github and the dependency-graph compare endpoint.

package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v61/github"
	"github.com/sirupsen/logrus"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// snapshotWarningsHeader carries base64-encoded warning text about stale or
// missing dependency snapshots.
const snapshotWarningsHeader = "x-github-dependency-graph-snapshot-warnings"

// DependencyDiff is the dependency comparison between two revisions: the
// ordered change list and any snapshot warning text. The warnings are passed
// through to reporting untouched.
type DependencyDiff struct {
	Changes          types.Changes
	SnapshotWarnings string
}

// Client talks to the GitHub API on behalf of the review tool.
type Client struct {
	gh     *gogithub.Client
	logger *logrus.Logger
}

// NewClient creates a GitHub client. token may be empty for anonymous access
// (public repositories only, heavily rate limited). baseURL overrides the
// public API endpoint, for GitHub Enterprise or tests.
func NewClient(token, baseURL string, logger *logrus.Logger) (*Client, error) {
	gh := gogithub.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
		}
		gh.BaseURL = parsed
	}

	return &Client{gh: gh, logger: logger}, nil
}

// CompareDependencies fetches the dependency changes between base and head.
// The endpoint has no typed service in go-github, so the request goes
// through the generic path.
func (c *Client) CompareDependencies(ctx context.Context, owner, repo, base, head string) (*DependencyDiff, error) {
	u := fmt.Sprintf("repos/%v/%v/dependency-graph/compare/%v...%v", owner, repo, base, head)

	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var changes types.Changes
	resp, err := c.gh.Do(ctx, req, &changes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dependency diff for %s/%s: %w", owner, repo, err)
	}

	if changes == nil {
		changes = types.Changes{}
	}
	for i := range changes {
		if changes[i].Vulnerabilities == nil {
			changes[i].Vulnerabilities = []types.Vulnerability{}
		}
	}

	diff := &DependencyDiff{Changes: changes}

	if encoded := resp.Header.Get(snapshotWarningsHeader); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			c.logger.WithError(err).Debug("Could not decode snapshot warnings header")
		} else {
			diff.SnapshotWarnings = string(decoded)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"owner":   owner,
		"repo":    repo,
		"base":    base,
		"head":    head,
		"changes": len(diff.Changes),
	}).Debug("Fetched dependency diff")

	return diff, nil
}
