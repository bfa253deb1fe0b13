// ABOUTME: Client for the OpenSSF Scorecard public results API.
// ABOUTME: Fetches published scorecards by repository identity.

package scorecard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

const defaultScorecardBaseURL = "https://api.securityscorecards.dev"

// Client fetches published scorecards from the OpenSSF Scorecard API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client against the public Scorecard results API.
func NewClient() *Client {
	return &Client{
		BaseURL:    defaultScorecardBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetScorecard fetches the scorecard for a repository identity such as
// "github.com/owner/repo". Repositories that were never scanned come back
// as an error, not an empty result.
func (c *Client) GetScorecard(ctx context.Context, repository string) (*types.ScorecardResult, error) {
	// The identity contains path separators that belong in the URL as-is.
	u := fmt.Sprintf("%s/projects/%s", c.BaseURL, repository)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scorecard for %s: %w", repository, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorecard request failed for %s: %s", repository, resp.Status)
	}

	var result types.ScorecardResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode scorecard: %w", err)
	}

	return &result, nil
}
