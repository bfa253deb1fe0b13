// ABOUTME: Tests for the scorecard lookup service.
// ABOUTME: Covers identity resolution, ordering, caching, and request coalescing.

package scorecard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

type stubResolver struct {
	repos map[string]string // keyed by ecosystem/name

	mu    sync.Mutex
	calls int
}

func (s *stubResolver) ResolveSourceRepo(_ context.Context, ecosystem, name, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if repo, ok := s.repos[ecosystem+"/"+name]; ok {
		return repo, nil
	}
	return "", errors.New("unknown package")
}

type stubSource struct {
	results  map[string]*types.ScorecardResult
	failures int // fail this many calls before succeeding
	delay    time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func (s *stubSource) GetScorecard(_ context.Context, repository string) (*types.ScorecardResult, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[repository]++
	call := s.calls[repository]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if call <= s.failures {
		return nil, errors.New("scorecard unavailable")
	}
	if result, ok := s.results[repository]; ok {
		return result, nil
	}
	return nil, errors.New("not found")
}

func (s *stubSource) callCount(repository string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[repository]
}

func newTestService(projects ProjectResolver, scorecards ScorecardSource) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewService(projects, scorecards, logger)
}

func sourcedChange(name, repositoryURL string) types.Change {
	return types.Change{
		ChangeType:          types.ChangeTypeAdded,
		Ecosystem:           "npm",
		Name:                name,
		Version:             "1.0.0",
		PackageURL:          "pkg:npm/" + name + "@1.0.0",
		SourceRepositoryURL: repositoryURL,
		Vulnerabilities:     []types.Vulnerability{},
	}
}

func TestGetScorecardLevelsOrderPreserved(t *testing.T) {
	// Seven changes span two batches.
	changes := types.Changes{}
	results := map[string]*types.ScorecardResult{}
	for _, name := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		changes = append(changes, sourcedChange(name, "https://github.com/owner/"+name))
		results["github.com/owner/"+name] = &types.ScorecardResult{
			Repo:  types.ScorecardRepo{Name: "github.com/owner/" + name},
			Score: 5,
		}
	}

	service := newTestService(&stubResolver{}, &stubSource{results: results})

	report := service.GetScorecardLevels(context.Background(), changes)

	require.Len(t, report.Dependencies, len(changes))
	for i, entry := range report.Dependencies {
		assert.Equal(t, changes[i].Name, entry.Change.Name)
		require.NotNil(t, entry.Scorecard)
		assert.Equal(t, "github.com/owner/"+changes[i].Name, entry.Scorecard.Repo.Name)
	}
}

func TestResolveRepository(t *testing.T) {
	resolver := &stubResolver{repos: map[string]string{
		"npm/resolved-pkg": "https://github.com/owner/resolved-repo",
	}}
	service := newTestService(resolver, &stubSource{})

	tests := []struct {
		name     string
		change   types.Change
		expected string
	}{
		{
			name:     "declared source repository URL wins",
			change:   sourcedChange("direct", "https://github.com/owner/direct"),
			expected: "github.com/owner/direct",
		},
		{
			name: "github action name",
			change: types.Change{
				ChangeType: types.ChangeTypeAdded,
				Ecosystem:  "actions",
				Name:       "actions/checkout",
				Version:    "4.0.0",
			},
			expected: "github.com/actions/checkout",
		},
		{
			name: "github action in a subdirectory",
			change: types.Change{
				ChangeType: types.ChangeTypeAdded,
				Ecosystem:  "actions",
				Name:       "actions/cache/restore",
				Version:    "4.0.0",
			},
			expected: "github.com/actions/cache",
		},
		{
			name: "action name without a repository part",
			change: types.Change{
				ChangeType: types.ChangeTypeAdded,
				Ecosystem:  "actions",
				Name:       "checkout",
				Version:    "4.0.0",
			},
			expected: "",
		},
		{
			name: "resolved through deps.dev",
			change: types.Change{
				ChangeType: types.ChangeTypeAdded,
				Ecosystem:  "npm",
				Name:       "resolved-pkg",
				Version:    "1.0.0",
			},
			expected: "github.com/owner/resolved-repo",
		},
		{
			name: "unresolvable package",
			change: types.Change{
				ChangeType: types.ChangeTypeAdded,
				Ecosystem:  "npm",
				Name:       "mystery-pkg",
				Version:    "1.0.0",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.resolveRepository(context.Background(), tt.change))
		})
	}
}

func TestGetScorecardLevelsCoalescesConcurrentLookups(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Hold the response open long enough for the whole batch to pile up.
		time.Sleep(20 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(types.ScorecardResult{
			Repo:  types.ScorecardRepo{Name: "github.com/shared/repo"},
			Score: 8.2,
		})
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: http.DefaultClient}
	service := newTestService(&stubResolver{}, client)

	// Seven changes resolving to the same repository, spanning two batches.
	changes := types.Changes{}
	for i := 0; i < 7; i++ {
		changes = append(changes, sourcedChange("pkg", "https://github.com/shared/repo"))
	}

	report := service.GetScorecardLevels(context.Background(), changes)

	assert.Equal(t, int32(1), requests.Load(), "coalesced lookups must issue a single request")
	require.Len(t, report.Dependencies, 7)
	for _, entry := range report.Dependencies {
		require.NotNil(t, entry.Scorecard)
		assert.Equal(t, 8.2, entry.Scorecard.Score)
	}
}

func TestGetScorecardLevelsFailureGivesNilScorecard(t *testing.T) {
	// No results configured: every fetch fails.
	service := newTestService(&stubResolver{}, &stubSource{})

	changes := types.Changes{
		sourcedChange("pkg", "https://github.com/owner/broken"),
	}

	report := service.GetScorecardLevels(context.Background(), changes)

	require.Len(t, report.Dependencies, 1)
	assert.Equal(t, "pkg", report.Dependencies[0].Change.Name)
	assert.Nil(t, report.Dependencies[0].Scorecard)
}

func TestGetScorecardFailuresAreNotCached(t *testing.T) {
	source := &stubSource{
		failures: 1,
		results: map[string]*types.ScorecardResult{
			"github.com/owner/flaky": {Score: 6.4},
		},
	}
	service := newTestService(&stubResolver{}, source)

	changes := types.Changes{sourcedChange("pkg", "https://github.com/owner/flaky")}

	first := service.GetScorecardLevels(context.Background(), changes)
	assert.Nil(t, first.Dependencies[0].Scorecard)

	second := service.GetScorecardLevels(context.Background(), changes)
	require.NotNil(t, second.Dependencies[0].Scorecard)
	assert.Equal(t, 6.4, second.Dependencies[0].Scorecard.Score)

	assert.Equal(t, 2, source.callCount("github.com/owner/flaky"))
}

func TestGetScorecardSuccessesAreCached(t *testing.T) {
	source := &stubSource{
		results: map[string]*types.ScorecardResult{
			"github.com/owner/stable": {Score: 9.9},
		},
	}
	service := newTestService(&stubResolver{}, source)

	changes := types.Changes{sourcedChange("pkg", "https://github.com/owner/stable")}

	service.GetScorecardLevels(context.Background(), changes)
	service.GetScorecardLevels(context.Background(), changes)

	assert.Equal(t, 1, source.callCount("github.com/owner/stable"))
}

func TestGetScorecardLevelsEmptyChanges(t *testing.T) {
	source := &stubSource{}
	service := newTestService(&stubResolver{}, source)

	report := service.GetScorecardLevels(context.Background(), types.Changes{})

	require.NotNil(t, report)
	assert.Empty(t, report.Dependencies)
}

func TestTrimProtocol(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "https",
			input:    "https://github.com/owner/repo",
			expected: "github.com/owner/repo",
		},
		{
			name:     "http",
			input:    "http://github.com/owner/repo",
			expected: "github.com/owner/repo",
		},
		{
			name:     "already bare",
			input:    "github.com/owner/repo",
			expected: "github.com/owner/repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimProtocol(tt.input))
		})
	}
}
