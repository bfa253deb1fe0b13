// ABOUTME: OpenSSF Scorecard lookup service for added dependency changes.
// ABOUTME: Resolves package identities to repositories and fetches scores in batches.

package scorecard

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/cache"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// scorecardBatchSize bounds the number of concurrent lookups; one batch is
// awaited before the next starts.
const scorecardBatchSize = 5

// ProjectResolver maps a package to its source repository identity.
type ProjectResolver interface {
	ResolveSourceRepo(ctx context.Context, ecosystem, name, version string) (string, error)
}

// ScorecardSource fetches the scorecard for a repository identity such as
// "github.com/owner/repo".
type ScorecardSource interface {
	GetScorecard(ctx context.Context, repository string) (*types.ScorecardResult, error)
}

// inflight tracks one outstanding scorecard fetch. result is written before
// done is closed, so waiters read it safely after the channel settles.
type inflight struct {
	done   chan struct{}
	result *types.ScorecardResult
}

// Service looks up scorecards for dependency changes. Successful lookups are
// cached per service instance and concurrent lookups for the same repository
// are coalesced into a single outbound request.
type Service struct {
	projects   ProjectResolver
	scorecards ScorecardSource
	logger     *logrus.Logger

	cache *cache.ScorecardCache

	mutex   sync.Mutex
	pending map[string]*inflight
}

// NewService creates a scorecard lookup service.
func NewService(projects ProjectResolver, scorecards ScorecardSource, logger *logrus.Logger) *Service {
	return &Service{
		projects:   projects,
		scorecards: scorecards,
		logger:     logger,
		cache:      cache.NewScorecardCache(logger),
		pending:    make(map[string]*inflight),
	}
}

// GetScorecardLevels returns one entry per change, in input order. Lookups
// are best-effort: a change whose repository cannot be resolved, or whose
// scorecard fetch fails, gets a nil scorecard. GetScorecardLevels never
// returns an error.
func (s *Service) GetScorecardLevels(ctx context.Context, changes types.Changes) *types.ScorecardReport {
	report := &types.ScorecardReport{
		Dependencies: make([]types.ScorecardEntry, len(changes)),
	}

	s.logger.WithField("changes", len(changes)).Debug("Fetching scorecard data")

	for start := 0; start < len(changes); start += scorecardBatchSize {
		end := min(start+scorecardBatchSize, len(changes))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()

				change := changes[idx]
				report.Dependencies[idx] = types.ScorecardEntry{
					Change:    change,
					Scorecard: s.lookup(ctx, change),
				}
			}(i)
		}
		wg.Wait()
	}

	return report
}

func (s *Service) lookup(ctx context.Context, change types.Change) *types.ScorecardResult {
	repository := s.resolveRepository(ctx, change)
	if repository == "" {
		return nil
	}
	return s.getScorecard(ctx, repository)
}

// resolveRepository determines the repository identity for a change: the
// declared source repository URL when present, the action name for GitHub
// Actions, and a deps.dev lookup otherwise.
func (s *Service) resolveRepository(ctx context.Context, change types.Change) string {
	if change.SourceRepositoryURL != "" {
		return trimProtocol(change.SourceRepositoryURL)
	}

	if strings.EqualFold(change.Ecosystem, "actions") {
		// Action names look like owner/repo or owner/repo/subdir; the
		// repository is always the first two segments.
		parts := strings.Split(change.Name, "/")
		if len(parts) >= 2 {
			return "github.com/" + parts[0] + "/" + parts[1]
		}
		return ""
	}

	repository, err := s.projects.ResolveSourceRepo(ctx, change.Ecosystem, change.Name, change.Version)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"ecosystem": change.Ecosystem,
			"package":   change.Name,
		}).Debug("Could not resolve source repository")
		return ""
	}

	return trimProtocol(repository)
}

// getScorecard fetches the scorecard for a repository, serving repeats from
// the cache. A concurrent lookup for a repository that is already in flight
// waits for that flight to settle instead of issuing its own request.
// Failures settle with a nil result and are not cached, so a later call may
// try again.
func (s *Service) getScorecard(ctx context.Context, repository string) *types.ScorecardResult {
	if result := s.cache.Get(repository); result != nil {
		return result
	}

	s.mutex.Lock()
	// A flight may have settled between the cache check and taking the lock.
	if result := s.cache.Get(repository); result != nil {
		s.mutex.Unlock()
		return result
	}
	if flight, ok := s.pending[repository]; ok {
		s.mutex.Unlock()
		select {
		case <-flight.done:
			return flight.result
		case <-ctx.Done():
			return nil
		}
	}
	flight := &inflight{done: make(chan struct{})}
	s.pending[repository] = flight
	s.mutex.Unlock()

	result, err := s.scorecards.GetScorecard(ctx, repository)
	if err != nil {
		s.logger.WithError(err).WithField("repository", repository).Debug("Scorecard lookup failed")
		result = nil
	}

	flight.result = result
	if result != nil {
		// Cached before the flight is deregistered, so a lookup that misses
		// the pending map always finds the cache entry.
		s.cache.Set(repository, result)
	}

	s.mutex.Lock()
	delete(s.pending, repository)
	s.mutex.Unlock()

	close(flight.done)

	return result
}

func trimProtocol(repositoryURL string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(repositoryURL, prefix) {
			return strings.TrimPrefix(repositoryURL, prefix)
		}
	}
	return repositoryURL
}
