// ABOUTME: Local file-based diff source for development and offline testing.
// ABOUTME: Reads dependency diffs from JSON files without GitHub API access.

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/github"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// loadDiffFile reads a dependency diff from a JSON file holding the same
// change array the GitHub compare endpoint returns.
func loadDiffFile(path string, logger *logrus.Logger) (*github.DependencyDiff, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diff file '%s': %w", path, err)
	}

	var changes types.Changes
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("failed to parse diff file JSON: %w", err)
	}

	for i, change := range changes {
		if change.ChangeType != types.ChangeTypeAdded && change.ChangeType != types.ChangeTypeRemoved {
			return nil, fmt.Errorf("invalid change_type %q at index %d", change.ChangeType, i)
		}
		if change.Vulnerabilities == nil {
			changes[i].Vulnerabilities = []types.Vulnerability{}
		}
	}

	logger.WithField("changes", len(changes)).Info("Read dependency diff from file")

	return &github.DependencyDiff{Changes: changes}, nil
}
