// ABOUTME: Renders a review verdict as machine-readable JSON.
// ABOUTME: Preserves every field of the verdict for downstream tooling.

package report

import (
	"encoding/json"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// JSON renders the full verdict as indented JSON.
func JSON(verdict *types.ReviewVerdict) ([]byte, error) {
	return json.MarshalIndent(verdict, "", "  ")
}
