// ABOUTME: Policy evaluation engine that turns dependency changes into a review verdict.
// ABOUTME: Applies vulnerability, license, and denial filters to the added changes.

package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/config"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/spdx"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// ScorecardProvider supplies supply-chain health scores for added dependencies.
// Lookups are best-effort: a nil report means enrichment was unavailable.
type ScorecardProvider interface {
	GetScorecardLevels(ctx context.Context, changes types.Changes) *types.ScorecardReport
}

// Engine evaluates dependency changes against a review policy.
type Engine struct {
	scorecards ScorecardProvider
	logger     *logrus.Logger
}

// NewEngine creates a policy evaluation engine. scorecards may be nil when
// scorecard enrichment is not wanted.
func NewEngine(scorecards ScorecardProvider, logger *logrus.Logger) *Engine {
	return &Engine{
		scorecards: scorecards,
		logger:     logger,
	}
}

// Evaluate applies the policy to the change list and returns the verdict.
// Only added changes are ever flagged; removed changes contribute to the
// summary counts alone. Evaluate never mutates its inputs and never fails:
// malformed license data degrades to the unresolved category and scorecard
// enrichment failures degrade to a nil report.
func (e *Engine) Evaluate(ctx context.Context, changes types.Changes, policy *config.Policy) *types.ReviewVerdict {
	added := changes.Added()

	e.logger.WithFields(logrus.Fields{
		"total_changes":    len(changes),
		"added":            len(added),
		"fail_on_severity": policy.FailOnSeverity,
	}).Debug("Evaluating dependency changes")

	verdict := &types.ReviewVerdict{
		VulnerableChanges: types.Changes{},
		InvalidLicenseChanges: types.InvalidLicenseChanges{
			Forbidden:  types.Changes{},
			Unresolved: types.Changes{},
			Unlicensed: types.Changes{},
		},
		DeniedChanges: types.Changes{},
	}

	if policy.VulnerabilityCheck {
		verdict.VulnerableChanges = filterVulnerableChanges(added, policy)
	}
	if policy.LicenseCheck {
		verdict.InvalidLicenseChanges = filterInvalidLicenseChanges(added, policy)
	}
	verdict.DeniedChanges = filterDeniedChanges(added, policy)

	verdict.Summary = summarize(changes, verdict.VulnerableChanges)

	// Unlicensed changes are reported but never fail the run on their own.
	verdict.HasIssues = !policy.WarnOnly &&
		(len(verdict.VulnerableChanges) > 0 ||
			len(verdict.InvalidLicenseChanges.Forbidden) > 0 ||
			len(verdict.InvalidLicenseChanges.Unresolved) > 0 ||
			len(verdict.DeniedChanges) > 0)

	if policy.ShowOpenSSFScorecard && e.scorecards != nil {
		verdict.Scorecard = e.scorecards.GetScorecardLevels(ctx, added)
	}

	e.logger.WithFields(logrus.Fields{
		"vulnerable": len(verdict.VulnerableChanges),
		"forbidden":  len(verdict.InvalidLicenseChanges.Forbidden),
		"unresolved": len(verdict.InvalidLicenseChanges.Unresolved),
		"unlicensed": len(verdict.InvalidLicenseChanges.Unlicensed),
		"denied":     len(verdict.DeniedChanges),
		"has_issues": verdict.HasIssues,
	}).Debug("Policy evaluation completed")

	return verdict
}

// filterVulnerableChanges flags added changes carrying at least one
// vulnerability at or above the severity threshold whose advisory is not
// exempted. A change with a declared scope outside the configured scope set
// is skipped; a change with no declared scope is always checked.
func filterVulnerableChanges(added types.Changes, policy *config.Policy) types.Changes {
	flagged := types.Changes{}

	for _, change := range added {
		if change.Scope != nil && !slices.Contains(policy.FailOnScopes, *change.Scope) {
			continue
		}

		for _, vuln := range change.Vulnerabilities {
			if slices.Contains(policy.AllowGHSAs, vuln.AdvisoryGHSAID) {
				continue
			}
			if vuln.Severity.Rank() >= policy.FailOnSeverity.Rank() {
				flagged = append(flagged, change)
				break
			}
		}
	}

	return flagged
}

// filterInvalidLicenseChanges classifies each added change into at most one
// of the forbidden, unresolved, or unlicensed categories.
func filterInvalidLicenseChanges(added types.Changes, policy *config.Policy) types.InvalidLicenseChanges {
	invalid := types.InvalidLicenseChanges{
		Forbidden:  types.Changes{},
		Unresolved: types.Changes{},
		Unlicensed: types.Changes{},
	}

	hasAllowList := len(policy.AllowLicenses) > 0
	hasDenyList := len(policy.DenyLicenses) > 0

	for _, change := range added {
		if excludedFromLicenseCheck(change.PackageURL, policy.AllowDependenciesLicenses) {
			continue
		}

		if change.License == nil || *change.License == types.NoAssertion {
			invalid.Unlicensed = append(invalid.Unlicensed, change)
			continue
		}

		license := *change.License

		if !spdx.IsValid(license) {
			if hasAllowList || hasDenyList {
				invalid.Unresolved = append(invalid.Unresolved, change)
			}
			continue
		}

		if hasAllowList && !spdx.SatisfiesAny(license, policy.AllowLicenses) {
			invalid.Forbidden = append(invalid.Forbidden, change)
		} else if hasDenyList && spdx.SatisfiesAny(license, policy.DenyLicenses) {
			invalid.Forbidden = append(invalid.Forbidden, change)
		}
	}

	return invalid
}

// excludedFromLicenseCheck reports whether the package identifier matches a
// license-check exclusion, either exactly or as a sub-path of a configured
// prefix. Both the full identifier and its version-stripped form are tested.
func excludedFromLicenseCheck(packageURL string, exclusions []string) bool {
	if len(exclusions) == 0 || packageURL == "" {
		return false
	}

	stripped := stripVersion(packageURL)

	for _, exclusion := range exclusions {
		if packageURL == exclusion || stripped == exclusion {
			return true
		}
		prefix := strings.TrimSuffix(exclusion, "/") + "/"
		if strings.HasPrefix(packageURL, prefix) || strings.HasPrefix(stripped, prefix) {
			return true
		}
	}

	return false
}

// stripVersion removes the trailing @version from a package URL. The version
// separator is only the @ that follows the final path segment, so scoped
// names like pkg:npm/@scope/name are left intact.
func stripVersion(packageURL string) string {
	if at := strings.LastIndex(packageURL, "@"); at > strings.LastIndex(packageURL, "/") {
		return packageURL[:at]
	}
	return packageURL
}

// filterDeniedChanges flags added changes whose package identifier contains
// a denied-package substring or starts with a denied-group prefix. With both
// denial sets empty the result is immediately empty.
func filterDeniedChanges(added types.Changes, policy *config.Policy) types.Changes {
	denied := types.Changes{}

	if len(policy.DenyPackages) == 0 && len(policy.DenyGroups) == 0 {
		return denied
	}

	for _, change := range added {
		if isDenied(change.PackageURL, policy) {
			denied = append(denied, change)
		}
	}

	return denied
}

func isDenied(packageURL string, policy *config.Policy) bool {
	if packageURL == "" {
		return false
	}
	for _, pkg := range policy.DenyPackages {
		if strings.Contains(packageURL, pkg) {
			return true
		}
	}
	for _, group := range policy.DenyGroups {
		if strings.HasPrefix(packageURL, group) {
			return true
		}
	}
	return false
}

// summarize counts the full change list and buckets the vulnerabilities of
// the flagged subset by severity. Every vulnerability of a flagged change is
// counted, including those below the failure threshold.
func summarize(changes types.Changes, vulnerable types.Changes) types.Summary {
	summary := types.Summary{
		TotalChanges:              len(changes),
		VulnerabilitiesBySeverity: make(map[types.Severity]int, len(types.Severities)),
	}

	for _, severity := range types.Severities {
		summary.VulnerabilitiesBySeverity[severity] = 0
	}

	for _, change := range changes {
		switch change.ChangeType {
		case types.ChangeTypeAdded:
			summary.Added++
		case types.ChangeTypeRemoved:
			summary.Removed++
		}
	}

	for _, change := range vulnerable {
		for _, vuln := range change.Vulnerabilities {
			summary.TotalVulnerabilities++
			summary.VulnerabilitiesBySeverity[vuln.Severity]++
		}
	}

	return summary
}
