// ABOUTME: Common types shared across the dependency-review system.
// ABOUTME: Defines data structures for dependency changes, advisories, and review verdicts.

package types

import (
	"fmt"
	"strings"
)

// Severity is one of the four advisory severity levels used by the
// GitHub advisory database, ordered low < moderate < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the severity levels from most to least severe, the
// order reports present them in.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow}

// Rank returns an integer rank for ordinal comparison (low=1, critical=4).
// Unknown severities rank 0 and never cross any threshold.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "low":
		return SeverityLow, nil
	case "moderate":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("invalid severity: %q", s)
	}
}

// ChangeType says whether a dependency was added or removed between the
// two compared revisions.
type ChangeType string

const (
	ChangeTypeAdded   ChangeType = "added"
	ChangeTypeRemoved ChangeType = "removed"
)

// DependencyScope classifies whether a dependency is needed at runtime or
// only during development.
type DependencyScope string

const (
	ScopeUnknown     DependencyScope = "unknown"
	ScopeRuntime     DependencyScope = "runtime"
	ScopeDevelopment DependencyScope = "development"
)

// ParseDependencyScope parses a scope string case-insensitively.
func ParseDependencyScope(s string) (DependencyScope, error) {
	switch strings.ToLower(s) {
	case "unknown":
		return ScopeUnknown, nil
	case "runtime":
		return ScopeRuntime, nil
	case "development":
		return ScopeDevelopment, nil
	default:
		return "", fmt.Errorf("invalid dependency scope: %q", s)
	}
}

// NoAssertion is the SPDX sentinel some license metadata sources emit when
// no license could be determined. It is treated the same as a missing
// license, not as a license identifier.
const NoAssertion = "NOASSERTION"

// Vulnerability is one known security advisory attached to a change.
type Vulnerability struct {
	Severity        Severity `json:"severity"`
	AdvisoryGHSAID  string   `json:"advisory_ghsa_id"` // stable external ID
	AdvisorySummary string   `json:"advisory_summary"`
	AdvisoryURL     string   `json:"advisory_url"`
}

// Change is one entry in the dependency diff between two revisions.
// Produced wholesale by the diff retrieval step and read-only afterwards.
type Change struct {
	ChangeType          ChangeType       `json:"change_type"` // "added" or "removed"
	Manifest            string           `json:"manifest"`    // originating manifest file path
	Ecosystem           string           `json:"ecosystem"`
	Name                string           `json:"name"`
	Version             string           `json:"version"`
	PackageURL          string           `json:"package_url"` // canonical purl, ecosystem-qualified
	License             *string          `json:"license"`     // nil when the diff carries no license at all
	SourceRepositoryURL string           `json:"source_repository_url"`
	Scope               *DependencyScope `json:"scope,omitempty"`
	Vulnerabilities     []Vulnerability  `json:"vulnerabilities"` // never nil, possibly empty
}

// Changes is an ordered dependency diff.
type Changes []Change

// Added returns the subset of changes that introduce a dependency, in
// input order. Removed dependencies are never policy-flagged.
func (c Changes) Added() Changes {
	added := make(Changes, 0, len(c))
	for _, change := range c {
		if change.ChangeType == ChangeTypeAdded {
			added = append(added, change)
		}
	}
	return added
}

// InvalidLicenseChanges partitions license-flagged changes into the three
// disjoint categories a change can fall into. A change appears in at most
// one of them.
type InvalidLicenseChanges struct {
	Forbidden  Changes `json:"forbidden"`  // valid expression, rejected by policy
	Unresolved Changes `json:"unresolved"` // unparseable expression
	Unlicensed Changes `json:"unlicensed"` // no license, or NOASSERTION
}

// Summary aggregates counts over the full (unfiltered) change list, plus
// vulnerability counts derived from the vulnerability-flagged subset.
type Summary struct {
	TotalChanges              int              `json:"total_changes"`
	Added                     int              `json:"added"`
	Removed                   int              `json:"removed"`
	TotalVulnerabilities      int              `json:"total_vulnerabilities"`
	VulnerabilitiesBySeverity map[Severity]int `json:"vulnerabilities_by_severity"`
}

// ScorecardCheck is one OpenSSF Scorecard check result. Score -1 means the
// check could not be evaluated for the repository.
type ScorecardCheck struct {
	Name          string             `json:"name"`
	Score         int                `json:"score"`
	Reason        string             `json:"reason"`
	Documentation ScorecardCheckDocs `json:"documentation"`
}

// ScorecardCheckDocs points at the documentation for a check.
type ScorecardCheckDocs struct {
	Short string `json:"short"`
	URL   string `json:"url"`
}

// ScorecardRepo identifies the repository a scorecard was computed for.
type ScorecardRepo struct {
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

// ScorecardResult is a supply-chain health score looked up by repository
// identity.
type ScorecardResult struct {
	Date   string           `json:"date"`
	Repo   ScorecardRepo    `json:"repo"`
	Score  float64          `json:"score"`
	Checks []ScorecardCheck `json:"checks"`
}

// ScorecardEntry pairs one change with its resolved score. Scorecard is nil
// when no repository identity could be resolved or the lookup failed;
// absence never fails the review.
type ScorecardEntry struct {
	Change    Change           `json:"change"`
	Scorecard *ScorecardResult `json:"scorecard"`
}

// ScorecardReport holds scorecard entries in the same order as the input
// changes they were resolved for.
type ScorecardReport struct {
	Dependencies []ScorecardEntry `json:"dependencies"`
}

// ReviewVerdict is the policy evaluation engine's sole output.
type ReviewVerdict struct {
	VulnerableChanges     Changes               `json:"vulnerable_changes"`
	InvalidLicenseChanges InvalidLicenseChanges `json:"invalid_license_changes"`
	DeniedChanges         Changes               `json:"denied_changes"`
	Scorecard             *ScorecardReport      `json:"scorecard,omitempty"`
	Summary               Summary               `json:"summary"`

	// HasIssues is always false in warn-only mode, regardless of what was
	// flagged above.
	HasIssues bool `json:"has_issues"`
}
