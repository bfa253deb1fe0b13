// ABOUTME: Renders a review verdict as a markdown summary.
// ABOUTME: Used for terminal output and PR comments alike.

package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/config"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// MarkdownSummary renders the verdict, the policy context that shaped it,
// and any snapshot warnings into a markdown document. Rendering never
// mutates the verdict.
func MarkdownSummary(verdict *types.ReviewVerdict, policy *config.Policy, warnings string) string {
	var b strings.Builder

	b.WriteString("# Dependency Review\n\n")
	writeHeadline(&b, verdict, policy)

	writeVulnerabilities(&b, verdict.VulnerableChanges)
	writeLicenseIssues(&b, verdict.InvalidLicenseChanges)
	writeDenied(&b, verdict.DeniedChanges)
	writeScorecard(&b, verdict.Scorecard, policy.WarnOnOpenSSFScorecardLevel)
	writeSummary(&b, verdict.Summary)
	writeWarnings(&b, warnings)

	return b.String()
}

func writeHeadline(b *strings.Builder, verdict *types.ReviewVerdict, policy *config.Policy) {
	issues := len(verdict.VulnerableChanges) +
		len(verdict.InvalidLicenseChanges.Forbidden) +
		len(verdict.InvalidLicenseChanges.Unresolved) +
		len(verdict.DeniedChanges)

	switch {
	case issues == 0:
		b.WriteString("✅ No issues found.\n")
	case policy.WarnOnly:
		fmt.Fprintf(b, "⚠️ %d issue(s) found, reported as warnings by policy.\n", issues)
	default:
		fmt.Fprintf(b, "❌ %d issue(s) found.\n", issues)
	}
}

func writeVulnerabilities(b *strings.Builder, changes types.Changes) {
	if len(changes) == 0 {
		return
	}

	b.WriteString("\n## Vulnerabilities\n\n")
	b.WriteString("| Package | Version | Vulnerability | Severity |\n")
	b.WriteString("|---|---|---|---|\n")

	for _, change := range changes {
		for _, vuln := range change.Vulnerabilities {
			summary := vuln.AdvisorySummary
			if vuln.AdvisoryURL != "" {
				summary = fmt.Sprintf("[%s](%s)", summary, vuln.AdvisoryURL)
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", change.Name, change.Version, summary, vuln.Severity)
		}
	}
}

func writeLicenseIssues(b *strings.Builder, invalid types.InvalidLicenseChanges) {
	if len(invalid.Forbidden) == 0 && len(invalid.Unresolved) == 0 && len(invalid.Unlicensed) == 0 {
		return
	}

	b.WriteString("\n## License Issues\n")

	writeLicenseSection(b, "Incompatible Licenses", invalid.Forbidden)
	writeLicenseSection(b, "Invalid SPDX License Definitions", invalid.Unresolved)
	writeLicenseSection(b, "Unknown Licenses", invalid.Unlicensed)
}

func writeLicenseSection(b *strings.Builder, title string, changes types.Changes) {
	if len(changes) == 0 {
		return
	}

	fmt.Fprintf(b, "\n### %s\n\n", title)
	b.WriteString("| Package | Version | License |\n")
	b.WriteString("|---|---|---|\n")

	for _, change := range changes {
		license := "null"
		if change.License != nil {
			license = *change.License
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", change.Name, change.Version, license)
	}
}

func writeDenied(b *strings.Builder, changes types.Changes) {
	if len(changes) == 0 {
		return
	}

	b.WriteString("\n## Denied Dependencies\n\n")
	b.WriteString("| Package | Version |\n")
	b.WriteString("|---|---|\n")

	for _, change := range changes {
		fmt.Fprintf(b, "| %s | %s |\n", change.Name, change.Version)
	}
}

func writeScorecard(b *strings.Builder, report *types.ScorecardReport, warnLevel float64) {
	if report == nil || len(report.Dependencies) == 0 {
		return
	}

	b.WriteString("\n## OpenSSF Scorecard\n\n")
	b.WriteString("| Package | Version | Score |\n")
	b.WriteString("|---|---|---|\n")

	for _, entry := range report.Dependencies {
		score := "Unknown"
		if entry.Scorecard != nil {
			score = strconv.FormatFloat(entry.Scorecard.Score, 'f', 1, 64)
			if entry.Scorecard.Score < warnLevel {
				score = "⚠️ " + score
			}
		}
		fmt.Fprintf(b, "| %s | %s | %s |\n", entry.Change.Name, entry.Change.Version, score)
	}
}

func writeSummary(b *strings.Builder, summary types.Summary) {
	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Metric | Count |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(b, "| Total changes | %d |\n", summary.TotalChanges)
	fmt.Fprintf(b, "| Added | %d |\n", summary.Added)
	fmt.Fprintf(b, "| Removed | %d |\n", summary.Removed)
	fmt.Fprintf(b, "| Vulnerabilities | %d |\n", summary.TotalVulnerabilities)

	if summary.TotalVulnerabilities > 0 {
		for _, severity := range types.Severities {
			if count := summary.VulnerabilitiesBySeverity[severity]; count > 0 {
				fmt.Fprintf(b, "| &nbsp;&nbsp;%s | %d |\n", severity, count)
			}
		}
	}
}

func writeWarnings(b *strings.Builder, warnings string) {
	if warnings == "" {
		return
	}

	b.WriteString("\n## Snapshot Warnings\n\n")
	for _, line := range strings.Split(strings.TrimSpace(warnings), "\n") {
		b.WriteString("> " + line + "\n")
	}
}
