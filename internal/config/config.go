// ABOUTME: Policy configuration loading, defaulting, and validation.
// ABOUTME: A Policy only leaves this package fully defaulted and validated.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
	"github.com/spf13/viper"

	"github.com/nicholasgriffintn/dependency-review-cli/internal/spdx"
	"github.com/nicholasgriffintn/dependency-review-cli/internal/types"
)

// CommentMode controls when the review summary is posted as a PR comment.
type CommentMode string

const (
	CommentNever     CommentMode = "never"
	CommentAlways    CommentMode = "always"
	CommentOnFailure CommentMode = "on-failure"
)

var (
	// ErrBothLicenseLists is returned when the policy configures an allow
	// list and a deny list at the same time.
	ErrBothLicenseLists = errors.New("allow_licenses and deny_licenses cannot both be set")

	// ErrNoChecksEnabled is returned when both the license check and the
	// vulnerability check are disabled.
	ErrNoChecksEnabled = errors.New("at least one of license_check or vulnerability_check must be enabled")
)

// Policy is the declarative review policy: which severities and scopes fail
// the run, which licenses and packages are acceptable, and how results are
// surfaced. The evaluation engine relies on Load having already enforced
// every invariant here.
type Policy struct {
	FailOnSeverity              types.Severity          `mapstructure:"fail_on_severity"`
	FailOnScopes                []types.DependencyScope `mapstructure:"fail_on_scopes"`
	AllowLicenses               []string                `mapstructure:"allow_licenses"`
	DenyLicenses                []string                `mapstructure:"deny_licenses"`
	DenyPackages                []string                `mapstructure:"deny_packages"`
	DenyGroups                  []string                `mapstructure:"deny_groups"`
	AllowGHSAs                  []string                `mapstructure:"allow_ghsas"`
	AllowDependenciesLicenses   []string                `mapstructure:"allow_dependencies_licenses"`
	LicenseCheck                bool                    `mapstructure:"license_check"`
	VulnerabilityCheck          bool                    `mapstructure:"vulnerability_check"`
	WarnOnly                    bool                    `mapstructure:"warn_only"`
	ShowOpenSSFScorecard        bool                    `mapstructure:"show_openssf_scorecard"`
	WarnOnOpenSSFScorecardLevel float64                 `mapstructure:"warn_on_openssf_scorecard_level"`
	CommentSummaryInPR          CommentMode             `mapstructure:"comment_summary_in_pr"`
}

// Load reads the policy from the YAML file at path (optional; defaults apply
// when path is empty), applies DEPENDENCY_REVIEW_* environment overrides,
// and validates the result.
func Load(path string) (*Policy, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEPENDENCY_REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading policy file: %w", err)
		}
	}

	policy := &Policy{}
	if err := v.Unmarshal(policy); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}

	if err := policy.validate(); err != nil {
		return nil, err
	}

	return policy, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fail_on_severity", string(types.SeverityLow))
	v.SetDefault("fail_on_scopes", []string{string(types.ScopeRuntime)})
	v.SetDefault("license_check", true)
	v.SetDefault("vulnerability_check", true)
	v.SetDefault("warn_only", false)
	v.SetDefault("show_openssf_scorecard", false)
	v.SetDefault("warn_on_openssf_scorecard_level", 3)
	v.SetDefault("comment_summary_in_pr", string(CommentNever))
}

// validate checks cross-field invariants and canonicalizes enum fields.
func (p *Policy) validate() error {
	severity, err := types.ParseSeverity(string(p.FailOnSeverity))
	if err != nil {
		return fmt.Errorf("fail_on_severity: %w", err)
	}
	p.FailOnSeverity = severity

	for i, scope := range p.FailOnScopes {
		parsed, err := types.ParseDependencyScope(string(scope))
		if err != nil {
			return fmt.Errorf("fail_on_scopes: %w", err)
		}
		p.FailOnScopes[i] = parsed
	}

	if len(p.AllowLicenses) > 0 && len(p.DenyLicenses) > 0 {
		return ErrBothLicenseLists
	}

	if !p.LicenseCheck && !p.VulnerabilityCheck {
		return ErrNoChecksEnabled
	}

	if valid, invalid := spdx.ValidateLicenses(p.AllowLicenses); !valid {
		return fmt.Errorf("allow_licenses contains invalid SPDX licenses: %s", strings.Join(invalid, ", "))
	}
	if valid, invalid := spdx.ValidateLicenses(p.DenyLicenses); !valid {
		return fmt.Errorf("deny_licenses contains invalid SPDX licenses: %s", strings.Join(invalid, ", "))
	}

	for _, pkg := range p.DenyPackages {
		if _, err := packageurl.FromString(pkg); err != nil {
			return fmt.Errorf("deny_packages entry %q is not a valid package URL: %w", pkg, err)
		}
	}
	for _, group := range p.DenyGroups {
		if _, err := packageurl.FromString(group); err != nil {
			return fmt.Errorf("deny_groups entry %q is not a valid package URL: %w", group, err)
		}
	}

	switch p.CommentSummaryInPR {
	case CommentNever, CommentAlways, CommentOnFailure:
	default:
		return fmt.Errorf("comment_summary_in_pr must be one of never, always, on-failure (got %q)", p.CommentSummaryInPR)
	}

	return nil
}
