// ABOUTME: SPDX license expression evaluation against allow and deny license sets.
// ABOUTME: Wraps go-spdx so parse failures degrade to false instead of propagating.

package spdx

import (
	"regexp"

	"github.com/github/go-spdx/v2/spdxexp"
)

// Some license metadata sources (ClearlyDefined-backed ones in particular)
// emit the non-standard token OTHER, which no SPDX parser accepts. It is
// rewritten to a LicenseRef placeholder so the rest of the expression can
// still be evaluated.
const otherLicenseRef = "LicenseRef-clearlydefined-OTHER"

var otherToken = regexp.MustCompile(`(^|[\s(])OTHER([\s)]|$)`)

func normalize(expression string) string {
	return otherToken.ReplaceAllString(expression, "${1}"+otherLicenseRef+"${2}")
}

// IsValid reports whether expression parses as an SPDX license expression.
// Any parse failure (syntax error, unknown identifier, case mismatch)
// yields false; IsValid never panics or returns an error.
func IsValid(expression string) bool {
	valid, _ := spdxexp.ValidateLicenses([]string{normalize(expression)})
	return valid
}

// ValidateLicenses reports whether every entry is a valid SPDX expression
// and lists the entries that are not.
func ValidateLicenses(licenses []string) (bool, []string) {
	normalized := make([]string, len(licenses))
	for i, license := range licenses {
		normalized[i] = normalize(license)
	}
	return spdxexp.ValidateLicenses(normalized)
}

// SatisfiesAny reports whether expression is satisfied by at least one of
// the given licenses. Internal evaluation errors yield false; callers that
// need to distinguish "unparseable" from "not satisfying" check IsValid
// first.
func SatisfiesAny(expression string, licenses []string) bool {
	expr := normalize(expression)
	for _, license := range licenses {
		ok, err := spdxexp.Satisfies(expr, []string{normalize(license)})
		if err != nil {
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// SatisfiesAll reports whether expression is satisfied by every one of the
// given licenses. Internal evaluation errors yield false.
func SatisfiesAll(expression string, licenses []string) bool {
	expr := normalize(expression)
	for _, license := range licenses {
		ok, err := spdxexp.Satisfies(expr, []string{normalize(license)})
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Satisfies reports whether expression is satisfied by the single license
// range. Internal evaluation errors yield false.
func Satisfies(expression, rangeExpression string) bool {
	ok, err := spdxexp.Satisfies(normalize(expression), []string{normalize(rangeExpression)})
	if err != nil {
		return false
	}
	return ok
}
