package parse

import (
	"strings"

	"github.com/gavel-review/gavel/internal/review"
)

// severitySynonyms maps common backend spellings onto the canonical set.
// Canonical values map to themselves so normalization is idempotent.
var severitySynonyms = map[string]review.Severity{
	"critical":   review.SeverityCritical,
	"crit":       review.SeverityCritical,
	"blocker":    review.SeverityCritical,
	"high":       review.SeverityHigh,
	"severe":     review.SeverityHigh,
	"major":      review.SeverityHigh,
	"error":      review.SeverityHigh,
	"medium":     review.SeverityMedium,
	"med":        review.SeverityMedium,
	"moderate":   review.SeverityMedium,
	"warning":    review.SeverityMedium,
	"warn":       review.SeverityMedium,
	"low":        review.SeverityLow,
	"minor":      review.SeverityLow,
	"trivial":    review.SeverityLow,
	"info":       review.SeverityInfo,
	"note":       review.SeverityInfo,
	"notice":     review.SeverityInfo,
	"suggestion": review.SeverityInfo,
	"style":      review.SeverityInfo,
}

// NormalizeSeverity maps a raw severity string to the canonical set. The
// second result is false when the value was unrecognized and defaulted to
// medium; callers log one warning for those.
func NormalizeSeverity(raw string) (review.Severity, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, "[]():*")
	if sev, ok := severitySynonyms[key]; ok {
		return sev, true
	}
	return review.SeverityMedium, false
}
