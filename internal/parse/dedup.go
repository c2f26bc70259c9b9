package parse

import (
	"strings"

	"github.com/gavel-review/gavel/internal/review"
)

// overlapThreshold is the word-overlap ratio above which two findings on
// the same file are treated as duplicates.
const overlapThreshold = 0.7

// Deduplicate merges near-duplicate findings on the same file. The survivor
// keeps the longer description and the higher of the two severities.
func Deduplicate(findings []review.Finding) []review.Finding {
	var result []review.Finding
	for _, f := range findings {
		merged := false
		for i := range result {
			if result[i].Path != f.Path {
				continue
			}
			if wordOverlap(result[i].Description, f.Description) > overlapThreshold {
				result[i] = mergeFindings(result[i], f)
				merged = true
				break
			}
		}
		if !merged {
			result = append(result, f)
		}
	}
	return result
}

func mergeFindings(a, b review.Finding) review.Finding {
	out := a
	if len(b.Description) > len(a.Description) {
		out.Description = b.Description
		out.Title = b.Title
	}
	if review.SeverityRank(b.Severity) > review.SeverityRank(a.Severity) {
		out.Severity = b.Severity
	}
	if out.Line == 0 {
		out.Line = b.Line
	}
	if out.Suggestion == "" {
		out.Suggestion = b.Suggestion
	}
	if out.CodeSnippet == "" {
		out.CodeSnippet = b.CodeSnippet
	}
	return out
}

// wordOverlap returns the ratio of shared words to the smaller finding's
// word count, compared case-insensitively.
func wordOverlap(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	small, large := wa, wb
	if len(wb) < len(wa) {
		small, large = wb, wa
	}
	shared := 0
	for w := range small {
		if large[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}
