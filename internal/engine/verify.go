package engine

import (
	"context"
	"fmt"

	"github.com/gavel-review/gavel/internal/parse"
	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/scan"
)

// lineTolerance is how far a re-reported finding's line may drift and still
// count as the same issue. Fixes shift code, so exact matching is too strict.
const lineTolerance = 5

// Verify re-reviews a resolved finding's work unit. If the backend reports
// the same issue again the finding reverts to pending; force-resolved
// findings keep their status regardless, with the override recorded.
func (e *Engine) Verify(ctx context.Context, f review.Finding, unit scan.WorkUnit, reviewType string) (review.Finding, error) {
	if f.Status != review.StatusResolved && f.Status != review.StatusAIFixed {
		return f, fmt.Errorf("finding %s is %s, only resolved findings are verified", f.ID, f.Status)
	}

	result, err := e.disp.ReviewBatch(ctx, []scan.WorkUnit{unit}, reviewType, nil)
	if err != nil {
		return f, fmt.Errorf("verification review: %w", err)
	}

	var reported []review.Finding
	for _, resp := range result.Responses {
		parsed := parse.Response(resp.Content, resp.Units)
		reported = append(reported, parsed.Findings...)
	}

	match := findRecurrence(f, reported)
	if match == nil {
		f.Interactions = append(f.Interactions, "verification passed: issue no longer reported")
		return f, nil
	}

	if f.ForceResolved {
		f.Interactions = append(f.Interactions,
			fmt.Sprintf("verification flagged recurrence (%s) but resolution was forced", match.Title))
		return f, nil
	}

	f.Status = review.StatusPending
	f.ResolvedAt = nil
	f.Interactions = append(f.Interactions,
		fmt.Sprintf("verification failed: issue still reported as %q, reverted to pending", match.Title))
	return f, nil
}

// findRecurrence looks for a reported finding that is plausibly the same
// issue: same file, same category, and a nearby line.
func findRecurrence(orig review.Finding, reported []review.Finding) *review.Finding {
	for i := range reported {
		r := &reported[i]
		if r.Path != orig.Path {
			continue
		}
		if orig.Category != "" && r.Category != "" && r.Category != orig.Category {
			continue
		}
		if orig.Line > 0 && r.Line > 0 {
			diff := orig.Line - r.Line
			if diff < 0 {
				diff = -diff
			}
			if diff > lineTolerance {
				continue
			}
		}
		return r
	}
	return nil
}
