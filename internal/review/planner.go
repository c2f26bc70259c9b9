package review

import (
	"sort"

	"github.com/gavel-review/gavel/internal/scan"
)

// Batch is a group of work units submitted to the backend as one request.
type Batch struct {
	Units  []scan.WorkUnit
	Tokens int
}

// Oversized reports whether the batch is a single unit that alone exceeds
// the token budget. Such batches are always dispatched as singletons.
func (b Batch) Oversized(maxTokens int) bool {
	return len(b.Units) == 1 && b.Tokens > maxTokens
}

// Plan partitions units into batches. Units are taken largest first so big
// files anchor batches and small ones fill the remainder; a unit larger than
// the whole budget becomes its own batch rather than being dropped. Every
// unit lands in exactly one batch and the result is deterministic for a
// given input.
func Plan(units []scan.WorkUnit, maxTokens, maxFiles int) []Batch {
	if len(units) == 0 {
		return nil
	}
	if maxFiles <= 0 {
		maxFiles = len(units)
	}

	ordered := make([]scan.WorkUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].EstimatedTokens != ordered[j].EstimatedTokens {
			return ordered[i].EstimatedTokens > ordered[j].EstimatedTokens
		}
		return ordered[i].DisplayName < ordered[j].DisplayName
	})

	var batches []Batch
	var cur Batch
	for _, u := range ordered {
		if u.EstimatedTokens > maxTokens {
			batches = append(batches, Batch{Units: []scan.WorkUnit{u}, Tokens: u.EstimatedTokens})
			continue
		}
		if len(cur.Units) > 0 && (cur.Tokens+u.EstimatedTokens > maxTokens || len(cur.Units) >= maxFiles) {
			batches = append(batches, cur)
			cur = Batch{}
		}
		cur.Units = append(cur.Units, u)
		cur.Tokens += u.EstimatedTokens
	}
	if len(cur.Units) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
