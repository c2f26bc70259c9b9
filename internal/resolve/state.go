package resolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/gavel-review/gavel/internal/review"
)

// MinIgnoreReason is the shortest acceptable ignore justification.
const MinIgnoreReason = 3

// ResolutionError reports a rejected state transition. The finding is left
// exactly as it was.
type ResolutionError struct {
	From   review.Status
	Action string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s a %s finding: %s", e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s a %s finding", e.Action, e.From)
}

// Resolve marks a pending finding resolved.
func Resolve(f *review.Finding) error {
	if f.Status != review.StatusPending && f.Status != review.StatusFixFailed {
		return &ResolutionError{From: f.Status, Action: "resolve"}
	}
	now := time.Now()
	f.Status = review.StatusResolved
	f.ResolvedAt = &now
	f.Interactions = append(f.Interactions, "resolved by user")
	return nil
}

// ForceResolve marks a finding resolved and records the override, so later
// verification will not revert it.
func ForceResolve(f *review.Finding) error {
	switch f.Status {
	case review.StatusResolved, review.StatusIgnored, review.StatusAIFixed:
		return &ResolutionError{From: f.Status, Action: "force-resolve", Reason: "already closed"}
	}
	now := time.Now()
	f.Status = review.StatusResolved
	f.ForceResolved = true
	f.ResolvedAt = &now
	f.Interactions = append(f.Interactions, "force-resolved by user")
	return nil
}

// Ignore dismisses a pending finding. The reason is mandatory and must be
// at least MinIgnoreReason characters after trimming.
func Ignore(f *review.Finding, reason string) error {
	if f.Status != review.StatusPending && f.Status != review.StatusFixFailed {
		return &ResolutionError{From: f.Status, Action: "ignore"}
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < MinIgnoreReason {
		return &ResolutionError{From: f.Status, Action: "ignore",
			Reason: fmt.Sprintf("reason must be at least %d characters", MinIgnoreReason)}
	}
	now := time.Now()
	f.Status = review.StatusIgnored
	f.IgnoreReason = reason
	f.ResolvedAt = &now
	f.Interactions = append(f.Interactions, "ignored: "+reason)
	return nil
}

// Skip defers a pending finding without resolving it.
func Skip(f *review.Finding) error {
	if f.Status != review.StatusPending && f.Status != review.StatusFixFailed {
		return &ResolutionError{From: f.Status, Action: "skip"}
	}
	f.Status = review.StatusSkipped
	f.Interactions = append(f.Interactions, "skipped by user")
	return nil
}

// Reopen returns a skipped finding to pending for another pass.
func Reopen(f *review.Finding) error {
	if f.Status != review.StatusSkipped {
		return &ResolutionError{From: f.Status, Action: "reopen"}
	}
	f.Status = review.StatusPending
	f.Interactions = append(f.Interactions, "reopened")
	return nil
}

// ProposeFix attaches AI-generated replacement code to a pending finding
// and moves it to ai_fix_proposed awaiting confirmation.
func ProposeFix(f *review.Finding, fixed string) error {
	if f.Status != review.StatusPending && f.Status != review.StatusFixFailed {
		return &ResolutionError{From: f.Status, Action: "propose a fix for"}
	}
	if strings.TrimSpace(fixed) == "" {
		return &ResolutionError{From: f.Status, Action: "propose a fix for", Reason: "empty fix"}
	}
	f.Status = review.StatusAIFixProposed
	f.AppliedFix = fixed
	f.Interactions = append(f.Interactions, "AI fix proposed")
	return nil
}

// CancelFix discards a proposed fix and returns the finding to pending.
func CancelFix(f *review.Finding) error {
	if f.Status != review.StatusAIFixProposed {
		return &ResolutionError{From: f.Status, Action: "cancel a fix for"}
	}
	f.Status = review.StatusPending
	f.AppliedFix = ""
	f.Interactions = append(f.Interactions, "AI fix rejected")
	return nil
}

// markFixed closes out a finding whose proposed fix was written to disk.
func markFixed(f *review.Finding) {
	now := time.Now()
	f.Status = review.StatusAIFixed
	f.ResolvedAt = &now
	f.Interactions = append(f.Interactions, "AI fix applied")
}

// markFixFailed records a fix that could not be written. The proposed code
// stays attached for inspection and retry.
func markFixFailed(f *review.Finding, cause error) {
	f.Status = review.StatusFixFailed
	f.Interactions = append(f.Interactions, "fix application failed: "+cause.Error())
}
