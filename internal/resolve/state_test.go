package resolve

import (
	"errors"
	"testing"

	"github.com/gavel-review/gavel/internal/review"
)

func pending() review.Finding {
	return review.Finding{
		ID:          "f1",
		Severity:    review.SeverityHigh,
		Title:       "unchecked error",
		Description: "return value ignored",
		Path:        "a.go",
		Line:        12,
		Status:      review.StatusPending,
	}
}

func TestResolve(t *testing.T) {
	f := pending()
	if err := Resolve(&f); err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if f.Status != review.StatusResolved || f.ResolvedAt == nil {
		t.Errorf("finding = %+v", f)
	}

	// Resolving again is invalid and leaves the finding unchanged.
	before := f
	err := Resolve(&f)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want ResolutionError", err)
	}
	if f.Status != before.Status || len(f.Interactions) != len(before.Interactions) {
		t.Error("rejected transition mutated the finding")
	}
}

func TestIgnore_ReasonRequired(t *testing.T) {
	f := pending()
	if err := Ignore(&f, ""); err == nil {
		t.Fatal("Ignore with empty reason must fail")
	}
	if f.Status != review.StatusPending {
		t.Errorf("Status = %q after rejected ignore, want pending", f.Status)
	}

	if err := Ignore(&f, "  ab  "); err == nil {
		t.Fatal("Ignore with too-short reason must fail")
	}

	if err := Ignore(&f, "not production code"); err != nil {
		t.Fatalf("Ignore error = %v", err)
	}
	if f.Status != review.StatusIgnored || f.IgnoreReason != "not production code" {
		t.Errorf("finding = %+v", f)
	}
}

func TestSkipAndReopen(t *testing.T) {
	f := pending()
	if err := Skip(&f); err != nil {
		t.Fatalf("Skip error = %v", err)
	}
	if f.Status != review.StatusSkipped {
		t.Errorf("Status = %q", f.Status)
	}
	if err := Reopen(&f); err != nil {
		t.Fatalf("Reopen error = %v", err)
	}
	if f.Status != review.StatusPending {
		t.Errorf("Status = %q after reopen", f.Status)
	}
	if err := Reopen(&f); err == nil {
		t.Fatal("Reopen of a pending finding must fail")
	}
}

func TestFixLifecycle(t *testing.T) {
	f := pending()

	if err := ProposeFix(&f, ""); err == nil {
		t.Fatal("empty fix must be rejected")
	}
	if err := ProposeFix(&f, "fixed code"); err != nil {
		t.Fatalf("ProposeFix error = %v", err)
	}
	if f.Status != review.StatusAIFixProposed || f.AppliedFix != "fixed code" {
		t.Errorf("finding = %+v", f)
	}

	// Resolve and Skip are invalid while a fix is pending confirmation.
	if err := Resolve(&f); err == nil {
		t.Error("Resolve allowed in ai_fix_proposed")
	}
	if err := Skip(&f); err == nil {
		t.Error("Skip allowed in ai_fix_proposed")
	}

	if err := CancelFix(&f); err != nil {
		t.Fatalf("CancelFix error = %v", err)
	}
	if f.Status != review.StatusPending || f.AppliedFix != "" {
		t.Errorf("finding = %+v after cancel", f)
	}
	if err := CancelFix(&f); err == nil {
		t.Fatal("CancelFix without a proposal must fail")
	}
}

func TestForceResolve(t *testing.T) {
	f := pending()
	if err := ForceResolve(&f); err != nil {
		t.Fatalf("ForceResolve error = %v", err)
	}
	if !f.ForceResolved || f.Status != review.StatusResolved {
		t.Errorf("finding = %+v", f)
	}
	if err := ForceResolve(&f); err == nil {
		t.Fatal("ForceResolve of a closed finding must fail")
	}
}

func TestFixFailedAllowsRetryPaths(t *testing.T) {
	f := pending()
	if err := ProposeFix(&f, "bad fix"); err != nil {
		t.Fatal(err)
	}
	markFixFailed(&f, errors.New("disk full"))
	if f.Status != review.StatusFixFailed {
		t.Fatalf("Status = %q", f.Status)
	}

	// From fix_failed the user can still resolve, ignore, skip, or retry.
	retry := f
	if err := ProposeFix(&retry, "better fix"); err != nil {
		t.Errorf("retry ProposeFix error = %v", err)
	}
	res := f
	if err := Resolve(&res); err != nil {
		t.Errorf("Resolve from fix_failed error = %v", err)
	}
	ign := f
	if err := Ignore(&ign, "will fix manually"); err != nil {
		t.Errorf("Ignore from fix_failed error = %v", err)
	}
}
