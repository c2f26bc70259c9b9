package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gavel-review/gavel/internal/backend"
	"github.com/gavel-review/gavel/internal/dispatch"
	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/scan"
	"github.com/gavel-review/gavel/internal/session"
)

// scriptedBackend returns canned outcomes in call order, then a default.
type scriptedBackend struct {
	mu      sync.Mutex
	calls   int
	outcome []func(req backend.ReviewRequest) (backend.ReviewResponse, error)
}

func (s *scriptedBackend) Review(ctx context.Context, req backend.ReviewRequest) (backend.ReviewResponse, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()
	if i < len(s.outcome) {
		return s.outcome[i](req)
	}
	return backend.ReviewResponse{Content: emptySchema, TokensSent: 10, TokensReceived: 5}, nil
}

func (s *scriptedBackend) Name() string { return "scripted" }

const emptySchema = `{"files":[{"filename":"none","findings":[]}]}`

func respondWith(content string) func(backend.ReviewRequest) (backend.ReviewResponse, error) {
	return func(backend.ReviewRequest) (backend.ReviewResponse, error) {
		return backend.ReviewResponse{Content: content, TokensSent: 10, TokensReceived: 5}, nil
	}
}

func failWith(err error) func(backend.ReviewRequest) (backend.ReviewResponse, error) {
	return func(backend.ReviewRequest) (backend.ReviewResponse, error) {
		return backend.ReviewResponse{}, err
	}
}

func findingJSON(file string, sev string, line int) string {
	return fmt.Sprintf(`{"files":[{"filename":"%s","findings":[{"severity":"%s","line":%d,"category":"bug","title":"issue in %s","description":"a problem was found in this file on line %d"}]}]}`,
		file, sev, line, file, line)
}

func tokenUnit(name string, tokens int) scan.WorkUnit {
	return scan.WorkUnit{Path: name, DisplayName: name, Content: strings.Repeat("x", tokens*4), EstimatedTokens: tokens}
}

func newEngine(b backend.Reviewer, budget int) (*Engine, *session.Session) {
	sess := session.New(budget)
	d := dispatch.New(b, sess, dispatch.Options{})
	return New(d, sess), sess
}

func TestRun_CollectsFindings(t *testing.T) {
	b := &scriptedBackend{outcome: []func(backend.ReviewRequest) (backend.ReviewResponse, error){
		respondWith(findingJSON("a.py", "critical", 10)),
	}}
	e, _ := newEngine(b, 0)

	units := []scan.WorkUnit{tokenUnit("a.py", 100)}
	report, err := e.Run(context.Background(), units, Options{MaxTokens: 1000, ReviewType: "security"})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(report.Findings))
	}
	f := report.Findings[0]
	if f.Severity != review.SeverityCritical || f.Line != 10 || f.Path != "a.py" {
		t.Errorf("finding = %+v", f)
	}
	if report.RunID == "" {
		t.Error("missing run ID")
	}
	if report.Usage.APICalls != 1 {
		t.Errorf("APICalls = %d, want 1", report.Usage.APICalls)
	}
	if report.Summary.QualityScore != 80 {
		t.Errorf("QualityScore = %d, want 80 after one critical", report.Summary.QualityScore)
	}
}

func TestRun_BudgetHalvingAfterDegradedBatch(t *testing.T) {
	// First batch fails twice (degrades), then all later calls succeed.
	b := &scriptedBackend{outcome: []func(backend.ReviewRequest) (backend.ReviewResponse, error){
		failWith(errors.New("boom")),
		failWith(errors.New("boom")),
	}}
	e, _ := newEngine(b, 0)

	// Budget 1000: first batch is {a.py, b.py} (900 tokens), second {c.py}.
	// The first degrades to per-unit dispatch, then the budget halves to
	// 500 before the remainder is replanned.
	units := []scan.WorkUnit{
		tokenUnit("a.py", 600), tokenUnit("b.py", 300), tokenUnit("c.py", 300),
	}
	report, err := e.Run(context.Background(), units, Options{MaxTokens: 1000, BudgetFloor: 100})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none (per-unit fallback succeeded)", report.Skipped)
	}
	// 2 failed batch attempts + 1 per-unit (a.py) + b.py and c.py in
	// separate halved batches = 5 calls minimum.
	if b.calls < 5 {
		t.Errorf("backend calls = %d, want at least 5 after halving", b.calls)
	}
	if report.Usage.BatchesFailed != 1 {
		t.Errorf("BatchesFailed = %d, want 1", report.Usage.BatchesFailed)
	}
}

func TestRun_BudgetFloorRespected(t *testing.T) {
	b := &scriptedBackend{outcome: []func(backend.ReviewRequest) (backend.ReviewResponse, error){
		failWith(errors.New("boom")),
		failWith(errors.New("boom")),
	}}
	e, _ := newEngine(b, 0)

	units := []scan.WorkUnit{tokenUnit("a.py", 100), tokenUnit("b.py", 100)}
	// Budget already at the floor: no halving, one batch for the remainder.
	report, err := e.Run(context.Background(), units, Options{MaxTokens: 2000, BudgetFloor: 2000})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	// a.py and b.py fit one batch; it degraded, both reviewed per-unit.
	if len(report.Findings) == 0 && len(report.Skipped) != 0 {
		t.Errorf("unexpected skips: %+v", report.Skipped)
	}
}

func TestRun_BudgetExhaustionSkipsRemainder(t *testing.T) {
	b := &scriptedBackend{}
	e, _ := newEngine(b, 1) // one API call allowed

	units := []scan.WorkUnit{tokenUnit("a.py", 600), tokenUnit("b.py", 600)}
	report, err := e.Run(context.Background(), units, Options{MaxTokens: 1000})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(report.Skipped) != 1 {
		t.Fatalf("Skipped = %+v, want the second unit", report.Skipped)
	}
	if !strings.Contains(report.Skipped[0].Cause, "budget") {
		t.Errorf("Cause = %q, want budget exhaustion", report.Skipped[0].Cause)
	}
}

func TestRun_CancelKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &scriptedBackend{outcome: []func(backend.ReviewRequest) (backend.ReviewResponse, error){
		func(req backend.ReviewRequest) (backend.ReviewResponse, error) {
			cancel() // cancel after the first batch completes
			return backend.ReviewResponse{Content: findingJSON("a.py", "high", 5), TokensSent: 10, TokensReceived: 5}, nil
		},
	}}
	e, _ := newEngine(b, 0)

	units := []scan.WorkUnit{tokenUnit("a.py", 600), tokenUnit("b.py", 600)}
	report, err := e.Run(ctx, units, Options{MaxTokens: 1000})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(report.Findings) != 1 {
		t.Errorf("partial findings lost: %+v", report.Findings)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Path != "b.py" {
		t.Errorf("Skipped = %+v, want b.py canceled", report.Skipped)
	}
}

func TestRun_ParallelMode(t *testing.T) {
	b := &scriptedBackend{outcome: []func(backend.ReviewRequest) (backend.ReviewResponse, error){
		respondWith(findingJSON("a.py", "low", 1)),
		respondWith(findingJSON("b.py", "high", 2)),
		respondWith(findingJSON("c.py", "info", 3)),
	}}
	e, _ := newEngine(b, 0)

	units := []scan.WorkUnit{
		tokenUnit("a.py", 600), tokenUnit("b.py", 600), tokenUnit("c.py", 600),
	}
	report, err := e.Run(context.Background(), units, Options{MaxTokens: 1000, Concurrency: 2})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if len(report.Findings) != 3 {
		t.Fatalf("got %d findings, want 3", len(report.Findings))
	}
	// Sorted highest severity first regardless of completion order.
	if report.Findings[0].Severity != review.SeverityHigh {
		t.Errorf("Findings[0].Severity = %q, want high", report.Findings[0].Severity)
	}
}
