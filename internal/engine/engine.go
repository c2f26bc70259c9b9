package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gavel-review/gavel/internal/dispatch"
	"github.com/gavel-review/gavel/internal/parse"
	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/scan"
	"github.com/gavel-review/gavel/internal/session"
)

// DefaultBudgetFloor is the smallest batch token budget adaptive
// degradation will shrink to.
const DefaultBudgetFloor = 2000

// Progress reports run advancement to the caller, batch by batch.
type Progress func(completed, total int)

// Options controls one engine run.
type Options struct {
	ReviewType     string
	MaxTokens      int
	MaxFiles       int
	BudgetFloor    int
	CommitMessages []string
	Inputs         review.InputInfo
	Progress       Progress
	// Concurrency above 1 dispatches batches in parallel. Adaptive budget
	// halving needs the sequential order and is disabled in that mode.
	Concurrency int
}

func (o Options) budgetFloor() int {
	if o.BudgetFloor > 0 {
		return o.BudgetFloor
	}
	return DefaultBudgetFloor
}

// Engine runs reviews against a dispatcher.
type Engine struct {
	disp *dispatch.Dispatcher
	sess *session.Session
}

// New creates an Engine.
func New(d *dispatch.Dispatcher, s *session.Session) *Engine {
	return &Engine{disp: d, sess: s}
}

// Run reviews the given work units and returns a report. Partial results
// survive cancellation and backend failure: everything reviewed before the
// interruption is in the report, and unreviewed units appear under Skipped.
func (e *Engine) Run(ctx context.Context, units []scan.WorkUnit, opts Options) (*review.Report, error) {
	start := time.Now()
	if opts.ReviewType == "" {
		opts.ReviewType = "best_practices"
	}

	batches := review.Plan(units, opts.MaxTokens, opts.MaxFiles)

	var findings []review.Finding
	var skipped []review.SkippedUnit
	if opts.Concurrency > 1 {
		findings, skipped = e.runParallel(ctx, batches, opts)
	} else {
		findings, skipped = e.runSequential(ctx, batches, opts)
	}

	findings = review.DeduplicateFindings(findings)
	review.SortFindings(findings)

	usage := e.sess.Usage()
	report := &review.Report{
		Tool:      "gavel",
		Version:   "1.0",
		RunID:     uuid.NewString(),
		CreatedAt: start,
		Inputs:    opts.Inputs,
		Summary:   review.ComputeSummary(findings),
		Findings:  findings,
		Skipped:   skipped,
		Usage: review.UsageStats{
			APICalls:       usage.APICalls,
			TokensSent:     usage.TokensSent,
			TokensReceived: usage.TokensReceived,
			BatchesOK:      usage.BatchesOK,
			BatchesFailed:  usage.BatchesFailed,
		},
	}
	return report, nil
}

// runSequential processes batches in order, halving the token budget after
// a degraded batch and replanning the remainder under the new budget.
func (e *Engine) runSequential(ctx context.Context, batches []review.Batch, opts Options) ([]review.Finding, []review.SkippedUnit) {
	var findings []review.Finding
	var skipped []review.SkippedUnit
	budget := opts.MaxTokens
	floor := opts.budgetFloor()

	for i := 0; i < len(batches); i++ {
		if err := ctx.Err(); err != nil {
			skipped = append(skipped, skipAll(batches[i:], "run canceled")...)
			break
		}

		result, err := e.disp.ReviewBatch(ctx, batches[i].Units, opts.ReviewType, opts.CommitMessages)
		collectResult(result, &findings, &skipped)
		if err != nil {
			cause := err.Error()
			skipped = append(skipped, skipUnits(remainingUnits(batches[i].Units, result), cause)...)
			skipped = append(skipped, skipAll(batches[i+1:], cause)...)
			slog.Warn("run aborted", "batch", i+1, "of", len(batches), "error", err)
			break
		}

		if result.Degraded && budget/2 >= floor {
			budget /= 2
			rest := batchUnits(batches[i+1:])
			batches = append(batches[:i+1], review.Plan(rest, budget, opts.MaxFiles)...)
			slog.Info("token budget halved after batch failure", "budget", budget, "remaining", len(rest))
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(batches))
		}
	}
	return findings, skipped
}

// runParallel dispatches batches with bounded concurrency. Aggregation is
// mutex-serialized; no replanning happens in this mode.
func (e *Engine) runParallel(ctx context.Context, batches []review.Batch, opts Options) ([]review.Finding, []review.SkippedUnit) {
	var mu sync.Mutex
	var findings []review.Finding
	var skipped []review.SkippedUnit
	done := 0

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func(b review.Batch) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				skipped = append(skipped, skipUnits(b.Units, "run canceled")...)
				mu.Unlock()
				return
			}
			result, err := e.disp.ReviewBatch(ctx, b.Units, opts.ReviewType, opts.CommitMessages)

			mu.Lock()
			defer mu.Unlock()
			collectResult(result, &findings, &skipped)
			if err != nil {
				skipped = append(skipped, skipUnits(remainingUnits(b.Units, result), err.Error())...)
			}
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(batches))
			}
		}(b)
	}
	wg.Wait()
	return findings, skipped
}

func collectResult(result dispatch.Result, findings *[]review.Finding, skipped *[]review.SkippedUnit) {
	for _, resp := range result.Responses {
		parsed := parse.Response(resp.Content, resp.Units)
		*findings = append(*findings, parsed.Findings...)
	}
	for i, u := range result.Skipped {
		*skipped = append(*skipped, review.SkippedUnit{Path: u.DisplayName, Cause: result.Causes[i]})
	}
}

// remainingUnits returns the units of a batch that got neither a response
// nor a skip record, for accounting after an aborted dispatch.
func remainingUnits(units []scan.WorkUnit, result dispatch.Result) []scan.WorkUnit {
	covered := make(map[string]bool)
	for _, resp := range result.Responses {
		for _, u := range resp.Units {
			covered[u.DisplayName] = true
		}
	}
	for _, u := range result.Skipped {
		covered[u.DisplayName] = true
	}
	var rest []scan.WorkUnit
	for _, u := range units {
		if !covered[u.DisplayName] {
			rest = append(rest, u)
		}
	}
	return rest
}

func batchUnits(batches []review.Batch) []scan.WorkUnit {
	var units []scan.WorkUnit
	for _, b := range batches {
		units = append(units, b.Units...)
	}
	return units
}

func skipAll(batches []review.Batch, cause string) []review.SkippedUnit {
	return skipUnits(batchUnits(batches), cause)
}

func skipUnits(units []scan.WorkUnit, cause string) []review.SkippedUnit {
	var out []review.SkippedUnit
	for _, u := range units {
		out = append(out, review.SkippedUnit{Path: u.DisplayName, Cause: cause})
	}
	return out
}
