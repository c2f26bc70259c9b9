package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/gavel-review/gavel/internal/backend"
	"github.com/gavel-review/gavel/internal/scan"
	"github.com/gavel-review/gavel/internal/session"
)

// ErrBudgetExhausted is returned once the session's API call ceiling is
// reached. Remaining work is skipped, never silently dropped.
var ErrBudgetExhausted = errors.New("session API call budget exhausted")

// DispatchError wraps a backend failure together with the units that were
// in flight when it happened.
type DispatchError struct {
	Units []string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatching %d unit(s): %v", len(e.Units), e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Options configures a Dispatcher.
type Options struct {
	// MinInterval is the minimum spacing between consecutive requests.
	MinInterval time.Duration
	// PerMinute caps requests in any rolling minute. Zero disables the cap.
	PerMinute int
	// MaxTokens is the response token ceiling passed to the backend.
	MaxTokens int
}

// UnitResponse is one backend response together with the units it covers.
type UnitResponse struct {
	Units   []scan.WorkUnit
	Content string
}

// Result is the outcome of dispatching one batch.
type Result struct {
	Responses []UnitResponse
	Skipped   []scan.WorkUnit
	Causes    []string
	// Degraded is set when the batch failed as a whole and fell back to
	// per-unit dispatch. Callers use it to shrink later batches.
	Degraded bool
}

// Dispatcher serializes backend access for one review session.
type Dispatcher struct {
	rev      backend.Reviewer
	sess     *session.Session
	interval *rate.Limiter
	minute   *rate.Limiter
	opts     Options
}

// New creates a Dispatcher around a backend.
func New(rev backend.Reviewer, sess *session.Session, opts Options) *Dispatcher {
	d := &Dispatcher{rev: rev, sess: sess, opts: opts}
	if opts.MinInterval > 0 {
		d.interval = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	if opts.PerMinute > 0 {
		d.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), opts.PerMinute)
	}
	return d
}

// Send performs one rate-limited, budget-checked backend call. The session
// call counter is charged for every attempt; token counters only on success.
func (d *Dispatcher) Send(ctx context.Context, req backend.ReviewRequest) (backend.ReviewResponse, error) {
	if !d.sess.BudgetRemaining() {
		return backend.ReviewResponse{}, ErrBudgetExhausted
	}
	if d.interval != nil {
		if err := d.interval.Wait(ctx); err != nil {
			return backend.ReviewResponse{}, err
		}
	}
	if d.minute != nil {
		if err := d.minute.Wait(ctx); err != nil {
			return backend.ReviewResponse{}, err
		}
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = d.opts.MaxTokens
	}

	resp, err := d.rev.Review(ctx, req)
	if err != nil {
		d.sess.RecordCall(0, 0)
		return backend.ReviewResponse{}, err
	}
	d.sess.RecordCall(resp.TokensSent, resp.TokensReceived)
	return resp, nil
}

// ReviewBatch sends a whole batch as one request. A transient failure earns
// one same-batch retry; a second failure degrades to per-unit dispatch.
// Units that still fail individually are returned as skipped with a cause.
// Auth failures and budget exhaustion abort immediately.
func (d *Dispatcher) ReviewBatch(ctx context.Context, units []scan.WorkUnit, reviewType string, commitMessages []string) (Result, error) {
	system := backend.SystemPrompt(reviewType)
	user := backend.BuildBatchPrompt(units, commitMessages)
	req := backend.ReviewRequest{SystemPrompt: system, UserPrompt: user}

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		resp, err := d.Send(ctx, req)
		if err == nil {
			d.sess.RecordBatch(true)
			return Result{Responses: []UnitResponse{{Units: units, Content: resp.Content}}}, nil
		}
		if fatalDispatch(err) {
			return Result{}, err
		}
		slog.Warn("batch dispatch failed", "attempt", attempt+1, "units", len(units), "error", err)
	}
	d.sess.RecordBatch(false)

	res := Result{Degraded: true}
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		unitReq := backend.ReviewRequest{
			SystemPrompt: system,
			UserPrompt:   backend.BuildBatchPrompt([]scan.WorkUnit{u}, commitMessages),
		}
		resp, err := d.Send(ctx, unitReq)
		if err != nil {
			if fatalDispatch(err) {
				return res, err
			}
			slog.Warn("unit dispatch failed", "unit", u.DisplayName, "error", err)
			res.Skipped = append(res.Skipped, u)
			res.Causes = append(res.Causes, (&DispatchError{Units: []string{u.DisplayName}, Err: err}).Error())
			continue
		}
		res.Responses = append(res.Responses, UnitResponse{Units: []scan.WorkUnit{u}, Content: resp.Content})
	}
	return res, nil
}

// fatalDispatch reports errors that no amount of retrying will cure.
func fatalDispatch(err error) bool {
	return backend.IsAuthError(err) ||
		errors.Is(err, ErrBudgetExhausted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
