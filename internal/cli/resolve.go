package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gavel-review/gavel/internal/backend"
	"github.com/gavel-review/gavel/internal/config"
	"github.com/gavel-review/gavel/internal/dispatch"
	"github.com/gavel-review/gavel/internal/engine"
	"github.com/gavel-review/gavel/internal/output"
	"github.com/gavel-review/gavel/internal/resolve"
	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/scan"
	"github.com/gavel-review/gavel/internal/session"
)

var flagVerify bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <report.json>",
	Short: "Work through a saved report's findings interactively",
	Long: "Load a JSON report from an earlier review, walk through its pending\n" +
		"findings (resolve, ignore, AI fix, view code, skip), and write the\n" +
		"updated report back in place.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)

		path := args[0]
		report, err := output.ReadReport(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		pending := 0
		for _, f := range report.Findings {
			if f.Status == review.StatusPending {
				pending++
			}
		}
		if pending == 0 && !flagVerify {
			fmt.Fprintln(os.Stderr, "No pending findings to resolve.")
			return nil
		}

		sess := session.New(cfg.APICallBudget)

		// The backend is only needed for AI fixes and verification; without
		// one the manual actions still work.
		var disp *dispatch.Dispatcher
		var fixer *resolve.Fixer
		if rev, err := backend.New(cfg.Backend, cfg.Model); err == nil {
			disp = dispatch.New(rev, sess, dispatch.Options{
				MinInterval: cfg.MinRequestInterval,
				PerMinute:   cfg.RequestsPerMinute,
			})
			fixer = resolve.NewFixer(disp, sess)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: %v (AI fixes unavailable)\n", err)
		}

		ctx := context.Background()
		actor := resolve.NewConsole(os.Stdin)
		if err := resolve.Loop(ctx, report.Findings, fixer, sess, actor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		if flagVerify {
			if disp == nil {
				fmt.Fprintln(os.Stderr, "Error: --verify needs a working AI backend")
				exitCode = ExitAuthError
				return nil
			}
			verifyResolved(ctx, report, engine.New(disp, sess), sess)
		}

		report.Summary = review.ComputeSummary(report.Findings)
		if err := output.WriteReport(report, "json", path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		fmt.Fprintf(os.Stderr, "Updated report written to %s\n", path)
		return nil
	},
}

// verifyResolved re-reviews each resolved finding's file and reverts the
// ones whose issue is reported again.
func verifyResolved(ctx context.Context, report *review.Report, eng *engine.Engine, sess *session.Session) {
	reviewType := backend.DefaultReviewType
	if len(report.Inputs.ReviewTypes) > 0 {
		reviewType = report.Inputs.ReviewTypes[0]
	}

	for i := range report.Findings {
		f := report.Findings[i]
		if f.Status != review.StatusResolved && f.Status != review.StatusAIFixed {
			continue
		}
		content, err := sess.Content(f.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot verify %s: %v\n", f.Path, err)
			continue
		}
		unit := scan.WorkUnit{
			Path:            f.Path,
			DisplayName:     f.Path,
			Content:         content,
			Language:        scan.LanguageFor(f.Path),
			EstimatedTokens: scan.EstimateTokens(content),
		}
		verified, err := eng.Verify(ctx, f, unit, reviewType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: verification of %s failed: %v\n", f.ID, err)
			continue
		}
		report.Findings[i] = verified
	}
}

func init() {
	resolveCmd.Flags().String("backend", "", "AI backend (anthropic, openai, ollama)")
	resolveCmd.Flags().String("model", "", "Model name")
	resolveCmd.Flags().String("log_level", "", "Log level (debug, info, warn, error)")
	resolveCmd.Flags().BoolVar(&flagVerify, "verify", false, "Re-review resolved findings and revert recurrences")
}
