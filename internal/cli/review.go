package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
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
	"github.com/gavel-review/gavel/internal/vcs"
)

// Flags that are not config keys.
var (
	flagTypes       string
	flagOut         string
	flagStaged      bool
	flagInteractive bool
)

// addReviewFlags registers the shared review flags. Flag names match config
// keys so viper can layer them over file and environment values.
func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "AI backend (anthropic, openai, ollama)")
	cmd.Flags().String("model", "", "Model name")
	cmd.Flags().String("format", "", "Output format (text, json, markdown)")
	cmd.Flags().String("fail_on", "", "Fail on severity threshold (none, info, low, medium, high, critical)")
	cmd.Flags().Int("max_tokens_per_batch", 0, "Token budget per request batch")
	cmd.Flags().Int("max_files_per_batch", 0, "File count cap per request batch")
	cmd.Flags().Int("api_call_budget", 0, "Maximum API calls for the run (0 = unlimited)")
	cmd.Flags().Int("budget_floor", 0, "Smallest batch token budget under adaptive degradation")
	cmd.Flags().Duration("min_request_interval", 0, "Minimum spacing between backend requests")
	cmd.Flags().Int("requests_per_minute", 0, "Rolling per-minute request ceiling")
	cmd.Flags().Int("concurrency", 0, "Parallel batch dispatch (1 = sequential)")
	cmd.Flags().Int("context_lines", 0, "Unchanged context lines kept around diff hunks")
	cmd.Flags().Int64("max_file_bytes", 0, "Per-file size ceiling in project mode")
	cmd.Flags().String("log_level", "", "Log level (debug, info, warn, error)")

	cmd.Flags().StringVar(&flagTypes, "types", "", "Review types, comma-separated (see gavel review types)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagInteractive, "interactive", false, "Walk through findings interactively after the review")
}

func loadReviewConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

// reviewTypes validates and normalizes the --types flag into the combined
// persona key understood by the prompt builder.
func reviewTypes() (combined string, list []string, err error) {
	if flagTypes == "" {
		return backend.DefaultReviewType, []string{backend.DefaultReviewType}, nil
	}
	list = splitComma(flagTypes)
	for _, t := range list {
		if !backend.ValidReviewType(t) {
			return "", nil, fmt.Errorf("unknown review type %q (known: %s)",
				t, strings.Join(backend.ReviewTypes(), ", "))
		}
	}
	return strings.Join(list, "+"), list, nil
}

func splitComma(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code with an AI backend",
	Long:  "Review a project tree or a change set. Use subcommands to specify what to review.",
}

var reviewProjectCmd = &cobra.Command{
	Use:   "project [path]",
	Short: "Review all source files under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadReviewConfig(cmd)
		if err != nil {
			return err
		}
		combined, list, err := reviewTypes()
		if err != nil {
			return err
		}

		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		units, err := scan.Project(root, scan.Options{
			MaxFileBytes: cfg.MaxFileBytes,
			ExcludeDirs:  cfg.ExcludeDirs,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if len(units) == 0 {
			fmt.Fprintln(os.Stderr, "No reviewable files found.")
			return nil
		}

		inputs := review.InputInfo{Mode: "project", Root: root, ReviewTypes: list}
		runReview(units, nil, combined, inputs, cfg)
		return nil
	},
}

var reviewDiffCmd = &cobra.Command{
	Use:   "diff [revRange]",
	Short: "Review changed lines from version control",
	Long: "Review the changes in a revision range (e.g. origin/main..HEAD), the\n" +
		"staged changes with --staged, or the uncommitted working-copy changes\n" +
		"when no range is given. Works in git and svn checkouts.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadReviewConfig(cmd)
		if err != nil {
			return err
		}
		combined, list, err := reviewTypes()
		if err != nil {
			return err
		}

		revRange := ""
		if len(args) == 1 {
			revRange = args[0]
		}

		system, root, err := vcs.Detect(".")
		if err != nil || system == vcs.None {
			fmt.Fprintln(os.Stderr, "Error: not inside a git or svn checkout")
			exitCode = ExitRuntimeError
			return nil
		}

		diffText, err := vcs.Diff(root, vcs.DiffOptions{
			Range:        revRange,
			ContextLines: cfg.ContextLines,
			Staged:       flagStaged,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		units, err := scan.Diff(diffText, scan.Options{ContextLines: cfg.ContextLines})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if len(units) == 0 {
			fmt.Fprintln(os.Stderr, "No changes to review.")
			return nil
		}

		var msgs []string
		if revRange != "" {
			if msgs, err = vcs.CommitMessages(root, revRange); err != nil {
				// Commit messages only enrich the prompt; review without them.
				msgs = nil
			}
		}

		inputs := review.InputInfo{Mode: "diff", Root: root, Range: revRange, ReviewTypes: list}
		runReview(units, msgs, combined, inputs, cfg)
		return nil
	},
}

var reviewTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the available review types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range backend.ReviewTypes() {
			fmt.Fprintln(os.Stdout, t)
		}
	},
}

// runReview drives the engine for the scanned units and writes the report.
func runReview(units []scan.WorkUnit, commitMessages []string, reviewType string, inputs review.InputInfo, cfg config.Config) {
	rev, err := backend.New(cfg.Backend, cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitAuthError
		return
	}

	sess := session.New(cfg.APICallBudget)
	disp := dispatch.New(rev, sess, dispatch.Options{
		MinInterval: cfg.MinRequestInterval,
		PerMinute:   cfg.RequestsPerMinute,
	})
	eng := engine.New(disp, sess)

	// Progress UI would interleave with a report printed to stdout.
	showProgress := flagOut != "" || cfg.Format == "text"
	var spinner *pterm.SpinnerPrinter
	var progress engine.Progress
	if showProgress {
		spinner, _ = pterm.DefaultSpinner.Start(fmt.Sprintf("Reviewing %d files...", len(units)))
		progress = func(completed, total int) {
			spinner.UpdateText(fmt.Sprintf("Reviewing batch %d/%d...", completed, total))
		}
	}

	ctx := context.Background()
	report, err := eng.Run(ctx, units, engine.Options{
		ReviewType:     reviewType,
		MaxTokens:      cfg.MaxTokensPerBatch,
		MaxFiles:       cfg.MaxFilesPerBatch,
		BudgetFloor:    cfg.BudgetFloor,
		CommitMessages: commitMessages,
		Inputs:         inputs,
		Progress:       progress,
		Concurrency:    cfg.Concurrency,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		if backend.IsAuthError(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitAuthError
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if flagInteractive && len(report.Findings) > 0 {
		fixer := resolve.NewFixer(disp, sess)
		actor := resolve.NewConsole(os.Stdin)
		if err := resolve.Loop(ctx, report.Findings, fixer, sess, actor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return
		}
		report.Summary = review.ComputeSummary(report.Findings)
	}

	if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if failOnThreshold(report.Findings, cfg.FailOn) {
		exitCode = ExitFindings
	}
}

// failOnThreshold reports whether any open finding meets the configured
// severity gate. Resolved, ignored, and fixed findings do not trip it.
func failOnThreshold(findings []review.Finding, failOn string) bool {
	if failOn == "" || failOn == "none" {
		return false
	}
	for _, f := range findings {
		switch f.Status {
		case review.StatusResolved, review.StatusIgnored, review.StatusAIFixed:
			continue
		}
		if review.MeetsThreshold(f.Severity, failOn) {
			return true
		}
	}
	return false
}

func init() {
	reviewCmd.AddCommand(reviewProjectCmd)
	reviewCmd.AddCommand(reviewDiffCmd)
	reviewCmd.AddCommand(reviewTypesCmd)

	addReviewFlags(reviewProjectCmd)
	addReviewFlags(reviewDiffCmd)

	reviewDiffCmd.Flags().BoolVar(&flagStaged, "staged", false, "Review staged changes (git only)")
}
