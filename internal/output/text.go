package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gavel-review/gavel/internal/review"
)

// severityOrder lists display order, most severe first.
var severityOrder = []review.Severity{
	review.SeverityCritical,
	review.SeverityHigh,
	review.SeverityMedium,
	review.SeverityLow,
	review.SeverityInfo,
}

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	total := report.Summary.Counts.Total()
	ew.printf("Gavel Code Review — %s mode\n", report.Inputs.Mode)
	if report.Inputs.Range != "" {
		ew.printf("Range: %s\n", report.Inputs.Range)
	}
	if report.Inputs.Root != "" {
		ew.printf("Root: %s\n", report.Inputs.Root)
	}
	if len(report.Inputs.ReviewTypes) > 0 {
		ew.printf("Review types: %s\n", strings.Join(report.Inputs.ReviewTypes, ", "))
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Findings: %d total", total)
	if total > 0 {
		c := report.Summary.Counts
		ew.printf(" (%d critical, %d high, %d medium, %d low, %d info)",
			c.Critical, c.High, c.Medium, c.Low, c.Info)
	}
	ew.println("")
	ew.printf("Quality score: %d/100\n", report.Summary.QualityScore)
	ew.println(strings.Repeat("─", 60))

	if total == 0 {
		ew.println("\nNo issues found. Looks good!")
	}

	// Group by severity (critical first), then by file
	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		label := strings.ToUpper(string(sev))
		ew.printf("\n%s %s\n", severityIcon(sev), label)
		ew.println(strings.Repeat("─", 40))

		sort.Slice(findings, func(i, j int) bool {
			return findings[i].Path < findings[j].Path
		})

		for _, f := range findings {
			ew.printf("\n  %s:%d  %s\n", f.Path, f.Line, f.Title)
			ew.printf("  Category: %s | Status: %s\n", f.Category, f.Status)

			for _, line := range wrapText(f.Description, 70) {
				ew.printf("    %s\n", line)
			}

			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
			if f.Status == review.StatusIgnored && f.IgnoreReason != "" {
				ew.printf("  Ignored: %s\n", f.IgnoreReason)
			}
		}
	}

	if len(report.Skipped) > 0 {
		ew.printf("\nSkipped files (%d):\n", len(report.Skipped))
		for _, s := range report.Skipped {
			ew.printf("  %s — %s\n", s.Path, s.Cause)
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("API calls: %d | Tokens sent: %d | Tokens received: %d\n",
		report.Usage.APICalls, report.Usage.TokensSent, report.Usage.TokensReceived)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func groupBySeverity(findings []review.Finding) map[review.Severity][]review.Finding {
	m := make(map[review.Severity][]review.Finding)
	for _, f := range findings {
		m[f.Severity] = append(m[f.Severity], f)
	}
	return m
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!!]"
	case review.SeverityHigh:
		return "[!!]"
	case review.SeverityMedium:
		return "[!]"
	case review.SeverityLow:
		return "[-]"
	case review.SeverityInfo:
		return "[i]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
