package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gavel-review/gavel/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	c := report.Summary.Counts
	total := c.Total()

	fmt.Fprintf(w, "## Gavel Code Review\n\n")

	// Summary table
	fmt.Fprintf(w, "| Severity | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	fmt.Fprintf(w, "| Critical | %d    |\n", c.Critical)
	fmt.Fprintf(w, "| High     | %d    |\n", c.High)
	fmt.Fprintf(w, "| Medium   | %d    |\n", c.Medium)
	fmt.Fprintf(w, "| Low      | %d    |\n", c.Low)
	fmt.Fprintf(w, "| Info     | %d    |\n", c.Info)
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", total)

	fmt.Fprintf(w, "**Quality score: %d/100**\n\n", report.Summary.QualityScore)

	if total == 0 {
		fmt.Fprintln(w, "No issues found. :white_check_mark:")
		return nil
	}

	// Collapsible sections by severity
	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		icon := mdSeverityIcon(sev)
		label := strings.ToUpper(string(sev))

		fmt.Fprintf(w, "<details>\n<summary>%s %s (%d)</summary>\n\n", icon, label, len(findings))

		sort.Slice(findings, func(i, j int) bool {
			return findings[i].Path < findings[j].Path
		})

		for _, f := range findings {
			fmt.Fprintf(w, "### %s\n\n", f.Title)
			fmt.Fprintf(w, "**`%s:%d`** | %s | %s\n\n", f.Path, f.Line, f.Category, f.Status)
			fmt.Fprintf(w, "%s\n\n", f.Description)

			if f.Suggestion != "" {
				fmt.Fprintf(w, "**Suggestion:**\n\n")
				// Wrap suggestion in code fence if it looks like code
				if looksLikeCode(f.Suggestion) {
					lang := inferLang(f.Path)
					fmt.Fprintf(w, "```%s\n%s\n```\n\n", lang, f.Suggestion)
				} else {
					fmt.Fprintf(w, "> %s\n\n", strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
				}
			}

			fmt.Fprintf(w, "---\n\n")
		}

		fmt.Fprintf(w, "</details>\n\n")
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "<details>\n<summary>Skipped files (%d)</summary>\n\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "- `%s` — %s\n", s.Path, s.Cause)
		}
		fmt.Fprintf(w, "\n</details>\n\n")
	}

	fmt.Fprintf(w, "*%d API calls, %d tokens sent, %d tokens received*\n",
		report.Usage.APICalls, report.Usage.TokensSent, report.Usage.TokensReceived)

	return nil
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":no_entry:"
	case review.SeverityHigh:
		return ":red_circle:"
	case review.SeverityMedium:
		return ":orange_circle:"
	case review.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

func inferLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	for ext, lang := range langMap {
		if strings.HasSuffix(path, ext) {
			return lang
		}
	}
	return ""
}
