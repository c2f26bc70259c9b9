package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gavel-review/gavel/internal/review"
)

func sampleReport() *review.Report {
	findings := []review.Finding{
		{
			Severity:    review.SeverityCritical,
			Category:    review.CategorySecurity,
			Title:       "SQL injection in query builder",
			Description: "User input is interpolated directly into the SQL string.",
			Path:        "db/query.py",
			Line:        42,
			Suggestion:  "Use parameterized queries.",
			Status:      review.StatusPending,
		},
		{
			Severity:     review.SeverityLow,
			Category:     review.CategoryStyle,
			Title:        "Inconsistent naming",
			Description:  "Mixes camelCase and snake_case in the same module.",
			Path:         "app.py",
			Line:         7,
			Status:       review.StatusIgnored,
			IgnoreReason: "legacy module, rename scheduled",
		},
	}
	for i := range findings {
		findings[i].ID = review.GenerateID(findings[i])
	}
	return &review.Report{
		Tool:      "gavel",
		Version:   "1.0",
		RunID:     "run-123",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Inputs: review.InputInfo{
			Mode:        "project",
			Root:        "/src/app",
			ReviewTypes: []string{"security"},
		},
		Summary:  review.ComputeSummary(findings),
		Findings: findings,
		Skipped: []review.SkippedUnit{
			{Path: "vendor/big.js", Cause: "file too large"},
		},
		Usage: review.UsageStats{
			APICalls:       3,
			TokensSent:     1200,
			TokensReceived: 800,
			BatchesOK:      2,
		},
	}
}

func TestGetWriter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"markdown", false},
		{"md", false},
		{"sarif", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := GetWriter(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("GetWriter(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	report := sampleReport()

	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got review.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(&got, report) {
		t.Errorf("round trip changed report:\ngot  %+v\nwant %+v", got, *report)
	}
}

func TestReadReport(t *testing.T) {
	report := sampleReport()
	path := filepath.Join(t.TempDir(), "report.json")

	if err := WriteReport(report, "json", path); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport() error = %v", err)
	}
	if got.RunID != report.RunID || len(got.Findings) != len(report.Findings) {
		t.Errorf("ReadReport() = %+v, want %+v", got, report)
	}
	if got.Findings[1].IgnoreReason != "legacy module, rename scheduled" {
		t.Errorf("ignore reason lost in round trip: %q", got.Findings[1].IgnoreReason)
	}
}

func TestReadReport_Missing(t *testing.T) {
	if _, err := ReadReport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("ReadReport() on missing file should fail")
	}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Gavel Code Review — project mode",
		"CRITICAL",
		"SQL injection in query builder",
		"db/query.py:42",
		"Quality score: 80/100",
		"Skipped files (1)",
		"vendor/big.js",
		"API calls: 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}
}

func TestTextWriter_NoFindings(t *testing.T) {
	report := sampleReport()
	report.Findings = nil
	report.Summary = review.ComputeSummary(nil)

	var buf bytes.Buffer
	if err := (&TextWriter{}).Write(&buf, report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No issues found") {
		t.Errorf("expected clean-report message, got:\n%s", buf.String())
	}
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownWriter{}).Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"## Gavel Code Review",
		"| Critical | 1",
		"<details>",
		"**`db/query.py:42`**",
		"Quality score: 80/100",
		"Skipped files (1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q\n%s", want, out)
		}
	}
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	if err := WriteReport(sampleReport(), "markdown", path); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "## Gavel Code Review") {
		t.Error("file output missing heading")
	}
}

func TestWriteReport_JSONSummaryCompanion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReport(sampleReport(), "json", path); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	summary, err := os.ReadFile(SummaryPath(path))
	if err != nil {
		t.Fatalf("summary file not written: %v", err)
	}
	if !strings.Contains(string(summary), "Quality score: 80/100") {
		t.Error("summary missing quality score")
	}
}

func TestSummaryPath(t *testing.T) {
	if got := SummaryPath("out/report.json"); got != "out/report.txt" {
		t.Errorf("SummaryPath() = %q", got)
	}
	if got := SummaryPath("report"); got != "report.txt" {
		t.Errorf("SummaryPath() = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		lines int
	}{
		{"short", "fits on one line", 70, 1},
		{"long", strings.Repeat("word ", 40), 20, 10},
		{"empty", "", 70, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.width)
			if len(got) != tt.lines {
				t.Errorf("wrapText() returned %d lines, want %d", len(got), tt.lines)
			}
			for _, line := range got {
				if len(line) > tt.width+10 {
					t.Errorf("line exceeds width: %q", line)
				}
			}
		})
	}
}
