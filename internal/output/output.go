package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gavel-review/gavel/internal/review"
)

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *review.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	if err := writer.Write(w, report); err != nil {
		return err
	}

	// A JSON report file gets a human-readable summary next to it, so the
	// machine artifact and the readable one land together.
	if format == "json" && outPath != "" {
		return writeSummary(report, SummaryPath(outPath))
	}
	return nil
}

// SummaryPath derives the companion text-summary path for a JSON report.
func SummaryPath(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, ".json") + ".txt"
}

func writeSummary(report *review.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	defer f.Close()
	return (&TextWriter{}).Write(f, report)
}
