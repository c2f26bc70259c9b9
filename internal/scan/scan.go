package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// avgCharsPerToken is the fixed ratio used to estimate token counts from
// content length when no exact tokenizer is available.
const avgCharsPerToken = 4

// DefaultMaxFileBytes is the project-mode size ceiling; files above it are
// skipped rather than truncated.
const DefaultMaxFileBytes = 256 * 1024

// WorkUnit is one reviewable artifact: a whole file in project mode or a
// file's changed regions in diff mode. Immutable once produced for a run.
type WorkUnit struct {
	Path            string `json:"path"`
	DisplayName     string `json:"displayName"`
	Content         string `json:"content"`
	Language        string `json:"language,omitempty"`
	FunctionContext string `json:"functionContext,omitempty"`
	IsDiff          bool   `json:"isDiff"`
	Hunks           []Hunk `json:"hunks,omitempty"`
	EstimatedTokens int    `json:"estimatedTokens"`
}

// EstimateTokens returns the token estimate for an arbitrary string using
// the same ratio applied to WorkUnits.
func EstimateTokens(s string) int {
	return len(s) / avgCharsPerToken
}

// Options controls both scan modes.
type Options struct {
	// MaxFileBytes is the project-mode size ceiling. Zero means DefaultMaxFileBytes.
	MaxFileBytes int64
	// ContextLines bounds the unchanged context kept around each diff hunk.
	ContextLines int
	// ExcludeDirs adds directory names to the default prune set.
	ExcludeDirs []string
}

func (o Options) maxFileBytes() int64 {
	if o.MaxFileBytes > 0 {
		return o.MaxFileBytes
	}
	return DefaultMaxFileBytes
}

// ScanError indicates input that could not be scanned at all, such as an
// unparseable diff. It aborts the run rather than being retried.
type ScanError struct {
	Source string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanning %s: %v", e.Source, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// pruneDirs are skipped before descending. Pruning rather than
// post-filtering keeps large dependency trees out of the walk entirely.
var pruneDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"bin":          true,
	"obj":          true,
	".idea":        true,
	".vscode":      true,
}

// languageByExt classifies reviewable files. Extensions absent from the
// table are not reviewable and are skipped.
var languageByExt = map[string]string{
	".py":     "python",
	".js":     "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".go":     "go",
	".java":   "java",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".cc":     "cpp",
	".cs":     "csharp",
	".rb":     "ruby",
	".php":    "php",
	".rs":     "rust",
	".swift":  "swift",
	".kt":     "kotlin",
	".m":      "objective-c",
	".mm":     "objective-c",
	".vue":    "vue",
	".svelte": "svelte",
	".astro":  "astro",
	".html":   "html",
	".css":    "css",
	".scss":   "scss",
	".sass":   "sass",
	".less":   "less",
	".json":   "json",
	".xml":    "xml",
	".yaml":   "yaml",
	".yml":    "yaml",
	".sql":    "sql",
	".sh":     "shell",
}

// LanguageFor returns the language classification for a path, or "" when
// the file type is not reviewable.
func LanguageFor(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// Project walks root and returns one WorkUnit per reviewable file, sorted
// by relative path. Unreadable files and files above the size ceiling are
// skipped with a warning; the walk itself only fails if root is unusable.
func Project(root string, opts Options) ([]WorkUnit, error) {
	excluded := make(map[string]bool, len(pruneDirs)+len(opts.ExcludeDirs))
	for d := range pruneDirs {
		excluded[d] = true
	}
	for _, d := range opts.ExcludeDirs {
		excluded[d] = true
	}

	ceiling := opts.maxFileBytes()
	var units []WorkUnit

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		lang := LanguageFor(path)
		if lang == "" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("skipping file, stat failed", "path", path, "error", err)
			return nil
		}
		if info.Size() > ceiling {
			slog.Warn("skipping file above size ceiling", "path", path, "size", info.Size(), "ceiling", ceiling)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		units = append(units, WorkUnit{
			Path:            path,
			DisplayName:     rel,
			Content:         string(content),
			Language:        lang,
			EstimatedTokens: EstimateTokens(string(content)),
		})
		return nil
	})
	if err != nil {
		return nil, &ScanError{Source: root, Err: err}
	}

	sort.Slice(units, func(i, j int) bool { return units[i].DisplayName < units[j].DisplayName })
	return units, nil
}
