package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/gavel-review/gavel/internal/backend"
	"github.com/gavel-review/gavel/internal/dispatch"
	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/session"
)

const (
	// MaxFixFileBytes is the ceiling above which a file is too large to
	// hand to the fixer wholesale.
	MaxFixFileBytes = 1 << 20
	// MaxFixContentChars bounds the code actually placed in the prompt.
	MaxFixContentChars = 100_000
	// backupMaxAge is how long .backup files survive before cleanup.
	backupMaxAge = 24 * time.Hour
)

// Fixer generates and applies AI fixes for findings.
type Fixer struct {
	disp *dispatch.Dispatcher
	sess *session.Session
}

// NewFixer creates a Fixer sharing the session's dispatcher and cache.
func NewFixer(d *dispatch.Dispatcher, s *session.Session) *Fixer {
	return &Fixer{disp: d, sess: s}
}

// Generate asks the backend for a corrected version of the finding's file.
// Files over the size guards are refused rather than truncated.
func (x *Fixer) Generate(ctx context.Context, f *review.Finding) (string, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", f.Path, err)
	}
	if info.Size() > MaxFixFileBytes {
		return "", fmt.Errorf("%s is too large for an AI fix (%d bytes)", f.Path, info.Size())
	}

	content, err := x.sess.Content(f.Path)
	if err != nil {
		return "", err
	}
	if content == "" || len(content) > MaxFixContentChars {
		return "", fmt.Errorf("%s content unsuitable for fix (%d chars)", f.Path, len(content))
	}

	feedback := f.Description
	if f.BackendFeedback != "" {
		feedback = f.BackendFeedback
	}
	system, user := backend.BuildFixPrompt(content, f.Path, feedback)
	resp, err := x.disp.Send(ctx, backend.ReviewRequest{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		return "", fmt.Errorf("generating fix: %w", err)
	}

	fixed := stripCodeFence(resp.Content)
	if strings.TrimSpace(fixed) == "" {
		return "", fmt.Errorf("backend returned an empty fix")
	}
	return fixed, nil
}

// Preview renders a unified diff between the current file content and the
// proposed fix.
func (x *Fixer) Preview(f *review.Finding) (string, error) {
	if f.Status != review.StatusAIFixProposed {
		return "", &ResolutionError{From: f.Status, Action: "preview a fix for"}
	}
	current, err := x.sess.Content(f.Path)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(current),
		B:        difflib.SplitLines(f.AppliedFix),
		FromFile: f.Path,
		ToFile:   f.Path + " (fixed)",
		Context:  3,
	})
}

// Apply writes the proposed fix to disk, taking a .backup copy first and
// invalidating the content cache. A write failure moves the finding to
// fix_failed with the proposal still attached.
func (x *Fixer) Apply(f *review.Finding) error {
	if f.Status != review.StatusAIFixProposed {
		return &ResolutionError{From: f.Status, Action: "apply a fix for"}
	}

	current, err := os.ReadFile(f.Path)
	if err != nil {
		markFixFailed(f, err)
		return fmt.Errorf("reading %s before fix: %w", f.Path, err)
	}
	backupPath := f.Path + ".backup"
	if err := os.WriteFile(backupPath, current, 0o644); err != nil {
		markFixFailed(f, err)
		return fmt.Errorf("writing backup %s: %w", backupPath, err)
	}

	if err := os.WriteFile(f.Path, []byte(f.AppliedFix), 0o644); err != nil {
		markFixFailed(f, err)
		return fmt.Errorf("writing fix to %s: %w", f.Path, err)
	}

	x.sess.Invalidate(f.Path)
	markFixed(f)
	slog.Info("AI fix applied", "path", f.Path, "backup", backupPath)
	return nil
}

// CleanupBackups removes .backup files under root older than a day.
func CleanupBackups(root string) {
	cutoff := time.Now().Add(-backupMaxAge)
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".backup") {
			return nil
		}
		info, err := d.Info()
		if err == nil && info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				slog.Debug("removed old backup", "path", path)
			}
		}
		return nil
	})
}

// stripCodeFence unwraps a response that is one fenced code block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}
