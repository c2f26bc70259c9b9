package vcs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// System identifies the version control system managing a directory.
type System string

const (
	Git  System = "git"
	SVN  System = "svn"
	None System = ""
)

// DiffOptions controls diff collection.
type DiffOptions struct {
	// Range is a revision range in git A..B form, or empty for
	// uncommitted working-copy changes.
	Range string
	// ContextLines sets the unchanged context around each hunk.
	ContextLines int
	// Staged restricts a git diff to the index. Ignored for svn.
	Staged bool
}

// Detect walks up from dir looking for a repository marker and returns the
// system and its root. A directory under neither returns None.
func Detect(dir string) (System, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return None, "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return Git, cur, nil
		}
		if _, err := os.Stat(filepath.Join(cur, ".svn")); err == nil {
			return SVN, cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return None, "", nil
		}
		cur = parent
	}
}

// Diff returns unified-diff text for the working copy at dir.
func Diff(dir string, opts DiffOptions) (string, error) {
	sys, root, err := Detect(dir)
	if err != nil {
		return "", err
	}
	switch sys {
	case Git:
		return gitDiff(root, opts)
	case SVN:
		return svnDiff(root, opts)
	default:
		return "", fmt.Errorf("%s is not inside a git or svn working copy", dir)
	}
}

// CommitMessages returns the log messages for a revision range, newest
// first, for inclusion as review context. Empty range means no messages.
func CommitMessages(dir, revRange string) ([]string, error) {
	if revRange == "" {
		return nil, nil
	}
	sys, root, err := Detect(dir)
	if err != nil {
		return nil, err
	}
	switch sys {
	case Git:
		out, err := run(root, "git", "log", "--format=%h %s", revRange)
		if err != nil {
			return nil, fmt.Errorf("git log %s: %w", revRange, err)
		}
		return splitLines(out), nil
	case SVN:
		out, err := run(root, "svn", "log", "-r", svnRange(revRange))
		if err != nil {
			return nil, fmt.Errorf("svn log %s: %w", revRange, err)
		}
		return parseSVNLog(out), nil
	default:
		return nil, fmt.Errorf("%s is not inside a git or svn working copy", dir)
	}
}

func gitDiff(root string, opts DiffOptions) (string, error) {
	args := []string{"diff"}
	if opts.Staged {
		args = append(args, "--cached")
	}
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	if opts.Range != "" {
		args = append(args, opts.Range)
	}
	out, err := run(root, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

func svnDiff(root string, opts DiffOptions) (string, error) {
	args := []string{"diff"}
	if opts.ContextLines > 0 {
		args = append(args, "-x", fmt.Sprintf("-U%d", opts.ContextLines))
	}
	if opts.Range != "" {
		args = append(args, "-r", svnRange(opts.Range))
	}
	out, err := run(root, "svn", args...)
	if err != nil {
		return "", fmt.Errorf("svn %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// svnRange translates git's A..B range form to svn's A:B. A bare revision
// passes through unchanged.
func svnRange(revRange string) string {
	if i := strings.Index(revRange, ".."); i >= 0 {
		left := revRange[:i]
		right := strings.TrimPrefix(revRange[i+2:], ".")
		if left == "" {
			left = "BASE"
		}
		if right == "" {
			right = "HEAD"
		}
		return left + ":" + right
	}
	return revRange
}

// parseSVNLog extracts the message body lines from svn's dashed log format.
func parseSVNLog(out string) []string {
	var msgs []string
	var cur []string
	inEntry := false
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "----") {
			if inEntry && len(cur) > 0 {
				msgs = append(msgs, strings.TrimSpace(strings.Join(cur, "\n")))
			}
			cur = nil
			inEntry = false
			continue
		}
		if !inEntry && strings.HasPrefix(line, "r") && strings.Contains(line, "|") {
			inEntry = true
			continue
		}
		if inEntry {
			cur = append(cur, line)
		}
	}
	if inEntry && len(cur) > 0 {
		msgs = append(msgs, strings.TrimSpace(strings.Join(cur, "\n")))
	}
	return msgs
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func run(dir, bin string, args ...string) (string, error) {
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
