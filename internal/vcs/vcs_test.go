package vcs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	sys, _, err := Detect(nested)
	if err != nil {
		t.Fatal(err)
	}
	if sys != None {
		t.Errorf("Detect before marker = %q, want None", sys)
	}

	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sys, gotRoot, err := Detect(nested)
	if err != nil {
		t.Fatal(err)
	}
	if sys != Git {
		t.Errorf("Detect = %q, want git", sys)
	}
	if gotRoot != root {
		t.Errorf("root = %q, want %q", gotRoot, root)
	}
}

func TestDetect_SVN(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".svn"), 0o755); err != nil {
		t.Fatal(err)
	}
	sys, _, err := Detect(root)
	if err != nil {
		t.Fatal(err)
	}
	if sys != SVN {
		t.Errorf("Detect = %q, want svn", sys)
	}
}

func TestSVNRange(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100..200", "100:200"},
		{"100...200", "100:200"},
		{"..HEAD", "BASE:HEAD"},
		{"100..", "100:HEAD"},
		{"42", "42"},
	}
	for _, tt := range tests {
		if got := svnRange(tt.in); got != tt.want {
			t.Errorf("svnRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSVNLog(t *testing.T) {
	out := `------------------------------------------------------------------------
r102 | alice | 2024-03-01 10:00:00 +0000 (Fri, 01 Mar 2024) | 1 line

Fix null check in order handler
------------------------------------------------------------------------
r101 | bob | 2024-02-28 09:00:00 +0000 (Thu, 28 Feb 2024) | 2 lines

Add retry to payment client
with backoff
------------------------------------------------------------------------
`
	msgs := parseSVNLog(out)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(msgs), msgs)
	}
	if msgs[0] != "Fix null check in order handler" {
		t.Errorf("msgs[0] = %q", msgs[0])
	}
	if msgs[1] != "Add retry to payment client\nwith backoff" {
		t.Errorf("msgs[1] = %q", msgs[1])
	}
}

func TestDiff_OutsideRepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := Diff(dir, DiffOptions{}); err == nil {
		t.Fatal("expected error outside a working copy")
	}
}
