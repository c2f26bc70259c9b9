package scan

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// NumberedLine is a changed line with its 1-based position in the
// relevant side of the file (new side for additions, old side for removals).
type NumberedLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// HunkLine is one line of a hunk in file order. Op is "+", "-", or " ";
// Number is the 1-based position on the relevant side of the file (old
// side for removals, new side otherwise).
type HunkLine struct {
	Op     string `json:"op"`
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Hunk is one changed region of a file with a bounded window of
// unchanged context around each change. Lines preserves the hunk's
// interleaving; a hunk holding two changes keeps the context between
// them in place. Added, Removed, ContextBefore, and ContextAfter are
// views derived from Lines.
type Hunk struct {
	Header        string         `json:"header"`
	FunctionLabel string         `json:"functionLabel,omitempty"`
	OldStart      int            `json:"oldStart"`
	NewStart      int            `json:"newStart"`
	Lines         []HunkLine     `json:"lines"`
	Added         []NumberedLine `json:"added,omitempty"`
	Removed       []NumberedLine `json:"removed,omitempty"`
	ContextBefore []string       `json:"contextBefore,omitempty"`
	ContextAfter  []string       `json:"contextAfter,omitempty"`
}

// funcLabelPatterns extract an enclosing function or class name from the
// free-text portion of a hunk header, most specific first.
var funcLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^((?:async\s+)?def\s+\w+[^:]*|class\s+\w+[^:]*)`),
	regexp.MustCompile(`^((?:export\s+)?(?:async\s+)?(?:function\*?|const|let|var)\s+\w+[^{]*)`),
	regexp.MustCompile(`^(func\s+(?:\([^)]*\)\s+)?\w+[^{]*)`),
	regexp.MustCompile(`^((?:public|private|protected|static|final|virtual|override|abstract)\s+.*\w+\s*\([^)]*\))`),
	regexp.MustCompile(`^(\w[\w\s<>]*\w\s*\([^)]*\))`),
}

// functionLabel derives a label from the hunk header comment. A header
// that matches nothing usable degrades to an empty label, never an error.
func functionLabel(comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ""
	}
	for _, re := range funcLabelPatterns {
		if m := re.FindStringSubmatch(comment); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	if len(comment) > 2 {
		return comment
	}
	return ""
}

// Diff parses unified-diff text into one WorkUnit per changed file.
// Deleted and binary files are skipped. Input that cannot be parsed at
// all fails with a ScanError.
func Diff(diffText string, opts Options) ([]WorkUnit, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diffText))
	if err != nil {
		return nil, &ScanError{Source: "diff input", Err: err}
	}

	var units []WorkUnit
	for _, f := range files {
		if f.IsDelete || f.IsBinary {
			continue
		}
		name := f.NewName
		if name == "" {
			name = f.OldName
		}
		if name == "" {
			continue
		}

		var hunks []Hunk
		for _, frag := range f.TextFragments {
			hunks = append(hunks, buildHunk(frag, opts.ContextLines))
		}
		if len(hunks) == 0 {
			continue
		}

		content := renderHunks(hunks)
		unit := WorkUnit{
			Path:            name,
			DisplayName:     filepath.ToSlash(name),
			Content:         content,
			Language:        LanguageFor(name),
			IsDiff:          true,
			Hunks:           hunks,
			EstimatedTokens: EstimateTokens(content),
		}
		if len(hunks) == 1 {
			unit.FunctionContext = hunks[0].FunctionLabel
		}
		units = append(units, unit)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].DisplayName < units[j].DisplayName })
	return units, nil
}

// buildHunk converts a gitdiff fragment into an ordered line list,
// numbering changed lines and bounding each unchanged run to contextLines
// around the changes it borders.
func buildHunk(frag *gitdiff.TextFragment, contextLines int) Hunk {
	h := Hunk{
		Header:        fragmentHeader(frag),
		FunctionLabel: functionLabel(frag.Comment),
		OldStart:      int(frag.OldPosition),
		NewStart:      int(frag.NewPosition),
	}

	oldLine := int(frag.OldPosition)
	newLine := int(frag.NewPosition)
	var lines []HunkLine
	for _, line := range frag.Lines {
		text := strings.TrimRight(line.Line, "\n")
		switch line.Op {
		case gitdiff.OpAdd:
			lines = append(lines, HunkLine{Op: "+", Number: newLine, Text: text})
			newLine++
		case gitdiff.OpDelete:
			lines = append(lines, HunkLine{Op: "-", Number: oldLine, Text: text})
			oldLine++
		case gitdiff.OpContext:
			lines = append(lines, HunkLine{Op: " ", Number: newLine, Text: text})
			oldLine++
			newLine++
		}
	}
	h.Lines = trimContext(lines, contextLines)

	for _, l := range h.Lines {
		switch l.Op {
		case "+":
			h.Added = append(h.Added, NumberedLine{Number: l.Number, Text: l.Text})
		case "-":
			h.Removed = append(h.Removed, NumberedLine{Number: l.Number, Text: l.Text})
		}
	}
	i := 0
	for i < len(h.Lines) && h.Lines[i].Op == " " {
		h.ContextBefore = append(h.ContextBefore, h.Lines[i].Text)
		i++
	}
	j := len(h.Lines)
	for j > i && h.Lines[j-1].Op == " " {
		j--
	}
	for _, l := range h.Lines[j:] {
		h.ContextAfter = append(h.ContextAfter, l.Text)
	}
	return h
}

// trimContext bounds each unchanged run: a leading run keeps its last n
// lines, a trailing run its first n, and a run between two changes keeps
// n from each end. Changed lines always survive, in place.
func trimContext(lines []HunkLine, n int) []HunkLine {
	var out, run []HunkLine
	seenChange := false
	flush := func(trailing bool) {
		switch {
		case !seenChange:
			if len(run) > n {
				run = run[len(run)-n:]
			}
		case trailing:
			if len(run) > n {
				run = run[:n]
			}
		default:
			if len(run) > 2*n {
				run = append(run[:n:n], run[len(run)-n:]...)
			}
		}
		out = append(out, run...)
		run = nil
	}
	for _, l := range lines {
		if l.Op == " " {
			run = append(run, l)
			continue
		}
		flush(false)
		seenChange = true
		out = append(out, l)
	}
	flush(true)
	return out
}

func fragmentHeader(frag *gitdiff.TextFragment) string {
	var b strings.Builder
	b.WriteString("@@ -")
	writeRange(&b, frag.OldPosition, frag.OldLines)
	b.WriteString(" +")
	writeRange(&b, frag.NewPosition, frag.NewLines)
	b.WriteString(" @@")
	if frag.Comment != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(frag.Comment))
	}
	return b.String()
}

func writeRange(b *strings.Builder, pos, lines int64) {
	b.WriteString(strconv.FormatInt(pos, 10))
	if lines != 1 {
		b.WriteString(",")
		b.WriteString(strconv.FormatInt(lines, 10))
	}
}

// renderHunks produces the WorkUnit content snapshot: each hunk's header
// followed by its lines in file order with diff markers.
func renderHunks(hunks []Hunk) string {
	var b strings.Builder
	for i, h := range hunks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(h.Header)
		b.WriteString("\n")
		for _, l := range h.Lines {
			b.WriteString(l.Op + l.Text + "\n")
		}
	}
	return b.String()
}
