package parse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gavel-review/gavel/internal/review"
	"github.com/gavel-review/gavel/internal/scan"
)

// rawResponse is the JSON schema backends are instructed to return.
type rawResponse struct {
	Files []rawFile `json:"files"`
}

type rawFile struct {
	Filename string       `json:"filename"`
	Findings []rawFinding `json:"findings"`
}

type rawFinding struct {
	Severity    string `json:"severity"`
	Line        int    `json:"line"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CodeContext string `json:"code_context"`
	Suggestion  string `json:"suggestion"`
	CWE         string `json:"cwe"`
}

// Result carries the findings extracted from one backend response plus the
// name of the strategy that produced them.
type Result struct {
	Findings []review.Finding
	Strategy string
	Warnings []string
}

// strategy attempts one extraction approach. A nil finding slice means the
// strategy does not apply; the chain moves on.
type strategy struct {
	name string
	fn   func(content string, units []scan.WorkUnit) []review.Finding
}

// Response extracts findings from raw backend output for the given batch.
// Strategies run strictest first; the first to produce findings wins. If
// none apply, every unit gets one generic finding so the response is never
// silently dropped.
func Response(content string, units []scan.WorkUnit) Result {
	res := Result{}
	chain := []strategy{
		{"json", parseWholeJSON},
		{"fenced-json", parseFencedJSON},
		{"delimited", parseDelimited},
		{"heuristic", parseHeuristic},
	}
	for _, s := range chain {
		if findings := s.fn(content, units); len(findings) > 0 {
			res.Findings = findings
			res.Strategy = s.name
			break
		}
	}
	if res.Findings == nil {
		slog.Warn("all parsing strategies failed, creating generic findings",
			"units", len(units), "response_length", len(content))
		res.Findings = fallbackFindings(content, units)
		res.Strategy = "fallback"
	}

	res.Findings, res.Warnings = normalize(res.Findings)
	res.Findings = Deduplicate(res.Findings)
	for i := range res.Findings {
		res.Findings[i].ID = review.GenerateID(res.Findings[i])
		res.Findings[i].Status = review.StatusPending
	}
	// Findings keep the winning strategy's order; aggregate-level sorting
	// is the caller's concern.
	return res
}

// parseWholeJSON tries the entire response as a schema document, after
// stripping a surrounding code fence if the whole response is one.
func parseWholeJSON(content string, units []scan.WorkUnit) []review.Finding {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) >= 2 {
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end--
			}
			text = strings.Join(lines[1:end], "\n")
		}
	}
	return decodeSchema(text, units)
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// parseFencedJSON pulls fenced blocks out of surrounding prose and tries
// them longest first, on the assumption the largest block is the payload.
func parseFencedJSON(content string, units []scan.WorkUnit) []review.Finding {
	matches := fencedBlockRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	sort.SliceStable(blocks, func(i, j int) bool { return len(blocks[i]) > len(blocks[j]) })
	for _, block := range blocks {
		if findings := decodeSchema(block, units); len(findings) > 0 {
			return findings
		}
	}
	return nil
}

// decodeSchema unmarshals schema-shaped JSON into findings. Accepts either
// the files wrapper or a bare findings array attributed to a lone unit.
func decodeSchema(text string, units []scan.WorkUnit) []review.Finding {
	text = strings.TrimSpace(text)
	var doc rawResponse
	if err := json.Unmarshal([]byte(text), &doc); err == nil && len(doc.Files) > 0 {
		var findings []review.Finding
		for _, f := range doc.Files {
			for _, r := range f.Findings {
				findings = append(findings, fromRaw(r, f.Filename))
			}
		}
		return findings
	}

	var bare []rawFinding
	if err := json.Unmarshal([]byte(text), &bare); err == nil && len(bare) > 0 {
		path := ""
		if len(units) == 1 {
			path = units[0].DisplayName
		}
		var findings []review.Finding
		for _, r := range bare {
			findings = append(findings, fromRaw(r, path))
		}
		return findings
	}
	return nil
}

func fromRaw(r rawFinding, path string) review.Finding {
	title := r.Title
	if title == "" {
		title = firstSentence(r.Description)
	}
	return review.Finding{
		Severity:    review.Severity(r.Severity),
		Category:    review.Category(strings.ToLower(r.Category)),
		Title:       title,
		Description: r.Description,
		Path:        path,
		Line:        r.Line,
		CodeSnippet: r.CodeContext,
		Suggestion:  r.Suggestion,
		CWE:         r.CWE,
	}
}

var (
	fileDelimRe    = regexp.MustCompile(`(?m)^===\s*FILE:\s*(.+?)\s*===\s*$`)
	findingDelimRe = regexp.MustCompile(`(?m)^---\s*FINDING\s*\[([^\]]+)\]\s*---\s*$`)
)

// parseDelimited handles the legacy plain-text format of === FILE: === and
// --- FINDING [severity] --- sections.
func parseDelimited(content string, units []scan.WorkUnit) []review.Finding {
	fileMatches := fileDelimRe.FindAllStringSubmatchIndex(content, -1)
	if len(fileMatches) == 0 {
		return nil
	}
	var findings []review.Finding
	for i, fm := range fileMatches {
		filename := strings.TrimSpace(content[fm[2]:fm[3]])
		sectionEnd := len(content)
		if i+1 < len(fileMatches) {
			sectionEnd = fileMatches[i+1][0]
		}
		section := content[fm[1]:sectionEnd]

		findingMatches := findingDelimRe.FindAllStringSubmatchIndex(section, -1)
		for j, fd := range findingMatches {
			sev := section[fd[2]:fd[3]]
			bodyEnd := len(section)
			if j+1 < len(findingMatches) {
				bodyEnd = findingMatches[j+1][0]
			}
			body := strings.TrimSpace(section[fd[1]:bodyEnd])
			if body == "" {
				continue
			}
			findings = append(findings, review.Finding{
				Severity:    review.Severity(sev),
				Title:       firstSentence(body),
				Description: body,
				Path:        filename,
				Line:        extractLine(body),
			})
		}
	}
	return findings
}

// severityLineRe matches a severity keyword leading a line: "HIGH: ...",
// "- critical ...", "2. [medium] ...".
var severityLineRe = regexp.MustCompile(`(?i)^\s*(?:[-*]|\d+[.)])?\s*\[?(critical|crit|blocker|high|severe|major|medium|moderate|low|minor|trivial|info|note|suggestion)\]?\s*[:\-–]\s*(.+)$`)

// parseHeuristic scans line by line for severity-prefixed items, grouping
// contiguous non-matching lines into the preceding finding's description.
func parseHeuristic(content string, units []scan.WorkUnit) []review.Finding {
	path := ""
	if len(units) == 1 {
		path = units[0].DisplayName
	}

	var findings []review.Finding
	var cur *review.Finding
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Description) != "" {
			cur.Description = strings.TrimSpace(cur.Description)
			cur.Line = extractLine(cur.Description)
			findings = append(findings, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if m := severityLineRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &review.Finding{
				Severity:    review.Severity(strings.ToLower(m[1])),
				Title:       firstSentence(m[2]),
				Description: m[2],
				Path:        path,
			}
			continue
		}
		if cur != nil {
			if strings.TrimSpace(line) == "" {
				flush()
			} else {
				cur.Description += "\n" + line
			}
		}
	}
	flush()
	return findings
}

// fallbackFindings preserves an unparseable response as one generic finding
// per unit, carrying the raw output as backend feedback.
func fallbackFindings(content string, units []scan.WorkUnit) []review.Finding {
	feedback := strings.TrimSpace(content)
	const maxFeedback = 4000
	if len(feedback) > maxFeedback {
		feedback = feedback[:maxFeedback] + "\n... (truncated)"
	}
	var findings []review.Finding
	for _, u := range units {
		findings = append(findings, review.Finding{
			Severity:        review.SeverityMedium,
			Title:           "Review output could not be parsed",
			Description:     "The backend returned output in an unrecognized format. The raw response is preserved below for manual inspection.",
			Path:            u.DisplayName,
			BackendFeedback: feedback,
		})
	}
	return findings
}

// normalize maps severities onto the canonical set, warning once per
// distinct unknown value.
func normalize(findings []review.Finding) ([]review.Finding, []string) {
	var warnings []string
	warned := make(map[string]bool)
	for i := range findings {
		sev, ok := NormalizeSeverity(string(findings[i].Severity))
		if !ok && !warned[string(findings[i].Severity)] {
			warned[string(findings[i].Severity)] = true
			msg := fmt.Sprintf("unknown severity %q, defaulting to medium", findings[i].Severity)
			warnings = append(warnings, msg)
			slog.Warn("normalizing unknown severity", "value", string(findings[i].Severity))
		}
		findings[i].Severity = sev
	}
	return findings, warnings
}

var lineRefRe = regexp.MustCompile(`(?i)(?:line\s+|\bL\s*|:)(\d+)(?::|\b)`)

// extractLine pulls a line-number reference like "line 42", "L42" or
// "path.py:42:" out of free text. Zero means no reference found.
func extractLine(text string) int {
	m := lineRefRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".\n"); i > 0 {
		text = text[:i]
	}
	const maxTitle = 120
	if len(text) > maxTitle {
		text = text[:maxTitle]
	}
	return text
}
