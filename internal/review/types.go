package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// MeetsThreshold returns true if severity is at or above the threshold.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	return SeverityRank(s) >= SeverityRank(Severity(threshold))
}

// Status tracks where a finding sits in its resolution lifecycle.
type Status string

const (
	StatusPending       Status = "pending"
	StatusResolved      Status = "resolved"
	StatusIgnored       Status = "ignored"
	StatusSkipped       Status = "skipped"
	StatusAIFixProposed Status = "ai_fix_proposed"
	StatusAIFixed       Status = "ai_fixed"
	StatusFixFailed     Status = "fix_failed"
)

// Category represents the type of finding.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
	CategoryDocs            Category = "docs"
	CategoryErrorHandling   Category = "error_handling"
	CategoryConcurrency     Category = "concurrency"
)

// Finding represents a single code review finding and its resolution state.
type Finding struct {
	ID              string     `json:"id"`
	Severity        Severity   `json:"severity"`
	Category        Category   `json:"category,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Path            string     `json:"path"`
	Line            int        `json:"line,omitempty"`
	CodeSnippet     string     `json:"codeSnippet,omitempty"`
	Suggestion      string     `json:"suggestion,omitempty"`
	BackendFeedback string     `json:"backendFeedback,omitempty"`
	CWE             string     `json:"cwe,omitempty"`
	Status          Status     `json:"status"`
	IgnoreReason    string     `json:"ignoreReason,omitempty"`
	ForceResolved   bool       `json:"forceResolved,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	AppliedFix      string     `json:"appliedFix,omitempty"`
	RelatedIDs      []string   `json:"relatedIds,omitempty"`
	Interactions    []string   `json:"interactions,omitempty"`
}

// GenerateID derives a stable identifier from a finding's invariant fields,
// so the same issue keeps the same ID across runs.
func GenerateID(f Finding) string {
	data := fmt.Sprintf("%s|%d|%s|%s", f.Path, f.Line, f.Severity, f.Title)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])[:16]
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the sum across all severities.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Summary provides an overview of findings.
type Summary struct {
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
	QualityScore    int            `json:"qualityScore"`
}

// InputInfo describes what was reviewed.
type InputInfo struct {
	Mode        string   `json:"mode"`
	Root        string   `json:"root,omitempty"`
	Range       string   `json:"range,omitempty"`
	ReviewTypes []string `json:"reviewTypes,omitempty"`
	Files       []string `json:"files,omitempty"`
}

// UsageStats mirrors the session counters at the end of a run.
type UsageStats struct {
	APICalls       int   `json:"apiCalls"`
	TokensSent     int64 `json:"tokensSent"`
	TokensReceived int64 `json:"tokensReceived"`
	BatchesOK      int   `json:"batchesOk"`
	BatchesFailed  int   `json:"batchesFailed"`
}

// SkippedUnit records a work unit that could not be reviewed and why.
type SkippedUnit struct {
	Path  string `json:"path"`
	Cause string `json:"cause"`
}

// Report is the top-level output structure. It round-trips through JSON
// without loss so a saved report can seed a later resolution session.
type Report struct {
	Tool      string        `json:"tool"`
	Version   string        `json:"version"`
	RunID     string        `json:"runId"`
	CreatedAt time.Time     `json:"createdAt"`
	Inputs    InputInfo     `json:"inputs"`
	Summary   Summary       `json:"summary"`
	Findings  []Finding     `json:"findings"`
	Skipped   []SkippedUnit `json:"skipped,omitempty"`
	Usage     UsageStats    `json:"usage"`
}

// qualityDeductions is the per-finding score cost by severity.
var qualityDeductions = map[Severity]int{
	SeverityCritical: 20,
	SeverityHigh:     10,
	SeverityMedium:   5,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// QualityScore rates the reviewed code from 0 to 100 based on open findings.
// Resolved, ignored, and fixed findings no longer count against the score.
func QualityScore(findings []Finding) int {
	score := 100
	for _, f := range findings {
		switch f.Status {
		case StatusResolved, StatusIgnored, StatusAIFixed:
			continue
		}
		score -= qualityDeductions[f.Severity]
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ComputeSummary calculates the summary from findings.
func ComputeSummary(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Counts.Critical++
		case SeverityHigh:
			s.Counts.High++
		case SeverityMedium:
			s.Counts.Medium++
		case SeverityLow:
			s.Counts.Low++
		case SeverityInfo:
			s.Counts.Info++
		}
		if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = f.Severity
		}
	}
	s.QualityScore = QualityScore(findings)
	return s
}

// DeduplicateFindings removes duplicate findings by ID, keeping first seen.
func DeduplicateFindings(findings []Finding) []Finding {
	seen := make(map[string]bool)
	var result []Finding
	for _, f := range findings {
		if !seen[f.ID] {
			seen[f.ID] = true
			result = append(result, f)
		}
	}
	return result
}

// SortFindings sorts by severity (critical first), then path, then line.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		ri := SeverityRank(findings[i].Severity)
		rj := SeverityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		return findings[i].Line < findings[j].Line
	})
}
