package review

import (
	"testing"
)

func TestSeverityRank(t *testing.T) {
	order := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if SeverityRank(order[i]) <= SeverityRank(order[i-1]) {
			t.Errorf("rank(%s) should exceed rank(%s)", order[i], order[i-1])
		}
	}
	if SeverityRank("bogus") != 0 {
		t.Errorf("unknown severity should rank 0, got %d", SeverityRank("bogus"))
	}
}

func TestMeetsThreshold(t *testing.T) {
	tests := []struct {
		severity  Severity
		threshold string
		want      bool
	}{
		{SeverityCritical, "high", true},
		{SeverityHigh, "high", true},
		{SeverityMedium, "high", false},
		{SeverityInfo, "info", true},
		{SeverityCritical, "none", false},
		{SeverityCritical, "", false},
	}
	for _, tt := range tests {
		if got := MeetsThreshold(tt.severity, tt.threshold); got != tt.want {
			t.Errorf("MeetsThreshold(%s, %q) = %v, want %v", tt.severity, tt.threshold, got, tt.want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	f := Finding{Path: "app.py", Line: 42, Severity: SeverityHigh, Title: "Unchecked error"}

	id1 := GenerateID(f)
	id2 := GenerateID(f)
	if id1 != id2 {
		t.Errorf("same finding produced different IDs: %s vs %s", id1, id2)
	}
	if len(id1) != 16 {
		t.Errorf("ID length = %d, want 16", len(id1))
	}

	f.Line = 43
	if GenerateID(f) == id1 {
		t.Error("different line should produce a different ID")
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		want     int
	}{
		{"clean", nil, 100},
		{"one critical", []Finding{{Severity: SeverityCritical, Status: StatusPending}}, 80},
		{"mixed severities", []Finding{
			{Severity: SeverityHigh, Status: StatusPending},
			{Severity: SeverityMedium, Status: StatusPending},
			{Severity: SeverityInfo, Status: StatusPending},
		}, 84},
		{"resolved excluded", []Finding{
			{Severity: SeverityCritical, Status: StatusResolved},
			{Severity: SeverityCritical, Status: StatusIgnored},
			{Severity: SeverityCritical, Status: StatusAIFixed},
			{Severity: SeverityLow, Status: StatusPending},
		}, 98},
		{"floor at zero", []Finding{
			{Severity: SeverityCritical, Status: StatusPending},
			{Severity: SeverityCritical, Status: StatusPending},
			{Severity: SeverityCritical, Status: StatusPending},
			{Severity: SeverityCritical, Status: StatusPending},
			{Severity: SeverityCritical, Status: StatusPending},
			{Severity: SeverityCritical, Status: StatusFixFailed},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QualityScore(tt.findings); got != tt.want {
				t.Errorf("QualityScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeSummary(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh, Status: StatusPending},
		{Severity: SeverityHigh, Status: StatusPending},
		{Severity: SeverityLow, Status: StatusPending},
	}
	s := ComputeSummary(findings)

	if s.Counts.High != 2 || s.Counts.Low != 1 {
		t.Errorf("counts = %+v", s.Counts)
	}
	if s.Counts.Total() != 3 {
		t.Errorf("Total() = %d, want 3", s.Counts.Total())
	}
	if s.HighestSeverity != SeverityHigh {
		t.Errorf("HighestSeverity = %s, want high", s.HighestSeverity)
	}
	if s.QualityScore != 78 {
		t.Errorf("QualityScore = %d, want 78", s.QualityScore)
	}
}

func TestDeduplicateFindings(t *testing.T) {
	a := Finding{ID: "aaa", Title: "first"}
	b := Finding{ID: "bbb", Title: "second"}
	dupe := Finding{ID: "aaa", Title: "first again"}

	got := DeduplicateFindings([]Finding{a, b, dupe})
	if len(got) != 2 {
		t.Fatalf("got %d findings, want 2", len(got))
	}
	if got[0].Title != "first" {
		t.Error("dedupe should keep the first occurrence")
	}
}

func TestSortFindings(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityLow, Path: "b.py", Line: 1},
		{Severity: SeverityCritical, Path: "z.py", Line: 9},
		{Severity: SeverityLow, Path: "a.py", Line: 5},
		{Severity: SeverityLow, Path: "a.py", Line: 2},
	}
	SortFindings(findings)

	if findings[0].Severity != SeverityCritical {
		t.Errorf("critical should sort first, got %s", findings[0].Severity)
	}
	if findings[1].Path != "a.py" || findings[1].Line != 2 {
		t.Errorf("ties should break by path then line, got %s:%d", findings[1].Path, findings[1].Line)
	}
	if findings[2].Path != "a.py" || findings[2].Line != 5 {
		t.Errorf("line order wrong: %s:%d", findings[2].Path, findings[2].Line)
	}
}
