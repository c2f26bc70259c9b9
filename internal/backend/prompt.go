package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gavel-review/gavel/internal/redact"
	"github.com/gavel-review/gavel/internal/scan"
)

// jsonSchemaInstruction is appended to every review system prompt so models
// return findings the parser can consume directly.
const jsonSchemaInstruction = `

IMPORTANT - OUTPUT FORMAT:
You MUST respond with valid JSON matching this schema. Do NOT include
markdown code fences, preamble, or any text outside the JSON object.

{
  "files": [
    {
      "filename": "<path>",
      "findings": [
        {
          "severity": "critical|high|medium|low|info",
          "line": <int or null>,
          "category": "<review category>",
          "title": "<short title>",
          "description": "<detailed description>",
          "code_context": "<relevant code snippet>",
          "suggestion": "<how to fix>",
          "cwe": "<CWE id if applicable>"
        }
      ]
    }
  ]
}

Rules:
- Return ONLY the JSON object. No markdown, no fences, no extra text.
- "severity" MUST be one of: critical, high, medium, low, info.
- "line" is the 1-based line number (null if file-level).
- Include ALL findings you discover, one entry per distinct issue.`

// reviewPersonas maps each review type to its system-prompt persona.
var reviewPersonas = map[string]string{
	"security": "You are a Senior Security Auditor with deep expertise in OWASP, CWE, and CVE databases. " +
		"Focus on critical vulnerabilities: injection attacks (SQL, OS command, LDAP), XSS, CSRF, " +
		"authentication and authorization flaws, insecure deserialization, sensitive data exposure, " +
		"insecure configurations, and cryptographic weaknesses. " +
		"Provide specific remediation steps with severity levels.",
	"performance": "You are a Performance Engineer specializing in profiling, algorithmic efficiency, " +
		"and resource optimization. Identify quadratic-or-worse algorithms that can be improved, " +
		"unnecessary memory allocations, N+1 query patterns, missing caching opportunities, " +
		"blocking I/O in hot paths, and inefficient data structures. " +
		"Provide actionable optimizations with estimated impact.",
	"best_practices": "You are a Lead Developer and Clean Code advocate. Review for SOLID principles, " +
		"DRY violations, proper encapsulation, appropriate design patterns, consistent " +
		"naming conventions, idiomatic language usage, and code organization. " +
		"Reference specific principles or patterns when identifying issues.",
	"maintainability": "You are a Code Maintenance Expert. Analyze readability, cognitive complexity, " +
		"coupling and cohesion, dead code, duplicated logic, overly long functions, " +
		"and technical debt. Suggest refactoring opportunities that improve long-term " +
		"maintenance without changing behavior.",
	"documentation": "You are a Technical Writer and Documentation Specialist. Review inline comments, " +
		"docstrings and API documentation completeness, misleading or outdated comments, " +
		"and missing documentation for public interfaces.",
	"testing": "You are a QA Engineer and Test Architect. Analyze testability, missing test " +
		"coverage, inadequate assertions, brittle tests, missing edge cases, and untested " +
		"error paths. Identify code that is hard to test and suggest refactoring for testability.",
	"error_handling": "You are a Reliability Engineer. Analyze error handling completeness, swallowed " +
		"errors, insufficient error context, missing input validation at boundaries, and " +
		"missing retry logic for transient failures. Suggest resilience improvements.",
	"complexity": "You are a Code Analyst specializing in complexity metrics. Evaluate cyclomatic " +
		"complexity, nesting depth, function and type size, parameter counts, and coupling. " +
		"Suggest concrete simplifications and decompositions.",
	"architecture": "You are a Software Architect. Review code structure, layer separation, " +
		"dependency direction, module boundaries, and interface design. " +
		"Identify architectural smells and propose improvements.",
	"concurrency": "You are a Concurrency and Parallelism Expert. Analyze thread safety, " +
		"race conditions, deadlock potential, improper synchronization, shared " +
		"mutable state, and resource contention. Suggest correct synchronization strategies.",
	"dependency": "You are a Dependency Management Expert. Analyze imported libraries for known " +
		"vulnerabilities, outdated versions, unnecessary dependencies, license risks, and " +
		"heavy transitive trees. Recommend safer or lighter alternatives.",
	"scalability": "You are a System Architect specializing in distributed systems. Analyze " +
		"scalability bottlenecks, stateful components that hinder horizontal scaling, " +
		"unbounded queues, missing circuit breakers, and missing rate limiting.",
	"data_validation": "You are a Data Validation Expert. Analyze input validation completeness, " +
		"missing sanitization, type coercion risks, boundary checks, and injection vectors " +
		"through unvalidated input. Suggest validation strategies.",
}

// DefaultReviewType is used when no type is configured.
const DefaultReviewType = "best_practices"

// ReviewTypes returns the selectable review type keys, sorted.
func ReviewTypes() []string {
	keys := make([]string, 0, len(reviewPersonas))
	for k := range reviewPersonas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidReviewType reports whether every +-separated component is known.
func ValidReviewType(reviewType string) bool {
	for _, rt := range strings.Split(reviewType, "+") {
		if _, ok := reviewPersonas[rt]; !ok {
			return false
		}
	}
	return reviewType != ""
}

// SystemPrompt builds the system prompt for a review type. A +-combined
// type like "security+performance" merges the personas of every component;
// unknown types fall back to best_practices.
func SystemPrompt(reviewType string) string {
	var base string
	if strings.Contains(reviewType, "+") {
		var sections []string
		for _, rt := range strings.Split(reviewType, "+") {
			if p, ok := reviewPersonas[rt]; ok {
				sections = append(sections, fmt.Sprintf("[%s]: %s", strings.ToUpper(rt), p))
			}
		}
		if len(sections) > 0 {
			base = "You are a multi-disciplinary code review expert. " +
				"Perform a combined review covering ALL of the following areas. " +
				"Tag each finding with its category.\n\n" + strings.Join(sections, "\n\n")
		}
	} else {
		base = reviewPersonas[reviewType]
	}
	if base == "" {
		base = reviewPersonas[DefaultReviewType]
	}
	return base + jsonSchemaInstruction
}

// BuildBatchPrompt assembles the user prompt for a batch of work units.
// Each unit is delimited so findings can be attributed back by filename.
// Content is scrubbed for secrets before it leaves the process.
func BuildBatchPrompt(units []scan.WorkUnit, commitMessages []string) string {
	var b strings.Builder
	if len(units) == 1 {
		b.WriteString("Review the following code.\n")
	} else {
		fmt.Fprintf(&b, "Review the following %d files. Report findings per file using the exact filenames given.\n", len(units))
	}

	if len(commitMessages) > 0 {
		b.WriteString("\nRecent commit messages for context:\n")
		for _, m := range commitMessages {
			b.WriteString("- " + m + "\n")
		}
	}

	for _, u := range units {
		fmt.Fprintf(&b, "\n=== FILE: %s ===\n", u.DisplayName)
		if u.Language != "" {
			fmt.Fprintf(&b, "Language: %s\n", u.Language)
		}
		if u.IsDiff {
			b.WriteString("This is a diff. Review only the changed lines; context lines are for orientation.\n")
			if u.FunctionContext != "" {
				fmt.Fprintf(&b, "Enclosing context: %s\n", u.FunctionContext)
			}
		}
		b.WriteString("\n")
		content := redact.Content(u.Content, u.Path, redact.DefaultPathPatterns)
		b.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// fixSystemPrompt instructs the model to return corrected code only.
const fixSystemPrompt = "You are an expert code fixer. Fix the code issues identified. " +
	"Return ONLY the complete corrected code, no explanations or markdown."

// BuildFixPrompt assembles the request for an AI-generated fix of one finding.
func BuildFixPrompt(content, path, feedback string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\n", path)
	b.WriteString("Issue to fix:\n")
	b.WriteString(feedback)
	b.WriteString("\n\nOriginal code:\n")
	b.WriteString(content)
	return fixSystemPrompt, b.String()
}
