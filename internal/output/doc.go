// Package output formats review reports for display or machine consumption.
//
// Three formats are supported:
//   - text     — human-readable terminal output (default)
//   - json     — full structured JSON report; round-trips without loss so a
//     saved report can seed a later resolution session
//   - markdown — PR-comment-friendly with collapsible sections per severity
//
// Use [GetWriter] to obtain a [Writer] for a given format string, or call
// [WriteReport] to write straight to a file path or stdout.
package output
