// Gavel is a CLI for reviewing code with an AI backend.
//
// It scans a project tree or a version-control change set, batches the work
// into rate-limited backend requests, parses the responses into structured
// findings, and walks the user through resolving them — including
// AI-generated fixes with diff previews and backups.
//
// Usage:
//
//	gavel review project [path]           # review all source files
//	gavel review diff                     # review uncommitted changes
//	gavel review diff origin/main..HEAD   # review a revision range
//	gavel review diff --staged            # review staged changes
//	gavel resolve report.json             # work through saved findings
//	gavel config init                     # write a default config file
//
// Exit codes: 0 success, 1 findings at or above the fail_on threshold,
// 2 usage error, 3 authentication error, 4 runtime error.
package main
