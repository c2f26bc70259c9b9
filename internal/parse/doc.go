// Package parse turns raw AI backend output into findings.
//
// Backends are asked for a strict JSON schema but routinely return fenced
// blocks, legacy delimiter formats, or plain prose. [Response] runs a chain
// of strategies from strictest to loosest and stops at the first one that
// yields findings; when every strategy fails it emits a single generic
// finding per work unit so review output is never silently lost.
//
// Severity values are normalized against a fixed allow-list with synonym
// mapping; anything unrecognized becomes medium with a warning. Near
// duplicate findings on the same file are merged.
package parse
