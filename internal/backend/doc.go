// Package backend abstracts the AI review capability behind the [Reviewer]
// interface.
//
// Adapters exist for Anthropic's Messages API, OpenAI's chat API, and
// Ollama/LM Studio via the OpenAI-compatible local endpoint. API keys come
// from environment variables; selection is by provider name through [New].
// Transient failures are retried with exponential backoff inside each
// adapter; rate-limit and authentication failures carry distinct types so
// callers can react differently.
//
// The package also owns prompt construction: review-type personas, the JSON
// output schema instruction, and the multi-file request payload.
package backend
