// Package codescout is a read-only code-analysis agent.
//
// Codescout answers natural-language questions about a source repository
// and anchors every factual claim in its answer to file:line citations
// extracted from the repository itself. A question moves through a fixed
// seven-stage pipeline (perception, intent, planner, executor, synthesizer,
// critic, integration) with a bounded critic-driven re-entry loop; the
// executor explores the codebase exclusively through two composed read-only
// tools, search_code and read_code, each a deterministic fallback chain over
// primitive filesystem, index, git, and vector operations.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/codescout/cmd/codescout@latest
//
// Ask a question about the current directory:
//
//	codescout query "where is the rate limiter configured?"
//
// Or serve newline-delimited JSON requests, streaming stage events:
//
//	codescout serve-stdio --config codescout.yaml
//
// # Architecture
//
// The service façade exposes the two operations callers need: Query for a
// single terminal response and SubmitStream for the per-stage event stream
// ending in the same terminal payload. Everything the pipeline learns about
// the repository flows through an append-only citation set on the request's
// envelope; the critic stage validates each synthesized claim against that
// set before the final answer is assembled, and sends the request back to
// the intent stage (at most twice) when a claim lacks observed evidence.
package codescout
