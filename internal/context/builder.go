// Package context builds bounded, per-stage LLM inputs from prior envelope
// state. Every builder returns a plain string prompt fragment;
// none of them call an LLM themselves.
package context

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/tools"
)

// maxSnippetChars and maxItemsPerTool implement the snippet-extraction
// rule: each ToolResult is summarised to at most this many items, each
// truncated to this many characters.
const (
	maxSnippetChars = 512
	maxItemsPerTool = 10
)

// Snippet is one bounded summary of a tool's match, the unit the
// snippet-extraction rule assembles context from.
type Snippet struct {
	Tool     string
	Status   tools.Status
	FoundVia string
	Text     string
}

// Summarize reduces one ToolResult to at most maxItemsPerTool snippets of
// at most maxSnippetChars each, the load-bearing rule for staying under
// the LLM context window.
func Summarize(result tools.ToolResult) []Snippet {
	if len(result.Data.Matches) == 0 {
		text := "no matches"
		if len(result.Data.Candidates) > 0 {
			text = fmt.Sprintf("candidates: %s", strings.Join(result.Data.Candidates, ", "))
		}
		return []Snippet{{Tool: result.Tool, Status: result.Status, FoundVia: result.FoundVia, Text: text}}
	}

	out := make([]Snippet, 0, min(len(result.Data.Matches), maxItemsPerTool))
	for i, m := range result.Data.Matches {
		if i >= maxItemsPerTool {
			break
		}
		text := fmt.Sprintf("%s:%d %s", m.Path, m.Line, m.Snippet)
		if len(text) > maxSnippetChars {
			text = text[:maxSnippetChars] + "..."
		}
		out = append(out, Snippet{Tool: result.Tool, Status: result.Status, FoundVia: result.FoundVia, Text: text})
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Perception builds Intent's input: perception plus, on a critic-driven
// re-entry, the focus the critic suggested narrowing the next cycle around.
func Perception(p envelope.PerceptionOutput, reintentFocus string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Normalized query: %s\n", p.NormalizedQuery)
	if p.SessionContextDigest != "" {
		fmt.Fprintf(&b, "Session context: %s\n", p.SessionContextDigest)
	}
	if len(p.IntentHints) > 0 {
		fmt.Fprintf(&b, "Hints: %s\n", strings.Join(p.IntentHints, "; "))
	}
	if reintentFocus != "" {
		fmt.Fprintf(&b, "Reintent focus (from critic): %s\n", reintentFocus)
	}
	return b.String()
}

// Planner builds Planner's input: Intent's output plus a recent executor
// summary (empty on the first cycle).
func Planner(intent envelope.IntentOutput, previousExecutor *envelope.ExecutorOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", intent.ClassifiedIntent)
	fmt.Fprintf(&b, "Goals: %s\n", strings.Join(intent.Goals, "; "))
	if intent.ReintentFocus != "" {
		fmt.Fprintf(&b, "Reintent focus: %s\n", intent.ReintentFocus)
	}
	if previousExecutor != nil {
		b.WriteString("Recent executor results:\n")
		writeExecutorSummary(&b, *previousExecutor)
	}
	return b.String()
}

// Synthesizer builds Synthesizer's input: Planner's output plus executor
// snippets.
func Synthesizer(planner envelope.PlannerOutput, executor envelope.ExecutorOutput) string {
	var b strings.Builder
	b.WriteString("Planned steps:\n")
	for _, step := range planner.Steps {
		fmt.Fprintf(&b, "- %s(%v): %s\n", step.ToolName, step.Arguments, step.Rationale)
	}
	b.WriteString("Executor results:\n")
	writeExecutorSummary(&b, executor)
	return b.String()
}

// Critic builds Critic's input: Synthesizer's output plus a literal
// listing of the full cumulative citation set, inlined so validation is
// self-contained.
func Critic(synth envelope.SynthesizerOutput, citations *envelope.CitationSet) string {
	var b strings.Builder
	b.WriteString("Claims:\n")
	for _, c := range synth.Claims {
		cites := make([]string, 0, len(c.SupportingCitations))
		for _, cite := range c.SupportingCitations {
			cites = append(cites, cite.String())
		}
		fmt.Fprintf(&b, "- %q cites [%s]\n", c.Text, strings.Join(cites, ", "))
	}
	b.WriteString("Accumulated citations (the only valid evidence set):\n")
	for _, cite := range citations.All() {
		fmt.Fprintf(&b, "- %s\n", cite)
	}
	return b.String()
}

func writeExecutorSummary(b *strings.Builder, executor envelope.ExecutorOutput) {
	for _, result := range executor.Results {
		for _, snip := range Summarize(result) {
			fmt.Fprintf(b, "  [%s/%s via %s] %s\n", snip.Tool, snip.Status, snip.FoundVia, snip.Text)
		}
	}
}

// EstimateTokens is the word-count approximation used to enforce
// max_total_code_tokens; it intentionally matches the
// estimator the read_code tool uses to truncate a file slice.
func EstimateTokens(s string) int {
	return len(strings.Fields(s))
}
