// Package evidence extracts path:line citations from tool output and
// validates synthesized claims against the envelope's accumulated citation
// set, driving the critic's re-entry decision.
package evidence

import "github.com/kadirpekel/codescout/internal/tools"

// Extract pulls every citation out of a ToolResult's data, deriving each
// path:line pair from the underlying match:
//   - search_code: from each match's path + line.
//   - read_code: from path + the first line number of the returned slice.
// A tool result's own Citations field (populated by the composed tool
// itself, which has the clearest view of its own match shape) is trusted
// first; Extract is the fallback for callers that only have raw Data, and
// for tests that construct a ToolResult by hand.
func Extract(result tools.ToolResult) []tools.Citation {
	if len(result.Citations) > 0 {
		return result.Citations
	}
	return FromData(result.Tool, result.Data)
}

// FromData derives citations directly from a Data payload, independent of
// any pre-populated Citations field.
func FromData(toolName string, data tools.Data) []tools.Citation {
	var out []tools.Citation
	for _, m := range data.Matches {
		if m.Path == "" {
			continue
		}
		line := m.Line
		if line <= 0 {
			line = 1
		}
		out = append(out, tools.NewCitation(m.Path, line))
	}
	return out
}
