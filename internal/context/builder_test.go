package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/tools"
)

func TestSummarizeCapsItemsPerToolAndCharsPerSnippet(t *testing.T) {
	matches := make([]tools.Match, 0, maxItemsPerTool+5)
	for i := 0; i < maxItemsPerTool+5; i++ {
		matches = append(matches, tools.Match{Path: "a.go", Line: i + 1, Snippet: strings.Repeat("x", maxSnippetChars+50)})
	}
	result := tools.ToolResult{Tool: "search_code", Status: tools.StatusSuccess, Data: tools.Data{Matches: matches}}

	snippets := Summarize(result)
	require.Len(t, snippets, maxItemsPerTool)
	for _, s := range snippets {
		require.LessOrEqual(t, len(s.Text), maxSnippetChars+3, "truncated snippets end with an ellipsis within a few chars of the cap")
	}
}

func TestSummarizeReportsNoMatchesOrCandidates(t *testing.T) {
	notFound := tools.ToolResult{Tool: "read_code", Status: tools.StatusNotFound}
	snippets := Summarize(notFound)
	require.Len(t, snippets, 1)
	require.Equal(t, "no matches", snippets[0].Text)

	withCandidates := tools.ToolResult{
		Tool: "read_code", Status: tools.StatusNotFound,
		Data: tools.Data{Candidates: []string{"a.go", "b.go"}},
	}
	snippets = Summarize(withCandidates)
	require.Len(t, snippets, 1)
	require.Contains(t, snippets[0].Text, "a.go")
	require.Contains(t, snippets[0].Text, "b.go")
}

func TestCriticBuilderInlinesFullCumulativeCitationSet(t *testing.T) {
	citations := envelope.NewCitationSet()
	citations.Add("a.go:1", "b.go:2")

	synth := envelope.SynthesizerOutput{Claims: []envelope.Claim{
		{Text: "claim", SupportingCitations: []tools.Citation{"a.go:1"}},
	}}

	out := Critic(synth, citations)
	require.Contains(t, out, "a.go:1")
	require.Contains(t, out, "b.go:2")
	require.Contains(t, out, "claim")
}

func TestPlannerBuilderOmitsExecutorSectionOnFirstCycle(t *testing.T) {
	out := Planner(envelope.IntentOutput{ClassifiedIntent: envelope.IntentSearch}, nil)
	require.NotContains(t, out, "Recent executor results")
}

func TestPlannerBuilderIncludesReintentFocusWhenSet(t *testing.T) {
	out := Planner(envelope.IntentOutput{ClassifiedIntent: envelope.IntentExplain, ReintentFocus: "error_handler"}, nil)
	require.Contains(t, out, "error_handler")
}

func TestEstimateTokensCountsWhitespaceSeparatedWords(t *testing.T) {
	require.Equal(t, 3, EstimateTokens("one two three"))
	require.Equal(t, 0, EstimateTokens(""))
}
