package tools

import (
	"context"
	"fmt"

	"github.com/kadirpekel/codescout/internal/storage"
)

// maxSymbolResults, maxGrepResults bound the composed tool's own fan-out,
// independent of the executor-level bounds that cap totals across an
// entire request.
const (
	maxSymbolResults = 100
	maxGrepResults   = 50
)

// SearchCode implements the search_code composed tool: a deterministic
// five-strategy fallback chain. It stops and returns on the
// first strategy producing any result; not_found is only returned once all
// five have been tried.
type SearchCode struct {
	primitives *Primitives
}

// NewSearchCode wraps Primitives as the search_code composed tool.
func NewSearchCode(primitives *Primitives) *SearchCode {
	return &SearchCode{primitives: primitives}
}

func (t *SearchCode) Info() Info {
	return Info{
		Name:        "search_code",
		Description: "Search the codebase for a symbol or pattern via a deterministic fallback chain: exact symbol, prefix symbol, regex grep (case-sensitive then insensitive), semantic search.",
		Category:    CategoryComposed,
		Risk:        RiskReadOnly,
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Symbol name, identifier, or natural-language description to search for.", Required: true},
			{Name: "scope", Type: "string", Description: "Optional directory to restrict the search to.", Required: false},
			{Name: "kind", Type: "string", Description: "Optional symbol kind filter (e.g. function, class).", Required: false},
		},
	}
}

func (t *SearchCode) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return ToolResult{Tool: "search_code", Status: StatusError, Error: "query argument is required"}, nil
	}
	scope, _ := args["scope"].(string)

	result := ToolResult{Tool: "search_code"}

	// Strategy 1: exact symbol match.
	exact, err := t.primitives.FindSymbolExact(ctx, query, scope)
	result.AttemptHistory = append(result.AttemptHistory, attemptFromSymbols("find_symbol_exact", exact, err))
	if err == nil && len(exact) > 0 {
		if len(exact) > maxSymbolResults {
			exact = exact[:maxSymbolResults]
		}
		return t.finish(result, "find_symbol_exact", symbolsToMatches(exact)), nil
	}

	// Strategy 2: prefix symbol match.
	prefix, err := t.primitives.FindSymbolPrefix(ctx, query, scope)
	result.AttemptHistory = append(result.AttemptHistory, attemptFromSymbols("find_symbol_prefix", prefix, err))
	if err == nil && len(prefix) > 0 {
		if len(prefix) > maxSymbolResults {
			prefix = prefix[:maxSymbolResults]
		}
		return t.finish(result, "find_symbol_prefix", symbolsToMatches(prefix)), nil
	}

	// Strategy 3: case-sensitive regex grep.
	csHits, err := t.primitives.GrepSearch(ctx, query, true, scope, maxGrepResults)
	result.AttemptHistory = append(result.AttemptHistory, attemptFromGrep("grep_case_sensitive", csHits, err))
	if err == nil && len(csHits) > 0 {
		return t.finish(result, "grep_case_sensitive", grepToMatches(csHits)), nil
	}

	// Strategy 4: case-insensitive regex grep.
	ciHits, err := t.primitives.GrepSearch(ctx, query, false, scope, maxGrepResults)
	result.AttemptHistory = append(result.AttemptHistory, attemptFromGrep("grep_case_insensitive", ciHits, err))
	if err == nil && len(ciHits) > 0 {
		return t.finish(result, "grep_case_insensitive", grepToMatches(ciHits)), nil
	}

	// Strategy 5: vector similarity search (semantic), the final fallback.
	vecHits, err := t.primitives.SemanticSearch(ctx, query, scope, maxSymbolResults/10)
	result.AttemptHistory = append(result.AttemptHistory, attemptFromVector("semantic_search", vecHits, err))
	if err == nil && len(vecHits) > 0 {
		return t.finish(result, "semantic_search", vectorToMatches(vecHits)), nil
	}

	result.Status = StatusNotFound
	return result, nil
}

func (t *SearchCode) finish(result ToolResult, foundVia string, matches []Match) ToolResult {
	result.Status = StatusSuccess
	result.FoundVia = foundVia
	result.Data = Data{Matches: matches}
	result.Citations = matchesToCitations(matches)
	return result
}

func attemptFromSymbols(strategy string, hits []storage.Symbol, err error) Attempt {
	if err != nil {
		return Attempt{Strategy: strategy, Outcome: StatusError, Detail: err.Error()}
	}
	if len(hits) == 0 {
		return Attempt{Strategy: strategy, Outcome: StatusNotFound}
	}
	return Attempt{Strategy: strategy, Outcome: StatusSuccess, Detail: fmt.Sprintf("%d match(es)", len(hits))}
}

func attemptFromGrep(strategy string, hits []storage.GrepHit, err error) Attempt {
	if err != nil {
		return Attempt{Strategy: strategy, Outcome: StatusError, Detail: err.Error()}
	}
	if len(hits) == 0 {
		return Attempt{Strategy: strategy, Outcome: StatusNotFound}
	}
	return Attempt{Strategy: strategy, Outcome: StatusSuccess, Detail: fmt.Sprintf("%d match(es)", len(hits))}
}

func attemptFromVector(strategy string, hits []storage.VectorHit, err error) Attempt {
	if err != nil {
		return Attempt{Strategy: strategy, Outcome: StatusError, Detail: err.Error()}
	}
	if len(hits) == 0 {
		return Attempt{Strategy: strategy, Outcome: StatusNotFound}
	}
	return Attempt{Strategy: strategy, Outcome: StatusSuccess, Detail: fmt.Sprintf("%d match(es)", len(hits))}
}

func symbolsToMatches(symbols []storage.Symbol) []Match {
	out := make([]Match, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, Match{
			Path: s.Path, Line: s.Line, EndLine: s.EndLine,
			Symbol: s.Name, Kind: s.Kind, Snippet: s.Signature,
		})
	}
	return out
}

func grepToMatches(hits []storage.GrepHit) []Match {
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, Match{Path: h.Path, Line: h.Line, Snippet: h.Text})
	}
	return out
}

func vectorToMatches(hits []storage.VectorHit) []Match {
	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, Match{Path: h.Path, Line: h.Line, Snippet: h.Text, Score: h.Score})
	}
	return out
}

func matchesToCitations(matches []Match) []Citation {
	out := make([]Citation, 0, len(matches))
	for _, m := range matches {
		line := m.Line
		if line <= 0 {
			line = 1
		}
		out = append(out, NewCitation(m.Path, line))
	}
	return out
}
