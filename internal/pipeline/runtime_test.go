package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/codescout/internal/accountant"
	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/llm"
	"github.com/kadirpekel/codescout/internal/tools"
)

// scriptedLLM replays one canned JSON response per call, in order, and
// fails the test if more calls land than were scripted.
func scriptedLLM(t *testing.T, responses []string) llm.Provider {
	t.Helper()
	idx := 0
	return llm.NewMock("mock", func(ctx context.Context, prompt string, opts llm.Options) (llm.Response, error) {
		if idx >= len(responses) {
			t.Fatalf("scriptedLLM: exhausted %d scripted responses on call %d", len(responses), idx+1)
		}
		resp := responses[idx]
		idx++
		return llm.Response{Text: resp, TokensIn: 10, TokensOut: 5}, nil
	})
}

// hookedLLM is like scriptedLLM but runs a side-effect hook before each
// call, letting tests cancel a context partway through a cycle.
func hookedLLM(t *testing.T, responses []string, before func(call int)) llm.Provider {
	t.Helper()
	idx := 0
	return llm.NewMock("mock", func(ctx context.Context, prompt string, opts llm.Options) (llm.Response, error) {
		if before != nil {
			before(idx)
		}
		if idx >= len(responses) {
			t.Fatalf("hookedLLM: exhausted %d scripted responses on call %d", len(responses), idx+1)
		}
		resp := responses[idx]
		idx++
		return llm.Response{Text: resp, TokensIn: 10, TokensOut: 5}, nil
	})
}

// scriptedTool replays one canned ToolResult per invocation, holding on the
// last one once exhausted.
type scriptedTool struct {
	info    tools.Info
	results []tools.ToolResult
	calls   int
}

func (s *scriptedTool) Info() tools.Info { return s.info }

func (s *scriptedTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i], nil
}

func newTestRegistry(t *testing.T, searchResults, readResults []tools.ToolResult) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil, nil)
	if len(searchResults) == 0 {
		searchResults = []tools.ToolResult{{Tool: "search_code", Status: tools.StatusNotFound}}
	}
	if len(readResults) == 0 {
		readResults = []tools.ToolResult{{Tool: "read_code", Status: tools.StatusNotFound}}
	}
	require.NoError(t, reg.Register(&scriptedTool{
		info:    tools.Info{Name: "search_code", Category: tools.CategoryComposed, Risk: tools.RiskReadOnly},
		results: searchResults,
	}))
	require.NoError(t, reg.Register(&scriptedTool{
		info:    tools.Info{Name: "read_code", Category: tools.CategoryComposed, Risk: tools.RiskReadOnly},
		results: readResults,
	}))
	reg.Freeze()
	return reg
}

func testDeps(llmProvider llm.Provider, reg *tools.Registry, bounds accountant.Bounds) Deps {
	return Deps{
		Registry:   reg,
		Primitives: nil,
		LLM:        llmProvider,
		Accountant: accountant.New(bounds, nil),
		Metrics:    nil,
		Tracer:     nil,
	}
}

// drain consumes every event the runtime sent and returns the terminal one.
func drain(t *testing.T, events chan any) TerminalEvent {
	t.Helper()
	close(events)
	var terminal *TerminalEvent
	for e := range events {
		if te, ok := e.(TerminalEvent); ok {
			term := te
			terminal = &term
		}
	}
	require.NotNil(t, terminal, "runtime must always emit exactly one terminal event")
	return *terminal
}

const (
	intentFindSymbolJSON = `{"classified_intent":"find_symbol","goals":["locate login"],"ambiguities":[],"clarification_required":false,"clarification_question":""}`
	plannerSearchJSON    = `{"steps":[{"tool_name":"search_code","arguments":{"query":"login"},"rationale":"find it","goal":"locate login"}]}`
	criticEnrichOnlyJSON = `{"confidence":0.9,"should_pivot":false,"recommendation":"none"}`
)

func synthesizerClaimJSON(citation string) string {
	return `{"claims":[{"text":"login is defined in the auth module.","supporting_citations":["` + citation + `"]}]}`
}

// TestRuntimeSingleCycleApproval covers the straight-line success path: one
// cycle, a citation the synthesizer actually used, critic approves.
func TestRuntimeSingleCycleApproval(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess, FoundVia: "find_symbol_exact",
		Data:      tools.Data{Matches: []tools.Match{{Path: "src/auth/login.py", Line: 42, Snippet: "def login():"}}},
		Citations: []tools.Citation{"src/auth/login.py:42"},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
		synthesizerClaimJSON("src/auth/login.py:42"),
		criticEnrichOnlyJSON,
	})

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-1", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 128)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCompleted, terminal.TerminationReason)
	require.Contains(t, terminal.FinalResponse, "login is defined")
	require.Contains(t, terminal.FinalResponse, "[src/auth/login.py:42]")
	require.Equal(t, []string{"src/auth/login.py:42"}, terminal.CitedSources)
	require.Equal(t, 0, env.ReintentCycles)
}

// TestRuntimeReentryThenApproval covers a critic rejection on cycle 0
// (the claim cites evidence outside the accumulated set) followed by an
// approval on cycle 1, once the claim cites real accumulated evidence.
func TestRuntimeReentryThenApproval(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess, FoundVia: "find_symbol_exact",
		Data:      tools.Data{Matches: []tools.Match{{Path: "src/auth/login.py", Line: 42, Snippet: "def login():"}}},
		Citations: []tools.Citation{"src/auth/login.py:42"},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
		synthesizerClaimJSON("fabricated/nonexistent.py:1"), // cycle 0: unsupported claim
		criticEnrichOnlyJSON,
		intentFindSymbolJSON,
		plannerSearchJSON,
		synthesizerClaimJSON("src/auth/login.py:42"), // cycle 1: cites real, accumulated evidence
		criticEnrichOnlyJSON,
	})

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-2", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 128)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCompleted, terminal.TerminationReason)
	require.Contains(t, terminal.FinalResponse, "[src/auth/login.py:42]")
	require.Equal(t, 1, env.ReintentCycles, "exactly one re-entry before approval")
}

// TestRuntimeCycleLimitTerminatesCriticRejected covers a claim that never
// stops citing evidence outside the accumulated set: the critic rejects
// every cycle, re-entry is bounded, and the run ends critic_rejected.
func TestRuntimeCycleLimitTerminatesCriticRejected(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess, FoundVia: "find_symbol_exact",
		Data:      tools.Data{Matches: []tools.Match{{Path: "src/auth/login.py", Line: 42, Snippet: "def login():"}}},
		Citations: []tools.Citation{"src/auth/login.py:42"},
	}}, nil)

	unsupported := synthesizerClaimJSON("fabricated/nonexistent.py:1")
	var responses []string
	for cycle := 0; cycle <= envelope.MaxReintentCycles; cycle++ {
		responses = append(responses, intentFindSymbolJSON, plannerSearchJSON, unsupported, criticEnrichOnlyJSON)
	}

	llmProvider := scriptedLLM(t, responses)
	// Quotas stay unbounded here: three full cycles cost more LLM calls than
	// the production default allows, and this test is about the cycle bound.
	rt := New(testDeps(llmProvider, reg, accountant.Bounds{}))
	env := envelope.New("req-3", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 256)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCriticRejected, terminal.TerminationReason)
	require.Equal(t, envelope.MaxReintentCycles, env.ReintentCycles, "re-entry never exceeds the cycle bound")
	require.Contains(t, terminal.FinalResponse, "unverified")
	require.NotContains(t, terminal.CitedSources, "fabricated/nonexistent.py:1",
		"an unsupported citation must never be surfaced as if it were verified evidence")
	require.Equal(t, []string{"src/auth/login.py:42"}, terminal.CitedSources,
		"cited_sources reflects only tool-verified evidence, never a claim's unverified citation")
}

// TestRuntimeNotFoundProducesNoFabricatedCitations covers the case where
// every tool call comes back not_found: synthesis is skipped entirely and
// the final response names candidates, never invents a citation.
func TestRuntimeNotFoundProducesNoFabricatedCitations(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusNotFound,
		Data: tools.Data{Candidates: []string{"similar_login.py"}},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
		// Synthesizer is never actually invoked (allNotFound short-circuits
		// it), so no synthesizer response is scripted for this cycle; the
		// critic's enrichment call is. Zero claims validate vacuously, so the
		// critic approves and the request resolves in a single cycle.
		criticEnrichOnlyJSON,
	})

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-4", "sess-1", "where is frobnicate defined", time.Now())

	events := make(chan any, 256)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCompleted, terminal.TerminationReason)
	require.Zero(t, env.ReintentCycles, "a dead-end search never consumes a re-entry cycle")
	require.Empty(t, terminal.CitedSources, "no tool ever succeeded, so there is nothing to cite")
	require.Contains(t, terminal.FinalResponse, "closest candidates")
	require.Contains(t, terminal.FinalResponse, "similar_login.py")
	require.NotContains(t, terminal.FinalResponse, ".py:", "a not_found path must never be rendered as a citation")
}

// TestRuntimeReplayOfTerminatedEnvelopeIsIdempotent covers re-running the
// runtime on an envelope that already terminated: the second run performs
// no LLM or tool calls (the scripted provider would fail the test) and
// emits an identical terminal payload.
func TestRuntimeReplayOfTerminatedEnvelopeIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess, FoundVia: "find_symbol_exact",
		Data:      tools.Data{Matches: []tools.Match{{Path: "src/auth/login.py", Line: 42, Snippet: "def login():"}}},
		Citations: []tools.Citation{"src/auth/login.py:42"},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
		synthesizerClaimJSON("src/auth/login.py:42"),
		criticEnrichOnlyJSON,
	})

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-replay", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 128)
	rt.Run(context.Background(), env, events)
	first := drain(t, events)
	require.True(t, env.Terminated)

	replayEvents := make(chan any, 8)
	rt.Run(context.Background(), env, replayEvents)
	second := drain(t, replayEvents)

	require.Equal(t, first.FinalResponse, second.FinalResponse)
	require.Equal(t, first.CitedSources, second.CitedSources)
	require.Equal(t, first.TerminationReason, second.TerminationReason)
	require.Equal(t, first.Usage, second.Usage, "replay consumes no additional resources")
}

// TestRuntimeCancellationMidCycleRetainsPartialOutputs covers cancellation
// arriving between stages: Perception and Intent complete, but Planner
// never runs, and the run still emits exactly one terminal event.
func TestRuntimeCancellationMidCycleRetainsPartialOutputs(t *testing.T) {
	reg := newTestRegistry(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	llmProvider := hookedLLM(t, []string{intentFindSymbolJSON}, func(call int) {
		if call == 0 {
			cancel()
		}
	})

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-5", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 64)
	rt.Run(ctx, env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCancelled, terminal.TerminationReason)
	_, hasPerception := env.Outputs.Perception()
	require.True(t, hasPerception, "perception ran before cancellation landed")
	_, hasPlanner := env.Outputs.Planner()
	require.False(t, hasPlanner, "cancellation was observed before planner ever ran")
}

// TestRuntimeQuotaExceededMidCycleSkipsRemainingStages covers the
// accountant's LLM-call bound firing between Planner and Executor: the
// runtime terminates quota_exceeded and routes straight to Integration
// without ever invoking the executor.
func TestRuntimeQuotaExceededMidCycleSkipsRemainingStages(t *testing.T) {
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess,
		Citations: []tools.Citation{"src/auth/login.py:42"},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
	})

	bounds := accountant.Bounds{MaxLLMCallsPerQuery: 2}
	rt := New(testDeps(llmProvider, reg, bounds))
	env := envelope.New("req-6", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 64)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonQuotaExceeded, terminal.TerminationReason)
	require.Contains(t, terminal.FinalResponse, "resource budget")
	_, hasExecutor := env.Outputs.Executor()
	require.False(t, hasExecutor, "the quota was exhausted before the executor stage ever ran")
}

// TestRuntimeFileBoundTerminatesQuotaExceeded covers the distinct-file
// bound: one search whose matches span more files than max_files_per_query
// allows terminates the request at the next stage boundary, before the
// synthesizer's LLM call.
func TestRuntimeFileBoundTerminatesQuotaExceeded(t *testing.T) {
	matches := make([]tools.Match, 0, 11)
	for _, p := range []string{
		"a.py", "b.py", "c.py", "d.py", "e.py", "f.py",
		"g.py", "h.py", "i.py", "j.py", "k.py",
	} {
		matches = append(matches, tools.Match{Path: p, Line: 1, Snippet: "def login():"})
	}
	reg := newTestRegistry(t, []tools.ToolResult{{
		Tool: "search_code", Status: tools.StatusSuccess, FoundVia: "grep_case_sensitive",
		Data: tools.Data{Matches: matches},
	}}, nil)

	llmProvider := scriptedLLM(t, []string{
		intentFindSymbolJSON,
		plannerSearchJSON,
		// The synthesizer is never reached: the runtime's stage-boundary
		// quota check after the executor trips on the eleventh distinct file.
	})

	bounds := accountant.Bounds{MaxFilesPerQuery: 10}
	rt := New(testDeps(llmProvider, reg, bounds))
	env := envelope.New("req-8", "sess-1", "where is login defined", time.Now())

	events := make(chan any, 64)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonQuotaExceeded, terminal.TerminationReason)
	require.Contains(t, terminal.FinalResponse, "resource budget")
	_, hasSynth := env.Outputs.Synthesizer()
	require.False(t, hasSynth, "the file bound was exceeded before the synthesizer stage ever ran")
}

// TestRuntimeEmptyQueryShortCircuitsToClarification covers Perception
// feeding an empty/whitespace query straight to a clarification response
// without ever calling the LLM or the executor.
func TestRuntimeEmptyQueryShortCircuitsToClarification(t *testing.T) {
	reg := newTestRegistry(t, nil, nil)
	llmProvider := scriptedLLM(t, nil) // the LLM must never be called

	rt := New(testDeps(llmProvider, reg, accountant.DefaultBounds()))
	env := envelope.New("req-7", "sess-1", "   ", time.Now())

	events := make(chan any, 64)
	rt.Run(context.Background(), env, events)
	terminal := drain(t, events)

	require.Equal(t, envelope.ReasonCompleted, terminal.TerminationReason)
	require.Contains(t, terminal.FinalResponse, "empty")
	_, hasExecutor := env.Outputs.Executor()
	require.False(t, hasExecutor)
}
