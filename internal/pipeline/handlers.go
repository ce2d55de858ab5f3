package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/codescout/internal/accountant"
	codescoutcontext "github.com/kadirpekel/codescout/internal/context"
	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/evidence"
	"github.com/kadirpekel/codescout/internal/llm"
	"github.com/kadirpekel/codescout/internal/tools"
	"github.com/kadirpekel/codescout/pkg/observability"
)

// Deps bundles every external collaborator a stage's hooks call through:
// the tool registry, the LLM provider, the resource accountant, and
// observability. The runtime itself holds no state beyond this and the
// stage list; nothing rides on ambient context.
type Deps struct {
	Registry   *tools.Registry
	Primitives *tools.Primitives
	LLM        llm.Provider
	Accountant accountant.Accountant
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
	SessionDigest func(sessionID string) string
}

// errMalformed marks a parse failure of an LLM response, triggering the
// one-retry policy before the stage gives up.
type errMalformed struct{ err error }

func (e *errMalformed) Error() string { return fmt.Sprintf("llm_malformed_output: %v", e.err) }
func (e *errMalformed) Unwrap() error { return e.err }

// callLLM invokes deps.LLM, recording usage against both the accountant
// and the envelope's own ResourceUsage counters, and retries exactly once
// on a JSON-parse failure of the raw response.
func callLLM(ctx context.Context, deps Deps, env *envelope.Envelope, prompt string, jsonMode bool, out any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := deps.LLM.Complete(ctx, prompt, llm.Options{JSONMode: jsonMode, Temperature: 0.2})
		if err != nil {
			return fmt.Errorf("llm_transport_error: %w", err)
		}

		env.ResourceUsage.LLMCalls++
		env.ResourceUsage.TokensIn += resp.TokensIn
		env.ResourceUsage.TokensOut += resp.TokensOut
		deps.Accountant.RecordLLMCall(env.RequestID, resp.TokensIn, resp.TokensOut)
		if deps.Metrics != nil {
			deps.Metrics.RecordLLMTokens(deps.LLM.Name(), deps.LLM.Name(), resp.TokensIn, resp.TokensOut)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(extractJSON(resp.Text)), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return &errMalformed{err: lastErr}
}

// extractJSON strips common LLM chatter (code fences) around a JSON body.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// --- Stage 1: Perception (deterministic, pure function of query+session) ---

func newPerceptionStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StagePerception,
		Kind:  KindDeterministic,
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			digest := ""
			if deps.SessionDigest != nil {
				digest = deps.SessionDigest(env.SessionID)
			}
			env.Outputs.SetPerception(envelope.PerceptionOutput{
				NormalizedQuery:      strings.TrimSpace(env.Query),
				SessionContextDigest: digest,
			})
			return nil
		},
	}
}

// --- Stage 2: Intent (LLM) ---

type intentLLMOutput struct {
	ClassifiedIntent     string   `json:"classified_intent"`
	Goals                []string `json:"goals"`
	Ambiguities          []string `json:"ambiguities"`
	ClarificationRequired bool    `json:"clarification_required"`
	ClarificationQuestion string  `json:"clarification_question"`
}

func newIntentStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StageIntent,
		Kind:  KindLLM,
		Pre: func(ctx context.Context, env *envelope.Envelope) error {
			return checkQuota(deps, env)
		},
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			perception, _ := env.Outputs.Perception()
			existing, _ := env.Outputs.Intent()
			focus := existing.ReintentFocus

			if strings.TrimSpace(perception.NormalizedQuery) == "" {
				env.Outputs.SetIntent(envelope.IntentOutput{
					ClassifiedIntent:      envelope.IntentSearch,
					ClarificationRequired: true,
					ClarificationQuestion: "Your question was empty. What would you like to know about this repository?",
					ReintentFocus:         focus,
				})
				return nil
			}

			prompt := codescoutcontext.Perception(perception, focus)
			var parsed intentLLMOutput
			if err := callLLM(ctx, deps, env, intentPrompt(prompt), true, &parsed); err != nil {
				return err
			}

			env.Outputs.SetIntent(envelope.IntentOutput{
				ClassifiedIntent:      envelope.Intent(parsed.ClassifiedIntent),
				Goals:                  parsed.Goals,
				Ambiguities:            parsed.Ambiguities,
				ClarificationRequired:  parsed.ClarificationRequired,
				ClarificationQuestion:  parsed.ClarificationQuestion,
				ReintentFocus:          focus,
			})
			return nil
		},
	}
}

func intentPrompt(context string) string {
	return "Classify the user's intent (one of find_symbol, trace_flow, explain, search, history), " +
		"extract ordered goals, and flag ambiguity. Only set clarification_required for empty or " +
		"incomprehensible input; prefer exploration over asking.\n\n" + context +
		"\nRespond as JSON: {\"classified_intent\":..,\"goals\":[...],\"ambiguities\":[...]," +
		"\"clarification_required\":bool,\"clarification_question\":\"\"}"
}

// --- Stage 3: Planner (LLM, constrained to {search_code, read_code}) ---

type plannerLLMStep struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Rationale string         `json:"rationale"`
	Goal      string         `json:"goal"`
}

type plannerLLMOutput struct {
	Steps []plannerLLMStep `json:"steps"`
}

func newPlannerStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StagePlanner,
		Kind:  KindLLM,
		Pre: func(ctx context.Context, env *envelope.Envelope) error {
			return checkQuota(deps, env)
		},
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			intent, _ := env.Outputs.Intent()
			executor, hasExecutor := env.Outputs.Executor()
			var prevExec *envelope.ExecutorOutput
			if hasExecutor {
				prevExec = &executor
			}
			prompt := codescoutcontext.Planner(intent, prevExec)

			var parsed plannerLLMOutput
			if err := callLLM(ctx, deps, env, plannerPrompt(prompt), true, &parsed); err != nil {
				return err
			}

			steps := make([]envelope.PlannerStep, 0, len(parsed.Steps))
			for _, s := range parsed.Steps {
				steps = append(steps, envelope.PlannerStep{
					ToolName: s.ToolName, Arguments: s.Arguments, Rationale: s.Rationale, Goal: s.Goal,
				})
			}

			steps = enforceSearchFirstDiscipline(steps, env.Citations)

			env.Outputs.SetPlanner(envelope.PlannerOutput{Steps: steps, ContextBudgetRemaining: 25000})
			return nil
		},
		Post: func(ctx context.Context, env *envelope.Envelope) error {
			planner, _ := env.Outputs.Planner()
			for _, step := range planner.Steps {
				if step.ToolName != "search_code" && step.ToolName != "read_code" {
					return fmt.Errorf("invalid_arguments: planner emitted disallowed tool %q", step.ToolName)
				}
			}
			return nil
		},
	}
}

func plannerPrompt(context string) string {
	return "Produce an ordered plan of tool invocations using only search_code and read_code. " +
		"You must prefer search_code before any read_code referencing a path not already " +
		"established by a prior search_code in this plan or an earlier cycle.\n\n" + context +
		"\nRespond as JSON: {\"steps\":[{\"tool_name\":..,\"arguments\":{},\"rationale\":\"\",\"goal\":\"\"}]}"
}

// enforceSearchFirstDiscipline keeps plans search-first: any
// read_code(path) must be preceded by a search_code establishing that path
// (in this plan or a prior cycle's accumulated citations). A read_code
// step that violates this is demoted to a search_code step targeting the
// same path, which keeps plan discipline without discarding planner
// intent entirely.
func enforceSearchFirstDiscipline(steps []envelope.PlannerStep, citations *envelope.CitationSet) []envelope.PlannerStep {
	known := make(map[string]struct{})
	for _, cite := range citations.All() {
		if path, _, ok := splitCitation(cite); ok {
			known[path] = struct{}{}
		}
	}

	out := make([]envelope.PlannerStep, 0, len(steps))
	for _, step := range steps {
		if step.ToolName == "read_code" {
			path, _ := step.Arguments["path"].(string)
			if _, ok := known[path]; !ok {
				out = append(out, envelope.PlannerStep{
					ToolName:  "search_code",
					Arguments: map[string]any{"query": path},
					Rationale: "establish path before reading it (plan discipline)",
					Goal:      step.Goal,
				})
				known[path] = struct{}{}
			}
		}
		out = append(out, step)
		if step.ToolName == "search_code" {
			if q, ok := step.Arguments["query"].(string); ok {
				known[q] = struct{}{}
			}
		}
	}
	return out
}

func splitCitation(c tools.Citation) (path string, line int, ok bool) {
	s := string(c)
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", 0, false
	}
	return s[:idx], 0, true
}

// --- Stage 4: Executor (deterministic, calls the tool registry) ---

func newExecutorStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StageExecutor,
		Kind:  KindDeterministic,
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			planner, _ := env.Outputs.Planner()
			var results []tools.ToolResult

			for _, step := range planner.Steps {
				if ctx.Err() != nil {
					env.Terminate(envelope.ReasonCancelled)
					break
				}

				ok, reason := deps.Accountant.CheckQuota(env.RequestID)
				if !ok {
					env.Terminate(envelope.ReasonQuotaExceeded)
					env.Outputs.SetExecutor(envelope.ExecutorOutput{Results: results})
					return fmt.Errorf("quota_exceeded: %s", reason)
				}

				env.ResourceUsage.AgentHops++
				deps.Accountant.RecordAgentHop(env.RequestID)

				result := deps.Registry.Execute(tools.WithRequestID(ctx, env.RequestID), tools.Call{
					Name: step.ToolName, Arguments: step.Arguments,
				})
				results = append(results, result)

				env.ResourceUsage.ToolCalls++
				deps.Accountant.RecordToolCall(env.RequestID, step.ToolName)

				for _, a := range result.AttemptHistory {
					env.AppendAttempts(envelope.AttemptRecord{
						Tool: step.ToolName, Strategy: a.Strategy, Outcome: a.Outcome, Detail: a.Detail,
					})
				}

				cites := evidence.Extract(result)
				added := env.Citations.Add(cites...)
				if deps.Metrics != nil {
					deps.Metrics.RecordCitationsObserved(step.ToolName, added)
				}

				tokens := 0
				for _, m := range result.Data.Matches {
					tokens += codescoutcontext.EstimateTokens(m.Snippet)
					if m.Path != "" {
						deps.Accountant.RecordFileAccess(env.RequestID, m.Path)
					}
				}
				deps.Accountant.RecordCodeTokens(env.RequestID, tokens)

				// Hard errors (tool_unavailable, registry error) stop the
				// plan early; not_found is a normal signal and the plan
				// continues.
				if result.Status == tools.StatusToolUnavailable || result.Status == tools.StatusError {
					break
				}
			}

			env.Outputs.SetExecutor(envelope.ExecutorOutput{Results: results})
			return nil
		},
	}
}

// --- Stage 5: Synthesizer (LLM) ---

type synthesizerLLMClaim struct {
	Text                string   `json:"text"`
	SupportingCitations []string `json:"supporting_citations"`
}

type synthesizerLLMOutput struct {
	Claims []synthesizerLLMClaim `json:"claims"`
}

func newSynthesizerStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StageSynthesizer,
		Kind:  KindLLM,
		Pre: func(ctx context.Context, env *envelope.Envelope) error {
			return checkQuota(deps, env)
		},
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			planner, _ := env.Outputs.Planner()
			executor, _ := env.Outputs.Executor()

			if allNotFound(executor.Results) {
				env.Outputs.SetSynthesizer(envelope.SynthesizerOutput{})
				return nil
			}

			prompt := codescoutcontext.Synthesizer(planner, executor)
			var parsed synthesizerLLMOutput
			if err := callLLM(ctx, deps, env, synthesizerPrompt(prompt), true, &parsed); err != nil {
				return err
			}

			claims := make([]envelope.Claim, 0, len(parsed.Claims))
			for _, c := range parsed.Claims {
				cites := make([]tools.Citation, 0, len(c.SupportingCitations))
				for _, s := range c.SupportingCitations {
					cites = append(cites, tools.Citation(s))
				}
				claims = append(claims, envelope.Claim{Text: c.Text, SupportingCitations: cites})
			}
			env.Outputs.SetSynthesizer(envelope.SynthesizerOutput{Claims: claims})
			return nil
		},
	}
}

func allNotFound(results []tools.ToolResult) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.Status == tools.StatusSuccess {
			return false
		}
	}
	return true
}

func synthesizerPrompt(context string) string {
	return "Produce claims answering the user's question. Every claim MUST cite at least one " +
		"path:line drawn from the executor results below; never invent a citation.\n\n" + context +
		"\nRespond as JSON: {\"claims\":[{\"text\":\"\",\"supporting_citations\":[\"path:line\"]}]}"
}

// --- Stage 6: Critic (LLM, validated against the envelope's own evidence) ---

type criticLLMOutput struct {
	Confidence     float64 `json:"confidence"`
	ShouldPivot    bool    `json:"should_pivot"`
	Recommendation string  `json:"recommendation"`
}

func newCriticStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StageCritic,
		Kind:  KindLLM,
		Pre: func(ctx context.Context, env *envelope.Envelope) error {
			return checkQuota(deps, env)
		},
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			synth, _ := env.Outputs.Synthesizer()
			intent, _ := env.Outputs.Intent()

			if intent.ClarificationRequired {
				env.Outputs.SetCritic(envelope.CriticOutput{Verdict: envelope.VerdictClarify, Reason: "clarification required"})
				return nil
			}

			validation := evidence.Validate(synth.Claims, env.Citations)

			prompt := codescoutcontext.Critic(synth, env.Citations)
			var parsed criticLLMOutput
			// Structured-output-first, heuristic-fallback: the citation
			// closure check is always authoritative (it is deterministic
			// code, not an LLM judgment); the LLM call only contributes
			// confidence/pivot enrichment.
			_ = callLLM(ctx, deps, env, criticPrompt(prompt), true, &parsed)

			out := envelope.CriticOutput{
				UnsupportedClaims: validation.Unsupported,
				MissingEvidence:   citationsToStrings(validation.MissingCitations),
				Confidence:        parsed.Confidence,
				ShouldPivot:       parsed.ShouldPivot,
				Recommendation:    parsed.Recommendation,
			}

			// Zero claims is a vacuously closed citation graph: there is
			// nothing unsupported, so the not-found path resolves in one
			// cycle and Integration reports the candidate list instead of
			// burning re-entries on a dead end.
			if validation.Approved() {
				out.Verdict = envelope.VerdictApprove
				if len(synth.Claims) == 0 {
					out.Reason = "no claims were synthesized; nothing to verify"
				} else {
					out.Reason = "every claim's citations are present in the accumulated citation set"
				}
			} else {
				out.Verdict = envelope.VerdictReject
				out.Reason = "citation_unsupported: one or more claims cite evidence outside the accumulated set"
				out.SuggestedReintentFocus = refocusFor(intent.ClassifiedIntent)
			}

			if deps.Metrics != nil {
				deps.Metrics.RecordReintent(string(out.Verdict))
			}
			env.Outputs.SetCritic(out)
			return nil
		},
	}
}

func citationsToStrings(cs []tools.Citation) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, string(c))
	}
	return out
}

func criticPrompt(context string) string {
	return "Assess confidence (0-1) that the claims below represent meaningful progress, whether " +
		"the approach should pivot, and a one-word recommendation. Citation validity itself is " +
		"checked separately; focus only on quality of reasoning.\n\n" + context +
		"\nRespond as JSON: {\"confidence\":0.0,\"should_pivot\":false,\"recommendation\":\"\"}"
}

// refocusFor picks a reasonable suggested_reintent_focus when the critic
// rejects, based on the original classified intent.
func refocusFor(i envelope.Intent) string {
	switch i {
	case envelope.IntentTraceFlow:
		return "trace the call graph more specifically"
	case envelope.IntentExplain:
		return "find the concrete implementation, not just its name"
	default:
		return "narrow the search query"
	}
}

// --- Stage 7: Integration (LLM-optional, templated) ---

func newIntegrationStage(deps Deps) StageDef {
	return StageDef{
		Stage: envelope.StageIntegration,
		Kind:  KindLLM,
		Core: func(ctx context.Context, env *envelope.Envelope) error {
			intent, _ := env.Outputs.Intent()
			if intent.ClarificationRequired {
				env.Outputs.SetIntegration(envelope.IntegrationOutput{FinalResponse: intent.ClarificationQuestion})
				return nil
			}

			switch env.TerminationReason {
			case envelope.ReasonQuotaExceeded:
				env.Outputs.SetIntegration(envelope.IntegrationOutput{
					FinalResponse: budgetExhaustedResponse(env),
					CitedSources:  citationsToStrings(env.Citations.All()),
				})
				return nil
			case envelope.ReasonCriticRejected:
				env.Outputs.SetIntegration(envelope.IntegrationOutput{
					FinalResponse: unverifiedResponse(env),
					CitedSources:  citationsToStrings(env.Citations.All()),
				})
				return nil
			case envelope.ReasonCancelled:
				env.Outputs.SetIntegration(envelope.IntegrationOutput{
					FinalResponse: "The request was cancelled before completion.",
					CitedSources:  citationsToStrings(env.Citations.All()),
				})
				return nil
			case envelope.ReasonInternalError:
				env.Outputs.SetIntegration(envelope.IntegrationOutput{
					FinalResponse: "An internal error interrupted this request before a complete answer could be produced.",
					CitedSources:  citationsToStrings(env.Citations.All()),
				})
				return nil
			}

			synth, hasSynth := env.Outputs.Synthesizer()
			if !hasSynth || len(synth.Claims) == 0 {
				env.Outputs.SetIntegration(envelope.IntegrationOutput{
					FinalResponse: noFindingsResponse(env),
					CitedSources:  citationsToStrings(env.Citations.All()),
				})
				return nil
			}

			env.Outputs.SetIntegration(envelope.IntegrationOutput{
				FinalResponse: formatAnswer(synth),
				CitedSources:  citationsToStrings(env.Citations.All()),
			})
			return nil
		},
	}
}

func formatAnswer(synth envelope.SynthesizerOutput) string {
	var b strings.Builder
	for _, c := range synth.Claims {
		b.WriteString(c.Text)
		b.WriteString(" ")
		for _, cite := range c.SupportingCitations {
			fmt.Fprintf(&b, "[%s]", cite)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func noFindingsResponse(env *envelope.Envelope) string {
	executor, _ := env.Outputs.Executor()
	var candidates []string
	for _, r := range executor.Results {
		candidates = append(candidates, r.Data.Candidates...)
	}
	if len(candidates) > 0 {
		return fmt.Sprintf("No exact match was found; closest candidates: %s", strings.Join(candidates, ", "))
	}
	return "No matching code was found for this question."
}

func unverifiedResponse(env *envelope.Envelope) string {
	synth, _ := env.Outputs.Synthesizer()
	var b strings.Builder
	b.WriteString("The following claims could not be fully verified against the evidence gathered (unverified):\n")
	for _, c := range synth.Claims {
		b.WriteString("- " + c.Text + "\n")
	}
	return strings.TrimSpace(b.String())
}

func budgetExhaustedResponse(env *envelope.Envelope) string {
	return "This request reached its resource budget before a complete answer could be verified. " +
		"Here is what was found before the limit: " + strings.Join(citationsToStrings(env.Citations.All()), ", ")
}

// checkQuota is the shared Pre hook every LLM-calling stage runs before its
// Core: the runtime honours whatever the accountant returns and never
// implements quota logic itself.
func checkQuota(deps Deps, env *envelope.Envelope) error {
	ok, reason := deps.Accountant.CheckQuota(env.RequestID)
	if !ok {
		env.Terminate(envelope.ReasonQuotaExceeded)
		return fmt.Errorf("quota_exceeded: %s", reason)
	}
	return nil
}
