// Package envelope defines the per-request working memory that flows
// through the pipeline runtime: the Envelope itself, its stage outputs, the
// accumulated citation set, and the resource usage counters.
package envelope

import (
	"time"

	"github.com/kadirpekel/codescout/internal/tools"
)

// Stage names, in the fixed order the pipeline runs them.
type Stage string

const (
	StagePerception   Stage = "perception"
	StageIntent       Stage = "intent"
	StagePlanner      Stage = "planner"
	StageExecutor     Stage = "executor"
	StageSynthesizer  Stage = "synthesizer"
	StageCritic       Stage = "critic"
	StageIntegration  Stage = "integration"
)

// Order is the fixed stage sequence a fresh envelope advances through.
var Order = []Stage{
	StagePerception,
	StageIntent,
	StagePlanner,
	StageExecutor,
	StageSynthesizer,
	StageCritic,
	StageIntegration,
}

// MaxReintentCycles bounds the critic-driven return to Intent.
// The initial run is cycle 0; the first re-entry is cycle 1.
const MaxReintentCycles = 2

// TerminationReason is the finite tagged union of ways a request ends.
type TerminationReason string

const (
	ReasonNone            TerminationReason = ""
	ReasonCompleted       TerminationReason = "completed"
	ReasonCriticRejected  TerminationReason = "critic_rejected"
	ReasonCycleLimit      TerminationReason = "cycle_limit"
	ReasonQuotaExceeded   TerminationReason = "quota_exceeded"
	ReasonCancelled       TerminationReason = "cancelled"
	ReasonInternalError   TerminationReason = "internal_error"
)

// ResourceUsage is the cumulative counters the accountant bills against.
type ResourceUsage struct {
	LLMCalls  int
	ToolCalls int
	AgentHops int
	TokensIn  int
	TokensOut int
}

// PerceptionOutput is stage 1's result: a pure function of (query, session).
type PerceptionOutput struct {
	NormalizedQuery     string `json:"normalized_query"`
	IntentHints         []string `json:"intent_hints,omitempty"`
	SessionContextDigest string `json:"session_context_digest,omitempty"`
}

// Intent is the finite classification set stage 2 may assign.
type Intent string

const (
	IntentFindSymbol Intent = "find_symbol"
	IntentTraceFlow  Intent = "trace_flow"
	IntentExplain    Intent = "explain"
	IntentSearch     Intent = "search"
	IntentHistory    Intent = "history"
)

// IntentOutput is stage 2's result.
type IntentOutput struct {
	ClassifiedIntent      Intent   `json:"classified_intent"`
	Goals                  []string `json:"goals"`
	Ambiguities            []string `json:"ambiguities,omitempty"`
	ClarificationRequired  bool     `json:"clarification_required"`
	ClarificationQuestion  string   `json:"clarification_question,omitempty"`
	ReintentFocus          string   `json:"reintent_focus,omitempty"`
}

// PlannerStep is one tuple {tool_name, arguments, rationale} the planner
// emits; tool_name is restricted to the composed tools.
type PlannerStep struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Rationale string         `json:"rationale"`
	Goal      string         `json:"goal,omitempty"`
}

// PlannerOutput is stage 3's result.
type PlannerOutput struct {
	Steps                 []PlannerStep `json:"steps"`
	ContextBudgetRemaining int           `json:"context_budget_remaining"`
}

// ExecutorOutput is stage 4's result: one ToolResult per planned step, in
// plan order.
type ExecutorOutput struct {
	Results []tools.ToolResult `json:"results"`
}

// Claim is one synthesized statement plus the citations it rests on.
type Claim struct {
	Text                string            `json:"text"`
	SupportingCitations []tools.Citation `json:"supporting_citations"`
}

// SynthesizerOutput is stage 5's result.
type SynthesizerOutput struct {
	Claims []Claim `json:"claims"`
}

// CriticVerdict is the finite tagged union the critic may return.
type CriticVerdict string

const (
	VerdictApprove CriticVerdict = "approve"
	VerdictReject  CriticVerdict = "reject"
	VerdictClarify CriticVerdict = "clarify"
)

// CriticOutput is stage 6's result, enriched with a confidence score and a
// pivot recommendation so callers can distinguish a confident rejection
// from a marginal one.
type CriticOutput struct {
	Verdict               CriticVerdict `json:"verdict"`
	UnsupportedClaims     []Claim       `json:"unsupported_claims,omitempty"`
	MissingEvidence       []string      `json:"missing_evidence,omitempty"`
	Reason                string        `json:"reason"`
	SuggestedReintentFocus string       `json:"suggested_reintent_focus,omitempty"`
	Confidence            float64       `json:"confidence"`
	ShouldPivot           bool          `json:"should_pivot"`
	Recommendation        string        `json:"recommendation,omitempty"`
}

// IntegrationOutput is stage 7's result: the terminal, user-facing payload.
type IntegrationOutput struct {
	FinalResponse string   `json:"final_response"`
	CitedSources  []string `json:"cited_sources"`
}

// StageOutputs is the insertion-order-preserving record of every stage's
// result for the current cycle.
type StageOutputs struct {
	order      []Stage
	perception *PerceptionOutput
	intent     *IntentOutput
	planner    *PlannerOutput
	executor   *ExecutorOutput
	synth      *SynthesizerOutput
	critic     *CriticOutput
	integration *IntegrationOutput
}

func (s *StageOutputs) record(stage Stage) {
	for _, existing := range s.order {
		if existing == stage {
			return
		}
	}
	s.order = append(s.order, stage)
}

// Order returns the stages recorded so far, in insertion order.
func (s *StageOutputs) Order() []Stage { return append([]Stage(nil), s.order...) }

func (s *StageOutputs) SetPerception(o PerceptionOutput) { s.perception = &o; s.record(StagePerception) }
func (s *StageOutputs) Perception() (PerceptionOutput, bool) {
	if s.perception == nil {
		return PerceptionOutput{}, false
	}
	return *s.perception, true
}

func (s *StageOutputs) SetIntent(o IntentOutput) { s.intent = &o; s.record(StageIntent) }
func (s *StageOutputs) Intent() (IntentOutput, bool) {
	if s.intent == nil {
		return IntentOutput{}, false
	}
	return *s.intent, true
}

func (s *StageOutputs) SetPlanner(o PlannerOutput) { s.planner = &o; s.record(StagePlanner) }
func (s *StageOutputs) Planner() (PlannerOutput, bool) {
	if s.planner == nil {
		return PlannerOutput{}, false
	}
	return *s.planner, true
}

func (s *StageOutputs) SetExecutor(o ExecutorOutput) { s.executor = &o; s.record(StageExecutor) }
func (s *StageOutputs) Executor() (ExecutorOutput, bool) {
	if s.executor == nil {
		return ExecutorOutput{}, false
	}
	return *s.executor, true
}

func (s *StageOutputs) SetSynthesizer(o SynthesizerOutput) { s.synth = &o; s.record(StageSynthesizer) }
func (s *StageOutputs) Synthesizer() (SynthesizerOutput, bool) {
	if s.synth == nil {
		return SynthesizerOutput{}, false
	}
	return *s.synth, true
}

func (s *StageOutputs) SetCritic(o CriticOutput) { s.critic = &o; s.record(StageCritic) }
func (s *StageOutputs) Critic() (CriticOutput, bool) {
	if s.critic == nil {
		return CriticOutput{}, false
	}
	return *s.critic, true
}

func (s *StageOutputs) SetIntegration(o IntegrationOutput) { s.integration = &o; s.record(StageIntegration) }
func (s *StageOutputs) Integration() (IntegrationOutput, bool) {
	if s.integration == nil {
		return IntegrationOutput{}, false
	}
	return *s.integration, true
}

// clearReentrant drops stages 2-6 (Intent..Critic) while leaving Perception
// and Integration alone: re-entry restarts reasoning, not perception.
func (s *StageOutputs) clearReentrant() {
	s.intent = nil
	s.planner = nil
	s.executor = nil
	s.synth = nil
	s.critic = nil
	var kept []Stage
	for _, st := range s.order {
		if st == StagePerception || st == StageIntegration {
			kept = append(kept, st)
		}
	}
	s.order = kept
}

// AttemptRecord is one fallback strategy tried during one tool call,
// attributed back to the call that produced it.
type AttemptRecord struct {
	Tool     string        `json:"tool"`
	Strategy string        `json:"strategy"`
	Outcome  tools.Status  `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
}

// CitationSet is an insertion-ordered, de-duplicated set of citations. It
// only ever grows.
type CitationSet struct {
	order []tools.Citation
	seen  map[tools.Citation]struct{}
}

// NewCitationSet creates an empty citation set.
func NewCitationSet() *CitationSet {
	return &CitationSet{seen: make(map[tools.Citation]struct{})}
}

// Add inserts citations not already present, preserving first-seen order.
// Returns the count of genuinely new citations added.
func (c *CitationSet) Add(citations ...tools.Citation) int {
	added := 0
	for _, cite := range citations {
		if cite == "" {
			continue
		}
		if _, ok := c.seen[cite]; ok {
			continue
		}
		c.seen[cite] = struct{}{}
		c.order = append(c.order, cite)
		added++
	}
	return added
}

// Contains reports whether cite has been observed.
func (c *CitationSet) Contains(cite tools.Citation) bool {
	_, ok := c.seen[cite]
	return ok
}

// All returns every citation observed so far, in first-seen order.
func (c *CitationSet) All() []tools.Citation {
	return append([]tools.Citation(nil), c.order...)
}

// Len reports how many distinct citations have been observed.
func (c *CitationSet) Len() int { return len(c.order) }

// Envelope is the mutable per-request working memory owned exclusively by
// the runtime task handling one request.
type Envelope struct {
	RequestID    string
	SessionID    string
	Query        string
	CreatedAt    time.Time

	CurrentStage Stage
	Outputs      StageOutputs

	AttemptHistory []AttemptRecord
	Citations      *CitationSet

	// ReintentLimit bounds this request's critic-driven re-entries. New
	// sets it to MaxReintentCycles; per-request options may override it.
	ReintentLimit  int
	ReintentCycles int

	ResourceUsage ResourceUsage

	Terminated        bool
	TerminationReason TerminationReason
}

// New creates a fresh envelope ready to enter the Perception stage.
func New(requestID, sessionID, query string, now time.Time) *Envelope {
	return &Envelope{
		RequestID:     requestID,
		SessionID:     sessionID,
		Query:         query,
		CreatedAt:     now,
		CurrentStage:  StagePerception,
		ReintentLimit: MaxReintentCycles,
		Citations:     NewCitationSet(),
	}
}

// AppendAttempts records tool fallback attempts, preserving call order.
// attempt_history only ever grows across the whole request.
func (e *Envelope) AppendAttempts(records ...AttemptRecord) {
	e.AttemptHistory = append(e.AttemptHistory, records...)
}

// Reenter clears stage outputs 2-6 and bumps the cycle counter, preserving
// citations and attempt history per the re-entry invariant.
func (e *Envelope) Reenter(focus string) {
	e.Outputs.clearReentrant()
	e.ReintentCycles++
	e.CurrentStage = StageIntent
	e.Outputs.SetIntent(IntentOutput{ReintentFocus: focus})
}

// Terminate marks the envelope terminated. Once true, no stage may run
// again and no field besides observability counters may be mutated.
func (e *Envelope) Terminate(reason TerminationReason) {
	if e.Terminated {
		return
	}
	e.Terminated = true
	e.TerminationReason = reason
}
