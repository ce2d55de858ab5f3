// Package accountant implements the resource accountant interface the
// runtime honours at stage boundaries: an in-memory
// quota tracker recording LLM/tool calls against fixed per-request bounds.
package accountant

import (
	"fmt"
	"sync"

	"github.com/kadirpekel/codescout/pkg/observability"
)

// Bounds caps one request's resource consumption. Zero-value
// fields are treated as "unbounded" so tests can construct a partially
// bounded Bounds without tripping unrelated quotas.
type Bounds struct {
	MaxLLMCallsPerQuery   int
	MaxAgentHopsPerQuery  int
	MaxTotalCodeTokens    int
	MaxToolCallsPerQuery  int
	MaxFilesPerQuery      int
}

// DefaultBounds returns the per-query limits enforced in production.
func DefaultBounds() Bounds {
	return Bounds{
		MaxLLMCallsPerQuery:  10,
		MaxAgentHopsPerQuery: 21,
		MaxTotalCodeTokens:   25000,
		MaxFilesPerQuery:     10,
	}
}

// Accountant tracks per-request resource consumption: the runtime calls
// CheckQuota at stage boundaries and honours whatever it returns; the tool
// executor and LLM adapters call the Record* methods as calls complete.
// The runtime never implements quota logic itself.
type Accountant interface {
	RecordLLMCall(requestID string, tokensIn, tokensOut int)
	RecordToolCall(requestID, name string)
	RecordCodeTokens(requestID string, tokens int)
	RecordAgentHop(requestID string)
	RecordFileAccess(requestID, path string)
	CheckQuota(requestID string) (ok bool, reason string)
	Usage(requestID string) Usage
	Reset(requestID string)
}

// Usage is a snapshot of one request's cumulative resource consumption.
// Files counts distinct file paths whose content tool results pulled into
// the request, not individual accesses.
type Usage struct {
	LLMCalls   int
	ToolCalls  int
	AgentHops  int
	TokensIn   int
	TokensOut  int
	CodeTokens int
	Files      int
}

// InMemory is the default Accountant: per-request counters guarded by a
// mutex, enforcing Bounds. It has no external persistence; a production
// deployment would back this with the same storage the rest of the system
// uses, but the core only depends on the Accountant interface.
type InMemory struct {
	bounds  Bounds
	metrics *observability.Metrics

	mu    sync.Mutex
	usage map[string]*Usage
	files map[string]map[string]struct{}
}

// New creates an in-memory accountant enforcing bounds.
func New(bounds Bounds, metrics *observability.Metrics) *InMemory {
	return &InMemory{
		bounds:  bounds,
		metrics: metrics,
		usage:   make(map[string]*Usage),
		files:   make(map[string]map[string]struct{}),
	}
}

func (a *InMemory) entry(requestID string) *Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.usage[requestID]
	if !ok {
		u = &Usage{}
		a.usage[requestID] = u
	}
	return u
}

func (a *InMemory) RecordLLMCall(requestID string, tokensIn, tokensOut int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.unsafeEntry(requestID)
	u.LLMCalls++
	u.TokensIn += tokensIn
	u.TokensOut += tokensOut
}

func (a *InMemory) RecordToolCall(requestID, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.unsafeEntry(requestID)
	u.ToolCalls++
}

func (a *InMemory) RecordCodeTokens(requestID string, tokens int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.unsafeEntry(requestID)
	u.CodeTokens += tokens
}

func (a *InMemory) RecordAgentHop(requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.unsafeEntry(requestID)
	u.AgentHops++
}

// RecordFileAccess notes that path's content reached the request. Repeat
// accesses to the same path are free; only distinct files count toward
// max_files_per_query.
func (a *InMemory) RecordFileAccess(requestID, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.files[requestID]
	if !ok {
		set = make(map[string]struct{})
		a.files[requestID] = set
	}
	set[path] = struct{}{}
	a.unsafeEntry(requestID).Files = len(set)
}

// unsafeEntry requires a.mu to already be held.
func (a *InMemory) unsafeEntry(requestID string) *Usage {
	u, ok := a.usage[requestID]
	if !ok {
		u = &Usage{}
		a.usage[requestID] = u
	}
	return u
}

// CheckQuota reports whether requestID may proceed past the next stage
// boundary, against every configured bound. The first bound violated
// is named in reason.
func (a *InMemory) CheckQuota(requestID string) (bool, string) {
	u := a.entry(requestID)

	if a.bounds.MaxLLMCallsPerQuery > 0 && u.LLMCalls >= a.bounds.MaxLLMCallsPerQuery {
		a.recordQuotaHit("max_llm_calls_per_query")
		return false, fmt.Sprintf("exceeded max_llm_calls_per_query (%d)", a.bounds.MaxLLMCallsPerQuery)
	}
	if a.bounds.MaxAgentHopsPerQuery > 0 && u.AgentHops >= a.bounds.MaxAgentHopsPerQuery {
		a.recordQuotaHit("max_agent_hops_per_query")
		return false, fmt.Sprintf("exceeded max_agent_hops_per_query (%d)", a.bounds.MaxAgentHopsPerQuery)
	}
	if a.bounds.MaxTotalCodeTokens > 0 && u.CodeTokens > a.bounds.MaxTotalCodeTokens {
		a.recordQuotaHit("max_total_code_tokens")
		return false, fmt.Sprintf("exceeded max_total_code_tokens (%d)", a.bounds.MaxTotalCodeTokens)
	}
	if a.bounds.MaxToolCallsPerQuery > 0 && u.ToolCalls >= a.bounds.MaxToolCallsPerQuery {
		a.recordQuotaHit("max_tool_calls_per_query")
		return false, fmt.Sprintf("exceeded max_tool_calls_per_query (%d)", a.bounds.MaxToolCallsPerQuery)
	}
	if a.bounds.MaxFilesPerQuery > 0 && u.Files > a.bounds.MaxFilesPerQuery {
		a.recordQuotaHit("max_files_per_query")
		return false, fmt.Sprintf("exceeded max_files_per_query (%d)", a.bounds.MaxFilesPerQuery)
	}
	return true, ""
}

func (a *InMemory) recordQuotaHit(reason string) {
	if a.metrics != nil {
		a.metrics.RecordQuotaExceeded(reason)
	}
}

// Usage returns a snapshot of requestID's cumulative usage.
func (a *InMemory) Usage(requestID string) Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if u, ok := a.usage[requestID]; ok {
		return *u
	}
	return Usage{}
}

// Reset discards requestID's counters, releasing memory once a request
// terminates.
func (a *InMemory) Reset(requestID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.usage, requestID)
	delete(a.files, requestID)
}

var _ Accountant = (*InMemory)(nil)
