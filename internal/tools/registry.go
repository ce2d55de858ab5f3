package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/codescout/pkg/observability"
	"github.com/kadirpekel/codescout/pkg/registry"
	"go.opentelemetry.io/otel/codes"
)

// Tool is the contract every registered composed or primitive operation
// implements: (arguments) -> ToolResult, per the inbound tool contract.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// RegistryError is returned for registration-time failures (an empty or
// duplicate name, or a non-read-only risk level) and for a Get of an
// unregistered name.
type RegistryError struct {
	Action  string
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tools: %s: %s: %v", e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("tools: %s: %s", e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// entry pairs a Tool with its registration metadata.
type entry struct {
	Tool Tool
	Info Info
}

// Registry is the name->tool lookup the executor stage dispatches through.
// It is built at startup and frozen before serving begins: Register after
// Freeze is a programmer error, not a runtime condition to recover from.
type Registry struct {
	base    *registry.BaseRegistry[entry]
	metrics *observability.Metrics
	tracer  *observability.Tracer
	frozen  bool
}

// NewRegistry creates an empty, unfrozen tool registry.
func NewRegistry(metrics *observability.Metrics, tracer *observability.Tracer) *Registry {
	return &Registry{
		base:    registry.NewBaseRegistry[entry](),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Register adds a tool to the registry. It rejects any tool whose declared
// risk level is not read_only, enforcing the read-only invariant at
// registration time rather than at call time.
func (r *Registry) Register(tool Tool) error {
	if r.frozen {
		panic("tools: Register called after Freeze")
	}

	info := tool.Info()
	if info.Risk != RiskReadOnly {
		return &RegistryError{
			Action:  "Register",
			Message: fmt.Sprintf("tool %q declares risk %q, only %q is permitted", info.Name, info.Risk, RiskReadOnly),
		}
	}
	if info.Name == "" {
		return &RegistryError{Action: "Register", Message: "tool name cannot be empty"}
	}

	if err := r.base.Register(info.Name, entry{Tool: tool, Info: info}); err != nil {
		return &RegistryError{Action: "Register", Message: fmt.Sprintf("registering %q", info.Name), Err: err}
	}
	return nil
}

// Freeze marks the registry read-only. Called once at startup after all
// tools are registered, before the service façade accepts traffic.
func (r *Registry) Freeze() { r.frozen = true }

// Get looks up a tool's metadata by name without executing it.
func (r *Registry) Get(name string) (Info, error) {
	e, ok := r.base.Get(name)
	if !ok {
		return Info{}, &RegistryError{Action: "Get", Message: fmt.Sprintf("tool %q not registered", name)}
	}
	return e.Info, nil
}

// Composed returns the metadata for every registered composed tool, the
// only names the planner is permitted to emit.
func (r *Registry) Composed() []Info {
	var out []Info
	for _, e := range r.base.List() {
		if e.Info.Category == CategoryComposed {
			out = append(out, e.Info)
		}
	}
	return out
}

// Execute looks up and invokes a tool by name, recording a span and
// metrics around the whole call including its internal fallback chain.
// A lookup failure itself produces a ToolResult with StatusToolUnavailable
// rather than an error, so the executor stage can record it and continue
// the plan per the error-handling table's tool_unavailable policy.
func (r *Registry) Execute(ctx context.Context, call Call) ToolResult {
	start := time.Now()

	ctx, span := r.tracer.StartToolExecution(ctx, requestIDFromContext(ctx), call.Name)
	defer span.End()

	e, ok := r.base.Get(call.Name)
	if !ok {
		err := fmt.Errorf("tool %q is not registered", call.Name)
		r.tracer.RecordError(span, err)
		r.metrics.RecordToolCall(call.Name, string(StatusToolUnavailable), time.Since(start))
		return ToolResult{
			Tool:   call.Name,
			Status: StatusToolUnavailable,
			Error:  err.Error(),
		}
	}

	result, err := e.Tool.Execute(ctx, call.Arguments)
	if err != nil {
		result = ToolResult{Tool: call.Name, Status: StatusError, Error: err.Error()}
	}

	switch result.Status {
	case StatusNotFound:
		r.metrics.RecordToolNotFound(call.Name)
		span.SetStatus(codes.Ok, "not_found")
	case StatusError, StatusToolUnavailable:
		r.metrics.RecordToolError(call.Name, string(result.Status))
		span.SetStatus(codes.Error, result.Error)
	default:
		span.SetStatus(codes.Ok, "success")
	}
	r.metrics.RecordToolCall(call.Name, string(result.Status), time.Since(start))

	return result
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx for span/metric labeling.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
