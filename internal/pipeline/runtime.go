// Package pipeline implements the seven-stage orchestrator: the ordered
// stage definitions, the transition function between them, and the runtime
// loop that drives one request's envelope from Perception to Integration.
package pipeline

import (
	"context"
	"time"

	"github.com/kadirpekel/codescout/internal/envelope"
)

// maxTotalSteps is a hard backstop against a transition-function bug
// looping forever; it is far above any legitimate run (7 stages * (1 +
// MaxReintentCycles) re-entries, generously doubled).
const maxTotalSteps = 64

// Runtime holds the fixed, ordered stage definitions and the dependencies
// every hook closes over. One Runtime serves every request; per-request
// state lives entirely in the Envelope passed to Run.
type Runtime struct {
	stages map[envelope.Stage]StageDef
	deps   Deps
}

// New builds a Runtime wiring all seven stage definitions against deps.
func New(deps Deps) *Runtime {
	stages := make(map[envelope.Stage]StageDef, len(envelope.Order))
	for _, def := range []StageDef{
		newPerceptionStage(deps),
		newIntentStage(deps),
		newPlannerStage(deps),
		newExecutorStage(deps),
		newSynthesizerStage(deps),
		newCriticStage(deps),
		newIntegrationStage(deps),
	} {
		stages[def.Stage] = def
	}
	return &Runtime{stages: stages, deps: deps}
}

// Run drives env from its current stage to termination, emitting one Event
// per stage boundary on events and a final TerminalEvent before returning.
// Run is the sole mutator of env for the lifetime of the call; callers
// must never share one envelope across concurrent Run calls.
func (r *Runtime) Run(ctx context.Context, env *envelope.Envelope, events chan<- any) {
	steps := 0

	for {
		steps++
		if steps > maxTotalSteps {
			env.Terminate(envelope.ReasonInternalError)
			break
		}

		if err := ctx.Err(); err != nil {
			env.Terminate(envelope.ReasonCancelled)
			break
		}

		if env.Terminated {
			// A terminated envelope gets exactly one wind-down run of
			// Integration (critic_rejected, clarify, quota, internal error
			// paths all route here so the caller receives a response
			// describing partial progress). A replayed
			// envelope that already has its Integration output runs
			// nothing at all.
			if env.CurrentStage != envelope.StageIntegration {
				break
			}
			if _, done := env.Outputs.Integration(); done {
				break
			}
		} else if ok, _ := r.deps.Accountant.CheckQuota(env.RequestID); !ok {
			env.Terminate(envelope.ReasonQuotaExceeded)
			env.CurrentStage = envelope.StageIntegration
		}

		stage := env.CurrentStage
		def, ok := r.stages[stage]
		if !ok {
			env.Terminate(envelope.ReasonInternalError)
			break
		}

		r.emit(events, env, stage, EventStarted, "")

		stageCtx, span := r.deps.Tracer.StartStage(ctx, env.RequestID, env.SessionID, string(stage))
		start := time.Now()
		err := def.run(stageCtx, env)
		duration := time.Since(start)

		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordStageRun(string(stage), duration)
		}

		if err != nil {
			if r.deps.Metrics != nil {
				r.deps.Metrics.RecordStageFailure(string(stage), err.Error())
			}
			r.deps.Tracer.RecordError(span, err)
			span.End()
			r.emit(events, env, stage, EventFailed, err.Error())

			// A stage hook error that did not already set a specific
			// termination reason (quota, cancellation) is internal_error.
			if !env.Terminated {
				env.Terminate(envelope.ReasonInternalError)
			}
			if env.TerminationReason == envelope.ReasonCancelled || stage == envelope.StageIntegration {
				break
			}
			env.CurrentStage = envelope.StageIntegration
			continue
		}

		span.End()
		r.emit(events, env, stage, EventCompleted, "")

		if stage == envelope.StageIntegration {
			if !env.Terminated {
				env.Terminate(envelope.ReasonCompleted)
			}
			break
		}

		next(env)
	}

	r.emitTerminal(events, env)
}

func (r *Runtime) emit(events chan<- any, env *envelope.Envelope, stage envelope.Stage, status EventStatus, summary string) {
	if events == nil {
		return
	}
	select {
	case events <- Event{RequestID: env.RequestID, Stage: stage, Status: status, Summary: summary, Timestamp: time.Now()}:
	default:
	}
}

// emitTerminal delivers the one guaranteed event of a run. Stage events are
// best-effort under back-pressure, but the terminal event carries the
// response payload, so this send blocks until the consumer takes it.
func (r *Runtime) emitTerminal(events chan<- any, env *envelope.Envelope) {
	if events == nil {
		return
	}
	integration, _ := env.Outputs.Integration()
	events <- TerminalEvent{
		Event: Event{
			RequestID: env.RequestID,
			Stage:     env.CurrentStage,
			Status:    EventCompleted,
			Timestamp: time.Now(),
		},
		FinalResponse:     integration.FinalResponse,
		CitedSources:      integration.CitedSources,
		TerminationReason: env.TerminationReason,
		Usage:             env.ResourceUsage,
	}
}
