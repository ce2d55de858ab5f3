package pipeline

import (
	"context"

	"github.com/kadirpekel/codescout/internal/envelope"
)

// Kind distinguishes stages that call the LLM from pure functions.
type Kind string

const (
	KindDeterministic Kind = "deterministic"
	KindLLM           Kind = "llm"
)

// Hook is one of a stage's three lifecycle functions. pre_process compacts
// or augments input; core invokes the LLM or tools; post_process validates
// and parses, and may flip re-entry. Hooks are deterministic given their
// inputs and read/write only the passed envelope, never shared mutable
// state.
type Hook func(ctx context.Context, env *envelope.Envelope) error

// StageDef is one pipeline stage: a named, ordered triple of hooks plus an
// optional Mock that replaces Core, the only supported test substitution
// point for the LLM.
type StageDef struct {
	Stage envelope.Stage
	Kind  Kind
	Pre   Hook
	Core  Hook
	Post  Hook
	Mock  Hook
}

// run executes Pre, then Mock (if set) or Core, then Post, in order. Any
// hook returning an error aborts the stage; the caller decides how to
// translate that into a termination reason.
func (s StageDef) run(ctx context.Context, env *envelope.Envelope) error {
	if s.Pre != nil {
		if err := s.Pre(ctx, env); err != nil {
			return err
		}
	}
	core := s.Core
	if s.Mock != nil {
		core = s.Mock
	}
	if core != nil {
		if err := core(ctx, env); err != nil {
			return err
		}
	}
	if s.Post != nil {
		if err := s.Post(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
