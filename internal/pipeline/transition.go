package pipeline

import "github.com/kadirpekel/codescout/internal/envelope"

// next is the explicit transition function
// (stage, critic verdict, cycles) -> next stage or terminal. It decides
// every ordinary stage-to-stage move; the other writers of
// env.CurrentStage/env.Terminated are the runtime loop (cancellation,
// quota exhaustion, the wind-down Integration run), stage hooks that end
// the request through env.Terminate, and env.Reenter.
func next(env *envelope.Envelope) {
	switch env.CurrentStage {
	case envelope.StagePerception:
		env.CurrentStage = envelope.StageIntent

	case envelope.StageIntent:
		intent, _ := env.Outputs.Intent()
		if intent.ClarificationRequired {
			env.CurrentStage = envelope.StageIntegration
			return
		}
		env.CurrentStage = envelope.StagePlanner

	case envelope.StagePlanner:
		env.CurrentStage = envelope.StageExecutor

	case envelope.StageExecutor:
		env.CurrentStage = envelope.StageSynthesizer

	case envelope.StageSynthesizer:
		env.CurrentStage = envelope.StageCritic

	case envelope.StageCritic:
		critic, _ := env.Outputs.Critic()
		switch critic.Verdict {
		case envelope.VerdictApprove:
			env.CurrentStage = envelope.StageIntegration
		case envelope.VerdictClarify:
			env.Terminate(envelope.ReasonCompleted)
			env.CurrentStage = envelope.StageIntegration
		case envelope.VerdictReject:
			if env.ReintentCycles < env.ReintentLimit {
				env.Reenter(critic.SuggestedReintentFocus)
			} else {
				env.Terminate(envelope.ReasonCriticRejected)
				env.CurrentStage = envelope.StageIntegration
			}
		default:
			env.Terminate(envelope.ReasonInternalError)
		}

	case envelope.StageIntegration:
		if !env.Terminated {
			env.Terminate(envelope.ReasonCompleted)
		}
	}
}
