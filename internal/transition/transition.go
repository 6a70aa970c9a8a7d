// Package transition holds the Transition Table: a pure, static lookup
// from (phase, stage, command) to a model.TransitionResult. Nothing here
// touches disk or any collaborator — it is the one component the
// Orchestrator treats as authoritative data rather than behavior.
//
// Grounded on the teacher's config.Phase/OnFail "goto" data shape (a
// phase-indexed, data-driven control table) generalized from a
// user-configurable list to the fixed table spec.md §4.1 prescribes.
package transition

import (
	"fmt"

	"github.com/scottcm/aiwf-engine/internal/model"
)

// key identifies one row of the non-terminal part of the table.
type key struct {
	Phase   model.Phase
	Stage   model.Stage
	Command model.Command
}

// InvalidCommandError reports that no table entry matches the requested
// (phase, stage, command) triple.
type InvalidCommandError struct {
	Phase   model.Phase
	Stage   model.Stage
	Command model.Command
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("transition: invalid command %q at phase=%s stage=%s", e.Command, e.Phase, e.Stage)
}

// table enumerates every legal non-cancel, non-reject, non-retry
// combination from spec.md §4.1. REVIEW/RESPONSE's approve entry is
// present here with a placeholder next-phase; the Orchestrator resolves
// the real branch via LookupReviewVerdict once the verdict is known, since the
// table itself must stay pure/verdict-independent.
var table = map[key]model.TransitionResult{
	{model.PhaseInit, model.StageNone, model.CmdInit}: {
		NextPhase: model.PhasePlan, NextStage: model.StagePrompt, Action: model.ActionGeneratePrompt,
	},
	{model.PhasePlan, model.StagePrompt, model.CmdApprove}: {
		NextPhase: model.PhasePlan, NextStage: model.StageResponse, Action: model.ActionInvokeProvider,
	},
	{model.PhasePlan, model.StageResponse, model.CmdApprove}: {
		NextPhase: model.PhaseGenerate, NextStage: model.StagePrompt, Action: model.ActionApprovePlanResponse,
	},
	{model.PhaseGenerate, model.StagePrompt, model.CmdApprove}: {
		NextPhase: model.PhaseGenerate, NextStage: model.StageResponse, Action: model.ActionInvokeProvider,
	},
	{model.PhaseGenerate, model.StageResponse, model.CmdApprove}: {
		NextPhase: model.PhaseReview, NextStage: model.StagePrompt, Action: model.ActionApproveGenerateResponse,
	},
	{model.PhaseReview, model.StagePrompt, model.CmdApprove}: {
		NextPhase: model.PhaseReview, NextStage: model.StageResponse, Action: model.ActionInvokeProvider,
	},
	// REVIEW/RESPONSE approve: data-dependent, see LookupReviewVerdict.
	{model.PhaseReview, model.StageResponse, model.CmdApprove}: {
		Action: model.ActionApproveReviewResponse,
	},
	{model.PhaseRevise, model.StagePrompt, model.CmdApprove}: {
		NextPhase: model.PhaseRevise, NextStage: model.StageResponse, Action: model.ActionInvokeProvider,
	},
	{model.PhaseRevise, model.StageResponse, model.CmdApprove}: {
		NextPhase: model.PhaseReview, NextStage: model.StagePrompt, Action: model.ActionApproveReviseResponse,
	},
}

// nonTerminalPhases lists every phase "cancel" is legal from.
var nonTerminalPhases = map[model.Phase]bool{
	model.PhaseInit:     true,
	model.PhasePlan:     true,
	model.PhaseGenerate: true,
	model.PhaseReview:   true,
	model.PhaseRevise:   true,
}

// Lookup resolves (phase, stage, command) to a TransitionResult.
//
// cancel is legal from any non-terminal phase regardless of stage.
// reject/retry are legal on any RESPONSE stage when pendingApproval is
// true; both leave (phase, stage) unchanged, so Lookup returns the
// current phase/stage back with no Action — the Orchestrator applies the
// reject/retry bookkeeping itself (§4.1's "(unchanged)" rows).
func Lookup(phase model.Phase, stage model.Stage, command model.Command, pendingApproval bool) (model.TransitionResult, error) {
	if command == model.CmdCancel {
		if !nonTerminalPhases[phase] {
			return model.TransitionResult{}, &InvalidCommandError{phase, stage, command}
		}
		return model.TransitionResult{
			NextPhase: model.PhaseCancelled, NextStage: model.StageNone,
			Action: model.ActionCancel, StatusOverride: model.StatusCancelled,
		}, nil
	}

	if (command == model.CmdReject || command == model.CmdRetry) && stage == model.StageResponse {
		if !pendingApproval {
			return model.TransitionResult{}, &InvalidCommandError{phase, stage, command}
		}
		return model.TransitionResult{NextPhase: phase, NextStage: stage, Action: model.ActionNone}, nil
	}

	result, ok := table[key{phase, stage, command}]
	if !ok {
		return model.TransitionResult{}, &InvalidCommandError{phase, stage, command}
	}
	return result, nil
}

// LookupReviewVerdict resolves the one data-dependent branch: REVIEW's
// approved response either completes the workflow (PASS) or opens a new
// REVISE iteration (FAIL).
func LookupReviewVerdict(verdict model.Verdict) model.TransitionResult {
	if verdict == model.VerdictPass {
		return model.TransitionResult{
			NextPhase: model.PhaseComplete, NextStage: model.StageNone,
			Action: model.ActionApproveReviewResponse, StatusOverride: model.StatusSuccess,
		}
	}
	return model.TransitionResult{
		NextPhase: model.PhaseRevise, NextStage: model.StagePrompt,
		Action: model.ActionApproveReviewResponse,
	}
}

// IsLegal reports whether a command is present in the table at
// (phase, stage) without constructing the transition.
func IsLegal(phase model.Phase, stage model.Stage, command model.Command, pendingApproval bool) bool {
	_, err := Lookup(phase, stage, command, pendingApproval)
	return err == nil
}
