package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottcm/aiwf-engine/internal/model"
)

func TestLookup_Init(t *testing.T) {
	result, err := Lookup(model.PhaseInit, model.StageNone, model.CmdInit, false)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePlan, result.NextPhase)
	assert.Equal(t, model.StagePrompt, result.NextStage)
	assert.Equal(t, model.ActionGeneratePrompt, result.Action)
}

func TestLookup_PlanPromptApprove_InvokesProvider(t *testing.T) {
	result, err := Lookup(model.PhasePlan, model.StagePrompt, model.CmdApprove, false)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePlan, result.NextPhase)
	assert.Equal(t, model.StageResponse, result.NextStage)
	assert.Equal(t, model.ActionInvokeProvider, result.Action)
}

func TestLookup_InvalidCommand(t *testing.T) {
	_, err := Lookup(model.PhaseComplete, model.StageNone, model.CmdApprove, false)
	require.Error(t, err)
	var invalidErr *InvalidCommandError
	assert.ErrorAs(t, err, &invalidErr)
}

func TestLookup_CancelLegalFromNonTerminalPhase(t *testing.T) {
	for _, p := range []model.Phase{model.PhaseInit, model.PhasePlan, model.PhaseGenerate, model.PhaseReview, model.PhaseRevise} {
		result, err := Lookup(p, model.StagePrompt, model.CmdCancel, false)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseCancelled, result.NextPhase)
		assert.Equal(t, model.StatusCancelled, result.StatusOverride)
	}
}

func TestLookup_CancelIllegalFromTerminalPhase(t *testing.T) {
	_, err := Lookup(model.PhaseComplete, model.StageNone, model.CmdCancel, false)
	assert.Error(t, err)
}

func TestLookup_RejectRetryRequirePendingApproval(t *testing.T) {
	_, err := Lookup(model.PhasePlan, model.StageResponse, model.CmdReject, false)
	assert.Error(t, err)

	result, err := Lookup(model.PhasePlan, model.StageResponse, model.CmdReject, true)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePlan, result.NextPhase)
	assert.Equal(t, model.StageResponse, result.NextStage)
	assert.Equal(t, model.ActionNone, result.Action)
}

func TestLookupReviewVerdict_PassCompletes(t *testing.T) {
	result := LookupReviewVerdict(model.VerdictPass)
	assert.Equal(t, model.PhaseComplete, result.NextPhase)
	assert.Equal(t, model.StatusSuccess, result.StatusOverride)
}

func TestLookupReviewVerdict_FailOpensRevise(t *testing.T) {
	result := LookupReviewVerdict(model.VerdictFail)
	assert.Equal(t, model.PhaseRevise, result.NextPhase)
	assert.Equal(t, model.StagePrompt, result.NextStage)
	assert.Empty(t, result.StatusOverride)
}

func TestIsLegal(t *testing.T) {
	assert.True(t, IsLegal(model.PhaseInit, model.StageNone, model.CmdInit, false))
	assert.False(t, IsLegal(model.PhaseComplete, model.StageNone, model.CmdApprove, false))
}
