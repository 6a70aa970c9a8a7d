package ux

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottcm/aiwf-engine/internal/model"
)

func TestRecord_WriteTextSkipsEmptyValues(t *testing.T) {
	r := NewRecord().Set("a", "").Set("b", "value").Set("c", 0).Set("d", 5)
	var buf bytes.Buffer
	r.WriteText(&buf)

	out := buf.String()
	assert.NotContains(t, out, "a=")
	assert.Contains(t, out, "b=value")
	assert.NotContains(t, out, "c=")
	assert.Contains(t, out, "d=5")
}

func TestRecord_SetOverwritesExistingKey(t *testing.T) {
	r := NewRecord().Set("k", "first").Set("k", "second")
	var buf bytes.Buffer
	r.WriteText(&buf)
	assert.Equal(t, "k=second\n", buf.String())
}

func TestRecord_WriteJSONOmitsEmptyFields(t *testing.T) {
	r := NewRecord().Set("a", "").Set("b", "value").Set("ok", false)
	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	_, hasA := obj["a"]
	assert.False(t, hasA)
	assert.Equal(t, "value", obj["b"])
	assert.Equal(t, false, obj["ok"], "false is a meaningful value and must not be omitted")
}

func TestRecord_WriteDispatchesOnJSONMode(t *testing.T) {
	r := NewRecord().Set("x", "y")

	var textBuf bytes.Buffer
	require.NoError(t, r.Write(&textBuf, false))
	assert.Equal(t, "x=y\n", textBuf.String())

	var jsonBuf bytes.Buffer
	require.NoError(t, r.Write(&jsonBuf, true))
	var obj map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &obj))
	assert.Equal(t, "y", obj["x"])
}

func TestStateRecord_IncludesOptionalFieldsOnlyWhenSet(t *testing.T) {
	state := model.NewWorkflowState("sess-1", "generic", model.WorkflowState{}.UpdatedAt)
	state.LastError = "boom"
	state.ApprovalFeedback = "needs work"

	r := StateRecord(1, "status", 0, state)
	var buf bytes.Buffer
	r.WriteText(&buf)

	out := buf.String()
	assert.Contains(t, out, "session_id=sess-1")
	assert.Contains(t, out, "last_error=boom")
	assert.Contains(t, out, "approval_feedback=needs work")
}

func TestSessionList_PrintsSortedIDs(t *testing.T) {
	var buf bytes.Buffer
	SessionList(&buf, []string{"zeta", "alpha", "mike"})
	assert.Equal(t, "alpha\nmike\nzeta\n", buf.String())
}

func TestPhaseHeader_WritesSomething(t *testing.T) {
	var buf bytes.Buffer
	PhaseHeader(&buf, model.PhasePlan, model.StagePrompt, 1)
	assert.NotEmpty(t, buf.String())
}

func TestSuccessFailurePendingApprovalRejectionFeedback_WriteSomething(t *testing.T) {
	var buf bytes.Buffer
	Success(&buf, "sess-1")
	assert.Contains(t, buf.String(), "sess-1")

	buf.Reset()
	Failure(&buf, "oh no")
	assert.Contains(t, buf.String(), "oh no")

	buf.Reset()
	PendingApproval(&buf, "iteration-1/response.md")
	assert.Contains(t, buf.String(), "iteration-1/response.md")

	buf.Reset()
	RejectionFeedback(&buf, "missing tests")
	assert.Contains(t, buf.String(), "missing tests")
}
