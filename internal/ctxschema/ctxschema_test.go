package ctxschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSchema struct {
	TaskDescription string `json:"task_description" validate:"required"`
	RepoPath        string `json:"repo_path,omitempty"`
}

func TestValidate_NilSchemaIsNoOp(t *testing.T) {
	err := Validate("generic", nil, map[string]any{})
	assert.NoError(t, err)
}

func TestValidate_ValidContextPasses(t *testing.T) {
	err := Validate("generic", &testSchema{}, map[string]any{
		"task_description": "build a thing",
		"repo_path":        "/tmp/repo",
	})
	assert.NoError(t, err)
}

func TestValidate_MissingRequiredFieldFails(t *testing.T) {
	err := Validate("generic", &testSchema{}, map[string]any{
		"repo_path": "/tmp/repo",
	})
	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.Equal(t, "generic", valErr.Profile)
}

func TestValidate_UnmarshalableContextFails(t *testing.T) {
	err := Validate("generic", &testSchema{}, map[string]any{
		"task_description": make(chan int),
	})
	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
