package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesWorkflowTree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workflow:
  defaults:
    approval_provider: manual
    approval_max_retries: 3
`), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, doc.Workflow.Defaults.ApprovalProvider)
	assert.Equal(t, "manual", *doc.Workflow.Defaults.ApprovalProvider)
	require.NotNil(t, doc.Workflow.Defaults.MaxRetries)
	assert.Equal(t, 3, *doc.Workflow.Defaults.MaxRetries)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/workflow.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflow: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault_IsEmptyDocument(t *testing.T) {
	doc := Default()
	assert.Nil(t, doc.Workflow.Defaults.ApprovalProvider)
	assert.Nil(t, doc.Workflow.Plan)
}
