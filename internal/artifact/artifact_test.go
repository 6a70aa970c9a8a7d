package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottcm/aiwf-engine/internal/model"
)

func fixedExtractor(files []CodeFile) Extractor {
	return func(string) ([]CodeFile, error) { return files, nil }
}

func TestHashBytes_Deterministic(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, HashBytes([]byte("world")))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("content"), 0o644))

	svc := New(dir)
	got, err := svc.HashFile("f.txt")
	require.NoError(t, err)
	assert.Equal(t, HashBytes([]byte("content")), got)
}

func TestExtractAndWrite_WritesUnderCanonicalIterationDir(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	artifacts, err := svc.ExtractAndWrite(model.PhaseGenerate, 1, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "main.go", Content: "package main"},
	}))
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	assert.Equal(t, "iteration-1/code/main.go", artifacts[0].Path)
	assert.Equal(t, 1, artifacts[0].Iteration)
	require.NotNil(t, artifacts[0].SHA256)
	assert.Equal(t, HashBytes([]byte("package main")), *artifacts[0].SHA256)

	data, err := os.ReadFile(filepath.Join(dir, "iteration-1", "code", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))
}

func TestExtractAndWrite_StripsLegacyIterationPrefix(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	artifacts, err := svc.ExtractAndWrite(model.PhaseGenerate, 2, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "iteration-2/code/pkg/foo.go", Content: "package pkg"},
	}))
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "iteration-2/code/pkg/foo.go", artifacts[0].Path)
}

func TestExtractAndWrite_RefusesToClobberExistingFile(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	_, err := svc.ExtractAndWrite(model.PhaseGenerate, 1, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "main.go", Content: "first"},
	}))
	require.NoError(t, err)

	_, err = svc.ExtractAndWrite(model.PhaseGenerate, 1, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "main.go", Content: "second"},
	}))
	require.Error(t, err)
	var writeErr *WriteError
	assert.ErrorAs(t, err, &writeErr)
}

func TestExtractAndWrite_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	_, err := svc.ExtractAndWrite(model.PhaseGenerate, 1, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "../../etc/passwd", Content: "pwned"},
	}))
	assert.Error(t, err)
}

func TestCopyForward_FirstIterationIsNoOp(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	artifacts, err := svc.CopyForward(model.PhaseRevise, 1)
	require.NoError(t, err)
	assert.Nil(t, artifacts)
}

func TestCopyForward_CopiesMissingFilesOnly(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)

	_, err := svc.ExtractAndWrite(model.PhaseGenerate, 1, "irrelevant", fixedExtractor([]CodeFile{
		{Path: "unchanged.go", Content: "unchanged"},
		{Path: "will-be-revised.go", Content: "old"},
	}))
	require.NoError(t, err)

	revisedDir := filepath.Join(dir, "iteration-2", "code")
	require.NoError(t, os.MkdirAll(revisedDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(revisedDir, "will-be-revised.go"), []byte("new"), 0o644))

	artifacts, err := svc.CopyForward(model.PhaseRevise, 2)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "iteration-2/code/unchanged.go", artifacts[0].Path)

	data, err := os.ReadFile(filepath.Join(revisedDir, "will-be-revised.go"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data), "profile-produced file must not be overwritten by copy-forward")
}

func TestHashPromptIfEnabled_NoOpWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	state := model.NewWorkflowState("sess", "generic", model.WorkflowState{}.UpdatedAt)

	err := svc.HashPromptIfEnabled(state, "iteration-1/planning-prompt.md", false)
	require.NoError(t, err)
	assert.Empty(t, state.PromptHashes)
}

func TestHashPromptIfEnabled_NoOpWhenPromptMissing(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	state := model.NewWorkflowState("sess", "generic", model.WorkflowState{}.UpdatedAt)

	err := svc.HashPromptIfEnabled(state, "iteration-1/planning-prompt.md", true)
	require.NoError(t, err)
	assert.Empty(t, state.PromptHashes)
}

func TestHashPromptIfEnabled_RecordsHashWhenEnabledAndPresent(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	state := model.NewWorkflowState("sess", "generic", model.WorkflowState{}.UpdatedAt)

	rel := "iteration-1/planning-prompt.md"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "iteration-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte("prompt body"), 0o644))

	err := svc.HashPromptIfEnabled(state, rel, true)
	require.NoError(t, err)
	assert.Equal(t, HashBytes([]byte("prompt body")), state.PromptHashes[rel])
}
