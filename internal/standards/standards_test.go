package standards

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottcm/aiwf-engine/internal/artifact"
)

func TestFileBundleProvider_MaterializeConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	require.NoError(t, os.WriteFile(a, []byte("alpha rules"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("beta rules"), 0o644))

	p := NewFileBundleProvider([]string{a, b})
	bundle, err := p.Materialize(context.Background())
	require.NoError(t, err)

	assert.Contains(t, bundle, "## "+a)
	assert.Contains(t, bundle, "alpha rules")
	assert.Contains(t, bundle, "## "+b)
	assert.Contains(t, bundle, "beta rules")
	assert.Less(t, indexOf(bundle, "alpha rules"), indexOf(bundle, "beta rules"))
}

func TestFileBundleProvider_ValidateFailsOnMissingFile(t *testing.T) {
	p := NewFileBundleProvider([]string{"/nonexistent/standards.md"})
	err := p.Validate(context.Background())
	assert.Error(t, err)
}

func TestFileBundleProvider_ValidatePassesWhenAllFilesExist(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.md")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	p := NewFileBundleProvider([]string{f})
	assert.NoError(t, p.Validate(context.Background()))
}

func TestNoneProvider_MaterializesEmptyBundle(t *testing.T) {
	var p NoneProvider
	bundle, err := p.Materialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bundle)
	assert.NoError(t, p.Validate(context.Background()))
}

func TestBundleHash_MatchesArtifactHashBytes(t *testing.T) {
	assert.Equal(t, artifact.HashBytes([]byte("bundle text")), BundleHash("bundle text"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
