package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_MetadataIsWriteOnly(t *testing.T) {
	p := NewAnthropicProvider("test-key", "claude-sonnet-4-20250514")
	md := p.Metadata()
	assert.Equal(t, "anthropic", md.Key)
	assert.Equal(t, FSWriteOnly, md.FilesystemAbility)
}

func TestAnthropicProvider_ValidateFailsWithoutModel(t *testing.T) {
	p := NewAnthropicProvider("test-key", "")
	err := p.Validate(context.Background())
	assert.Error(t, err)
}

func TestAnthropicProvider_ValidatePassesWithModel(t *testing.T) {
	p := NewAnthropicProvider("test-key", "claude-sonnet-4-20250514")
	require.NoError(t, p.Validate(context.Background()))
}
