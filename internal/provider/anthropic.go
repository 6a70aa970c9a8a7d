package provider

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	pkgerrors "github.com/pkg/errors"
)

// AnthropicProvider is the one concrete direct-API AI provider: a
// write-only generator (it has no filesystem, so the Prompt Assembler
// steers it toward producing a file the caller downloads rather than
// saving locally). Registered by cmd/aiwf, never imported by core
// packages, per §4.6's "core depends on interfaces, not concrete
// providers".
type AnthropicProvider struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	respTimeout time.Duration
}

// NewAnthropicProvider builds a provider from an API key and model name.
// apiKey empty means "read ANTHROPIC_API_KEY from the environment",
// matching the SDK client's own default option resolution.
func NewAnthropicProvider(apiKey string, model anthropic.Model) *AnthropicProvider {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   8192,
		respTimeout: 5 * time.Minute,
	}
}

func (p *AnthropicProvider) Validate(ctx context.Context) error {
	if p.model == "" {
		return pkgerrors.New("provider: anthropic model must be set")
	}
	return nil
}

func (p *AnthropicProvider) Metadata() Metadata {
	return Metadata{
		Key:                 "anthropic",
		FilesystemAbility:   FSWriteOnly,
		ConnectTimeoutSecs:  30,
		ResponseTimeoutSecs: int(p.respTimeout.Seconds()),
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, gctx GenerateContext) (*string, error) {
	if p.respTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.respTimeout)
		defer cancel()
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "provider: anthropic generate failed (session=%s phase=%s)", gctx.SessionID, gctx.Phase)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &text, nil
}
