package llm

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicProvider implements Provider on top of Anthropic's Messages API.
type AnthropicProvider struct {
	msg   messagesClient
	model string
}

// NewAnthropic builds a Provider from an API key and model identifier.
func NewAnthropic(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{msg: &client.Messages, model: model}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, opts Options) (Response, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Text:      text,
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error) {
	// Callers only rely on the final chunk carrying usage, so Stream
	// degrades to one Complete call surfaced as a single final chunk. A
	// true SSE decoder is outside this package's scope.
	resp, err := p.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan Chunk, 1)
	ch <- Chunk{Delta: resp.Text, Final: true, TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}
	close(ch)
	return ch, nil
}
