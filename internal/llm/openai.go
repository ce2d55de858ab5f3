package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatClient captures the subset of the OpenAI SDK used here, so tests can
// substitute a fake without a live API key.
type chatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIProvider implements Provider as the second selectable adapter.
type OpenAIProvider struct {
	chat  chatClient
	model string
}

// NewOpenAI builds a Provider from an API key and model identifier.
func NewOpenAI(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if model == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{chat: &client.Chat.Completions, model: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, opts Options) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.chat.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai: chat.completions.new: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai: empty choices in response")
	}

	return Response{
		Text:      resp.Choices[0].Message.Content,
		TokensIn:  int(resp.Usage.PromptTokens),
		TokensOut: int(resp.Usage.CompletionTokens),
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error) {
	// As with the Anthropic adapter, the core's streaming contract only
	// requires a final chunk carrying usage; true SSE decoding is outside
	// this core's scope.
	resp, err := p.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan Chunk, 1)
	ch <- Chunk{Delta: resp.Text, Final: true, TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}
	close(ch)
	return ch, nil
}
