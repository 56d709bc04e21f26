package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"lyra/internal/logging"
	"lyra/internal/tools"
)

// OpenAIClient implements Client using the official openai-go SDK.
// Also serves any OpenAI-compatible endpoint via a custom base URL.
type OpenAIClient struct {
	model       string
	temperature float64
	opts        []option.RequestOption
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// NewOpenAIClient creates a new OpenAI-backed reasoning client.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if config.Model == "" {
		config.Model = "gpt-4o"
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &OpenAIClient{
		model:       config.Model,
		temperature: config.Temperature,
		opts:        opts,
	}, nil
}

// Invoke sends one chat completion with the operation catalog exposed as
// function tools, and maps the response onto a Decision.
func (c *OpenAIClient) Invoke(ctx context.Context, systemPrompt, userPrompt string, ops []tools.Descriptor) (*Decision, error) {
	client := openai.NewClient(c.opts...)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	for _, op := range ops {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        op.Name,
				Description: openai.String(op.Description),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"required":   op.Schema.Required,
					"properties": op.Schema.Properties,
				},
			},
		})
	}

	logging.APIDebug("openai request: model=%s tools=%d", c.model, len(params.Tools))
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, wrapCtxErr(ctx.Err())
		}
		return nil, errors.Join(ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}

	msg := resp.Choices[0].Message
	decision := &Decision{Text: strings.TrimSpace(msg.Content)}

	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: tool call %s arguments: %v", ErrMalformedResponse, tc.Function.Name, err)
			}
		}
		decision.RequestedOps = append(decision.RequestedOps, OpCall{
			Name: tc.Function.Name,
			Args: args,
		})
	}

	return decision, nil
}

// GetModel returns the current model.
func (c *OpenAIClient) GetModel() string {
	return c.model
}
