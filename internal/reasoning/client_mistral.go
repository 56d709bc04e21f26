package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"lyra/internal/logging"
	"lyra/internal/tools"
)

// MistralClient implements Client against the Mistral chat-completions API.
type MistralClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// MistralConfig holds configuration for the Mistral client.
type MistralConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultMistralConfig returns sensible defaults.
func DefaultMistralConfig(apiKey string) MistralConfig {
	return MistralConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.mistral.ai/v1",
		Model:       "mistral-large-latest",
		Temperature: 0.1,
		MaxTokens:   4096,
		Timeout:     120 * time.Second,
	}
}

// NewMistralClient creates a new Mistral client with default config.
func NewMistralClient(apiKey string) *MistralClient {
	return NewMistralClientWithConfig(DefaultMistralConfig(apiKey))
}

// NewMistralClientWithConfig creates a new Mistral client with custom config.
func NewMistralClientWithConfig(config MistralConfig) *MistralClient {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &MistralClient{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralFunctionDef struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  tools.Schema `json:"parameters"`
}

type mistralTool struct {
	Type     string             `json:"type"`
	Function mistralFunctionDef `json:"function"`
}

type mistralRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Tools       []mistralTool    `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

type mistralToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type mistralResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string            `json:"role"`
			Content   string            `json:"content"`
			ToolCalls []mistralToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Invoke sends one chat completion and maps the response onto a Decision.
func (c *MistralClient) Invoke(ctx context.Context, systemPrompt, userPrompt string, ops []tools.Descriptor) (*Decision, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", ErrTransport)
	}

	// Rate limiting: ensure a minimum gap between requests
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 500*time.Millisecond {
		time.Sleep(500*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	messages := make([]mistralMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, mistralMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, mistralMessage{Role: "user", Content: userPrompt})

	reqBody := mistralRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, op := range ops {
		reqBody.Tools = append(reqBody.Tools, mistralTool{
			Type: "function",
			Function: mistralFunctionDef{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  op.Schema,
			},
		})
	}
	if len(reqBody.Tools) > 0 {
		reqBody.ToolChoice = "auto"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for 429 errors
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-ctx.Done():
				return nil, wrapCtxErr(ctx.Err())
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		logging.APIDebug("mistral request: model=%s tools=%d", c.model, len(reqBody.Tools))
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, wrapCtxErr(ctx.Err())
			}
			lastErr = errors.Join(ErrTransport, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Join(ErrTransport, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%w: rate limit exceeded (429)", ErrTransport)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(body))
		}

		return parseMistralResponse(body)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func parseMistralResponse(body []byte) (*Decision, error) {
	var mr mistralResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if mr.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", ErrTransport, mr.Error.Message)
	}
	if len(mr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion returned", ErrMalformedResponse)
	}

	msg := mr.Choices[0].Message
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

	logging.APIDebug("mistral response: ops=%d text_len=%d tokens=%d",
		len(decision.RequestedOps), len(decision.Text), mr.Usage.TotalTokens)
	return decision, nil
}

// SetModel changes the model used for completions.
func (c *MistralClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model.
func (c *MistralClient) GetModel() string {
	return c.model
}
