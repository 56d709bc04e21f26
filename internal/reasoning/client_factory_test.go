package reasoning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyra/internal/config"
)

func TestNewClientMistral(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "key"
	cfg.LLM.Timeout = "30s"

	client, err := NewClient(cfg)
	require.NoError(t, err)

	mc, ok := client.(*MistralClient)
	require.True(t, ok, "expected *MistralClient, got %T", client)
	assert.Equal(t, "mistral-large-latest", mc.GetModel())
	assert.Equal(t, 30*time.Second, mc.httpClient.Timeout)
}

func TestNewClientDefaultsToMistral(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = ""
	cfg.LLM.APIKey = "key"

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MistralClient{}, client)
}

func TestNewClientOpenAI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "key"
	cfg.LLM.Model = "gpt-4o-mini"

	client, err := NewClient(cfg)
	require.NoError(t, err)

	oc, ok := client.(*OpenAIClient)
	require.True(t, ok, "expected *OpenAIClient, got %T", client)
	assert.Equal(t, "gpt-4o-mini", oc.GetModel())
}

func TestNewClientOpenAIRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "openai"

	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestNewClientUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "cohere"

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reasoning provider")
}
