package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyra/internal/tools"
)

func testOps() []tools.Descriptor {
	return []tools.Descriptor{
		{
			Name:        "jira_search_tickets",
			Description: "search tickets",
			Schema: tools.Schema{
				Required:   []string{"query"},
				Properties: map[string]tools.Property{"query": {Type: "string"}},
			},
		},
	}
}

func newTestClient(serverURL string) *MistralClient {
	cfg := DefaultMistralConfig("test-key")
	cfg.BaseURL = serverURL
	cfg.Timeout = 5 * time.Second
	return NewMistralClientWithConfig(cfg)
}

func TestMistralInvokeToolCalls(t *testing.T) {
	var gotReq mistralRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"function": {"name": "jira_search_tickets", "arguments": "{\"query\": \"release 2.4\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"total_tokens": 42}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	decision, err := client.Invoke(context.Background(), "system", "find the tickets", testOps())
	require.NoError(t, err)

	assert.True(t, decision.HasOps())
	require.Len(t, decision.RequestedOps, 1)
	assert.Equal(t, "jira_search_tickets", decision.RequestedOps[0].Name)
	assert.Equal(t, "release 2.4", decision.RequestedOps[0].Args["query"])

	// The operation catalog must be forwarded as function tools.
	require.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "function", gotReq.Tools[0].Type)
	assert.Equal(t, "jira_search_tickets", gotReq.Tools[0].Function.Name)
	assert.Equal(t, "auto", gotReq.ToolChoice)
}

func TestMistralInvokeFreeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  # Release Notes\n\nBody.  "}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	decision, err := client.Invoke(context.Background(), "", "write it", nil)
	require.NoError(t, err)

	assert.False(t, decision.HasOps())
	assert.Equal(t, "# Release Notes\n\nBody.", decision.Text)
}

func TestMistralInvokeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Invoke(context.Background(), "s", "u", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestMistralInvokeMalformedToolArgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "",
			"tool_calls": [{"id": "c", "function": {"name": "jira_search_tickets", "arguments": "{broken"}}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Invoke(context.Background(), "s", "u", testOps())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestMistralInvokeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Invoke(context.Background(), "s", "u", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestMistralInvokeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "invalid model", "type": "invalid_request"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Invoke(context.Background(), "s", "u", nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestMistralInvokeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	decision, err := client.Invoke(context.Background(), "s", "u", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", decision.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMistralInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()

	_, err := client.Invoke(ctx, "s", "u", nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMistralInvokeMissingAPIKey(t *testing.T) {
	client := NewMistralClient("")
	_, err := client.Invoke(context.Background(), "s", "u", nil)
	assert.ErrorIs(t, err, ErrTransport)
}
