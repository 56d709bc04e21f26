package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"lyra/internal/config"
	"lyra/internal/tools"
)

// SlackAdapter exposes chat history as slack_* operations.
type SlackAdapter struct {
	client   *restClient
	channels []string
}

// NewSlackAdapter builds the adapter from config. Bearer token, Web API.
func NewSlackAdapter(cfg config.SlackConfig, timeout time.Duration) *SlackAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = "https://slack.com/api"
	}
	headers := map[string]string{}
	if cfg.BotToken != "" {
		headers["Authorization"] = "Bearer " + cfg.BotToken
	}
	return &SlackAdapter{
		client:   newRESTClient(base, timeout, headers),
		channels: cfg.Channels,
	}
}

// Message is the distilled payload returned by slack_search_messages.
type Message struct {
	Channel   string `json:"channel"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Permalink string `json:"permalink,omitempty"`
}

type slackSearchResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Messages struct {
		Matches []struct {
			Channel struct {
				Name string `json:"name"`
			} `json:"channel"`
			Username  string `json:"username"`
			Text      string `json:"text"`
			TS        string `json:"ts"`
			Permalink string `json:"permalink"`
		} `json:"matches"`
	} `json:"messages"`
}

// Register adds the slack_* operations to the registry.
func (a *SlackAdapter) Register(reg *tools.Registry) error {
	return reg.Register(&tools.Operation{
		Name:        "slack_search_messages",
		Description: "Search chat messages for discussion context around a topic or ticket.",
		Invoke:      a.searchMessages,
		Schema: tools.Schema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "search terms"},
				"count": {Type: "integer", Description: "maximum messages to return (default 20)"},
			},
		},
	})
}

func (a *SlackAdapter) searchMessages(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	// Scope the search to the configured channels when set.
	for _, ch := range a.channels {
		query += " in:#" + ch
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("count", strconv.Itoa(optionalIntArg(args, "count", 20)))

	var resp slackSearchResponse
	if err := a.client.getJSON(ctx, "/search.messages", q, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("%w: slack api: %s", tools.ErrTransport, resp.Error)
	}

	messages := make([]Message, 0, len(resp.Messages.Matches))
	for _, m := range resp.Messages.Matches {
		messages = append(messages, Message{
			Channel:   m.Channel.Name,
			User:      m.Username,
			Text:      m.Text,
			Timestamp: m.TS,
			Permalink: m.Permalink,
		})
	}
	return json.Marshal(messages)
}
