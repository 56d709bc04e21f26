// Package sources provides thin adapters over external knowledge sources.
// Each adapter registers a namespace of operations (jira_*, github_*,
// confluence_*, slack_*, gdocs_*) in the operation registry. Adapters fetch,
// distill to compact JSON payloads, and never interpret content.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lyra/internal/config"
	"lyra/internal/logging"
	"lyra/internal/tools"
)

// RegisterAll wires every enabled source adapter into the registry.
// The registry is frozen by the caller once all adapters are in.
func RegisterAll(reg *tools.Registry, cfg *config.Config) error {
	timeout := cfg.SourceTimeout()

	if cfg.Sources.Jira.Enabled {
		if err := NewJiraAdapter(cfg.Sources.Jira, timeout).Register(reg); err != nil {
			return fmt.Errorf("jira adapter: %w", err)
		}
	}
	if cfg.Sources.GitHub.Enabled {
		if err := NewGitHubAdapter(cfg.Sources.GitHub, timeout).Register(reg); err != nil {
			return fmt.Errorf("github adapter: %w", err)
		}
	}
	if cfg.Sources.Confluence.Enabled {
		if err := NewConfluenceAdapter(cfg.Sources.Confluence, timeout).Register(reg); err != nil {
			return fmt.Errorf("confluence adapter: %w", err)
		}
	}
	if cfg.Sources.Slack.Enabled {
		if err := NewSlackAdapter(cfg.Sources.Slack, timeout).Register(reg); err != nil {
			return fmt.Errorf("slack adapter: %w", err)
		}
	}
	if cfg.Sources.GDocs.Enabled {
		if err := NewGDocsAdapter(cfg.Sources.GDocs, timeout).Register(reg); err != nil {
			return fmt.Errorf("gdocs adapter: %w", err)
		}
	}

	logging.Tools("registered %d source operations across %v", reg.Count(), reg.Categories())
	return nil
}

// restClient is the shared bounded-timeout JSON helper behind every adapter.
type restClient struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

func newRESTClient(baseURL string, timeout time.Duration, headers map[string]string) *restClient {
	return &restClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
	}
}

// getJSON performs a GET and decodes the response body into out.
// Upstream status codes map onto the shared adapter error taxonomy.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", tools.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	logging.ToolsDebug("GET %s", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", tools.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", tools.ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", tools.ErrNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", tools.ErrRateLimited, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d: %s", tools.ErrTransport, resp.StatusCode, truncate(string(body), 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", tools.ErrTransport, err)
	}
	return nil
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", tools.ErrMalformedArgs, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", tools.ErrMalformedArgs, key)
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument, returning def when absent.
func optionalStringArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return def
}

// optionalIntArg extracts an optional integer argument. JSON numbers arrive as
// float64 through the decoder.
func optionalIntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// intArg extracts a required integer argument.
func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q must be an integer", tools.ErrMalformedArgs, key)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
