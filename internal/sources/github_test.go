package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyra/internal/config"
	"lyra/internal/tools"
)

func newGitHubTestAdapter(serverURL string) *GitHubAdapter {
	return NewGitHubAdapter(config.GitHubConfig{
		Enabled: true,
		BaseURL: serverURL,
		Token:   "token",
		Org:     "acme",
	}, 5*time.Second)
}

func TestGitHubSearchPRs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/issues", r.URL.Path)
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "type:pr")
		assert.Contains(t, q, "org:acme")

		w.Write([]byte(`{
			"total_count": 1,
			"items": [{
				"number": 42,
				"title": "DEV-101: add OAuth support",
				"body": "Implements DEV-101.",
				"state": "closed",
				"html_url": "https://example.com/acme/hub/pull/42",
				"repository_url": "https://api.example.com/repos/acme/hub"
			}]
		}`))
	}))
	defer srv.Close()

	adapter := newGitHubTestAdapter(srv.URL)
	payload, err := adapter.searchPRs(context.Background(), map[string]any{"query": "oauth"})
	require.NoError(t, err)

	var prs []PullRequest
	require.NoError(t, json.Unmarshal(payload, &prs))
	require.Len(t, prs, 1)
	assert.Equal(t, 42, prs[0].Number)
	assert.Equal(t, "acme/hub", prs[0].Repo)
	assert.Equal(t, []string{"DEV-101", "DEV-101"}, prs[0].LinkedTickets)
}

func TestGitHubGetPR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/hub/pulls/42", r.URL.Path)
		w.Write([]byte(`{
			"number": 42,
			"title": "Fix login redirect (DEV-202)",
			"body": "",
			"state": "closed",
			"merged_at": "2026-03-01T10:00:00Z",
			"additions": 120,
			"deletions": 30,
			"changed_files": 4,
			"html_url": "https://example.com/acme/hub/pull/42"
		}`))
	}))
	defer srv.Close()

	adapter := newGitHubTestAdapter(srv.URL)
	payload, err := adapter.getPR(context.Background(), map[string]any{"repo": "acme/hub", "number": float64(42)})
	require.NoError(t, err)

	var pr PullRequest
	require.NoError(t, json.Unmarshal(payload, &pr))
	assert.Equal(t, "2026-03-01T10:00:00Z", pr.MergedAt)
	assert.Equal(t, 120, pr.Additions)
	assert.Equal(t, []string{"DEV-202"}, pr.LinkedTickets)
}

func TestGitHubFileExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/hub/contents/docs/install.md" {
			w.Write([]byte(`{"name": "install.md"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := newGitHubTestAdapter(srv.URL)

	payload, err := adapter.fileExists(context.Background(), map[string]any{"repo": "acme/hub", "path": "docs/install.md"})
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, true, out["exists"])

	payload, err = adapter.fileExists(context.Background(), map[string]any{"repo": "acme/hub", "path": "docs/missing.md"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, false, out["exists"])
}

func TestGitHubGetPRBadArgs(t *testing.T) {
	adapter := newGitHubTestAdapter("http://unused")
	_, err := adapter.getPR(context.Background(), map[string]any{"repo": "acme/hub", "number": "forty-two"})
	assert.ErrorIs(t, err, tools.ErrMalformedArgs)
}

func TestRegisterAll(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources.Jira.Enabled = true
	cfg.Sources.Jira.BaseURL = "http://jira.local"
	cfg.Sources.GitHub.Enabled = true
	cfg.Sources.Slack.Enabled = true

	reg := tools.NewRegistry()
	require.NoError(t, RegisterAll(reg, cfg))

	assert.Equal(t, 9, reg.Count())
	assert.Equal(t, []string{"github", "jira", "slack"}, reg.Categories())
	assert.True(t, reg.Has("jira_release_tickets"))
	assert.True(t, reg.Has("github_file_exists"))
	assert.False(t, reg.Has("confluence_get_page"))
}
