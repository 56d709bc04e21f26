package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"lyra/internal/config"
	"lyra/internal/tools"
)

// ticketKeyPattern matches tracker keys like DEV-123 in PR titles and bodies.
var ticketKeyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)

// GitHubAdapter exposes the code review platform as github_* operations.
type GitHubAdapter struct {
	client *restClient
	org    string
}

// NewGitHubAdapter builds the adapter from config. Token auth, REST v3.
func NewGitHubAdapter(cfg config.GitHubConfig, timeout time.Duration) *GitHubAdapter {
	headers := map[string]string{
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	return &GitHubAdapter{
		client: newRESTClient(cfg.BaseURL, timeout, headers),
		org:    cfg.Org,
	}
}

// PullRequest is the distilled payload returned by github_* operations.
type PullRequest struct {
	Number        int      `json:"number"`
	Repo          string   `json:"repo,omitempty"`
	Title         string   `json:"title"`
	Body          string   `json:"body,omitempty"`
	State         string   `json:"state"`
	MergedAt      string   `json:"merged_at,omitempty"`
	Additions     int      `json:"additions,omitempty"`
	Deletions     int      `json:"deletions,omitempty"`
	ChangedFiles  int      `json:"changed_files,omitempty"`
	LinkedTickets []string `json:"linked_tickets,omitempty"`
	URL           string   `json:"url,omitempty"`
}

type githubSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		State   string `json:"state"`
		HTMLURL string `json:"html_url"`
		RepoURL string `json:"repository_url"`
	} `json:"items"`
}

type githubPull struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"`
	MergedAt     string `json:"merged_at"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
	HTMLURL      string `json:"html_url"`
}

// Register adds the github_* operations to the registry.
func (a *GitHubAdapter) Register(reg *tools.Registry) error {
	ops := []*tools.Operation{
		{
			Name:        "github_search_prs",
			Description: "Search pull requests by keywords or ticket key across the organisation.",
			Invoke:      a.searchPRs,
			Schema: tools.Schema{
				Required: []string{"query"},
				Properties: map[string]tools.Property{
					"query": {Type: "string", Description: "search terms, e.g. a ticket key or feature name"},
					"repo":  {Type: "string", Description: "restrict to one repository (owner/name)"},
					"state": {Type: "string", Description: "open, closed or all", Enum: []any{"open", "closed", "all"}},
				},
			},
		},
		{
			Name:        "github_get_pr",
			Description: "Get one pull request with change statistics and linked ticket keys.",
			Invoke:      a.getPR,
			Schema: tools.Schema{
				Required: []string{"repo", "number"},
				Properties: map[string]tools.Property{
					"repo":   {Type: "string", Description: "repository as owner/name"},
					"number": {Type: "integer", Description: "pull request number"},
				},
			},
		},
		{
			Name:        "github_prs_for_ticket",
			Description: "Find all pull requests that reference a tracker ticket key.",
			Invoke:      a.prsForTicket,
			Schema: tools.Schema{
				Required: []string{"ticket_id"},
				Properties: map[string]tools.Property{
					"ticket_id": {Type: "string", Description: "ticket key, e.g. DEV-123"},
				},
			},
		},
		{
			Name:        "github_file_exists",
			Description: "Check whether a file exists in a repository branch.",
			Invoke:      a.fileExists,
			Schema: tools.Schema{
				Required: []string{"repo", "path"},
				Properties: map[string]tools.Property{
					"repo":   {Type: "string", Description: "repository as owner/name"},
					"path":   {Type: "string", Description: "file path within the repository"},
					"branch": {Type: "string", Description: "branch to check (default main)"},
				},
			},
		},
	}
	for _, op := range ops {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func (a *GitHubAdapter) search(ctx context.Context, query string) ([]PullRequest, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", "50")

	var resp githubSearchResponse
	if err := a.client.getJSON(ctx, "/search/issues", q, &resp); err != nil {
		return nil, err
	}

	prs := make([]PullRequest, 0, len(resp.Items))
	for _, item := range resp.Items {
		prs = append(prs, PullRequest{
			Number:        item.Number,
			Repo:          repoFromAPIURL(item.RepoURL),
			Title:         item.Title,
			State:         item.State,
			LinkedTickets: ticketKeyPattern.FindAllString(item.Title+" "+item.Body, -1),
			URL:           item.HTMLURL,
		})
	}
	return prs, nil
}

func (a *GitHubAdapter) searchPRs(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	terms := query + " type:pr"
	if repo := optionalStringArg(args, "repo", ""); repo != "" {
		terms += " repo:" + repo
	} else if a.org != "" {
		terms += " org:" + a.org
	}
	if state := optionalStringArg(args, "state", "all"); state != "all" {
		terms += " state:" + state
	}

	prs, err := a.search(ctx, terms)
	if err != nil {
		return nil, err
	}
	return json.Marshal(prs)
}

func (a *GitHubAdapter) getPR(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	repo, err := stringArg(args, "repo")
	if err != nil {
		return nil, err
	}
	number, err := intArg(args, "number")
	if err != nil {
		return nil, err
	}

	var pull githubPull
	path := fmt.Sprintf("/repos/%s/pulls/%d", repo, number)
	if err := a.client.getJSON(ctx, path, nil, &pull); err != nil {
		return nil, err
	}

	return json.Marshal(PullRequest{
		Number:        pull.Number,
		Repo:          repo,
		Title:         pull.Title,
		Body:          pull.Body,
		State:         pull.State,
		MergedAt:      pull.MergedAt,
		Additions:     pull.Additions,
		Deletions:     pull.Deletions,
		ChangedFiles:  pull.ChangedFiles,
		LinkedTickets: ticketKeyPattern.FindAllString(pull.Title+" "+pull.Body, -1),
		URL:           pull.HTMLURL,
	})
}

func (a *GitHubAdapter) prsForTicket(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	ticket, err := stringArg(args, "ticket_id")
	if err != nil {
		return nil, err
	}
	terms := fmt.Sprintf("%q type:pr", ticket)
	if a.org != "" {
		terms += " org:" + a.org
	}
	prs, err := a.search(ctx, terms)
	if err != nil {
		return nil, err
	}
	return json.Marshal(prs)
}

func (a *GitHubAdapter) fileExists(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	repo, err := stringArg(args, "repo")
	if err != nil {
		return nil, err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	branch := optionalStringArg(args, "branch", "main")

	q := url.Values{}
	q.Set("ref", branch)
	err = a.client.getJSON(ctx, "/repos/"+repo+"/contents/"+path, q, nil)
	exists := err == nil
	if err != nil && !errors.Is(err, tools.ErrNotFound) {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"repo":   repo,
		"path":   path,
		"branch": branch,
		"exists": exists,
	})
}

// repoFromAPIURL extracts owner/name from an API repository URL.
func repoFromAPIURL(apiURL string) string {
	const marker = "/repos/"
	if i := strings.Index(apiURL, marker); i >= 0 {
		return apiURL[i+len(marker):]
	}
	return ""
}
