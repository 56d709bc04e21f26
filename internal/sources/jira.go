package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"lyra/internal/config"
	"lyra/internal/tools"
)

// JiraAdapter exposes the ticket tracker as jira_* operations.
type JiraAdapter struct {
	client  *restClient
	project string
}

// NewJiraAdapter builds the adapter from config. Basic auth, v2 REST API.
func NewJiraAdapter(cfg config.JiraConfig, timeout time.Duration) *JiraAdapter {
	headers := map[string]string{}
	if cfg.User != "" && cfg.APIToken != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.APIToken))
		headers["Authorization"] = "Basic " + creds
	}
	return &JiraAdapter{
		client:  newRESTClient(cfg.BaseURL, timeout, headers),
		project: cfg.Project,
	}
}

// Ticket is the distilled payload returned by jira_* operations.
type Ticket struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	FixVersions []string  `json:"fix_versions,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
	LinkedKeys  []string  `json:"linked_keys,omitempty"`
}

// Comment is a single ticket comment.
type Comment struct {
	Author  string `json:"author"`
	Created string `json:"created"`
	Body    string `json:"body"`
}

// Wire shapes for the upstream v2 API. Only the fields we distill.
type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		FixVersions []struct {
			Name string `json:"name"`
		} `json:"fixVersions"`
		Comment struct {
			Comments []struct {
				Author struct {
					DisplayName string `json:"displayName"`
				} `json:"author"`
				Created string `json:"created"`
				Body    string `json:"body"`
			} `json:"comments"`
		} `json:"comment"`
		IssueLinks []struct {
			InwardIssue *struct {
				Key string `json:"key"`
			} `json:"inwardIssue"`
			OutwardIssue *struct {
				Key string `json:"key"`
			} `json:"outwardIssue"`
		} `json:"issuelinks"`
	} `json:"fields"`
}

type jiraSearchResponse struct {
	Issues []jiraIssue `json:"issues"`
	Total  int         `json:"total"`
}

func (i jiraIssue) distill() Ticket {
	t := Ticket{
		Key:         i.Key,
		Summary:     i.Fields.Summary,
		Status:      i.Fields.Status.Name,
		Description: i.Fields.Description,
	}
	for _, fv := range i.Fields.FixVersions {
		t.FixVersions = append(t.FixVersions, fv.Name)
	}
	for _, c := range i.Fields.Comment.Comments {
		t.Comments = append(t.Comments, Comment{
			Author:  c.Author.DisplayName,
			Created: c.Created,
			Body:    c.Body,
		})
	}
	for _, l := range i.Fields.IssueLinks {
		if l.InwardIssue != nil {
			t.LinkedKeys = append(t.LinkedKeys, l.InwardIssue.Key)
		}
		if l.OutwardIssue != nil {
			t.LinkedKeys = append(t.LinkedKeys, l.OutwardIssue.Key)
		}
	}
	return t
}

// Register adds the jira_* operations to the registry.
func (a *JiraAdapter) Register(reg *tools.Registry) error {
	ops := []*tools.Operation{
		{
			Name:        "jira_search_tickets",
			Description: "Search tickets with a JQL query. Returns distilled tickets with status, fix versions and comments.",
			Invoke:      a.searchTickets,
			Schema: tools.Schema{
				Required: []string{"jql"},
				Properties: map[string]tools.Property{
					"jql":         {Type: "string", Description: "JQL query string"},
					"max_results": {Type: "integer", Description: "maximum tickets to return (default 50)"},
				},
			},
		},
		{
			Name:        "jira_get_ticket",
			Description: "Get one ticket by key, including description and comments.",
			Invoke:      a.getTicket,
			Schema: tools.Schema{
				Required: []string{"ticket_id"},
				Properties: map[string]tools.Property{
					"ticket_id": {Type: "string", Description: "ticket key, e.g. DEV-123"},
				},
			},
		},
		{
			Name:        "jira_release_tickets",
			Description: "List all tickets assigned to a release fix version.",
			Invoke:      a.releaseTickets,
			Schema: tools.Schema{
				Required: []string{"release_version"},
				Properties: map[string]tools.Property{
					"release_version": {Type: "string", Description: "release version, e.g. v2.1"},
				},
			},
		},
		{
			Name:        "jira_linked_tickets",
			Description: "Follow issue links from a ticket and return the linked tickets.",
			Invoke:      a.linkedTickets,
			Schema: tools.Schema{
				Required: []string{"ticket_id"},
				Properties: map[string]tools.Property{
					"ticket_id": {Type: "string", Description: "ticket key to follow links from"},
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

func (a *JiraAdapter) search(ctx context.Context, jql string, maxResults int) ([]Ticket, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	q.Set("fields", "summary,description,status,fixVersions,comment,issuelinks")

	var resp jiraSearchResponse
	if err := a.client.getJSON(ctx, "/rest/api/2/search", q, &resp); err != nil {
		return nil, err
	}
	tickets := make([]Ticket, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		tickets = append(tickets, issue.distill())
	}
	return tickets, nil
}

func (a *JiraAdapter) searchTickets(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	jql, err := stringArg(args, "jql")
	if err != nil {
		return nil, err
	}
	tickets, err := a.search(ctx, jql, optionalIntArg(args, "max_results", 50))
	if err != nil {
		return nil, err
	}
	return json.Marshal(tickets)
}

func (a *JiraAdapter) getTicket(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	key, err := stringArg(args, "ticket_id")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("fields", "summary,description,status,fixVersions,comment,issuelinks")

	var issue jiraIssue
	if err := a.client.getJSON(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &issue); err != nil {
		return nil, err
	}
	return json.Marshal(issue.distill())
}

func (a *JiraAdapter) releaseTickets(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	version, err := stringArg(args, "release_version")
	if err != nil {
		return nil, err
	}
	jql := fmt.Sprintf("project = %s AND fixVersion = %q ORDER BY created DESC", a.project, version)
	tickets, err := a.search(ctx, jql, 50)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tickets)
}

func (a *JiraAdapter) linkedTickets(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	key, err := stringArg(args, "ticket_id")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("fields", "summary,description,status,fixVersions,comment,issuelinks")

	var issue jiraIssue
	if err := a.client.getJSON(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &issue); err != nil {
		return nil, err
	}

	root := issue.distill()
	linked := make([]Ticket, 0, len(root.LinkedKeys))
	for _, lk := range root.LinkedKeys {
		var li jiraIssue
		if err := a.client.getJSON(ctx, "/rest/api/2/issue/"+url.PathEscape(lk), q, &li); err != nil {
			// A broken link is not fatal; the remaining links still count.
			continue
		}
		linked = append(linked, li.distill())
	}
	return json.Marshal(linked)
}
