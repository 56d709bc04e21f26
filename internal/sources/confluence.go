package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"lyra/internal/config"
	"lyra/internal/tools"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// ConfluenceAdapter exposes the wiki as confluence_* operations.
type ConfluenceAdapter struct {
	client *restClient
}

// NewConfluenceAdapter builds the adapter from config. Basic auth, CQL search.
func NewConfluenceAdapter(cfg config.ConfluenceConfig, timeout time.Duration) *ConfluenceAdapter {
	headers := map[string]string{}
	if cfg.User != "" && cfg.APIToken != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.APIToken))
		headers["Authorization"] = "Basic " + creds
	}
	return &ConfluenceAdapter{client: newRESTClient(cfg.BaseURL, timeout, headers)}
}

// Page is the distilled payload returned by confluence_* operations.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space string `json:"space,omitempty"`
	Body  string `json:"body,omitempty"`
	URL   string `json:"url,omitempty"`
}

type confluenceContent struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

type confluenceSearchResponse struct {
	Results []confluenceContent `json:"results"`
}

func (c confluenceContent) distill(includeBody bool) Page {
	p := Page{
		ID:    c.ID,
		Title: c.Title,
		Space: c.Space.Key,
		URL:   c.Links.WebUI,
	}
	if includeBody {
		// Storage format is XHTML; strip markup to keep evidence compact.
		p.Body = htmlTagPattern.ReplaceAllString(c.Body.Storage.Value, "")
	}
	return p
}

// Register adds the confluence_* operations to the registry.
func (a *ConfluenceAdapter) Register(reg *tools.Registry) error {
	ops := []*tools.Operation{
		{
			Name:        "confluence_search_pages",
			Description: "Search wiki pages by text. Returns page titles and identifiers.",
			Invoke:      a.searchPages,
			Schema: tools.Schema{
				Required: []string{"query"},
				Properties: map[string]tools.Property{
					"query": {Type: "string", Description: "full-text search terms"},
					"limit": {Type: "integer", Description: "maximum pages to return (default 10)"},
				},
			},
		},
		{
			Name:        "confluence_get_page",
			Description: "Get one wiki page with its text content.",
			Invoke:      a.getPage,
			Schema: tools.Schema{
				Required: []string{"page_id"},
				Properties: map[string]tools.Property{
					"page_id": {Type: "string", Description: "page identifier"},
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

func (a *ConfluenceAdapter) searchPages(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("cql", `text ~ "`+query+`"`)
	q.Set("limit", strconv.Itoa(optionalIntArg(args, "limit", 10)))

	var resp confluenceSearchResponse
	if err := a.client.getJSON(ctx, "/rest/api/content/search", q, &resp); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(resp.Results))
	for _, c := range resp.Results {
		pages = append(pages, c.distill(false))
	}
	return json.Marshal(pages)
}

func (a *ConfluenceAdapter) getPage(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	id, err := stringArg(args, "page_id")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("expand", "body.storage,space")

	var content confluenceContent
	if err := a.client.getJSON(ctx, "/rest/api/content/"+url.PathEscape(id), q, &content); err != nil {
		return nil, err
	}
	return json.Marshal(content.distill(true))
}
