package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"lyra/internal/config"
	"lyra/internal/tools"
)

// GDocsAdapter exposes the hosted document store as gdocs_* operations.
type GDocsAdapter struct {
	client *restClient
}

// NewGDocsAdapter builds the adapter from config. The credentials file holds a
// bearer access token, one line. Token refresh is out of scope; operators
// rotate the file.
func NewGDocsAdapter(cfg config.GDocsConfig, timeout time.Duration) *GDocsAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = "https://docs.googleapis.com"
	}
	headers := map[string]string{}
	if cfg.CredentialsFile != "" {
		if raw, err := os.ReadFile(cfg.CredentialsFile); err == nil {
			headers["Authorization"] = "Bearer " + strings.TrimSpace(string(raw))
		}
	}
	return &GDocsAdapter{client: newRESTClient(base, timeout, headers)}
}

// Document is the distilled payload returned by gdocs_get_document.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type gdocsDocument struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Body       struct {
		Content []struct {
			Paragraph *struct {
				Elements []struct {
					TextRun *struct {
						Content string `json:"content"`
					} `json:"textRun"`
				} `json:"elements"`
			} `json:"paragraph"`
		} `json:"content"`
	} `json:"body"`
}

// Register adds the gdocs_* operations to the registry.
func (a *GDocsAdapter) Register(reg *tools.Registry) error {
	return reg.Register(&tools.Operation{
		Name:        "gdocs_get_document",
		Description: "Get a hosted document as plain text.",
		Invoke:      a.getDocument,
		Schema: tools.Schema{
			Required: []string{"document_id"},
			Properties: map[string]tools.Property{
				"document_id": {Type: "string", Description: "document identifier"},
			},
		},
	})
}

func (a *GDocsAdapter) getDocument(ctx context.Context, args map[string]any) (json.RawMessage, error) {
	id, err := stringArg(args, "document_id")
	if err != nil {
		return nil, err
	}

	var doc gdocsDocument
	if err := a.client.getJSON(ctx, "/v1/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, c := range doc.Body.Content {
		if c.Paragraph == nil {
			continue
		}
		for _, e := range c.Paragraph.Elements {
			if e.TextRun != nil {
				b.WriteString(e.TextRun.Content)
			}
		}
	}

	if doc.DocumentID == "" {
		return nil, fmt.Errorf("%w: empty document response", tools.ErrTransport)
	}
	return json.Marshal(Document{ID: doc.DocumentID, Title: doc.Title, Text: b.String()})
}
