// Package render turns approved drafts into deliverables: markdown files on
// disk, standalone HTML exports, and styled terminal previews.
package render

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"lyra/internal/logging"
	"lyra/internal/workflow"
)

// SaveDraft persists a draft as markdown under
// <outputDir>/<project>/<kind>/<id>.md and returns the path.
func SaveDraft(outputDir, project string, draft *workflow.Draft) (string, error) {
	if draft == nil {
		return "", fmt.Errorf("no draft to save")
	}

	dir := filepath.Join(outputDir, project, draft.Kind)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".md")
	if err := os.WriteFile(path, []byte(draft.Body), 0644); err != nil {
		return "", fmt.Errorf("failed to write draft: %w", err)
	}

	logging.Boot("draft %q saved to %s", draft.Title, path)
	return path, nil
}

// ToHTML converts a draft's markdown body into a standalone HTML document.
func ToHTML(draft *workflow.Draft) (string, error) {
	if draft == nil {
		return "", fmt.Errorf("no draft to render")
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(draft.Body), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(fmt.Sprintf("<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(draft.Title)))
	b.WriteString("</head>\n<body>\n")
	b.Write(buf.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// ExportHTML writes the HTML rendering next to a markdown draft path,
// swapping the extension.
func ExportHTML(draftPath string, draft *workflow.Draft) (string, error) {
	html, err := ToHTML(draft)
	if err != nil {
		return "", err
	}
	path := strings.TrimSuffix(draftPath, filepath.Ext(draftPath)) + ".html"
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write html export: %w", err)
	}
	return path, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	metaStyle   = lipgloss.NewStyle().Faint(true)
)

// Preview renders a workflow result for the terminal: a styled header with
// outcome metadata, then the draft body through glamour. Falls back to plain
// text when the terminal renderer cannot be constructed.
func Preview(result *workflow.Result, width int) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Lyra run finished: %s", result.TerminalState)))
	b.WriteString("\n")
	meta := fmt.Sprintf("iterations=%d revisions=%d", result.Iteration, result.RevisionCount)
	if result.Critique != nil {
		meta += fmt.Sprintf(" quality=%.2f", result.Critique.QualityScore)
	}
	if result.Reason != "" {
		meta += " reason=" + result.Reason
	}
	b.WriteString(metaStyle.Render(meta))
	b.WriteString("\n\n")

	if result.Draft == nil {
		b.WriteString("No draft was produced.\n")
		return b.String()
	}

	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		b.WriteString(result.Draft.Body)
		b.WriteString("\n")
		return b.String()
	}

	rendered, err := renderer.Render(result.Draft.Body)
	if err != nil {
		rendered = result.Draft.Body + "\n"
	}
	b.WriteString(rendered)
	return b.String()
}
