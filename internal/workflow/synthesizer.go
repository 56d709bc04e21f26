package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lyra/internal/logging"
	"lyra/internal/prompt"
	"lyra/internal/reasoning"
)

// defaultTitle is used when the generated text carries no heading line.
const defaultTitle = "Untitled Document"

// draftConfidence is the fixed confidence attached to generated drafts until
// the reasoning capability reports a structured confidence signal.
const draftConfidence = 0.8

// ExemplarSource supplies style exemplars for synthesis prompts. Optional
// collaborator; failures and empty results both mean "no exemplars".
type ExemplarSource interface {
	Query(ctx context.Context, docKind, queryText string, n int) []string
}

// SynthesizerStep produces a new draft from the accumulated evidence.
type SynthesizerStep struct {
	client        reasoning.Client
	prompts       *prompt.Library
	exemplars     ExemplarSource
	exemplarCount int
}

// NewSynthesizerStep wires the synthesis step. exemplars may be nil.
func NewSynthesizerStep(client reasoning.Client, prompts *prompt.Library,
	exemplars ExemplarSource, exemplarCount int) *SynthesizerStep {
	return &SynthesizerStep{
		client:        client,
		prompts:       prompts,
		exemplars:     exemplars,
		exemplarCount: exemplarCount,
	}
}

// Synthesize invokes the reasoning capability once and replaces st.Draft
// wholesale with a brand-new Draft. Increments the revision counter.
func (s *SynthesizerStep) Synthesize(ctx context.Context, st *State) error {
	exemplarText := ""
	if s.exemplars != nil && s.exemplarCount > 0 {
		if found := s.exemplars.Query(ctx, st.DocumentKind, st.Goal, s.exemplarCount); len(found) > 0 {
			exemplarText = strings.Join(found, "\n\n===\n\n")
			logging.Synthesis("using %d style exemplars", len(found))
		}
	}

	system, err := s.prompts.Render(prompt.ControllerSystem, nil)
	if err != nil {
		return err
	}
	user, err := s.prompts.Render(prompt.Synthesizer, map[string]any{
		"Goal":         st.Goal,
		"DocumentKind": st.DocumentKind,
		"Evidence":     st.Evidence.FormatForSynthesis(),
		"Exemplars":    exemplarText,
	})
	if err != nil {
		return err
	}

	decision, err := s.client.Invoke(ctx, system, user, nil)
	if err != nil {
		return fmt.Errorf("synthesis reasoning failed: %w", err)
	}
	body := strings.TrimSpace(decision.Text)
	if body == "" {
		return fmt.Errorf("%w: synthesis produced no text", reasoning.ErrMalformedResponse)
	}

	st.Draft = &Draft{
		Kind:          st.DocumentKind,
		Title:         titleOf(body),
		Body:          body,
		Confidence:    draftConfidence,
		OpenQuestions: openQuestionsOf(body),
		Provenance: map[string]string{
			"evidence_items": strconv.Itoa(st.Evidence.Len()),
			"categories":     strings.Join(st.Evidence.Categories(), ","),
			"revision":       strconv.Itoa(st.RevisionCount + 1),
		},
		CreatedAt: time.Now(),
	}
	st.RevisionCount++

	logging.Synthesis("draft %q produced (revision %d, %d chars)", st.Draft.Title, st.RevisionCount, len(body))
	return nil
}

// titleOf extracts the first markdown H1 line, or the default title.
func titleOf(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return defaultTitle
}

// openQuestionsOf collects bullet lines under an "Open Questions" heading.
func openQuestionsOf(body string) []string {
	var questions []string
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			inSection = strings.Contains(strings.ToLower(trimmed), "open questions")
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			questions = append(questions, strings.TrimSpace(trimmed[2:]))
		}
	}
	return questions
}
