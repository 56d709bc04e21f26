package workflow

import (
	"context"
	"fmt"
	"strings"

	"lyra/internal/logging"
	"lyra/internal/prompt"
	"lyra/internal/reasoning"
)

// Scorer derives an approval decision and quality signal from free-form
// critique text. Pluggable so the keyword heuristic can later be replaced by
// a structured response contract without touching the controller.
type Scorer interface {
	Score(responseText string) CritiqueResult
}

// KeywordScorer is the default, intentionally coarse scoring policy:
// approval by presence of approval-indicating language, quality by a small
// ordered rule set.
type KeywordScorer struct{}

var approvalPhrases = []string{"approved", "good quality", "ready to publish", "meets standards"}

// Score implements Scorer.
func (KeywordScorer) Score(responseText string) CritiqueResult {
	lowered := strings.ToLower(responseText)

	approved := false
	for _, phrase := range approvalPhrases {
		if strings.Contains(lowered, phrase) {
			approved = true
			break
		}
	}

	score := 0.6
	switch {
	case approved:
		score = 0.9
	case strings.Contains(lowered, "minor issues"):
		score = 0.7
	case strings.Contains(lowered, "major issues"):
		score = 0.5
	}

	return CritiqueResult{
		Notes:        strings.TrimSpace(responseText),
		QualityScore: score,
		Approved:     approved,
	}
}

// CriticStep judges the current draft.
type CriticStep struct {
	client  reasoning.Client
	prompts *prompt.Library
	scorer  Scorer
}

// NewCriticStep wires the critique step. A nil scorer gets the keyword default.
func NewCriticStep(client reasoning.Client, prompts *prompt.Library, scorer Scorer) *CriticStep {
	if scorer == nil {
		scorer = KeywordScorer{}
	}
	return &CriticStep{client: client, prompts: prompts, scorer: scorer}
}

// Critique replaces st.Critique wholesale. A missing draft short-circuits to
// an immediate rejection without consulting the reasoning capability.
func (c *CriticStep) Critique(ctx context.Context, st *State) error {
	if st.Draft == nil {
		logging.Critique("no draft to review, rejecting")
		st.Critique = &CritiqueResult{
			Notes:        "no draft to review",
			QualityScore: 0,
			Approved:     false,
		}
		return nil
	}

	system, err := c.prompts.Render(prompt.ControllerSystem, nil)
	if err != nil {
		return err
	}
	user, err := c.prompts.Render(prompt.Critic, map[string]any{
		"DocumentKind": st.Draft.Kind,
		"Title":        st.Draft.Title,
		"Body":         st.Draft.Body,
	})
	if err != nil {
		return err
	}

	decision, err := c.client.Invoke(ctx, system, user, nil)
	if err != nil {
		return fmt.Errorf("critique reasoning failed: %w", err)
	}

	result := c.scorer.Score(decision.Text)
	st.Critique = &result

	logging.Critique("draft %q: approved=%v score=%.2f", st.Draft.Title, result.Approved, result.QualityScore)
	return nil
}
