package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyra/internal/prompt"
	"lyra/internal/reasoning"
)

func newCritic(t *testing.T, client reasoning.Client, scorer Scorer) *CriticStep {
	t.Helper()
	lib, err := prompt.NewLibrary()
	require.NoError(t, err)
	return NewCriticStep(client, lib, scorer)
}

func stateWithDraft() *State {
	st := NewState("goal", "api_docs")
	st.Draft = &Draft{Kind: "api_docs", Title: "API Guide", Body: "# API Guide\n\ncontent"}
	st.RevisionCount = 1
	return st
}

func TestCritiqueNoDraftShortCircuits(t *testing.T) {
	client := &scriptedClient{}
	st := NewState("goal", "api_docs")

	require.NoError(t, newCritic(t, client, nil).Critique(context.Background(), st))

	require.NotNil(t, st.Critique)
	assert.False(t, st.Critique.Approved)
	assert.Zero(t, st.Critique.QualityScore)
	assert.Equal(t, 0, client.calls, "no reasoning call without a draft")
}

func TestCritiqueApproval(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		textDecision("Looks great. This meets standards and is ready to publish."),
	}}
	st := stateWithDraft()

	require.NoError(t, newCritic(t, client, nil).Critique(context.Background(), st))

	assert.True(t, st.Critique.Approved)
	assert.InDelta(t, 0.9, st.Critique.QualityScore, 1e-9)
}

func TestCritiqueReasoningFailure(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{err: reasoning.ErrTransport}}}
	st := stateWithDraft()

	err := newCritic(t, client, nil).Critique(context.Background(), st)
	require.Error(t, err)
	assert.Nil(t, st.Critique, "a failed critique leaves no partial result")
}

type constantScorer struct{ result CritiqueResult }

func (s constantScorer) Score(string) CritiqueResult { return s.result }

func TestCritiqueScorerIsPluggable(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{textDecision("whatever")}}
	st := stateWithDraft()

	scorer := constantScorer{result: CritiqueResult{Notes: "structured", QualityScore: 0.42, Approved: true}}
	require.NoError(t, newCritic(t, client, scorer).Critique(context.Background(), st))

	assert.True(t, st.Critique.Approved)
	assert.InDelta(t, 0.42, st.Critique.QualityScore, 1e-9)
}

func TestKeywordScorer(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		approved bool
		score    float64
	}{
		{"explicit approval", "Approved, nice work.", true, 0.9},
		{"good quality", "This is of good quality.", true, 0.9},
		{"minor issues", "There are some minor issues to fix.", false, 0.7},
		{"major issues", "Major issues: the numbers are wrong.", false, 0.5},
		{"no signal", "Interesting document.", false, 0.6},
		{"case insensitive", "READY TO PUBLISH", true, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordScorer{}.Score(tt.text)
			assert.Equal(t, tt.approved, got.Approved)
			assert.InDelta(t, tt.score, got.QualityScore, 1e-9)
			assert.NotEmpty(t, got.Notes)
		})
	}
}
