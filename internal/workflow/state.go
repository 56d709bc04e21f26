// Package workflow implements the document-generation control loop: the
// state machine sequencing planning, operation execution, synthesis and
// critique, bounded by iteration and revision limits.
package workflow

import (
	"time"

	"lyra/internal/knowledge"
	"lyra/internal/reasoning"
)

// ControlState identifies where the controller is in the loop.
type ControlState string

const (
	StatePlanning     ControlState = "/planning"
	StateExecuting    ControlState = "/executing"
	StateSynthesizing ControlState = "/synthesizing"
	StateCritiquing   ControlState = "/critiquing"

	// Terminal states. StateMaxRevisions is a success outcome carrying the
	// best-effort draft; StateEnded means no approved draft was produced.
	StateApproved     ControlState = "/approved"
	StateMaxRevisions ControlState = "/max_revisions"
	StateEnded        ControlState = "/ended"
)

// IsTerminal reports whether the state ends the run.
func (s ControlState) IsTerminal() bool {
	switch s {
	case StateApproved, StateMaxRevisions, StateEnded:
		return true
	}
	return false
}

// Draft is one complete candidate document. Each synthesis run produces a
// brand-new Draft; drafts are never edited in place.
type Draft struct {
	Kind          string            `json:"kind"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Confidence    float64           `json:"confidence"`
	OpenQuestions []string          `json:"open_questions,omitempty"`
	Provenance    map[string]string `json:"provenance,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CritiqueResult is the critique step's judgement of the current draft.
type CritiqueResult struct {
	Notes        string  `json:"notes"`
	QualityScore float64 `json:"quality_score"`
	Approved     bool    `json:"approved"`
}

// State is the single mutable record threaded through every step. The
// controller owns it exclusively between steps.
type State struct {
	Goal         string
	DocumentKind string

	Evidence *knowledge.Accumulator

	Draft         *Draft
	RevisionCount int
	Critique      *CritiqueResult
	Iteration     int

	// PendingOps holds the operation calls requested by the latest planning
	// run; execution consumes and clears them.
	PendingOps []reasoning.OpCall

	Control ControlState
}

// NewState creates the initial workflow state for a run.
func NewState(goal, documentKind string) *State {
	return &State{
		Goal:         goal,
		DocumentKind: documentKind,
		Evidence:     knowledge.NewAccumulator(),
		Control:      StatePlanning,
	}
}

// Result is the sole output contract to any caller.
type Result struct {
	Draft         *Draft          `json:"draft,omitempty"`
	Critique      *CritiqueResult `json:"critique,omitempty"`
	RevisionCount int             `json:"revision_count"`
	Iteration     int             `json:"iteration"`
	TerminalState ControlState    `json:"terminal_state"`
	Reason        string          `json:"reason,omitempty"`
}
