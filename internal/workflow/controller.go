package workflow

import (
	"context"
	"errors"

	"lyra/internal/logging"
	"lyra/internal/reasoning"
)

// Controller owns the transition rules between the workflow steps and
// enforces the revision bound. It always returns a well-formed Result, even
// on total failure.
type Controller struct {
	planner      *PlannerStep
	executor     *ExecutorStep
	synthesizer  *SynthesizerStep
	critic       *CriticStep
	maxRevisions int
}

// NewController wires the four steps into a control loop.
func NewController(planner *PlannerStep, executor *ExecutorStep,
	synthesizer *SynthesizerStep, critic *CriticStep, maxRevisions int) *Controller {
	return &Controller{
		planner:      planner,
		executor:     executor,
		synthesizer:  synthesizer,
		critic:       critic,
		maxRevisions: maxRevisions,
	}
}

// Run drives one workflow from the initial planning state to a terminal
// state. Cancellation is checked at the top of every transition; on
// cancellation the run exits to /ended with whatever partial state exists.
func (c *Controller) Run(ctx context.Context, goal, documentKind string) *Result {
	st := NewState(goal, documentKind)
	reason := ""

	logging.Workflow("run started: goal=%q kind=%s", goal, documentKind)

	for !st.Control.IsTerminal() {
		if err := ctx.Err(); err != nil {
			st.Control = StateEnded
			reason = "cancelled"
			break
		}

		switch st.Control {
		case StatePlanning:
			action, ops, err := c.planner.Plan(ctx, st)
			if err != nil {
				st.Control = StateEnded
				reason = reasonFor(err)
				continue
			}
			switch action {
			case ActionExecute:
				st.PendingOps = ops
				st.Control = StateExecuting
			case ActionSynthesize:
				st.Control = StateSynthesizing
			case ActionTerminate:
				st.Control = StateEnded
				reason = "iteration limit reached"
			}

		case StateExecuting:
			c.executor.Execute(ctx, st)
			st.Control = StatePlanning

		case StateSynthesizing:
			if err := c.synthesizer.Synthesize(ctx, st); err != nil {
				st.Control = StateEnded
				reason = reasonFor(err)
				continue
			}
			st.Control = StateCritiquing

		case StateCritiquing:
			if err := c.critic.Critique(ctx, st); err != nil {
				st.Control = StateEnded
				reason = reasonFor(err)
				continue
			}
			switch {
			case st.Critique.Approved:
				st.Control = StateApproved
			case st.RevisionCount >= c.maxRevisions:
				st.Control = StateMaxRevisions
				reason = "revision limit reached"
			default:
				st.Control = StateSynthesizing
			}
		}

		logging.WorkflowDebug("transition to %s (iteration=%d revisions=%d)",
			st.Control, st.Iteration, st.RevisionCount)
	}

	logging.Workflow("run finished in %s after %d iterations, %d revisions",
		st.Control, st.Iteration, st.RevisionCount)

	return &Result{
		Draft:         st.Draft,
		Critique:      st.Critique,
		RevisionCount: st.RevisionCount,
		Iteration:     st.Iteration,
		TerminalState: st.Control,
		Reason:        reason,
	}
}

// reasonFor maps step failures onto terminal reason strings.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, reasoning.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
