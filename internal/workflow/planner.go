package workflow

import (
	"context"
	"fmt"
	"strings"

	"lyra/internal/knowledge"
	"lyra/internal/logging"
	"lyra/internal/prompt"
	"lyra/internal/reasoning"
	"lyra/internal/tools"
)

// Action is the control decision produced by one planning run.
type Action int

const (
	ActionExecute Action = iota
	ActionSynthesize
	ActionTerminate
)

func (a Action) String() string {
	switch a {
	case ActionExecute:
		return "execute"
	case ActionSynthesize:
		return "synthesize"
	case ActionTerminate:
		return "terminate"
	}
	return "unknown"
}

// PlannerStep decides the next control action by consulting the reasoning
// capability with the goal and the evidence gathered so far.
type PlannerStep struct {
	client        reasoning.Client
	prompts       *prompt.Library
	registry      *tools.Registry
	policy        knowledge.SufficiencyPolicy
	maxIterations int
	attempts      int
}

// NewPlannerStep wires the planning step. attempts is the number of reasoning
// calls tried before the failure is surfaced as recoverable.
func NewPlannerStep(client reasoning.Client, prompts *prompt.Library, registry *tools.Registry,
	policy knowledge.SufficiencyPolicy, maxIterations, attempts int) *PlannerStep {
	if attempts < 1 {
		attempts = 1
	}
	return &PlannerStep{
		client:        client,
		prompts:       prompts,
		registry:      registry,
		policy:        policy,
		maxIterations: maxIterations,
		attempts:      attempts,
	}
}

// Plan runs one planning iteration and returns the chosen action, with the
// requested operation calls when the action is ActionExecute.
//
// Decision order: requested operations win, then evidence sufficiency, then
// the iteration bound, then fallback exploration. The iteration counter is
// incremented exactly once per call, whatever the outcome.
func (p *PlannerStep) Plan(ctx context.Context, st *State) (Action, []reasoning.OpCall, error) {
	// Planning never runs past the iteration bound, and the counter never
	// exceeds it.
	if st.Iteration >= p.maxIterations {
		logging.Planner("iteration bound %d reached, terminating", p.maxIterations)
		return ActionTerminate, nil, nil
	}
	defer func() { st.Iteration++ }()

	system, err := p.prompts.Render(prompt.ControllerSystem, nil)
	if err != nil {
		return ActionTerminate, nil, err
	}
	user, err := p.prompts.Render(prompt.Planner, map[string]any{
		"Goal":            st.Goal,
		"DocumentKind":    st.DocumentKind,
		"Iteration":       st.Iteration,
		"MaxIterations":   p.maxIterations,
		"Categories":      strings.Join(st.Evidence.Categories(), ", "),
		"EvidenceSummary": st.Evidence.Summarize(),
	})
	if err != nil {
		return ActionTerminate, nil, err
	}

	decision, err := p.invokeWithRetry(ctx, system, user)
	if err != nil {
		return ActionTerminate, nil, fmt.Errorf("planning reasoning failed: %w", err)
	}

	switch {
	case decision.HasOps():
		logging.Planner("iteration %d: execute %d operations", st.Iteration, len(decision.RequestedOps))
		return ActionExecute, decision.RequestedOps, nil
	case st.Evidence.Sufficient(p.policy):
		logging.Planner("iteration %d: evidence sufficient, synthesizing", st.Iteration)
		return ActionSynthesize, nil, nil
	default:
		// Fallback exploration: no requests and not enough evidence yet.
		logging.Planner("iteration %d: no operations requested, continuing exploration", st.Iteration)
		return ActionExecute, nil, nil
	}
}

func (p *PlannerStep) invokeWithRetry(ctx context.Context, system, user string) (*reasoning.Decision, error) {
	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decision, err := p.client.Invoke(ctx, system, user, p.registry.List())
		if err == nil {
			return decision, nil
		}
		lastErr = err
		logging.PlannerDebug("reasoning attempt %d/%d failed: %v", i+1, p.attempts, err)
	}
	return nil, lastErr
}
