package workflow

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"lyra/internal/cache"
	"lyra/internal/logging"
	"lyra/internal/reasoning"
	"lyra/internal/tools"
)

// executorParallelism caps concurrent operation invocations within one batch.
const executorParallelism = 4

// ExecutorStep resolves and invokes the operations requested by planning,
// recording every result or failure as evidence. It always hands control
// back to planning; the batch itself never decides the next state.
type ExecutorStep struct {
	registry *tools.Registry
	cache    *cache.Store
}

// NewExecutorStep wires the execution step.
func NewExecutorStep(registry *tools.Registry, store *cache.Store) *ExecutorStep {
	return &ExecutorStep{registry: registry, cache: store}
}

// Execute consumes st.PendingOps. Operations within the batch run
// concurrently; evidence appends are serialized by the accumulator.
// A failed or unknown operation is evidence, not an abort.
func (e *ExecutorStep) Execute(ctx context.Context, st *State) {
	ops := st.PendingOps
	st.PendingOps = nil
	if len(ops) == 0 {
		logging.Executor("empty batch, returning to planning")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(executorParallelism)
	for _, op := range ops {
		g.Go(func() error {
			e.runOne(gctx, st, op)
			return nil
		})
	}
	// Workers never return errors; failures land in the evidence bundle.
	_ = g.Wait()

	logging.Executor("batch of %d operations done, %d evidence items total", len(ops), st.Evidence.Len())
}

func (e *ExecutorStep) runOne(ctx context.Context, st *State, call reasoning.OpCall) {
	category := categoryOf(call.Name)
	query := describeArgs(call.Args)

	op, err := e.registry.Resolve(call.Name)
	if err != nil {
		logging.Executor("unknown operation %q recorded as evidence", call.Name)
		st.Evidence.AppendError(call.Name, category, query, err)
		return
	}

	if cached, ok := e.cache.Get(call.Name, call.Args); ok {
		logging.ExecutorDebug("cache hit for %s", call.Name)
		st.Evidence.AppendResult(call.Name, category, query, cached)
		return
	}

	payload, err := op.Invoke(ctx, call.Args)
	if err != nil {
		st.Evidence.AppendError(call.Name, category, query, err)
		return
	}

	e.cache.Put(call.Name, call.Args, payload)
	st.Evidence.AppendResult(call.Name, category, query, payload)
}

// categoryOf derives the source category from an operation name: the prefix
// before the first underscore.
func categoryOf(name string) string {
	if i := strings.Index(name, "_"); i > 0 {
		return name[:i]
	}
	return name
}

// describeArgs renders the call arguments as a compact query descriptor for
// evidence records.
func describeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
