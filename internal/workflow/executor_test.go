package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyra/internal/cache"
	"lyra/internal/reasoning"
	"lyra/internal/tools"
)

func newExecutorFixture(t *testing.T) (*ExecutorStep, *tools.Registry, *State) {
	t.Helper()
	reg := tools.NewRegistry()
	store := cache.New(t.TempDir(), time.Hour, true)
	return NewExecutorStep(reg, store), reg, NewState("goal", "api_docs")
}

func TestExecuteRecordsEvidenceAndCategories(t *testing.T) {
	exec, reg, st := newExecutorFixture(t)
	countingOp(t, reg, "jira_get_ticket", nil)
	countingOp(t, reg, "github_search_prs", nil)

	st.PendingOps = []reasoning.OpCall{
		{Name: "jira_get_ticket", Args: map[string]any{"ticket_id": "DEV-1"}},
		{Name: "github_search_prs", Args: map[string]any{"query": "DEV-1"}},
	}
	exec.Execute(context.Background(), st)

	assert.Empty(t, st.PendingOps, "pending operations must be consumed")
	assert.Equal(t, 2, st.Evidence.Len())
	assert.Equal(t, []string{"github", "jira"}, st.Evidence.Categories())
}

func TestExecuteIdempotentWithinTTL(t *testing.T) {
	// The same call twice within the TTL hits the adapter exactly once.
	exec, reg, st := newExecutorFixture(t)
	var calls atomic.Int32
	countingOp(t, reg, "jira_get_ticket", &calls)

	call := reasoning.OpCall{Name: "jira_get_ticket", Args: map[string]any{"ticket_id": "DEV-1"}}
	st.PendingOps = []reasoning.OpCall{call}
	exec.Execute(context.Background(), st)
	st.PendingOps = []reasoning.OpCall{call}
	exec.Execute(context.Background(), st)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, st.Evidence.Len(), "cached results are still evidence")
}

func TestExecuteUnknownOpRecordedAndBatchContinues(t *testing.T) {
	exec, reg, st := newExecutorFixture(t)
	countingOp(t, reg, "jira_get_ticket", nil)

	st.PendingOps = []reasoning.OpCall{
		{Name: "unknownOp", Args: map[string]any{}},
		{Name: "jira_get_ticket", Args: map[string]any{"ticket_id": "DEV-1"}},
	}
	exec.Execute(context.Background(), st)

	items := st.Evidence.Items()
	require.Len(t, items, 2)

	var unknown, known bool
	for _, it := range items {
		switch it.Source {
		case "unknownOp":
			unknown = true
			assert.True(t, it.IsError())
		case "jira_get_ticket":
			known = true
			assert.False(t, it.IsError())
		}
	}
	assert.True(t, unknown, "unknown operation must be recorded as error evidence")
	assert.True(t, known, "partial failure must not abort the batch")
}

func TestExecuteAdapterErrorIsEvidence(t *testing.T) {
	exec, reg, st := newExecutorFixture(t)
	reg.MustRegister(&tools.Operation{
		Name:        "jira_get_ticket",
		Description: "always fails",
		Invoke: func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
			return nil, errors.New("upstream down")
		},
	})

	st.PendingOps = []reasoning.OpCall{{Name: "jira_get_ticket", Args: map[string]any{"ticket_id": "DEV-1"}}}
	exec.Execute(context.Background(), st)

	items := st.Evidence.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].IsError())
	assert.Contains(t, items[0].Err, "upstream down")
	assert.Equal(t, "jira", items[0].Category)
}

func TestExecuteFailuresAreNotCached(t *testing.T) {
	exec, reg, st := newExecutorFixture(t)
	var calls atomic.Int32
	reg.MustRegister(&tools.Operation{
		Name:        "jira_get_ticket",
		Description: "fails once then succeeds",
		Invoke: func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("transient")
			}
			return json.RawMessage(`{"ok":true}`), nil
		},
	})

	call := reasoning.OpCall{Name: "jira_get_ticket", Args: map[string]any{"ticket_id": "DEV-1"}}
	st.PendingOps = []reasoning.OpCall{call}
	exec.Execute(context.Background(), st)
	st.PendingOps = []reasoning.OpCall{call}
	exec.Execute(context.Background(), st)

	assert.Equal(t, int32(2), calls.Load(), "a failure must not be served from cache")
	items := st.Evidence.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].IsError())
	assert.False(t, items[1].IsError())
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "jira", categoryOf("jira_get_ticket"))
	assert.Equal(t, "gdocs", categoryOf("gdocs_get_document"))
	assert.Equal(t, "unknownOp", categoryOf("unknownOp"))
}
