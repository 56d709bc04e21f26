package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoOp(name string) *Operation {
	return &Operation{
		Name:        name,
		Description: "echoes its message argument",
		Invoke: func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
			msg, _ := args["message"].(string)
			out, _ := json.Marshal(map[string]string{"echo": msg})
			return out, nil
		},
		Schema: Schema{
			Required:   []string{"message"},
			Properties: map[string]Property{"message": {Type: "string"}},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if reg.Count() != 0 {
		t.Errorf("new registry should be empty, got %d operations", reg.Count())
	}
}

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(echoOp("jira_echo")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	op, err := reg.Resolve("jira_echo")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if op.Name != "jira_echo" {
		t.Errorf("got name %q, want %q", op.Name, "jira_echo")
	}
	if op.Category() != "jira" {
		t.Errorf("got category %q, want %q", op.Category(), "jira")
	}
}

func TestResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("unknownOp")
	if !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoOp("jira_dupe"))

	err := reg.Register(echoOp("jira_dupe"))
	if !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("expected ErrDuplicateOperation, got %v", err)
	}
}

func TestRegisterAfterFreeze(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoOp("jira_first"))
	reg.Freeze()

	err := reg.Register(echoOp("jira_second"))
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("frozen registry gained an operation")
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name    string
		op      *Operation
		wantErr error
	}{
		{
			name:    "empty name",
			op:      &Operation{Name: "", Invoke: func(ctx context.Context, args map[string]any) (json.RawMessage, error) { return nil, nil }},
			wantErr: ErrOperationNameEmpty,
		},
		{
			name:    "nil invoke",
			op:      &Operation{Name: "jira_noop", Invoke: nil},
			wantErr: ErrOperationInvokeNil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.op)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListOrderedByName(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoOp("slack_search"))
	reg.MustRegister(echoOp("github_get_pr"))
	reg.MustRegister(echoOp("jira_get_ticket"))

	descs := reg.List()
	if len(descs) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descs))
	}
	want := []string{"github_get_pr", "jira_get_ticket", "slack_search"}
	for i, d := range descs {
		if d.Name != want[i] {
			t.Errorf("descriptor %d: got %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestCategories(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoOp("jira_a"))
	reg.MustRegister(echoOp("jira_b"))
	reg.MustRegister(echoOp("github_a"))

	cats := reg.Categories()
	if len(cats) != 2 || cats[0] != "github" || cats[1] != "jira" {
		t.Errorf("unexpected categories: %v", cats)
	}
}

func TestExecute(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(echoOp("jira_echo"))

	result, err := reg.Execute(context.Background(), "jira_echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.IsSuccess() {
		t.Error("expected IsSuccess to be true")
	}
	var out map[string]string
	if err := json.Unmarshal(result.Payload, &out); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if out["echo"] != "hello" {
		t.Errorf("got %q, want %q", out["echo"], "hello")
	}

	// Missing required arg
	_, err = reg.Execute(context.Background(), "jira_echo", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("expected ErrMissingRequiredArg, got %v", err)
	}

	// Operation not found
	_, err = reg.Execute(context.Background(), "nonexistent", map[string]any{})
	if !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("expected ErrOperationNotFound, got %v", err)
	}
}
