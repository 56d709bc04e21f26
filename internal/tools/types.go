// Package tools implements the operation registry: a fixed catalog mapping
// operation names to source adapters and their argument schemas.
//
// Operations are registered once at startup and the catalog is frozen before
// the workflow starts; resolution during a run is read-only. Each operation
// name carries a source-category prefix (e.g. "jira_" in jira_get_ticket)
// which the execution step uses to track explored source categories.
package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// Schema defines the JSON schema for operation arguments.
// This enables reasoning-model tool calling with proper validation.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// InvokeFunc is the signature for operation execution.
// Returns the JSON result payload and any error.
type InvokeFunc func(ctx context.Context, args map[string]any) (json.RawMessage, error)

// Operation defines a named external call against a knowledge source.
type Operation struct {
	// Name is the unique identifier, prefixed with the source category
	// (jira_, github_, confluence_, slack_, gdocs_).
	Name string

	// Description explains what the operation does.
	// Surfaced to the reasoning capability when enumerating tools.
	Description string

	// Invoke runs the operation with the given arguments.
	Invoke InvokeFunc

	// Schema defines the expected arguments.
	Schema Schema
}

// Category returns the source category derived from the operation name
// (the prefix before the first underscore).
func (op *Operation) Category() string {
	if i := strings.Index(op.Name, "_"); i > 0 {
		return op.Name[:i]
	}
	return op.Name
}

// Validate checks if the operation definition is valid.
func (op *Operation) Validate() error {
	if op.Name == "" {
		return ErrOperationNameEmpty
	}
	if op.Invoke == nil {
		return ErrOperationInvokeNil
	}
	return nil
}

// Descriptor is the read-only view of an operation handed to the
// reasoning capability when enumerating available tools.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"schema"`
}

// Result wraps the result of an operation invocation with metadata.
type Result struct {
	// Operation identifies which operation was executed.
	Operation string

	// Payload is the JSON output from the adapter.
	Payload json.RawMessage

	// Error is set if the invocation failed.
	Error error

	// Cached is true when the payload was served from the result cache.
	Cached bool

	// DurationMs is how long the invocation took.
	DurationMs int64
}

// IsSuccess returns true if the operation executed without error.
func (r *Result) IsSuccess() bool {
	return r.Error == nil
}
