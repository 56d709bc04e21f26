// Package reasoning defines the external reasoning capability consumed by the
// workflow steps, and provides HTTP clients for the supported providers.
//
// The workflow never interprets model output beyond the Decision contract:
// either a list of requested operation invocations, or free text.
package reasoning

import (
	"context"
	"errors"

	"lyra/internal/tools"
)

// OpCall is a single operation invocation requested by the model.
type OpCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Decision is the structured outcome of one reasoning call.
// RequestedOps and Text are mutually informative: a planning response with
// tool calls carries RequestedOps; otherwise Text holds the model's output.
type Decision struct {
	RequestedOps []OpCall
	Text         string
}

// HasOps returns true when the model requested at least one operation.
func (d *Decision) HasOps() bool {
	return d != nil && len(d.RequestedOps) > 0
}

// Client is the reasoning capability interface.
// Invoke must honor ctx cancellation and deadlines; implementations map
// provider failures onto the typed errors below.
type Client interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string, ops []tools.Descriptor) (*Decision, error)
}

// Typed reasoning errors. Callers branch with errors.Is.
var (
	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("reasoning call timed out")

	// ErrMalformedResponse indicates the provider returned output that
	// does not fit the Decision contract.
	ErrMalformedResponse = errors.New("malformed reasoning response")

	// ErrTransport indicates a network or protocol failure.
	ErrTransport = errors.New("reasoning transport error")
)

// wrapCtxErr maps context errors onto the typed taxonomy.
func wrapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return errors.Join(ErrTransport, err)
}
