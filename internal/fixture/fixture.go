// Package fixture provides scripted reasoning and scripted source operations
// for demo playback and offline runs. Scenarios are YAML files describing the
// reasoning responses and the operation payloads to serve.
package fixture

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"lyra/internal/reasoning"
	"lyra/internal/tools"
)

// Scenario is one complete scripted run.
type Scenario struct {
	Name         string      `yaml:"name"`
	Goal         string      `yaml:"goal"`
	DocumentKind string      `yaml:"document_kind"`
	Responses    []Response  `yaml:"responses"`
	Operations   []Operation `yaml:"operations"`
}

// Response is one scripted reasoning outcome, played back in order across
// planning, synthesis and critique calls.
type Response struct {
	Text string      `yaml:"text"`
	Ops  []OpRequest `yaml:"ops"`
}

// OpRequest is a scripted operation invocation.
type OpRequest struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args"`
}

// Operation describes a scripted source operation and its fixed payload.
type Operation struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Payload     any    `yaml:"payload"`
	Fail        string `yaml:"fail"`
}

//go:embed demo.yaml
var embeddedDemo []byte

// Demo returns the built-in demo scenario.
func Demo() (*Scenario, error) {
	return parse(embeddedDemo)
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.Goal == "" {
		return nil, fmt.Errorf("scenario has no goal")
	}
	if s.DocumentKind == "" {
		s.DocumentKind = "document"
	}
	return &s, nil
}

// Client returns a reasoning client that plays back the scenario's responses
// in order. When the script runs out it keeps answering with the last
// response, so over-long runs degrade instead of crashing.
func (s *Scenario) Client() reasoning.Client {
	return &playbackClient{responses: s.Responses}
}

type playbackClient struct {
	mu        sync.Mutex
	responses []Response
	cursor    int
}

func (c *playbackClient) Invoke(ctx context.Context, system, user string, ops []tools.Descriptor) (*reasoning.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.responses) == 0 {
		return &reasoning.Decision{Text: "approved"}, nil
	}
	r := c.responses[c.cursor]
	if c.cursor < len(c.responses)-1 {
		c.cursor++
	}

	decision := &reasoning.Decision{Text: r.Text}
	for _, op := range r.Ops {
		decision.RequestedOps = append(decision.RequestedOps, reasoning.OpCall{Name: op.Name, Args: op.Args})
	}
	return decision, nil
}

// Registry builds an operation registry serving the scenario's scripted
// payloads. The returned registry is already frozen.
func (s *Scenario) Registry() (*tools.Registry, error) {
	reg := tools.NewRegistry()
	for _, op := range s.Operations {
		payload, err := json.Marshal(op.Payload)
		if err != nil {
			return nil, fmt.Errorf("operation %q payload: %w", op.Name, err)
		}
		failMsg := op.Fail
		if err := reg.Register(&tools.Operation{
			Name:        op.Name,
			Description: op.Description,
			Invoke: func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
				if failMsg != "" {
					return nil, fmt.Errorf("%s", failMsg)
				}
				return payload, nil
			},
		}); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}
