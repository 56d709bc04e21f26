// Package knowledge holds the evidence gathered during a workflow run and the
// style-exemplar store consulted at synthesis time.
//
// Evidence is append-only: items are never pruned or reordered within a run.
// Failed operation calls are recorded too, so planning can reason about them.
package knowledge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EvidenceItem is one recorded result (or error) of an operation call.
// Immutable once appended.
type EvidenceItem struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Category  string          `json:"category"`
	Query     string          `json:"query"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Err       string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// IsError reports whether the item records an upstream failure.
func (e EvidenceItem) IsError() bool {
	return e.Err != ""
}

// SufficiencyPolicy decides when enough evidence has been gathered to attempt
// synthesis. The thresholds are tunable configuration, not hardcoded law.
type SufficiencyPolicy struct {
	MinCategories int
	MinItems      int
}

// DefaultSufficiencyPolicy returns the standard thresholds: evidence from at
// least 2 distinct source categories and at least 3 items overall.
func DefaultSufficiencyPolicy() SufficiencyPolicy {
	return SufficiencyPolicy{MinCategories: 2, MinItems: 3}
}

// Accumulator is the append-only, source-tagged evidence bundle for one run.
// Appends from parallel operation invocations are serialized under the mutex
// to keep append order deterministic.
type Accumulator struct {
	mu         sync.Mutex
	items      []EvidenceItem
	categories map[string]struct{}
}

// NewAccumulator returns an empty evidence bundle.
func NewAccumulator() *Accumulator {
	return &Accumulator{categories: make(map[string]struct{})}
}

// Append records one evidence item. Missing IDs and timestamps are filled in.
func (a *Accumulator) Append(item EvidenceItem) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, item)
	if item.Category != "" {
		a.categories[item.Category] = struct{}{}
	}
}

// AppendResult records a successful operation payload.
func (a *Accumulator) AppendResult(source, category, query string, payload json.RawMessage) {
	a.Append(EvidenceItem{Source: source, Category: category, Query: query, Payload: payload})
}

// AppendError records a failed operation call. Errors are evidence too.
func (a *Accumulator) AppendError(source, category, query string, err error) {
	a.Append(EvidenceItem{Source: source, Category: category, Query: query, Err: err.Error()})
}

// Len returns the number of evidence items.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Categories returns the explored source categories in sorted order.
func (a *Accumulator) Categories() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.categories))
	for c := range a.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Items returns a copy of the evidence sequence in append order.
func (a *Accumulator) Items() []EvidenceItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]EvidenceItem, len(a.items))
	copy(out, a.items)
	return out
}

// Sufficient reports whether the gathered evidence satisfies the policy:
// at least MinCategories distinct categories and at least MinItems items.
func (a *Accumulator) Sufficient(p SufficiencyPolicy) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.categories) >= p.MinCategories && len(a.items) >= p.MinItems
}

// Summarize returns a short digest used in planning prompts only; decisions
// never depend on its wording.
func (a *Accumulator) Summarize() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.items) == 0 {
		return "No evidence gathered yet."
	}
	cats := make([]string, 0, len(a.categories))
	for c := range a.categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	errCount := 0
	for _, it := range a.items {
		if it.IsError() {
			errCount++
		}
	}

	s := fmt.Sprintf("Gathered %d pieces of evidence from %d source categories: %s.",
		len(a.items), len(cats), strings.Join(cats, ", "))
	if errCount > 0 {
		s += fmt.Sprintf(" %d calls failed.", errCount)
	}
	return s
}

// evidenceExcerptLimit bounds each item's contribution to the synthesis prompt.
const evidenceExcerptLimit = 500

// FormatForSynthesis renders the full evidence bundle as prompt text, one
// block per item separated by rules, payloads truncated to keep prompts sane.
func (a *Accumulator) FormatForSynthesis() string {
	items := a.Items()
	if len(items) == 0 {
		return "No evidence available."
	}

	blocks := make([]string, 0, len(items))
	for _, it := range items {
		var body string
		if it.IsError() {
			body = "ERROR: " + it.Err
		} else {
			body = string(it.Payload)
		}
		if len(body) > evidenceExcerptLimit {
			body = body[:evidenceExcerptLimit] + "..."
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s (%s)\nQuery: %s\n%s", it.Source, it.Category, it.Query, body))
	}
	return strings.Join(blocks, "\n---\n")
}
