// Package prompt provides the named prompt templates used by the workflow
// steps. Defaults are baked into the binary with go:embed; an optional
// on-disk YAML file overrides individual templates, with hot-reload.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"lyra/internal/logging"
)

// Template names used by the workflow steps.
const (
	ControllerSystem = "controller_system"
	Planner          = "planner"
	Synthesizer      = "synthesizer"
	Critic           = "critic"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// Library holds the parsed prompt templates. Safe for concurrent use;
// Render takes a read lock so the watcher can swap overrides in.
type Library struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewLibrary parses the embedded default templates.
func NewLibrary() (*Library, error) {
	lib := &Library{templates: make(map[string]*template.Template)}
	if err := lib.merge(embeddedTemplates); err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	return lib, nil
}

// LoadOverrides merges templates from an on-disk YAML file over the defaults.
// Unknown names are accepted; missing names keep their embedded default.
func (l *Library) LoadOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := l.merge(raw); err != nil {
		return fmt.Errorf("override templates %s: %w", path, err)
	}
	logging.Boot("prompt overrides loaded from %s", path)
	return nil
}

func (l *Library) merge(raw []byte) error {
	var entries map[string]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return err
	}

	parsed := make(map[string]*template.Template, len(entries))
	for name, text := range entries {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
		parsed[name] = tmpl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for name, tmpl := range parsed {
		l.templates[name] = tmpl
	}
	return nil
}

// Render executes the named template with the given data.
func (l *Library) Render(name string, data any) (string, error) {
	l.mu.RLock()
	tmpl, ok := l.templates[name]
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %q", name)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %q: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Names returns the available template names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.templates))
	for name := range l.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
