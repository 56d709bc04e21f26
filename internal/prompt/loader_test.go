package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDefaults(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	assert.Equal(t, []string{ControllerSystem, Critic, Planner, Synthesizer}, lib.Names())
}

func TestRenderPlanner(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	out, err := lib.Render(Planner, map[string]any{
		"Goal":            "document the v2.1 release",
		"DocumentKind":    "release_notes",
		"Iteration":       2,
		"MaxIterations":   50,
		"Categories":      "jira",
		"EvidenceSummary": "Gathered 2 pieces of evidence from 1 source categories: jira.",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "document the v2.1 release")
	assert.Contains(t, out, "iteration 2 of 50")
	assert.Contains(t, out, "SYNTHESIZE")
}

func TestRenderSynthesizerOmitsEmptyExemplars(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	data := map[string]any{
		"Goal":         "goal",
		"DocumentKind": "api_docs",
		"Evidence":     "Source: jira_get_ticket (jira)",
		"Exemplars":    "",
	}
	out, err := lib.Render(Synthesizer, data)
	require.NoError(t, err)
	assert.NotContains(t, out, "Match the style")

	data["Exemplars"] = "# Old Doc\nbody"
	out, err = lib.Render(Synthesizer, data)
	require.NoError(t, err)
	assert.Contains(t, out, "Match the style")
}

func TestRenderUnknownTemplate(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	_, err = lib.Render("nope", nil)
	assert.ErrorContains(t, err, "unknown prompt template")
}

func TestLoadOverrides(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critic: |\n  Custom critic for {{.Title}}\n"), 0644))
	require.NoError(t, lib.LoadOverrides(path))

	out, err := lib.Render(Critic, map[string]any{"Title": "Draft A"})
	require.NoError(t, err)
	assert.Equal(t, "Custom critic for Draft A", out)

	// Untouched templates keep their defaults.
	out, err = lib.Render(ControllerSystem, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Lyra")
}

func TestLoadOverridesBadTemplate(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critic: \"{{.Broken\"\n"), 0644))
	assert.Error(t, lib.LoadOverrides(path))
}
