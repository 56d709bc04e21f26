package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, ws string, cfg configFile) {
	t.Helper()
	dir := filepath.Join(ws, ".lyra")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func resetLogging() {
	CloseAll()
	logsDir = ""
	workspace = ""
	config = loggingConfig{}
	configLoaded = false
	logLevel = LevelInfo
}

func TestInitializeWithoutConfig(t *testing.T) {
	defer resetLogging()
	ws := t.TempDir()

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Error("expected debug mode off without config")
	}
	// No logs directory should be created in production mode
	if _, err := os.Stat(filepath.Join(ws, ".lyra", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestDebugModeWritesFiles(t *testing.T) {
	defer resetLogging()
	ws := t.TempDir()
	writeConfig(t, ws, configFile{Logging: loggingConfig{DebugMode: true, Level: "debug"}})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Planner("planning iteration %d", 1)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".lyra", "logs"))
	if err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "planner") {
			found = true
		}
	}
	if !found {
		t.Error("expected a planner log file")
	}
}

func TestCategoryFilter(t *testing.T) {
	defer resetLogging()
	ws := t.TempDir()
	writeConfig(t, ws, configFile{Logging: loggingConfig{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"cache": false},
	}})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryCache) {
		t.Error("cache category should be disabled")
	}
	if !IsCategoryEnabled(CategoryPlanner) {
		t.Error("planner category should default to enabled")
	}
}
