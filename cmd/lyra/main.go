package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lyra/internal/cache"
	"lyra/internal/config"
	"lyra/internal/fixture"
	"lyra/internal/knowledge"
	"lyra/internal/logging"
	"lyra/internal/prompt"
	"lyra/internal/reasoning"
	"lyra/internal/render"
	"lyra/internal/sources"
	"lyra/internal/tools"
	"lyra/internal/workflow"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool

	// Run flags
	docKind  string
	noSave   bool
	exported bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lyra",
	Short: "Lyra - autonomous documentation workflow engine",
	Long: `Lyra gathers evidence from engineering knowledge sources (ticket
tracker, code review, wiki, chat, document store), synthesizes a draft
document, critiques it, and revises until approval or the revision cap.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := logging.Initialize(wd); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run the full documentation workflow for a goal",
	Long: `Runs the complete loop: planning, evidence gathering, synthesis and
critique. The approved (or best-effort) draft is saved under the output
directory and previewed in the terminal.

Example:
  lyra run "Write the release notes for v2.1" --kind release_notes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

var demoCmd = &cobra.Command{
	Use:   "demo [scenario.yaml]",
	Short: "Play back a scripted scenario without external services",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDemo,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show result cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cache.New(cfg.Cache.Dir, cfg.CacheTTL(), true)
		stats, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("entries:  %d\n", stats.Entries)
		fmt.Printf("expired:  %d\n", stats.Expired)
		fmt.Printf("size:     %d bytes\n", stats.Bytes)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached operation results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cache.New(cfg.Cache.Dir, cfg.CacheTTL(), true)
		if err := store.Clear(); err != nil {
			return err
		}
		logger.Info("cache cleared", zap.String("dir", cfg.Cache.Dir))
		fmt.Println("cache cleared")
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [docs-dir]",
	Short: "Ingest published documents as style exemplars",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lyra %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lyra.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	runCmd.Flags().StringVarP(&docKind, "kind", "k", "release_notes", "target document kind")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the draft to disk")
	runCmd.Flags().BoolVar(&exported, "html", false, "also export the draft as HTML")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(runCmd, demoCmd, cacheCmd, indexCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	goal := args[0]

	client, err := reasoning.NewClient(cfg)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	if err := sources.RegisterAll(registry, cfg); err != nil {
		return err
	}
	registry.Freeze()
	if registry.Count() == 0 {
		logger.Warn("no source adapters enabled; the run will rely on fallback exploration only")
	}

	lib, watcher, err := promptLibrary(ctx)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Stop()
	}

	// Assign through a nil check so a missing store stays a nil interface.
	var exemplars workflow.ExemplarSource
	if store := openExemplars(); store != nil {
		defer store.Close()
		exemplars = store
	}

	result := buildController(client, registry, lib, exemplars).Run(ctx, goal, docKind)
	return deliver(result)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var scenario *fixture.Scenario
	var err error
	if len(args) == 1 {
		scenario, err = fixture.Load(args[0])
	} else {
		scenario, err = fixture.Demo()
	}
	if err != nil {
		return err
	}

	registry, err := scenario.Registry()
	if err != nil {
		return err
	}
	lib, err := prompt.NewLibrary()
	if err != nil {
		return err
	}

	result := buildController(scenario.Client(), registry, lib, nil).
		Run(ctx, scenario.Goal, scenario.DocumentKind)
	return deliver(result)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	dir := cfg.Exemplars.DocsDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no docs directory configured; pass one or set exemplars.docs_dir")
	}

	store := openExemplars()
	if store == nil {
		return fmt.Errorf("no exemplar database configured; set exemplars.database_path")
	}
	defer store.Close()

	n, err := store.IndexDocs(ctx, dir, docKind)
	if err != nil {
		return err
	}
	logger.Info("exemplars indexed", zap.Int("count", n), zap.String("dir", dir))
	fmt.Printf("indexed %d documents\n", n)
	return nil
}

// buildController wires the four workflow steps from config.
func buildController(client reasoning.Client, registry *tools.Registry,
	lib *prompt.Library, exemplars workflow.ExemplarSource) *workflow.Controller {
	store := cache.New(cfg.Cache.Dir, cfg.CacheTTL(), cfg.Cache.Enabled)
	policy := knowledge.SufficiencyPolicy{
		MinCategories: cfg.Sufficiency.MinCategories,
		MinItems:      cfg.Sufficiency.MinItems,
	}

	planner := workflow.NewPlannerStep(client, lib, registry, policy,
		cfg.Workflow.MaxIterations, cfg.Workflow.ReasoningAttempts)
	executor := workflow.NewExecutorStep(registry, store)
	synthesizer := workflow.NewSynthesizerStep(client, lib, exemplars, cfg.Exemplars.Count)
	critic := workflow.NewCriticStep(client, lib, nil)

	return workflow.NewController(planner, executor, synthesizer, critic, cfg.Workflow.MaxRevisions)
}

// promptLibrary loads the embedded templates plus the optional override file,
// hot-reloading it when configured.
func promptLibrary(ctx context.Context) (*prompt.Library, *prompt.Watcher, error) {
	lib, err := prompt.NewLibrary()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Prompts.File == "" {
		return lib, nil, nil
	}

	if cfg.Prompts.Watch {
		w, err := prompt.NewWatcher(lib, cfg.Prompts.File)
		if err != nil {
			return nil, nil, err
		}
		if err := w.Start(ctx); err != nil {
			return nil, nil, err
		}
		return lib, w, nil
	}

	if err := lib.LoadOverrides(cfg.Prompts.File); err != nil {
		logger.Warn("prompt overrides not loaded", zap.Error(err))
	}
	return lib, nil, nil
}

// openExemplars opens the exemplar store when configured. Best-effort: any
// failure means synthesis simply runs without exemplars.
func openExemplars() *knowledge.ExemplarStore {
	if cfg.Exemplars.DatabasePath == "" {
		return nil
	}

	var embedder knowledge.Embedder
	if cfg.Exemplars.EmbeddingKey != "" {
		e, err := knowledge.NewGenAIEmbedder(cfg.Exemplars.EmbeddingKey, cfg.Exemplars.EmbeddingModel)
		if err != nil {
			logger.Warn("embedding engine unavailable, using recency ranking", zap.Error(err))
		} else {
			embedder = e
		}
	}

	store, err := knowledge.OpenExemplarStore(cfg.Exemplars.DatabasePath, embedder)
	if err != nil {
		logger.Warn("exemplar store unavailable", zap.Error(err))
		return nil
	}
	return store
}

// deliver prints the result and persists the draft per flags.
func deliver(result *workflow.Result) error {
	fmt.Print(render.Preview(result, 100))

	if result.Draft == nil || noSave {
		return nil
	}

	path, err := render.SaveDraft(cfg.Output.Dir, cfg.Project, result.Draft)
	if err != nil {
		return err
	}
	fmt.Printf("\ndraft saved: %s\n", path)

	if exported {
		htmlPath, err := render.ExportHTML(path, result.Draft)
		if err != nil {
			return err
		}
		fmt.Printf("html export: %s\n", htmlPath)
	}
	return nil
}
