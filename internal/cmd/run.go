package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/appforge/appforge/internal/agent"
	"github.com/appforge/appforge/internal/checkpoint"
	"github.com/appforge/appforge/internal/config"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/orchestrator"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/provider"
	"github.com/appforge/appforge/internal/repair"
	"github.com/appforge/appforge/internal/router"
	"github.com/appforge/appforge/internal/testrun"
	"github.com/appforge/appforge/internal/tools"
	"github.com/appforge/appforge/internal/usage"
)

var (
	runResume bool
	runYes    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the application from its plan",
	Long: `Run loads the application plan, computes the dependency order, and
generates every node batch by batch. After the last batch it scaffolds
the end-to-end tests, runs them, and repairs failures within the
configured attempt budget.

Progress is checkpointed after every batch; --resume continues an
interrupted run from the last completed batch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		rt, err := buildRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		if !runYes {
			ok, err := confirmRun(cfg, rt)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Run cancelled.")
				return nil
			}
		}

		result, runErr := rt.orch.Run(cmd.Context(), runResume)
		if result != nil {
			fmt.Println(renderRunSummary(result, rt.router.Budget()))
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume from the last checkpoint")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(runCmd)
}

// runtime holds everything a generation run wires together.
type runtime struct {
	store    *plan.Store
	watcher  *plan.Watcher
	registry *provider.Registry
	router   *router.Router
	orch     *orchestrator.Orchestrator
	batches  int
}

func (rt *runtime) close() {
	if rt.watcher != nil {
		_ = rt.watcher.Close()
	}
	if rt.registry != nil {
		_ = rt.registry.CloseAll()
	}
}

func buildRuntime(cfg *config.Config, logger *log.Logger) (*runtime, error) {
	ws, err := tools.NewWorkspace(cfg.Workspace.Root, cfg.Tools.MaxReadBytes)
	if err != nil {
		return nil, err
	}

	planPath := workspacePath(cfg, cfg.Workspace.PlanPath)
	p, err := plan.LoadFile(planPath)
	if err != nil {
		return nil, err
	}
	store, err := plan.NewStore(p)
	if err != nil {
		return nil, err
	}
	idx := usage.Bind(store)

	rt := &runtime{store: store}

	// Mid-run plan edits flow in through the file watcher; the
	// orchestrator restarts any in-flight batch they touch.
	rt.watcher, err = plan.WatchFile(planPath, store, logger)
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.registry = provider.NewRegistry()
	for name, pc := range map[string]config.ProviderConfig{
		"anthropic": cfg.Providers.Anthropic,
		"openai":    cfg.Providers.OpenAI,
	} {
		if err := rt.registry.LoadFromConfig(&provider.Config{
			Name:    name,
			Model:   pc.Model,
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Enabled: pc.Enabled,
		}); err != nil {
			rt.close()
			return nil, err
		}
	}

	rt.router, err = router.New(cfg.RouterSettings(), rt.registry)
	if err != nil {
		rt.close()
		return nil, err
	}

	runner := tools.NewRunner(ws, cfg.Tools.AllowedCommands, cfg.Tools.CommandTimeout, cfg.Tools.MaxOutputBytes)
	toolReg := tools.NewRegistry()
	for _, t := range []tools.Tool{
		&tools.ReadFileTool{WS: ws},
		&tools.ReadFilesTool{WS: ws},
		&tools.WriteFileTool{WS: ws},
		&tools.ListDirTool{WS: ws},
		&tools.SearchTool{WS: ws},
		&tools.PlanNodeTool{Store: store},
		&tools.ComponentsUsedByTool{Index: idx},
		&tools.PagesUsingTool{Index: idx},
		&tools.CmdRunTool{Runner: runner},
	} {
		if err := toolReg.Register(t); err != nil {
			rt.close()
			return nil, err
		}
	}

	executor, err := testrun.NewExecutor(runner, cfg.Tools.TestCommand)
	if err != nil {
		rt.close()
		return nil, err
	}
	fixer := repair.NewAgentFixer(rt.router, toolReg, cfg.Agent.MaxGenerationIterations, cfg.Agent.MaxTokens, logger)

	rt.orch, err = orchestrator.New(orchestrator.Options{
		Store:      store,
		Workspace:  ws,
		Checkpoint: checkpoint.NewManager(workspacePath(cfg, cfg.Workspace.CheckpointPath)),
		Context:    agent.NewContextAgent(rt.router, toolReg, cfg.Agent.MaxContextIterations, cfg.Agent.MaxTokens, logger),
		Generator:  agent.NewGenerationAgent(rt.router, toolReg, cfg.Agent.MaxGenerationIterations, cfg.Agent.MaxTokens, cfg.Agent.Temperature, logger),
		Scaffolder: orchestrator.NewAgentScaffolder(ws, rt.router, toolReg, cfg.Agent.MaxGenerationIterations, cfg.Agent.MaxTokens, logger),
		Repair:     repair.NewController(executor, fixer, cfg.Repair.MaxAttempts, logger),
		BatchSize:  cfg.Batch.Size,
		Logger:     logger,
	})
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.batches = len(previewBatches(store.Current(), cfg.Batch.Size))
	return rt, nil
}

// confirmRun shows what the run is about to do and asks for approval.
func confirmRun(cfg *config.Config, rt *runtime) (bool, error) {
	p := rt.store.Current()

	budget := "unlimited"
	if cfg.Router.BudgetUSD > 0 {
		budget = fmt.Sprintf("$%.2f", cfg.Router.BudgetUSD)
	}
	summary := fmt.Sprintf("%s: %d nodes in %d batches (budget %s)",
		p.Project, len(p.Nodes), rt.batches, budget)

	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Start generation run?").
			Description(summary).
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}
