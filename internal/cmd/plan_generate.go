package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/appforge/appforge/internal/config"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/provider"
	"github.com/appforge/appforge/internal/router"
)

var planProject string

const planningSystemPrompt = `You are a software architect planning a full-stack application.
Answer with a single JSON object of this shape, inside a json code fence:

{"implementation_plan": {"files": [{"path": "...", "description": "...", "depends_on": ["path", ...]}], "dependencies": [], "notes": ""}}

List every file the application needs, in the order it should be built.
depends_on entries are paths of other files in the same plan.`

var planGenerateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Generate an application plan from a description",
	Long: `Generate asks the planning model for an implementation plan and writes
it to the configured plan path. Review and edit the plan before running
the generation with 'appforge run'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		description := strings.Join(args, " ")
		project := planProject
		if project == "" {
			project = "app"
		}

		registry := provider.NewRegistry()
		defer registry.CloseAll()
		for name, pc := range map[string]config.ProviderConfig{
			"anthropic": cfg.Providers.Anthropic,
			"openai":    cfg.Providers.OpenAI,
		} {
			if err := registry.LoadFromConfig(&provider.Config{
				Name:    name,
				Model:   pc.Model,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Enabled: pc.Enabled,
			}); err != nil {
				return err
			}
		}

		r, err := router.New(cfg.RouterSettings(), registry)
		if err != nil {
			return err
		}
		sel, err := r.Select(router.PhasePlanning)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := sel.Client.Generate(cmd.Context(), &provider.GenerateRequest{
			SystemPrompt: planningSystemPrompt,
			Messages: []provider.Message{
				{Role: provider.RoleUser, Content: "Plan this application: " + description},
			},
			MaxTokens: cfg.Agent.MaxTokens,
			Model:     sel.Model,
		})
		if err != nil {
			return err
		}
		r.Record(sel, router.PhasePlanning, "", resp.TokensUsed, time.Since(start))

		p, err := plan.FromPlanningResponse(resp.Content, project, description)
		if err != nil {
			return err
		}

		planPath := workspacePath(cfg, cfg.Workspace.PlanPath)
		if err := plan.SaveFile(p, planPath); err != nil {
			return err
		}

		fmt.Printf("Wrote %d-node plan for %s to %s\n", len(p.Nodes), p.Project, planPath)
		return nil
	},
}

func init() {
	planGenerateCmd.Flags().StringVar(&planProject, "project", "", "project name recorded in the plan")
	planCmd.AddCommand(planGenerateCmd)
}
