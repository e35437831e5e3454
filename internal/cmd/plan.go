package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appforge/appforge/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect the application plan",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the plan and its batch layout",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := plan.LoadFile(workspacePath(cfg, cfg.Workspace.PlanPath))
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}

		batches := previewBatches(p, cfg.Batch.Size)
		fmt.Printf("%s: %d nodes valid, %d batches at size %d\n",
			p.Project, len(p.Nodes), len(batches), cfg.Batch.Size)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the plan's nodes and generation order",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := plan.LoadFile(workspacePath(cfg, cfg.Workspace.PlanPath))
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%s (plan v%d)", p.Project, p.Version)))
		if p.Description != "" {
			fmt.Println(dimStyle.Render(p.Description))
		}
		fmt.Println()

		for _, n := range p.Nodes {
			line := fmt.Sprintf("%-12s %-10s %-8s %s", n.ID, n.Kind, n.Status, n.Path)
			if len(n.DependsOn) > 0 {
				line += dimStyle.Render("  <- " + strings.Join(n.DependsOn, ", "))
			}
			fmt.Println(line)
		}

		batches := previewBatches(p, cfg.Batch.Size)
		if len(batches) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Generation order"))
			for _, b := range batches {
				fmt.Printf("batch %d: %s\n", b.Index, strings.Join(b.NodeIDs, ", "))
			}
		}
		return nil
	},
}

func init() {
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planShowCmd)
	rootCmd.AddCommand(planCmd)
}
