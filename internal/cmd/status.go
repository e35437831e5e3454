package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/appforge/appforge/internal/checkpoint"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the last run",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		mgr := checkpoint.NewManager(workspacePath(cfg, cfg.Workspace.CheckpointPath))
		if !mgr.Exists() {
			fmt.Println("No run recorded. Start one with 'appforge run'.")
			return nil
		}

		state, err := mgr.Load()
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Run " + state.RunID))
		fmt.Println(row("Status", string(state.Status)))
		fmt.Println(row("Plan version", fmt.Sprintf("v%d", state.PlanVersion)))
		fmt.Println(row("Updated", state.UpdatedAt.Format("2006-01-02 15:04:05")))
		if state.Error != "" {
			fmt.Println(row("Error", failStyle.Render(state.Error)))
		}

		if len(state.Batches) > 0 {
			fmt.Println()
			for _, b := range state.Batches {
				mark := failStyle.Render("✕")
				if b.Completed {
					mark = okStyle.Render("✓")
				}
				retried := ""
				if b.Retried {
					retried = dimStyle.Render(" (retried)")
				}
				fmt.Printf("%s batch %d: %d nodes%s\n", mark, b.Index, len(b.NodeIDs), retried)
			}
		}

		if len(state.NodeStatus) > 0 {
			counts := map[string]int{}
			for _, s := range state.NodeStatus {
				counts[string(s)]++
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Println()
			for _, k := range keys {
				fmt.Println(row(k, fmt.Sprintf("%d nodes", counts[k])))
			}
		}

		if len(state.RepairAttempts) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("Repair attempts"))
			for _, a := range state.RepairAttempts {
				verdict := failStyle.Render("still failing")
				if a.Fixed {
					verdict = okStyle.Render("fixed")
				}
				scope := fmt.Sprintf("%d nodes", len(a.Scope))
				if a.Widened {
					scope = "widened to full plan"
				}
				fmt.Printf("attempt %d: %s, %s\n", a.Number, scope, verdict)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
