package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/appforge/appforge/internal/batch"
	"github.com/appforge/appforge/internal/depgraph"
	"github.com/appforge/appforge/internal/orchestrator"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/router"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Width(18)
)

// previewBatches computes the batch layout without running anything.
// Ordering errors surface later with full context, so an empty preview
// is fine here.
func previewBatches(p *plan.ApplicationPlan, size int) []batch.Batch {
	order, err := depgraph.Compute(p, size)
	if err != nil {
		return nil
	}
	batches, err := batch.Schedule(order, size)
	if err != nil {
		return nil
	}
	return batches
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderRunSummary(result *orchestrator.RunResult, budget router.Budget) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Run " + result.RunID))
	b.WriteString("\n")

	status := okStyle.Render(string(result.Status))
	if result.Status != orchestrator.RunSucceeded {
		status = failStyle.Render(string(result.Status))
		if result.Err != nil {
			status += dimStyle.Render("  " + result.Err.Error())
		}
	}
	b.WriteString(row("Status", status) + "\n")
	b.WriteString(row("Batches", fmt.Sprintf("%d/%d completed", result.BatchesCompleted, result.BatchesTotal)))
	if result.BatchesSkipped > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d resumed)", result.BatchesSkipped)))
	}
	b.WriteString("\n")

	if result.Repair != nil {
		verdict := okStyle.Render("tests passing")
		if !result.Repair.Passed {
			verdict = failStyle.Render("tests failing")
		}
		b.WriteString(row("Repair", fmt.Sprintf("%d attempts, %s", len(result.Repair.Attempts), verdict)) + "\n")
	}

	spent := fmt.Sprintf("$%.4f over %d calls", budget.SpentUSD, budget.UsageCount)
	if budget.LimitUSD > 0 {
		spent += fmt.Sprintf(" (limit $%.2f)", budget.LimitUSD)
	}
	b.WriteString(row("Spend", spent) + "\n")
	b.WriteString(row("Duration", result.Duration.Round(time.Second).String()))

	return b.String()
}
