package router

import "time"

// Phase identifies which stage of a generation run is asking for a model.
// Different phases want different trade-offs: planning wants reasoning
// depth, generation wants code quality, repair wants fast iteration.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseContext    Phase = "context"
	PhaseGeneration Phase = "generation"
	PhaseTesting    Phase = "testing"
	PhaseRepair     Phase = "repair"
)

// ModelChoice is one phase→model binding from configuration.
type ModelChoice struct {
	// Provider names the registry entry to use ("anthropic", "openai").
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model when set.
	Model string `yaml:"model"`

	// CostPerMToken is the blended USD price per million tokens, used
	// for budget accounting.
	CostPerMToken float64 `yaml:"cost_per_mtoken"`
}

// Budget tracks spending against a USD limit.
type Budget struct {
	LimitUSD     float64 `json:"limit_usd"`
	SpentUSD     float64 `json:"spent_usd"`
	RemainingUSD float64 `json:"remaining_usd"`
	UsageCount   int     `json:"usage_count"`
}

// Usage records one model call for cost accounting.
type Usage struct {
	Phase     Phase         `json:"phase"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Tokens    int           `json:"tokens"`
	CostUSD   float64       `json:"cost_usd"`
	Latency   time.Duration `json:"latency"`
	Timestamp time.Time     `json:"timestamp"`
	NodeID    string        `json:"node_id,omitempty"`
}

// Config configures phase routing and the run budget.
type Config struct {
	// Phases maps each phase to its model choice. Missing phases fall
	// back to Default.
	Phases map[Phase]ModelChoice `yaml:"phases"`

	// Default is used for phases with no explicit binding.
	Default ModelChoice `yaml:"default"`

	// BudgetUSD caps total spend for a run. Zero means unlimited.
	BudgetUSD float64 `yaml:"budget_usd"`
}
