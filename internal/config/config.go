// Package config provides configuration loading for appforge.
package config

import (
	"fmt"
	"time"

	"github.com/appforge/appforge/internal/router"
)

// Config is the root configuration for a generation run.
type Config struct {
	Workspace WorkspaceConfig `koanf:"workspace"`
	Batch     BatchConfig     `koanf:"batch"`
	Agent     AgentConfig     `koanf:"agent"`
	Repair    RepairConfig    `koanf:"repair"`
	Tools     ToolsConfig     `koanf:"tools"`
	Providers ProvidersConfig `koanf:"providers"`
	Router    RouterConfig    `koanf:"router"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// WorkspaceConfig locates the generated project on disk.
type WorkspaceConfig struct {
	// Root is the directory all generated files live under. Tool
	// access is sandboxed to this directory.
	Root string `koanf:"root"`

	// PlanPath is where the application plan is persisted, relative
	// to Root.
	PlanPath string `koanf:"plan_path"`

	// CheckpointPath is where run state is persisted, relative to Root.
	CheckpointPath string `koanf:"checkpoint_path"`
}

// BatchConfig controls how the dependency order is cut into batches.
type BatchConfig struct {
	// Size is the maximum number of nodes per batch.
	Size int `koanf:"size"`
}

// AgentConfig bounds the observe-act loops.
type AgentConfig struct {
	// MaxContextIterations caps the context agent's tool loop.
	MaxContextIterations int `koanf:"max_context_iterations"`

	// MaxGenerationIterations caps the generation agent's tool loop.
	MaxGenerationIterations int `koanf:"max_generation_iterations"`

	// MaxTokens caps each model turn.
	MaxTokens int `koanf:"max_tokens"`

	// Temperature for generation turns.
	Temperature float64 `koanf:"temperature"`
}

// RepairConfig bounds the test-repair loop.
type RepairConfig struct {
	// MaxAttempts is the repair budget per batch.
	MaxAttempts int `koanf:"max_attempts"`
}

// ToolsConfig controls sandboxed tool execution.
type ToolsConfig struct {
	// AllowedCommands is the subprocess allowlist for cmd_run.
	AllowedCommands []string `koanf:"allowed_commands"`

	// CommandTimeout bounds each subprocess.
	CommandTimeout time.Duration `koanf:"command_timeout"`

	// MaxOutputBytes truncates subprocess output beyond this size.
	MaxOutputBytes int `koanf:"max_output_bytes"`

	// MaxReadBytes truncates file reads beyond this size.
	MaxReadBytes int `koanf:"max_read_bytes"`

	// TestCommand runs the generated project's test suite from the
	// workspace root. Its first element must be on AllowedCommands.
	TestCommand []string `koanf:"test_command"`
}

// ProvidersConfig holds per-provider settings.
type ProvidersConfig struct {
	Anthropic ProviderConfig `koanf:"anthropic"`
	OpenAI    ProviderConfig `koanf:"openai"`
}

// ProviderConfig configures one provider client.
type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
	Enabled bool   `koanf:"enabled"`
}

// RouterConfig configures phase routing and the run budget.
type RouterConfig struct {
	BudgetUSD float64                      `koanf:"budget_usd"`
	Default   ModelChoiceConfig            `koanf:"default"`
	Phases    map[string]ModelChoiceConfig `koanf:"phases"`
}

// ModelChoiceConfig is one phase→model binding.
type ModelChoiceConfig struct {
	Provider      string  `koanf:"provider"`
	Model         string  `koanf:"model"`
	CostPerMToken float64 `koanf:"cost_per_mtoken"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be at least 1, got %d", c.Batch.Size)
	}
	if c.Agent.MaxContextIterations < 1 {
		return fmt.Errorf("agent.max_context_iterations must be at least 1")
	}
	if c.Agent.MaxGenerationIterations < 1 {
		return fmt.Errorf("agent.max_generation_iterations must be at least 1")
	}
	if c.Repair.MaxAttempts < 1 {
		return fmt.Errorf("repair.max_attempts must be at least 1")
	}
	if c.Tools.CommandTimeout <= 0 {
		return fmt.Errorf("tools.command_timeout must be positive")
	}
	if len(c.Tools.TestCommand) == 0 {
		return fmt.Errorf("tools.test_command is required")
	}
	if c.Router.Default.Provider == "" {
		return fmt.Errorf("router.default.provider is required")
	}
	if !c.Providers.Anthropic.Enabled && !c.Providers.OpenAI.Enabled {
		return fmt.Errorf("at least one provider must be enabled")
	}
	return nil
}

// RouterSettings converts the configured routing section into the
// router package's config type.
func (c *Config) RouterSettings() *router.Config {
	out := &router.Config{
		BudgetUSD: c.Router.BudgetUSD,
		Default: router.ModelChoice{
			Provider:      c.Router.Default.Provider,
			Model:         c.Router.Default.Model,
			CostPerMToken: c.Router.Default.CostPerMToken,
		},
		Phases: make(map[router.Phase]router.ModelChoice, len(c.Router.Phases)),
	}
	for phase, choice := range c.Router.Phases {
		out.Phases[router.Phase(phase)] = router.ModelChoice{
			Provider:      choice.Provider,
			Model:         choice.Model,
			CostPerMToken: choice.CostPerMToken,
		}
	}
	return out
}
