package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// defaultYAML carries the hardcoded defaults. Keeping them as YAML
// means the same parser handles every layer.
var defaultYAML = []byte(`
workspace:
  plan_path: implementation_plan.yaml
  checkpoint_path: .appforge/checkpoint.json
batch:
  size: 5
agent:
  max_context_iterations: 15
  max_generation_iterations: 40
  max_tokens: 8192
  temperature: 0.2
repair:
  max_attempts: 3
tools:
  allowed_commands: ["go", "npm", "npx", "node", "python", "pytest", "ls", "cat"]
  command_timeout: 120s
  max_output_bytes: 65536
  max_read_bytes: 262144
  test_command: ["npm", "test"]
providers:
  anthropic:
    enabled: true
    model: claude-sonnet-4-20250514
  openai:
    enabled: false
    model: gpt-4o
router:
  budget_usd: 0
  default:
    provider: anthropic
    cost_per_mtoken: 6.0
  phases:
    repair:
      provider: anthropic
      cost_per_mtoken: 6.0
logging:
  level: info
  format: json
`)

// Load builds configuration from three layers, lowest precedence first:
// hardcoded defaults, the YAML file at configPath (skipped when absent),
// and APPFORGE_* environment variables.
//
// Environment variables map underscore-separated paths onto config keys:
//
//	APPFORGE_BATCH__SIZE            -> batch.size
//	APPFORGE_PROVIDERS__ANTHROPIC__API_KEY -> providers.anthropic.api_key
//
// A double underscore separates path segments so field names may keep
// single underscores.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		} else {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("APPFORGE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "APPFORGE_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// API keys fall back to the conventional provider variables.
	if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
