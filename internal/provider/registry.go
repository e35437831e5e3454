package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/appforge/appforge/internal/errors"
)

// Config holds the settings needed to construct one provider client.
type Config struct {
	// Name identifies the provider ("anthropic", "openai").
	Name string `yaml:"name"`

	// Model is the default model for this provider.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint. Used for
	// self-hosted gateways and tests.
	BaseURL string `yaml:"base_url"`

	// Enabled controls whether the provider is loaded at all.
	Enabled bool `yaml:"enabled"`
}

// Registry manages all loaded provider clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	configs map[string]*Config
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		configs: make(map[string]*Config),
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(name string, client Client, config *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.clients[name] = client
	r.configs[name] = config

	return nil
}

// Get retrieves a client by name.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[name]
	if !exists {
		return nil, errors.New(errors.ErrCodeProviderNotFound,
			fmt.Sprintf("provider %s not found", name)).
			WithSuggestions(
				"Check the provider name in your configuration",
				"Run 'appforge status' to list loaded providers",
			)
	}

	return client, nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// CloseAll closes all registered clients and empties the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, client := range r.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %s: %w", name, err))
		}
	}

	r.clients = make(map[string]Client)
	r.configs = make(map[string]*Config)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %v", errs)
	}

	return nil
}

// LoadFromConfig constructs and registers a client from configuration.
// Disabled providers are skipped silently.
func (r *Registry) LoadFromConfig(config *Config) error {
	if config.Name == "" {
		return fmt.Errorf("provider name is required")
	}

	if !config.Enabled {
		return nil
	}

	var client Client
	var err error

	switch config.Name {
	case "anthropic":
		client, err = NewAnthropicClient(config)
	case "openai":
		client, err = NewOpenAIClient(config)
	default:
		return fmt.Errorf("unknown provider: %s", config.Name)
	}

	if err != nil {
		return fmt.Errorf("failed to create provider %s: %w", config.Name, err)
	}

	return r.Register(config.Name, client, config)
}
