// Package router selects a provider and model for each phase of a
// generation run and enforces the run's USD budget.
package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/provider"
)

// Router resolves phases to provider clients and tracks spend.
type Router struct {
	mu       sync.Mutex
	config   *Config
	registry Registry
	budget   Budget
	usage    []Usage
}

// Registry is the subset of the provider registry the router needs.
type Registry interface {
	Get(name string) (provider.Client, error)
}

// New creates a router over the given provider registry.
func New(config *Config, registry Registry) (*Router, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if config.Default.Provider == "" {
		return nil, fmt.Errorf("default model choice is required")
	}

	return &Router{
		config:   config,
		registry: registry,
		budget: Budget{
			LimitUSD:     config.BudgetUSD,
			RemainingUSD: config.BudgetUSD,
		},
	}, nil
}

// Selection is a resolved phase binding ready to generate with.
type Selection struct {
	Client   provider.Client
	Provider string
	Model    string

	costPerMToken float64
}

// Select resolves the client and model for a phase. It fails when the
// budget is already exhausted so callers stop before spending more.
func (r *Router) Select(phase Phase) (*Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.budget.LimitUSD > 0 && r.budget.RemainingUSD <= 0 {
		return nil, errors.New(errors.ErrCodeProviderBudget,
			fmt.Sprintf("budget exhausted: $%.4f spent of $%.2f limit",
				r.budget.SpentUSD, r.budget.LimitUSD)).
			WithSuggestion("Raise budget_usd in config or resume with a fresh budget")
	}

	choice, ok := r.config.Phases[phase]
	if !ok || choice.Provider == "" {
		choice = r.config.Default
	}

	client, err := r.registry.Get(choice.Provider)
	if err != nil {
		return nil, err
	}

	model := choice.Model
	if model == "" {
		model = client.Info().Model
	}

	return &Selection{
		Client:        client,
		Provider:      choice.Provider,
		Model:         model,
		costPerMToken: choice.CostPerMToken,
	}, nil
}

// Record accounts one completed model call against the budget.
func (r *Router) Record(sel *Selection, phase Phase, nodeID string, tokens int, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cost := (float64(tokens) / 1_000_000.0) * sel.costPerMToken

	r.budget.SpentUSD += cost
	r.budget.UsageCount++
	if r.budget.LimitUSD > 0 {
		r.budget.RemainingUSD = r.budget.LimitUSD - r.budget.SpentUSD
	}

	r.usage = append(r.usage, Usage{
		Phase:     phase,
		Provider:  sel.Provider,
		Model:     sel.Model,
		Tokens:    tokens,
		CostUSD:   cost,
		Latency:   latency,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	})
}

// Budget returns a snapshot of the current budget state.
func (r *Router) Budget() Budget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.budget
}

// UsageLog returns a copy of all recorded usage entries.
func (r *Router) UsageLog() []Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Usage, len(r.usage))
	copy(out, r.usage)
	return out
}
