package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/provider"
)

type stubClient struct {
	name  string
	model string
}

func (s *stubClient) Generate(context.Context, *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	return &provider.GenerateResponse{}, nil
}
func (s *stubClient) Info() *provider.Info {
	return &provider.Info{Name: s.name, Model: s.model}
}
func (s *stubClient) Health(context.Context) error { return nil }
func (s *stubClient) Close() error                 { return nil }

type stubRegistry map[string]provider.Client

func (r stubRegistry) Get(name string) (provider.Client, error) {
	c, ok := r[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeProviderNotFound, "not found")
	}
	return c, nil
}

func testConfig() *Config {
	return &Config{
		Default: ModelChoice{Provider: "anthropic", CostPerMToken: 6.0},
		Phases: map[Phase]ModelChoice{
			PhaseRepair: {Provider: "openai", Model: "gpt-4o-mini", CostPerMToken: 0.3},
		},
		BudgetUSD: 1.0,
	}
}

func testRegistry() stubRegistry {
	return stubRegistry{
		"anthropic": &stubClient{name: "anthropic", model: "claude-sonnet-4-20250514"},
		"openai":    &stubClient{name: "openai", model: "gpt-4o"},
	}
}

func TestSelectPhaseBinding(t *testing.T) {
	r, err := New(testConfig(), testRegistry())
	require.NoError(t, err)

	sel, err := r.Select(PhaseRepair)
	require.NoError(t, err)
	assert.Equal(t, "openai", sel.Provider)
	assert.Equal(t, "gpt-4o-mini", sel.Model)

	// Unbound phases fall back to the default choice and the
	// provider's default model.
	sel, err = r.Select(PhaseGeneration)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", sel.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", sel.Model)
}

func TestBudgetAccounting(t *testing.T) {
	r, err := New(testConfig(), testRegistry())
	require.NoError(t, err)

	sel, err := r.Select(PhaseGeneration)
	require.NoError(t, err)

	// 100k tokens at $6/Mtok is $0.60.
	r.Record(sel, PhaseGeneration, "node-001", 100_000, 2*time.Second)

	b := r.Budget()
	assert.InDelta(t, 0.60, b.SpentUSD, 1e-9)
	assert.InDelta(t, 0.40, b.RemainingUSD, 1e-9)
	assert.Equal(t, 1, b.UsageCount)

	// Second call pushes past the limit; the next Select must fail.
	r.Record(sel, PhaseGeneration, "node-002", 100_000, time.Second)
	_, err = r.Select(PhaseGeneration)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProviderBudget))

	log := r.UsageLog()
	require.Len(t, log, 2)
	assert.Equal(t, "node-001", log[0].NodeID)
}

func TestZeroBudgetMeansUnlimited(t *testing.T) {
	cfg := testConfig()
	cfg.BudgetUSD = 0
	r, err := New(cfg, testRegistry())
	require.NoError(t, err)

	sel, err := r.Select(PhaseGeneration)
	require.NoError(t, err)
	r.Record(sel, PhaseGeneration, "", 10_000_000, time.Second)

	_, err = r.Select(PhaseGeneration)
	assert.NoError(t, err)
}
