// Package checkpoint persists generation-run progress so an
// interrupted run can resume without regenerating completed batches.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/repair"
)

// RunStatus is the overall state of a generation run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// BatchRecord tracks one batch's progress.
type BatchRecord struct {
	Index       int       `json:"index"`
	NodeIDs     []string  `json:"node_ids"`
	Completed   bool      `json:"completed"`
	Retried     bool      `json:"retried"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// State is the durable record of one generation run.
type State struct {
	Version     string    `json:"version"`
	RunID       string    `json:"run_id"`
	PlanVersion int64     `json:"plan_version"`
	PlanHash    string    `json:"plan_hash"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      RunStatus `json:"status"`
	Error       string    `json:"error,omitempty"`

	// NodeStatus mirrors per-node progress so resume can restore it
	// into the plan store.
	NodeStatus map[string]plan.NodeStatus `json:"node_status"`

	Batches []BatchRecord `json:"batches"`

	// RepairAttempts is the history of the post-generation repair loop.
	RepairAttempts []repair.Attempt `json:"repair_attempts,omitempty"`
	RepairDone     bool             `json:"repair_done"`
}

// NewState creates the state for a fresh run over a plan snapshot.
func NewState(p *plan.ApplicationPlan, planHash string) *State {
	now := time.Now()
	return &State{
		Version:     "1.0",
		RunID:       uuid.NewString(),
		PlanVersion: p.Version,
		PlanHash:    planHash,
		StartedAt:   now,
		UpdatedAt:   now,
		Status:      StatusRunning,
		NodeStatus:  make(map[string]plan.NodeStatus),
	}
}

// BatchCompleted marks one batch done.
func (s *State) BatchCompleted(index int, nodeIDs []string, retried bool) {
	for i := range s.Batches {
		if s.Batches[i].Index == index {
			s.Batches[i].Completed = true
			s.Batches[i].Retried = retried
			s.Batches[i].CompletedAt = time.Now()
			return
		}
	}
	s.Batches = append(s.Batches, BatchRecord{
		Index:       index,
		NodeIDs:     nodeIDs,
		Completed:   true,
		Retried:     retried,
		CompletedAt: time.Now(),
	})
}

// IsBatchCompleted reports whether a batch finished in a prior run.
func (s *State) IsBatchCompleted(index int) bool {
	for _, b := range s.Batches {
		if b.Index == index {
			return b.Completed
		}
	}
	return false
}

// Manager persists run state as JSON at a fixed path.
type Manager struct {
	path string
}

// NewManager creates a manager writing to the given file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Save writes the state to disk, replacing any previous snapshot. The
// write goes through a temp file and rename so an interrupted save
// never leaves a torn checkpoint.
func (m *Manager) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("checkpoint state is nil")
	}
	state.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// Load reads the persisted state. Returns os.ErrNotExist wrapped when
// no checkpoint has been written yet.
func (m *Manager) Load() (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no checkpoint at %s: %w", m.path, err)
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	if state.NodeStatus == nil {
		state.NodeStatus = make(map[string]plan.NodeStatus)
	}
	return &state, nil
}

// Exists reports whether a checkpoint has been written.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Delete removes the checkpoint, if any.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
