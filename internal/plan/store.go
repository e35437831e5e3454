package plan

import (
	"fmt"
	"sync"

	"github.com/appforge/appforge/internal/errors"
)

// Edit mutates a working copy of the plan. The store applies it under
// lock against a fresh clone; returning an error discards the copy.
type Edit func(*ApplicationPlan) error

// Store is the single owner of the application plan. All reads get
// immutable snapshots; all writes go through ApplyEdit with optimistic
// version checking.
type Store struct {
	mu          sync.RWMutex
	plan        *ApplicationPlan
	hash        string
	subscribers []func(*ApplicationPlan)
}

// NewStore creates a store owning the given plan. The plan must already
// validate; the store hashes it for cheap conflict checks later.
func NewStore(p *ApplicationPlan) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cp := p.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	h, err := cp.Hash()
	if err != nil {
		return nil, err
	}

	return &Store{plan: cp, hash: h}, nil
}

// Current returns a snapshot of the plan at its current version
func (s *Store) Current() *ApplicationPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan.Clone()
}

// Version returns the current plan version
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan.Version
}

// Hash returns the content hash of the current plan
func (s *Store) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}

// ApplyEdit applies an edit against baseVersion. If the store has moved
// past baseVersion the edit is rejected with a conflict error and the
// caller must reload and retry.
func (s *Store) ApplyEdit(baseVersion int64, edit Edit) (*ApplicationPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plan.Version != baseVersion {
		return nil, errors.NewPlanConflictError(baseVersion, s.plan.Version)
	}

	working := s.plan.Clone()
	if err := edit(working); err != nil {
		return nil, fmt.Errorf("applying plan edit: %w", err)
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}

	working.Version = baseVersion + 1
	h, err := working.Hash()
	if err != nil {
		return nil, err
	}

	s.plan = working
	s.hash = h
	s.notifyLocked()
	return working.Clone(), nil
}

// Replace swaps in an externally loaded plan (e.g. the operator edited
// the plan file on disk). Always bumps the version so in-flight batches
// observe the conflict; a content-identical plan is a no-op.
func (s *Store) Replace(p *ApplicationPlan) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	h, err := p.Hash()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h == s.hash {
		return s.plan.Version, nil
	}

	cp := p.Clone()
	cp.Version = s.plan.Version + 1
	s.plan = cp
	s.hash = h
	s.notifyLocked()
	return cp.Version, nil
}

// UpdateStatus records generation progress for a node. Progress is not
// plan content: it does not bump the version, so a status change never
// invalidates in-flight batches.
func (s *Store) UpdateStatus(nodeID string, status NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.plan.Node(nodeID)
	if !ok {
		return errors.New(errors.ErrCodePlanNodeMissing,
			fmt.Sprintf("cannot update status of unknown node %q", nodeID))
	}
	node.Status = status
	return nil
}

// Subscribe registers a callback invoked after every committed plan
// change. The usage index rebuilds through this hook.
func (s *Store) Subscribe(fn func(*ApplicationPlan)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
	fn(s.plan.Clone())
}

func (s *Store) notifyLocked() {
	snapshot := s.plan.Clone()
	for _, fn := range s.subscribers {
		fn(snapshot)
	}
}
