package engine

import (
	"sync"

	"github.com/Rixmerz/rmeter/internal/plan"
)

// PlanStore is a minimal in-memory id->plan registry. Plan persistence,
// editing, and listing are explicitly out of scope for this engine; this
// only lets whatever supplies a plan externally (the CLI harness loading
// a file, or a host registering one over the control surface) hand it to
// Controller.Start by id, without the engine caring how it got there.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]*plan.Plan
}

// NewPlanStore builds an empty store.
func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[string]*plan.Plan)}
}

// Put registers p under its own ID, replacing any previous plan with the
// same ID.
func (s *PlanStore) Put(p *plan.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// Lookup implements engine.PlanLookup.
func (s *PlanStore) Lookup(id string) (*plan.Plan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	return p, ok
}
