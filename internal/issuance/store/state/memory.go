// Package state persists the issuance singleton: the mutable settings plus
// the height at which the randomness request was issued.
package state

import (
	"context"
	"sync"

	"bestiary/internal/issuance/models"
)

// State is the single durable row of issuance bookkeeping. A zero
// RandomnessRequestedAt means the beacon request has not been issued yet.
type State struct {
	Settings              models.Settings
	RandomnessRequestedAt uint64
}

// clone deep-copies the threshold slice so callers cannot alias stored state.
func (s State) clone() State {
	if s.Settings.RarityThresholds != nil {
		s.Settings.RarityThresholds = append([]uint32(nil), s.Settings.RarityThresholds...)
	}
	return s
}

// InMemory holds the state singleton for tests and single-node dev runs.
type InMemory struct {
	mu    sync.RWMutex
	state State
}

func NewInMemory(initial State) *InMemory {
	return &InMemory{state: initial.clone()}
}

func (s *InMemory) Load(_ context.Context) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone(), nil
}

func (s *InMemory) Save(_ context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.clone()
	return nil
}
