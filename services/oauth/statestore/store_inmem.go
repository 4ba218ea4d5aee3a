package statestore

import (
	"context"
	"sync"
	"time"
)

type inMemoryStateStore struct {
	sync.Mutex
	states map[string]OAuthState
}

func NewInMemoryStateStore() *inMemoryStateStore {
	return &inMemoryStateStore{
		states: make(map[string]OAuthState),
	}
}

func (s *inMemoryStateStore) Add(c context.Context, state OAuthState) error {
	s.Lock()
	defer s.Unlock()

	s.states[state.Token] = state

	return nil
}

func (s *inMemoryStateStore) Consume(c context.Context, token string) (OAuthState, bool, error) {
	s.Lock()
	defer s.Unlock()

	state, exists := s.states[token]
	if !exists {
		return OAuthState{}, false, nil
	}

	delete(s.states, token)

	return state, true, nil
}

func (s *inMemoryStateStore) SweepExpired(c context.Context, now time.Time) (int, error) {
	s.Lock()
	defer s.Unlock()

	count := 0
	for token, state := range s.states {
		if now.After(state.ExpiresAt) {
			delete(s.states, token)
			count++
		}
	}

	return count, nil
}
