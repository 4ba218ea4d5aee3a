package statestore

import (
	"context"
	"time"
)

// OAuthState guards one authorization-code callback against CSRF and replay.
// Created by initiate, consumed exactly once by callback, never updated.
type OAuthState struct {
	Token       string
	ProviderKey string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// StateStore is deliberately an interface: the default backing is a
// process-local map, which means a callback must land on the instance that
// issued the state. A shared backing (datastore, redis) can be wired in when
// running multiple instances.
//
//go:generate mockgen -source=api.go -package statestore -destination state_store_mock.go StateStore
type StateStore interface {
	Add(c context.Context, state OAuthState) error

	// Consume atomically looks up and deletes the state, so the same token
	// can never be validated twice. Expiry is left to the caller: a found
	// state is deleted even when it is already stale.
	Consume(c context.Context, token string) (OAuthState, bool, error)

	SweepExpired(c context.Context, now time.Time) (int, error)
}
