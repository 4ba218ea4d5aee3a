package myvault

import (
	"context"

	"github.com/carevista/practicebackend/lib/mystore"
)

type vault[T any] struct {
	store mystore.Store[T]
}

// New returns a vault backed by the default store (in-memory locally,
// datastore on gcloud).
func New[T any](c context.Context) (*vault[T], func(), error) {
	store, cleanup, err := mystore.New[T](c)
	if err != nil {
		return nil, nil, err
	}

	return &vault[T]{
		store: store,
	}, cleanup, nil
}

func (v *vault[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	return v.store.RunInTransaction(c, f)
}

func (v *vault[T]) Get(c context.Context, uid string) (T, bool, error) {
	return v.store.Get(c, uid)
}

func (v *vault[T]) Put(c context.Context, uid string, value T) error {
	return v.store.Put(c, uid, value)
}

func (v *vault[T]) List(c context.Context) ([]T, error) {
	return v.store.List(c)
}
