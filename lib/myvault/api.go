package myvault

import (
	"context"
)

type VaultReader[T any] interface {
	Get(c context.Context, uid string) (T, bool, error)
}

//go:generate mockgen -source=api.go -package myvault -destination vault_read_writer_mock.go VaultReadWriter
type VaultReadWriter[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Get(c context.Context, uid string) (T, bool, error)
	Put(c context.Context, uid string, value T) error
	List(c context.Context) ([]T, error)
}
