package mystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type integrationRecord struct {
	UID      string
	Provider string
	Enabled  bool
}

var (
	record = integrationRecord{UID: "123", Provider: "labcorp", Enabled: true}
)

func TestStore(t *testing.T) {
	c := context.TODO()
	sut, cleanup, err := NewInMemoryStore[integrationRecord](c)
	assert.NoError(t, err)
	defer cleanup()

	t.Run("Get non-existing", func(t *testing.T) {
		_, exists, err := sut.Get(c, "unknown")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Put and get", func(t *testing.T) {
		err := sut.Put(c, record.UID, record)
		assert.NoError(t, err)

		got, exists, err := sut.Get(c, record.UID)
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, record, got)
	})

	t.Run("List", func(t *testing.T) {
		all, err := sut.List(c)
		assert.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Remove", func(t *testing.T) {
		err := sut.Remove(c, record.UID)
		assert.NoError(t, err)

		_, exists, err := sut.Get(c, record.UID)
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Put within transaction is visible afterwards", func(t *testing.T) {
		err := sut.RunInTransaction(c, func(c context.Context) error {
			return sut.Put(c, record.UID, record)
		})
		assert.NoError(t, err)

		_, exists, err := sut.Get(c, record.UID)
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Failing transaction returns error", func(t *testing.T) {
		err := sut.RunInTransaction(c, func(c context.Context) error {
			return assert.AnError
		})
		assert.Error(t, err)
	})
}
