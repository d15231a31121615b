package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scry-scanner/internal/storage"
)

func TestKVStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewKVStore(db, "scry:")
	ctx := context.Background()

	t.Run("hit returns value", func(t *testing.T) {
		mock.ExpectGet("scry:predictions").SetVal(`[]`)

		value, err := store.Get(ctx, "predictions")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(value))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss returns ErrNotFound", func(t *testing.T) {
		mock.ExpectGet("scry:missing").RedisNil()

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("server error is wrapped", func(t *testing.T) {
		mock.ExpectGet("scry:broken").SetErr(errors.New("connection reset"))

		_, err := store.Get(ctx, "broken")
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKVStore_Put(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewKVStore(db, "scry:")
	ctx := context.Background()

	value := []byte(`[{"id":"a"}]`)
	mock.ExpectSet("scry:predictions", value, 0).SetVal("OK")

	require.NoError(t, store.Put(ctx, "predictions", value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKVStore_PutEmptyKey(t *testing.T) {
	db, _ := redismock.NewClientMock()

	err := NewKVStore(db, "").Put(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
