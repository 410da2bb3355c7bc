package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brianDahlin/Star-driver/internal/registry"
)

func TestMemoryRegistry_PutGet(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	intent := registry.Intent{
		OrderID:     "ord-1",
		RequesterID: 42,
		Quantity:    100,
	}

	err := reg.Put(ctx, intent)
	assert.NoError(t, err)

	got, err := reg.Get(ctx, "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, int64(42), got.RequesterID)
	assert.Equal(t, 100, got.Quantity)
	assert.False(t, got.CreatedAt.IsZero(), "Put должен проставить CreatedAt")
}

func TestMemoryRegistry_GetNotFound(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	_, err := reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestMemoryRegistry_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	err := reg.Put(ctx, registry.Intent{OrderID: "ord-1", RequesterID: 42, Quantity: 50})
	assert.NoError(t, err)

	// Повторный Put с тем же OrderID перезаписывает (last write wins)
	err = reg.Put(ctx, registry.Intent{OrderID: "ord-1", RequesterID: 42, Quantity: 200})
	assert.NoError(t, err)

	got, err := reg.Get(ctx, "ord-1")
	assert.NoError(t, err)
	assert.Equal(t, 200, got.Quantity)
}

func TestMemoryRegistry_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	err := reg.Put(ctx, registry.Intent{OrderID: "ord-1", RequesterID: 42, Quantity: 50})
	assert.NoError(t, err)

	err = reg.Remove(ctx, "ord-1")
	assert.NoError(t, err)

	_, err = reg.Get(ctx, "ord-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	// Удаление отсутствующего заказа - no-op, не ошибка
	err = reg.Remove(ctx, "ord-1")
	assert.NoError(t, err)
}
