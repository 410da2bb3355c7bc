package memory

import (
	"context"
	"sync"
	"time"

	"github.com/brianDahlin/Star-driver/internal/registry"
)

// MemoryRegistry реализует Registry используя in-memory map
// Используется для single-instance деплоя и тестов.
// В production с несколькими инстансами должен быть заменён на Redis
type MemoryRegistry struct {
	mu      sync.RWMutex
	intents map[string]registry.Intent
}

// NewMemoryRegistry создаёт новый in-memory реестр заказов
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		intents: make(map[string]registry.Intent),
	}
}

// Put сохраняет намерение заказа
// Защищён мьютексом для безопасного доступа из разных горутин
func (r *MemoryRegistry) Put(ctx context.Context, intent registry.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	r.intents[intent.OrderID] = intent
	return nil
}

// Get возвращает намерение по ID заказа
func (r *MemoryRegistry) Get(ctx context.Context, orderID string) (registry.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intent, exists := r.intents[orderID]
	if !exists {
		return registry.Intent{}, registry.ErrNotFound
	}

	return intent, nil
}

// Remove удаляет намерение. Удаление отсутствующего заказа - no-op
func (r *MemoryRegistry) Remove(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.intents, orderID)
	return nil
}
