package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryClaimer реализует Claimer используя in-memory map с TTL.
// Протухшие записи вычищаются лениво при каждом Claim, фонового таймера нет.
// Используется для single-instance деплоя и тестов
type MemoryClaimer struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> время захвата
	ttl    time.Duration
}

// NewMemoryClaimer создаёт новый in-memory claimer с указанным TTL
func NewMemoryClaimer(ttl time.Duration) *MemoryClaimer {
	return &MemoryClaimer{
		claims: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Claim захватывает ключ, если он свободен или протух.
// Возвращает true, если захват выполнен этим вызовом
func (c *MemoryClaimer) Claim(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Ленивая очистка протухших записей
	c.sweepExpiredLocked()

	claimedAt, exists := c.claims[key]
	if exists && time.Since(claimedAt) < c.ttl {
		return false, nil
	}

	c.claims[key] = time.Now()
	return true, nil
}

// Release снимает захват ключа
func (c *MemoryClaimer) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.claims, key)
	return nil
}

// sweepExpiredLocked удаляет протухшие записи (вызывается с уже захваченным lock)
func (c *MemoryClaimer) sweepExpiredLocked() {
	now := time.Now()
	for key, claimedAt := range c.claims {
		if now.Sub(claimedAt) >= c.ttl {
			delete(c.claims, key)
		}
	}
}
