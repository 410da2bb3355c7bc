package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/registry"
)

const (
	hashFieldRequesterID   = "requester_id"
	hashFieldQuantity      = "quantity"
	hashFieldIsGift        = "is_gift"
	hashFieldGiftRecipient = "gift_recipient"
	hashFieldDescription   = "description"
	hashFieldCreatedAt     = "created_at"
)

// OrderRegistry реализует registry.Registry используя Redis hash.
// TTL на заказы не ставится: намерение живёт до явного удаления
type OrderRegistry struct {
	client *redis.Client
	logger *zap.Logger
}

// NewOrderRegistry создаёт новый Redis реестр заказов
func NewOrderRegistry(client *redis.Client, logger *zap.Logger) *OrderRegistry {
	return &OrderRegistry{
		client: client,
		logger: logger,
	}
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}

// Put сохраняет намерение заказа в Redis (hash)
func (r *OrderRegistry) Put(ctx context.Context, intent registry.Intent) error {
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	key := orderKey(intent.OrderID)
	err := r.client.HSet(ctx, key,
		hashFieldRequesterID, strconv.FormatInt(intent.RequesterID, 10),
		hashFieldQuantity, strconv.Itoa(intent.Quantity),
		hashFieldIsGift, strconv.FormatBool(intent.IsGift),
		hashFieldGiftRecipient, intent.GiftRecipient,
		hashFieldDescription, intent.Description,
		hashFieldCreatedAt, intent.CreatedAt.Format(time.RFC3339),
	).Err()
	if err != nil {
		r.logger.Error("failed to save order intent in redis",
			zap.Error(err),
			zap.String("order_id", intent.OrderID),
		)
		return fmt.Errorf("failed to save order intent: %w", err)
	}

	return nil
}

// Get возвращает намерение по ID заказа из Redis hash
func (r *OrderRegistry) Get(ctx context.Context, orderID string) (registry.Intent, error) {
	key := orderKey(orderID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		r.logger.Error("failed to get order intent from redis",
			zap.Error(err),
			zap.String("order_id", orderID),
		)
		return registry.Intent{}, fmt.Errorf("failed to get order intent: %w", err)
	}

	// HGetAll возвращает пустую map для отсутствующего ключа
	if len(fields) == 0 {
		return registry.Intent{}, registry.ErrNotFound
	}

	requesterID, err := strconv.ParseInt(fields[hashFieldRequesterID], 10, 64)
	if err != nil {
		return registry.Intent{}, fmt.Errorf("corrupted requester_id for order %s: %w", orderID, err)
	}
	quantity, err := strconv.Atoi(fields[hashFieldQuantity])
	if err != nil {
		return registry.Intent{}, fmt.Errorf("corrupted quantity for order %s: %w", orderID, err)
	}
	isGift, _ := strconv.ParseBool(fields[hashFieldIsGift])
	createdAt, _ := time.Parse(time.RFC3339, fields[hashFieldCreatedAt])

	return registry.Intent{
		OrderID:       orderID,
		RequesterID:   requesterID,
		Quantity:      quantity,
		IsGift:        isGift,
		GiftRecipient: fields[hashFieldGiftRecipient],
		Description:   fields[hashFieldDescription],
		CreatedAt:     createdAt,
	}, nil
}

// Remove удаляет намерение заказа из Redis
func (r *OrderRegistry) Remove(ctx context.Context, orderID string) error {
	err := r.client.Del(ctx, orderKey(orderID)).Err()
	if err != nil {
		r.logger.Error("failed to remove order intent from redis",
			zap.Error(err),
			zap.String("order_id", orderID),
		)
		return fmt.Errorf("failed to remove order intent: %w", err)
	}

	return nil
}
