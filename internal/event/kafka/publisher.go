package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/service"
)

// WebhookProcessedPublisher публикует события о терминально обработанных
// вебхуках в Kafka. Потребители: аналитика и сверка с провайдерами
type WebhookProcessedPublisher struct {
	logger *zap.Logger
	writer *kafka.Writer
	topic  string
}

// NewWebhookProcessedPublisher создаёт новый Kafka publisher
func NewWebhookProcessedPublisher(logger *zap.Logger, brokers []string, topic string) *WebhookProcessedPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &WebhookProcessedPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Close закрывает Kafka writer
func (p *WebhookProcessedPublisher) Close() error {
	return p.writer.Close()
}

// PublishWebhookProcessed публикует событие об обработанном вебхуке.
// Ключ сообщения - ID заказа, чтобы события одного заказа попадали
// в одну партицию и сохраняли порядок
func (p *WebhookProcessedPublisher) PublishWebhookProcessed(ctx context.Context, event service.ProcessedEvent) error {
	payload := map[string]interface{}{
		"event_id":       uuid.New().String(),
		"event_type":     "payment.webhook.processed",
		"event_version":  1,
		"occurred_at":    time.Now().UTC().Format(time.RFC3339),
		"provider":       event.Provider,
		"transaction_id": event.TransactionID,
		"order_id":       event.OrderID,
		"amount":         event.Amount,
		"currency":       event.Currency,
		"outcome":        string(event.Outcome),
	}

	valueBytes, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal webhook processed event",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	message := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: valueBytes,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.Error("failed to publish webhook processed event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("provider", event.Provider),
			zap.String("order_id", event.OrderID),
		)
		return err
	}

	p.logger.Info("webhook processed event published",
		zap.String("topic", p.topic),
		zap.String("provider", event.Provider),
		zap.String("order_id", event.OrderID),
		zap.String("outcome", string(event.Outcome)),
	)

	return nil
}

// NoOpPublisher - заглушка, когда Kafka не сконфигурирована
type NoOpPublisher struct {
	logger *zap.Logger
}

// NewNoOpPublisher создаёт no-op publisher
func NewNoOpPublisher(logger *zap.Logger) *NoOpPublisher {
	return &NoOpPublisher{logger: logger}
}

// PublishWebhookProcessed ничего не публикует, только логирует
func (p *NoOpPublisher) PublishWebhookProcessed(ctx context.Context, event service.ProcessedEvent) error {
	p.logger.Debug("no-op publisher: webhook processed event not published",
		zap.String("provider", event.Provider),
		zap.String("order_id", event.OrderID),
		zap.String("outcome", string(event.Outcome)),
	)
	return nil
}
