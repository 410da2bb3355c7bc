package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/audit"
	"github.com/brianDahlin/Star-driver/internal/dedup"
	"github.com/brianDahlin/Star-driver/internal/registry"
)

// Orchestrator выполняет fulfillment по проверенному, не-дублированному платёжному событию:
// коррелирует его с намерением заказа, определяет получателя, покупает звёзды,
// уведомляет пользователя и пишет аудит.
// Автоматических retry нет: неудачный fulfillment терминален для этого вызова,
// повторная попытка возможна только через retry вебхука самим провайдером
type Orchestrator struct {
	logger      *zap.Logger
	registry    registry.Registry
	claims      dedup.Claimer
	provisioner Provisioner
	resolver    RecipientResolver
	notifier    Notifier
	auditLog    audit.Log
	publisher   ProcessedEventPublisher
}

// NewOrchestrator создаёт новый оркестратор fulfillment
func NewOrchestrator(
	logger *zap.Logger,
	reg registry.Registry,
	claims dedup.Claimer,
	provisioner Provisioner,
	resolver RecipientResolver,
	notifier Notifier,
	auditLog audit.Log,
	publisher ProcessedEventPublisher,
) *Orchestrator {
	return &Orchestrator{
		logger:      logger,
		registry:    reg,
		claims:      claims,
		provisioner: provisioner,
		resolver:    resolver,
		notifier:    notifier,
		auditLog:    auditLog,
		publisher:   publisher,
	}
}

// HandlePaid обрабатывает подтверждённый платёж.
// dedupKey - ключ, под которым вебхук был захвачен на входе; при терминальной
// ошибке fulfillment захват снимается, чтобы retry провайдера мог повторить попытку.
// Намерение заказа удаляется из реестра только после успешной покупки
func (o *Orchestrator) HandlePaid(ctx context.Context, event PaymentEvent, dedupKey string) error {
	o.logger.Info("handling paid webhook",
		zap.String("provider", event.Provider),
		zap.String("transaction_id", event.TransactionID),
		zap.String("order_id", event.OrderID),
		zap.Float64("amount", event.Amount),
		zap.String("currency", event.Currency),
	)

	// 1. Коррелируем с намерением заказа
	intent, err := o.registry.Get(ctx, event.OrderID)
	if err != nil {
		// Недоступность реестра - не "заказ не найден": захват снимается,
		// чтобы retry провайдера повторил обработку
		if !errors.Is(err, registry.ErrNotFound) {
			return o.handleRegistryFailure(ctx, event, dedupKey, err)
		}

		// Единственный сценарий тихой потери: без намерения неизвестен получатель,
		// уведомить некого. Должен быть виден в логах и аудите
		o.logger.Warn("webhook does not match any registered order",
			zap.String("provider", event.Provider),
			zap.String("transaction_id", event.TransactionID),
			zap.String("order_id", event.OrderID),
		)
		o.recordAudit(ctx, event, audit.OutcomeUnmatched, "", "order intent not found")
		return nil
	}

	// 2. Определяем получателя звёзд
	recipient := o.resolveRecipient(ctx, intent)

	// 3. Покупаем звёзды
	externalOrderID, err := o.provisioner.BuyStars(ctx, recipient, intent.Quantity, event.RevealSender)
	if err != nil {
		return o.handleProvisioningFailure(ctx, event, intent, dedupKey, err)
	}

	// 4. Успех: аудит, уведомление, удаление намерения
	o.logger.Info("stars purchased",
		zap.String("order_id", event.OrderID),
		zap.String("external_order_id", externalOrderID),
		zap.String("recipient", recipient),
		zap.Int("quantity", intent.Quantity),
	)

	o.recordAudit(ctx, event, audit.OutcomeFulfilled, externalOrderID, "")

	if err := o.notifier.NotifySuccess(ctx, intent.RequesterID, intent.Quantity, intent.IsGift, recipient, externalOrderID); err != nil {
		o.logger.Error("failed to send success notification",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
			zap.Int64("requester_id", intent.RequesterID),
		)
	}

	if err := o.registry.Remove(ctx, event.OrderID); err != nil {
		o.logger.Error("failed to remove fulfilled order intent",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
		)
	}

	o.publishProcessed(ctx, event, audit.OutcomeFulfilled)
	return nil
}

// HandleDeclined обрабатывает отклонённый платёж: аудит и уведомление,
// без покупки звёзд. Намерение заказа НЕ удаляется - пользователь может
// оплатить тот же заказ повторно. Политика едина для всех провайдеров
func (o *Orchestrator) HandleDeclined(ctx context.Context, event PaymentEvent, dedupKey string) error {
	o.logger.Info("handling declined webhook",
		zap.String("provider", event.Provider),
		zap.String("transaction_id", event.TransactionID),
		zap.String("order_id", event.OrderID),
	)

	intent, err := o.registry.Get(ctx, event.OrderID)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return o.handleRegistryFailure(ctx, event, dedupKey, err)
	}

	o.recordAudit(ctx, event, audit.OutcomeDeclined, "", "")

	if err != nil {
		// Заказ неизвестен - уведомлять некого
		return nil
	}

	if err := o.notifier.NotifyDeclined(ctx, intent.RequesterID, event.OrderID); err != nil {
		o.logger.Error("failed to send declined notification",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
			zap.Int64("requester_id", intent.RequesterID),
		)
	}

	o.publishProcessed(ctx, event, audit.OutcomeDeclined)
	return nil
}

// resolveRecipient определяет получателя звёзд: для подарка - указанный username,
// иначе username самого заказчика; если username не разрешился, берётся
// синтетический placeholder от ID заказчика
func (o *Orchestrator) resolveRecipient(ctx context.Context, intent registry.Intent) string {
	if intent.IsGift && intent.GiftRecipient != "" {
		return intent.GiftRecipient
	}

	username, err := o.resolver.ResolveUsername(ctx, intent.RequesterID)
	if err != nil {
		o.logger.Warn("failed to resolve requester username, using placeholder",
			zap.Error(err),
			zap.Int64("requester_id", intent.RequesterID),
		)
		return placeholderRecipient(intent.RequesterID)
	}
	if username == "" {
		return placeholderRecipient(intent.RequesterID)
	}

	return username
}

// handleRegistryFailure обрабатывает недоступность реестра заказов: сбой стора,
// а не отсутствие заказа. Аудит failed и снятие захвата, чтобы retry провайдера
// повторил обработку, когда реестр восстановится
func (o *Orchestrator) handleRegistryFailure(ctx context.Context, event PaymentEvent, dedupKey string, getErr error) error {
	o.logger.Error("failed to read order registry",
		zap.Error(getErr),
		zap.String("provider", event.Provider),
		zap.String("transaction_id", event.TransactionID),
		zap.String("order_id", event.OrderID),
	)

	o.recordAudit(ctx, event, audit.OutcomeFailed, "", getErr.Error())

	if err := o.claims.Release(ctx, dedupKey); err != nil {
		o.logger.Error("failed to release webhook claim",
			zap.Error(err),
			zap.String("dedup_key", dedupKey),
		)
	}

	o.publishProcessed(ctx, event, audit.OutcomeFailed)
	return fmt.Errorf("order registry lookup failed for order %s: %w", event.OrderID, getErr)
}

// handleProvisioningFailure обрабатывает терминальную ошибку покупки звёзд:
// аудит, уведомление о неудаче и снятие dedup-захвата, чтобы retry того же
// вебхука от провайдера мог повторить fulfillment. Намерение заказа сохраняется
func (o *Orchestrator) handleProvisioningFailure(ctx context.Context, event PaymentEvent, intent registry.Intent, dedupKey string, provisionErr error) error {
	o.logger.Error("stars provisioning failed",
		zap.Error(provisionErr),
		zap.String("provider", event.Provider),
		zap.String("transaction_id", event.TransactionID),
		zap.String("order_id", event.OrderID),
	)

	o.recordAudit(ctx, event, audit.OutcomeFailed, "", provisionErr.Error())

	if err := o.notifier.NotifyFailure(ctx, intent.RequesterID, intent.Quantity, intent.IsGift, provisionErr.Error()); err != nil {
		o.logger.Error("failed to send failure notification",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
			zap.Int64("requester_id", intent.RequesterID),
		)
	}

	if err := o.claims.Release(ctx, dedupKey); err != nil {
		o.logger.Error("failed to release webhook claim",
			zap.Error(err),
			zap.String("dedup_key", dedupKey),
		)
	}

	o.publishProcessed(ctx, event, audit.OutcomeFailed)
	return fmt.Errorf("stars provisioning failed for order %s: %w", event.OrderID, provisionErr)
}

// recordAudit пишет запись аудита; ошибка записи логируется и не прерывает обработку
func (o *Orchestrator) recordAudit(ctx context.Context, event PaymentEvent, outcome audit.Outcome, externalOrderID, errorDetail string) {
	rec := audit.NewRecord(event.Provider, event.TransactionID, event.OrderID, event.Amount, event.Currency, string(event.Status), outcome)
	rec.ExternalOrderID = externalOrderID
	rec.ErrorDetail = errorDetail
	rec.RawPayload = event.Raw

	if err := o.auditLog.Record(ctx, rec); err != nil {
		o.logger.Error("failed to write audit record",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
			zap.String("outcome", string(outcome)),
		)
	}
}

// publishProcessed публикует событие об обработанном вебхуке; ошибка логируется
func (o *Orchestrator) publishProcessed(ctx context.Context, event PaymentEvent, outcome audit.Outcome) {
	err := o.publisher.PublishWebhookProcessed(ctx, ProcessedEvent{
		Provider:      event.Provider,
		TransactionID: event.TransactionID,
		OrderID:       event.OrderID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		Outcome:       outcome,
	})
	if err != nil {
		o.logger.Error("failed to publish webhook processed event",
			zap.Error(err),
			zap.String("order_id", event.OrderID),
		)
	}
}

// placeholderRecipient строит синтетический username от ID заказчика
func placeholderRecipient(requesterID int64) string {
	return fmt.Sprintf("id%d", requesterID)
}
