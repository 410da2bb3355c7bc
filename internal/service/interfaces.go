package service

import (
	"context"
	"encoding/json"

	"github.com/brianDahlin/Star-driver/internal/audit"
)

// EventStatus - статус платежа в нормализованном событии
type EventStatus string

const (
	// StatusPaid платёж подтверждён провайдером
	StatusPaid EventStatus = "paid"
	// StatusDeclined платёж отклонён провайдером
	StatusDeclined EventStatus = "declined"
)

// PaymentEvent - нормализованное, провайдеро-независимое представление вебхука.
// Создаётся на каждый входящий запрос, не переживает его обработку
type PaymentEvent struct {
	// Provider имя провайдера (wata/crypay/payport)
	Provider string
	// TransactionID идентификатор транзакции на стороне провайдера
	TransactionID string
	// OrderID идентификатор заказа (может быть пустым/неразрешимым)
	OrderID string
	// Amount сумма платежа
	Amount float64
	// Currency валюта платежа
	Currency string
	// Status paid или declined
	Status EventStatus
	// Commission комиссия провайдера, если передана
	Commission float64
	// Raw исходное тело вебхука, сохраняется в аудит как есть
	Raw json.RawMessage
	// RevealSender показывать ли отправителя при покупке звёзд.
	// Флаг задаётся обрабатывающим путём провайдера, не хардкодится
	RevealSender bool
}

// ProcessedEvent - событие о терминально обработанном вебхуке (исходящее в Kafka)
type ProcessedEvent struct {
	Provider      string
	TransactionID string
	OrderID       string
	Amount        float64
	Currency      string
	Outcome       audit.Outcome
}

// Provisioner определяет интерфейс API покупки звёзд
//
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Provisioner --dir=. --output=./mocks --outpkg=mocks
type Provisioner interface {
	// BuyStars покупает quantity звёзд получателю recipient.
	// Возвращает внешний идентификатор заказа провайдера звёзд
	BuyStars(ctx context.Context, recipient string, quantity int, showSender bool) (string, error)
}

// RecipientResolver разрешает Telegram username пользователя по его ID
type RecipientResolver interface {
	// ResolveUsername возвращает username без @; пустая строка - username не задан
	ResolveUsername(ctx context.Context, requesterID int64) (string, error)
}

// Notifier отправляет пользователю сообщения об исходе заказа.
// Все методы fire-and-forget с точки зрения оркестратора: ошибка доставки
// логируется и не влияет ни на fulfillment, ни на ответ провайдеру
type Notifier interface {
	NotifySuccess(ctx context.Context, requesterID int64, quantity int, isGift bool, recipient, externalOrderID string) error
	NotifyFailure(ctx context.Context, requesterID int64, quantity int, isGift bool, errorDetail string) error
	NotifyDeclined(ctx context.Context, requesterID int64, orderID string) error
}

// ProcessedEventPublisher публикует события об обработанных вебхуках
type ProcessedEventPublisher interface {
	PublishWebhookProcessed(ctx context.Context, event ProcessedEvent) error
}
