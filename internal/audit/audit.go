package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome - исход обработки платёжного уведомления
type Outcome string

const (
	// OutcomeFulfilled звёзды куплены и пользователь уведомлён
	OutcomeFulfilled Outcome = "fulfilled"
	// OutcomeFailed оплата прошла, но покупка звёзд не удалась
	OutcomeFailed Outcome = "failed"
	// OutcomeDeclined провайдер сообщил об отклонённом платеже
	OutcomeDeclined Outcome = "declined"
	// OutcomeUnmatched вебхук не скоррелирован ни с одним заказом
	OutcomeUnmatched Outcome = "unmatched"
)

// Record - запись аудита одного платёжного уведомления.
// Журнал append-only: сервис только пишет, обратно записи не читаются
type Record struct {
	ID              uuid.UUID
	Provider        string
	TransactionID   string
	OrderID         string
	Amount          float64
	Currency        string
	Status          string
	Outcome         Outcome
	ExternalOrderID string
	ErrorDetail     string
	RawPayload      json.RawMessage
	CreatedAt       time.Time
}

// NewRecord создаёт запись аудита с заполненными ID и временем
func NewRecord(provider, transactionID, orderID string, amount float64, currency, status string, outcome Outcome) Record {
	return Record{
		ID:            uuid.New(),
		Provider:      provider,
		TransactionID: transactionID,
		OrderID:       orderID,
		Amount:        amount,
		Currency:      currency,
		Status:        status,
		Outcome:       outcome,
		CreatedAt:     time.Now().UTC(),
	}
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Log --dir=. --output=./mocks --outpkg=mocks

// Log определяет интерфейс append-only журнала аудита
type Log interface {
	Record(ctx context.Context, rec Record) error
}

// ZapLog пишет записи аудита в структурированный лог.
// Используется, когда PostgreSQL не настроен
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog создаёт журнал аудита поверх zap
func NewZapLog(logger *zap.Logger) *ZapLog {
	return &ZapLog{logger: logger}
}

// Record логирует запись аудита
func (l *ZapLog) Record(ctx context.Context, rec Record) error {
	l.logger.Info("payment audit record",
		zap.String("audit_id", rec.ID.String()),
		zap.String("provider", rec.Provider),
		zap.String("transaction_id", rec.TransactionID),
		zap.String("order_id", rec.OrderID),
		zap.Float64("amount", rec.Amount),
		zap.String("currency", rec.Currency),
		zap.String("status", rec.Status),
		zap.String("outcome", string(rec.Outcome)),
		zap.String("external_order_id", rec.ExternalOrderID),
		zap.String("error_detail", rec.ErrorDetail),
	)
	return nil
}
