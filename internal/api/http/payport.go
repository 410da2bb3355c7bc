package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/service"
	"github.com/brianDahlin/Star-driver/internal/verify"
)

// payportWebhook - тело вебхука payport (legacy-провайдер).
// Аутентификация - эхо секретного ключа мерчанта в теле запроса
type payportWebhook struct {
	PrivateKey    string  `json:"private_key"`
	TransactionID string  `json:"transaction_id"`
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	Test          bool    `json:"test"`
}

// HandlePayport обрабатывает POST /webhooks/payport
func (h *Handler) HandlePayport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read payport webhook body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var payload payportWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed payport webhook payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	h.handlePayportPayload(r.Context(), w, payload, body)
}

func (h *Handler) handlePayportPayload(ctx context.Context, w http.ResponseWriter, payload payportWebhook, body []byte) {
	if payload.Test {
		// Тестовые уведомления проходят без проверки ключа, но никогда
		// не приводят к выдаче звёзд
		h.logger.Warn("payport test webhook received",
			zap.String("transaction_id", payload.TransactionID),
			zap.String("order_id", payload.OrderID),
		)
	}

	ok := verify.PayportVerify(
		h.payportKey,
		payload.PrivateKey,
		payload.Test,
		payload.TransactionID,
		payload.OrderID,
	)
	if !ok {
		h.logger.Warn("payport webhook key verification failed",
			zap.String("transaction_id", payload.TransactionID),
			zap.String("order_id", payload.OrderID),
		)
		h.writeError(w, http.StatusUnauthorized, "invalid key")
		return
	}

	// Ping без идентификаторов: провайдер проверяет доступность эндпоинта
	if payload.TransactionID == "" && payload.OrderID == "" {
		h.logger.Info("payport ping acknowledged")
		h.ackOK(w)
		return
	}

	if payload.Test {
		h.ackOK(w)
		return
	}

	currency := payload.Currency
	if currency == "" {
		currency = "RUB"
	}

	event := service.PaymentEvent{
		Provider:      "payport",
		TransactionID: payload.TransactionID,
		OrderID:       payload.OrderID,
		Amount:        payload.Amount,
		Currency:      currency,
		Raw:           body,
		RevealSender:  true,
	}

	switch payload.Status {
	case "success":
		event.Status = service.StatusPaid
	case "fail":
		event.Status = service.StatusDeclined
	default:
		h.logger.Info("payport webhook with unhandled status acknowledged",
			zap.String("status", payload.Status),
			zap.String("transaction_id", payload.TransactionID),
		)
		h.ackOK(w)
		return
	}

	h.processEvent(ctx, w, event)
}
