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

// crypayWebhook - тело вебхука crypay (крипто-инвойсы)
type crypayWebhook struct {
	InvoiceID string  `json:"invoice_id"`
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	Sign      string  `json:"sign"`
}

// HandleCrypay обрабатывает POST /webhooks/crypay
func (h *Handler) HandleCrypay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read crypay webhook body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var payload crypayWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed crypay webhook payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	h.handleCrypayPayload(r.Context(), w, payload, body)
}

// handleCrypayPayload проверяет подпись и нормализует событие.
// Вынесено отдельно: сюда же попадают crypay-вебхуки с catch-all эндпоинта
func (h *Handler) handleCrypayPayload(ctx context.Context, w http.ResponseWriter, payload crypayWebhook, body []byte) {
	ok := verify.CrypayVerifyWebhook(
		h.crypayAPIKey,
		payload.InvoiceID,
		payload.OrderID,
		payload.Amount,
		payload.Currency,
		payload.Sign,
	)
	if !ok {
		h.logger.Warn("crypay webhook signature verification failed",
			zap.String("invoice_id", payload.InvoiceID),
			zap.String("order_id", payload.OrderID),
		)
		h.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event := service.PaymentEvent{
		Provider:      "crypay",
		TransactionID: payload.InvoiceID,
		OrderID:       payload.OrderID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Raw:           body,
		RevealSender:  true,
	}

	switch payload.Status {
	case "paid":
		event.Status = service.StatusPaid
	case "cancelled":
		event.Status = service.StatusDeclined
	default:
		h.logger.Info("crypay webhook with unhandled status acknowledged",
			zap.String("status", payload.Status),
			zap.String("invoice_id", payload.InvoiceID),
			zap.String("order_id", payload.OrderID),
		)
		h.ackOK(w)
		return
	}

	h.processEvent(ctx, w, event)
}
