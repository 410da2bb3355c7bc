package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/service"
)

// wataWebhook - тело вебхука wata (карты / СБП)
type wataWebhook struct {
	TransactionID     string  `json:"transactionId"`
	OrderID           string  `json:"orderId"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	TransactionStatus string  `json:"transactionStatus"`
	Commission        float64 `json:"commission"`
	ErrorDescription  string  `json:"errorDescription"`
}

// HandleWata обрабатывает POST /webhooks/wata.
// Подпись RSA проверяется над сырыми байтами тела ДО разбора JSON:
// любая пересериализация изменила бы байты и сломала подпись
func (h *Handler) HandleWata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read wata webhook body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("X-Signature")
	if !h.wata.Verify(ctx, body, signature) {
		h.logger.Warn("wata webhook signature verification failed",
			zap.Int("body_size", len(body)),
		)
		h.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload wataWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("malformed wata webhook payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	event := service.PaymentEvent{
		Provider:      "wata",
		TransactionID: payload.TransactionID,
		OrderID:       payload.OrderID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Commission:    payload.Commission,
		Raw:           body,
		// Покупки через wata анонимны для получателя
		RevealSender: false,
	}

	switch payload.TransactionStatus {
	case "Paid":
		event.Status = service.StatusPaid
	case "Declined":
		event.Status = service.StatusDeclined
	default:
		h.logger.Info("wata webhook with unhandled status acknowledged",
			zap.String("transaction_status", payload.TransactionStatus),
			zap.String("transaction_id", payload.TransactionID),
			zap.String("order_id", payload.OrderID),
		)
		h.ackOK(w)
		return
	}

	h.processEvent(ctx, w, event)
}
