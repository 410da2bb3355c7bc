package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// HandleCatchAll обрабатывает POST /webhooks - общий эндпоинт, на который
// исторически настроена часть провайдеров. Провайдер определяется по форме
// тела: crypay несёт invoice_id и sign, payport - private_key.
// Неопознанное, но синтаксически корректное тело подтверждается, чтобы
// не провоцировать бесконечные ретраи
func (h *Handler) HandleCatchAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var probe struct {
		InvoiceID  string `json:"invoice_id"`
		Sign       string `json:"sign"`
		PrivateKey string `json:"private_key"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		h.logger.Warn("malformed webhook payload on catch-all endpoint", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch {
	case probe.InvoiceID != "" && probe.Sign != "":
		var payload crypayWebhook
		if err := json.Unmarshal(body, &payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		h.handleCrypayPayload(ctx, w, payload, body)

	case probe.PrivateKey != "":
		var payload payportWebhook
		if err := json.Unmarshal(body, &payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		h.handlePayportPayload(ctx, w, payload, body)

	default:
		h.logger.Warn("unrecognized webhook on catch-all endpoint acknowledged",
			zap.Int("body_size", len(body)),
		)
		h.ackOK(w)
	}
}
