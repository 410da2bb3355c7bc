package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/dedup"
	"github.com/brianDahlin/Star-driver/internal/observability"
	"github.com/brianDahlin/Star-driver/internal/registry"
	"github.com/brianDahlin/Star-driver/internal/service"
	"github.com/brianDahlin/Star-driver/internal/verify"
)

// Handler содержит HTTP-обработчики вебхуков платёжных провайдеров и API заказов.
// Зависит от service слоя, но не знает о деталях реализации (Fragment, Kafka и т.д.)
type Handler struct {
	logger       *zap.Logger
	orchestrator *service.Orchestrator
	registry     registry.Registry
	claims       dedup.Claimer
	wata         *verify.WataVerifier
	crypayAPIKey string
	payportKey   string
	minQuantity  int
}

// NewHandler создаёт новый HTTP handler
func NewHandler(
	logger *zap.Logger,
	orchestrator *service.Orchestrator,
	reg registry.Registry,
	claims dedup.Claimer,
	wata *verify.WataVerifier,
	crypayAPIKey string,
	payportKey string,
	minQuantity int,
) *Handler {
	return &Handler{
		logger:       logger,
		orchestrator: orchestrator,
		registry:     reg,
		claims:       claims,
		wata:         wata,
		crypayAPIKey: crypayAPIKey,
		payportKey:   payportKey,
		minQuantity:  minQuantity,
	}
}

// ackOK отвечает провайдеру 200 {"status":"ok"}.
// Любой исход после проверки подписи и парсинга подтверждается, иначе
// провайдер будет бесконечно ретраить вебхук, который мы не можем обработать
func (h *Handler) ackOK(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// processEvent прогоняет нормализованное событие через дедупликацию и оркестратор.
// Захват делается на входе: конкурентная повторная доставка того же вебхука
// увидит занятый ключ и будет подтверждена без повторного fulfillment
func (h *Handler) processEvent(ctx context.Context, w http.ResponseWriter, event service.PaymentEvent) {
	key := dedup.Key(event.Provider, event.TransactionID, event.OrderID)

	// Logger с trace_id, если запрос прошёл через observability middleware
	logger := observability.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}

	claimed, err := h.claims.Claim(ctx, key)
	if err != nil {
		// Стор дедупликации недоступен: обрабатываем без захвата.
		// Риск дубля выдачи приемлемее молчаливой потери оплаченного заказа
		logger.Error("failed to claim webhook, processing without dedup",
			zap.Error(err),
			zap.String("dedup_key", key),
		)
	} else if !claimed {
		logger.Info("duplicate webhook delivery ignored",
			zap.String("provider", event.Provider),
			zap.String("transaction_id", event.TransactionID),
			zap.String("order_id", event.OrderID),
		)
		h.ackOK(w)
		return
	}

	switch event.Status {
	case service.StatusPaid:
		if err := h.orchestrator.HandlePaid(ctx, event, key); err != nil {
			// Ошибка fulfillment не меняет ответ: подпись валидна, вебхук принят
			logger.Error("paid webhook processing failed",
				zap.Error(err),
				zap.String("provider", event.Provider),
				zap.String("order_id", event.OrderID),
			)
		}
	case service.StatusDeclined:
		if err := h.orchestrator.HandleDeclined(ctx, event, key); err != nil {
			logger.Error("declined webhook processing failed",
				zap.Error(err),
				zap.String("provider", event.Provider),
				zap.String("order_id", event.OrderID),
			)
		}
	}

	h.ackOK(w)
}
