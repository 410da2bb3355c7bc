package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/registry"
)

// orderRequest - HTTP запрос на регистрацию намерения заказа
type orderRequest struct {
	OrderID       *string `json:"order_id"`
	RequesterID   *int64  `json:"requester_id"`
	Quantity      *int    `json:"quantity"`
	IsGift        bool    `json:"is_gift"`
	GiftRecipient string  `json:"gift_recipient"`
	Description   string  `json:"description"`
}

// orderResponse - HTTP ответ с информацией о намерении заказа
type orderResponse struct {
	OrderID       string    `json:"order_id"`
	RequesterID   int64     `json:"requester_id"`
	Quantity      int       `json:"quantity"`
	IsGift        bool      `json:"is_gift"`
	GiftRecipient string    `json:"gift_recipient,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PostOrders обрабатывает POST /orders - регистрацию намерения заказа.
// Намерение регистрируется ДО выставления счёта провайдеру: вебхук,
// пришедший раньше регистрации, не сможет быть скоррелирован
func (h *Handler) PostOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqBody orderRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	// Валидация входных данных
	if reqBody.OrderID == nil || *reqBody.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	if reqBody.RequesterID == nil || *reqBody.RequesterID <= 0 {
		h.writeError(w, http.StatusBadRequest, "requester_id must be > 0")
		return
	}
	if reqBody.Quantity == nil || *reqBody.Quantity < h.minQuantity {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("quantity must be >= %d", h.minQuantity))
		return
	}
	if reqBody.IsGift && reqBody.GiftRecipient == "" {
		h.writeError(w, http.StatusBadRequest, "gift_recipient is required for gift orders")
		return
	}

	intent := registry.Intent{
		OrderID:       *reqBody.OrderID,
		RequesterID:   *reqBody.RequesterID,
		Quantity:      *reqBody.Quantity,
		IsGift:        reqBody.IsGift,
		GiftRecipient: reqBody.GiftRecipient,
		Description:   reqBody.Description,
		CreatedAt:     time.Now().UTC(),
	}

	// Повторная регистрация того же заказа перезаписывает намерение
	if err := h.registry.Put(ctx, intent); err != nil {
		h.logger.Error("failed to register order intent",
			zap.Error(err),
			zap.String("order_id", intent.OrderID),
		)
		h.writeError(w, http.StatusServiceUnavailable, "failed to register order")
		return
	}

	h.logger.Info("order intent registered",
		zap.String("order_id", intent.OrderID),
		zap.Int64("requester_id", intent.RequesterID),
		zap.Int("quantity", intent.Quantity),
		zap.Bool("is_gift", intent.IsGift),
	)

	h.writeJSON(w, http.StatusCreated, toOrderResponse(intent))
}

// GetOrdersId обрабатывает GET /orders/{id} - просмотр зарегистрированного намерения
func (h *Handler) GetOrdersId(w http.ResponseWriter, r *http.Request, orderID string) {
	intent, err := h.registry.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order intent",
			zap.Error(err),
			zap.String("order_id", orderID),
		)
		h.writeError(w, http.StatusServiceUnavailable, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(intent))
}

func toOrderResponse(intent registry.Intent) orderResponse {
	return orderResponse{
		OrderID:       intent.OrderID,
		RequesterID:   intent.RequesterID,
		Quantity:      intent.Quantity,
		IsGift:        intent.IsGift,
		GiftRecipient: intent.GiftRecipient,
		Description:   intent.Description,
		CreatedAt:     intent.CreatedAt,
	}
}
