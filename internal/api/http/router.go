package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/health"
	"github.com/brianDahlin/Star-driver/internal/observability"
)

// NewRouter создаёт и настраивает HTTP роутер шлюза.
// readiness - функция проверки готовности сервиса (например, доступности Redis).
// Если readiness возвращает false, health endpoint вернёт 503 Service Unavailable
func NewRouter(handler *Handler, readiness func() bool, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// Observability: trace context + span на каждый запрос, logger с trace_id в контексте
	if logger != nil {
		router.Use(observability.HTTPMiddleware("star-gateway", logger))
	}

	router.Route("/webhooks", func(r chi.Router) {
		r.Post("/", handler.HandleCatchAll)
		r.Post("/wata", handler.HandleWata)
		r.Post("/crypay", handler.HandleCrypay)
		r.Post("/payport", handler.HandlePayport)
	})

	router.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.PostOrders)
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			handler.GetOrdersId(w, req, id)
		})
	})

	// Health без middleware
	router.Get("/health", health.Handler(readiness))

	return router
}
