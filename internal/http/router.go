package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Handlers struct {
	Checkout  *CheckoutHandler
	Webhook   *WebhookHandler
	Orders    *OrdersHandler
	Cart      *CartHandler
	Products  *ProductHandler
	Customers *CustomerHandler
}

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(h Handlers, logger zerolog.Logger, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}
	r.Use(IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", h.Checkout.CreateSession)
		r.Post("/stripe-webhook", h.Webhook.Receive)
		r.Post("/stripe-customers", h.Customers.Create)

		r.Get("/products", h.Products.List)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.List)
			r.Get("/latest", h.Orders.GetLatest)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.Clear)
			r.Post("/items", h.Cart.AddItem)
			r.Delete("/items/{productId}", h.Cart.RemoveItem)
		})
	})

	return r
}
