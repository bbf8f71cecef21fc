package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_marketplace/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Cart     *CartHandler
	Orders   *OrdersHandler
	Products *ProductHandler
	Stores   *StoreHandler
	Users    *UserHandler
}

type RouterConfig struct {
	Tokens         auth.TokenMaker
	Principals     PrincipalResolver
	Health         Pinger
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(AuthMiddleware(cfg.Tokens, cfg.Principals))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health.Ping(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/", h.Cart.GetCart)
			r.Post("/add/", h.Cart.AddItem)
			r.Put("/update/{id}/", h.Cart.UpdateQuantity)
			r.Delete("/remove/{id}/", h.Cart.RemoveItem)
			r.Delete("/clear/", h.Cart.ClearCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/", h.Orders.ListOrders)
			r.Post("/create/", h.Orders.CreateOrder)
			r.Post("/payment/", h.Orders.StartPayment)
			r.Get("/payment/success/", h.Orders.PaymentSuccess)
			r.Get("/payment/cancel/", h.Orders.PaymentCancel)
			r.Get("/{id}/", h.Orders.GetOrder)
			r.Put("/{id}/update-status/", h.Orders.UpdateStatus)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/search/", h.Products.Search)
			r.Get("/categories/", h.Products.Categories)
			r.Get("/{id}/", h.Products.Get)
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Post("/", h.Products.Create)
				r.Put("/{id}/", h.Products.Update)
				r.Delete("/{id}/", h.Products.Delete)
			})
		})

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", h.Stores.List)
			r.Get("/{id}/", h.Stores.Get)
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Post("/", h.Stores.Create)
				r.Get("/dashboard/", h.Stores.Dashboard)
				r.Put("/{id}/", h.Stores.Update)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/register/", h.Users.Register)
			r.Post("/login/", h.Users.Login)
			r.Get("/verify-email/{token}/", h.Users.VerifyEmail)
			r.Post("/resend-verification/", h.Users.ResendVerification)
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Get("/profile/", h.Users.Profile)
				r.Put("/profile/", h.Users.UpdateProfile)
			})
		})
	})

	return otelhttp.NewHandler(r, "marketplace-api")
}
