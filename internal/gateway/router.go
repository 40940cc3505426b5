package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yourorg/stocksim/internal/auth"
)

type RouterOptions struct {
	CORSOrigins []string
	// Hub is optional; without it /ws is not mounted.
	Hub     *Hub
	Limiter *RateLimiter
}

func NewRouter(h *Handlers, jwtSvc *auth.JWTService, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSvc))
		r.Get("/account", h.GetAccount)
		r.Get("/account/ledger", h.GetLedger)
		r.Get("/portfolio", h.GetPortfolio)
		r.Get("/fills", h.GetFills)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.GetOrders)
			r.Get("/pending", h.GetPendingOrders)
			r.Get("/{id}", h.GetOrder)
			r.Group(func(r chi.Router) {
				if opts.Limiter != nil {
					r.Use(opts.Limiter.Middleware)
				}
				r.Post("/", h.CreateOrder)
				r.Post("/{id}/cancel", h.CancelOrder)
			})
		})
	})

	if opts.Hub != nil {
		r.Get("/ws", ServeWS(opts.Hub, h.logger))
	}

	return r
}
