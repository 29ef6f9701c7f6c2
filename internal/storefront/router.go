package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/catalog"
	"github.com/noah-isme/storefront/internal/health"
	"github.com/noah-isme/storefront/internal/obs"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
type RouterConfig struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	Tracing        bool
	Metrics        *obs.HTTPMetrics
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler

	Health     health.Handler
	Catalog    *catalog.Handler
	Storefront *Handler
	// Webhook receives provider callbacks on /api/v1/webhooks/payment/{provider}.
	Webhook http.HandlerFunc

	// Middleware applied to every route after logging, e.g. security headers and body limits.
	Middleware []func(http.Handler) http.Handler
	// CheckoutLimit guards POST /api/v1/checkout.
	CheckoutLimit func(http.Handler) http.Handler
}

// NewRouter wires the storefront HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		if cfg.Catalog != nil {
			v.Get("/books", cfg.Catalog.List)
			v.Get("/books/{id}", cfg.Catalog.Detail)
		}

		if sf := cfg.Storefront; sf != nil {
			v.Route("/cart", func(c chi.Router) {
				c.Get("/", sf.Cart)
				c.Get("/stream", sf.Stream)
				c.Post("/items", sf.AddItem)
				c.Post("/items/{id}/increment", sf.Increment)
				c.Post("/items/{id}/decrement", sf.Decrement)
				c.Delete("/items/{id}", sf.RemoveItem)
			})

			v.Route("/checkout", func(c chi.Router) {
				if cfg.CheckoutLimit != nil {
					c.With(cfg.CheckoutLimit).Post("/", sf.Checkout)
				} else {
					c.Post("/", sf.Checkout)
				}
				c.Post("/{reference}/cancel", sf.Cancel)
				c.Get("/outcomes/latest", sf.LatestOutcome)
			})

			if sf.cfg.Sandbox != nil {
				v.Post("/sandbox/transactions/{reference}/succeed", sf.SandboxSucceed)
			}
		}

		if cfg.Webhook != nil {
			v.Post("/webhooks/payment/{provider}", cfg.Webhook)
		}
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
