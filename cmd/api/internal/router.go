package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the routes. Everything under /api except the token
// exchange needs a bearer token.
func NewRouter(a *API, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(a.Log))
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", a.Health)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/token", a.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(a.JWT))

			r.Get("/trades", a.ListTrades)
			r.Post("/trades", a.OpenTrade)
			r.Get("/trades/stats", a.TradeStats)

			r.Get("/triggers", a.ListTriggers)
			r.Get("/triggers/preview", a.PreviewTriggers)
			r.Post("/tick", a.RunTick)

			r.Post("/scan", a.RunScan)
			r.Get("/scan", a.ListSnapshots)
			r.Get("/levels/{symbol}", a.Levels)
			r.Post("/export", a.Export)

			r.Post("/orders", a.PlaceOrder)
		})
	})
	return r
}
