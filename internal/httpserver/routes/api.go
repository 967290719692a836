package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		api.Get("/hosts", handlers.Hosts(d))
		api.Get("/peers", handlers.Peers(d))
		api.Get("/stats", handlers.Stats(d))
		api.Post("/validate", handlers.Validate(d))
	})
}
