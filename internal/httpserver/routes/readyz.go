package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/mw"
)

func init() { Register(registerProbes) }

// /healthz stays open so orchestrators can reach it; /readyz exposes the
// state of the Redis mirror and is restricted.
func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/readyz", handlers.Readyz(d))
}
