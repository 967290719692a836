package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type registration struct {
	register Registrar
	mws      []Middleware
}

// registrations is filled by the init functions of this package.
var registrations []registration

// Register adds a route group, wrapped in mws when given.
func Register(reg Registrar, mws ...Middleware) {
	registrations = append(registrations, registration{register: reg, mws: mws})
}

// RegisterAll mounts every registered group on r. Called once by
// httpserver.New.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range registrations {
		target := r
		if len(g.mws) > 0 {
			target = r.With(g.mws...)
		}
		g.register(target, d)
	}
}
