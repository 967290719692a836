package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

type validateResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// Validate queues a validation pass, like VTEST in the admin console.
func Validate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Validator == nil {
			writeJSON(w, http.StatusServiceUnavailable, validateResponse{
				Message: "validation is not running",
			}, d.Logger)
			return
		}

		if !d.Validator.Trigger() {
			d.Logger.Warn("validation already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, validateResponse{
				Message: "a client validation test is already queued",
			}, d.Logger)
			return
		}

		d.Logger.Info("manual validation triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, validateResponse{
			Queued:  true,
			Message: "client validation test started",
		}, d.Logger)
	}
}
