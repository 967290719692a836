package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

type componentStatus struct {
	OK    bool   `json:"ok"`
	Mode  string `json:"mode,omitempty"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports ready once the registry is up. A configured Redis mirror
// that does not answer makes the tracker not ready.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"registry": {OK: d.State != nil},
			"redis":    checkRedis(r.Context(), d),
		}

		ready := true
		for _, c := range components {
			ready = ready && c.OK
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components}, d.Logger)
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		d.Logger.Warn("redis ping failed", logger.Error(err))
		return componentStatus{OK: false, Mode: "mirror", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "mirror"}
}
