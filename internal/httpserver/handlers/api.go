package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/npdstracker/internal/httpserver/deps"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
)

type hostResponse struct {
	Name           string `json:"name"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Description    string `json:"description"`
	LastValidation string `json:"last_validation"`
	Status         int    `json:"status"`
	Label          string `json:"label"`
	Federated      bool   `json:"federated"`
}

// Hosts lists the registry in order. Status carries the legacy integer code.
func Hosts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs := d.State.Registry.Snapshot()
		out := make([]hostResponse, 0, len(recs))
		for _, rec := range recs {
			out = append(out, hostResponse{
				Name:           rec.Name,
				Host:           rec.Host,
				Port:           rec.Port,
				Description:    rec.Description,
				LastValidation: rec.LastValidation,
				Status:         rec.Status.Code(),
				Label:          rec.Status.String(),
				Federated:      rec.Federated(),
			})
		}
		writeJSON(w, http.StatusOK, out, d.Logger)
	}
}

type peerResponse struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

// Peers lists the trackers SHARE records are pulled from.
func Peers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peers := d.State.Peers.Snapshot()
		out := make([]peerResponse, 0, len(peers))
		for _, p := range peers {
			out = append(out, peerResponse{Host: p.Host, Port: p.Port})
		}
		writeJSON(w, http.StatusOK, out, d.Logger)
	}
}

type statsResponse struct {
	state.Stats
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			Stats:         d.State.Stats(),
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
		}, d.Logger)
	}
}
