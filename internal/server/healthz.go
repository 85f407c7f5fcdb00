package server

import (
	"net/http"
	"time"
)

type healthzResponse struct {
	Status          string  `json:"status"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Version         string  `json:"version,omitempty"`
	BridgeConnected bool    `json:"bridge_connected"`
}

func Healthz(d Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:          "ok",
			UptimeSeconds:   time.Since(start).Seconds(),
			Version:         d.Version,
			BridgeConnected: d.Hub.Connected(),
		})
	}
}
