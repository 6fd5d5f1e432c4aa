package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is anything health can probe, typically the database.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	checks map[string]Pinger
}

func NewHealthController() *HealthController {
	return &HealthController{checks: map[string]Pinger{}}
}

// WithCheck adds a named dependency probe.
func (h *HealthController) WithCheck(name string, p Pinger) *HealthController {
	h.checks[name] = p
	return h
}

func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
