package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fablehq/storyvoice/internal/tts"
	"github.com/fablehq/storyvoice/internal/tts/breaker"
)

type HealthHandler struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	breakers *breaker.Registry
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, breakers *breaker.Registry) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, breakers: breakers}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz checks the backing stores and reports provider circuit states. An
// open provider circuit degrades the report but does not fail readiness;
// the fallback chain still serves requests.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	body := map[string]interface{}{"status": statusStr(status), "checks": checks}
	if h.breakers != nil {
		providers := map[string]string{}
		for _, name := range tts.TierOrder {
			state, _ := h.breakers.Get(name).Snapshot()
			providers[name] = string(state)
		}
		body["providers"] = providers
	}

	writeJSON(w, status, body)
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
