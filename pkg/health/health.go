package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ksaarinen/duskd/pkg/mqtt"
	"github.com/ksaarinen/duskd/pkg/redis"
)

// Checker provides health check functionality for the daemon
type Checker struct {
	mqtt   mqtt.Client
	redis  redis.Client
	logger *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies.
// The Redis client may be nil when the state mirror is disabled.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:   mqttClient,
		redis:  redisClient,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	MQTT  string `json:"mqtt"`
	Redis string `json:"redis,omitempty"`
}

// HandlerFunc returns an HTTP handler function for health checks.
// Returns 200 if the process is alive without checking dependencies,
// keeping the probe cheap for supervisors.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode health response", "error", err)
		}
	}
}

// DetailedHandlerFunc returns a handler that checks all dependencies
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := &Services{}

		if h.mqtt != nil && h.mqtt.IsConnected() {
			services.MQTT = "connected"
		} else {
			services.MQTT = "disconnected"
		}

		if h.redis != nil {
			if err := h.redis.Ping(r.Context()); err != nil {
				services.Redis = "disconnected"
			} else {
				services.Redis = "connected"
			}
		}

		status := "healthy"
		statusCode := http.StatusOK
		if services.MQTT == "disconnected" || services.Redis == "disconnected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.Error("Failed to encode health response", "error", err)
		}
	}
}
