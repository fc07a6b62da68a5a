package pulse

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health represents the health status of the agent
type Health struct {
	State          string `json:"state"`
	Version        string `json:"version"`
	Enabled        bool   `json:"enabled"`
	Loaded         bool   `json:"loaded"`
	Transport      string `json:"transport,omitempty"`
	MetricsEmitted int64  `json:"metrics_emitted"`
	MetricsDropped int64  `json:"metrics_dropped"`
	Errors         int64  `json:"errors"`
	LastError      string `json:"last_error,omitempty"`
	Uptime         string `json:"uptime,omitempty"`
}

// GetHealth returns the current health status of the agent
func GetHealth() Health {
	a := currentAgent()
	if a == nil {
		return Health{
			State:   string(StateUninitialized),
			Version: Version,
		}
	}

	lastErr := ""
	if v := lastError.Load(); v != nil {
		if s, ok := v.(string); ok {
			lastErr = s
		}
	}

	return Health{
		State:          string(a.state),
		Version:        Version,
		Enabled:        a.config.Enabled,
		Loaded:         a.backend.Loaded(),
		Transport:      a.config.Transport,
		MetricsEmitted: a.emitted.Load(),
		MetricsDropped: agentDropped.Load(),
		Errors:         agentErrors.Load(),
		LastError:      lastErr,
		Uptime:         time.Since(a.startTime).String(),
	}
}

// HealthHandler provides an HTTP endpoint for agent health
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := GetHealth()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case health.State == string(StateActive) && health.Loaded:
		w.WriteHeader(http.StatusOK)
	case health.State == string(StateDisabled):
		// Administratively off is not a failure
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(health)
}
