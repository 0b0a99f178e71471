package server

import (
	"context"
	"net/http"
	"time"
)

// healthHandler reports model availability, circuit breakers and certificate
// state. Any unavailable model or failing certificate marks the service
// degraded.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "artyats",
		"version": s.Version,
	}
	healthy := true

	if s.backends != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.healthCheckTimeout())
		defer cancel()

		models := s.backends.GetModelInfo(ctx)
		for _, m := range models {
			if !m.Available {
				healthy = false
			}
		}
		response["ai_models"] = models
		response["circuit_breakers"] = s.backends.GetCircuitBreakerStats()
	}

	if s.certReloader != nil {
		certStatus := s.certReloader.Status(time.Now())
		response["certificates"] = certStatus
		if ok, _ := certStatus["healthy"].(bool); !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (s *Server) healthCheckTimeout() time.Duration {
	if t := s.AppConfig.Observability.HealthCheck.Timeout; t > 0 {
		return t
	}
	return 15 * time.Second
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "artyats",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.sessions != nil {
		response["chat"] = map[string]any{
			"active_sessions":   s.sessions.Len(),
			"max_sessions":      s.AppConfig.Chat.MaxSessions,
			"session_ttl":       s.AppConfig.Chat.SessionTTL.String(),
			"max_context_turns": s.AppConfig.Chat.MaxContextTurns,
		}
	}

	if s.backends != nil {
		response["circuit_breakers"] = s.backends.GetCircuitBreakerStats()
	}

	writeJSON(w, http.StatusOK, response)
}
