package api

import (
	"net/http"

	"github.com/hazlamahedich/antiforge/internal/api/middleware"
)

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	IssueTokenRoute    = "/csrf/token"
	RefreshTokenRoute  = "/csrf/token/refresh"
	ClearTokenRoute    = "/csrf/token"
	ValidateTokenRoute = "/csrf/token/validate"
)

// Request headers making up the wire contract between client and service.
const (
	TokenHeader   = "X-CSRF-Token"
	SessionHeader = "X-CSRF-Session"
)

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// token lifecycle routes
	mux.HandleFunc("GET "+IssueTokenRoute, s.handleIssue)
	mux.HandleFunc("POST "+RefreshTokenRoute, s.handleRefresh)
	mux.HandleFunc("DELETE "+ClearTokenRoute, s.handleClear)
	mux.HandleFunc("GET "+ValidateTokenRoute, s.handleValidate)

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CorrelationIDMiddleware(handler)
	handler = middleware.RecoverMiddleware(handler)
	return handler
}
