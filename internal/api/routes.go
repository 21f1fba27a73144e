package api

import (
	"net/http"

	"voucherwatch/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type routeSettings struct {
	middleware  []mux.MiddlewareFunc
	rateLimiter mux.MiddlewareFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.middleware = append(s.middleware, otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				switch r.URL.Path {
				case "/health", "/api/v1/health", openAPIPath, docsPath:
					return false
				}
				return true
			}),
		))
	}
}

// WithRateLimiter guards the routes that reach the CDC API with middleware.
// Other routes are never limited.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(s *routeSettings) {
		s.rateLimiter = middleware
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var settings routeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	router := mux.NewRouter()
	for _, mw := range settings.middleware {
		router.Use(mw)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/links", handlers.ListLinks).Methods("GET")
	api.HandleFunc("/links/{id}", handlers.DeleteLink).Methods("DELETE")
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods("GET")
	api.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods("GET")

	// Every route below may trigger an upstream voucher API call.
	upstreamAPI := api.PathPrefix("").Subrouter()
	if settings.rateLimiter != nil {
		upstreamAPI.Use(settings.rateLimiter)
	}
	upstreamAPI.HandleFunc("/links", handlers.AddLink).Methods("POST")
	upstreamAPI.HandleFunc("/links/{id}/summary", handlers.LinkSummary).Methods("GET")
	upstreamAPI.HandleFunc("/vouchers/{voucher_id}", handlers.VoucherData).Methods("GET")
	upstreamAPI.HandleFunc("/vouchers/{voucher_id}/summary", handlers.VoucherSummary).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	router.Use(recoveryMiddleware)
	router.Use(securityHeadersMiddleware)
	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}
	router.Use(loggingMiddleware)

	// Preflight requests match a path but no method, so they land here
	// rather than passing through the router middleware.
	var methodNotAllowed http.Handler = http.HandlerFunc(methodNotAllowedHandler)
	if config.Server.CORS.Enabled {
		methodNotAllowed = corsMiddleware(config.Server.CORS)(methodNotAllowed)
	}

	router.NotFoundHandler = securityHeadersMiddleware(http.HandlerFunc(notFoundHandler))
	router.MethodNotAllowedHandler = securityHeadersMiddleware(methodNotAllowed)

	return router
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found", models.ErrorCodeNotFound))
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed", models.ErrorCodeMethodNotAllowed))
}
