package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"voucherwatch/internal/models"
)

// UnknownIdentity is what ClientIP returns when no address can be resolved.
// Requests that resolve to it are rejected before reaching the limiter, since
// they would otherwise all share one bucket.
const UnknownIdentity = "unknown"

// IdentityFunc resolves the rate limit identity for a request.
type IdentityFunc func(r *http.Request) string

type middlewareConfig struct {
	identity IdentityFunc
	now      func() time.Time
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithIdentityFunc overrides ClientIP as the identity resolver.
func WithIdentityFunc(fn IdentityFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// WithMiddlewareClock sets the clock used to turn ResetAt into a wait time.
// It should match the limiter's clock.
func WithMiddlewareClock(now func() time.Time) MiddlewareOption {
	return func(c *middlewareConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Middleware returns HTTP middleware that gates requests through limiter.
// Admitted requests carry X-RateLimit-* headers; denied requests get a 429
// JSON error with Retry-After and never reach next. The middleware has no
// notion of runtime environment: callers decide whether to install it.
func Middleware(limiter Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		identity: ClientIP,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := cfg.identity(r)
			if identity == "" || identity == UnknownIdentity {
				slog.Warn("Rejected request with unresolvable client identity",
					"method", r.Method,
					"route", routeTemplate(r),
				)
				writeJSONError(w, http.StatusBadRequest,
					models.NewErrorResponse("Unable to determine client identity", models.ErrorCodeUnresolvableClient))
				return
			}

			result := limiter.CheckLimit(identity)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Capacity()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := RetryAfterSeconds(result.ResetAt, cfg.now())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				errorResp := models.NewErrorResponse(
					fmt.Sprintf("Too many requests. Please try again in %d seconds.", retryAfter),
					models.ErrorCodeRateLimitExceeded,
				)
				errorResp.Details = map[string]string{
					"retry_after_seconds": strconv.Itoa(retryAfter),
					"reset_at":            result.ResetAt.UTC().Format(time.RFC3339),
				}
				writeJSONError(w, http.StatusTooManyRequests, errorResp)

				slog.Warn("Rate limit exceeded",
					"client", identity,
					"limit", limiter.Capacity(),
					"retry_after", retryAfter,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// routeTemplate names the matched route without its path variables, which
// may carry voucher IDs.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RetryAfterSeconds returns ceil((resetAt - now) / 1s), never negative.
func RetryAfterSeconds(resetAt, now time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// ClientIP extracts the client IP from the request, checking proxy headers
// first. It returns UnknownIdentity when nothing usable is found.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may lack a port
		host = r.RemoteAddr
	}
	if host = strings.TrimSpace(host); host != "" {
		return host
	}

	return UnknownIdentity
}

func writeJSONError(w http.ResponseWriter, status int, resp *models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
