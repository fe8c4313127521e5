package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/telemetry/metric"
	"github.com/transformerlab/nebula-tower/pkg/token"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyRequestID is the context key for request ID.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyStartTime is the context key for request start time.
	ContextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request. The ID is written to
// both the request and response headers so handlers and clients see the
// same value.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				if id, err := token.GenerateWithLength(16); err == nil {
					requestID = "req-" + id
				} else {
					requestID = "req-unknown"
				}
			}

			r.Header.Set("X-Request-ID", requestID)
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
					logger.Error("panic recovered",
						"request_id", requestID,
						"error", err,
						"path", r.URL.Path,
					)

					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Error-Code", domain.ErrInternalServer.Code)
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"code":    domain.ErrInternalServer.Code,
						"message": "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth guards administrative routes with a single bearer token. The
// configured token is held as a SHA-256 digest and compared in constant
// time; the middleware never sees it in the clear after construction.
func AdminAuth(adminToken string, logger *slog.Logger) Middleware {
	tokenHash := token.Hash(adminToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := extractBearer(r)
			if bearer == "" {
				writeAuthError(w, domain.ErrUnauthorized.Code, "admin token required")
				return
			}

			if !token.Verify(bearer, tokenHash) {
				logger.Warn("admin auth rejected",
					"client_ip", getClientIP(r), "path", r.URL.Path)
				writeAuthError(w, domain.ErrUnauthorized.Code, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearer pulls the credential from an Authorization: Bearer header.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// Limiter entries idle longer than this are dropped during sweeps.
const limiterIdleTimeout = 10 * time.Minute

// Sweep the limiter registry once it grows past this many entries.
const limiterSweepThreshold = 4096

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// EnrollRateLimit applies per-IP rate limiting to the public enrollment
// endpoint. Each client IP gets its own token bucket; idle entries are
// evicted so the registry cannot grow without bound.
func EnrollRateLimit(perMinute, burst int) Middleware {
	// A non-positive rate would make the interval math divide by zero;
	// fall back to the DefaultRouterConfig values rather than trusting
	// every caller to validate.
	if perMinute < 1 {
		perMinute = DefaultRouterConfig().EnrollRatePerMinute
	}
	if burst < 1 {
		burst = DefaultRouterConfig().EnrollBurst
	}

	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)
	r := rate.Every(time.Minute / time.Duration(perMinute))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ip := getClientIP(req)
			now := time.Now()

			mu.Lock()
			entry, ok := limiters[ip]
			if !ok {
				if len(limiters) >= limiterSweepThreshold {
					for k, v := range limiters {
						if now.Sub(v.lastSeen) > limiterIdleTimeout {
							delete(limiters, k)
						}
					}
				}
				entry = &ipLimiter{lim: rate.NewLimiter(r, burst)}
				limiters[ip] = entry
			}
			entry.lastSeen = now
			allowed := entry.lim.Allow()
			mu.Unlock()

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())/perMinute+1))
				writeAuthError(w, domain.ErrRateLimited.Code, "too many enrollment attempts")
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// Audit logs request/response for the audit trail.
func Audit(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
			startTime, _ := r.Context().Value(ContextKeyStartTime).(time.Time)
			duration := time.Since(startTime)

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", getClientIP(r),
			}

			if wrapped.statusCode >= 500 {
				logger.Error("request completed with error", attrs...)
			} else if wrapped.statusCode >= 400 {
				logger.Warn("request completed with client error", attrs...)
			} else {
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// routePatterner reports the mux pattern a request resolves to, keeping
// metric label cardinality bounded by the route table rather than by
// request paths.
type routePatterner interface {
	Pattern(r *http.Request) string
}

// Metrics records request counts and latencies per method and route.
func Metrics(reg *metric.Registry, routes routePatterner) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routes.Pattern(r)
			if route == "" {
				route = "unmatched"
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			reg.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
			reg.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// writeAuthError writes an authentication or rate-limit error response.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)

	status := http.StatusUnauthorized
	if strings.Contains(code, "-403") {
		status = http.StatusForbidden
	} else if strings.HasSuffix(code, "-4290") {
		status = http.StatusTooManyRequests
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// SplitHostPort handles IPv6 addresses like [::1]:8080 correctly.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
