package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/server/httpserver/handler"
	"github.com/transformerlab/nebula-tower/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Authority handles certificate authority operations.
	Authority *service.AuthorityService

	// Organizations handles organization and subnet operations.
	Organizations *service.OrganizationService

	// Hosts handles host lifecycle and bundle export.
	Hosts *service.HostService

	// Invites handles invite generation and redemption.
	Invites *service.InviteService

	// Renderer renders mesh configuration for enrollment responses.
	Renderer handler.ConfigRenderer

	// Metrics is the application metrics registry. Its HTTP exposition
	// handler is mounted at /metrics.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// AdminToken is the bearer token guarding every /api route except
	// enrollment.
	AdminToken string

	// DisableAuth skips the bearer-token check on admin routes. Only
	// the local-socket listener sets this; the socket's filesystem
	// permissions stand in for the token.
	DisableAuth bool

	// EnrollRatePerMinute caps POST /api/enroll attempts per client IP.
	EnrollRatePerMinute int

	// EnrollBurst is the enrollment rate limiter burst size.
	EnrollBurst int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		EnrollRatePerMinute: 5,
		EnrollBurst:         5,
		EnableAudit:         true,
	}
}

// NewRouter creates and configures the HTTP router with all routes and
// middleware. Admin routes sit behind the bearer-token check; enrollment
// is open but rate limited per client IP; health and metrics are open.
func NewRouter(cfg *RouterConfig) http.Handler {
	h := handler.New(cfg.Authority, cfg.Organizations, cfg.Hosts, cfg.Invites, cfg.Renderer, cfg.Metrics, cfg.Logger)

	base := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
		Metrics(cfg.Metrics, h),
	}
	if cfg.EnableAudit {
		base = append(base, Audit(cfg.Logger))
	}

	openHandler := Chain(h, base...)
	adminHandler := openHandler
	if !cfg.DisableAuth {
		adminHandler = Chain(h, append(append([]Middleware{}, base...), AdminAuth(cfg.AdminToken, cfg.Logger))...)
	}
	enrollHandler := Chain(h, append(append([]Middleware{}, base...), EnrollRateLimit(cfg.EnrollRatePerMinute, cfg.EnrollBurst))...)

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.Handle("GET /health", openHandler)
	mux.Handle("GET /ready", openHandler)

	// Metrics exposition - guarded by bind address, not by token
	mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(cfg.Logger), RequestID()))

	// Certificate authority (admin)
	mux.Handle("GET /api/ca", adminHandler)
	mux.Handle("GET /api/ca/info", adminHandler)
	mux.Handle("POST /api/ca", adminHandler)
	mux.Handle("POST /api/ca/rotate", adminHandler)

	// Organizations (admin)
	mux.Handle("GET /api/orgs", adminHandler)
	mux.Handle("POST /api/orgs", adminHandler)
	mux.Handle("DELETE /api/orgs/{org}", adminHandler)

	// Hosts (admin)
	mux.Handle("GET /api/hosts", adminHandler)
	mux.Handle("GET /api/orgs/{org}/hosts", adminHandler)
	mux.Handle("POST /api/orgs/{org}/hosts", adminHandler)
	mux.Handle("GET /api/orgs/{org}/hosts/{name}", adminHandler)
	mux.Handle("DELETE /api/orgs/{org}/hosts/{name}", adminHandler)
	mux.Handle("POST /api/orgs/{org}/hosts/{name}/renew", adminHandler)
	mux.Handle("GET /api/orgs/{org}/hosts/{name}/download", adminHandler)

	// Invites (admin)
	mux.Handle("GET /api/invites", adminHandler)
	mux.Handle("POST /api/invites", adminHandler)
	mux.Handle("POST /api/invites/revoke", adminHandler)

	// Self-enrollment - the invite code is the credential
	mux.Handle("POST /api/enroll", enrollHandler)

	return mux
}
