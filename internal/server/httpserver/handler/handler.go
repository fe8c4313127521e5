package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/telemetry/metric"
)

// ConfigRenderer renders the mesh configuration file for an organization.
// Satisfied by mesh.Bundler.
type ConfigRenderer interface {
	RenderConfig(org string) ([]byte, error)
}

// Handler routes API requests to the issuance and enrollment services.
type Handler struct {
	authority *service.AuthorityService
	orgs      *service.OrganizationService
	hosts     *service.HostService
	invites   *service.InviteService
	renderer  ConfigRenderer
	metrics   *metric.Registry
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New creates a new Handler with the given services.
func New(authority *service.AuthorityService, orgs *service.OrganizationService, hosts *service.HostService, invites *service.InviteService, renderer ConfigRenderer, metrics *metric.Registry, logger *slog.Logger) *Handler {
	h := &Handler{
		authority: authority,
		orgs:      orgs,
		hosts:     hosts,
		invites:   invites,
		renderer:  renderer,
		metrics:   metrics,
		logger:    logger,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Pattern reports the route pattern the request resolves to, or "" when no
// route matches. Used by the metrics middleware to keep label cardinality
// bounded.
func (h *Handler) Pattern(r *http.Request) string {
	_, pattern := h.mux.Handler(r)
	return pattern
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Certificate authority
	h.mux.HandleFunc("GET /api/ca", h.handleCAInfo)
	h.mux.HandleFunc("GET /api/ca/info", h.handleCADetail)
	h.mux.HandleFunc("POST /api/ca", h.handleCreateCA)
	h.mux.HandleFunc("POST /api/ca/rotate", h.handleRotateCA)

	// Organizations
	h.mux.HandleFunc("GET /api/orgs", h.handleListOrganizations)
	h.mux.HandleFunc("POST /api/orgs", h.handleCreateOrganization)
	h.mux.HandleFunc("DELETE /api/orgs/{org}", h.handleDeleteOrganization)

	// Hosts
	h.mux.HandleFunc("GET /api/hosts", h.handleListHosts)
	h.mux.HandleFunc("GET /api/orgs/{org}/hosts", h.handleListOrgHosts)
	h.mux.HandleFunc("POST /api/orgs/{org}/hosts", h.handleCreateHost)
	h.mux.HandleFunc("GET /api/orgs/{org}/hosts/{name}", h.handleGetHost)
	h.mux.HandleFunc("DELETE /api/orgs/{org}/hosts/{name}", h.handleDeleteHost)
	h.mux.HandleFunc("POST /api/orgs/{org}/hosts/{name}/renew", h.handleRenewHost)
	h.mux.HandleFunc("GET /api/orgs/{org}/hosts/{name}/download", h.handleDownloadBundle)

	// Invites
	h.mux.HandleFunc("GET /api/invites", h.handleListInvites)
	h.mux.HandleFunc("POST /api/invites", h.handleGenerateInvite)
	h.mux.HandleFunc("POST /api/invites/revoke", h.handleRevokeInvite)

	// Self-enrollment (no auth; rate limited by middleware)
	h.mux.HandleFunc("POST /api/enroll", h.handleEnroll)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID set by the middleware.
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"), strings.HasSuffix(code, "-4003"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"), strings.HasSuffix(code, "-4013"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasSuffix(code, "-5090"):
		return http.StatusConflict
	case strings.HasPrefix(code, "NT-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// getClientIP extracts the client IP from forwarding headers or RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", err.Error())
		return false
	}
	return true
}
