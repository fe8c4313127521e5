package handler

import (
	"crypto/ed25519"
	"fmt"
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

func hostResponse(host *domain.Host) HostResponse {
	return HostResponse{
		ID:             host.ID,
		Org:            host.Org,
		Name:           host.Name,
		Address:        host.Address,
		Tags:           host.Tags,
		CertificatePEM: host.CertificatePEM,
		CreatedAt:      host.CreatedAtTime(),
	}
}

// parsePublicKey decodes an optional client-supplied public key PEM.
func (h *Handler) parsePublicKey(w http.ResponseWriter, r *http.Request, pemData string) (ed25519.PublicKey, bool) {
	if pemData == "" {
		return nil, true
	}
	pub, err := domain.UnmarshalPublicKeyPEM([]byte(pemData))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrInvalidArgument.Code, "malformed public key pem", nil)
		return nil, false
	}
	return pub, true
}

// handleCreateHost handles POST /api/orgs/{org}/hosts.
func (h *Handler) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req CreateHostRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pub, ok := h.parsePublicKey(w, r, req.PublicKeyPEM)
	if !ok {
		return
	}

	resp, err := h.hosts.Create(r.Context(), &service.CreateHostRequest{
		Org:       r.PathValue("org"),
		Name:      req.Name,
		Tags:      req.Tags,
		PublicKey: pub,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.CertsIssued.Inc()
	h.logger.Info("host created",
		"org", resp.Host.Org, "host", resp.Host.Name, "address", resp.Host.Address)
	h.writeJSON(w, r, http.StatusCreated, hostResponse(resp.Host))
}

// handleListHosts handles GET /api/hosts, across all organizations.
func (h *Handler) handleListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.hosts.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ListHostsResponse{Items: hosts, Total: len(hosts)})
}

// handleListOrgHosts handles GET /api/orgs/{org}/hosts.
func (h *Handler) handleListOrgHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.hosts.ListByOrg(r.Context(), r.PathValue("org"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ListHostsResponse{Items: hosts, Total: len(hosts)})
}

// handleGetHost handles GET /api/orgs/{org}/hosts/{name}.
func (h *Handler) handleGetHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.hosts.Get(r.Context(), r.PathValue("org"), r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, hostResponse(host))
}

// handleRenewHost handles POST /api/orgs/{org}/hosts/{name}/renew.
func (h *Handler) handleRenewHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.hosts.Renew(r.Context(), r.PathValue("org"), r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.CertsIssued.Inc()
	h.logger.Info("host certificate renewed", "org", host.Org, "host", host.Name)
	h.writeJSON(w, r, http.StatusOK, hostResponse(host))
}

// handleDeleteHost handles DELETE /api/orgs/{org}/hosts/{name}.
func (h *Handler) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	org, name := r.PathValue("org"), r.PathValue("name")
	if err := h.hosts.Delete(r.Context(), org, name); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("host deleted", "org", org, "host", name)
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleDownloadBundle handles GET /api/orgs/{org}/hosts/{name}/download.
// The response is the zip archive itself, not the JSON envelope.
func (h *Handler) handleDownloadBundle(w http.ResponseWriter, r *http.Request) {
	resp, err := h.hosts.ExportBundle(r.Context(), r.PathValue("org"), r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	w.Header().Set("X-Request-ID", getRequestID(r))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Data); err != nil {
		h.logger.Error("failed to write bundle", "error", err)
	}
}
