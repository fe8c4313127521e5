package handler

import (
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

func orgResponse(org *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		Name:      org.Name,
		Subnet:    org.Subnet,
		CreatedAt: org.CreatedAtTime(),
	}
}

// handleCreateOrganization handles POST /api/orgs.
func (h *Handler) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	org, err := h.orgs.Create(r.Context(), &service.CreateOrganizationRequest{Name: req.Name})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("organization created", "org", org.Name, "subnet", org.Subnet)
	h.writeJSON(w, r, http.StatusCreated, orgResponse(org))
}

// handleListOrganizations handles GET /api/orgs.
func (h *Handler) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		items = append(items, orgResponse(org))
	}
	h.writeJSON(w, r, http.StatusOK, ListOrganizationsResponse{Items: items, Total: len(items)})
}

// handleDeleteOrganization handles DELETE /api/orgs/{org}. Refused while
// the organization still owns hosts.
func (h *Handler) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("org")
	if err := h.orgs.Delete(r.Context(), name); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("organization deleted", "org", name)
	h.writeJSON(w, r, http.StatusOK, nil)
}
