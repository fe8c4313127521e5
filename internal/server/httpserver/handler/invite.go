package handler

import (
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

// handleGenerateInvite handles POST /api/invites.
func (h *Handler) handleGenerateInvite(w http.ResponseWriter, r *http.Request) {
	var req GenerateInviteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	invite, err := h.invites.Generate(r.Context(), &service.GenerateInviteRequest{
		Org:       req.Org,
		DaysValid: req.DaysValid,
		Uses:      req.Uses,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.InvitesGenerated.Inc()
	h.logger.Info("invite generated",
		"org", invite.Org, "invite_id", invite.ID, "max_uses", invite.MaxUses)
	h.writeJSON(w, r, http.StatusCreated, InviteResponse{
		ID:            invite.ID,
		Code:          invite.Code,
		Org:           invite.Org,
		CreatedAt:     invite.CreatedAtTime(),
		ExpiresAt:     invite.ExpiresAtTime(),
		MaxUses:       invite.MaxUses,
		RemainingUses: invite.RemainingUses,
		Status:        string(domain.InviteActive),
	})
}

// handleListInvites handles GET /api/invites. Supports ?org= and
// ?active_only=true filters.
func (h *Handler) handleListInvites(w http.ResponseWriter, r *http.Request) {
	infos, err := h.invites.List(r.Context(), &service.ListInvitesRequest{
		Org:        r.URL.Query().Get("org"),
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]InviteResponse, 0, len(infos))
	for _, info := range infos {
		items = append(items, InviteResponse{
			ID:            info.ID,
			Code:          info.Code,
			Org:           info.Org,
			CreatedAt:     info.CreatedAt,
			ExpiresAt:     info.ExpiresAt,
			MaxUses:       info.MaxUses,
			RemainingUses: info.RemainingUses,
			Status:        string(info.Status),
		})
	}
	h.writeJSON(w, r, http.StatusOK, ListInvitesResponse{Items: items, Total: len(items)})
}

// handleRevokeInvite handles POST /api/invites/revoke.
func (h *Handler) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	var req RevokeInviteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.invites.Revoke(r.Context(), req.Code); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("invite revoked")
	h.writeJSON(w, r, http.StatusOK, nil)
}
