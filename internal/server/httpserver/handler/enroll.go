package handler

import (
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

// handleEnroll handles POST /api/enroll: the invite code is the sole
// credential. A successful redemption returns everything the peer needs
// to join the mesh in one response.
func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	pub, ok := h.parsePublicKey(w, r, req.PublicKeyPEM)
	if !ok {
		return
	}

	resp, err := h.invites.Redeem(r.Context(), &service.RedeemInviteRequest{
		Code:      req.Code,
		HostName:  req.Name,
		Tags:      req.Tags,
		PublicKey: pub,
	})
	if err != nil {
		h.metrics.InviteFailures.WithLabelValues(enrollFailureReason(err)).Inc()
		h.logger.Warn("enrollment rejected",
			"client_ip", getClientIP(r), "error_code", domain.GetErrorCode(err))
		h.handleServiceError(w, r, err)
		return
	}

	info, err := h.authority.Info(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	configYAML, err := h.renderer.RenderConfig(resp.Org)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.InvitesRedeemed.Inc()
	h.metrics.CertsIssued.Inc()
	h.logger.Info("host enrolled",
		"org", resp.Org, "host", resp.Host.Name,
		"address", resp.Host.Address, "remaining_uses", resp.RemainingUses)
	h.writeJSON(w, r, http.StatusCreated, EnrollResponse{
		Org:            resp.Org,
		Name:           resp.Host.Name,
		Address:        resp.Host.Address,
		Tags:           resp.Host.Tags,
		CertificatePEM: resp.Host.CertificatePEM,
		PrivateKeyPEM:  resp.Host.PrivateKeyPEM,
		CACertPEM:      info.CertificatePEM,
		ConfigYAML:     string(configYAML),
		RemainingUses:  resp.RemainingUses,
	})
}

// enrollFailureReason buckets a redemption error for the failure counter.
func enrollFailureReason(err error) string {
	switch {
	case domain.IsDomainError(err, domain.ErrInviteExpired.Code):
		return "expired"
	case domain.IsDomainError(err, domain.ErrInviteExhausted.Code):
		return "exhausted"
	case domain.IsDomainError(err, domain.ErrInviteRevoked.Code):
		return "revoked"
	case domain.IsDomainError(err, domain.ErrInviteInvalid.Code):
		return "invalid"
	case domain.IsDomainError(err, domain.ErrHostExists.Code):
		return "host_exists"
	default:
		return "other"
	}
}
