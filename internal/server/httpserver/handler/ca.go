package handler

import (
	"net/http"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

// handleCAInfo handles GET /api/ca.
// A missing CA is not an error; the response carries exists=false.
func (h *Handler) handleCAInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.authority.Info(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeCAInfo(w, r, info)
}

// handleCADetail handles GET /api/ca/info. Unlike the existence-flag
// route it fails with NT-CA-4040 when no CA has been created.
func (h *Handler) handleCADetail(w http.ResponseWriter, r *http.Request) {
	info, err := h.authority.Info(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !info.Exists {
		h.handleServiceError(w, r, domain.ErrCANotFound)
		return
	}

	h.writeCAInfo(w, r, info)
}

func (h *Handler) writeCAInfo(w http.ResponseWriter, r *http.Request, info *service.CAInfoResponse) {
	h.writeJSON(w, r, http.StatusOK, CAInfoResponse{
		Exists:         info.Exists,
		KeyExists:      info.KeyExists,
		Name:           info.Name,
		CertificatePEM: info.CertificatePEM,
		Fingerprint:    info.Fingerprint,
		Curve:          info.Curve,
		Signature:      info.Signature,
		NotBefore:      info.NotBefore,
		NotAfter:       info.NotAfter,
		CreatedAt:      info.CreatedAt,
	})
}

// handleCreateCA handles POST /api/ca.
func (h *Handler) handleCreateCA(w http.ResponseWriter, r *http.Request) {
	var req CreateCARequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authority.Create(r.Context(), &service.CreateCARequest{Name: req.Name})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("ca created", "name", resp.Name, "fingerprint", resp.Fingerprint)
	h.writeJSON(w, r, http.StatusCreated, CAResponse{
		Name:           resp.Name,
		CertificatePEM: resp.CertificatePEM,
		Fingerprint:    resp.Fingerprint,
		NotBefore:      resp.NotBefore,
		NotAfter:       resp.NotAfter,
	})
}

// handleRotateCA handles POST /api/ca/rotate.
func (h *Handler) handleRotateCA(w http.ResponseWriter, r *http.Request) {
	var req RotateCARequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authority.Rotate(r.Context(), &service.RotateCARequest{
		Name:    req.Name,
		Confirm: req.Confirm,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.CARotations.Inc()
	h.logger.Warn("ca rotated; previously issued host certificates no longer chain",
		"old_fingerprint", resp.OldFingerprint,
		"new_fingerprint", resp.NewFingerprint)
	h.writeJSON(w, r, http.StatusOK, RotateCAResponse{
		OldFingerprint: resp.OldFingerprint,
		NewFingerprint: resp.NewFingerprint,
		CertificatePEM: resp.CertificatePEM,
		NotBefore:      resp.NotBefore,
		NotAfter:       resp.NotAfter,
	})
}
