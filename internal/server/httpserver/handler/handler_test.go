package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.ErrCANotFound.Code, http.StatusNotFound},
		{domain.ErrCAExists.Code, http.StatusConflict},
		{domain.ErrCARotateUnconfirmed.Code, http.StatusBadRequest},
		{domain.ErrOrgNotFound.Code, http.StatusNotFound},
		{domain.ErrOrgExists.Code, http.StatusConflict},
		{domain.ErrOrgNotEmpty.Code, http.StatusConflict},
		{domain.ErrSubnetExhausted.Code, http.StatusConflict},
		{domain.ErrHostValidation.Code, http.StatusBadRequest},
		{domain.ErrHostVersionConflict.Code, http.StatusConflict},
		{domain.ErrInviteInvalid.Code, http.StatusUnauthorized},
		{domain.ErrInviteExpired.Code, http.StatusUnauthorized},
		{domain.ErrInviteExhausted.Code, http.StatusUnauthorized},
		{domain.ErrInviteRevoked.Code, http.StatusUnauthorized},
		{domain.ErrRateLimited.Code, http.StatusTooManyRequests},
		{domain.ErrServiceUnavailable.Code, http.StatusServiceUnavailable},
		{domain.ErrInvalidArgument.Code, http.StatusBadRequest},
		{domain.ErrInternalServer.Code, http.StatusInternalServerError},
		{domain.ErrStorageError.Code, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("errorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestEnrollFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrInviteExpired, "expired"},
		{domain.ErrInviteExhausted, "exhausted"},
		{domain.ErrInviteRevoked, "revoked"},
		{domain.ErrInviteInvalid, "invalid"},
		{domain.ErrHostExists, "host_exists"},
		{domain.ErrStorageError, "other"},
	}

	for _, tt := range tests {
		if got := enrollFailureReason(tt.err); got != tt.want {
			t.Errorf("enrollFailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:9000"
	if got := getClientIP(r); got != "10.1.2.3" {
		t.Errorf("getClientIP() = %q, want 10.1.2.3", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := getClientIP(r); got != "198.51.100.4" {
		t.Errorf("getClientIP() with XFF = %q, want 198.51.100.4", got)
	}
}
