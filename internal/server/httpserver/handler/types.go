package handler

import (
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

// Response is the standard API response envelope. All JSON responses use
// this format; /metrics and bundle downloads are the exceptions.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateCARequest is the request body for POST /api/ca.
type CreateCARequest struct {
	Name string `json:"name"`
}

// CAResponse is the response body for POST /api/ca.
type CAResponse struct {
	Name           string    `json:"name"`
	CertificatePEM string    `json:"certificate_pem"`
	Fingerprint    string    `json:"fingerprint"`
	NotBefore      time.Time `json:"not_before"`
	NotAfter       time.Time `json:"not_after"`
}

// CAInfoResponse is the response body for GET /api/ca.
type CAInfoResponse struct {
	Exists         bool      `json:"exists"`
	KeyExists      bool      `json:"key_exists"`
	Name           string    `json:"name,omitempty"`
	CertificatePEM string    `json:"certificate_pem,omitempty"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
	Curve          string    `json:"curve,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	NotBefore      time.Time `json:"not_before,omitzero"`
	NotAfter       time.Time `json:"not_after,omitzero"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// RotateCARequest is the request body for POST /api/ca/rotate.
type RotateCARequest struct {
	Name    string `json:"name"`
	Confirm bool   `json:"confirm"`
}

// RotateCAResponse is the response body for POST /api/ca/rotate.
type RotateCAResponse struct {
	OldFingerprint string    `json:"old_fingerprint"`
	NewFingerprint string    `json:"new_fingerprint"`
	CertificatePEM string    `json:"certificate_pem"`
	NotBefore      time.Time `json:"not_before"`
	NotAfter       time.Time `json:"not_after"`
}

// CreateOrganizationRequest is the request body for POST /api/orgs.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// OrganizationResponse represents an organization in API responses.
type OrganizationResponse struct {
	Name      string    `json:"name"`
	Subnet    string    `json:"subnet"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOrganizationsResponse is the response body for GET /api/orgs.
type ListOrganizationsResponse struct {
	Items []OrganizationResponse `json:"items"`
	Total int                    `json:"total"`
}

// CreateHostRequest is the request body for POST /api/orgs/{org}/hosts.
// PublicKeyPEM, when set, keeps the private key on the client; the server
// then never sees or stores it.
type CreateHostRequest struct {
	Name         string   `json:"name"`
	Tags         []string `json:"tags,omitempty"`
	PublicKeyPEM string   `json:"public_key_pem,omitempty"`
}

// HostResponse represents a host in API responses. The private key is
// deliberately absent; it is only ever released inside a bundle download.
type HostResponse struct {
	ID             string    `json:"id"`
	Org            string    `json:"org"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Tags           []string  `json:"tags"`
	CertificatePEM string    `json:"certificate_pem"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListHostsResponse is the response body for GET /api/hosts and
// GET /api/orgs/{org}/hosts.
type ListHostsResponse struct {
	Items []domain.HostSummary `json:"items"`
	Total int                  `json:"total"`
}

// GenerateInviteRequest is the request body for POST /api/invites.
type GenerateInviteRequest struct {
	Org       string `json:"org"`
	DaysValid int    `json:"days_valid,omitempty"`
	Uses      int    `json:"uses,omitempty"`
}

// InviteResponse represents an invite in API responses. The bearer code is
// included; the admin token gate restricts who can see it.
type InviteResponse struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Org           string    `json:"org"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxUses       int       `json:"max_uses"`
	RemainingUses int       `json:"remaining_uses"`
	Status        string    `json:"status"`
}

// ListInvitesResponse is the response body for GET /api/invites.
type ListInvitesResponse struct {
	Items []InviteResponse `json:"items"`
	Total int              `json:"total"`
}

// RevokeInviteRequest is the request body for POST /api/invites/revoke.
type RevokeInviteRequest struct {
	Code string `json:"code"`
}

// EnrollRequest is the request body for POST /api/enroll.
type EnrollRequest struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags,omitempty"`
	PublicKeyPEM string   `json:"public_key_pem,omitempty"`
}

// EnrollResponse is the response body for POST /api/enroll: everything the
// enrolling host needs to join the mesh. PrivateKeyPEM is empty when the
// client supplied its own keypair.
type EnrollResponse struct {
	Org            string   `json:"org"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Tags           []string `json:"tags"`
	CertificatePEM string   `json:"certificate_pem"`
	PrivateKeyPEM  string   `json:"private_key_pem,omitempty"`
	CACertPEM      string   `json:"ca_cert_pem"`
	ConfigYAML     string   `json:"config_yaml"`
	RemainingUses  int      `json:"remaining_uses"`
}
