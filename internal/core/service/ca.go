// Package service provides domain services for Nebula Tower.
//
// AuthorityService owns the root certificate authority: creation, rotation,
// and signing of host certificates.
package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/pkg/crypto/seal"
)

// AuthorityRepository defines the storage interface for the CA record.
type AuthorityRepository interface {
	// GetAuthority retrieves the CA record. Returns ErrCANotFound when
	// no CA has been created yet.
	GetAuthority(ctx context.Context) (*domain.Authority, error)

	// PutAuthority creates or replaces the CA record.
	PutAuthority(ctx context.Context, authority *domain.Authority) error
}

// AuthorityServiceConfig holds configuration for AuthorityService.
type AuthorityServiceConfig struct {
	// Passphrase seals the CA private key at rest.
	Passphrase string

	// CAValidity is the validity window of the root certificate.
	CAValidity time.Duration

	// HostValidity is the default validity window of issued host
	// certificates, capped by the CA's own window.
	HostValidity time.Duration
}

// DefaultAuthorityServiceConfig returns default configuration.
func DefaultAuthorityServiceConfig() *AuthorityServiceConfig {
	return &AuthorityServiceConfig{
		CAValidity:   365 * 24 * time.Hour,
		HostValidity: 365 * 24 * time.Hour,
	}
}

// AuthorityService handles CA lifecycle and certificate signing.
//
// A single mutex guards every operation that touches the sealed key, so
// the private key is unsealed by at most one goroutine at a time and never
// outlives the call that unsealed it.
type AuthorityService struct {
	repo AuthorityRepository
	cfg  *AuthorityServiceConfig
	mu   sync.Mutex
}

// NewAuthorityService creates a new AuthorityService.
func NewAuthorityService(repo AuthorityRepository, cfg *AuthorityServiceConfig) *AuthorityService {
	if cfg == nil {
		cfg = DefaultAuthorityServiceConfig()
	}
	if cfg.CAValidity <= 0 {
		cfg.CAValidity = 365 * 24 * time.Hour
	}
	if cfg.HostValidity <= 0 {
		cfg.HostValidity = cfg.CAValidity
	}

	return &AuthorityService{
		repo: repo,
		cfg:  cfg,
	}
}

// CreateCARequest contains parameters for CA creation.
type CreateCARequest struct {
	// Name is the root name embedded in the CA certificate.
	Name string
}

// CreateCAResponse contains the result of CA creation.
type CreateCAResponse struct {
	Name           string
	CertificatePEM string
	Fingerprint    string
	NotBefore      time.Time
	NotAfter       time.Time
}

// Create creates the root certificate authority.
//
// Fails with ErrCAExists if a CA is already present; rotation is the only
// way to replace it.
func (s *AuthorityService) Create(ctx context.Context, req *CreateCARequest) (*CreateCAResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrMissingArgument.WithDetails("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetAuthority(ctx); err == nil {
		return nil, domain.ErrCAExists
	} else if !domain.IsDomainError(err, domain.ErrCANotFound.Code) {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	authority, err := s.buildAuthority(name, 1)
	if err != nil {
		return nil, err
	}

	if err := s.repo.PutAuthority(ctx, authority); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	cert, err := authority.Certificate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &CreateCAResponse{
		Name:           authority.Name,
		CertificatePEM: authority.CertificatePEM,
		Fingerprint:    authority.Fingerprint,
		NotBefore:      cert.Details.NotBefore,
		NotAfter:       cert.Details.NotAfter,
	}, nil
}

// CAInfoResponse describes the CA without exposing private key material.
type CAInfoResponse struct {
	Exists         bool
	KeyExists      bool
	Name           string
	CertificatePEM string
	Fingerprint    string
	Curve          string
	Signature      string
	NotBefore      time.Time
	NotAfter       time.Time
	CreatedAt      time.Time
}

// Info describes the current CA. When no CA exists the response carries
// Exists=false and a nil error; callers that require a CA decide how to
// report the absence.
func (s *AuthorityService) Info(ctx context.Context) (*CAInfoResponse, error) {
	authority, err := s.repo.GetAuthority(ctx)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCANotFound.Code) {
			return &CAInfoResponse{}, nil
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	cert, err := authority.Certificate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &CAInfoResponse{
		Exists:         true,
		KeyExists:      len(authority.SealedKey) > 0,
		Name:           authority.Name,
		CertificatePEM: authority.CertificatePEM,
		Fingerprint:    authority.Fingerprint,
		Curve:          domain.CurveName,
		Signature:      hex.EncodeToString(cert.Signature),
		NotBefore:      cert.Details.NotBefore,
		NotAfter:       cert.Details.NotAfter,
		CreatedAt:      authority.CreatedAtTime(),
	}, nil
}

// SignCertificateRequest contains parameters for issuing a host certificate.
type SignCertificateRequest struct {
	// Name is the subject name embedded in the certificate.
	Name string

	// Network is the host address with the mesh subnet mask, CIDR form.
	Network string

	// Groups is the ordered group list embedded in the certificate.
	Groups []string

	// NotBefore defaults to now when zero.
	NotBefore time.Time

	// NotAfter defaults to min(now+HostValidity, CA NotAfter) when zero.
	NotAfter time.Time

	// PublicKey is the subject's ed25519 public key.
	PublicKey ed25519.PublicKey
}

// Sign issues a certificate signed by the CA.
//
// Fails with ErrCAUnavailable when no CA exists and with ErrCertWindow when
// the requested window exceeds the CA's own.
func (s *AuthorityService) Sign(ctx context.Context, req *SignCertificateRequest) (*domain.Certificate, error) {
	if req.Name == "" {
		return nil, domain.ErrMissingArgument.WithDetails("name is required")
	}
	if req.Network == "" {
		return nil, domain.ErrMissingArgument.WithDetails("network is required")
	}
	if len(req.PublicKey) != ed25519.PublicKeySize {
		return nil, domain.ErrInvalidArgument.WithDetails("malformed public key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	authority, err := s.repo.GetAuthority(ctx)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCANotFound.Code) {
			return nil, domain.ErrCAUnavailable
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	caCert, err := authority.Certificate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	// Certificate timestamps carry second granularity on the wire.
	now := time.Unix(time.Now().Unix(), 0)
	notBefore := req.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}
	notAfter := req.NotAfter
	if notAfter.IsZero() {
		notAfter = now.Add(s.cfg.HostValidity)
		if notAfter.After(caCert.Details.NotAfter) {
			notAfter = caCert.Details.NotAfter.Add(-time.Second)
		}
	}

	cert := &domain.Certificate{
		Details: domain.CertificateDetails{
			Name:      req.Name,
			Network:   req.Network,
			Groups:    append([]string(nil), req.Groups...),
			NotBefore: notBefore,
			NotAfter:  notAfter,
			PublicKey: append(ed25519.PublicKey(nil), req.PublicKey...),
			IsCA:      false,
			Issuer:    caCert.FingerprintRaw(),
		},
	}

	if err := cert.CheckWindow(caCert); err != nil {
		return nil, err
	}

	priv, err := s.unsealKey(authority)
	if err != nil {
		return nil, err
	}
	defer seal.ZeroBytes(priv)

	if err := cert.Sign(priv); err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return cert, nil
}

// RotateCARequest contains parameters for CA rotation.
type RotateCARequest struct {
	// Name is the root name for the replacement certificate.
	Name string

	// Confirm must be true; rotation invalidates the trust basis of
	// every previously issued host certificate.
	Confirm bool
}

// RotateCAResponse contains the result of CA rotation.
type RotateCAResponse struct {
	OldFingerprint string
	NewFingerprint string
	CertificatePEM string
	NotBefore      time.Time
	NotAfter       time.Time
}

// Rotate destructively replaces the CA with a freshly generated one.
//
// Every host certificate issued under the old CA must be re-issued
// afterwards; they no longer chain to the active root.
func (s *AuthorityService) Rotate(ctx context.Context, req *RotateCARequest) (*RotateCAResponse, error) {
	if !req.Confirm {
		return nil, domain.ErrCARotateUnconfirmed
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrMissingArgument.WithDetails("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.repo.GetAuthority(ctx)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCANotFound.Code) {
			return nil, domain.ErrCANotFound
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	authority, err := s.buildAuthority(name, old.Version+1)
	if err != nil {
		return nil, err
	}

	if err := s.repo.PutAuthority(ctx, authority); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	cert, err := authority.Certificate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &RotateCAResponse{
		OldFingerprint: old.Fingerprint,
		NewFingerprint: authority.Fingerprint,
		CertificatePEM: authority.CertificatePEM,
		NotBefore:      cert.Details.NotBefore,
		NotAfter:       cert.Details.NotAfter,
	}, nil
}

// buildAuthority generates a keypair, self-signs a root certificate, and
// seals the private key. Callers must hold s.mu.
func (s *AuthorityService) buildAuthority(name string, version uint64) (*domain.Authority, error) {
	pub, priv, err := domain.NewKeypair()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	defer seal.ZeroBytes(priv)

	now := time.Unix(time.Now().Unix(), 0)
	cert := &domain.Certificate{
		Details: domain.CertificateDetails{
			Name:      name,
			Groups:    nil,
			NotBefore: now,
			NotAfter:  now.Add(s.cfg.CAValidity),
			PublicKey: pub,
			IsCA:      true,
		},
	}
	if err := cert.Sign(priv); err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	fingerprint := cert.Fingerprint()

	// The fingerprint rides along as AAD so a sealed key cannot be
	// replayed against a different root certificate.
	sealed, err := seal.Seal([]byte(s.cfg.Passphrase), priv, []byte(fingerprint))
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &domain.Authority{
		Name:           name,
		CertificatePEM: string(cert.MarshalPEM()),
		SealedKey:      sealed,
		Fingerprint:    fingerprint,
		CreatedAt:      time.Now().UnixMilli(),
		Version:        version,
	}, nil
}

// unsealKey opens the sealed CA private key. Callers must hold s.mu and
// zero the returned slice when done.
func (s *AuthorityService) unsealKey(authority *domain.Authority) (ed25519.PrivateKey, error) {
	raw, err := seal.Open([]byte(s.cfg.Passphrase), authority.SealedKey, []byte(authority.Fingerprint))
	if err != nil {
		return nil, domain.ErrCAUnavailable.WithDetails("ca key cannot be unsealed").WithCause(err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		seal.ZeroBytes(raw)
		return nil, domain.ErrCAUnavailable.WithDetails("sealed ca key is malformed")
	}
	return ed25519.PrivateKey(raw), nil
}
