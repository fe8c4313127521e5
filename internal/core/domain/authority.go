// Package domain defines the core domain models for Nebula Tower.
package domain

import "time"

// Authority is the root certificate authority record. There is at most one
// active Authority per deployment; replacing it invalidates the trust basis
// of every previously issued host certificate.
type Authority struct {
	// Name is the root name the CA was created with.
	Name string `json:"name"`

	// CertificatePEM is the self-signed root certificate.
	CertificatePEM string `json:"certificate_pem"`

	// SealedKey is the Ed25519 private key sealed with the configured
	// passphrase. Never exposed over any external interface.
	SealedKey []byte `json:"sealed_key"`

	// Fingerprint is the hex SHA-256 fingerprint of the root certificate.
	Fingerprint string `json:"fingerprint"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// Certificate parses the root certificate.
func (a *Authority) Certificate() (*Certificate, error) {
	return UnmarshalCertificateFromPEM([]byte(a.CertificatePEM))
}

// CreatedAtTime returns CreatedAt as time.Time.
func (a *Authority) CreatedAtTime() time.Time {
	return time.UnixMilli(a.CreatedAt)
}

// Clone creates a deep copy of the authority record.
func (a *Authority) Clone() *Authority {
	clone := *a
	clone.SealedKey = append([]byte(nil), a.SealedKey...)
	return &clone
}
