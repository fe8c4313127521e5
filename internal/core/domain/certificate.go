// Package domain defines the core domain models for Nebula Tower.
package domain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/netip"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// PEM block types for certificates and keys.
const (
	CertBanner       = "NEBULA TOWER CERTIFICATE"
	PrivateKeyBanner = "NEBULA TOWER ED25519 PRIVATE KEY"
	PublicKeyBanner  = "NEBULA TOWER ED25519 PUBLIC KEY"
)

// CurveName identifies the signature curve embedded in certificate info.
const CurveName = "25519"

// Wire field numbers for the canonical certificate encoding. The signature
// covers the encoded details message, so any field mutation after issuance
// invalidates it.
const (
	fieldCertDetails   = 1
	fieldCertSignature = 2

	fieldDetailName      = 1
	fieldDetailNetwork   = 2
	fieldDetailGroups    = 3
	fieldDetailNotBefore = 4
	fieldDetailNotAfter  = 5
	fieldDetailPublicKey = 6
	fieldDetailIsCA      = 7
	fieldDetailIssuer    = 8
)

// CertificateDetails is the signed portion of a certificate.
type CertificateDetails struct {
	// Name is the subject name (host name or CA root name).
	Name string

	// Network is the host address in CIDR form (e.g., "fd42:9e1a:27cd:1::1/64").
	// Empty for CA certificates.
	Network string

	// Groups is the ordered group/tag list embedded at issuance.
	Groups []string

	// NotBefore is the start of the validity window.
	NotBefore time.Time

	// NotAfter is the end of the validity window.
	NotAfter time.Time

	// PublicKey is the subject's Ed25519 public key.
	PublicKey ed25519.PublicKey

	// IsCA marks a self-signed root certificate.
	IsCA bool

	// Issuer is the raw SHA-256 fingerprint of the signing certificate.
	// Empty for self-signed roots.
	Issuer []byte
}

// Certificate is a signed mesh certificate.
type Certificate struct {
	Details   CertificateDetails
	Signature []byte
}

// NewKeypair generates a fresh Ed25519 keypair.
func NewKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, ErrInternalServer.WithCause(err)
	}
	return pub, priv, nil
}

// MarshalDetails returns the canonical wire encoding of the signed portion.
// Zero-valued fields are omitted; all present fields are appended in field
// number order, so the encoding is deterministic.
func (d *CertificateDetails) MarshalDetails() []byte {
	var b []byte
	if d.Name != "" {
		b = protowire.AppendTag(b, fieldDetailName, protowire.BytesType)
		b = protowire.AppendString(b, d.Name)
	}
	if d.Network != "" {
		b = protowire.AppendTag(b, fieldDetailNetwork, protowire.BytesType)
		b = protowire.AppendString(b, d.Network)
	}
	for _, g := range d.Groups {
		b = protowire.AppendTag(b, fieldDetailGroups, protowire.BytesType)
		b = protowire.AppendString(b, g)
	}
	if !d.NotBefore.IsZero() {
		b = protowire.AppendTag(b, fieldDetailNotBefore, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.NotBefore.Unix()))
	}
	if !d.NotAfter.IsZero() {
		b = protowire.AppendTag(b, fieldDetailNotAfter, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.NotAfter.Unix()))
	}
	if len(d.PublicKey) > 0 {
		b = protowire.AppendTag(b, fieldDetailPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, d.PublicKey)
	}
	if d.IsCA {
		b = protowire.AppendTag(b, fieldDetailIsCA, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if len(d.Issuer) > 0 {
		b = protowire.AppendTag(b, fieldDetailIssuer, protowire.BytesType)
		b = protowire.AppendBytes(b, d.Issuer)
	}
	return b
}

// Marshal returns the full wire encoding (details + signature).
func (c *Certificate) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCertDetails, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Details.MarshalDetails())
	if len(c.Signature) > 0 {
		b = protowire.AppendTag(b, fieldCertSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Signature)
	}
	return b
}

// UnmarshalCertificate decodes a certificate from its wire encoding.
func UnmarshalCertificate(data []byte) (*Certificate, error) {
	cert := &Certificate{}
	rest := data
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, ErrCertInvalid.WithDetails("malformed tag")
		}
		rest = rest[n:]
		if typ != protowire.BytesType {
			return nil, ErrCertInvalid.WithDetails("unexpected wire type")
		}
		val, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return nil, ErrCertInvalid.WithDetails("malformed field")
		}
		rest = rest[n:]

		switch num {
		case fieldCertDetails:
			details, err := unmarshalDetails(val)
			if err != nil {
				return nil, err
			}
			cert.Details = *details
		case fieldCertSignature:
			cert.Signature = append([]byte(nil), val...)
		}
	}
	if len(cert.Details.PublicKey) != ed25519.PublicKeySize {
		return nil, ErrCertInvalid.WithDetails("missing or malformed public key")
	}
	return cert, nil
}

func unmarshalDetails(data []byte) (*CertificateDetails, error) {
	d := &CertificateDetails{}
	rest := data
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, ErrCertInvalid.WithDetails("malformed details tag")
		}
		rest = rest[n:]

		switch typ {
		case protowire.BytesType:
			val, n := protowire.ConsumeBytes(rest)
			if n < 0 {
				return nil, ErrCertInvalid.WithDetails("malformed details field")
			}
			rest = rest[n:]
			switch num {
			case fieldDetailName:
				d.Name = string(val)
			case fieldDetailNetwork:
				d.Network = string(val)
			case fieldDetailGroups:
				d.Groups = append(d.Groups, string(val))
			case fieldDetailPublicKey:
				d.PublicKey = append([]byte(nil), val...)
			case fieldDetailIssuer:
				d.Issuer = append([]byte(nil), val...)
			}
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(rest)
			if n < 0 {
				return nil, ErrCertInvalid.WithDetails("malformed details varint")
			}
			rest = rest[n:]
			switch num {
			case fieldDetailNotBefore:
				d.NotBefore = time.Unix(int64(val), 0).UTC()
			case fieldDetailNotAfter:
				d.NotAfter = time.Unix(int64(val), 0).UTC()
			case fieldDetailIsCA:
				d.IsCA = val == 1
			}
		default:
			return nil, ErrCertInvalid.WithDetails("unexpected details wire type")
		}
	}
	return d, nil
}

// Sign signs the canonical details encoding with the given private key.
func (c *Certificate) Sign(priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return ErrCertInvalid.WithDetails("malformed private key")
	}
	c.Signature = ed25519.Sign(priv, c.Details.MarshalDetails())
	return nil
}

// Verify re-encodes the details and checks the signature against pub.
// The signature is re-verified every call; trust decisions must never cache it.
func (c *Certificate) Verify(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(c.Signature) == 0 {
		return false
	}
	return ed25519.Verify(pub, c.Details.MarshalDetails(), c.Signature)
}

// VerifySelf checks a self-signed (CA) certificate against its own key.
func (c *Certificate) VerifySelf() bool {
	return c.Details.IsCA && c.Verify(c.Details.PublicKey)
}

// FingerprintRaw returns the raw SHA-256 digest of the wire encoding.
func (c *Certificate) FingerprintRaw() []byte {
	sum := sha256.Sum256(c.Marshal())
	return sum[:]
}

// Fingerprint returns the hex SHA-256 digest of the wire encoding.
func (c *Certificate) Fingerprint() string {
	return hex.EncodeToString(c.FingerprintRaw())
}

// IssuedBy reports whether this certificate names ca as its issuer.
func (c *Certificate) IssuedBy(ca *Certificate) bool {
	return bytes.Equal(c.Details.Issuer, ca.FingerprintRaw())
}

// Expired reports whether the certificate is outside its validity window at t.
func (c *Certificate) Expired(t time.Time) bool {
	return t.Before(c.Details.NotBefore) || t.After(c.Details.NotAfter)
}

// CheckWindow verifies that the certificate's validity window lies within
// the CA certificate's window.
func (c *Certificate) CheckWindow(ca *Certificate) error {
	if c.Details.NotBefore.Before(ca.Details.NotBefore) ||
		c.Details.NotAfter.After(ca.Details.NotAfter) {
		return ErrCertWindow.WithDetails(fmt.Sprintf(
			"window [%s, %s] outside ca window [%s, %s]",
			c.Details.NotBefore.Format(time.RFC3339),
			c.Details.NotAfter.Format(time.RFC3339),
			ca.Details.NotBefore.Format(time.RFC3339),
			ca.Details.NotAfter.Format(time.RFC3339)))
	}
	return nil
}

// Addr returns the host address parsed from the Network field.
func (c *Certificate) Addr() (netip.Addr, error) {
	p, err := netip.ParsePrefix(c.Details.Network)
	if err != nil {
		return netip.Addr{}, ErrCertInvalid.WithDetails("malformed network: " + c.Details.Network)
	}
	return p.Addr(), nil
}

// MarshalPEM returns the certificate as a PEM block.
func (c *Certificate) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: CertBanner, Bytes: c.Marshal()})
}

// UnmarshalCertificateFromPEM decodes the first certificate PEM block in data.
func UnmarshalCertificateFromPEM(data []byte) (*Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != CertBanner {
		return nil, ErrCertInvalid.WithDetails("no certificate pem block found")
	}
	return UnmarshalCertificate(block.Bytes)
}

// MarshalPrivateKeyPEM encodes an Ed25519 private key as PEM.
func MarshalPrivateKeyPEM(priv ed25519.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: PrivateKeyBanner, Bytes: priv})
}

// UnmarshalPrivateKeyPEM decodes an Ed25519 private key PEM block.
func UnmarshalPrivateKeyPEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != PrivateKeyBanner {
		return nil, ErrCertInvalid.WithDetails("no private key pem block found")
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, ErrCertInvalid.WithDetails("malformed private key length")
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

// MarshalPublicKeyPEM encodes an Ed25519 public key as PEM.
func MarshalPublicKeyPEM(pub ed25519.PublicKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: PublicKeyBanner, Bytes: pub})
}

// UnmarshalPublicKeyPEM decodes an Ed25519 public key PEM block.
func UnmarshalPublicKeyPEM(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != PublicKeyBanner {
		return nil, ErrCertInvalid.WithDetails("no public key pem block found")
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, ErrCertInvalid.WithDetails("malformed public key length")
	}
	return ed25519.PublicKey(block.Bytes), nil
}

// CertificateInfo is the fixed, explicit projection of certificate fields
// exposed over the API. Absent optional fields stay empty rather than being
// folded into a dynamic document.
type CertificateInfo struct {
	Name        string    `json:"name"`
	Network     string    `json:"network,omitempty"`
	Groups      []string  `json:"groups,omitempty"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	IsCA        bool      `json:"is_ca"`
	Curve       string    `json:"curve"`
	Issuer      string    `json:"issuer,omitempty"`
	PublicKey   string    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	Signature   string    `json:"signature"`
}

// Info returns the API projection of the certificate.
func (c *Certificate) Info() CertificateInfo {
	return CertificateInfo{
		Name:        c.Details.Name,
		Network:     c.Details.Network,
		Groups:      append([]string(nil), c.Details.Groups...),
		NotBefore:   c.Details.NotBefore,
		NotAfter:    c.Details.NotAfter,
		IsCA:        c.Details.IsCA,
		Curve:       CurveName,
		Issuer:      hex.EncodeToString(c.Details.Issuer),
		PublicKey:   hex.EncodeToString(c.Details.PublicKey),
		Fingerprint: c.Fingerprint(),
		Signature:   hex.EncodeToString(c.Signature),
	}
}
