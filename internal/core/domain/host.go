// Package domain defines the core domain models for Nebula Tower.
package domain

import (
	"crypto/rand"
	"encoding/binary"
	"net/netip"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Host constraints.
const (
	MaxHostNameLength = 63
	MaxTags           = 16
	MaxTagLength      = 64

	// HostIDPrefix is the prefix for host record IDs.
	HostIDPrefix = "nths-"

	// OrgGroupPrefix is the reserved group prefix; every certificate
	// carries the implicit group "org_<name>", so user tags must not
	// start with "org".
	OrgGroupPrefix = "org"
)

// Host is a mesh peer identity owned by exactly one organization.
type Host struct {
	// ID is the unique record identifier. Format: nths-{ulid_lowercase}.
	ID string `json:"id"`

	// Org is the owning organization name.
	Org string `json:"org"`

	// Name is the host name, unique within the organization.
	Name string `json:"name"`

	// Address is the assigned /128 address inside the organization subnet.
	Address string `json:"address"`

	// Tags is the ordered free-form label list embedded in the certificate.
	Tags []string `json:"tags"`

	// CertificatePEM is the issued host certificate.
	CertificatePEM string `json:"certificate_pem"`

	// PrivateKeyPEM is the host private key, present only when the key
	// was generated server-side. Exposed exclusively via bundle export.
	PrivateKeyPEM string `json:"private_key_pem,omitempty"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewHost creates a new Host with a generated ID.
func NewHost(org, name string, tags []string) (*Host, error) {
	id, err := GenerateHostID()
	if err != nil {
		return nil, err
	}
	return &Host{
		ID:        id,
		Org:       org,
		Name:      name,
		Tags:      append([]string(nil), tags...),
		CreatedAt: time.Now().UnixMilli(),
		Version:   1,
	}, nil
}

// GenerateHostID generates a new host record ID using ULID.
func GenerateHostID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return HostIDPrefix + strings.ToLower(id.String()), nil
}

// ValidateTags checks the tag list constraints. Tags starting with "org"
// are rejected because the org_<name> group namespace is reserved.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return ErrHostValidation.WithDetails("too many tags")
	}
	for _, t := range tags {
		if !IsSafeName(t) || len(t) > MaxTagLength {
			return ErrHostValidation.WithDetails("invalid tag: " + t)
		}
		if strings.HasPrefix(t, OrgGroupPrefix) {
			return ErrHostValidation.WithDetails(`tags cannot start with "org": ` + t)
		}
	}
	return nil
}

// Validate validates the host fields.
func (h *Host) Validate() error {
	if !IsSafeName(h.Name) || len(h.Name) > MaxHostNameLength {
		return ErrHostValidation.WithDetails("name must be 1-63 lowercase alphanumerics")
	}
	if !IsSafeName(h.Org) {
		return ErrHostValidation.WithDetails("malformed org name")
	}
	if err := ValidateTags(h.Tags); err != nil {
		return err
	}
	if h.Address != "" {
		if _, err := netip.ParseAddr(h.Address); err != nil {
			return ErrHostValidation.WithDetails("malformed address: " + h.Address)
		}
	}
	return nil
}

// CertGroups returns the group list embedded in the certificate:
// the implicit org_<name> group followed by the host tags, in order.
func (h *Host) CertGroups() []string {
	groups := make([]string, 0, len(h.Tags)+1)
	groups = append(groups, "org_"+h.Org)
	groups = append(groups, h.Tags...)
	return groups
}

// Certificate parses the issued certificate.
func (h *Host) Certificate() (*Certificate, error) {
	return UnmarshalCertificateFromPEM([]byte(h.CertificatePEM))
}

// CreatedAtTime returns CreatedAt as time.Time.
func (h *Host) CreatedAtTime() time.Time {
	return time.UnixMilli(h.CreatedAt)
}

// IncrVersion increments the version number for optimistic locking.
func (h *Host) IncrVersion() {
	h.Version++
}

// Clone creates a deep copy of the host.
func (h *Host) Clone() *Host {
	clone := *h
	clone.Tags = append([]string(nil), h.Tags...)
	return &clone
}

// HostSummary is the listing projection of a host: identity and address
// only, never key material.
type HostSummary struct {
	ID        string    `json:"id"`
	Org       string    `json:"org"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the listing projection of the host.
func (h *Host) Summary() HostSummary {
	return HostSummary{
		ID:        h.ID,
		Org:       h.Org,
		Name:      h.Name,
		Address:   h.Address,
		Tags:      append([]string(nil), h.Tags...),
		CreatedAt: h.CreatedAtTime(),
	}
}

// AddrForHostID returns the address at offset n inside the subnet
// (n = 1 is the first usable host address).
func AddrForHostID(subnet netip.Prefix, n uint64) (netip.Addr, error) {
	if !subnet.Addr().Is6() || subnet.Bits() != 64 {
		return netip.Addr{}, ErrInvalidArgument.WithDetails("subnet must be an IPv6 /64")
	}
	b := subnet.Addr().As16()
	low := binary.BigEndian.Uint64(b[8:])
	binary.BigEndian.PutUint64(b[8:], low+n)
	addr := netip.AddrFrom16(b)
	if !subnet.Contains(addr) {
		return netip.Addr{}, ErrAddressExhausted
	}
	return addr, nil
}

// HostIDForAddr returns the offset of addr inside the subnet.
func HostIDForAddr(subnet netip.Prefix, addr netip.Addr) (uint64, bool) {
	if !subnet.Contains(addr) {
		return 0, false
	}
	b := addr.As16()
	base := subnet.Addr().As16()
	return binary.BigEndian.Uint64(b[8:]) - binary.BigEndian.Uint64(base[8:]), true
}
