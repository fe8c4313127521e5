// Package domain defines the core domain models for Nebula Tower.
package domain

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

// Organization constraints.
const (
	MaxOrgNameLength = 63

	// LighthouseSubnetID is reserved for the lighthouse; organization
	// allocation starts at 1.
	LighthouseSubnetID = 0

	// MaxSubnetID is the highest /64 block id under the /48 prefix.
	MaxSubnetID = 0xffff
)

// safeNameRE matches sanitized names: lowercase alphanumerics only.
var safeNameRE = regexp.MustCompile(`^[a-z0-9]+$`)

// Organization is a named tenant owning one /64 subnet of the mesh address
// space. The subnet is immutable once hosts exist under it.
type Organization struct {
	// Name is the unique organization name (sanitized, lowercase).
	Name string `json:"name"`

	// Subnet is the allocated /64 block in CIDR form.
	Subnet string `json:"subnet"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// SanitizeName lowercases s and strips every non-alphanumeric rune.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsSafeName reports whether s is a valid sanitized name.
func IsSafeName(s string) bool {
	return len(s) > 0 && len(s) <= MaxOrgNameLength && safeNameRE.MatchString(s)
}

// Validate validates the organization fields.
func (o *Organization) Validate() error {
	if !IsSafeName(o.Name) {
		return ErrOrgValidation.WithDetails("name must be 1-63 lowercase alphanumerics")
	}
	if _, err := netip.ParsePrefix(o.Subnet); err != nil {
		return ErrOrgValidation.WithDetails("malformed subnet: " + o.Subnet)
	}
	return nil
}

// Prefix parses the allocated subnet.
func (o *Organization) Prefix() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(o.Subnet)
	if err != nil {
		return netip.Prefix{}, ErrOrgValidation.WithDetails("malformed subnet: " + o.Subnet)
	}
	return p, nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (o *Organization) CreatedAtTime() time.Time {
	return time.UnixMilli(o.CreatedAt)
}

// Clone creates a copy of the organization.
func (o *Organization) Clone() *Organization {
	clone := *o
	return &clone
}

// SubnetForID returns the /64 block for the given id under the /48 prefix,
// formatted like fd42:9e1a:27cd:002a::/64.
func SubnetForID(prefix netip.Prefix, id int) (netip.Prefix, error) {
	if prefix.Bits() != 48 || !prefix.Addr().Is6() {
		return netip.Prefix{}, ErrInvalidArgument.WithDetails("network prefix must be an IPv6 /48")
	}
	if id < 0 || id > MaxSubnetID {
		return netip.Prefix{}, ErrInvalidArgument.WithDetails(fmt.Sprintf("subnet id %d out of range", id))
	}
	b := prefix.Addr().As16()
	b[6] = byte(id >> 8)
	b[7] = byte(id)
	return netip.PrefixFrom(netip.AddrFrom16(b), 64), nil
}

// SubnetID extracts the /64 block id from a subnet allocated under a /48.
func SubnetID(subnet netip.Prefix) int {
	b := subnet.Addr().As16()
	return int(b[6])<<8 | int(b[7])
}
