// Package domain defines the core domain models for Nebula Tower.
package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Invite constants.
const (
	// InviteIDPrefix is the prefix for invite record IDs (public, hyphen).
	InviteIDPrefix = "ntiv-"

	// InviteCodePrefix is the prefix for bearer invite codes (sensitive,
	// underscore). Possession of the code is the entire authorization for
	// the redeemer, so codes come from a CSPRNG, never a sequence.
	InviteCodePrefix = "ntiv_"

	// InviteCodeBytes is the number of random bytes in a code.
	InviteCodeBytes = 32

	// InviteCodeBodyLength is the Base64 RawURL encoded length (32 -> 43).
	InviteCodeBodyLength = 43

	// InviteCodeLength is the total code length (prefix + body).
	InviteCodeLength = 5 + InviteCodeBodyLength
)

// InviteStatus is the derived lifecycle state of an invite.
type InviteStatus string

const (
	// InviteActive means the invite can still be redeemed.
	InviteActive InviteStatus = "active"

	// InviteExpired means the expiry horizon has passed (derived at check
	// time, never stored).
	InviteExpired InviteStatus = "expired"

	// InviteExhausted means every permitted use has been consumed.
	InviteExhausted InviteStatus = "exhausted"

	// InviteRevoked means an administrator deactivated the invite.
	InviteRevoked InviteStatus = "revoked"
)

// Invite is a bearer capability to create hosts in one organization, bounded
// by an expiry horizon and a use budget.
type Invite struct {
	// ID is the unique record identifier. Format: ntiv-{ulid_lowercase}.
	ID string `json:"id"`

	// Code is the opaque bearer secret. Format: ntiv_{base64_rawurl}.
	Code string `json:"code"`

	// Org is the organization this invite enrolls hosts into.
	Org string `json:"org"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// ExpiresAt is the expiry timestamp (Unix milliseconds).
	ExpiresAt int64 `json:"expires_at"`

	// MaxUses is the total permitted number of redemptions.
	MaxUses int `json:"max_uses"`

	// RemainingUses is the number of redemptions left. Never negative.
	RemainingUses int `json:"remaining_uses"`

	// Active is false once the invite is exhausted or revoked.
	Active bool `json:"active"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewInvite creates a new Invite for the given organization with a freshly
// generated ID and bearer code.
func NewInvite(org string, validity time.Duration, uses int) (*Invite, error) {
	if validity < time.Minute {
		return nil, ErrInvalidArgument.WithDetails("validity must be at least one minute")
	}
	if uses < 1 {
		return nil, ErrInvalidArgument.WithDetails("uses must be at least 1")
	}

	id, err := GenerateInviteID()
	if err != nil {
		return nil, err
	}
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Invite{
		ID:            id,
		Code:          code,
		Org:           org,
		CreatedAt:     now.UnixMilli(),
		ExpiresAt:     now.Add(validity).UnixMilli(),
		MaxUses:       uses,
		RemainingUses: uses,
		Active:        true,
		Version:       1,
	}, nil
}

// GenerateInviteID generates a new invite record ID using ULID.
func GenerateInviteID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return InviteIDPrefix + strings.ToLower(id.String()), nil
}

// GenerateInviteCode generates a cryptographically secure bearer code.
func GenerateInviteCode() (string, error) {
	b := make([]byte, InviteCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return InviteCodePrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateInviteCodeFormat checks if a string has valid code format.
func ValidateInviteCodeFormat(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	if !strings.HasPrefix(code, InviteCodePrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(code[len(InviteCodePrefix):])
	return err == nil
}

// CodeEqual compares two invite codes in constant time.
func CodeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskCode masks an invite code for safe logging.
// Example: ntiv_ABC...xyz
func MaskCode(code string) string {
	if !strings.HasPrefix(code, InviteCodePrefix) || len(code) < 12 {
		return "***REDACTED***"
	}
	body := code[len(InviteCodePrefix):]
	return InviteCodePrefix + body[:3] + "..." + body[len(body)-3:]
}

// IsExpired reports whether the invite is past its expiry at t.
func (i *Invite) IsExpired(t time.Time) bool {
	return t.UnixMilli() >= i.ExpiresAt
}

// CheckUsable reports whether the invite can be redeemed at t. The failure
// order distinguishes a token that ran out from one that was shut off:
// expired, then exhausted, then revoked.
func (i *Invite) CheckUsable(t time.Time) error {
	if i.IsExpired(t) {
		return ErrInviteExpired
	}
	if i.RemainingUses <= 0 {
		return ErrInviteExhausted
	}
	if !i.Active {
		return ErrInviteRevoked
	}
	return nil
}

// Consume records one successful redemption: decrements RemainingUses by
// exactly one and flips Active off when the budget reaches zero. The caller
// must have passed CheckUsable under the per-invite critical section.
func (i *Invite) Consume() {
	if i.RemainingUses > 0 {
		i.RemainingUses--
	}
	if i.RemainingUses == 0 {
		i.Active = false
	}
}

// Revoke deactivates the invite. Idempotent.
func (i *Invite) Revoke() {
	i.Active = false
}

// Status returns the derived lifecycle state at t.
func (i *Invite) Status(t time.Time) InviteStatus {
	switch {
	case !i.Active && i.RemainingUses == 0:
		return InviteExhausted
	case !i.Active:
		return InviteRevoked
	case i.IsExpired(t):
		return InviteExpired
	default:
		return InviteActive
	}
}

// Validate validates the invite fields.
func (i *Invite) Validate() error {
	if !ValidateInviteCodeFormat(i.Code) {
		return ErrInviteValidation.WithDetails("malformed code")
	}
	if !IsSafeName(i.Org) {
		return ErrInviteValidation.WithDetails("malformed org name")
	}
	if i.MaxUses < 1 {
		return ErrInviteValidation.WithDetails("max_uses must be at least 1")
	}
	if i.RemainingUses < 0 || i.RemainingUses > i.MaxUses {
		return ErrInviteValidation.WithDetails("remaining_uses out of range")
	}
	return nil
}

// CreatedAtTime returns CreatedAt as time.Time.
func (i *Invite) CreatedAtTime() time.Time {
	return time.UnixMilli(i.CreatedAt)
}

// ExpiresAtTime returns ExpiresAt as time.Time.
func (i *Invite) ExpiresAtTime() time.Time {
	return time.UnixMilli(i.ExpiresAt)
}

// IncrVersion increments the version number for optimistic locking.
func (i *Invite) IncrVersion() {
	i.Version++
}

// Clone creates a copy of the invite.
func (i *Invite) Clone() *Invite {
	clone := *i
	return &clone
}
