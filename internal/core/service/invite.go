// Package service provides domain services for Nebula Tower.
//
// InviteService issues, lists, revokes, and redeems enrollment invites.
// Redemption is the self-service path into the mesh: possession of the
// code is the entire authorization.
package service

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/telemetry/logger"
)

// consumeRetries bounds the persist retries after a version conflict on
// the invite record.
const consumeRetries = 3

// InviteRepository defines the storage interface for invites.
type InviteRepository interface {
	// CreateInvite creates a new invite record.
	CreateInvite(ctx context.Context, invite *domain.Invite) error

	// GetInviteByCode retrieves an invite by its bearer code. Returns
	// ErrInviteInvalid when no invite carries the code.
	GetInviteByCode(ctx context.Context, code string) (*domain.Invite, error)

	// UpdateInvite updates an existing invite (with optimistic locking).
	UpdateInvite(ctx context.Context, invite *domain.Invite, expectedVersion uint64) error

	// ListInvites retrieves all invites in creation order.
	ListInvites(ctx context.Context) ([]*domain.Invite, error)
}

// InviteService handles invite lifecycle and redemption.
type InviteService struct {
	repo  InviteRepository
	orgs  *OrganizationService
	hosts *HostService

	// codeLocks serializes redemption and revocation per invite code,
	// closing the race between checking remaining uses and decrementing.
	codeLocks *lockRegistry
}

// NewInviteService creates a new InviteService.
func NewInviteService(repo InviteRepository, orgs *OrganizationService, hosts *HostService) *InviteService {
	return &InviteService{
		repo:      repo,
		orgs:      orgs,
		hosts:     hosts,
		codeLocks: newLockRegistry(),
	}
}

// GenerateInviteRequest contains parameters for invite generation.
type GenerateInviteRequest struct {
	// Org is the organization redeemed hosts will belong to.
	Org string

	// DaysValid is the expiry horizon in days; must be at least 1.
	DaysValid int

	// Uses is the total permitted number of redemptions; must be at
	// least 1.
	Uses int
}

// Generate creates an invite for an organization.
func (s *InviteService) Generate(ctx context.Context, req *GenerateInviteRequest) (*domain.Invite, error) {
	if req.DaysValid < 1 {
		return nil, domain.ErrInvalidArgument.WithDetails("days_valid must be at least 1")
	}
	if req.Uses < 1 {
		return nil, domain.ErrInvalidArgument.WithDetails("uses must be at least 1")
	}

	org, err := s.orgs.Get(ctx, req.Org)
	if err != nil {
		return nil, err
	}

	invite, err := domain.NewInvite(org.Name, time.Duration(req.DaysValid)*24*time.Hour, req.Uses)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateInvite(ctx, invite); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return invite, nil
}

// InviteInfo is the listing projection of an invite, with the lifecycle
// state derived at listing time.
type InviteInfo struct {
	ID            string
	Code          string
	Org           string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	MaxUses       int
	RemainingUses int
	Status        domain.InviteStatus
}

// ListInvitesRequest contains filter parameters for invite listing.
type ListInvitesRequest struct {
	// Org filters to one organization when set.
	Org string

	// ActiveOnly drops invites no longer redeemable.
	ActiveOnly bool
}

// List retrieves invites in creation order. Codes are included; the
// boundary restricts this operation to administrators.
func (s *InviteService) List(ctx context.Context, req *ListInvitesRequest) ([]*InviteInfo, error) {
	invites, err := s.repo.ListInvites(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	org := domain.SanitizeName(req.Org)
	now := time.Now()

	infos := make([]*InviteInfo, 0, len(invites))
	for _, inv := range invites {
		if org != "" && inv.Org != org {
			continue
		}
		status := inv.Status(now)
		if req.ActiveOnly && status != domain.InviteActive {
			continue
		}
		infos = append(infos, &InviteInfo{
			ID:            inv.ID,
			Code:          inv.Code,
			Org:           inv.Org,
			CreatedAt:     inv.CreatedAtTime(),
			ExpiresAt:     inv.ExpiresAtTime(),
			MaxUses:       inv.MaxUses,
			RemainingUses: inv.RemainingUses,
			Status:        status,
		})
	}
	return infos, nil
}

// Revoke deactivates an invite. Revoking an already inactive invite is a
// no-op success.
func (s *InviteService) Revoke(ctx context.Context, code string) error {
	if !domain.ValidateInviteCodeFormat(code) {
		return domain.ErrInviteInvalid
	}

	lock := s.codeLocks.get(code)
	lock.Lock()
	defer lock.Unlock()

	invite, err := s.getByCode(ctx, code)
	if err != nil {
		return err
	}
	if !invite.Active {
		return nil
	}

	oldVersion := invite.Version
	invite.Revoke()
	invite.IncrVersion()

	if err := s.repo.UpdateInvite(ctx, invite, oldVersion); err != nil {
		return domain.ErrInviteVersionConflict.WithCause(err)
	}
	return nil
}

// RedeemInviteRequest contains parameters for invite redemption.
type RedeemInviteRequest struct {
	// Code is the bearer invite code.
	Code string

	// HostName is the name requested for the enrolling host.
	HostName string

	// Tags is the label list for the enrolling host.
	Tags []string

	// PublicKey, when set, keeps the private key on the client.
	PublicKey ed25519.PublicKey
}

// RedeemInviteResponse contains the result of invite redemption.
type RedeemInviteResponse struct {
	Host          *domain.Host
	Org           string
	RemainingUses int
}

// Redeem validates the invite, creates the host, and consumes one use.
//
// The per-code lock makes check-then-decrement atomic: a single-use invite
// redeemed concurrently yields exactly one success. A host-creation failure
// (name conflict, address exhaustion, CA absence) leaves the use
// unconsumed, so the invite survives a bad request.
func (s *InviteService) Redeem(ctx context.Context, req *RedeemInviteRequest) (*RedeemInviteResponse, error) {
	if !domain.ValidateInviteCodeFormat(req.Code) {
		return nil, domain.ErrInviteInvalid
	}

	lock := s.codeLocks.get(req.Code)
	lock.Lock()
	defer lock.Unlock()

	invite, err := s.getByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if err := invite.CheckUsable(time.Now()); err != nil {
		return nil, err
	}

	created, err := s.hosts.Create(ctx, &CreateHostRequest{
		Org:       invite.Org,
		Name:      req.HostName,
		Tags:      req.Tags,
		PublicKey: req.PublicKey,
	})
	if err != nil {
		return nil, err
	}
	host := created.Host

	if err := s.consume(ctx, invite); err != nil {
		// The use could not be recorded; take the host back so the
		// invite and the registry stay consistent.
		if derr := s.hosts.Delete(ctx, host.Org, host.Name); derr != nil {
			logger.Error("host removal after failed invite consume did not complete; host remains enrolled",
				"org", host.Org, "host", host.Name, "error", derr)
		}
		return nil, err
	}

	return &RedeemInviteResponse{
		Host:          host,
		Org:           invite.Org,
		RemainingUses: invite.RemainingUses,
	}, nil
}

// consume decrements the invite's remaining uses and persists it,
// retrying a bounded number of times on version conflict. Callers must
// hold the code lock.
func (s *InviteService) consume(ctx context.Context, invite *domain.Invite) error {
	for attempt := 0; attempt < consumeRetries; attempt++ {
		oldVersion := invite.Version
		invite.Consume()
		invite.IncrVersion()

		err := s.repo.UpdateInvite(ctx, invite, oldVersion)
		if err == nil {
			return nil
		}
		if !domain.IsDomainError(err, domain.ErrInviteVersionConflict.Code) {
			return domain.ErrStorageError.WithCause(err)
		}

		// Someone else moved the record; reload and re-check before
		// trying again.
		fresh, ferr := s.getByCode(ctx, invite.Code)
		if ferr != nil {
			return ferr
		}
		if cerr := fresh.CheckUsable(time.Now()); cerr != nil {
			return cerr
		}
		*invite = *fresh
	}
	return domain.ErrServiceUnavailable.WithDetails("invite update kept conflicting")
}

func (s *InviteService) getByCode(ctx context.Context, code string) (*domain.Invite, error) {
	invite, err := s.repo.GetInviteByCode(ctx, code)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrInviteInvalid.Code) {
			return nil, domain.ErrInviteInvalid
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return invite, nil
}
