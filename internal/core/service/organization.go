// Package service provides domain services for Nebula Tower.
//
// OrganizationService manages tenants and the mesh address plan: every
// organization owns one /64 block under the configured ULA prefix.
package service

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

// DefaultMeshPrefix is the ULA /48 the address plan is carved from when no
// prefix is configured.
const DefaultMeshPrefix = "fd42:9e1a:27cd::/48"

// OrganizationRepository defines the storage interface for organizations.
type OrganizationRepository interface {
	// CreateOrganization creates a new organization. Fails when the name
	// is already taken.
	CreateOrganization(ctx context.Context, org *domain.Organization) error

	// GetOrganization retrieves an organization by name.
	GetOrganization(ctx context.Context, name string) (*domain.Organization, error)

	// ListOrganizations retrieves all organizations in creation order.
	ListOrganizations(ctx context.Context) ([]*domain.Organization, error)

	// DeleteOrganization deletes an organization by name.
	DeleteOrganization(ctx context.Context, name string) error

	// CountHostsByOrg returns the number of host records in an organization.
	CountHostsByOrg(ctx context.Context, org string) (int, error)
}

// OrganizationServiceConfig holds configuration for OrganizationService.
type OrganizationServiceConfig struct {
	// Prefix is the /48 ULA prefix the per-org /64 blocks are drawn from.
	Prefix string
}

// OrganizationService handles organization lifecycle and subnet allocation.
type OrganizationService struct {
	repo   OrganizationRepository
	prefix netip.Prefix

	// allocMu serializes subnet allocation so two concurrent creations
	// never share a block.
	allocMu sync.Mutex
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(repo OrganizationRepository, cfg *OrganizationServiceConfig) (*OrganizationService, error) {
	raw := DefaultMeshPrefix
	if cfg != nil && cfg.Prefix != "" {
		raw = cfg.Prefix
	}

	prefix, err := netip.ParsePrefix(raw)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("malformed mesh prefix: " + raw)
	}
	if !prefix.Addr().Is6() || prefix.Bits() != 48 {
		return nil, domain.ErrInvalidArgument.WithDetails("mesh prefix must be an IPv6 /48")
	}

	return &OrganizationService{
		repo:   repo,
		prefix: prefix.Masked(),
	}, nil
}

// Prefix returns the configured /48 mesh prefix.
func (s *OrganizationService) Prefix() netip.Prefix {
	return s.prefix
}

// LighthouseSubnet returns the reserved /64 block (subnet id 0).
func (s *OrganizationService) LighthouseSubnet() netip.Prefix {
	subnet, _ := domain.SubnetForID(s.prefix, domain.LighthouseSubnetID)
	return subnet
}

// CreateOrganizationRequest contains parameters for organization creation.
type CreateOrganizationRequest struct {
	// Name is sanitized to lowercase alphanumerics before use.
	Name string
}

// Create creates an organization and allocates the lowest free /64 block.
func (s *OrganizationService) Create(ctx context.Context, req *CreateOrganizationRequest) (*domain.Organization, error) {
	name := domain.SanitizeName(req.Name)
	if !domain.IsSafeName(name) {
		return nil, domain.ErrOrgValidation.WithDetails("name must contain at least one alphanumeric character")
	}

	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if _, err := s.repo.GetOrganization(ctx, name); err == nil {
		return nil, domain.ErrOrgExists.WithDetails("organization exists: " + name)
	} else if !domain.IsDomainError(err, domain.ErrOrgNotFound.Code) {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	subnet, err := s.allocateSubnet(ctx)
	if err != nil {
		return nil, err
	}

	org := &domain.Organization{
		Name:      name,
		Subnet:    subnet.String(),
		CreatedAt: time.Now().UnixMilli(),
		Version:   1,
	}
	if err := org.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return org, nil
}

// Get retrieves an organization by name.
func (s *OrganizationService) Get(ctx context.Context, name string) (*domain.Organization, error) {
	name = domain.SanitizeName(name)
	if name == "" {
		return nil, domain.ErrMissingArgument.WithDetails("name is required")
	}

	org, err := s.repo.GetOrganization(ctx, name)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrOrgNotFound.Code) {
			return nil, err
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return org, nil
}

// GetSubnet returns the /64 block allocated to an organization.
func (s *OrganizationService) GetSubnet(ctx context.Context, name string) (netip.Prefix, error) {
	org, err := s.Get(ctx, name)
	if err != nil {
		return netip.Prefix{}, err
	}
	return org.Prefix()
}

// List retrieves all organizations in creation order.
func (s *OrganizationService) List(ctx context.Context) ([]*domain.Organization, error) {
	orgs, err := s.repo.ListOrganizations(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return orgs, nil
}

// Delete removes an organization. Fails with ErrOrgNotEmpty while host
// records still exist under it; the subnet block is returned to the pool.
func (s *OrganizationService) Delete(ctx context.Context, name string) error {
	org, err := s.Get(ctx, name)
	if err != nil {
		return err
	}

	count, err := s.repo.CountHostsByOrg(ctx, org.Name)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	if count > 0 {
		return domain.ErrOrgNotEmpty.WithDetails(fmt.Sprintf("organization has %d hosts", count))
	}

	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if err := s.repo.DeleteOrganization(ctx, org.Name); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// allocateSubnet picks the lowest unused /64 block id. Block 0 stays
// reserved for the lighthouse. Callers must hold allocMu.
func (s *OrganizationService) allocateSubnet(ctx context.Context) (netip.Prefix, error) {
	orgs, err := s.repo.ListOrganizations(ctx)
	if err != nil {
		return netip.Prefix{}, domain.ErrStorageError.WithCause(err)
	}

	used := make(map[int]bool, len(orgs))
	for _, org := range orgs {
		prefix, err := org.Prefix()
		if err != nil {
			continue
		}
		used[domain.SubnetID(prefix)] = true
	}

	for id := domain.LighthouseSubnetID + 1; id <= domain.MaxSubnetID; id++ {
		if !used[id] {
			return domain.SubnetForID(s.prefix, id)
		}
	}
	return netip.Prefix{}, domain.ErrSubnetExhausted
}
