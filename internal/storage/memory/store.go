// Package memory provides in-memory storage for Nebula Tower.
package memory

import (
	"context"
	"sync"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/pkg/cmap"
)

// Store provides in-memory storage for every tower entity.
//
// Hosts and invites live in sharded concurrent maps; the CA record and the
// small organization table sit behind one RWMutex together with the
// creation-order indexes.
type Store struct {
	hosts   *cmap.Map[string, *domain.Host]
	invites *cmap.Map[string, *domain.Invite]

	mu        sync.RWMutex
	authority *domain.Authority
	orgs      map[string]*domain.Organization
	orgOrder  []string
	hostOrder []string
	invOrder  []string
}

// Interface conformance.
var (
	_ service.AuthorityRepository    = (*Store)(nil)
	_ service.OrganizationRepository = (*Store)(nil)
	_ service.HostRepository         = (*Store)(nil)
	_ service.InviteRepository       = (*Store)(nil)
)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		hosts:   cmap.New[string, *domain.Host](),
		invites: cmap.New[string, *domain.Invite](),
		orgs:    make(map[string]*domain.Organization),
	}
}

func hostKey(org, name string) string {
	return org + "/" + name
}

// GetAuthority retrieves the CA record.
func (s *Store) GetAuthority(_ context.Context) (*domain.Authority, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.authority == nil {
		return nil, domain.ErrCANotFound
	}
	return s.authority.Clone(), nil
}

// PutAuthority creates or replaces the CA record.
func (s *Store) PutAuthority(_ context.Context, authority *domain.Authority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authority = authority.Clone()
	return nil
}

// CreateOrganization creates a new organization.
func (s *Store) CreateOrganization(_ context.Context, org *domain.Organization) error {
	if err := org.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.Name]; exists {
		return domain.ErrOrgExists
	}
	s.orgs[org.Name] = org.Clone()
	s.orgOrder = append(s.orgOrder, org.Name)
	return nil
}

// GetOrganization retrieves an organization by name.
func (s *Store) GetOrganization(_ context.Context, name string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[name]
	if !ok {
		return nil, domain.ErrOrgNotFound
	}
	return org.Clone(), nil
}

// ListOrganizations retrieves all organizations in creation order.
func (s *Store) ListOrganizations(_ context.Context) ([]*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Organization, 0, len(s.orgs))
	for _, name := range s.orgOrder {
		if org, ok := s.orgs[name]; ok {
			result = append(result, org.Clone())
		}
	}
	return result, nil
}

// DeleteOrganization deletes an organization by name.
func (s *Store) DeleteOrganization(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[name]; !ok {
		return domain.ErrOrgNotFound
	}
	delete(s.orgs, name)
	s.orgOrder = removeEntry(s.orgOrder, name)
	return nil
}

// removeEntry drops the first occurrence of v from order.
func removeEntry(order []string, v string) []string {
	for i, entry := range order {
		if entry == v {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// CountHostsByOrg returns the number of host records in an organization.
func (s *Store) CountHostsByOrg(_ context.Context, org string) (int, error) {
	count := 0
	s.hosts.Range(func(_ string, h *domain.Host) bool {
		if h.Org == org {
			count++
		}
		return true
	})
	return count, nil
}

// CreateHost creates a new host record.
func (s *Store) CreateHost(_ context.Context, host *domain.Host) error {
	if err := host.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := hostKey(host.Org, host.Name)
	if !s.hosts.SetIfAbsent(key, host.Clone()) {
		return domain.ErrHostExists
	}
	s.hostOrder = append(s.hostOrder, key)
	return nil
}

// GetHost retrieves a host by organization and name.
func (s *Store) GetHost(_ context.Context, org, name string) (*domain.Host, error) {
	host, ok := s.hosts.Get(hostKey(org, name))
	if !ok {
		return nil, domain.ErrHostNotFound
	}
	return host.Clone(), nil
}

// UpdateHost updates an existing host with optimistic locking.
func (s *Store) UpdateHost(_ context.Context, host *domain.Host, expectedVersion uint64) error {
	if err := host.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := hostKey(host.Org, host.Name)
	existing, ok := s.hosts.Get(key)
	if !ok {
		return domain.ErrHostNotFound
	}
	if existing.Version != expectedVersion {
		return domain.ErrHostVersionConflict
	}
	s.hosts.Set(key, host.Clone())
	return nil
}

// DeleteHost deletes a host by organization and name.
func (s *Store) DeleteHost(_ context.Context, org, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hostKey(org, name)
	if _, ok := s.hosts.Pop(key); !ok {
		return domain.ErrHostNotFound
	}
	s.hostOrder = removeEntry(s.hostOrder, key)
	return nil
}

// ListHosts retrieves all hosts in creation order.
func (s *Store) ListHosts(_ context.Context) ([]*domain.Host, error) {
	s.mu.RLock()
	order := append([]string(nil), s.hostOrder...)
	s.mu.RUnlock()

	result := make([]*domain.Host, 0, len(order))
	for _, key := range order {
		if h, ok := s.hosts.Get(key); ok {
			result = append(result, h.Clone())
		}
	}
	return result, nil
}

// ListHostsByOrg retrieves an organization's hosts in creation order.
func (s *Store) ListHostsByOrg(ctx context.Context, org string) ([]*domain.Host, error) {
	hosts, err := s.ListHosts(ctx)
	if err != nil {
		return nil, err
	}

	result := hosts[:0]
	for _, h := range hosts {
		if h.Org == org {
			result = append(result, h)
		}
	}
	return result, nil
}

// CreateInvite creates a new invite record.
func (s *Store) CreateInvite(_ context.Context, invite *domain.Invite) error {
	if err := invite.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.invites.SetIfAbsent(invite.Code, invite.Clone()) {
		return domain.ErrInviteValidation.WithDetails("invite code collision")
	}
	s.invOrder = append(s.invOrder, invite.Code)
	return nil
}

// GetInviteByCode retrieves an invite by its bearer code.
func (s *Store) GetInviteByCode(_ context.Context, code string) (*domain.Invite, error) {
	invite, ok := s.invites.Get(code)
	if !ok {
		return nil, domain.ErrInviteInvalid
	}
	return invite.Clone(), nil
}

// UpdateInvite updates an existing invite with optimistic locking.
func (s *Store) UpdateInvite(_ context.Context, invite *domain.Invite, expectedVersion uint64) error {
	if err := invite.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.invites.Get(invite.Code)
	if !ok {
		return domain.ErrInviteInvalid
	}
	if existing.Version != expectedVersion {
		return domain.ErrInviteVersionConflict
	}
	s.invites.Set(invite.Code, invite.Clone())
	return nil
}

// ListInvites retrieves all invites in creation order.
func (s *Store) ListInvites(_ context.Context) ([]*domain.Invite, error) {
	s.mu.RLock()
	order := append([]string(nil), s.invOrder...)
	s.mu.RUnlock()

	result := make([]*domain.Invite, 0, len(order))
	for _, code := range order {
		if inv, ok := s.invites.Get(code); ok {
			result = append(result, inv.Clone())
		}
	}
	return result, nil
}

// Counts returns the number of organizations, hosts, and invites. Used by
// the health endpoint and startup logging.
func (s *Store) Counts() (orgs, hosts, invites int) {
	s.mu.RLock()
	orgs = len(s.orgs)
	s.mu.RUnlock()
	return orgs, s.hosts.Count(), s.invites.Count()
}

// Close releases the store. In-memory state has nothing to flush.
func (s *Store) Close() error {
	return nil
}
