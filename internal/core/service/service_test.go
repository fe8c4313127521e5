// Package service provides domain services for Nebula Tower.
package service

import (
	"context"
	"sync"
	"testing"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

// mockStore is an in-memory implementation of every repository interface,
// safe for concurrent use so allocation races can be exercised.
type mockStore struct {
	mu        sync.Mutex
	authority *domain.Authority
	orgs      map[string]*domain.Organization
	orgOrder  []string
	hosts     map[string]*domain.Host
	hostOrder []string
	invites   map[string]*domain.Invite
	invOrder  []string

	// Injected failures for exercising error paths.
	updateInviteErr error
	deleteHostErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		orgs:    make(map[string]*domain.Organization),
		hosts:   make(map[string]*domain.Host),
		invites: make(map[string]*domain.Invite),
	}
}

func hostKey(org, name string) string {
	return org + "/" + name
}

func (m *mockStore) GetAuthority(ctx context.Context) (*domain.Authority, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authority == nil {
		return nil, domain.ErrCANotFound
	}
	return m.authority.Clone(), nil
}

func (m *mockStore) PutAuthority(ctx context.Context, authority *domain.Authority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authority = authority.Clone()
	return nil
}

func (m *mockStore) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orgs[org.Name]; exists {
		return domain.ErrOrgExists
	}
	m.orgs[org.Name] = org.Clone()
	m.orgOrder = append(m.orgOrder, org.Name)
	return nil
}

func (m *mockStore) GetOrganization(ctx context.Context, name string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[name]
	if !ok {
		return nil, domain.ErrOrgNotFound
	}
	return org.Clone(), nil
}

func (m *mockStore) ListOrganizations(ctx context.Context) ([]*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Organization, 0, len(m.orgs))
	for _, name := range m.orgOrder {
		if org, ok := m.orgs[name]; ok {
			result = append(result, org.Clone())
		}
	}
	return result, nil
}

func (m *mockStore) DeleteOrganization(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[name]; !ok {
		return domain.ErrOrgNotFound
	}
	delete(m.orgs, name)
	return nil
}

func (m *mockStore) CountHostsByOrg(ctx context.Context, org string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, h := range m.hosts {
		if h.Org == org {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) CreateHost(ctx context.Context, host *domain.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hostKey(host.Org, host.Name)
	if _, exists := m.hosts[key]; exists {
		return domain.ErrHostExists
	}
	m.hosts[key] = host.Clone()
	m.hostOrder = append(m.hostOrder, key)
	return nil
}

func (m *mockStore) GetHost(ctx context.Context, org, name string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host, ok := m.hosts[hostKey(org, name)]
	if !ok {
		return nil, domain.ErrHostNotFound
	}
	return host.Clone(), nil
}

func (m *mockStore) UpdateHost(ctx context.Context, host *domain.Host, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hostKey(host.Org, host.Name)
	existing, ok := m.hosts[key]
	if !ok {
		return domain.ErrHostNotFound
	}
	if existing.Version != expectedVersion {
		return domain.ErrHostVersionConflict
	}
	m.hosts[key] = host.Clone()
	return nil
}

func (m *mockStore) DeleteHost(ctx context.Context, org, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteHostErr != nil {
		return m.deleteHostErr
	}
	key := hostKey(org, name)
	if _, ok := m.hosts[key]; !ok {
		return domain.ErrHostNotFound
	}
	delete(m.hosts, key)
	return nil
}

func (m *mockStore) ListHosts(ctx context.Context) ([]*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Host, 0, len(m.hosts))
	for _, key := range m.hostOrder {
		if h, ok := m.hosts[key]; ok {
			result = append(result, h.Clone())
		}
	}
	return result, nil
}

func (m *mockStore) ListHostsByOrg(ctx context.Context, org string) ([]*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Host
	for _, key := range m.hostOrder {
		if h, ok := m.hosts[key]; ok && h.Org == org {
			result = append(result, h.Clone())
		}
	}
	return result, nil
}

func (m *mockStore) CreateInvite(ctx context.Context, invite *domain.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites[invite.Code] = invite.Clone()
	m.invOrder = append(m.invOrder, invite.Code)
	return nil
}

func (m *mockStore) GetInviteByCode(ctx context.Context, code string) (*domain.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	invite, ok := m.invites[code]
	if !ok {
		return nil, domain.ErrInviteInvalid
	}
	return invite.Clone(), nil
}

func (m *mockStore) UpdateInvite(ctx context.Context, invite *domain.Invite, expectedVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateInviteErr != nil {
		return m.updateInviteErr
	}
	existing, ok := m.invites[invite.Code]
	if !ok {
		return domain.ErrInviteInvalid
	}
	if existing.Version != expectedVersion {
		return domain.ErrInviteVersionConflict
	}
	m.invites[invite.Code] = invite.Clone()
	return nil
}

func (m *mockStore) ListInvites(ctx context.Context) ([]*domain.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Invite, 0, len(m.invites))
	for _, code := range m.invOrder {
		if inv, ok := m.invites[code]; ok {
			result = append(result, inv.Clone())
		}
	}
	return result, nil
}

// stubBundler records the last input and returns a fixed payload.
type stubBundler struct {
	mu   sync.Mutex
	last *BundleInput
}

func (b *stubBundler) Bundle(in *BundleInput) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = in
	return []byte("bundle"), nil
}

const testPassphrase = "correct horse battery"

// testServices wires every service against one mockStore.
type testServices struct {
	store     *mockStore
	bundler   *stubBundler
	authority *AuthorityService
	orgs      *OrganizationService
	hosts     *HostService
	invites   *InviteService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	store := newMockStore()
	authority := NewAuthorityService(store, &AuthorityServiceConfig{
		Passphrase: testPassphrase,
	})

	orgs, err := NewOrganizationService(store, nil)
	if err != nil {
		t.Fatalf("NewOrganizationService() error = %v", err)
	}

	bundler := &stubBundler{}
	hosts := NewHostService(store, orgs, authority, bundler)
	invites := NewInviteService(store, orgs, hosts)

	return &testServices{
		store:     store,
		bundler:   bundler,
		authority: authority,
		orgs:      orgs,
		hosts:     hosts,
		invites:   invites,
	}
}

// withCA creates the root CA, failing the test on error.
func (ts *testServices) withCA(t *testing.T) *CreateCAResponse {
	t.Helper()
	resp, err := ts.authority.Create(context.Background(), &CreateCARequest{Name: "towerroot"})
	if err != nil {
		t.Fatalf("authority.Create() error = %v", err)
	}
	return resp
}

// withOrg creates an organization, failing the test on error.
func (ts *testServices) withOrg(t *testing.T, name string) *domain.Organization {
	t.Helper()
	org, err := ts.orgs.Create(context.Background(), &CreateOrganizationRequest{Name: name})
	if err != nil {
		t.Fatalf("orgs.Create(%q) error = %v", name, err)
	}
	return org
}
