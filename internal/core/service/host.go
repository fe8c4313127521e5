// Package service provides domain services for Nebula Tower.
//
// HostService manages host records: address allocation inside the owning
// organization's subnet, certificate issuance, renewal, and bundle export.
package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/netip"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
)

// HostRepository defines the storage interface for host records.
type HostRepository interface {
	// CreateHost creates a new host record. Fails when (org, name) is
	// already taken.
	CreateHost(ctx context.Context, host *domain.Host) error

	// GetHost retrieves a host by organization and name.
	GetHost(ctx context.Context, org, name string) (*domain.Host, error)

	// UpdateHost updates an existing host (with optimistic locking).
	UpdateHost(ctx context.Context, host *domain.Host, expectedVersion uint64) error

	// DeleteHost deletes a host by organization and name.
	DeleteHost(ctx context.Context, org, name string) error

	// ListHosts retrieves all hosts in creation order.
	ListHosts(ctx context.Context) ([]*domain.Host, error)

	// ListHostsByOrg retrieves an organization's hosts in creation order.
	ListHostsByOrg(ctx context.Context, org string) ([]*domain.Host, error)
}

// BundleInput carries the material an enrollment bundle is rendered from.
type BundleInput struct {
	Org         string
	HostName    string
	Address     string
	CACertPEM   string
	HostCertPEM string

	// HostKeyPEM is empty when the keypair was supplied by the client;
	// the bundle then omits the key file.
	HostKeyPEM string
}

// Bundler renders an enrollment bundle (mesh config plus credentials) into
// a single archive.
type Bundler interface {
	Bundle(in *BundleInput) ([]byte, error)
}

// HostService handles host lifecycle operations.
type HostService struct {
	repo      HostRepository
	orgs      *OrganizationService
	authority *AuthorityService
	bundler   Bundler

	// orgLocks serializes address allocation per organization.
	orgLocks *lockRegistry
}

// NewHostService creates a new HostService.
func NewHostService(repo HostRepository, orgs *OrganizationService, authority *AuthorityService, bundler Bundler) *HostService {
	return &HostService{
		repo:      repo,
		orgs:      orgs,
		authority: authority,
		bundler:   bundler,
		orgLocks:  newLockRegistry(),
	}
}

// CreateHostRequest contains parameters for host creation.
type CreateHostRequest struct {
	// Org is the owning organization name.
	Org string

	// Name is the host name; sanitized to lowercase alphanumerics.
	Name string

	// Tags is the free-form label list embedded in the certificate after
	// the implicit org group.
	Tags []string

	// PublicKey, when set, is the client-held keypair's public half; no
	// private key is generated or stored server-side.
	PublicKey ed25519.PublicKey
}

// CreateHostResponse contains the result of host creation.
type CreateHostResponse struct {
	Host *domain.Host
}

// Create creates a host: allocates the lowest free address in the org
// subnet, issues a certificate, and persists the record. Nothing is
// persisted when any step fails.
func (s *HostService) Create(ctx context.Context, req *CreateHostRequest) (*CreateHostResponse, error) {
	name := domain.SanitizeName(req.Name)
	if !domain.IsSafeName(name) {
		return nil, domain.ErrHostValidation.WithDetails("name must contain at least one alphanumeric character")
	}

	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		tags = append(tags, domain.SanitizeName(t))
	}
	if err := domain.ValidateTags(tags); err != nil {
		return nil, err
	}

	if req.PublicKey != nil && len(req.PublicKey) != ed25519.PublicKeySize {
		return nil, domain.ErrInvalidArgument.WithDetails("malformed public key")
	}

	org, err := s.orgs.Get(ctx, req.Org)
	if err != nil {
		return nil, err
	}
	subnet, err := org.Prefix()
	if err != nil {
		return nil, err
	}

	lock := s.orgLocks.get(org.Name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.repo.GetHost(ctx, org.Name, name); err == nil {
		return nil, domain.ErrHostExists.WithDetails(fmt.Sprintf("host exists: %s/%s", org.Name, name))
	} else if !domain.IsDomainError(err, domain.ErrHostNotFound.Code) {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	addr, err := s.allocateAddress(ctx, org.Name, subnet)
	if err != nil {
		return nil, err
	}

	var pub ed25519.PublicKey
	var keyPEM string
	if req.PublicKey != nil {
		pub = req.PublicKey
	} else {
		var priv ed25519.PrivateKey
		pub, priv, err = domain.NewKeypair()
		if err != nil {
			return nil, domain.ErrInternalServer.WithCause(err)
		}
		keyPEM = string(domain.MarshalPrivateKeyPEM(priv))
	}

	host, err := domain.NewHost(org.Name, name, tags)
	if err != nil {
		return nil, err
	}
	host.Address = addr.String()
	host.PrivateKeyPEM = keyPEM

	// The certificate embeds the address with the subnet mask of the
	// org block, matching what the mesh daemon expects.
	cert, err := s.authority.Sign(ctx, &SignCertificateRequest{
		Name:      name,
		Network:   netip.PrefixFrom(addr, subnet.Bits()).String(),
		Groups:    host.CertGroups(),
		PublicKey: pub,
	})
	if err != nil {
		return nil, err
	}
	host.CertificatePEM = string(cert.MarshalPEM())

	if err := host.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateHost(ctx, host); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &CreateHostResponse{Host: host}, nil
}

// Get retrieves a host by organization and name.
func (s *HostService) Get(ctx context.Context, org, name string) (*domain.Host, error) {
	org = domain.SanitizeName(org)
	name = domain.SanitizeName(name)
	if org == "" || name == "" {
		return nil, domain.ErrMissingArgument.WithDetails("org and name are required")
	}

	host, err := s.repo.GetHost(ctx, org, name)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrHostNotFound.Code) {
			return nil, err
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return host, nil
}

// List retrieves summaries of every host in creation order.
func (s *HostService) List(ctx context.Context) ([]domain.HostSummary, error) {
	hosts, err := s.repo.ListHosts(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return summarize(hosts), nil
}

// ListByOrg retrieves summaries of an organization's hosts in creation order.
func (s *HostService) ListByOrg(ctx context.Context, org string) ([]domain.HostSummary, error) {
	if _, err := s.orgs.Get(ctx, org); err != nil {
		return nil, err
	}

	hosts, err := s.repo.ListHostsByOrg(ctx, domain.SanitizeName(org))
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return summarize(hosts), nil
}

// Renew re-issues the host certificate over the same identity and address.
// The record keeps its key material; only the certificate (signature and
// validity window) changes.
func (s *HostService) Renew(ctx context.Context, org, name string) (*domain.Host, error) {
	host, err := s.Get(ctx, org, name)
	if err != nil {
		return nil, err
	}

	current, err := host.Certificate()
	if err != nil {
		return nil, domain.ErrCertInvalid.WithCause(err)
	}

	cert, err := s.authority.Sign(ctx, &SignCertificateRequest{
		Name:      host.Name,
		Network:   current.Details.Network,
		Groups:    host.CertGroups(),
		PublicKey: current.Details.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	oldVersion := host.Version
	host.CertificatePEM = string(cert.MarshalPEM())
	host.IncrVersion()

	if err := s.repo.UpdateHost(ctx, host, oldVersion); err != nil {
		return nil, domain.ErrHostVersionConflict.WithCause(err)
	}
	return host, nil
}

// Delete removes a host record. A certificate already distributed stays
// valid until its window closes; there is no revocation list.
func (s *HostService) Delete(ctx context.Context, org, name string) error {
	host, err := s.Get(ctx, org, name)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteHost(ctx, host.Org, host.Name); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// ExportBundleResponse contains a rendered enrollment bundle.
type ExportBundleResponse struct {
	Filename string
	Data     []byte
}

// ExportBundle renders the enrollment archive for a host: mesh config,
// host certificate, CA certificate, and the private key when it was
// generated server-side. This is the only operation that exposes the key.
func (s *HostService) ExportBundle(ctx context.Context, org, name string) (*ExportBundleResponse, error) {
	host, err := s.Get(ctx, org, name)
	if err != nil {
		return nil, err
	}

	info, err := s.authority.Info(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, domain.ErrCAUnavailable
	}

	data, err := s.bundler.Bundle(&BundleInput{
		Org:         host.Org,
		HostName:    host.Name,
		Address:     host.Address,
		CACertPEM:   info.CertificatePEM,
		HostCertPEM: host.CertificatePEM,
		HostKeyPEM:  host.PrivateKeyPEM,
	})
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	return &ExportBundleResponse{
		Filename: fmt.Sprintf("%s_%s_config.zip", host.Org, host.Name),
		Data:     data,
	}, nil
}

// allocateAddress picks the lowest free host id at or above 1 in the org
// subnet. Callers must hold the org lock.
func (s *HostService) allocateAddress(ctx context.Context, org string, subnet netip.Prefix) (netip.Addr, error) {
	hosts, err := s.repo.ListHostsByOrg(ctx, org)
	if err != nil {
		return netip.Addr{}, domain.ErrStorageError.WithCause(err)
	}

	used := make(map[uint64]bool, len(hosts))
	for _, h := range hosts {
		addr, err := netip.ParseAddr(h.Address)
		if err != nil {
			continue
		}
		if id, ok := domain.HostIDForAddr(subnet, addr); ok {
			used[id] = true
		}
	}

	// At most len(hosts)+1 probes before a free id turns up.
	for id := uint64(1); ; id++ {
		if used[id] {
			continue
		}
		addr, err := domain.AddrForHostID(subnet, id)
		if err != nil {
			return netip.Addr{}, domain.ErrAddressExhausted.WithCause(err)
		}
		return addr, nil
	}
}

func summarize(hosts []*domain.Host) []domain.HostSummary {
	summaries := make([]domain.HostSummary, 0, len(hosts))
	for _, h := range hosts {
		summaries = append(summaries, h.Summary())
	}
	return summaries
}
