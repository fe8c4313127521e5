package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/core/service"
)

// Key layout. All values are JSON-encoded domain records.
const (
	keyAuthority = "authority"
	prefixOrg    = "org:"
	prefixHost   = "host:"
	prefixInvite = "invite:"
)

// BadgerConfig holds Badger store settings.
type BadgerConfig struct {
	// Dir is the data directory. Required.
	Dir string

	// SyncWrites forces an fsync on every write.
	SyncWrites bool

	// GCInterval is how often the value-log GC loop runs.
	GCInterval time.Duration

	// GCThreshold is the value-log rewrite ratio passed to Badger GC.
	GCThreshold float64
}

// DefaultBadgerConfig returns the default Badger store configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:         dir,
		SyncWrites:  true,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// BadgerStore is the durable store. It implements every service
// repository interface over a single Badger database.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime       atomic.Int64
	gcBytesReclaimed atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsTotalSize    prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	stopCh chan struct{}
	doneCh chan struct{}
}

var (
	_ service.AuthorityRepository    = (*BadgerStore)(nil)
	_ service.OrganizationRepository = (*BadgerStore)(nil)
	_ service.HostRepository         = (*BadgerStore)(nil)
	_ service.InviteRepository       = (*BadgerStore)(nil)
)

// NewBadgerStore opens the database at cfg.Dir and starts the GC loop.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	store := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go store.gcLoop()

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"sync_writes", cfg.SyncWrites,
		"gc_interval", cfg.GCInterval)

	return store, nil
}

// --- AuthorityRepository -------------------------------------------------

func (s *BadgerStore) GetAuthority(ctx context.Context) (*domain.Authority, error) {
	var authority domain.Authority
	err := s.getJSON(keyAuthority, &authority)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrCANotFound
		}
		return nil, fmt.Errorf("get authority: %w", err)
	}
	return &authority, nil
}

func (s *BadgerStore) PutAuthority(ctx context.Context, authority *domain.Authority) error {
	if authority == nil {
		return fmt.Errorf("put authority: authority is nil")
	}
	if err := s.setJSON(keyAuthority, authority); err != nil {
		return fmt.Errorf("put authority: %w", err)
	}
	return nil
}

// --- OrganizationRepository ----------------------------------------------

func (s *BadgerStore) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	if org == nil {
		return domain.ErrOrgValidation.WithDetails("organization is nil")
	}
	if err := org.Validate(); err != nil {
		return err
	}
	key := []byte(prefixOrg + org.Name)
	value, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("marshal organization: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return domain.ErrOrgExists.WithDetails(org.Name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create organization: %w", err)
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) GetOrganization(ctx context.Context, name string) (*domain.Organization, error) {
	var org domain.Organization
	err := s.getJSON(prefixOrg+name, &org)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrOrgNotFound.WithDetails(name)
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

func (s *BadgerStore) ListOrganizations(ctx context.Context) ([]*domain.Organization, error) {
	var orgs []*domain.Organization
	err := s.scanJSON(prefixOrg, func(value []byte) error {
		var org domain.Organization
		if err := json.Unmarshal(value, &org); err != nil {
			return err
		}
		orgs = append(orgs, &org)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	sort.Slice(orgs, func(i, j int) bool {
		if orgs[i].CreatedAt != orgs[j].CreatedAt {
			return orgs[i].CreatedAt < orgs[j].CreatedAt
		}
		return orgs[i].Name < orgs[j].Name
	})
	return orgs, nil
}

func (s *BadgerStore) DeleteOrganization(ctx context.Context, name string) error {
	key := []byte(prefixOrg + name)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrOrgNotFound.WithDetails(name)
			}
			return fmt.Errorf("delete organization: %w", err)
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) CountHostsByOrg(ctx context.Context, org string) (int, error) {
	count := 0
	err := s.scanKeys(prefixHost+org+"/", func(string) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count hosts: %w", err)
	}
	return count, nil
}

// --- HostRepository ------------------------------------------------------

func hostKey(org, name string) []byte {
	return []byte(prefixHost + org + "/" + name)
}

func (s *BadgerStore) CreateHost(ctx context.Context, host *domain.Host) error {
	if host == nil {
		return domain.ErrHostValidation.WithDetails("host is nil")
	}
	if err := host.Validate(); err != nil {
		return err
	}
	key := hostKey(host.Org, host.Name)
	value, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("marshal host: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return domain.ErrHostExists.WithDetails(host.Name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create host: %w", err)
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) GetHost(ctx context.Context, org, name string) (*domain.Host, error) {
	var host domain.Host
	err := s.getJSON(string(hostKey(org, name)), &host)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrHostNotFound.WithDetails(name)
		}
		return nil, fmt.Errorf("get host: %w", err)
	}
	return &host, nil
}

func (s *BadgerStore) UpdateHost(ctx context.Context, host *domain.Host, expectedVersion uint64) error {
	if host == nil {
		return domain.ErrHostValidation.WithDetails("host is nil")
	}
	key := hostKey(host.Org, host.Name)
	value, err := json.Marshal(host)
	if err != nil {
		return fmt.Errorf("marshal host: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrHostNotFound.WithDetails(host.Name)
			}
			return fmt.Errorf("update host: %w", err)
		}
		var existing domain.Host
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &existing)
		}); err != nil {
			return fmt.Errorf("update host: %w", err)
		}
		if existing.Version != expectedVersion {
			return domain.ErrHostVersionConflict
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) DeleteHost(ctx context.Context, org, name string) error {
	key := hostKey(org, name)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrHostNotFound.WithDetails(name)
			}
			return fmt.Errorf("delete host: %w", err)
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) ListHosts(ctx context.Context) ([]*domain.Host, error) {
	return s.listHosts(prefixHost)
}

func (s *BadgerStore) ListHostsByOrg(ctx context.Context, org string) ([]*domain.Host, error) {
	return s.listHosts(prefixHost + org + "/")
}

func (s *BadgerStore) listHosts(prefix string) ([]*domain.Host, error) {
	var hosts []*domain.Host
	err := s.scanJSON(prefix, func(value []byte) error {
		var host domain.Host
		if err := json.Unmarshal(value, &host); err != nil {
			return err
		}
		hosts = append(hosts, &host)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	// ULIDs are time-ordered, so the ID breaks same-millisecond ties
	// in creation order.
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].CreatedAt != hosts[j].CreatedAt {
			return hosts[i].CreatedAt < hosts[j].CreatedAt
		}
		return hosts[i].ID < hosts[j].ID
	})
	return hosts, nil
}

// --- InviteRepository ----------------------------------------------------

func (s *BadgerStore) CreateInvite(ctx context.Context, invite *domain.Invite) error {
	if invite == nil {
		return domain.ErrInviteValidation.WithDetails("invite is nil")
	}
	if err := invite.Validate(); err != nil {
		return err
	}
	key := []byte(prefixInvite + invite.Code)
	value, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return domain.ErrInviteValidation.WithDetails("invite code collision")
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create invite: %w", err)
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) GetInviteByCode(ctx context.Context, code string) (*domain.Invite, error) {
	var invite domain.Invite
	err := s.getJSON(prefixInvite+code, &invite)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrInviteInvalid
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return &invite, nil
}

func (s *BadgerStore) UpdateInvite(ctx context.Context, invite *domain.Invite, expectedVersion uint64) error {
	if invite == nil {
		return domain.ErrInviteValidation.WithDetails("invite is nil")
	}
	key := []byte(prefixInvite + invite.Code)
	value, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrInviteInvalid
			}
			return fmt.Errorf("update invite: %w", err)
		}
		var existing domain.Invite
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &existing)
		}); err != nil {
			return fmt.Errorf("update invite: %w", err)
		}
		if existing.Version != expectedVersion {
			return domain.ErrInviteVersionConflict
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) ListInvites(ctx context.Context) ([]*domain.Invite, error) {
	var invites []*domain.Invite
	err := s.scanJSON(prefixInvite, func(value []byte) error {
		var invite domain.Invite
		if err := json.Unmarshal(value, &invite); err != nil {
			return err
		}
		invites = append(invites, &invite)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	sort.Slice(invites, func(i, j int) bool {
		if invites[i].CreatedAt != invites[j].CreatedAt {
			return invites[i].CreatedAt < invites[j].CreatedAt
		}
		return invites[i].ID < invites[j].ID
	})
	return invites, nil
}

// --- Maintenance ---------------------------------------------------------

// Counts returns the number of stored organizations, hosts, and invites.
func (s *BadgerStore) Counts() (orgs, hosts, invites int) {
	_ = s.scanKeys(prefixOrg, func(string) error { orgs++; return nil })
	_ = s.scanKeys(prefixHost, func(string) error { hosts++; return nil })
	_ = s.scanKeys(prefixInvite, func(string) error { invites++; return nil })
	return orgs, hosts, invites
}

// GC runs value-log garbage collection until Badger reports nothing
// left to rewrite. Returns the approximate bytes reclaimed.
func (s *BadgerStore) GC(ctx context.Context) (uint64, error) {
	start := time.Now()

	var reclaimed uint64
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return reclaimed, fmt.Errorf("gc: %w", err)
		}
		// Badger does not report exact figures; count one value-log
		// rewrite as roughly a megabyte.
		reclaimed += 1 << 20
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcBytesReclaimed.Add(reclaimed)

	if reclaimed > 0 {
		s.logger.Info("badger gc completed",
			"bytes_reclaimed", reclaimed,
			"elapsed", time.Since(start))
	}

	return reclaimed, nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	s.logger.Info("badger store closed")
	return nil
}

// RegisterMetrics registers store size and GC metrics with Prometheus
// and starts the metrics update loop. Call at most once.
func (s *BadgerStore) RegisterMetrics(registry *prometheus.Registry) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tower",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})

	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tower",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})

	s.metricsTotalSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tower",
		Subsystem: "badger",
		Name:      "total_size_bytes",
		Help:      "Badger total storage size in bytes (LSM + value log)",
	})

	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tower",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})

	registry.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsTotalSize,
		s.metricsLastGCTime,
	)

	go s.metricsUpdateLoop()

	return s
}

func (s *BadgerStore) metricsUpdateLoop() {
	if s.metricsLSMSize == nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lsm, vlog := s.db.Size()
			s.metricsLSMSize.Set(float64(lsm))
			s.metricsValueLogSize.Set(float64(vlog))
			s.metricsTotalSize.Set(float64(lsm + vlog))
			if t := s.lastGCTime.Load(); t > 0 {
				s.metricsLastGCTime.Set(float64(t) / 1000.0)
			}

		case <-s.stopCh:
			return
		}
	}
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.logger.Error("badger auto gc failed", "error", err)
			}
			cancel()

		case <-s.stopCh:
			return
		}
	}
}

// --- Internals -----------------------------------------------------------

func (s *BadgerStore) getJSON(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, out)
		})
	})
}

func (s *BadgerStore) setJSON(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) scanJSON(prefix string, fn func(value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(v []byte) error {
				return fn(v)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) scanKeys(prefix string, fn func(key string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := fn(string(it.Item().Key())); err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
