// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for tower-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Network  NetworkSection  `koanf:"network"`
	PKI      PKISection      `koanf:"pki"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// LocalSocket, when set, serves the API on a Unix domain socket
	// without token authentication. Access is governed by filesystem
	// permissions on the socket. Empty disables it.
	LocalSocket string `koanf:"local_socket"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// StorageSection configures storage behavior.
type StorageSection struct {
	// Backend selects the store: "badger" (durable) or "memory".
	Backend string `koanf:"backend"`

	// DataDir is the Badger data directory. Ignored for memory.
	DataDir string `koanf:"data_dir"`

	// SyncWrites forces an fsync on every Badger write.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often Badger value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// NetworkSection configures the overlay mesh topology.
type NetworkSection struct {
	// MeshPrefix is the ULA /48 every organization subnet is carved from.
	MeshPrefix string `koanf:"mesh_prefix"`

	// LighthouseAddr is the lighthouse's overlay IPv6 address.
	LighthouseAddr string `koanf:"lighthouse_addr"`

	// ExternalAddr is the public address peers dial the lighthouse on.
	ExternalAddr string `koanf:"external_addr"`

	// ExternalPort is the lighthouse UDP port.
	ExternalPort int `koanf:"external_port"`
}

// PKISection configures certificate issuance.
type PKISection struct {
	// Passphrase seals the CA private key at rest. Required.
	Passphrase string `koanf:"passphrase"`

	// CAValidity is the root certificate lifetime.
	CAValidity time.Duration `koanf:"ca_validity"`

	// HostValidity is the default host certificate lifetime, capped by
	// the CA window at issue time.
	HostValidity time.Duration `koanf:"host_validity"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// AdminToken guards every administrative endpoint. Required.
	AdminToken string `koanf:"admin_token"`

	// EnrollRatePerMinute limits invite redemptions per client IP.
	EnrollRatePerMinute int `koanf:"enroll_rate_per_minute"`

	// EnrollBurst is the redemption burst allowance per client IP.
	EnrollBurst int `koanf:"enroll_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
