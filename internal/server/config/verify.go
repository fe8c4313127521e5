// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
)

// MinPassphraseLen is the minimum accepted PKI passphrase length.
const MinPassphraseLen = 8

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyNetwork(&cfg.Network); err != nil {
		return err
	}
	if err := verifyPKI(&cfg.PKI); err != nil {
		return err
	}
	return verifySecurity(&cfg.Security)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http: tls_cert_file and tls_key_file must be set together")
	}
	if cfg.HTTP.TLSCertFile != "" {
		for _, path := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("server.http: %s: %w", path, err)
			}
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "badger":
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required for the badger backend")
		}
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("cannot create data directory: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("storage.backend %q is not supported (memory, badger)", cfg.Backend)
	}
}

func verifyNetwork(cfg *NetworkSection) error {
	prefix, err := netip.ParsePrefix(cfg.MeshPrefix)
	if err != nil {
		return fmt.Errorf("network.mesh_prefix: %w", err)
	}
	if !prefix.Addr().Is6() || prefix.Bits() != 48 {
		return fmt.Errorf("network.mesh_prefix %q must be an IPv6 /48", cfg.MeshPrefix)
	}

	lighthouse, err := netip.ParseAddr(cfg.LighthouseAddr)
	if err != nil {
		return fmt.Errorf("network.lighthouse_addr: %w", err)
	}
	if !prefix.Contains(lighthouse) {
		return fmt.Errorf("network.lighthouse_addr %s is outside %s", cfg.LighthouseAddr, cfg.MeshPrefix)
	}

	if cfg.ExternalAddr == "" {
		return errors.New("network.external_addr is required")
	}
	if cfg.ExternalPort < 1 || cfg.ExternalPort > 65535 {
		return fmt.Errorf("network.external_port %d out of range", cfg.ExternalPort)
	}
	return nil
}

func verifyPKI(cfg *PKISection) error {
	if len(cfg.Passphrase) < MinPassphraseLen {
		return fmt.Errorf("pki.passphrase must be at least %d characters", MinPassphraseLen)
	}
	if cfg.CAValidity <= 0 {
		return errors.New("pki.ca_validity must be positive")
	}
	if cfg.HostValidity <= 0 {
		return errors.New("pki.host_validity must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.AdminToken == "" {
		return errors.New("security.admin_token is required")
	}
	if cfg.EnrollRatePerMinute < 1 {
		return errors.New("security.enroll_rate_per_minute must be at least 1")
	}
	if cfg.EnrollBurst < 1 {
		return errors.New("security.enroll_burst must be at least 1")
	}
	return nil
}
