package mesh

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/transformerlab/nebula-tower/internal/core/service"
)

// Bundler packages host credentials and rendered mesh configuration
// into zip archives. It implements service.Bundler.
type Bundler struct {
	cfg Config
}

var _ service.Bundler = (*Bundler)(nil)

// NewBundler validates cfg and returns a Bundler.
func NewBundler(cfg Config) (*Bundler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Bundler{cfg: cfg}, nil
}

// Bundle builds the enrollment archive: config.yaml, host.crt,
// host.key, ca.crt. The key entry is omitted when the host keeps its
// private key local.
func (b *Bundler) Bundle(in *service.BundleInput) ([]byte, error) {
	if in == nil {
		return nil, fmt.Errorf("mesh: bundle input is nil")
	}
	if in.Org == "" || in.HostName == "" {
		return nil, fmt.Errorf("mesh: bundle requires org and host name")
	}
	if in.HostCertPEM == "" || in.CACertPEM == "" {
		return nil, fmt.Errorf("mesh: bundle requires host and ca certificates")
	}

	config, err := b.RenderConfig(in.Org)
	if err != nil {
		return nil, err
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"config.yaml", config},
		{"host.crt", []byte(in.HostCertPEM)},
		{"host.key", []byte(in.HostKeyPEM)},
		{"ca.crt", []byte(in.CACertPEM)},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		if entry.name == "host.key" && len(entry.data) == 0 {
			continue
		}
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("mesh: zip entry %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("mesh: zip entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("mesh: close zip: %w", err)
	}

	return buf.Bytes(), nil
}
