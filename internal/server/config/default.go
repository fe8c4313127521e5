// Package config defines the server configuration structure.
package config

import (
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/mesh"
)

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:5080"

	// DefaultLighthouseAddr is the first address of the reserved
	// lighthouse subnet under the default mesh prefix.
	DefaultLighthouseAddr = "fd42:9e1a:27cd::1"

	DefaultStorageBackend = "badger"
	DefaultDataDir        = "/var/lib/tower-server/data"
	DefaultGCInterval     = 10 * time.Minute

	DefaultCAValidity   = 365 * 24 * time.Hour
	DefaultHostValidity = 365 * 24 * time.Hour

	DefaultEnrollRatePerMinute = 5
	DefaultEnrollBurst         = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration. The PKI passphrase
// and admin token have no defaults and must be supplied.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Storage: StorageSection{
			Backend:    DefaultStorageBackend,
			DataDir:    DefaultDataDir,
			SyncWrites: true,
			GCInterval: DefaultGCInterval,
		},
		Network: NetworkSection{
			MeshPrefix:     service.DefaultMeshPrefix,
			LighthouseAddr: DefaultLighthouseAddr,
			ExternalPort:   mesh.DefaultPort,
		},
		PKI: PKISection{
			CAValidity:   DefaultCAValidity,
			HostValidity: DefaultHostValidity,
		},
		Security: SecuritySection{
			EnrollRatePerMinute: DefaultEnrollRatePerMinute,
			EnrollBurst:         DefaultEnrollBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
