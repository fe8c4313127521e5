package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/transformerlab/nebula-tower/internal/core/domain"
	"github.com/transformerlab/nebula-tower/internal/storage/memory"
)

// HostCounts defines the host counts for storage benchmarks.
var HostCounts = []int{1000, 5000, 10000, 50000}

// newBenchHost builds a host record shaped like production output,
// including a certificate-sized payload.
func newBenchHost(org string, i int) *domain.Host {
	host, _ := domain.NewHost(org, fmt.Sprintf("host%06d", i), []string{"bench"})
	host.Address = fmt.Sprintf("fd42:9e1a:27cd:1::%x", i+1)
	host.CertificatePEM = benchCertPEM
	return host
}

// seedStore fills a memory store with one org and n hosts.
func seedStore(b *testing.B, n int) (*memory.Store, []*domain.Host) {
	b.Helper()

	store := memory.New()
	ctx := context.Background()

	org := &domain.Organization{
		Name:   "bench",
		Subnet: "fd42:9e1a:27cd:1::/64",
	}
	if err := store.CreateOrganization(ctx, org); err != nil {
		b.Fatal(err)
	}

	hosts := make([]*domain.Host, 0, n)
	for i := 0; i < n; i++ {
		host := newBenchHost("bench", i)
		if err := store.CreateHost(ctx, host); err != nil {
			b.Fatal(err)
		}
		hosts = append(hosts, host)
	}
	return store, hosts
}

// benchCertPEM approximates the size of an issued host certificate.
const benchCertPEM = `-----BEGIN NEBULA TOWER CERTIFICATE-----
CkMKEU5lYnVsYSBUb3dlciBIb3N0Eg2B6YKADID+/w+AgPwPIgNkZXYopYz4mwYw
pYXRwwY6IFJWvzv6mXoXDZx1mcPp7bNTCWpYMkVYyLvgnQiwnvvtSkCUItOl0YhW
XAyGd1VRBZBYVBmjrrGv4cVKKbyUHvLwQCeXGNyHTxXbNbH01jJUHDmkTESx9kVL
ZWFmYmVhZjk1ZTQ0YzM3YjYzNDVhZTQ1ZjM0ZDY2M2U3YjYzNDVhZTQ1ZjM0ZDY2
-----END NEBULA TOWER CERTIFICATE-----
`
