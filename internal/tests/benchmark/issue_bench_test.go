package benchmark

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/storage/memory"
)

// BenchmarkAuthority_Sign measures host certificate issuance, the hot
// path of both admin host creation and invite enrollment.
func BenchmarkAuthority_Sign(b *testing.B) {
	store := memory.New()
	authority := service.NewAuthorityService(store, &service.AuthorityServiceConfig{
		Passphrase:   "benchmark passphrase",
		CAValidity:   365 * 24 * time.Hour,
		HostValidity: 30 * 24 * time.Hour,
	})

	ctx := context.Background()
	if _, err := authority.Create(ctx, &service.CreateCARequest{Name: "bench ca"}); err != nil {
		b.Fatal(err)
	}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, err := authority.Sign(ctx, &service.SignCertificateRequest{
			Name:      fmt.Sprintf("host%06d", i),
			Network:   "fd42:9e1a:27cd:1::1/64",
			Groups:    []string{"org_bench"},
			PublicKey: pub,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
