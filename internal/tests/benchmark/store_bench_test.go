package benchmark

import (
	"context"
	"fmt"
	"testing"
)

func BenchmarkMemoryStore_CreateHost(b *testing.B) {
	store, _ := seedStore(b, 0)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		host := newBenchHost("bench", i)
		if err := store.CreateHost(ctx, host); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_GetHost(b *testing.B) {
	for _, count := range HostCounts {
		b.Run(fmt.Sprintf("hosts_%d", count), func(b *testing.B) {
			store, hosts := seedStore(b, count)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				h := hosts[i%len(hosts)]
				if _, err := store.GetHost(ctx, h.Org, h.Name); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMemoryStore_ListHostsByOrg(b *testing.B) {
	for _, count := range HostCounts {
		b.Run(fmt.Sprintf("hosts_%d", count), func(b *testing.B) {
			store, _ := seedStore(b, count)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				list, err := store.ListHostsByOrg(ctx, "bench")
				if err != nil {
					b.Fatal(err)
				}
				if len(list) != count {
					b.Fatalf("got %d hosts, want %d", len(list), count)
				}
			}
		})
	}
}

func BenchmarkMemoryStore_CountHostsByOrg(b *testing.B) {
	store, _ := seedStore(b, 10000)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := store.CountHostsByOrg(ctx, "bench"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore_UpdateHost(b *testing.B) {
	store, hosts := seedStore(b, 1000)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		h := hosts[i%len(hosts)]
		expected := h.Version
		h.Version++
		if err := store.UpdateHost(ctx, h, expected); err != nil {
			b.Fatal(err)
		}
	}
}
