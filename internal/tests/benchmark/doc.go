// Package benchmark provides performance benchmarks for the hot paths
// of the credential plane: storage throughput at realistic host counts,
// invite token generation and verification, and certificate issuance.
//
// Run with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
package benchmark
