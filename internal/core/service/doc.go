// Package service provides domain services for Nebula Tower.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for storage dependencies,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - AuthorityService: root CA lifecycle and certificate signing
//   - OrganizationService: organization management and subnet allocation
//   - HostService: host records, address allocation, and bundle export
//   - InviteService: invite generation, revocation, and redemption
//
// Services are thread-safe. Operations that allocate shared resources
// (subnets, addresses, invite uses) serialize on service-held mutexes so
// concurrent callers never observe a double grant.
package service
