// Package domain defines the core domain models for Nebula Tower.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Certificate: mesh certificate encoding, signing, and verification
//   - Authority: the root CA record and its key material
//   - Organization: a tenant owning a disjoint address subnet
//   - Host: a mesh peer identity with its issued certificate
//   - Invite: a bearer enrollment token with expiry and use budget
//   - Errors: domain-specific error definitions
//
// All mutable entities carry a version counter for optimistic locking.
package domain
