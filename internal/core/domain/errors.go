// Package domain defines the core domain models for Nebula Tower.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the pattern NT-<AREA>-<NNNN> where the numeric suffix loosely
// mirrors the HTTP status the boundary maps it to.
type DomainError struct {
	Code    string // Error code (e.g., "NT-INVT-4011")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks whether the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Certificate Authority Errors (CA)
// ============================================================================

var (
	// ErrCANotFound indicates no CA has been created yet.
	ErrCANotFound = NewDomainError("NT-CA-4040", "ca certificate not found")

	// ErrCAExists indicates a CA is already present.
	ErrCAExists = NewDomainError("NT-CA-4090", "ca certificate already exists")

	// ErrCAUnavailable indicates an operation required a CA that does not exist.
	ErrCAUnavailable = NewDomainError("NT-CA-5030", "certificate authority unavailable")

	// ErrCARotateUnconfirmed indicates a rotation was attempted without confirmation.
	ErrCARotateUnconfirmed = NewDomainError("NT-CA-4001", "ca rotation requires explicit confirmation")

	// ErrCertWindow indicates a requested validity window exceeds the CA's own.
	ErrCertWindow = NewDomainError("NT-CA-4002", "certificate validity window exceeds ca window")

	// ErrCertInvalid indicates a certificate failed decoding or verification.
	ErrCertInvalid = NewDomainError("NT-CA-4003", "invalid certificate")
)

// ============================================================================
// Organization Errors (ORG)
// ============================================================================

var (
	// ErrOrgNotFound indicates the requested organization was not found.
	ErrOrgNotFound = NewDomainError("NT-ORG-4040", "organization not found")

	// ErrOrgExists indicates the organization name is already taken.
	ErrOrgExists = NewDomainError("NT-ORG-4090", "organization already exists")

	// ErrOrgNotEmpty indicates the organization still owns hosts.
	ErrOrgNotEmpty = NewDomainError("NT-ORG-4091", "organization still owns hosts")

	// ErrSubnetExhausted indicates the address space has no free subnet block.
	ErrSubnetExhausted = NewDomainError("NT-ORG-5090", "no available subnets")

	// ErrOrgValidation indicates organization data validation failed.
	ErrOrgValidation = NewDomainError("NT-ORG-4001", "organization validation failed")
)

// ============================================================================
// Host Errors (HOST)
// ============================================================================

var (
	// ErrHostNotFound indicates the requested host was not found.
	ErrHostNotFound = NewDomainError("NT-HOST-4040", "host not found")

	// ErrHostExists indicates the host name is already used within the organization.
	ErrHostExists = NewDomainError("NT-HOST-4090", "host already exists in organization")

	// ErrAddressExhausted indicates the organization subnet has no free address.
	ErrAddressExhausted = NewDomainError("NT-HOST-5090", "no available addresses in subnet")

	// ErrHostValidation indicates host data validation failed.
	ErrHostValidation = NewDomainError("NT-HOST-4001", "host validation failed")

	// ErrHostVersionConflict indicates an optimistic lock conflict.
	ErrHostVersionConflict = NewDomainError("NT-HOST-4091", "host version conflict, please retry")
)

// ============================================================================
// Invite Errors (INVT)
// ============================================================================

var (
	// ErrInviteInvalid indicates the invite code is unknown.
	ErrInviteInvalid = NewDomainError("NT-INVT-4010", "invalid invite code")

	// ErrInviteExpired indicates the invite is past its expiry.
	ErrInviteExpired = NewDomainError("NT-INVT-4011", "invite code expired")

	// ErrInviteExhausted indicates the invite has no remaining uses.
	ErrInviteExhausted = NewDomainError("NT-INVT-4012", "invite code exhausted")

	// ErrInviteRevoked indicates the invite was deactivated by an administrator.
	ErrInviteRevoked = NewDomainError("NT-INVT-4013", "invite code revoked")

	// ErrInviteValidation indicates invite data validation failed.
	ErrInviteValidation = NewDomainError("NT-INVT-4001", "invite validation failed")

	// ErrInviteVersionConflict indicates an optimistic lock conflict.
	ErrInviteVersionConflict = NewDomainError("NT-INVT-4091", "invite version conflict, please retry")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("NT-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("NT-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("NT-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("NT-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("NT-SYS-4290", "too many requests")

	// ErrUnauthorized indicates a missing or invalid admin credential.
	ErrUnauthorized = NewDomainError("NT-SYS-4010", "authentication required")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("NT-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("NT-ARG-1002", "missing required argument")
)
