// Package vaulterrors collects the sentinel errors and typed error kinds
// shared across the vault, session, and sshagent packages, so callers can
// use a single errors.Is/errors.As vocabulary regardless of which layer
// produced the failure.
package vaulterrors

import (
	"errors"
	"fmt"
)

var (
	ErrVaultFileExists           = errors.New("vault file already exists")
	ErrVaultFileNotFound         = errors.New("vault file does not exist")
	ErrWrongPassword             = errors.New("incorrect vault password")
	ErrEmptyPassword             = errors.New("empty vault password")
	ErrNonInteractiveUnsupported = errors.New("non-interactive input not supported")
	ErrInteractiveLoginDisabled  = errors.New("interactive login is disabled; no session available")
	ErrEmptySecret               = errors.New("secret cannot be empty")
	ErrSearchNoMatch             = errors.New("no match found")
	ErrAmbiguousSecretMatch      = errors.New("ambiguous secret match: multiple secrets match the search criteria")

	// ErrAlreadyInitialized indicates initialize_user was called on a vault
	// that already has a user_auth row.
	ErrAlreadyInitialized = errors.New("vault already initialized")

	// ErrLocked indicates an item operation was attempted without an
	// unlocked session.
	ErrLocked = errors.New("vault is locked")

	// ErrRateLimited indicates unlock was attempted while locked_until is
	// still in the future.
	ErrRateLimited = errors.New("too many failed attempts; vault is temporarily locked")

	// ErrSessionExpired indicates a session handle outlived its expires_at.
	ErrSessionExpired = errors.New("session expired")

	// ErrPermissionDenied indicates a session lacks a required permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIdentityNotFound / ErrCredentialNotFound are returned for missing rows
	// in addition to the generic [Kind] classification, for call sites that
	// only need errors.Is.
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrCredentialNotFound = errors.New("credential not found")
)

// Kind classifies a storage-layer failure the way spec ǂ4.2 names repository
// error kinds: NotFound, Conflict, DataIntegrity, Backend.
type Kind int

const (
	// KindUnknown is the zero value; never constructed deliberately.
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindDataIntegrity
	KindBackend
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDataIntegrity:
		return "data_integrity"
	case KindBackend:
		return "backend"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// StoreError wraps a storage-layer error with its [Kind] and the resource it
// concerns, so callers can branch with errors.As without string matching.
type StoreError struct {
	Kind     Kind
	Resource string // e.g. "identity", "credential"
	ID       string // empty if not applicable
	Err      error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Resource, e.ID, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Resource, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError constructs a [StoreError].
func NewStoreError(kind Kind, resource, id string, err error) *StoreError {
	return &StoreError{Kind: kind, Resource: resource, ID: id, Err: err}
}

// IntegrityError indicates an AEAD tag or checksum failure on a stored blob.
// The record is never auto-deleted; it stays and is flagged for the user.
type IntegrityError struct {
	Resource string
	ID       string
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: %s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// DeniedReason enumerates the structured reasons a sign request can be
// denied by the SSH-agent policy enforcer (spec ǂ7).
type DeniedReason int

const (
	DeniedUnknownReason DeniedReason = iota
	DeniedUnknownKey
	DeniedHostNotAllowed
	DeniedRateLimited
	DeniedConfirmDeclined
	DeniedBiometricFailed
	DeniedKnownHostMismatch
	DeniedGlobalDenyAll
	DeniedOutsideAllowedWindow
)

func (r DeniedReason) String() string {
	switch r {
	case DeniedUnknownKey:
		return "unknown-key"
	case DeniedHostNotAllowed:
		return "host-not-allowed"
	case DeniedRateLimited:
		return "rate-limited"
	case DeniedConfirmDeclined:
		return "confirm-declined"
	case DeniedBiometricFailed:
		return "biometric-failed"
	case DeniedKnownHostMismatch:
		return "known-host-mismatch"
	case DeniedGlobalDenyAll:
		return "deny-all"
	case DeniedOutsideAllowedWindow:
		return "outside-allowed-window"
	default:
		return "unknown"
	}
}

// PolicyDeniedError is returned by the policy enforcer and carried into the
// audit entry for a denied sign request.
type PolicyDeniedError struct {
	Reason DeniedReason
	Detail string
}

func (e *PolicyDeniedError) Error() string {
	if e.Detail == "" {
		return "policy denied: " + e.Reason.String()
	}

	return "policy denied: " + e.Reason.String() + ": " + e.Detail
}

// TransportError indicates a malformed frame, short read, or client
// disconnect on the agent's local socket. The connection is closed; there is
// no retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// SignError wraps an internal failure (crypto or storage) that occurred
// while servicing a sign request. It never carries seed material.
type SignError struct {
	Op  string
	Err error
}

func (e *SignError) Error() string { return "sign error: " + e.Op + ": " + e.Err.Error() }

func (e *SignError) Unwrap() error { return e.Err }
