package vaultcrypto

import "errors"

// ErrInvalidKeySize indicates a key of the wrong length was supplied to a
// primitive that requires a fixed size (e.g. a 32-byte AES-256 key).
var ErrInvalidKeySize = errors.New("invalid key size")

// ErrInvalidNonceSize indicates a nonce of the wrong length was supplied.
var ErrInvalidNonceSize = errors.New("invalid nonce size")

// ErrInvalidParams indicates out-of-range Argon2id parameters.
var ErrInvalidParams = errors.New("invalid argon2id parameters")

// CryptoError indicates a primitive was called with malformed input or
// out-of-range parameters. It is distinct from [AuthenticationError], which
// indicates a tag/signature check failed rather than a usage error.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string { return "crypto: " + e.Op + ": " + e.Err.Error() }

func (e *CryptoError) Unwrap() error { return e.Err }

// AuthenticationError indicates an AEAD tag or signature failed to verify.
// Never silently recovered; callers must surface it as an integrity failure.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.Err.Error() }

func (e *AuthenticationError) Unwrap() error { return e.Err }
