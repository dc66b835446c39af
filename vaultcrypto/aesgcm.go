package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// NonceSizeGCM is the size, in bytes, of the nonce used for AES-256-GCM.
const NonceSizeGCM = 12

// SaltSize is the size, in bytes, of the salt used when deriving a key via
// [Argon2idKDF]. Must be at least 16 bytes per spec.
const SaltSize = 16

// KeySize is the size, in bytes, of an AES-256-GCM key and of a derived
// Argon2id data key.
const KeySize = 32

var ErrNilAESGCM = errors.New("AESGCM is nil")

// AESGCM wraps an [cipher.AEAD] using AES-256 in GCM mode.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher using the provided key.
//
// Returns [ErrInvalidKeySize] wrapped in a [CryptoError] if key is not
// [KeySize] bytes.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, &CryptoError{Op: "new aesgcm", Err: ErrInvalidKeySize}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "new aesgcm", Err: err}
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &CryptoError{Op: "new aesgcm", Err: err}
	}

	return &AESGCM{aesgcm}, nil
}

// Seal encrypts plaintext using the given nonce with no associated data.
//
// See [AESGCM.SealAD] for the associated-data variant used by credential
// envelope encryption.
func (g *AESGCM) Seal(nonce, plaintext []byte) ([]byte, error) {
	return g.SealAD(nonce, plaintext, nil)
}

// Open decrypts ciphertext using the given nonce with no associated data.
func (g *AESGCM) Open(nonce, ciphertext []byte) ([]byte, error) {
	return g.OpenAD(nonce, ciphertext, nil)
}

// SealAD encrypts plaintext using the given nonce, authenticating ad as
// associated data. The nonce must be exactly [NonceSizeGCM] bytes and must
// never be reused with the same key; callers should draw it fresh from
// [RandBytes] for every call.
func (g *AESGCM) SealAD(nonce, plaintext, ad []byte) ([]byte, error) {
	if g == nil {
		return nil, ErrNilAESGCM
	}

	if len(nonce) != g.aead.NonceSize() {
		return nil, &CryptoError{Op: "seal", Err: ErrInvalidNonceSize}
	}

	return g.aead.Seal(nil, nonce, plaintext, ad), nil
}

// OpenAD decrypts ciphertext using the given nonce, authenticating ad as
// associated data. A tag mismatch - including a mismatched ad - surfaces as
// [AuthenticationError], distinct from malformed-input [CryptoError].
func (g *AESGCM) OpenAD(nonce, ciphertext, ad []byte) ([]byte, error) {
	if g == nil {
		return nil, ErrNilAESGCM
	}

	if len(nonce) != g.aead.NonceSize() {
		return nil, &CryptoError{Op: "open", Err: ErrInvalidNonceSize}
	}

	plaintext, err := g.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, &AuthenticationError{Err: err}
	}

	return plaintext, nil
}

// AEAD returns the underlying cipher.AEAD instance.
func (g *AESGCM) AEAD() cipher.AEAD {
	return g.aead
}
