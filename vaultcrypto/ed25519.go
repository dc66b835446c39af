package vaultcrypto

import (
	"crypto/ed25519"
	"errors"
)

// SeedSize is the size, in bytes, of an Ed25519 private key seed.
const SeedSize = ed25519.SeedSize

var ErrInvalidSeedSize = errors.New("invalid ed25519 seed size")

// Ed25519Signer holds an Ed25519 seed in a zeroizing [Secret] and signs raw
// message bytes with it. The seed is never exposed outside the package; the
// only way to use it is [Ed25519Signer.Sign] and [Ed25519Signer.PublicKey].
//
// Close must be called as soon as the signer is no longer needed, per the
// zeroization discipline in spec ǂ9: callers should acquire a signer scoped
// to a single sign operation, never hold one long-lived.
type Ed25519Signer struct {
	seed *Secret
	pub  ed25519.PublicKey
}

// NewEd25519Signer derives the public key from seed and returns a signer
// that owns a zeroizing copy of it. The caller's seed slice is not retained;
// zeroize it yourself if it came from untrusted-lifetime storage.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != SeedSize {
		return nil, &CryptoError{Op: "new ed25519 signer", Err: ErrInvalidSeedSize}
	}

	copied := make([]byte, SeedSize)
	copy(copied, seed)

	priv := ed25519.NewKeyFromSeed(copied)
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, priv.Public().(ed25519.PublicKey))

	return &Ed25519Signer{
		seed: NewSecret(copied),
		pub:  pub,
	}, nil
}

// PublicKey returns the 32-byte Ed25519 public key.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Sign returns the Ed25519 signature of message. The private key is
// reconstructed from the zeroized seed on every call rather than cached, so
// the expanded private key never lives longer than a single call stack.
func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	if s == nil || s.seed == nil || s.seed.Bytes() == nil {
		return nil, &CryptoError{Op: "sign", Err: errors.New("signer closed")}
	}

	priv := ed25519.NewKeyFromSeed(s.seed.Bytes())
	sig := ed25519.Sign(priv, message)

	return sig, nil
}

// Close zeroizes the held seed. Safe to call multiple times.
func (s *Ed25519Signer) Close() error {
	if s == nil {
		return nil
	}

	return s.seed.Close()
}

// VerifyEd25519 verifies sig over message under pub.
func VerifyEd25519(pub ed25519.PublicKey, message, sig []byte) bool {
	return ed25519.Verify(pub, message, sig)
}
