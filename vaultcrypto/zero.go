package vaultcrypto

// Zeroize overwrites b with zeros in place. It is a no-op for a nil or empty
// slice. Used on every path - success and error - that finishes with secret
// material so no plaintext key, seed, or password survives past its scope.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Secret is a zeroizing container for a single secret byte slice: a master
// key, a data key, or an Ed25519 seed. Callers must call [Secret.Close] (or
// defer it immediately after construction) on every path, including error
// returns, so the backing array is wiped rather than left for the garbage
// collector.
type Secret struct {
	b []byte
}

// NewSecret takes ownership of b and returns a [Secret] wrapping it. The
// caller must not retain or reuse b after this call.
func NewSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Bytes returns the secret's backing bytes. The returned slice aliases the
// container's storage and becomes invalid after [Secret.Close].
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}

	return s.b
}

// Close zeroizes the secret's backing array. Safe to call multiple times and
// on a nil receiver.
func (s *Secret) Close() error {
	if s == nil {
		return nil
	}

	Zeroize(s.b)
	s.b = nil

	return nil
}
