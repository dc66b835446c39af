package vaultcrypto

import "crypto/sha256"

// SHA256 returns the SHA-256 digest of data, used for data fingerprints
// (e.g. the audited digest of a signed SSH payload, never the payload
// itself).
func SHA256(data []byte) [sha256.Size]byte {
	return sha256.Sum256(data)
}
