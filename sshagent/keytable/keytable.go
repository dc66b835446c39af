// Package keytable holds the in-memory table of hydrated SSH keys the
// agent can sign with: a public-key blob mapped to its zeroizing seed and
// owning identity/credential. Reads (signing, listing) take the read lock
// so concurrent signers never block each other; only unlock/lock/CRUD take
// the write lock.
package keytable

import (
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/ladzaretti/vaultagent/vaultcrypto"
)

// Entry is one hydrated SSH key.
type Entry struct {
	PublicKey    ssh.PublicKey
	Comment      string
	Seed         *vaultcrypto.Secret // 32-byte Ed25519 seed, zeroized on Remove/Clear.
	CredentialID string
	IdentityID   string
}

// Table is a concurrency-safe map from public-key blob to [Entry].
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty [Table].
func New() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Put inserts or replaces the entry for e's public key.
func (t *Table) Put(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[blobKey(e.PublicKey)] = e
}

// Get looks up the entry for a public-key blob as carried on the wire.
func (t *Table) Get(blob []byte) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[string(blob)]

	return e, ok
}

// List returns every hydrated entry, in no particular order.
func (t *Table) List() []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}

	return out
}

// RemoveByCredentialID evicts and zeroizes the entry owned by credentialID,
// if present. Called on credential deletion (spec: "Entries are removed on
// lock or on credential deletion").
func (t *Table) RemoveByCredentialID(credentialID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, e := range t.entries {
		if e.CredentialID == credentialID {
			_ = e.Seed.Close()
			delete(t.entries, k)
		}
	}
}

// Clear zeroizes and removes every entry. Called on lock.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, e := range t.entries {
		_ = e.Seed.Close()
		delete(t.entries, k)
	}
}

// Len returns the number of hydrated keys.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

func blobKey(pub ssh.PublicKey) string {
	return string(pub.Marshal())
}
