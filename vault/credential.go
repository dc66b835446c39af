package vault

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ladzaretti/vaultagent/vault/payload"
	"github.com/ladzaretti/vaultagent/vault/sqlite/vaultdb"
	"github.com/ladzaretti/vaultagent/vaultcrypto"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

// NewCredential describes a credential to be created via
// [Vault.CreateCredential].
type NewCredential struct {
	IdentityID    string
	Name          string
	SecurityLevel SecurityLevel
	URL           string
	Username      string
	Notes         string
	Tags          []string
	Payload       payload.Payload
}

// CreateCredential seals payload under the data key with AD bound to the
// generated credential id and kind, and inserts the row.
func (vlt *Vault) CreateCredential(ctx context.Context, nc NewCredential) (string, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return "", err
	}

	id := newID()

	nonce, ciphertext, err := vlt.sealPayload(id, nc.Payload)
	if err != nil {
		return "", errf("create credential: %w", err)
	}

	tagsJSON, err := encodeTags(nc.Tags)
	if err != nil {
		return "", errf("create credential: %w", err)
	}

	row := vaultdb.NewCredential{
		ID:            id,
		IdentityID:    nc.IdentityID,
		Name:          nc.Name,
		Kind:          string(nc.Payload.Kind()),
		SecurityLevel: string(nc.SecurityLevel),
		URL:           nc.URL,
		Username:      nc.Username,
		Notes:         nc.Notes,
		Tags:          tagsJSON,
		Nonce:         nonce,
		EncryptedData: ciphertext,
	}

	if err := vlt.db.InsertCredential(ctx, row); err != nil {
		return "", errf("create credential: %w", err)
	}

	return id, nil
}

// sealPayload envelopes and AEAD-seals a credential payload, binding the
// credential id and kind as associated data (spec ǂ4.2 invariant).
func (vlt *Vault) sealPayload(id string, p payload.Payload) (nonce, ciphertext []byte, _ error) {
	plain, err := payload.Envelope(p)
	if err != nil {
		return nil, nil, err
	}
	defer vaultcrypto.Zeroize(plain)

	nonce, err = vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)
	if err != nil {
		return nil, nil, errf("failed to generate nonce: %w", err)
	}

	ad := credentialAD(id, p.Kind())

	ciphertext, err = vlt.aesgcm.SealAD(nonce, plain, ad)
	if err != nil {
		return nil, nil, errf("failed to seal payload: %w", err)
	}

	return nonce, ciphertext, nil
}

// openPayload reverses [Vault.sealPayload], verifying the AD against the
// row's own id and kind - if a ciphertext were copied from a different row,
// authentication fails here.
func (vlt *Vault) openPayload(id, kind string, nonce, ciphertext []byte) (payload.Payload, error) {
	ad := credentialAD(id, payload.Kind(kind))

	plain, err := vlt.aesgcm.OpenAD(nonce, ciphertext, ad)
	if err != nil {
		return nil, &vaulterrors.IntegrityError{Resource: "credential", ID: id, Err: err}
	}
	defer vaultcrypto.Zeroize(plain)

	p, err := payload.Unenvelope(plain)
	if err != nil {
		return nil, &vaulterrors.IntegrityError{Resource: "credential", ID: id, Err: err}
	}

	return p, nil
}

// RevealCredential decrypts and returns the full credential, including its
// typed payload, and bumps last_accessed (spec ǂ4.2 ordering invariant).
func (vlt *Vault) RevealCredential(ctx context.Context, id string) (*Credential, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return nil, err
	}

	row, err := vlt.db.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaulterrors.NewStoreError(vaulterrors.KindNotFound, "credential", id, vaulterrors.ErrCredentialNotFound)
		}

		return nil, errf("reveal credential: %w", err)
	}

	p, err := vlt.openPayload(row.ID, row.Kind, row.Nonce, row.EncryptedData)
	if err != nil {
		return nil, err
	}

	if err := vlt.db.TouchLastAccessed(ctx, id); err != nil {
		return nil, errf("reveal credential: %w", err)
	}

	c := credentialFromRow(row)
	c.Payload = p

	return c, nil
}

// UpdateCredentialPayload reseals a new payload into an existing credential
// row, keeping metadata untouched.
func (vlt *Vault) UpdateCredentialPayload(ctx context.Context, id string, p payload.Payload) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	nonce, ciphertext, err := vlt.sealPayload(id, p)
	if err != nil {
		return errf("update credential payload: %w", err)
	}

	n, err := vlt.db.UpdateCredentialPayload(ctx, id, nonce, ciphertext)
	if err != nil {
		return errf("update credential payload: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "credential", id, vaulterrors.ErrCredentialNotFound)
	}

	return nil
}

// UpdateCredentialMetadata updates the plaintext-safe fields of a
// credential without touching its encrypted payload.
func (vlt *Vault) UpdateCredentialMetadata(ctx context.Context, id, name, url, username, notes string, tags []string, favorite, active bool) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return errf("update credential metadata: %w", err)
	}

	n, err := vlt.db.UpdateCredentialMetadata(ctx, id, name, url, username, notes, tagsJSON, favorite, active)
	if err != nil {
		return errf("update credential metadata: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "credential", id, vaulterrors.ErrCredentialNotFound)
	}

	return nil
}

// DeleteCredential removes a credential row. Callers responsible for the SSH
// agent key table must also evict any hydrated entry for this id (spec ǂ6:
// "Entries are removed on lock or on credential deletion").
func (vlt *Vault) DeleteCredential(ctx context.Context, id string) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	n, err := vlt.db.DeleteCredential(ctx, id)
	if err != nil {
		return errf("delete credential: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "credential", id, vaulterrors.ErrCredentialNotFound)
	}

	return nil
}

// SearchFilters mirrors [vaultdb.Filters] at the service boundary.
type SearchFilters struct {
	Wildcard   string
	IdentityID string
	Kind       payload.Kind
	Favorite   *bool
}

// SearchCredentials returns matching credentials (metadata only - payloads
// are not decrypted), ordered by last-accessed descending, then name
// ascending, ties broken by id.
func (vlt *Vault) SearchCredentials(ctx context.Context, f SearchFilters) ([]Credential, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return nil, err
	}

	rows, err := vlt.db.SearchCredentials(ctx, vaultdb.Filters{
		Wildcard:   f.Wildcard,
		IdentityID: f.IdentityID,
		Kind:       string(f.Kind),
		Favorite:   f.Favorite,
	})
	if err != nil {
		return nil, errf("search credentials: %w", err)
	}

	out := make([]Credential, 0, len(rows))
	for _, r := range rows {
		out = append(out, *credentialFromRow(&r))
	}

	return out, nil
}

// CredentialsByKind returns every active credential of the given kind
// across all identities, decrypted. Used by the SSH agent to hydrate its
// key table from kind=ssh-key rows on unlock.
func (vlt *Vault) CredentialsByKind(ctx context.Context, kind payload.Kind) ([]Credential, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return nil, err
	}

	rows, err := vlt.db.ListCredentialsByKind(ctx, string(kind))
	if err != nil {
		return nil, errf("credentials by kind: %w", err)
	}

	out := make([]Credential, 0, len(rows))

	for _, r := range rows {
		p, err := vlt.openPayload(r.ID, r.Kind, r.Nonce, r.EncryptedData)
		if err != nil {
			return nil, err
		}

		c := credentialFromRow(&r)
		c.Payload = p

		out = append(out, *c)
	}

	return out, nil
}

func credentialFromRow(r *vaultdb.CredentialRow) *Credential {
	c := &Credential{
		ID:            r.ID,
		IdentityID:    r.IdentityID,
		Name:          r.Name,
		Kind:          payload.Kind(r.Kind),
		SecurityLevel: SecurityLevel(r.SecurityLevel),
		URL:           r.URL.String,
		Username:      r.Username.String,
		Notes:         r.Notes.String,
		Tags:          decodeTags(r.Tags.String),
		Favorite:      r.Favorite,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if r.LastAccessed.Valid {
		t := r.LastAccessed.Time
		c.LastAccessed = &t
	}

	return c
}
