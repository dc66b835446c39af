// Package vaultdb provides access to the inner vault database: identities,
// credentials, and workspaces. It performs no cryptographic operations - the
// nonce and encrypted_data columns are opaque blobs as far as this package
// is concerned.
package vaultdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ladzaretti/vaultagent/vault/sqlite/types"
)

type VaultDB struct {
	db types.DBTX
}

func New(db types.DBTX) *VaultDB {
	return &VaultDB{db: db}
}

// WithTx returns a new [VaultDB] bound to the given transaction.
func (*VaultDB) WithTx(tx *sql.Tx) *VaultDB {
	return &VaultDB{db: tx}
}

// DefaultWorkspaceID is the id of the single implicit workspace every
// identity belongs to in v1 (see SPEC_FULL.md ǂ3).
const DefaultWorkspaceID = "00000000-0000-0000-0000-000000000000"

// IdentityRow is the raw, untyped row shape returned by the identities
// table. The vault service maps Category to its typed enum.
type IdentityRow struct {
	ID          string
	WorkspaceID string
	Name        string
	Category    string
	Contact     sql.NullString
	Tags        sql.NullString
	Attributes  sql.NullString
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const insertIdentity = `
	INSERT INTO
		identities (id, workspace_id, name, category, contact, tags, attributes)
	VALUES
		(?, ?, ?, ?, ?, ?, ?)
`

func (v *VaultDB) InsertIdentity(ctx context.Context, id, name, category string, contact, tags, attributes string) error {
	_, err := v.db.ExecContext(ctx, insertIdentity, id, DefaultWorkspaceID, name, category, contact, tags, attributes)
	return err
}

const updateIdentity = `
	UPDATE identities
	SET
		name = ?, category = ?, contact = ?, tags = ?, attributes = ?, active = ?,
		updated_at = CURRENT_TIMESTAMP
	WHERE
		id = ?
`

func (v *VaultDB) UpdateIdentity(ctx context.Context, id, name, category, contact, tags, attributes string, active bool) (int64, error) {
	res, err := v.db.ExecContext(ctx, updateIdentity, name, category, contact, tags, attributes, active, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

const setIdentityActive = `
	UPDATE identities SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
`

// SetIdentityActive implements the soft-delete half of identity deletion
// (spec ǂ3: "soft-deleted via active=false").
func (v *VaultDB) SetIdentityActive(ctx context.Context, id string, active bool) (int64, error) {
	res, err := v.db.ExecContext(ctx, setIdentityActive, active, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

const selectIdentity = `
	SELECT id, workspace_id, name, category, contact, tags, attributes, active, created_at, updated_at
	FROM identities
	WHERE id = ?
`

func (v *VaultDB) GetIdentity(ctx context.Context, id string) (*IdentityRow, error) {
	row := v.db.QueryRowContext(ctx, selectIdentity, id)

	var r IdentityRow
	if err := row.Scan(&r.ID, &r.WorkspaceID, &r.Name, &r.Category, &r.Contact, &r.Tags, &r.Attributes, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

const listIdentities = `
	SELECT id, workspace_id, name, category, contact, tags, attributes, active, created_at, updated_at
	FROM identities
	ORDER BY name ASC, id ASC
`

func (v *VaultDB) ListIdentities(ctx context.Context) ([]IdentityRow, error) {
	rows, err := v.db.QueryContext(ctx, listIdentities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IdentityRow

	for rows.Next() {
		var r IdentityRow
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Name, &r.Category, &r.Contact, &r.Tags, &r.Attributes, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

const deleteIdentity = `DELETE FROM identities WHERE id = ?`

// DeleteIdentity hard-deletes the identity; foreign_keys=ON cascades the
// delete to its credentials (spec ǂ3: "hard-deleted (cascades to its
// credentials)").
func (v *VaultDB) DeleteIdentity(ctx context.Context, id string) (int64, error) {
	res, err := v.db.ExecContext(ctx, deleteIdentity, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// CredentialRow is the raw row shape for the credentials table.
type CredentialRow struct {
	ID             string
	IdentityID     string
	Name           string
	Kind           string
	SecurityLevel  string
	URL            sql.NullString
	Username       sql.NullString
	Notes          sql.NullString
	Tags           sql.NullString
	Nonce          []byte
	EncryptedData  []byte
	Favorite       bool
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessed   sql.NullTime
}

const insertCredential = `
	INSERT INTO
		credentials (
			id, identity_id, name, kind, security_level,
			url, username, notes, tags, nonce, encrypted_data
		)
	VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type NewCredential struct {
	ID            string
	IdentityID    string
	Name          string
	Kind          string
	SecurityLevel string
	URL           string
	Username      string
	Notes         string
	Tags          string
	Nonce         []byte
	EncryptedData []byte
}

func (v *VaultDB) InsertCredential(ctx context.Context, c NewCredential) error {
	_, err := v.db.ExecContext(ctx, insertCredential,
		c.ID, c.IdentityID, c.Name, c.Kind, c.SecurityLevel,
		c.URL, c.Username, c.Notes, c.Tags, c.Nonce, c.EncryptedData,
	)

	return err
}

const updateCredentialPayload = `
	UPDATE credentials
	SET nonce = ?, encrypted_data = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
`

func (v *VaultDB) UpdateCredentialPayload(ctx context.Context, id string, nonce, encryptedData []byte) (int64, error) {
	res, err := v.db.ExecContext(ctx, updateCredentialPayload, nonce, encryptedData, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

const updateCredentialMetadata = `
	UPDATE credentials
	SET name = ?, url = ?, username = ?, notes = ?, tags = ?, favorite = ?, active = ?,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
`

func (v *VaultDB) UpdateCredentialMetadata(ctx context.Context, id, name, url, username, notes, tags string, favorite, active bool) (int64, error) {
	res, err := v.db.ExecContext(ctx, updateCredentialMetadata, name, url, username, notes, tags, favorite, active, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

const selectCredential = `
	SELECT id, identity_id, name, kind, security_level, url, username, notes, tags,
		nonce, encrypted_data, favorite, active, created_at, updated_at, last_accessed
	FROM credentials
	WHERE id = ?
`

func (v *VaultDB) GetCredential(ctx context.Context, id string) (*CredentialRow, error) {
	row := v.db.QueryRowContext(ctx, selectCredential, id)
	return scanCredential(row)
}

func scanCredential(row *sql.Row) (*CredentialRow, error) {
	var r CredentialRow
	if err := row.Scan(
		&r.ID, &r.IdentityID, &r.Name, &r.Kind, &r.SecurityLevel,
		&r.URL, &r.Username, &r.Notes, &r.Tags,
		&r.Nonce, &r.EncryptedData, &r.Favorite, &r.Active,
		&r.CreatedAt, &r.UpdatedAt, &r.LastAccessed,
	); err != nil {
		return nil, err
	}

	return &r, nil
}

const touchLastAccessed = `
	UPDATE credentials SET last_accessed = CURRENT_TIMESTAMP WHERE id = ?
`

// TouchLastAccessed is called on every reveal, backing the search ordering
// rule (last-accessed descending, name ascending, id ascending).
func (v *VaultDB) TouchLastAccessed(ctx context.Context, id string) error {
	_, err := v.db.ExecContext(ctx, touchLastAccessed, id)
	return err
}

const deleteCredential = `DELETE FROM credentials WHERE id = ?`

func (v *VaultDB) DeleteCredential(ctx context.Context, id string) (int64, error) {
	res, err := v.db.ExecContext(ctx, deleteCredential, id)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// ListCredentialsByIdentity returns every credential owned by identityID,
// including the ones whose kind the caller may not care about (e.g. used
// during SSH-agent key hydration to find kind='ssh-key' rows across all
// identities via [VaultDB.ListCredentialsByKind] instead).
func (v *VaultDB) ListCredentialsByIdentity(ctx context.Context, identityID string) ([]CredentialRow, error) {
	const q = `
		SELECT id, identity_id, name, kind, security_level, url, username, notes, tags,
			nonce, encrypted_data, favorite, active, created_at, updated_at, last_accessed
		FROM credentials
		WHERE identity_id = ?
		ORDER BY last_accessed DESC, name ASC, id ASC
	`

	return v.queryCredentials(ctx, q, identityID)
}

// ListCredentialsByKind returns every active credential of the given kind
// across all identities, used by the SSH agent to hydrate its key table.
func (v *VaultDB) ListCredentialsByKind(ctx context.Context, kind string) ([]CredentialRow, error) {
	const q = `
		SELECT id, identity_id, name, kind, security_level, url, username, notes, tags,
			nonce, encrypted_data, favorite, active, created_at, updated_at, last_accessed
		FROM credentials
		WHERE kind = ? AND active = 1
		ORDER BY name ASC, id ASC
	`

	return v.queryCredentials(ctx, q, kind)
}

// Filters describes a credential search per spec ǂ4.2: case-insensitive
// substring match on name/url/username/tags.
type Filters struct {
	Wildcard   string
	IdentityID string
	Kind       string
	Favorite   *bool
}

// SearchCredentials returns credentials matching filters, ordered by
// last-accessed descending, then name ascending, ties broken by id - the
// deterministic ordering spec ǂ4.2 and testable property 9 require.
func (v *VaultDB) SearchCredentials(ctx context.Context, f Filters) ([]CredentialRow, error) {
	var (
		where []string
		args  []any
	)

	if f.Wildcard != "" {
		like := "%" + strings.ToLower(f.Wildcard) + "%"
		where = append(where, `(
			LOWER(name) LIKE ? OR
			LOWER(COALESCE(url, '')) LIKE ? OR
			LOWER(COALESCE(username, '')) LIKE ? OR
			LOWER(COALESCE(tags, '')) LIKE ?
		)`)
		args = append(args, like, like, like, like)
	}

	if f.IdentityID != "" {
		where = append(where, "identity_id = ?")
		args = append(args, f.IdentityID)
	}

	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	if f.Favorite != nil {
		where = append(where, "favorite = ?")
		args = append(args, *f.Favorite)
	}

	where = append(where, "active = 1")

	q := fmt.Sprintf(`
		SELECT id, identity_id, name, kind, security_level, url, username, notes, tags,
			nonce, encrypted_data, favorite, active, created_at, updated_at, last_accessed
		FROM credentials
		WHERE %s
		ORDER BY last_accessed DESC, name ASC, id ASC
	`, strings.Join(where, " AND "))

	return v.queryCredentials(ctx, q, args...)
}

func (v *VaultDB) queryCredentials(ctx context.Context, query string, args ...any) ([]CredentialRow, error) {
	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CredentialRow

	for rows.Next() {
		var r CredentialRow
		if err := rows.Scan(
			&r.ID, &r.IdentityID, &r.Name, &r.Kind, &r.SecurityLevel,
			&r.URL, &r.Username, &r.Notes, &r.Tags,
			&r.Nonce, &r.EncryptedData, &r.Favorite, &r.Active,
			&r.CreatedAt, &r.UpdatedAt, &r.LastAccessed,
		); err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// Vacuum performs a VACUUM operation on the vault database.
func (v *VaultDB) Vacuum(ctx context.Context) error {
	_, err := v.db.ExecContext(ctx, "VACUUM")
	return err
}
