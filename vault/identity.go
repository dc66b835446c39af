package vault

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ladzaretti/vaultagent/vault/sqlite/vaultdb"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

// CreateIdentity inserts a new identity and returns its generated id.
func (vlt *Vault) CreateIdentity(ctx context.Context, name string, category IdentityCategory, contact string, tags []string, attrs map[string]string) (string, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return "", err
	}

	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return "", errf("create identity: %w", err)
	}

	attrsJSON, err := encodeAttributes(attrs)
	if err != nil {
		return "", errf("create identity: %w", err)
	}

	id := newID()

	if err := vlt.db.InsertIdentity(ctx, id, name, string(category), contact, tagsJSON, attrsJSON); err != nil {
		return "", errf("create identity: %w", err)
	}

	return id, nil
}

// GetIdentity returns the identity with the given id.
func (vlt *Vault) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return nil, err
	}

	row, err := vlt.db.GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaulterrors.NewStoreError(vaulterrors.KindNotFound, "identity", id, vaulterrors.ErrIdentityNotFound)
		}

		return nil, errf("get identity: %w", err)
	}

	return identityFromRow(row), nil
}

// ListIdentities returns every identity, ordered by name.
func (vlt *Vault) ListIdentities(ctx context.Context) ([]Identity, error) {
	if err := vlt.requireUnlocked(); err != nil {
		return nil, err
	}

	rows, err := vlt.db.ListIdentities(ctx)
	if err != nil {
		return nil, errf("list identities: %w", err)
	}

	out := make([]Identity, 0, len(rows))
	for _, r := range rows {
		out = append(out, *identityFromRow(&r))
	}

	return out, nil
}

// UpdateIdentity overwrites the mutable fields of an identity.
func (vlt *Vault) UpdateIdentity(ctx context.Context, id, name string, category IdentityCategory, contact string, tags []string, attrs map[string]string, active bool) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return errf("update identity: %w", err)
	}

	attrsJSON, err := encodeAttributes(attrs)
	if err != nil {
		return errf("update identity: %w", err)
	}

	n, err := vlt.db.UpdateIdentity(ctx, id, name, string(category), contact, tagsJSON, attrsJSON, active)
	if err != nil {
		return errf("update identity: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "identity", id, vaulterrors.ErrIdentityNotFound)
	}

	return nil
}

// SoftDeleteIdentity flips active=false without removing the row or its
// credentials (spec ǂ3: "soft-deleted via active=false").
func (vlt *Vault) SoftDeleteIdentity(ctx context.Context, id string) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	n, err := vlt.db.SetIdentityActive(ctx, id, false)
	if err != nil {
		return errf("soft delete identity: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "identity", id, vaulterrors.ErrIdentityNotFound)
	}

	return nil
}

// DeleteIdentity hard-deletes an identity and, via ON DELETE CASCADE, every
// credential it owns.
func (vlt *Vault) DeleteIdentity(ctx context.Context, id string) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	n, err := vlt.db.DeleteIdentity(ctx, id)
	if err != nil {
		return errf("delete identity: %w", err)
	}

	if n == 0 {
		return vaulterrors.NewStoreError(vaulterrors.KindNotFound, "identity", id, vaulterrors.ErrIdentityNotFound)
	}

	return nil
}

func identityFromRow(r *vaultdb.IdentityRow) *Identity {
	return &Identity{
		ID:         r.ID,
		Name:       r.Name,
		Category:   IdentityCategory(r.Category),
		Contact:    r.Contact.String,
		Tags:       decodeTags(r.Tags.String),
		Attributes: decodeAttributes(r.Attributes.String),
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
