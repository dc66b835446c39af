// Package vaultcontainer provides access to the vault container database
// schema: the cryptographic bootstrap data (user_auth), the session table,
// and the append-only audit log. Unlike the inner [vaultdb] schema, this
// database is never itself encrypted as a blob - only individual columns
// (vault_encrypted, and each credential's encrypted_data once decrypted into
// memory) carry ciphertext.
package vaultcontainer

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 here is for change detection, not security.
	"database/sql"
	"time"

	"github.com/ladzaretti/vaultagent/vault/sqlite/types"
)

type VaultContainer struct {
	db types.DBTX
}

func New(db types.DBTX) *VaultContainer {
	return &VaultContainer{db: db}
}

// WithTx returns a new [VaultContainer] bound to the given transaction.
func (*VaultContainer) WithTx(tx *sql.Tx) *VaultContainer {
	return &VaultContainer{db: tx}
}

// CipherData is the cryptographic bootstrap material stored in the
// singleton user_auth row.
type CipherData struct {
	AuthPHC string
	KDFPHC  string
	Nonce   []byte
	Vault   []byte
}

// UserAuthState carries the mutable authentication bookkeeping alongside
// CipherData: failed-attempt counter and lockout expiry.
type UserAuthState struct {
	CipherData
	FailedAttempts int
	LockedUntil    *time.Time
	LastAuth       *time.Time
}

const insertUserAuth = `
	INSERT INTO
		user_auth (id, auth_phc, kdf_phc, nonce, vault_encrypted, checksum, updated_at)
	VALUES
		(0, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
`

// InsertNewUserAuth creates the singleton user_auth row. Fails with a
// UNIQUE/CHECK constraint error if a row already exists; callers should
// check existence first and surface [vaulterrors.ErrAlreadyInitialized].
func (vc *VaultContainer) InsertNewUserAuth(ctx context.Context, authPHC, kdfPHC string, nonce, ciphervault []byte) error {
	//nolint:gosec // change detection, not security.
	checksum := sha1.Sum(ciphervault)
	_, err := vc.db.ExecContext(ctx, insertUserAuth, authPHC, kdfPHC, nonce, ciphervault, checksum[:])

	return err
}

const updateVault = `
	UPDATE user_auth
	SET
		vault_encrypted = ?,
		nonce = ?,
		checksum = ?,
		updated_at = CURRENT_TIMESTAMP
	WHERE
		id = 0
		AND checksum <> ?
`

// UpdateVault persists a new sealed snapshot of the in-memory vault
// database and its nonce, skipping the write entirely if the checksum is
// unchanged since the last seal.
func (vc *VaultContainer) UpdateVault(ctx context.Context, nonce, ciphervault []byte) error {
	//nolint:gosec // change detection, not security.
	checksum := sha1.Sum(ciphervault)
	_, err := vc.db.ExecContext(ctx, updateVault, ciphervault, nonce, checksum[:], checksum[:])

	return err
}

const selectUserAuth = `
	SELECT
		auth_phc, kdf_phc, nonce, vault_encrypted,
		failed_attempts, locked_until, last_auth
	FROM
		user_auth
	WHERE
		id = 0
`

// SelectUserAuth returns the singleton user_auth row, or [sql.ErrNoRows] if
// the vault has never been initialized.
func (vc *VaultContainer) SelectUserAuth(ctx context.Context) (*UserAuthState, error) {
	row := vc.db.QueryRowContext(ctx, selectUserAuth)

	var s UserAuthState

	if err := row.Scan(
		&s.AuthPHC, &s.KDFPHC, &s.Nonce, &s.Vault,
		&s.FailedAttempts, &s.LockedUntil, &s.LastAuth,
	); err != nil {
		return nil, err
	}

	return &s, nil
}

const recordFailedAttempt = `
	UPDATE user_auth
	SET
		failed_attempts = failed_attempts + 1,
		locked_until = ?
	WHERE
		id = 0
`

// RecordFailedAttempt increments the failed-attempt counter and sets
// locked_until, implementing the exponential-backoff lockout policy.
func (vc *VaultContainer) RecordFailedAttempt(ctx context.Context, lockedUntil time.Time) error {
	_, err := vc.db.ExecContext(ctx, recordFailedAttempt, lockedUntil)
	return err
}

const recordSuccessfulAuth = `
	UPDATE user_auth
	SET
		failed_attempts = 0,
		locked_until = NULL,
		last_auth = CURRENT_TIMESTAMP
	WHERE
		id = 0
`

// RecordSuccessfulAuth resets the lockout counter and stamps last_auth.
func (vc *VaultContainer) RecordSuccessfulAuth(ctx context.Context) error {
	_, err := vc.db.ExecContext(ctx, recordSuccessfulAuth)
	return err
}

const insertAuditLog = `
	INSERT INTO
		audit_logs (
			seq, actor_identity_id, actor_credential_id,
			action, resource_kind, resource_id,
			outcome_success, outcome_message, metadata
		)
	VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// AuditEntry mirrors spec ǂ3's audit-entry shape.
type AuditEntry struct {
	Seq              int64
	ActorIdentityID  *string
	ActorCredentialID *string
	Action           string
	ResourceKind     string
	ResourceID       string
	OutcomeSuccess   bool
	OutcomeMessage   string
	Metadata         string // JSON-encoded, may be empty.
	CreatedAt        time.Time
}

// InsertAuditLog appends an immutable audit entry. Audit entries are never
// updated or deleted by application code.
func (vc *VaultContainer) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	_, err := vc.db.ExecContext(ctx, insertAuditLog,
		e.Seq, e.ActorIdentityID, e.ActorCredentialID,
		e.Action, e.ResourceKind, e.ResourceID,
		e.OutcomeSuccess, e.OutcomeMessage, e.Metadata,
	)

	return err
}

const incrementAuditDropCounter = `
	UPDATE audit_drop_counter SET dropped = dropped + 1 WHERE id = 0
`

// IncrementAuditDropCounter records that the bounded audit channel was full
// and an entry was dropped, per spec ǂ5 ("drops are themselves audited as a
// counter").
func (vc *VaultContainer) IncrementAuditDropCounter(ctx context.Context) error {
	_, err := vc.db.ExecContext(ctx, incrementAuditDropCounter)
	return err
}

const selectAuditLogs = `
	SELECT
		id, seq, actor_identity_id, actor_credential_id,
		action, resource_kind, resource_id,
		outcome_success, outcome_message, metadata, created_at
	FROM
		audit_logs
	ORDER BY
		created_at DESC, seq DESC
	LIMIT ?
`

type AuditRow struct {
	AuditEntry
	ID int64
}

// RecentAuditLogs returns the most recent limit audit entries, newest first.
func (vc *VaultContainer) RecentAuditLogs(ctx context.Context, limit int) ([]AuditRow, error) {
	rows, err := vc.db.QueryContext(ctx, selectAuditLogs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow

	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.ActorIdentityID, &r.ActorCredentialID,
			&r.Action, &r.ResourceKind, &r.ResourceID,
			&r.OutcomeSuccess, &r.OutcomeMessage, &r.Metadata, &r.CreatedAt,
		); err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

const insertSession = `
	INSERT INTO
		sessions (id, expires_at, permissions)
	VALUES
		(?, ?, ?)
`

// InsertSession persists a session handle for resume. Sessions in v1 are
// primarily in-memory; persistence is best-effort and optional per spec.
func (vc *VaultContainer) InsertSession(ctx context.Context, id string, expiresAt time.Time, permissions uint8) error {
	_, err := vc.db.ExecContext(ctx, insertSession, id, expiresAt, permissions)
	return err
}

const deleteSession = `DELETE FROM sessions WHERE id = ?`

func (vc *VaultContainer) DeleteSession(ctx context.Context, id string) error {
	_, err := vc.db.ExecContext(ctx, deleteSession, id)
	return err
}

const touchSession = `
	UPDATE sessions SET last_activity = CURRENT_TIMESTAMP WHERE id = ?
`

func (vc *VaultContainer) TouchSession(ctx context.Context, id string) error {
	_, err := vc.db.ExecContext(ctx, touchSession, id)
	return err
}

// Vacuum performs a VACUUM operation on the vault container database.
func (vc *VaultContainer) Vacuum(ctx context.Context) error {
	_, err := vc.db.ExecContext(ctx, "VACUUM")
	return err
}
