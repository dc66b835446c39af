// Package vault implements the encrypted local-first identity and secret
// store: identities, typed credentials, master-password authentication with
// lockout backoff, and the two-layer AEAD model that protects them.
//
// The vault container database holds the authentication bootstrap row, the
// session table, and the append-only audit log in the clear (except for the
// cryptographic material itself). Nested inside it, under AES-256-GCM seal,
// lives a second, fully relational SQLite database - the inner vault - which
// holds identities and credentials. Each credential's payload is sealed a
// second time, individually, under the same data key, with the credential id
// and kind bound in as associated data so ciphertexts cannot be swapped
// between rows undetected.
package vault

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ladzaretti/vaultagent/vault/payload"
	"github.com/ladzaretti/vaultagent/vault/sqlite/vaultcontainer"
	"github.com/ladzaretti/vaultagent/vault/sqlite/vaultdb"
	"github.com/ladzaretti/vaultagent/vaultcrypto"
	"github.com/ladzaretti/vaultagent/vaulterrors"

	"github.com/google/uuid"
	"github.com/ladzaretti/migrate"

	// Package sqlite is a CGo-free port of SQLite/SQLite3.
	_ "modernc.org/sqlite"
)

const pragma = `
PRAGMA temp_store = MEMORY;
PRAGMA synchronous = EXTRA;
PRAGMA foreign_keys = ON;
`

// lockoutThreshold is the number of consecutive failed unlock attempts
// before backoff kicks in (spec ǂ4.2: "exponential backoff... after a
// threshold (5 attempts)").
const lockoutThreshold = 5

// baseLockoutDelay and maxLockoutDelay bound the exponential backoff: 5s
// doubling each additional failure, capped at 30 minutes.
const (
	baseLockoutDelay = 5 * time.Second
	maxLockoutDelay  = 30 * time.Minute
)

type cleanupFunc func() error

// Vault manages access to two related databases: the in-memory identity and
// credential store, and the on-disk vault container.
//
// The inner database is loaded entirely into memory and holds identities and
// credentials. It is serialized, sealed with AES-256-GCM, and persisted
// inside the vault container database's single user_auth row.
//
// A user-supplied master password is used to derive the data key via
// Argon2id. Vault is safe for concurrent use by multiple goroutines.
type Vault struct {
	Path            string
	aesgcm          *vaultcrypto.AESGCM
	decryptionNonce []byte
	conn            *sql.Conn
	db              *vaultdb.VaultDB
	buf             []byte
	containerHandle *vaultContainerHandle
	cleanupFuncs    []cleanupFunc
	closeOnce       sync.Once

	mu     sync.RWMutex
	locked bool

	seqMu  sync.Mutex
	lastSeq int64
}

type config struct {
	key, nonce []byte

	password          []byte
	containerSnapshot []byte
}

type Option func(*config)

// WithContainerSnapshot sets a snapshot to restore the vault container
// database from, obtained via [Vault.Serialize]. Used in tests.
func WithContainerSnapshot(snapshot []byte) Option {
	copied := make([]byte, len(snapshot))
	copy(copied, snapshot)

	return func(c *config) {
		c.containerSnapshot = copied
	}
}

// WithPassword sets the master password used to unlock the vault.
func WithPassword(p []byte) Option {
	return func(c *config) {
		c.password = p
	}
}

// WithSessionKey sets the AES-GCM key and nonce used for session-based
// unlocking, bypassing password verification entirely (used when a session
// token already proves recent authentication).
func WithSessionKey(key, nonce []byte) Option {
	return func(c *config) {
		c.key = key
		c.nonce = nonce
	}
}

func newVault(path string, nonce []byte, aesgcm *vaultcrypto.AESGCM, vch *vaultContainerHandle) *Vault {
	return &Vault{
		Path:            path,
		decryptionNonce: nonce,
		aesgcm:          aesgcm,
		containerHandle: vch,
	}
}

var (
	//go:embed db/migrations/sqlite/vault_container
	containerFS embed.FS

	vaultContainerMigrations = migrate.EmbeddedMigrations{
		FS:   containerFS,
		Path: "db/migrations/sqlite/vault_container",
	}

	//go:embed db/migrations/sqlite/vault
	vaultFS embed.FS

	vaultMigrations = migrate.EmbeddedMigrations{
		FS:   vaultFS,
		Path: "db/migrations/sqlite/vault",
	}
)

// InitializeUser creates the vault container database at path if needed,
// derives the master key hierarchy from password, and writes the singleton
// user_auth row. Fails with [vaulterrors.ErrAlreadyInitialized] if a
// user_auth row already exists.
//
// On success the returned [*Vault] is unlocked and ready for use.
func InitializeUser(ctx context.Context, path string, password []byte) (vlt *Vault, retErr error) {
	vch, err := newVaultContainerHandle(ctx, path, nil)
	if err != nil {
		return nil, errf("initialize user: failed to open vault container: %w", err)
	}
	defer func() { //nolint:wsl
		if retErr != nil {
			_ = vch.cleanup()
			_ = vlt.cleanup()

			return
		}
	}()

	if _, err := vch.db.SelectUserAuth(ctx); err == nil {
		return nil, vaulterrors.ErrAlreadyInitialized
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errf("initialize user: failed to check existing user_auth: %w", err)
	}

	cipherdata, err := newCipherData(password)
	if err != nil {
		return nil, errf("initialize user: failed to create cipher data: %w", err)
	}

	phc, err := vaultcrypto.DecodeAragon2idPHC(cipherdata.KDFPHC)
	if err != nil {
		return nil, errf("initialize user: failed to decode KDF PHC: %w", err)
	}

	aes, err := deriveAESGCM(phc, password)
	if err != nil {
		return nil, errf("initialize user: failed to derive AES-GCM key: %w", err)
	}

	vlt = newVault(path, cipherdata.Nonce, aes, vch)

	if err := vlt.open(ctx, nil); err != nil {
		return vlt, errf("initialize user: failed to open inner vault: %w", err)
	}

	nonce, ciphervault, err := vlt.sealedSnapshot(cipherdata.Nonce)
	if err != nil {
		return vlt, errf("initialize user: %w", err)
	}

	cipherdata.Nonce = nonce

	if err := vch.db.InsertNewUserAuth(ctx, cipherdata.AuthPHC, cipherdata.KDFPHC, cipherdata.Nonce, ciphervault); err != nil {
		return vlt, errf("initialize user: failed to insert user_auth row: %w", err)
	}

	vlt.locked = false

	return vlt, nil
}

// Unlock verifies the master password against the stored verifier and, on
// success, decrypts and loads the inner vault into memory.
//
// Failure increments the failed-attempt counter and, once lockoutThreshold
// is reached, sets locked_until using exponential backoff: 5s, 10s, 20s...
// capped at 30 minutes. While locked_until is in the future, Unlock fails
// immediately with [vaulterrors.ErrRateLimited] regardless of password
// correctness.
func Unlock(ctx context.Context, path string, password []byte, opts ...Option) (vlt *Vault, retErr error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(password) == 0 {
		password = cfg.password
	}

	vch, err := newVaultContainerHandle(ctx, path, cfg.containerSnapshot)
	if err != nil {
		return nil, errf("unlock: failed to open vault container: %w", err)
	}
	defer func() { //nolint:wsl
		if retErr != nil {
			_ = vch.cleanup()
			_ = vlt.cleanup()

			return
		}
	}()

	state, err := vch.db.SelectUserAuth(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errf("unlock: %w", vaulterrors.ErrVaultFileNotFound)
		}

		return nil, errf("unlock: failed to select user_auth: %w", err)
	}

	now := time.Now()
	if state.LockedUntil != nil && now.Before(*state.LockedUntil) {
		return nil, vaulterrors.ErrRateLimited
	}

	var (
		aes   *vaultcrypto.AESGCM
		nonce []byte
	)

	switch {
	case len(password) > 0:
		if err := verifyPassword(password, state.AuthPHC); err != nil {
			lockedUntil := nextLockoutDeadline(now, state.FailedAttempts+1)
			if recErr := vch.db.RecordFailedAttempt(ctx, lockedUntil); recErr != nil {
				return nil, errf("unlock: failed to record failed attempt: %w", errors.Join(err, recErr))
			}

			return nil, errf("unlock: %w", vaulterrors.ErrWrongPassword)
		}

		phc, err := vaultcrypto.DecodeAragon2idPHC(state.KDFPHC)
		if err != nil {
			return nil, errf("unlock: failed to decode KDF PHC: %w", err)
		}

		a, err := deriveAESGCM(phc, password)
		if err != nil {
			return nil, errf("unlock: failed to derive AES-GCM key: %w", err)
		}

		aes, nonce = a, state.Nonce
	case cfg.key != nil && cfg.nonce != nil:
		a, err := vaultcrypto.NewAESGCM(cfg.key)
		if err != nil {
			return nil, errf("unlock: failed to initialize AES-GCM cipher: %w", err)
		}

		aes, nonce = a, cfg.nonce
	default:
		return nil, errf("unlock: %w", vaulterrors.ErrEmptyPassword)
	}

	vlt = newVault(path, nonce, aes, vch)
	defer func() { //nolint:wsl
		if retErr != nil {
			_ = vlt.cleanup()
			return
		}
	}()

	if err := vlt.open(ctx, state.Vault); err != nil {
		return vlt, errf("unlock: failed to open inner vault: %w", err)
	}

	if err := vch.db.RecordSuccessfulAuth(ctx); err != nil {
		return vlt, errf("unlock: failed to record successful auth: %w", err)
	}

	vlt.locked = false

	return vlt, nil
}

// nextLockoutDeadline computes locked_until for the given 1-based failure
// count. Before lockoutThreshold failures there is no lockout.
func nextLockoutDeadline(now time.Time, failures int) time.Time {
	if failures < lockoutThreshold {
		return time.Time{}
	}

	shift := failures - lockoutThreshold
	delay := baseLockoutDelay << shift //nolint:gosec // shift is small and bounded below.

	if shift > 16 || delay > maxLockoutDelay || delay <= 0 {
		delay = maxLockoutDelay
	}

	return now.Add(delay)
}

// Container returns the underlying vault container database handle, for
// collaborators that need a durable store outside the in-memory identity
// and credential tables (e.g. the SSH agent's audit sink).
func (vlt *Vault) Container() *vaultcontainer.VaultContainer {
	return vlt.containerHandle.db
}

// Locked reports whether the vault's in-memory contents are currently
// inaccessible. A freshly [Unlock]ed or [InitializeUser]d Vault starts
// unlocked; [Vault.Lock] flips this to true.
func (vlt *Vault) Locked() bool {
	vlt.mu.RLock()
	defer vlt.mu.RUnlock()

	return vlt.locked
}

// Lock seals the current state and releases the in-memory database. It
// does not overwrite key material: the serialized buffer is dropped rather
// than wiped, and the AES-GCM cipher built from the data key stays
// referenced by the Vault. The [Vault] must be reopened via [Unlock] to use
// again; calling any data-access method after Lock returns
// [vaulterrors.ErrLocked].
func (vlt *Vault) Lock(ctx context.Context) error {
	vlt.mu.Lock()
	defer vlt.mu.Unlock()

	if vlt.locked {
		return nil
	}

	if _, err := vlt.sealLocked(ctx); err != nil {
		return errf("lock: %w", err)
	}

	vlt.locked = true

	return vlt.cleanup()
}

func (vlt *Vault) requireUnlocked() error {
	vlt.mu.RLock()
	defer vlt.mu.RUnlock()

	if vlt.locked {
		return vaulterrors.ErrLocked
	}

	return nil
}

// Close releases resources associated with the in-memory SQLite database
// and the vault container connection. Safe to call multiple times.
func (vlt *Vault) Close() (retErr error) {
	if vlt == nil {
		return nil
	}

	vlt.closeOnce.Do(func() {
		retErr = errors.Join(vlt.cleanup(), vlt.containerHandle.cleanup())
	})

	return retErr
}

// Vacuum reclaims unused space in the in-memory inner database, then seals
// the result back to the container.
func (vlt *Vault) Vacuum(ctx context.Context) error {
	if err := vlt.requireUnlocked(); err != nil {
		return err
	}

	if err := vlt.db.Vacuum(ctx); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}

	_, err := vlt.Seal(ctx)

	return err
}

// Seal serializes the in-memory inner vault, encrypts it with a fresh
// nonce, and persists the ciphertext to the container database. Every call
// writes, even when the content is unchanged since the last seal.
func (vlt *Vault) Seal(ctx context.Context) ([]byte, error) {
	vlt.mu.Lock()
	defer vlt.mu.Unlock()

	if vlt.locked {
		return nil, vaulterrors.ErrLocked
	}

	return vlt.sealLocked(ctx)
}

func (vlt *Vault) sealLocked(ctx context.Context) ([]byte, error) {
	nonce, ciphervault, err := vlt.sealedSnapshot(nil)
	if err != nil {
		return nil, errf("seal: %w", err)
	}

	if err := vlt.containerHandle.db.UpdateVault(ctx, nonce, ciphervault); err != nil {
		return nil, errf("seal: failed to update vault in container database: %w", err)
	}

	return nonce, nil
}

// sealedSnapshot serializes the in-memory database and seals it under a
// fresh random nonce (or, at initialization time, the nonce already chosen
// for the user_auth row).
func (vlt *Vault) sealedSnapshot(fixedNonce []byte) (nonce, ciphervault []byte, _ error) {
	serialized, err := Serialize(vlt.conn)
	if err != nil {
		return nil, nil, errf("failed to serialize inner vault: %w", err)
	}

	nonce = fixedNonce
	if nonce == nil {
		nonce, err = vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)
		if err != nil {
			return nil, nil, errf("failed to generate random nonce: %w", err)
		}
	}

	ciphervault, err = vlt.aesgcm.Seal(nonce, serialized)
	if err != nil {
		return nil, nil, errf("failed to seal serialized vault: %w", err)
	}

	return nonce, ciphervault, nil
}

// Serialize seals the current state and returns a full snapshot of the
// vault container database, including the sealed inner vault. Used to
// produce reusable fixtures for tests.
func (vlt *Vault) Serialize(ctx context.Context) ([]byte, error) {
	if _, err := vlt.Seal(ctx); err != nil {
		return nil, errf("serialize: %w", err)
	}

	return Serialize(vlt.containerHandle.conn)
}

func (vlt *Vault) cleanup() error {
	if vlt == nil {
		return nil
	}

	vlt.buf = nil

	if err := executeCleanup(vlt.cleanupFuncs); err != nil {
		return errf("cleanup: %w", err)
	}

	return nil
}

func verifyPassword(password []byte, phc string) error {
	authPHC, err := vaultcrypto.DecodeAragon2idPHC(phc)
	if err != nil {
		return errf("verify password: failed to decode auth PHC: %w", err)
	}

	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithPHC(authPHC))
	derived := kdf.Derive(password)

	if subtle.ConstantTimeCompare(authPHC.Hash, derived) != 1 {
		return vaulterrors.ErrWrongPassword
	}

	return nil
}

// RegisterCleanup registers f to run when the vault is closed via
// [Vault.Close] or [Vault.Lock], in reverse registration order (LIFO).
func (vlt *Vault) RegisterCleanup(f func() error) {
	vlt.cleanupFuncs = append(vlt.cleanupFuncs, f)
}

func executeCleanup(fs []cleanupFunc) error {
	var errs []error

	for i := len(fs) - 1; i >= 0; i-- {
		f := fs[i]
		if f == nil {
			continue
		}

		fs[i] = nil

		errs = append(errs, f())
	}

	return errors.Join(errs...)
}

// vaultContainerHandle manages the connection to the on-disk vault
// container database.
type vaultContainerHandle struct {
	conn         *sql.Conn
	db           *vaultcontainer.VaultContainer
	cleanupFuncs []cleanupFunc
}

func (h *vaultContainerHandle) cleanup() error {
	if h == nil {
		return nil
	}

	return executeCleanup(h.cleanupFuncs)
}

func newVaultContainerHandle(ctx context.Context, path string, containerSnapshot []byte) (_ *vaultContainerHandle, retErr error) {
	handle := &vaultContainerHandle{}
	defer func() { //nolint:wsl
		if retErr != nil {
			retErr = errors.Join(retErr, handle.cleanup())
			return
		}
	}()

	var (
		db   *sql.DB
		conn *sql.Conn
	)

	handle.cleanupFuncs = append(handle.cleanupFuncs, func() error {
		if conn != nil {
			return conn.Close()
		}

		if db != nil {
			return db.Close()
		}

		return nil
	})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errf("new vault container handle: failed to open database: %w", err)
	}

	conn, err = db.Conn(ctx)
	if err != nil {
		return nil, errf("new vault container handle: failed to get database connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, pragma); err != nil {
		return nil, err
	}

	if containerSnapshot != nil {
		if err := Deserialize(conn, containerSnapshot); err != nil {
			return nil, errf("new vault container handle: failed to deserialize snapshot: %w", err)
		}
	}

	m := migrate.New(db, migrate.SQLiteDialect{})

	if _, err := m.Apply(vaultContainerMigrations); err != nil {
		return nil, errf("new vault container handle: failed to apply migrations: %w", err)
	}

	handle.conn = conn
	handle.db = vaultcontainer.New(db)

	return handle, nil
}

// newCipherData generates the Argon2id-protected authentication verifier
// and the master-key salt for a freshly initialized vault.
func newCipherData(password []byte) (*vaultcontainer.CipherData, error) {
	authSalt, err := vaultcrypto.RandBytes(vaultcrypto.SaltSize)
	if err != nil {
		return nil, errf("new cipher data: failed to generate auth salt: %w", err)
	}

	authKDF := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(authSalt))
	authPHC := authKDF.PHC()
	authPHC.Hash = authKDF.Derive(password)

	dataKeySalt, err := vaultcrypto.RandBytes(vaultcrypto.SaltSize)
	if err != nil {
		return nil, errf("new cipher data: failed to generate data-key salt: %w", err)
	}

	dataKeyKDF := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(dataKeySalt))

	nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)
	if err != nil {
		return nil, errf("new cipher data: failed to generate nonce: %w", err)
	}

	return &vaultcontainer.CipherData{
		AuthPHC: authPHC.String(),
		KDFPHC:  dataKeyKDF.PHC().String(),
		Nonce:   nonce,
	}, nil
}

func (vlt *Vault) open(ctx context.Context, ciphervault []byte) (retErr error) {
	defer func() {
		if retErr != nil {
			retErr = errf("open: %w", retErr)
		}
	}()

	var (
		db   *sql.DB
		conn *sql.Conn
	)

	vlt.RegisterCleanup(func() error {
		if conn != nil {
			return conn.Close()
		}

		if db != nil {
			return db.Close()
		}

		return nil
	})

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return err
	}

	conn, err = db.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, pragma); err != nil {
		return err
	}

	if ciphervault != nil {
		decrypted, err := vlt.aesgcm.Open(vlt.decryptionNonce, ciphervault)
		if err != nil {
			return err
		}

		vlt.buf = decrypted

		if err := Deserialize(conn, vlt.buf); err != nil {
			return err
		}
	}

	m := migrate.New(conn, migrate.SQLiteDialect{})

	if _, err := m.Apply(vaultMigrations); err != nil {
		return err
	}

	vlt.conn = conn
	vlt.db = vaultdb.New(conn)

	return nil
}

func deriveAESGCM(phc vaultcrypto.Argon2idPHC, password []byte) (*vaultcrypto.AESGCM, error) {
	kdf := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithPHC(phc))

	key := kdf.Derive(password)

	aes, err := vaultcrypto.NewAESGCM(key)
	if err != nil {
		return nil, errf("derive AES-GCM: %w", err)
	}

	return aes, nil
}

func errf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// credentialAD builds the associated data binding a sealed credential
// payload to its row: credential id concatenated with kind, so a ciphertext
// copied into a different row (or under a different kind) fails to
// authenticate.
func credentialAD(id string, kind payload.Kind) []byte {
	return []byte(id + "\x00" + string(kind))
}

// encodeTags / decodeTags implement the plaintext-safe tags column as a
// JSON string array. Tags are not secret, so this uses the standard library
// rather than the vault's AEAD machinery.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func decodeTags(s string) []string {
	if s == "" {
		return nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}

	return tags
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "", nil
	}

	b, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func decodeAttributes(s string) map[string]string {
	if s == "" {
		return nil
	}

	var attrs map[string]string
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return nil
	}

	return attrs
}

func newID() string {
	return uuid.NewString()
}
