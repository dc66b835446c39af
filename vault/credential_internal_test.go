package vault

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ladzaretti/vaultagent/vault/payload"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

func TestRevealCredential_FlippedBitSurfacesIntegrityError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	vlt, err := InitializeUser(t.Context(), path, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}
	defer func() { _ = vlt.Close() }()

	identityID, err := vlt.CreateIdentity(t.Context(), "tampered", CategoryPersonal, "", nil, nil)
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	id, err := vlt.CreateCredential(t.Context(), NewCredential{
		IdentityID:    identityID,
		Name:          "flip-me",
		SecurityLevel: LevelMedium,
		Payload: &payload.Password{
			Username: "octocat",
			Password: "s3cr3t",
		},
	})
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	row, err := vlt.db.GetCredential(t.Context(), id)
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}

	flipped := append([]byte(nil), row.EncryptedData...)
	flipped[0] ^= 0xFF

	if _, err := vlt.db.UpdateCredentialPayload(t.Context(), id, row.Nonce, flipped); err != nil {
		t.Fatalf("UpdateCredentialPayload: %v", err)
	}

	_, err = vlt.RevealCredential(t.Context(), id)
	if err == nil {
		t.Fatal("expected RevealCredential to fail on tampered ciphertext")
	}

	var integrityErr *vaulterrors.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("RevealCredential error = %v (%T), want *vaulterrors.IntegrityError", err, err)
	}

	// the row must survive an integrity failure - it is not deleted.
	if _, err := vlt.db.GetCredential(t.Context(), id); err != nil {
		t.Errorf("GetCredential after integrity failure: %v, want row still present", err)
	}
}
