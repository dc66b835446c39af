package vault_test

import (
	"errors"
	"path/filepath"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ladzaretti/vaultagent/vault"
	"github.com/ladzaretti/vaultagent/vault/payload"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

func TestVault_InitializeAndUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	password := []byte("correct horse battery staple")

	vlt, err := vault.InitializeUser(t.Context(), path, password)
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}

	if vlt.Locked() {
		t.Fatal("expected vault to be unlocked after InitializeUser")
	}

	id, err := vlt.CreateIdentity(t.Context(), "github", vault.CategoryWork, "me@example.com", []string{"dev"}, nil)
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	credID, err := vlt.CreateCredential(t.Context(), vault.NewCredential{
		IdentityID:    id,
		Name:          "github token",
		SecurityLevel: vault.LevelHigh,
		Username:      "octocat",
		Payload: &payload.Password{
			Username: "octocat",
			Password: "s3cr3t",
		},
	})
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}

	if err := vlt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	vlt2, err := vault.Unlock(t.Context(), path, password)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	defer func() { _ = vlt2.Close() }()

	cred, err := vlt2.RevealCredential(t.Context(), credID)
	if err != nil {
		t.Fatalf("RevealCredential: %v", err)
	}

	pw, ok := cred.Payload.(*payload.Password)
	if !ok {
		t.Fatalf("payload type = %T, want *payload.Password", cred.Payload)
	}

	if got, want := pw.Password, "s3cr3t"; got != want {
		t.Errorf("password = %q, want %q", got, want)
	}
}

func TestVault_Unlock_WrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	vlt, err := vault.InitializeUser(t.Context(), path, []byte("right-password"))
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}

	if err := vlt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = vault.Unlock(t.Context(), path, []byte("wrong-password"))
	if err == nil {
		t.Fatal("expected error unlocking with the wrong password")
	}
}

func TestVault_InitializeUser_AlreadyInitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	password := []byte("correct horse battery staple")

	vlt, err := vault.InitializeUser(t.Context(), path, password)
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}

	if err := vlt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	vlt2, err := vault.Unlock(t.Context(), path, password)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	defer func() { _ = vlt2.Close() }()

	if _, err := vault.InitializeUser(t.Context(), path, password); err == nil {
		t.Fatal("expected ErrAlreadyInitialized on a second InitializeUser call")
	} else if !errors.Is(err, vaulterrors.ErrAlreadyInitialized) {
		t.Errorf("InitializeUser error = %v, want %v", err, vaulterrors.ErrAlreadyInitialized)
	}
}

func TestVault_Unlock_RateLimitedAfterThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	password := []byte("correct horse battery staple")

	vlt, err := vault.InitializeUser(t.Context(), path, password)
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}

	if err := vlt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for i := range 5 {
		_, err := vault.Unlock(t.Context(), path, []byte("wrong-password"))
		if !errors.Is(err, vaulterrors.ErrWrongPassword) {
			t.Fatalf("attempt %d: Unlock error = %v, want %v", i+1, err, vaulterrors.ErrWrongPassword)
		}
	}

	// The 6th attempt, even with the correct password, must be rejected by
	// the lockout rather than reach password verification.
	_, err = vault.Unlock(t.Context(), path, password)
	if !errors.Is(err, vaulterrors.ErrRateLimited) {
		t.Fatalf("Unlock with correct password during lockout = %v, want %v", err, vaulterrors.ErrRateLimited)
	}
}

func TestVault_SoftDeleteIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	vlt, err := vault.InitializeUser(t.Context(), path, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}
	defer func() { _ = vlt.Close() }()

	id, err := vlt.CreateIdentity(t.Context(), "throwaway", vault.CategoryPersonal, "", nil, nil)
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	if err := vlt.SoftDeleteIdentity(t.Context(), id); err != nil {
		t.Fatalf("SoftDeleteIdentity: %v", err)
	}

	got, err := vlt.GetIdentity(t.Context(), id)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}

	if got.Active {
		t.Error("expected identity to be inactive after SoftDeleteIdentity")
	}
}

func TestVault_ListIdentities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")

	vlt, err := vault.InitializeUser(t.Context(), path, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("InitializeUser: %v", err)
	}
	defer func() { _ = vlt.Close() }()

	if _, err := vlt.CreateIdentity(t.Context(), "alpha", vault.CategoryPersonal, "", []string{"a"}, nil); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	if _, err := vlt.CreateIdentity(t.Context(), "beta", vault.CategoryWork, "", []string{"b"}, nil); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}

	got, err := vlt.ListIdentities(t.Context())
	if err != nil {
		t.Fatalf("ListIdentities: %v", err)
	}

	want := []vault.Identity{
		{Name: "alpha", Category: vault.CategoryPersonal, Tags: []string{"a"}, Active: true},
		{Name: "beta", Category: vault.CategoryWork, Tags: []string{"b"}, Active: true},
	}

	opts := []gocmp.Option{
		cmpopts.IgnoreFields(vault.Identity{}, "ID", "Contact", "Attributes", "CreatedAt", "UpdatedAt"),
	}

	if diff := gocmp.Diff(want, got, opts...); diff != "" {
		t.Errorf("ListIdentities() mismatch (-want +got):\n%s", diff)
	}
}
