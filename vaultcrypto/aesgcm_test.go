package vaultcrypto_test

import (
	"bytes"
	"testing"

	"github.com/ladzaretti/vaultagent/vaultcrypto"
)

func key(t *testing.T) []byte {
	t.Helper()

	k, err := vaultcrypto.RandBytes(vaultcrypto.KeySize)
	if err != nil {
		t.Fatalf("rand bytes: %v", err)
	}

	return k
}

func TestAESGCM_RoundTrip(t *testing.T) {
	g, err := vaultcrypto.NewAESGCM(key(t))
	if err != nil {
		t.Fatalf("new aesgcm: %v", err)
	}

	nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)
	if err != nil {
		t.Fatalf("rand nonce: %v", err)
	}

	plaintext := []byte("s3cret payload")
	ad := []byte("credential-id:password")

	ciphertext, err := g.SealAD(nonce, plaintext, ad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := g.OpenAD(nonce, ciphertext, ad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plaintext)
	}
}

func TestAESGCM_WrongKeyFails(t *testing.T) {
	g1, _ := vaultcrypto.NewAESGCM(key(t))
	g2, _ := vaultcrypto.NewAESGCM(key(t))

	nonce, _ := vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)

	ciphertext, err := g1.Seal(nonce, []byte("data"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := g2.Open(nonce, ciphertext); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	} else if _, ok := asAuthErr(err); !ok {
		t.Fatalf("expected AuthenticationError, got %T: %v", err, err)
	}
}

func TestAESGCM_WrongADFails(t *testing.T) {
	g, _ := vaultcrypto.NewAESGCM(key(t))
	nonce, _ := vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)

	ciphertext, err := g.SealAD(nonce, []byte("data"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := g.OpenAD(nonce, ciphertext, []byte("aad-2")); err == nil {
		t.Fatal("expected authentication failure with mismatched associated data")
	}
}

func asAuthErr(err error) (*vaultcrypto.AuthenticationError, bool) {
	ae, ok := err.(*vaultcrypto.AuthenticationError) //nolint:errorlint
	return ae, ok
}

func TestAESGCM_NonceUniqueness(t *testing.T) {
	const n = 20000

	seen := make(map[string]struct{}, n)

	for range n {
		nonce, err := vaultcrypto.RandBytes(vaultcrypto.NonceSizeGCM)
		if err != nil {
			t.Fatalf("rand nonce: %v", err)
		}

		s := string(nonce)
		if _, dup := seen[s]; dup {
			t.Fatalf("nonce collision after %d draws", n)
		}

		seen[s] = struct{}{}
	}
}

func TestArgon2idKDF_Deterministic(t *testing.T) {
	salt, _ := vaultcrypto.RandBytes(vaultcrypto.SaltSize)
	salt2, _ := vaultcrypto.RandBytes(vaultcrypto.SaltSize)

	password := []byte("correcthorse")

	k1 := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt)).Derive(password)
	k2 := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt)).Derive(password)

	if !bytes.Equal(k1, k2) {
		t.Fatal("expected deterministic derivation for the same salt")
	}

	k3 := vaultcrypto.NewArgon2idKDF(vaultcrypto.WithSalt(salt2)).Derive(password)
	if bytes.Equal(k1, k3) {
		t.Fatal("expected different keys for different salts")
	}
}

func TestArgon2Params_Validate(t *testing.T) {
	ok := vaultcrypto.Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}

	weak := vaultcrypto.Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}
	if err := weak.Validate(); err == nil {
		t.Fatal("expected validation error for weak params")
	}
}

func TestEd25519Signer_SignVerify(t *testing.T) {
	seed := make([]byte, vaultcrypto.SeedSize)

	signer, err := vaultcrypto.NewEd25519Signer(seed)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	defer signer.Close()

	msg := []byte("hello")

	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !vaultcrypto.VerifyEd25519(signer.PublicKey(), msg, sig) {
		t.Fatal("expected signature to verify")
	}

	if vaultcrypto.VerifyEd25519(signer.PublicKey(), []byte("tampered"), sig) {
		t.Fatal("expected signature verification to fail for different message")
	}
}
