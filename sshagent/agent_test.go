package sshagent

import (
	"context"
	"crypto/ed25519"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ladzaretti/vaultagent/sshagent/keytable"
	"github.com/ladzaretti/vaultagent/sshagent/policy"
	"github.com/ladzaretti/vaultagent/sshagent/ratelimit"
	"github.com/ladzaretti/vaultagent/sshagent/wire"
	"github.com/ladzaretti/vaultagent/vaultcrypto"
)

// newTestAgent builds an [Agent] with a single hydrated key derived from a
// fixed seed byte, so the same key material is reproducible across a test.
func newTestAgent(t *testing.T, cfg Config, seed byte) (*Agent, ed25519.PublicKey, string) {
	t.Helper()

	seedBytes := make([]byte, vaultcrypto.SeedSize)
	for i := range seedBytes {
		seedBytes[i] = seed
	}

	signer, err := vaultcrypto.NewEd25519Signer(seedBytes)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	defer signer.Close()

	pub := append(ed25519.PublicKey(nil), signer.PublicKey()...)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	const credentialID = "cred-laptop"

	a := New(cfg)
	a.keys.Put(&keytable.Entry{
		PublicKey:    sshPub,
		Comment:      "laptop key",
		Seed:         vaultcrypto.NewSecret(append([]byte(nil), seedBytes...)),
		CredentialID: credentialID,
		IdentityID:   "identity-1",
	})

	return a, pub, credentialID
}

// serveTestAgent starts a.Serve over an in-memory pipe and returns the
// client side of the connection.
func serveTestAgent(ctx context.Context, t *testing.T, a *Agent) net.Conn {
	t.Helper()

	client, server := net.Pipe()

	go a.Serve(ctx, server)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func requestIdentities(t *testing.T, conn net.Conn) {
	t.Helper()

	if err := wire.WriteMessage(conn, wire.AgentRequestIdentities, nil); err != nil {
		t.Fatalf("WriteMessage(request identities): %v", err)
	}
}

func requestSign(t *testing.T, conn net.Conn, keyBlob, data []byte) {
	t.Helper()

	body := wire.PutString(nil, keyBlob)
	body = wire.PutString(body, data)
	body = wire.PutUint32(body, 0)

	if err := wire.WriteMessage(conn, wire.AgentSignRequest, body); err != nil {
		t.Fatalf("WriteMessage(sign request): %v", err)
	}
}

func TestAgent_Identities(t *testing.T) {
	cfg := Config{Enforcer: policy.NewEnforcer(&policy.Document{}), TargetHost: "example.com"}
	a, pub, _ := newTestAgent(t, cfg, 0x01)

	conn := serveTestAgent(t.Context(), t, a)

	requestIdentities(t, conn)

	msgType, payload, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if msgType != wire.AgentIdentitiesAnswer {
		t.Fatalf("msgType = %d, want AgentIdentitiesAnswer", msgType)
	}

	count, rest, err := wire.TakeUint32(payload)
	if err != nil {
		t.Fatalf("TakeUint32: %v", err)
	}

	if count != 1 {
		t.Fatalf("identity count = %d, want 1", count)
	}

	blob, rest, err := wire.TakeString(rest)
	if err != nil {
		t.Fatalf("TakeString(blob): %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	if string(blob) != string(sshPub.Marshal()) {
		t.Error("returned identity blob does not match the hydrated key")
	}

	comment, _, err := wire.TakeString(rest)
	if err != nil {
		t.Fatalf("TakeString(comment): %v", err)
	}

	if string(comment) != "laptop key" {
		t.Errorf("comment = %q, want %q", comment, "laptop key")
	}
}

func TestAgent_Sign_AllowedAndVerifies(t *testing.T) {
	cfg := Config{Enforcer: policy.NewEnforcer(&policy.Document{}), TargetHost: "example.com"}
	a, pub, _ := newTestAgent(t, cfg, 0x02)

	conn := serveTestAgent(t.Context(), t, a)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	data := []byte("sign me")
	requestSign(t, conn, sshPub.Marshal(), data)

	msgType, payload, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if msgType != wire.AgentSignResponse {
		t.Fatalf("msgType = %d, want AgentSignResponse", msgType)
	}

	sigBlob, _, err := wire.TakeString(payload)
	if err != nil {
		t.Fatalf("TakeString(sigBlob): %v", err)
	}

	format, rest, err := wire.TakeString(sigBlob)
	if err != nil {
		t.Fatalf("TakeString(format): %v", err)
	}

	if string(format) != "ssh-ed25519" {
		t.Errorf("signature format = %q, want ssh-ed25519", format)
	}

	sig, _, err := wire.TakeString(rest)
	if err != nil {
		t.Fatalf("TakeString(sig): %v", err)
	}

	if !ed25519.Verify(pub, data, sig) {
		t.Error("returned signature does not verify under the hydrated public key")
	}
}

func TestAgent_Sign_DeniedByHostPolicy(t *testing.T) {
	enforcer := policy.NewEnforcer(&policy.Document{
		HostPolicies: []policy.HostPolicy{
			{Pattern: "evil.example.com", Enabled: true, Deny: true},
		},
	})

	cfg := Config{Enforcer: enforcer, TargetHost: "evil.example.com"}
	a, pub, _ := newTestAgent(t, cfg, 0x03)

	conn := serveTestAgent(t.Context(), t, a)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	requestSign(t, conn, sshPub.Marshal(), []byte("sign me"))

	msgType, _, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if msgType != wire.AgentFailure {
		t.Fatalf("msgType = %d, want AgentFailure", msgType)
	}
}

func TestAgent_Sign_DeniedByRateLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{KeyWindow: time.Minute, KeyMaxUses: 1})

	cfg := Config{
		Enforcer:   policy.NewEnforcer(&policy.Document{}),
		Limiter:    limiter,
		TargetHost: "example.com",
	}
	a, pub, _ := newTestAgent(t, cfg, 0x04)

	conn := serveTestAgent(t.Context(), t, a)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	requestSign(t, conn, sshPub.Marshal(), []byte("first"))

	msgType, _, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage (first): %v", err)
	}

	if msgType != wire.AgentSignResponse {
		t.Fatalf("first sign msgType = %d, want AgentSignResponse", msgType)
	}

	requestSign(t, conn, sshPub.Marshal(), []byte("second"))

	msgType, _, err = wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage (second): %v", err)
	}

	if msgType != wire.AgentFailure {
		t.Fatalf("second sign msgType = %d, want AgentFailure (rate limited)", msgType)
	}
}

func TestAgent_RemoveCredential_EvictsKey(t *testing.T) {
	cfg := Config{Enforcer: policy.NewEnforcer(&policy.Document{}), TargetHost: "example.com"}
	a, pub, credentialID := newTestAgent(t, cfg, 0x05)

	conn := serveTestAgent(t.Context(), t, a)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("ssh.NewPublicKey: %v", err)
	}

	requestSign(t, conn, sshPub.Marshal(), []byte("before removal"))

	msgType, _, err := wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage (before removal): %v", err)
	}

	if msgType != wire.AgentSignResponse {
		t.Fatalf("msgType before removal = %d, want AgentSignResponse", msgType)
	}

	a.RemoveCredential(credentialID)

	requestSign(t, conn, sshPub.Marshal(), []byte("after removal"))

	msgType, _, err = wire.ReadMessage(conn)
	if err != nil {
		t.Fatalf("ReadMessage (after removal): %v", err)
	}

	if msgType != wire.AgentFailure {
		t.Fatalf("msgType after RemoveCredential = %d, want AgentFailure", msgType)
	}
}
