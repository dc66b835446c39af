// Package sshagent implements the vault-backed SSH agent: key hydration
// from ssh-key credentials, the OpenSSH agent wire protocol, and the
// signing pipeline (lookup, host resolution, policy, approval, rate limit,
// sign, audit).
package sshagent

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/ladzaretti/vaultagent/audit"
	"github.com/ladzaretti/vaultagent/internal/syncmap"
	"github.com/ladzaretti/vaultagent/sshagent/approval"
	"github.com/ladzaretti/vaultagent/sshagent/keytable"
	"github.com/ladzaretti/vaultagent/sshagent/policy"
	"github.com/ladzaretti/vaultagent/sshagent/ratelimit"
	"github.com/ladzaretti/vaultagent/vault"
	"github.com/ladzaretti/vaultagent/vault/payload"
	"github.com/ladzaretti/vaultagent/vaultcrypto"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

// Agent hydrates Ed25519 keys from a [vault.Vault] and services sign
// requests against them, subject to the policy enforcer, rate limiter, and
// approval collaborator.
type Agent struct {
	keys     *keytable.Table
	enforcer *policy.Enforcer
	limiter  *ratelimit.Limiter
	approver approval.Approver
	sink     *audit.Sink

	targetHost      string
	verifiedHosts   *syncmap.Map[string, bool]
	hostKeyCallback ssh.HostKeyCallback
}

// Config bundles an [Agent]'s collaborators. Approver and Sink may be nil,
// in which case approval always denies and audit entries are dropped
// silently.
type Config struct {
	Enforcer   *policy.Enforcer
	Limiter    *ratelimit.Limiter
	Approver   approval.Approver
	Sink       *audit.Sink
	TargetHost string
}

// New returns an [Agent] with an empty key table. Call [Agent.Hydrate] to
// populate it from an unlocked vault.
func New(cfg Config) *Agent {
	approver := cfg.Approver
	if approver == nil {
		approver = approval.AutoDeny{}
	}

	return &Agent{
		keys:          keytable.New(),
		enforcer:      cfg.Enforcer,
		limiter:       cfg.Limiter,
		approver:      approver,
		sink:          cfg.Sink,
		targetHost:    cfg.TargetHost,
		verifiedHosts: syncmap.New[string, bool](),
	}
}

// SetHostKeyCallback installs the known_hosts verifier used by
// [Agent.VerifyHost].
func (a *Agent) SetHostKeyCallback(cb ssh.HostKeyCallback) {
	a.hostKeyCallback = cb
}

// VerifyHost runs the known_hosts callback for host/key (port 22 when host
// carries no port) and, on success, marks host as verified for subsequent
// sign requests in this process.
func (a *Agent) VerifyHost(host string, key ssh.PublicKey) error {
	if a.hostKeyCallback == nil {
		return fmt.Errorf("sshagent: no known_hosts callback configured")
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	if err := a.hostKeyCallback(addr, &net.TCPAddr{}, key); err != nil {
		return err
	}

	a.verifiedHosts.Store(host, true)

	return nil
}

// MarkHostVerified records that host's key has already been confirmed
// trusted by some other means (e.g. the CLI prompted the user and they
// accepted it once).
func (a *Agent) MarkHostVerified(host string) {
	a.verifiedHosts.Store(host, true)
}

// Hydrate enumerates ssh-key credentials from vlt and loads each into the
// key table. Existing entries are cleared first, so Hydrate is also how an
// agent refreshes its view after vault mutations.
func (a *Agent) Hydrate(ctx context.Context, vlt *vault.Vault) error {
	a.keys.Clear()

	creds, err := vlt.CredentialsByKind(ctx, payload.KindSSHKey)
	if err != nil {
		return fmt.Errorf("sshagent: hydrate: %w", err)
	}

	for _, c := range creds {
		sk, ok := c.Payload.(*payload.SSHKey)
		if !ok {
			continue
		}

		pub, seed, err := derivePublicKey(sk.Seed)
		if err != nil {
			return fmt.Errorf("sshagent: hydrate: credential %s: %w", c.ID, err)
		}

		sshPub, err := ssh.NewPublicKey(pub)
		if err != nil {
			_ = seed.Close()
			return fmt.Errorf("sshagent: hydrate: credential %s: %w", c.ID, err)
		}

		a.keys.Put(&keytable.Entry{
			PublicKey:    sshPub,
			Comment:      sk.Comment,
			Seed:         seed,
			CredentialID: c.ID,
			IdentityID:   c.IdentityID,
		})
	}

	return nil
}

// Lock clears every hydrated key, zeroizing their seeds.
func (a *Agent) Lock() {
	a.keys.Clear()
}

// RemoveCredential evicts a single hydrated key by credential id, called
// when that credential is deleted from the vault while the agent is alive.
func (a *Agent) RemoveCredential(credentialID string) {
	a.keys.RemoveByCredentialID(credentialID)
}

// Identity is the wire-ready shape of one hydrated key, as returned by
// [Agent.Identities].
type Identity struct {
	Blob    []byte
	Comment string
}

// Identities lists every hydrated key's public blob and comment, for
// SSH_AGENTC_REQUEST_IDENTITIES.
func (a *Agent) Identities() []Identity {
	entries := a.keys.List()

	out := make([]Identity, 0, len(entries))
	for _, e := range entries {
		out = append(out, Identity{Blob: e.PublicKey.Marshal(), Comment: e.Comment})
	}

	return out
}

// Sign runs the signing pipeline for a SSH_AGENTC_SIGN_REQUEST against the
// key identified by keyBlob: lookup, host resolution, policy, approval,
// rate limit, sign, audit.
func (a *Agent) Sign(ctx context.Context, keyBlob, data []byte) ([]byte, error) {
	entry, ok := a.keys.Get(keyBlob)
	if !ok {
		a.audit(false, "", "", "sign", vaulterrors.DeniedUnknownKey, "no hydrated key for requested blob")
		return nil, &vaulterrors.PolicyDeniedError{Reason: vaulterrors.DeniedUnknownKey}
	}

	host := a.targetHost
	now := time.Now()

	outcome := a.enforcer.Evaluate(policy.Request{
		CredentialID: entry.CredentialID,
		KeyComment:   entry.Comment,
		TargetHost:   host,
	}, now)
	if !outcome.Allowed {
		a.audit(false, entry.IdentityID, entry.CredentialID, "sign", outcome.Reason, outcome.Detail)
		return nil, &vaulterrors.PolicyDeniedError{Reason: outcome.Reason, Detail: outcome.Detail}
	}

	if a.enforcer.KnownHostsRequired(host) {
		if verified, _ := a.verifiedHosts.Load(host); !verified {
			a.audit(false, entry.IdentityID, entry.CredentialID, "sign", vaulterrors.DeniedKnownHostMismatch, "host not verified against known_hosts")
			return nil, &vaulterrors.PolicyDeniedError{Reason: vaulterrors.DeniedKnownHostMismatch}
		}
	}

	if outcome.RequireConfirm || outcome.RequireBiometric {
		reason := fmt.Sprintf("sign request for key %q (host %q)", entry.Comment, host)

		decision, err := a.approver.Request(ctx, reason)
		if err != nil || decision != approval.Approved {
			a.audit(false, entry.IdentityID, entry.CredentialID, "sign", vaulterrors.DeniedConfirmDeclined, "")
			return nil, &vaulterrors.PolicyDeniedError{Reason: vaulterrors.DeniedConfirmDeclined}
		}
	}

	if a.limiter != nil {
		if reason := a.limiter.Allow(now, entry.CredentialID, host, outcome.RateLimit); reason != ratelimit.Allowed {
			a.audit(false, entry.IdentityID, entry.CredentialID, "sign", vaulterrors.DeniedRateLimited, "")
			return nil, &vaulterrors.PolicyDeniedError{Reason: vaulterrors.DeniedRateLimited}
		}
	}

	signer, err := vaultcrypto.NewEd25519Signer(entry.Seed.Bytes())
	if err != nil {
		return nil, &vaulterrors.SignError{Op: "new signer", Err: err}
	}
	defer signer.Close()

	sig, err := signer.Sign(data)
	if err != nil {
		return nil, &vaulterrors.SignError{Op: "sign", Err: err}
	}

	if a.limiter != nil {
		a.limiter.Record(now, entry.CredentialID, host, outcome.RateLimit)
	}

	a.audit(true, entry.IdentityID, entry.CredentialID, "sign", 0, "")

	return sig, nil
}

func (a *Agent) audit(success bool, identityID, credentialID, action string, reason vaulterrors.DeniedReason, detail string) {
	if a.sink == nil {
		return
	}

	msg := detail
	if !success && msg == "" {
		msg = reason.String()
	}

	a.sink.Record(audit.Entry{
		ActorIdentityID:   identityID,
		ActorCredentialID: credentialID,
		Action:            action,
		ResourceKind:      "ssh-key",
		ResourceID:        credentialID,
		OutcomeSuccess:    success,
		OutcomeMessage:    msg,
	})
}

// derivePublicKey rebuilds an Ed25519 public key from a vaulted seed and
// returns both it and a zeroizing container for the seed, for storage in
// the key table.
func derivePublicKey(seed []byte) (pub ed25519.PublicKey, secret *vaultcrypto.Secret, retErr error) {
	signer, err := vaultcrypto.NewEd25519Signer(seed)
	if err != nil {
		return nil, nil, err
	}
	defer signer.Close()

	pub = append(ed25519.PublicKey(nil), signer.PublicKey()...)
	secret = vaultcrypto.NewSecret(append([]byte(nil), seed...))

	return pub, secret, nil
}
