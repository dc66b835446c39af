package policy_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladzaretti/vaultagent/sshagent/policy"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

func TestEnforcer_Evaluate_GlobalDenyAll(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		Global: policy.GlobalConfig{DenyAll: true},
	})

	out := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "prod.example.com"}, time.Now())

	assert.False(t, out.Allowed)
	assert.Equal(t, vaulterrors.DeniedGlobalDenyAll, out.Reason)
}

func TestEnforcer_Evaluate_KeyDenyBeatsHostAllow(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{CredentialID: "cred-laptop", Enabled: true, Deny: true},
		},
		HostPolicies: []policy.HostPolicy{
			{Pattern: "prod.example.com", Enabled: true},
		},
	})

	out := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "prod.example.com"}, time.Now())

	require.False(t, out.Allowed)
	assert.Equal(t, vaulterrors.DeniedUnknownKey, out.Reason)
}

func TestEnforcer_Evaluate_KeyPolicyDisabledIsIgnored(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{CredentialID: "cred-laptop", Enabled: false, Deny: true},
		},
	})

	out := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "prod.example.com"}, time.Now())

	assert.True(t, out.Allowed, "a disabled key policy must not be matched")
}

func TestEnforcer_Evaluate_KeyRestrictedToAllowedHosts(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{CredentialID: "cred-deploy", Enabled: true, AllowedHosts: []string{"*.internal.example.com"}},
		},
	})

	denied := e.Evaluate(policy.Request{CredentialID: "cred-deploy", TargetHost: "prod.example.com"}, time.Now())
	assert.False(t, denied.Allowed)
	assert.Equal(t, vaulterrors.DeniedHostNotAllowed, denied.Reason)

	allowed := e.Evaluate(policy.Request{CredentialID: "cred-deploy", TargetHost: "db.internal.example.com"}, time.Now())
	assert.True(t, allowed.Allowed)
}

func TestEnforcer_Evaluate_KeyMatchedByCredentialIDNotComment(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{CredentialID: "cred-laptop", Enabled: true, Deny: true},
		},
	})

	// The comment "laptop" matches the credential's human label, but the
	// policy is keyed by credential id - a different id with the same
	// comment must not be denied.
	out := e.Evaluate(policy.Request{CredentialID: "cred-other", KeyComment: "laptop", TargetHost: "any"}, time.Now())
	assert.True(t, out.Allowed)

	out = e.Evaluate(policy.Request{CredentialID: "cred-laptop", KeyComment: "renamed", TargetHost: "any"}, time.Now())
	assert.False(t, out.Allowed)
}

func TestEnforcer_Evaluate_AllowedTimeRange(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{
				CredentialID:     "cred-laptop",
				Enabled:          true,
				AllowedTimeRange: policy.TimeRange{Start: "09:00", End: "17:00"},
			},
		},
	})

	inWindow := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2026, 1, 2, 22, 0, 0, 0, time.UTC)

	allowed := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "any"}, inWindow)
	assert.True(t, allowed.Allowed)

	denied := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "any"}, outOfWindow)
	assert.False(t, denied.Allowed)
	assert.Equal(t, vaulterrors.DeniedOutsideAllowedWindow, denied.Reason)
}

func TestEnforcer_Evaluate_RateLimitOverridesPropagate(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		KeyPolicies: []policy.KeyPolicy{
			{CredentialID: "cred-laptop", Enabled: true, MaxUsesPerWindow: 3, WindowSeconds: 60},
		},
		HostPolicies: []policy.HostPolicy{
			{Pattern: "prod.*", Enabled: true, MaxConnsPerWindow: 5, WindowSeconds: 120},
		},
	})

	out := e.Evaluate(policy.Request{CredentialID: "cred-laptop", TargetHost: "prod.example.com"}, time.Now())

	require.True(t, out.Allowed)
	assert.Equal(t, 3, out.RateLimit.KeyMax)
	assert.Equal(t, 60*time.Second, out.RateLimit.KeyWindow)
	assert.Equal(t, 5, out.RateLimit.HostMax)
	assert.Equal(t, 120*time.Second, out.RateLimit.HostWindow)
}

func TestEnforcer_Evaluate_RequireConfirmPropagates(t *testing.T) {
	tests := []struct {
		name string
		doc  *policy.Document
		req  policy.Request
		want bool
	}{
		{
			name: "global require_confirm",
			doc:  &policy.Document{Global: policy.GlobalConfig{RequireConfirm: true}},
			req:  policy.Request{CredentialID: "any", TargetHost: "any"},
			want: true,
		},
		{
			name: "key override",
			doc: &policy.Document{
				KeyPolicies: []policy.KeyPolicy{{CredentialID: "cred-prod", Enabled: true, RequireConfirm: true}},
			},
			req:  policy.Request{CredentialID: "cred-prod", TargetHost: "any"},
			want: true,
		},
		{
			name: "host override",
			doc: &policy.Document{
				HostPolicies: []policy.HostPolicy{{Pattern: "prod.*", Enabled: true, RequireConfirm: true}},
			},
			req:  policy.Request{CredentialID: "any", TargetHost: "prod.example.com"},
			want: true,
		},
		{
			name: "no match, no confirm",
			doc:  &policy.Document{},
			req:  policy.Request{CredentialID: "any", TargetHost: "any"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := policy.NewEnforcer(tt.doc).Evaluate(tt.req, time.Now())
			assert.Equal(t, tt.want, out.RequireConfirm)
		})
	}
}

func TestEnforcer_Evaluate_ConflictingHostPoliciesDenyWins(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		HostPolicies: []policy.HostPolicy{
			{Pattern: "*.example.com", Enabled: true, RequireConfirm: true},
			{Pattern: "prod.*", Enabled: true, Deny: true},
		},
	})

	out := e.Evaluate(policy.Request{CredentialID: "any", TargetHost: "prod.example.com"}, time.Now())

	require.False(t, out.Allowed)
	assert.Equal(t, vaulterrors.DeniedHostNotAllowed, out.Reason)
}

func TestEnforcer_KnownHostsRequired(t *testing.T) {
	e := policy.NewEnforcer(&policy.Document{
		HostPolicies: []policy.HostPolicy{
			{Pattern: "prod.*", Enabled: true, EnforceKnownHosts: true},
			{Pattern: "staging.*", Enabled: true},
		},
	})

	assert.True(t, e.KnownHostsRequired("prod.example.com"))
	assert.False(t, e.KnownHostsRequired("staging.example.com"))
	assert.False(t, e.KnownHostsRequired("unmatched.example.com"))
}

func TestLoad_MissingFileYieldsEmptyDocument(t *testing.T) {
	doc, err := policy.Load("")
	require.NoError(t, err)
	assert.Equal(t, &policy.Document{}, doc)

	doc, err = policy.Load("/nonexistent/path/policy.toml")
	require.NoError(t, err)
	assert.Equal(t, &policy.Document{}, doc)
}

func TestLoad_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	p := dir + "/policy.toml"

	require.NoError(t, os.WriteFile(p, []byte(`
[global]
require_confirm = true

[[key_policies]]
credential_id = "cred-laptop"
enabled = true
deny = true

[[host_policies]]
pattern = "prod.*"
enabled = true
deny = true
`), 0o600))

	doc, err := policy.Load(p)
	require.NoError(t, err)

	require.True(t, doc.Global.RequireConfirm)
	require.Len(t, doc.KeyPolicies, 1)
	assert.Equal(t, "cred-laptop", doc.KeyPolicies[0].CredentialID)
	assert.True(t, doc.KeyPolicies[0].Enabled)
	require.Len(t, doc.HostPolicies, 1)
	assert.Equal(t, "prod.*", doc.HostPolicies[0].Pattern)
	assert.True(t, doc.HostPolicies[0].Enabled)
}
