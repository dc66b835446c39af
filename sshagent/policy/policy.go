// Package policy implements the SSH agent's layered policy document:
// global defaults, per-key overrides, and per-host allow/deny rules, parsed
// from a TOML file in the same typed-struct-with-comments style the
// teacher's CLI config loader uses.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ladzaretti/vaultagent/sshagent/ratelimit"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

// Document is the full structure of a policy file.
//
//nolint:tagalign
type Document struct {
	Global       GlobalConfig `toml:"global" comment:"Defaults applied when no key or host rule overrides them"`
	KeyPolicies  []KeyPolicy  `toml:"key_policies"`
	HostPolicies []HostPolicy `toml:"host_policies"`
}

// GlobalConfig holds the fallback policy applied when no key_policies or
// host_policies entry matches.
//
//nolint:tagalign
type GlobalConfig struct {
	DenyAll        bool `toml:"deny_all,commented" comment:"If true, every sign request is denied regardless of other rules"`
	RequireConfirm bool `toml:"require_confirm,commented" comment:"Require interactive confirmation for every sign request"`
	MinIntervalMS  int  `toml:"min_interval_ms,commented" comment:"Minimum milliseconds between any two successful signatures"`
}

// TimeRange is a daily allowed window in 24-hour "HH:MM" clock time. A
// window that wraps past midnight (Start > End) spans the night, e.g.
// 22:00-06:00. The zero value matches any time.
//
//nolint:tagalign
type TimeRange struct {
	Start string `toml:"start,commented" comment:"Allowed window start, HH:MM (24h)"`
	End   string `toml:"end,commented" comment:"Allowed window end, HH:MM (24h)"`
}

func (tr TimeRange) set() bool {
	return tr.Start != "" || tr.End != ""
}

// contains reports whether now falls inside tr. An unset range always
// contains now. A malformed range fails closed, matching the "deny wins"
// posture the rest of this package uses.
func (tr TimeRange) contains(now time.Time) bool {
	if !tr.set() {
		return true
	}

	start, err1 := time.Parse("15:04", tr.Start)
	end, err2 := time.Parse("15:04", tr.End)

	if err1 != nil || err2 != nil {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()

	if s <= e {
		return cur >= s && cur <= e
	}

	return cur >= s || cur <= e
}

// KeyPolicy overrides policy for a single key, matched by the owning
// credential's id (spec.md §3: "key-policies (keyed by credential id)").
// A rule with Enabled false never matches.
//
//nolint:tagalign
type KeyPolicy struct {
	CredentialID     string    `toml:"credential_id"`
	Enabled          bool      `toml:"enabled,commented" comment:"Rule only applies when true"`
	Deny             bool      `toml:"deny,commented" comment:"Unconditionally deny this key"`
	AllowedHosts     []string  `toml:"allowed_hosts,commented" comment:"Glob patterns; if set, only these hosts may use this key"`
	RequireConfirm   bool      `toml:"require_confirm,commented"`
	RequireBiometric bool      `toml:"require_biometric,commented"`
	AllowedTimeRange TimeRange `toml:"allowed_time_range,commented"`
	MaxUsesPerWindow int       `toml:"max_uses_per_window,commented"`
	WindowSeconds    int       `toml:"window_seconds,commented"`
}

// HostPolicy overrides policy for a target host, matched by glob pattern.
// A rule with Enabled false never matches.
//
//nolint:tagalign
type HostPolicy struct {
	Pattern           string    `toml:"pattern"`
	Enabled           bool      `toml:"enabled,commented" comment:"Rule only applies when true"`
	Deny              bool      `toml:"deny,commented"`
	RequireConfirm    bool      `toml:"require_confirm,commented"`
	EnforceKnownHosts bool      `toml:"enforce_known_hosts,commented"`
	AllowedTimeRange  TimeRange `toml:"allowed_time_range,commented"`
	MaxConnsPerWindow int       `toml:"max_conns_per_window,commented"`
	WindowSeconds     int       `toml:"window_seconds,commented"`
}

// Load parses a policy document from path. A missing file is not an error;
// it yields an empty [Document] (global default-allow).
func Load(p string) (*Document, error) {
	if p == "" {
		return &Document{}, nil
	}

	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Document{}, nil
		}

		return nil, fmt.Errorf("policy: read file: %w", err)
	}

	var doc Document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse file: %w", err)
	}

	return &doc, nil
}

// Request describes the single sign request the enforcer evaluates.
type Request struct {
	CredentialID string
	KeyComment   string // human-readable label, used only in audit details.
	TargetHost   string
}

// Enforcer evaluates sign requests against a [Document] with the
// precedence spec.md requires: explicit deny beats an allow-list match,
// which beats a confirm/biometric requirement, which beats default allow.
// Conflicting host policies resolve by deny winning (last-evaluated-deny
// short-circuits).
type Enforcer struct {
	doc *Document
}

// NewEnforcer returns an [Enforcer] evaluating against doc.
func NewEnforcer(doc *Document) *Enforcer {
	return &Enforcer{doc: doc}
}

// Outcome is the result of evaluating a [Request].
type Outcome struct {
	Allowed          bool
	RequireConfirm   bool
	RequireBiometric bool
	Reason           vaulterrors.DeniedReason
	Detail           string

	// RateLimit carries the matched key/host policy's per-rule rate-limit
	// overrides, if any, for the caller to pass into [ratelimit.Limiter].
	RateLimit ratelimit.Thresholds
}

// Evaluate applies the policy precedence rules to req at time now.
func (e *Enforcer) Evaluate(req Request, now time.Time) Outcome {
	if e.doc.Global.DenyAll {
		return deny(vaulterrors.DeniedGlobalDenyAll, "global deny_all is set")
	}

	keyPolicy, hasKeyPolicy := e.matchKeyPolicy(req.CredentialID)
	hostPolicy, hasHostPolicy := e.matchHostPolicy(req.TargetHost)

	// Explicit deny beats everything else, host evaluated last so a host
	// deny always wins over a conflicting key allow.
	if hasKeyPolicy && keyPolicy.Deny {
		return deny(vaulterrors.DeniedUnknownKey, "key policy denies "+req.KeyComment)
	}

	if hasHostPolicy && hostPolicy.Deny {
		return deny(vaulterrors.DeniedHostNotAllowed, "host policy denies "+req.TargetHost)
	}

	// Allow-list: a key restricted to specific hosts must match one.
	if hasKeyPolicy && len(keyPolicy.AllowedHosts) > 0 {
		if !matchesAnyGlob(keyPolicy.AllowedHosts, req.TargetHost) {
			return deny(vaulterrors.DeniedHostNotAllowed, fmt.Sprintf("host %q not in key's allowed_hosts", req.TargetHost))
		}
	}

	if hasKeyPolicy && !keyPolicy.AllowedTimeRange.contains(now) {
		return deny(vaulterrors.DeniedOutsideAllowedWindow, "key policy's allowed_time_range does not cover the current time")
	}

	if hasHostPolicy && !hostPolicy.AllowedTimeRange.contains(now) {
		return deny(vaulterrors.DeniedOutsideAllowedWindow, "host policy's allowed_time_range does not cover the current time")
	}

	out := Outcome{Allowed: true}

	if (hasKeyPolicy && keyPolicy.RequireConfirm) || (hasHostPolicy && hostPolicy.RequireConfirm) || e.doc.Global.RequireConfirm {
		out.RequireConfirm = true
	}

	if hasKeyPolicy && keyPolicy.RequireBiometric {
		out.RequireBiometric = true
	}

	if hasKeyPolicy && keyPolicy.MaxUsesPerWindow > 0 {
		out.RateLimit.KeyMax = keyPolicy.MaxUsesPerWindow
		out.RateLimit.KeyWindow = time.Duration(keyPolicy.WindowSeconds) * time.Second
	}

	if hasHostPolicy && hostPolicy.MaxConnsPerWindow > 0 {
		out.RateLimit.HostMax = hostPolicy.MaxConnsPerWindow
		out.RateLimit.HostWindow = time.Duration(hostPolicy.WindowSeconds) * time.Second
	}

	return out
}

// KnownHostsRequired reports whether req.TargetHost's matching host
// policy (if any) requires known_hosts verification.
func (e *Enforcer) KnownHostsRequired(targetHost string) bool {
	hostPolicy, ok := e.matchHostPolicy(targetHost)
	return ok && hostPolicy.EnforceKnownHosts
}

func deny(reason vaulterrors.DeniedReason, detail string) Outcome {
	return Outcome{Allowed: false, Reason: reason, Detail: detail}
}

func (e *Enforcer) matchKeyPolicy(credentialID string) (KeyPolicy, bool) {
	for _, kp := range e.doc.KeyPolicies {
		if kp.Enabled && kp.CredentialID == credentialID {
			return kp, true
		}
	}

	return KeyPolicy{}, false
}

// matchHostPolicy returns the matching host policy for host. If multiple
// patterns match, a deny among them always wins over an allow, regardless
// of declaration order - the "deny wins" resolution spec.md calls for.
func (e *Enforcer) matchHostPolicy(host string) (HostPolicy, bool) {
	var (
		matched HostPolicy
		found   bool
	)

	for _, hp := range e.doc.HostPolicies {
		if !hp.Enabled {
			continue
		}

		ok, _ := path.Match(hp.Pattern, host)
		if !ok {
			continue
		}

		if !found {
			matched, found = hp, true
			continue
		}

		if hp.Deny {
			matched = hp
		}
	}

	return matched, found
}

func matchesAnyGlob(patterns []string, host string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, host); ok {
			return true
		}
	}

	return false
}
