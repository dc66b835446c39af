// Package config loads agent and CLI configuration from a TOML file with
// environment-variable overrides, in the same typed-struct style the
// teacher's fileconfig.go uses.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Environment variable names, each overriding the matching TOML field.
const (
	envConfigPathKey        = "VAULTAGENT_CONFIG_PATH"
	envDatabasePathKey      = "VAULTAGENT_DATABASE_PATH"
	envMasterPasswordKey    = "VAULTAGENT_MASTER_PASSWORD" //nolint:gosec // env var name, not a credential.
	envStateDirKey          = "VAULTAGENT_STATE_DIR"
	envPolicyFileKey        = "VAULTAGENT_POLICY_FILE"
	envRequireConfirmKey    = "VAULTAGENT_REQUIRE_CONFIRM"
	envMinIntervalMSKey     = "VAULTAGENT_MIN_INTERVAL_MS"
	envEnforceKnownHostsKey = "VAULTAGENT_ENFORCE_KNOWN_HOSTS"
	envKnownHostsFileKey    = "VAULTAGENT_KNOWN_HOSTS_FILE"
	envConfirmOnUnknownKey  = "VAULTAGENT_CONFIRM_ON_UNKNOWN_HOST"
	envTargetHostKey        = "VAULTAGENT_TARGET_HOST"
)

const defaultConfigName = ".vaultagent.toml"

// Error wraps a single invalid configuration option.
type Error struct {
	Opt string
	Err error
}

func (e *Error) Error() string {
	return "config: " + strings.Join([]string{e.Opt, e.Err.Error()}, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Config is the full structure of the configuration file.
//
//nolint:tagalign
type Config struct {
	Vault  VaultConfig  `toml:"vault" comment:"Vault database location and unlock behavior"`
	Agent  AgentConfig  `toml:"agent" comment:"SSH agent state, policy, and known_hosts enforcement"`

	path string // path the config was loaded from; empty if none.
}

// VaultConfig holds vault-related configuration.
//
//nolint:tagalign
type VaultConfig struct {
	DatabasePath   string `toml:"database_path,commented" comment:"Vault database path used when --file is not given (default: '~/.vaultagent.db' if not set); init and lock take --file or the default only"`
	MasterPassword string `toml:"-"` // never persisted to disk; env var or prompt only.
}

// AgentConfig holds SSH-agent-related configuration.
//
//nolint:tagalign
type AgentConfig struct {
	StateDir            string `toml:"state_dir,commented" comment:"Directory for the agent socket, pid, and target-host files (default: $XDG_RUNTIME_DIR/vaultagent)"`
	PolicyFile           string `toml:"policy_file,commented" comment:"Path to the agent policy TOML document"`
	RequireConfirm       bool   `toml:"require_confirm,commented" comment:"Require interactive confirmation for every sign request"`
	MinIntervalMS        int    `toml:"min_interval_ms,commented" comment:"Minimum milliseconds between any two successful signatures"`
	EnforceKnownHosts    bool   `toml:"enforce_known_hosts,commented" comment:"Load the known_hosts file for target-host verification; whether signing for a host requires it is set by that host's policy rule"`
	KnownHostsFile       string `toml:"known_hosts_file,commented" comment:"Path to the known_hosts file used for verification (default: ~/.ssh/known_hosts)"`
	ConfirmOnUnknownHost bool   `toml:"confirm_on_unknown_host,commented" comment:"Read from the file and environment; the agent does not act on this setting, and an unverified host is refused when its policy enforces known_hosts"`
	TargetHost           string `toml:"target_host,commented" comment:"Host this agent instance is scoped to for host-policy evaluation"`
}

func newConfig() *Config {
	return &Config{}
}

// Load reads the config from path, or the default location if path is
// empty, then applies environment-variable overrides. A missing file at
// the default location is not an error; it yields a default config with
// only environment overrides applied.
func Load(path string) (*Config, error) {
	defaultPath, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}

	configPath := cmp.Or(path, defaultPath)

	c, err := parseConfig(configPath)
	if err != nil {
		if len(path) == 0 && errors.Is(err, fs.ErrNotExist) { //nolint:revive // clearer with explicit fallback logic
			c = newConfig()
		} else {
			return nil, err
		}
	} else {
		c.path = configPath
	}

	c.applyEnv()

	return c, c.validate()
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home dir: %w", err)
	}

	path := filepath.Join(home, defaultConfigName)
	if p, ok := os.LookupEnv(envConfigPathKey); ok {
		path = p
	}

	return path, nil
}

func parseConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat file: %w", err)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	c := newConfig()
	if err := toml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}

	return c, nil
}

// applyEnv overlays environment variables onto c, taking precedence over
// whatever the file set: env > file > default.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envDatabasePathKey); ok {
		c.Vault.DatabasePath = v
	}

	if v, ok := os.LookupEnv(envMasterPasswordKey); ok {
		c.Vault.MasterPassword = v
	}

	if v, ok := os.LookupEnv(envStateDirKey); ok {
		c.Agent.StateDir = v
	}

	if v, ok := os.LookupEnv(envPolicyFileKey); ok {
		c.Agent.PolicyFile = v
	}

	if v, ok := boolEnv(envRequireConfirmKey); ok {
		c.Agent.RequireConfirm = v
	}

	if v, ok := intEnv(envMinIntervalMSKey); ok {
		c.Agent.MinIntervalMS = v
	}

	if v, ok := boolEnv(envEnforceKnownHostsKey); ok {
		c.Agent.EnforceKnownHosts = v
	}

	if v, ok := os.LookupEnv(envKnownHostsFileKey); ok {
		c.Agent.KnownHostsFile = v
	}

	if v, ok := boolEnv(envConfirmOnUnknownKey); ok {
		c.Agent.ConfirmOnUnknownHost = v
	}

	if v, ok := os.LookupEnv(envTargetHostKey); ok {
		c.Agent.TargetHost = v
	}
}

func boolEnv(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}

	return b, true
}

func intEnv(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return n, true
}

func (c *Config) validate() error {
	if c == nil {
		return &Error{Err: errors.New("cannot validate a nil config")}
	}

	if c.Agent.MinIntervalMS < 0 {
		return &Error{Opt: "agent.min_interval_ms", Err: errors.New("must be zero or positive")}
	}

	return nil
}

// Path returns the file path the config was loaded from, or "" if none.
func (c *Config) Path() string {
	return c.path
}

// ResolvedDatabasePath returns the vault database path, defaulting to
// ~/.vaultagent.db when unset.
func (c *Config) ResolvedDatabasePath() (string, error) {
	if c.Vault.DatabasePath != "" {
		return c.Vault.DatabasePath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: user home dir: %w", err)
	}

	return filepath.Join(home, ".vaultagent.db"), nil
}

// ResolvedStateDir returns the agent state directory, defaulting to
// $XDG_RUNTIME_DIR/vaultagent, or the system temp dir if unset.
func (c *Config) ResolvedStateDir() string {
	if c.Agent.StateDir != "" {
		return c.Agent.StateDir
	}

	if rt, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && rt != "" {
		return filepath.Join(rt, "vaultagent")
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("vaultagent-%d", os.Getuid()))
}
