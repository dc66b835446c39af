package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/ladzaretti/vaultagent/audit"
	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/config"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/sshagent"
	"github.com/ladzaretti/vaultagent/sshagent/approval"
	"github.com/ladzaretti/vaultagent/sshagent/policy"
	"github.com/ladzaretti/vaultagent/session"
	"github.com/ladzaretti/vaultagent/sshagent/ratelimit"
	"github.com/ladzaretti/vaultagent/transport"

	"github.com/spf13/cobra"
)

// agentSessionTTL bounds how long the agent's own internal session token
// (proving the vault unlock that hydrated its key table) stays valid.
// Unrelated to key-level rate limiting, which is enforced per sign request.
const agentSessionTTL = 24 * time.Hour

// NewCmdAgent creates the `agent` command tree: run, stop.
func NewCmdAgent(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run or control the vault-backed SSH agent",
		Long:  "Serve OpenSSH agent requests from keys hydrated out of the vault.",
	}

	cmd.AddCommand(newCmdAgentRun(stdio, vaultOptions))
	cmd.AddCommand(newCmdAgentStop(stdio))

	return cmd
}

type agentRunOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
	configPath   string
}

var _ genericclioptions.CmdOptions = &agentRunOptions{}

func (*agentRunOptions) Complete() error { return nil }

func (*agentRunOptions) Validate() error { return nil }

func (o *agentRunOptions) Run(ctx context.Context, _ ...string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("agent: load config: %w", err)
	}

	if len(o.vaultOptions.Path) == 0 {
		o.vaultOptions.Path = cfg.Vault.DatabasePath
	}

	if err := o.vaultOptions.Complete(); err != nil {
		return err
	}

	if err := o.vaultOptions.Validate(); err != nil {
		return err
	}

	if err := o.vaultOptions.Open(ctx, o.StdioOptions); err != nil {
		return err
	}
	defer o.vaultOptions.Vault.Close() //nolint:errcheck

	sessions := session.NewStore(agentSessionTTL)

	sess, err := sessions.Issue(session.PermAll)
	if err != nil {
		return fmt.Errorf("agent: issue session: %w", err)
	}
	defer sessions.RevokeAll()

	o.Debugf("agent session %s active until %s\n", sess.ID, sess.ExpiresAt.Format(time.RFC3339))

	doc, err := policy.Load(cfg.Agent.PolicyFile)
	if err != nil {
		return fmt.Errorf("agent: load policy: %w", err)
	}

	if cfg.Agent.RequireConfirm {
		doc.Global.RequireConfirm = true
	}

	limiter := ratelimit.New(ratelimit.Config{
		MinInterval: time.Duration(cfg.Agent.MinIntervalMS) * time.Millisecond,
	})

	var approver approval.Approver = approval.AutoDeny{}
	if cfg.Agent.RequireConfirm {
		approver = approval.NewTTY()
	}

	sink := audit.NewSink(o.vaultOptions.Vault.Container())
	defer sink.Close()

	a := sshagent.New(sshagent.Config{
		Enforcer:   policy.NewEnforcer(doc),
		Limiter:    limiter,
		Approver:   approver,
		Sink:       sink,
		TargetHost: cfg.Agent.TargetHost,
	})

	if cfg.Agent.EnforceKnownHosts {
		cb, err := sshagent.NewHostKeyCallback(knownHostsFile(cfg.Agent.KnownHostsFile))
		if err != nil {
			return fmt.Errorf("agent: load known_hosts: %w", err)
		}

		a.SetHostKeyCallback(cb)
	}

	if err := a.Hydrate(ctx, o.vaultOptions.Vault); err != nil {
		return fmt.Errorf("agent: hydrate keys: %w", err)
	}

	stateDir := cfg.ResolvedStateDir()

	d, err := transport.NewDaemon(stateDir, cfg.Agent.TargetHost, a.Serve)
	if err != nil {
		return fmt.Errorf("agent: start daemon: %w", err)
	}

	o.Infof("agent listening in state directory %s\n", stateDir)

	d.Run(ctx)

	return nil
}

func knownHostsFile(p string) string {
	if len(p) > 0 {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return home + "/.ssh/known_hosts"
}

func newCmdAgentRun(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &agentRunOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the SSH agent in the foreground",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "", "", "configuration file path (default: ~/.vaultagent.toml)")

	return cmd
}

type agentStopOptions struct {
	*genericclioptions.StdioOptions

	configPath string
}

var _ genericclioptions.CmdOptions = &agentStopOptions{}

func (*agentStopOptions) Complete() error { return nil }

func (*agentStopOptions) Validate() error { return nil }

func (o *agentStopOptions) Run(_ context.Context, _ ...string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("agent: load config: %w", err)
	}

	stateDir := cfg.ResolvedStateDir()

	state, err := transport.NewStateDir(stateDir)
	if err != nil {
		return fmt.Errorf("agent: open state dir: %w", err)
	}

	pid, err := state.ReadPID()
	if err != nil {
		return fmt.Errorf("agent: no running agent found: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("agent: find process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("agent: signal process %d: %w", pid, err)
	}

	o.Infof("stop signal sent to agent (pid %d)\n", pid)

	return nil
}

func newCmdAgentStop(stdio *genericclioptions.StdioOptions) *cobra.Command {
	o := &agentStopOptions{StdioOptions: stdio}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running SSH agent",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "", "", "configuration file path (default: ~/.vaultagent.toml)")

	return cmd
}
