package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/input"
	"github.com/ladzaretti/vaultagent/vault"
	"github.com/ladzaretti/vaultagent/vaulterrors"

	"github.com/spf13/cobra"
)

const (
	// defaultDatabaseFilename is the default name for the vault database
	// file, created under the user's home directory.
	defaultDatabaseFilename = ".vaultagent.db"
)

var (
	// preRunSkipCommands lists command names that bypass the persistent
	// pre-run logic (opening the vault).
	preRunSkipCommands = []string{"config", "generate", "init", "agent", "lock"}

	// postRunSkipCommands lists command names that bypass the persistent
	// post-run logic (closing the vault).
	postRunSkipCommands = []string{"config", "generate", "init", "agent", "unlock", "lock"}
)

// VaultOptions holds the resolved vault database path and, once opened,
// the [vault.Vault] handle shared by every subcommand.
type VaultOptions struct {
	Path  string
	Vault *vault.Vault
}

var _ genericclioptions.BaseOptions = &VaultOptions{}

// NewVaultOptions creates an empty [VaultOptions].
func NewVaultOptions() *VaultOptions {
	return &VaultOptions{}
}

// Complete sets the default database path if not provided.
func (o *VaultOptions) Complete() error {
	if len(o.Path) == 0 {
		p, err := defaultVaultPath()
		if err != nil {
			return err
		}

		o.Path = p
	}

	return nil
}

// Validate checks that the vault database file exists.
func (o *VaultOptions) Validate() error {
	if _, err := os.Stat(o.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vaulterrors.ErrVaultFileNotFound
		}

		return fmt.Errorf("stat vault file: %w", err)
	}

	return nil
}

// Open prompts for the master password and unlocks the vault at o.Path.
func (o *VaultOptions) Open(ctx context.Context, io *genericclioptions.StdioOptions) error {
	password, err := input.PromptReadSecure(io.Out, int(io.In.Fd()), "Password for vault at %q: ", o.Path)
	if err != nil {
		return fmt.Errorf("prompt password: %w", err)
	}

	v, err := vault.Unlock(ctx, o.Path, password)
	if err != nil {
		return err
	}

	o.Vault = v

	return nil
}

func (o *VaultOptions) VaultFunc() *vault.Vault {
	return o.Vault
}

func defaultVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, defaultDatabaseFilename), nil
}

// DefaultVltOptions bundles the options shared across every subcommand:
// standard IO, the resolved configuration, and the vault itself.
type DefaultVltOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions  *VaultOptions
	configOptions *ConfigOptions
}

var _ genericclioptions.CmdOptions = &DefaultVltOptions{}

// NewDefaultVltOptions creates a [DefaultVltOptions].
func NewDefaultVltOptions(iostreams *genericclioptions.IOStreams, vaultOptions *VaultOptions) (*DefaultVltOptions, error) {
	return &DefaultVltOptions{
		configOptions: NewConfigOptions(),
		StdioOptions:  &genericclioptions.StdioOptions{IOStreams: iostreams},
		vaultOptions:  vaultOptions,
	}, nil
}

func (o *DefaultVltOptions) Complete() error {
	if err := o.StdioOptions.Complete(); err != nil {
		return err
	}

	if err := o.configOptions.Complete(); err != nil {
		return err
	}

	if len(o.vaultOptions.Path) == 0 {
		p, err := o.configOptions.config.ResolvedDatabasePath()
		if err != nil {
			return err
		}

		o.vaultOptions.Path = p
	}

	return o.vaultOptions.Complete()
}

func (o *DefaultVltOptions) Validate() error {
	if err := o.StdioOptions.Validate(); err != nil {
		return err
	}

	return o.vaultOptions.Validate()
}

func (o *DefaultVltOptions) Run(ctx context.Context, args ...string) error {
	p, err := o.configOptions.config.ResolvedDatabasePath()
	if err != nil {
		return err
	}

	if len(o.vaultOptions.Path) == 0 || o.vaultOptions.Path == defaultDatabaseFilename {
		o.vaultOptions.Path = p
	}

	return o.vaultOptions.Open(ctx, o.StdioOptions)
}

// NewDefaultVltCommand creates the `vault` command with its sub-commands.
func NewDefaultVltCommand(iostreams *genericclioptions.IOStreams, args []string) *cobra.Command {
	o, err := NewDefaultVltOptions(iostreams, NewVaultOptions())
	clierror.Check(err)

	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Local-first identity and secret vault",
		Long: `vault is an encrypted, local-first identity and secret manager.

Environment Variables:
    VAULTAGENT_CONFIG_PATH: overrides the default config path: "~/.vaultagent.toml".`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if slices.Contains(preRunSkipCommands, cmd.Name()) {
				return
			}

			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o, cmd.Name()))
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if slices.Contains(postRunSkipCommands, cmd.Name()) {
				return
			}

			if o.vaultOptions.Vault != nil {
				clierror.Check(o.vaultOptions.Vault.Close())
			}
		},
	}

	cmd.SetArgs(args)

	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&o.vaultOptions.Path, "file", "f", "",
		fmt.Sprintf("database file path (default: ~/%s)", defaultDatabaseFilename))
	cmd.PersistentFlags().StringVarP(
		&o.configOptions.configPath,
		"config",
		"",
		"",
		"configuration file path (default: ~/.vaultagent.toml)",
	)

	cmd.AddCommand(NewCmdConfig(o.StdioOptions))
	cmd.AddCommand(NewCmdGenerate(o.StdioOptions))
	cmd.AddCommand(NewCmdInit(o.StdioOptions, o.vaultOptions))
	cmd.AddCommand(NewCmdUnlock(o.StdioOptions, o.vaultOptions))
	cmd.AddCommand(NewCmdLock(o.StdioOptions, o.vaultOptions))
	cmd.AddCommand(NewCmdVacuum(o.StdioOptions, o.vaultOptions))

	cmd.AddCommand(NewCmdIdentity(o.StdioOptions, o.vaultOptions))
	cmd.AddCommand(NewCmdCredential(o.StdioOptions, o.vaultOptions))

	cmd.AddCommand(NewCmdAgent(o.StdioOptions, o.vaultOptions))

	return cmd
}
