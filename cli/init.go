package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/input"
	"github.com/ladzaretti/vaultagent/vault"
	"github.com/ladzaretti/vaultagent/vaulterrors"

	"github.com/spf13/cobra"
)

const masterPasswordMinLen = 8

// InitOptions holds the data required to initialize a new vault.
type InitOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
}

var _ genericclioptions.CmdOptions = &InitOptions{}

// NewInitOptions initializes the options struct.
func NewInitOptions(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *InitOptions {
	return &InitOptions{
		StdioOptions: stdio,
		vaultOptions: vaultOptions,
	}
}

func (o *InitOptions) Complete() error {
	return o.vaultOptions.Complete()
}

func (o *InitOptions) Validate() error {
	if _, err := os.Stat(o.vaultOptions.Path); !errors.Is(err, fs.ErrNotExist) {
		return vaulterrors.ErrVaultFileExists
	}

	if o.NonInteractive {
		return vaulterrors.ErrNonInteractiveUnsupported
	}

	return nil
}

func (o *InitOptions) Run(ctx context.Context, _ ...string) error {
	mk, err := input.PromptNewPassword(o.Out, int(o.In.Fd()), masterPasswordMinLen)
	if err != nil {
		return fmt.Errorf("read new master password: %w", err)
	}
	defer clear(mk)

	vlt, err := vault.InitializeUser(ctx, o.vaultOptions.Path, mk)
	if err != nil {
		return fmt.Errorf("initialize vault: %w", err)
	}
	defer func() { _ = vlt.Close() }()

	o.Infof("New vault successfully created at %q\n", o.vaultOptions.Path)

	return nil
}

// NewCmdInit creates the init cobra command.
func NewCmdInit(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := NewInitOptions(stdio, vaultOptions)

	return &cobra.Command{
		Use:     "init",
		Aliases: []string{"create"},
		Short:   "Initialize a new vault",
		Long: fmt.Sprintf(`Create a new vault database at the specified path.

If no --file path is provided, uses the default path (~/%s).`, defaultDatabaseFilename),
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}
}
