package cli

import (
	"context"
	"fmt"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/vaulterrors"

	"github.com/spf13/cobra"
)

// UnlockOptions holds the data required to unlock the vault.
type UnlockOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
}

var _ genericclioptions.CmdOptions = &UnlockOptions{}

// NewUnlockOptions initializes the options struct.
func NewUnlockOptions(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *UnlockOptions {
	return &UnlockOptions{
		StdioOptions: stdio,
		vaultOptions: vaultOptions,
	}
}

func (o *UnlockOptions) Complete() error {
	return o.vaultOptions.Complete()
}

func (o *UnlockOptions) Validate() error {
	if o.NonInteractive {
		return vaulterrors.ErrNonInteractiveUnsupported
	}

	return o.vaultOptions.Validate()
}

func (o *UnlockOptions) Run(ctx context.Context, _ ...string) error {
	if err := o.vaultOptions.Open(ctx, o.StdioOptions); err != nil {
		return err
	}

	o.Infof("unlock successful\n")

	return nil
}

// NewCmdUnlock creates the unlock cobra command.
func NewCmdUnlock(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := NewUnlockOptions(stdio, vaultOptions)

	return &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the vault",
		Long:  fmt.Sprintf("Unlock the vault at the configured path (default: ~/%s).", defaultDatabaseFilename),
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}
}
