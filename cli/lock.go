package cli

import (
	"context"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"

	"github.com/spf13/cobra"
)

// LockOptions holds the data required to seal and re-lock an already-open
// vault handle without deleting the database. The in-memory plaintext is
// released, not overwritten.
type LockOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
}

var _ genericclioptions.CmdOptions = &LockOptions{}

// NewLockOptions initializes the options struct.
func NewLockOptions(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *LockOptions {
	return &LockOptions{
		StdioOptions: stdio,
		vaultOptions: vaultOptions,
	}
}

func (o *LockOptions) Complete() error {
	return o.vaultOptions.Complete()
}

func (o *LockOptions) Validate() error {
	return o.vaultOptions.Validate()
}

func (o *LockOptions) Run(ctx context.Context, _ ...string) error {
	if err := o.vaultOptions.Open(ctx, o.StdioOptions); err != nil {
		return err
	}

	defer func() { _ = o.vaultOptions.Vault.Close() }()

	if err := o.vaultOptions.Vault.Lock(ctx); err != nil {
		return err
	}

	o.Infof("vault locked\n")

	return nil
}

// NewCmdLock creates the lock cobra command.
func NewCmdLock(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := NewLockOptions(stdio, vaultOptions)

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Seal and re-lock the vault",
		Long:  "Seal the vault's current state and lock it, releasing the in-memory database. Key material is not overwritten.",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	return cmd
}
