package cli

import (
	"context"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"

	"github.com/spf13/cobra"
)

type VacuumOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
}

var _ genericclioptions.CmdOptions = &VacuumOptions{}

// NewVacuumOptions initializes the options struct.
func NewVacuumOptions(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *VacuumOptions {
	return &VacuumOptions{
		StdioOptions: stdio,
		vaultOptions: vaultOptions,
	}
}

func (*VacuumOptions) Complete() error { return nil }

func (*VacuumOptions) Validate() error { return nil }

func (o *VacuumOptions) Run(ctx context.Context, _ ...string) error {
	o.Debugf("vacuuming vault\n")
	return o.vaultOptions.Vault.Vacuum(ctx)
}

// NewCmdVacuum creates the vacuum cobra command.
func NewCmdVacuum(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := NewVacuumOptions(stdio, vaultOptions)

	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim unused space in the database",
		Long: `Reclaim unused space in the database.

This is typically unnecessary, as SQLite reuses space internally.
However, after deleting large records, vacuuming can help shrink the database file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}
}
