package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/vault"

	"github.com/spf13/cobra"
)

// NewCmdIdentity creates the `identity` command tree: create, ls, rm.
func NewCmdIdentity(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identity",
		Aliases: []string{"id"},
		Short:   "Manage identities (subcommands available)",
		Long:    "Create, list, and remove the identities credentials are grouped under.",
	}

	cmd.AddCommand(newCmdIdentityCreate(stdio, vaultOptions))
	cmd.AddCommand(newCmdIdentityList(stdio, vaultOptions))
	cmd.AddCommand(newCmdIdentityRemove(stdio, vaultOptions))

	return cmd
}

type identityCreateOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	name     string
	category string
	contact  string
	tags     []string
}

var _ genericclioptions.CmdOptions = &identityCreateOptions{}

func (*identityCreateOptions) Complete() error { return nil }

func (o *identityCreateOptions) Validate() error {
	if len(o.name) == 0 {
		return fmt.Errorf("identity create: --name is required")
	}

	return nil
}

func (o *identityCreateOptions) Run(ctx context.Context, _ ...string) error {
	id, err := o.vaultOptions.Vault.CreateIdentity(ctx, o.name, vault.IdentityCategory(o.category), o.contact, o.tags, nil)
	if err != nil {
		return err
	}

	o.Infof("identity %q created: %s\n", o.name, id)

	return nil
}

func newCmdIdentityCreate(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &identityCreateOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new identity",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.name, "name", "n", "", "identity name")
	cmd.Flags().StringVarP(&o.category, "category", "c", string(vault.CategoryPersonal), "identity category (personal, work, social, financial, gaming, custom)")
	cmd.Flags().StringVarP(&o.contact, "contact", "", "", "contact info associated with this identity")
	cmd.Flags().StringSliceVarP(&o.tags, "tag", "t", nil, "tag to associate with this identity (comma-separated or repeated)")

	return cmd
}

type identityListOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions
}

var _ genericclioptions.CmdOptions = &identityListOptions{}

func (*identityListOptions) Complete() error { return nil }

func (*identityListOptions) Validate() error { return nil }

func (o *identityListOptions) Run(ctx context.Context, _ ...string) error {
	identities, err := o.vaultOptions.Vault.ListIdentities(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(o.Out, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tACTIVE\tTAGS")

	for _, ident := range identities {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", ident.ID, ident.Name, ident.Category, ident.Active, joinTags(ident.Tags))
	}

	return nil
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	return fmt.Sprintf("%v", tags)
}

func newCmdIdentityList(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &identityListOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List identities",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}
}

type identityRemoveOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	id   string
	hard bool
}

var _ genericclioptions.CmdOptions = &identityRemoveOptions{}

func (*identityRemoveOptions) Complete() error { return nil }

func (o *identityRemoveOptions) Validate() error {
	if len(o.id) == 0 {
		return fmt.Errorf("identity rm: --id is required")
	}

	return nil
}

func (o *identityRemoveOptions) Run(ctx context.Context, _ ...string) error {
	if o.hard {
		if err := o.vaultOptions.Vault.DeleteIdentity(ctx, o.id); err != nil {
			return err
		}

		o.Infof("identity %s permanently deleted\n", o.id)

		return nil
	}

	if err := o.vaultOptions.Vault.SoftDeleteIdentity(ctx, o.id); err != nil {
		return err
	}

	o.Infof("identity %s deactivated\n", o.id)

	return nil
}

func newCmdIdentityRemove(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &identityRemoveOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:     "rm",
		Aliases: []string{"remove", "delete"},
		Short:   "Deactivate or delete an identity",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.id, "id", "", "", "identity id")
	cmd.Flags().BoolVarP(&o.hard, "hard", "", false, "permanently delete instead of deactivating")

	return cmd
}
