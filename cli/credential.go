package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/input"
	"github.com/ladzaretti/vaultagent/randstring"
	"github.com/ladzaretti/vaultagent/vault"
	"github.com/ladzaretti/vaultagent/vault/payload"

	"github.com/spf13/cobra"
)

// NewCmdCredential creates the `credential` command tree: save, find, show, rm.
func NewCmdCredential(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Manage credentials (subcommands available)",
		Long:    "Save, search, reveal, and remove credentials stored under an identity.",
	}

	cmd.AddCommand(newCmdCredentialSave(stdio, vaultOptions))
	cmd.AddCommand(newCmdCredentialFind(stdio, vaultOptions))
	cmd.AddCommand(newCmdCredentialShow(stdio, vaultOptions))
	cmd.AddCommand(newCmdCredentialRemove(stdio, vaultOptions))

	return cmd
}

type credentialSaveOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	identityID string
	name       string
	url        string
	username   string
	notes      string
	tags       []string
	generate   bool
}

var _ genericclioptions.CmdOptions = &credentialSaveOptions{}

func (*credentialSaveOptions) Complete() error { return nil }

func (o *credentialSaveOptions) Validate() error {
	if len(o.identityID) == 0 {
		return fmt.Errorf("credential save: --identity is required")
	}

	if len(o.name) == 0 {
		return fmt.Errorf("credential save: --name is required")
	}

	return nil
}

func (o *credentialSaveOptions) Run(ctx context.Context, _ ...string) (retErr error) {
	var secret string

	if o.generate {
		s, err := randstring.NewWithPolicy(defaultPasswordPolicy)
		if err != nil {
			return fmt.Errorf("generate password: %w", err)
		}

		secret = s
	} else {
		s, err := input.PromptReadSecure(o.Out, int(o.In.Fd()), "Password for %q: ", o.name)
		if err != nil {
			return fmt.Errorf("prompt password: %w", err)
		}

		secret = string(s)
	}

	id, err := o.vaultOptions.Vault.CreateCredential(ctx, vault.NewCredential{
		IdentityID:    o.identityID,
		Name:          o.name,
		SecurityLevel: vault.LevelMedium,
		URL:           o.url,
		Username:      o.username,
		Notes:         o.notes,
		Tags:          o.tags,
		Payload: &payload.Password{
			Username: o.username,
			Password: secret,
		},
	})
	if err != nil {
		return err
	}

	o.Infof("credential %q saved: %s\n", o.name, id)

	if o.generate {
		o.Printf("%s\n", secret)
	}

	return nil
}

func newCmdCredentialSave(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &credentialSaveOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:     "save",
		Aliases: []string{"put"},
		Short:   "Save a new password credential under an identity",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.identityID, "identity", "i", "", "identity id this credential belongs to")
	cmd.Flags().StringVarP(&o.name, "name", "n", "", "credential name")
	cmd.Flags().StringVarP(&o.url, "url", "", "", "associated URL")
	cmd.Flags().StringVarP(&o.username, "username", "u", "", "associated username")
	cmd.Flags().StringVarP(&o.notes, "notes", "", "", "free-form notes")
	cmd.Flags().StringSliceVarP(&o.tags, "tag", "t", nil, "tag to associate (comma-separated or repeated)")
	cmd.Flags().BoolVarP(&o.generate, "generate", "g", false, "generate a random password instead of prompting")

	return cmd
}

type credentialFindOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	identityID string
	kind       string
	favorite   bool
}

var _ genericclioptions.CmdOptions = &credentialFindOptions{}

func (*credentialFindOptions) Complete() error { return nil }

func (*credentialFindOptions) Validate() error { return nil }

func (o *credentialFindOptions) Run(ctx context.Context, args ...string) error {
	wildcard := ""
	if len(args) > 0 {
		wildcard = args[0]
	}

	var favorite *bool
	if o.favorite {
		favorite = &o.favorite
	}

	creds, err := o.vaultOptions.Vault.SearchCredentials(ctx, vault.SearchFilters{
		Wildcard:   wildcard,
		IdentityID: o.identityID,
		Kind:       payload.Kind(o.kind),
		Favorite:   favorite,
	})
	if err != nil {
		return err
	}

	printCredentialTable(o.Out, creds)

	return nil
}

func printCredentialTable(w io.Writer, creds []vault.Credential) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	fmt.Fprintln(tw, "ID\tNAME\tKIND\tUSERNAME\tURL\tFAVORITE")

	for _, c := range creds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Kind, c.Username, c.URL, c.Favorite)
	}
}

func newCmdCredentialFind(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &credentialFindOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:     "find [wildcard]",
		Aliases: []string{"ls", "list"},
		Short:   "Search for credentials",
		Run: func(cmd *cobra.Command, args []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o, args...))
		},
	}

	cmd.Flags().StringVarP(&o.identityID, "identity", "i", "", "filter by identity id")
	cmd.Flags().StringVarP(&o.kind, "kind", "k", "", "filter by credential kind")
	cmd.Flags().BoolVarP(&o.favorite, "favorite", "", false, "only show favorites")

	return cmd
}

type credentialShowOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	id string
}

var _ genericclioptions.CmdOptions = &credentialShowOptions{}

func (*credentialShowOptions) Complete() error { return nil }

func (o *credentialShowOptions) Validate() error {
	if len(o.id) == 0 {
		return fmt.Errorf("credential show: --id is required")
	}

	return nil
}

func (o *credentialShowOptions) Run(ctx context.Context, _ ...string) error {
	cred, err := o.vaultOptions.Vault.RevealCredential(ctx, o.id)
	if err != nil {
		return err
	}

	switch p := cred.Payload.(type) {
	case *payload.Password:
		o.Printf("username: %s\npassword: %s\n", p.Username, p.Password)
	default:
		o.Printf("%+v\n", cred.Payload)
	}

	return nil
}

func newCmdCredentialShow(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &credentialShowOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"get", "reveal"},
		Short:   "Reveal a credential's payload",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.id, "id", "", "", "credential id")

	return cmd
}

type credentialRemoveOptions struct {
	*genericclioptions.StdioOptions

	vaultOptions *VaultOptions

	id        string
	assumeYes bool
}

var _ genericclioptions.CmdOptions = &credentialRemoveOptions{}

func (*credentialRemoveOptions) Complete() error { return nil }

func (o *credentialRemoveOptions) Validate() error {
	if len(o.id) == 0 {
		return fmt.Errorf("credential rm: --id is required")
	}

	return nil
}

func (o *credentialRemoveOptions) Run(ctx context.Context, _ ...string) error {
	if !o.assumeYes {
		yes, err := confirm(o.Out, o.In, "Delete credential %s? (y/N): ", o.id)
		if err != nil {
			return err
		}

		if !yes {
			return nil
		}
	}

	if err := o.vaultOptions.Vault.DeleteCredential(ctx, o.id); err != nil {
		return err
	}

	o.Infof("credential %s deleted\n", o.id)

	return nil
}

func newCmdCredentialRemove(stdio *genericclioptions.StdioOptions, vaultOptions *VaultOptions) *cobra.Command {
	o := &credentialRemoveOptions{StdioOptions: stdio, vaultOptions: vaultOptions}

	cmd := &cobra.Command{
		Use:     "rm",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a credential",
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().StringVarP(&o.id, "id", "", "", "credential id")
	cmd.Flags().BoolVarP(&o.assumeYes, "yes", "y", false, "skip confirmation prompt")

	return cmd
}
